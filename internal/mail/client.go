// Package mail is the gateway to the mail store. It speaks IMAP with an
// address/app-password credential pair: listing unread messages, fetching a
// message by UID, and persisting threaded reply drafts.
//
// Every operation opens its own connection and closes it before returning;
// no connection is held between tool calls.
package mail

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/mailscribe/mailscribe/internal/config"
	"github.com/mailscribe/mailscribe/internal/fault"
	"github.com/mailscribe/mailscribe/internal/logging"
)

const inboxMailbox = "INBOX"

// Client talks to the mail store over IMAP.
type Client struct {
	server        string
	address       string
	password      string
	draftsMailbox string
	logger        *slog.Logger
}

// NewClient creates a mail gateway from the process configuration. Missing
// credentials are not an error here; they surface on first use.
func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	return &Client{
		server:        cfg.IMAPServer,
		address:       cfg.MailAddress,
		password:      cfg.MailAppPassword,
		draftsMailbox: cfg.DraftsMailbox,
		logger:        logger.With(logging.Service("imap")),
	}
}

// dial opens a fresh TLS connection and authenticates.
func (c *Client) dial() (*imapclient.Client, error) {
	if c.address == "" || c.password == "" {
		return nil, fault.New(fault.Configuration,
			"mail store credentials not configured (EMAIL_USER and EMAIL_APP_PASSWORD)")
	}
	cli, err := imapclient.DialTLS(c.server, nil)
	if err != nil {
		return nil, fault.Wrap(fault.Connection, err, "mail store unreachable at %s", c.server)
	}
	if err := cli.Login(c.address, c.password).Wait(); err != nil {
		cli.Close()
		return nil, fault.Wrap(fault.Authentication, err, "mail store rejected credentials for %s",
			logging.AnonymizeEmail(c.address))
	}
	return cli, nil
}

// ListUnread returns the unread INBOX messages, most recent first. Listing
// uses BODY.PEEK so it never marks messages as read. Zero unread messages
// yield an empty slice, not an error. Order is stable within a call.
func (c *Client) ListUnread(ctx context.Context, max int) ([]Message, error) {
	if max <= 0 {
		max = config.DefaultMaxUnread
	}

	cli, err := c.dial()
	if err != nil {
		return nil, err
	}
	defer cli.Close()

	sel, err := cli.Select(inboxMailbox, &imap.SelectOptions{ReadOnly: true}).Wait()
	if err != nil {
		return nil, fault.Wrap(fault.Connection, err, "SELECT %s failed", inboxMailbox)
	}
	if sel.NumMessages == 0 {
		return []Message{}, nil
	}

	criteria := &imap.SearchCriteria{NotFlag: []imap.Flag{imap.FlagSeen}}
	searchData, err := cli.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fault.Wrap(fault.Connection, err, "UNSEEN search failed")
	}
	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return []Message{}, nil
	}
	// Latest N: UID search results come in mailbox order.
	if len(uids) > max {
		uids = uids[len(uids)-max:]
	}

	var uidSet imap.UIDSet
	uidSet.AddNum(uids...)

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOpts := &imap.FetchOptions{
		UID:          true,
		Envelope:     true,
		InternalDate: true,
		BodySection:  []*imap.FetchItemBodySection{bodySection},
	}
	bufs, err := cli.Fetch(uidSet, fetchOpts).Collect()
	if err != nil {
		return nil, fault.Wrap(fault.Connection, err, "fetch of %d unread messages failed", len(uids))
	}

	messages := make([]Message, 0, len(bufs))
	for _, buf := range bufs {
		messages = append(messages, messageFromBuffer(buf, bodySection))
	}
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].Date.After(messages[j].Date)
	})

	c.logger.Debug("listed unread messages",
		logging.Operation("list_unread"), slog.Int("count", len(messages)))
	return messages, nil
}

// GetMessage fetches a single message by its identifier. It returns a
// not_found_error when the identifier no longer resolves.
func (c *Client) GetMessage(ctx context.Context, id string) (*Message, error) {
	uid, err := parseUID(id)
	if err != nil {
		return nil, err
	}

	cli, err := c.dial()
	if err != nil {
		return nil, err
	}
	defer cli.Close()

	if _, err := cli.Select(inboxMailbox, &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		return nil, fault.Wrap(fault.Connection, err, "SELECT %s failed", inboxMailbox)
	}

	bodySection := &imap.FetchItemBodySection{Peek: true}
	buf, err := c.fetchOne(cli, uid, &imap.FetchOptions{
		UID:          true,
		Envelope:     true,
		InternalDate: true,
		BodySection:  []*imap.FetchItemBodySection{bodySection},
	})
	if err != nil {
		return nil, err
	}

	msg := messageFromBuffer(buf, bodySection)
	return &msg, nil
}

// CreateDraft builds a reply to the target message and appends it to the
// drafts mailbox so the mail client renders it threaded under the original.
// The returned draft identifier is derived from APPENDUID when the server
// provides one. Draft creation is never retried.
func (c *Client) CreateDraft(ctx context.Context, targetID, body string) (string, error) {
	uid, err := parseUID(targetID)
	if err != nil {
		return "", err
	}

	cli, err := c.dial()
	if err != nil {
		return "", err
	}
	defer cli.Close()

	if _, err := cli.Select(inboxMailbox, &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		return "", fault.Wrap(fault.Connection, err, "SELECT %s failed", inboxMailbox)
	}

	buf, err := c.fetchOne(cli, uid, &imap.FetchOptions{UID: true, Envelope: true})
	if err != nil {
		return "", err
	}
	env := buf.Envelope
	if env == nil || len(env.From) == 0 {
		return "", fault.New(fault.NotFound, "message %s has no sender envelope", targetID)
	}

	now := time.Now()
	msgID := generateMessageID(c.address, now)
	raw, err := buildReply(c.address, formatImapAddrs(env.From),
		decodeHeader(env.Subject), env.MessageID, msgID, body, now)
	if err != nil {
		return "", fault.Wrap(fault.Persistence, err, "could not build reply draft for %s", targetID)
	}

	appendCmd := cli.Append(c.draftsMailbox, int64(len(raw)), &imap.AppendOptions{
		Flags: []imap.Flag{imap.FlagDraft},
		Time:  now,
	})
	if _, err := appendCmd.Write(raw); err != nil {
		appendCmd.Close()
		return "", fault.Wrap(fault.Persistence, err, "draft upload to %s failed", c.draftsMailbox)
	}
	if err := appendCmd.Close(); err != nil {
		return "", fault.Wrap(fault.Persistence, err, "draft upload to %s failed", c.draftsMailbox)
	}
	data, err := appendCmd.Wait()
	if err != nil {
		return "", fault.Wrap(fault.Persistence, err, "mail store rejected draft creation in %s", c.draftsMailbox)
	}

	draftID := msgID
	if data != nil && data.UID != 0 {
		draftID = strconv.FormatUint(uint64(data.UID), 10)
	}
	c.logger.Info("reply draft persisted",
		logging.Operation("create_draft"),
		logging.MessageID(targetID),
		slog.String("draft_id", draftID))
	return draftID, nil
}

// fetchOne fetches a single message by UID on an already-selected mailbox.
func (c *Client) fetchOne(cli *imapclient.Client, uid imap.UID, opts *imap.FetchOptions) (*imapclient.FetchMessageBuffer, error) {
	var uidSet imap.UIDSet
	uidSet.AddNum(uid)
	bufs, err := cli.Fetch(uidSet, opts).Collect()
	if err != nil {
		return nil, fault.Wrap(fault.Connection, err, "fetch of message %d failed", uid)
	}
	if len(bufs) == 0 {
		return nil, fault.New(fault.NotFound, "message %d no longer resolves in %s", uid, inboxMailbox)
	}
	return bufs[0], nil
}

func messageFromBuffer(buf *imapclient.FetchMessageBuffer, section *imap.FetchItemBodySection) Message {
	msg := Message{
		ID:   strconv.FormatUint(uint64(buf.UID), 10),
		Date: buf.InternalDate,
	}
	if env := buf.Envelope; env != nil {
		msg.From = formatImapAddrs(env.From)
		msg.Subject = decodeHeader(env.Subject)
		if msg.Date.IsZero() {
			msg.Date = env.Date
		}
	}
	if raw := buf.FindBodySection(section); len(raw) > 0 {
		msg.Body = extractBody(raw)
	}
	return msg
}

func parseUID(id string) (imap.UID, error) {
	n, err := strconv.ParseUint(id, 10, 32)
	if err != nil || n == 0 {
		return 0, fault.New(fault.NotFound, "%q is not a valid message identifier", id)
	}
	return imap.UID(n), nil
}
