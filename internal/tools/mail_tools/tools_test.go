package mail_tools

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailscribe/mailscribe/internal/config"
	"github.com/mailscribe/mailscribe/internal/fault"
	"github.com/mailscribe/mailscribe/internal/guideline"
	"github.com/mailscribe/mailscribe/internal/mail"
	"github.com/mailscribe/mailscribe/internal/server"
)

// fakeGateway implements server.MailGateway with canned data and counters.
type fakeGateway struct {
	unread []mail.Message

	listErr  error
	getErr   error
	draftErr error

	listCalls  int
	getCalls   int
	draftCalls int

	lastDraftTarget string
	lastDraftBody   string
}

func (f *fakeGateway) ListUnread(ctx context.Context, max int) ([]mail.Message, error) {
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	if len(f.unread) > max {
		return f.unread[:max], nil
	}
	return f.unread, nil
}

func (f *fakeGateway) GetMessage(ctx context.Context, id string) (*mail.Message, error) {
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	for i := range f.unread {
		if f.unread[i].ID == id {
			return &f.unread[i], nil
		}
	}
	return nil, fault.New(fault.NotFound, "message %s not found", id)
}

func (f *fakeGateway) CreateDraft(ctx context.Context, targetID, body string) (string, error) {
	f.draftCalls++
	f.lastDraftTarget = targetID
	f.lastDraftBody = body
	if f.draftErr != nil {
		return "", f.draftErr
	}
	return "draft-1", nil
}

// fakeComposer implements server.ReplyComposer.
type fakeComposer struct {
	reply string
	err   error

	calls           int
	lastGuideline   *guideline.Guideline
	lastInstruction string
}

func (f *fakeComposer) Compose(ctx context.Context, msg *mail.Message, g *guideline.Guideline, instruction string) (string, error) {
	f.calls++
	f.lastGuideline = g
	f.lastInstruction = instruction
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

// countingFetcher backs a real guideline.Provider so the at-most-once fetch
// behavior is exercised through the tool path.
type countingFetcher struct {
	text  string
	calls int
}

func (c *countingFetcher) DocumentText(ctx context.Context, docID string) (string, error) {
	c.calls++
	return c.text, nil
}

func newToolContext(t *testing.T, gw *fakeGateway, comp *fakeComposer) *server.ServerContext {
	t.Helper()
	sc := server.NewServerContext(context.Background(), &config.Config{MaxUnread: 10}, slog.Default())
	sc.SetMailbox(gw)
	sc.SetComposer(comp)
	sc.SetGuidelineSource(guideline.NewProviderWithFetcher("", nil, slog.Default()))
	return sc
}

func callRequest(tool string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: tool, Arguments: args},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok, "tool result content must be text")
	return text.Text
}

func decodeResult(t *testing.T, result *mcp.CallToolResult, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), v))
}

func assertFault(t *testing.T, result *mcp.CallToolResult, kind fault.Kind) {
	t.Helper()
	require.True(t, result.IsError)

	var envelope struct {
		Error struct {
			Kind    string `json:"kind"`
			Message string `json:"message"`
		} `json:"error"`
	}
	decodeResult(t, result, &envelope)
	assert.Equal(t, string(kind), envelope.Error.Kind)
	assert.NotEmpty(t, envelope.Error.Message)
}

func sampleUnread() []mail.Message {
	return []mail.Message{
		{
			ID:      "101",
			From:    "alice@example.com",
			Subject: "Meeting",
			Body:    "Can we meet?",
			Date:    time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		},
		{
			ID:      "102",
			From:    "bob@example.com",
			Subject: "Invoice",
			Body:    "Invoice attached.",
			Date:    time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		},
	}
}

func TestListUnreadEmptyInbox(t *testing.T) {
	gw := &fakeGateway{}
	sc := newToolContext(t, gw, &fakeComposer{})

	result, err := handleListUnread(context.Background(), callRequest("list_unread_emails", nil), sc)
	require.NoError(t, err)
	require.False(t, result.IsError, "empty inbox is a successful empty listing")

	var listing listResult
	decodeResult(t, result, &listing)
	assert.Equal(t, 0, listing.Count)
	assert.NotNil(t, listing.Emails)
	assert.Empty(t, listing.Emails)
}

func TestListUnreadSummaries(t *testing.T) {
	gw := &fakeGateway{unread: sampleUnread()}
	sc := newToolContext(t, gw, &fakeComposer{})

	result, err := handleListUnread(context.Background(), callRequest("list_unread_emails", nil), sc)
	require.NoError(t, err)
	require.False(t, result.IsError)

	var listing listResult
	decodeResult(t, result, &listing)
	require.Equal(t, 2, listing.Count)

	first := listing.Emails[0]
	assert.Equal(t, "101", first.ID)
	assert.Equal(t, "alice@example.com", first.Sender)
	assert.Equal(t, "Meeting", first.Subject)
	assert.Equal(t, "Can we meet?", first.Snippet)
	assert.Equal(t, "2026-03-02T10:00:00Z", first.Date)

	// Listing registers the returned identifiers for later draft calls.
	assert.True(t, sc.KnowsMessage("101"))
	assert.True(t, sc.KnowsMessage("102"))
}

func TestListUnreadMaxResults(t *testing.T) {
	gw := &fakeGateway{unread: sampleUnread()}
	sc := newToolContext(t, gw, &fakeComposer{})

	result, err := handleListUnread(context.Background(),
		callRequest("list_unread_emails", map[string]interface{}{"maxResults": float64(1)}), sc)
	require.NoError(t, err)

	var listing listResult
	decodeResult(t, result, &listing)
	assert.Equal(t, 1, listing.Count)
}

func TestListUnreadConnectionFailure(t *testing.T) {
	gw := &fakeGateway{listErr: fault.New(fault.Connection, "mail store unreachable")}
	sc := newToolContext(t, gw, &fakeComposer{})

	result, err := handleListUnread(context.Background(), callRequest("list_unread_emails", nil), sc)
	require.NoError(t, err)
	assertFault(t, result, fault.Connection)
}

func TestSnippetNeverExposesFullBody(t *testing.T) {
	long := ""
	for i := 0; i < 50; i++ {
		long += "confidential details  \n"
	}
	gw := &fakeGateway{unread: []mail.Message{{ID: "1", From: "a@x.com", Body: long, Date: time.Now()}}}
	sc := newToolContext(t, gw, &fakeComposer{})

	result, err := handleListUnread(context.Background(), callRequest("list_unread_emails", nil), sc)
	require.NoError(t, err)

	var listing listResult
	decodeResult(t, result, &listing)
	got := listing.Emails[0].Snippet
	assert.LessOrEqual(t, len(got), snippetLength)
	assert.NotContains(t, got, "\n", "snippet is whitespace-collapsed")
}

func TestDraftReplyEndToEnd(t *testing.T) {
	gw := &fakeGateway{unread: sampleUnread()}
	comp := &fakeComposer{reply: "Sure, how about Tuesday?"}
	sc := newToolContext(t, gw, comp)

	// List first so the identifier is registered.
	_, err := handleListUnread(context.Background(), callRequest("list_unread_emails", nil), sc)
	require.NoError(t, err)

	result, err := handleDraftReply(context.Background(),
		callRequest("draft_reply", map[string]interface{}{"email_id": "101"}), sc)
	require.NoError(t, err)
	require.False(t, result.IsError)

	var draft draftResult
	decodeResult(t, result, &draft)
	assert.Equal(t, "draft-1", draft.DraftID)
	assert.Equal(t, "Sure, how about Tuesday?", draft.ReplyText)

	assert.Equal(t, 1, comp.calls)
	assert.Equal(t, 1, gw.draftCalls)
	assert.Equal(t, "101", gw.lastDraftTarget)
	assert.Equal(t, "Sure, how about Tuesday?", gw.lastDraftBody)
}

func TestDraftReplyPassesInstruction(t *testing.T) {
	gw := &fakeGateway{unread: sampleUnread()}
	comp := &fakeComposer{reply: "No, thank you."}
	sc := newToolContext(t, gw, comp)
	sc.RememberMessages(gw.unread)

	_, err := handleDraftReply(context.Background(),
		callRequest("draft_reply", map[string]interface{}{
			"email_id":    "101",
			"instruction": "politely decline",
		}), sc)
	require.NoError(t, err)
	assert.Equal(t, "politely decline", comp.lastInstruction)
}

func TestDraftReplyUnknownID(t *testing.T) {
	gw := &fakeGateway{unread: sampleUnread()}
	comp := &fakeComposer{reply: "hi"}
	sc := newToolContext(t, gw, comp)
	sc.RememberMessages(gw.unread)

	result, err := handleDraftReply(context.Background(),
		callRequest("draft_reply", map[string]interface{}{"email_id": "999"}), sc)
	require.NoError(t, err)
	assertFault(t, result, fault.NotFound)

	// Rejected before any fetch or generation.
	assert.Equal(t, 0, gw.getCalls)
	assert.Equal(t, 0, comp.calls)
	assert.Equal(t, 0, gw.draftCalls)
}

func TestDraftReplyMissingID(t *testing.T) {
	gw := &fakeGateway{}
	sc := newToolContext(t, gw, &fakeComposer{})

	result, err := handleDraftReply(context.Background(),
		callRequest("draft_reply", map[string]interface{}{}), sc)
	require.NoError(t, err)
	assertFault(t, result, fault.NotFound)
	assert.Equal(t, 0, gw.getCalls)
}

func TestDraftReplyGenerationFailureStopsPipeline(t *testing.T) {
	gw := &fakeGateway{unread: sampleUnread()}
	comp := &fakeComposer{err: fault.New(fault.Generation, "model overloaded")}
	sc := newToolContext(t, gw, comp)
	sc.RememberMessages(gw.unread)

	result, err := handleDraftReply(context.Background(),
		callRequest("draft_reply", map[string]interface{}{"email_id": "101"}), sc)
	require.NoError(t, err)
	assertFault(t, result, fault.Generation)

	assert.Equal(t, 0, gw.draftCalls, "no draft may be written after a failed generation")
}

func TestDraftReplyPersistenceFailure(t *testing.T) {
	gw := &fakeGateway{
		unread:   sampleUnread(),
		draftErr: fault.New(fault.Persistence, "could not save draft"),
	}
	comp := &fakeComposer{reply: "Sounds good."}
	sc := newToolContext(t, gw, comp)
	sc.RememberMessages(gw.unread)

	result, err := handleDraftReply(context.Background(),
		callRequest("draft_reply", map[string]interface{}{"email_id": "101"}), sc)
	require.NoError(t, err)
	assertFault(t, result, fault.Persistence)

	// The envelope must not leak a draft id when nothing was persisted.
	assert.NotContains(t, resultText(t, result), "draft_id")
}

func TestDraftReplyGuidelineFetchedOnceAcrossCalls(t *testing.T) {
	gw := &fakeGateway{unread: sampleUnread()}
	comp := &fakeComposer{reply: "ok"}
	sc := newToolContext(t, gw, comp)
	sc.RememberMessages(gw.unread)

	fetcher := &countingFetcher{text: "Sign off with Cheers."}
	sc.SetGuidelineSource(guideline.NewProviderWithFetcher("doc-1", fetcher, slog.Default()))

	for _, id := range []string{"101", "102"} {
		result, err := handleDraftReply(context.Background(),
			callRequest("draft_reply", map[string]interface{}{"email_id": id}), sc)
		require.NoError(t, err)
		require.False(t, result.IsError)
	}

	assert.Equal(t, 1, fetcher.calls, "guideline document is fetched at most once per process")
	require.NotNil(t, comp.lastGuideline)
	assert.Equal(t, "Sign off with Cheers.", comp.lastGuideline.Text)
}

func TestDraftReplyWithoutGuidelineConfigured(t *testing.T) {
	gw := &fakeGateway{unread: sampleUnread()}
	comp := &fakeComposer{reply: "ok"}
	sc := newToolContext(t, gw, comp)
	sc.RememberMessages(gw.unread)

	result, err := handleDraftReply(context.Background(),
		callRequest("draft_reply", map[string]interface{}{"email_id": "101"}), sc)
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Nil(t, comp.lastGuideline, "absent guideline reaches the composer as nil, not a placeholder")
}

func TestRegisterMailTools(t *testing.T) {
	sc := newToolContext(t, &fakeGateway{}, &fakeComposer{})
	s := mcpserver.NewMCPServer("test-server", "1.0.0",
		mcpserver.WithToolCapabilities(true),
	)
	require.NoError(t, RegisterMailTools(s, sc))
}
