package mail

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	netmail "net/mail"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-message/mail"

	// Register charset decoders (windows-1252, iso-8859-*, koi8-r, etc.)
	_ "github.com/emersion/go-message/charset"
)

// maxBodyLength caps extracted bodies before they reach the composer prompt.
const maxBodyLength = 2000

var mimeWordDecoder = &mime.WordDecoder{}

// decodeHeader decodes RFC 2047 encoded-words (=?charset?encoding?text?=).
func decodeHeader(s string) string {
	decoded, err := mimeWordDecoder.DecodeHeader(s)
	if err != nil {
		return s
	}
	return decoded
}

// formatImapAddrs renders IMAP envelope addresses as "Name <addr>" strings.
func formatImapAddrs(addrs []imap.Address) string {
	parts := make([]string, len(addrs))
	for i, a := range addrs {
		name := decodeHeader(a.Name)
		email := fmt.Sprintf("%s@%s", a.Mailbox, a.Host)
		if name != "" {
			parts[i] = fmt.Sprintf("%s <%s>", name, email)
		} else {
			parts[i] = email
		}
	}
	return strings.Join(parts, ", ")
}

// extractBody pulls readable text out of a raw RFC 5322 message. It prefers
// the text/plain part, converts HTML-only messages to markdown, and falls
// back to everything after the header block when MIME parsing fails.
func extractBody(raw []byte) string {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return truncateBody(rawBodyFallback(raw))
	}

	var plainText, htmlText string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}
		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		ct, _, _ := mime.ParseMediaType(h.Get("Content-Type"))
		b, readErr := io.ReadAll(p.Body)
		if readErr != nil {
			continue
		}
		switch ct {
		case "text/html":
			htmlText = string(b)
		default:
			if plainText == "" {
				plainText = string(b)
			}
		}
	}

	var body string
	switch {
	case plainText != "":
		body = strings.TrimSpace(plainText)
	case htmlText != "":
		md, err := htmltomarkdown.ConvertString(htmlText)
		if err != nil {
			body = strings.TrimSpace(htmlText)
		} else {
			body = strings.TrimSpace(md)
		}
	default:
		body = rawBodyFallback(raw)
	}

	return truncateBody(body)
}

func rawBodyFallback(raw []byte) string {
	if idx := bytes.Index(raw, []byte("\r\n\r\n")); idx >= 0 {
		return strings.TrimSpace(string(raw[idx+4:]))
	}
	if idx := bytes.Index(raw, []byte("\n\n")); idx >= 0 {
		return strings.TrimSpace(string(raw[idx+2:]))
	}
	return ""
}

func truncateBody(body string) string {
	if len(body) > maxBodyLength {
		return body[:maxBodyLength]
	}
	return body
}

// replySubject prefixes the subject with "Re: " unless it already carries one.
func replySubject(subject string) string {
	trimmed := strings.TrimSpace(subject)
	if len(trimmed) >= 3 && strings.EqualFold(trimmed[:3], "re:") {
		return trimmed
	}
	return "Re: " + trimmed
}

// stripMsgID removes the angle brackets an IMAP envelope may keep around a
// Message-Id. go-message adds its own brackets when writing msg-id headers.
func stripMsgID(id string) string {
	return strings.Trim(strings.TrimSpace(id), "<>")
}

// buildReply constructs the RFC 5322 reply draft threaded to the original
// message. to is the original sender, origMsgID the original Message-Id
// (may be empty when the envelope lacked one), msgID the id assigned to the
// draft itself (without angle brackets).
func buildReply(from, to, subject, origMsgID, msgID, body string, now time.Time) ([]byte, error) {
	toAddrs, err := netmail.ParseAddressList(to)
	if err != nil {
		// Envelope-derived strings occasionally fail strict parsing;
		// use the raw value as a bare address.
		toAddrs = []*netmail.Address{{Address: to}}
	}

	var h mail.Header
	h.SetDate(now)
	h.SetAddressList("From", []*netmail.Address{{Address: from}})
	h.SetAddressList("To", toAddrs)
	h.SetSubject(replySubject(subject))
	h.SetMsgIDList("Message-Id", []string{msgID})
	if id := stripMsgID(origMsgID); id != "" {
		h.SetMsgIDList("In-Reply-To", []string{id})
		h.SetMsgIDList("References", []string{id})
	}
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("create reply writer: %w", err)
	}
	if _, err := io.WriteString(w, body); err != nil {
		w.Close()
		return nil, fmt.Errorf("write reply body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalize reply: %w", err)
	}
	return buf.Bytes(), nil
}

// generateMessageID builds a msg-id (without angle brackets) from the sender
// domain and the creation time.
func generateMessageID(from string, now time.Time) string {
	domain := "localhost"
	if at := strings.LastIndex(from, "@"); at >= 0 && at < len(from)-1 {
		domain = from[at+1:]
	}
	return fmt.Sprintf("%d.mailscribe@%s", now.UnixNano(), domain)
}
