package mail_tools

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/mailscribe/mailscribe/internal/fault"
	"github.com/mailscribe/mailscribe/internal/logging"
	"github.com/mailscribe/mailscribe/internal/server"
	"github.com/mailscribe/mailscribe/internal/tools/common"
)

// snippetLength is the maximum snippet size in the listing. Full bodies are
// never exposed there; they only feed reply generation.
const snippetLength = 140

// RegisterMailTools registers the mail tools with the MCP server.
func RegisterMailTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	listTool := mcp.NewTool("list_unread_emails",
		mcp.WithDescription("List unread emails from the inbox, most recent first. Returns id, sender, subject, a short snippet, and date for each message."),
		mcp.WithNumber("maxResults",
			mcp.Description("Maximum number of emails to return (default: 10)"),
		),
	)

	s.AddTool(listTool, mcpserver.ToolHandlerFunc(common.InstrumentedToolHandler("list_unread_emails", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListUnread(ctx, request, sc)
		})))

	draftTool := mcp.NewTool("draft_reply",
		mcp.WithDescription("Generate a reply to an unread email and save it to the drafts folder. Nothing is sent. Returns the draft id and the generated reply text."),
		mcp.WithString("email_id",
			mcp.Required(),
			mcp.Description("The id of the email to reply to, as returned by list_unread_emails"),
		),
		mcp.WithString("instruction",
			mcp.Description("Optional guidance for the reply, e.g. 'politely decline'"),
		),
	)

	s.AddTool(draftTool, mcpserver.ToolHandlerFunc(common.InstrumentedToolHandler("draft_reply", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleDraftReply(ctx, request, sc)
		})))

	return nil
}

// emailSummary is one entry in the listing result.
type emailSummary struct {
	ID      string `json:"id"`
	Sender  string `json:"sender"`
	Subject string `json:"subject"`
	Snippet string `json:"snippet"`
	Date    string `json:"date"`
}

type listResult struct {
	Emails []emailSummary `json:"emails"`
	Count  int            `json:"count"`
}

type draftResult struct {
	DraftID   string `json:"draft_id"`
	ReplyText string `json:"reply_text"`
}

func handleListUnread(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	maxResults := sc.Config().MaxUnread
	if v, ok := args["maxResults"].(float64); ok && v > 0 {
		maxResults = int(v)
	}

	messages, err := sc.Mailbox().ListUnread(ctx, maxResults)
	if err != nil {
		return faultResult(err), nil
	}

	sc.RememberMessages(messages)

	result := listResult{Emails: make([]emailSummary, 0, len(messages)), Count: len(messages)}
	for i := range messages {
		msg := &messages[i]
		result.Emails = append(result.Emails, emailSummary{
			ID:      msg.ID,
			Sender:  msg.From,
			Subject: msg.Subject,
			Snippet: snippet(msg.Body),
			Date:    msg.Date.Format(time.RFC3339),
		})
	}

	sc.Logger().Info("unread emails listed",
		logging.Tool("list_unread_emails"), slog.Int("count", result.Count))

	return jsonResult(result)
}

func handleDraftReply(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	logger := sc.Logger().With(logging.Tool("draft_reply"))

	emailID, _ := args["email_id"].(string)
	instruction, _ := args["instruction"].(string)

	logger.Info("draft requested", logging.Stage("received"), logging.MessageID(emailID))

	// Validate before touching the network: identifiers are only meaningful
	// within this session, so anything the listing never produced is gone or
	// was never there.
	if emailID == "" {
		return faultResult(fault.New(fault.NotFound, "email_id is required")), nil
	}
	if !sc.KnowsMessage(emailID) {
		return faultResult(fault.New(fault.NotFound,
			"no email with id %s in this session; call list_unread_emails first", emailID)), nil
	}

	msg, err := sc.Mailbox().GetMessage(ctx, emailID)
	if err != nil {
		return draftFailure(logger, emailID, err)
	}
	logger.Info("draft in progress", logging.Stage("message-fetched"), logging.MessageID(emailID))

	g, err := sc.GuidelineSource().Guideline(ctx)
	if err != nil {
		return draftFailure(logger, emailID, err)
	}
	logger.Info("draft in progress", logging.Stage("guideline-resolved"), logging.MessageID(emailID))

	replyText, err := sc.Composer().Compose(ctx, msg, g, instruction)
	if err != nil {
		return draftFailure(logger, emailID, err)
	}
	logger.Info("draft in progress", logging.Stage("text-generated"), logging.MessageID(emailID))

	draftID, err := sc.Mailbox().CreateDraft(ctx, emailID, replyText)
	if err != nil {
		return draftFailure(logger, emailID, err)
	}
	logger.Info("draft saved", logging.Stage("draft-persisted"),
		logging.MessageID(emailID), slog.String("draft_id", draftID))

	return jsonResult(draftResult{DraftID: draftID, ReplyText: replyText})
}

func draftFailure(logger *slog.Logger, emailID string, err error) (*mcp.CallToolResult, error) {
	logger.Error("draft failed", logging.Stage("failed"),
		logging.MessageID(emailID), logging.Err(err))
	return faultResult(err), nil
}

// snippet collapses whitespace runs into single spaces and truncates the
// result for listing display.
func snippet(body string) string {
	collapsed := strings.Join(strings.FieldsFunc(body, unicode.IsSpace), " ")
	if len(collapsed) > snippetLength {
		collapsed = collapsed[:snippetLength]
	}
	return collapsed
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return faultResult(fault.Wrap(fault.Internal, err, "could not encode tool result")), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

// faultResult serializes an error into the uniform envelope so tool callers
// always see the same shape: {"error":{"kind","message"}}.
func faultResult(err error) *mcp.CallToolResult {
	envelope := map[string]map[string]string{
		"error": {
			"kind":    string(fault.KindOf(err)),
			"message": err.Error(),
		},
	}
	b, merr := json.Marshal(envelope)
	if merr != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultError(string(b))
}
