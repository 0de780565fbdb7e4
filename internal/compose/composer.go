// Package compose turns a fetched message and the optional writing-style
// guideline into generated reply text via the Anthropic Messages API.
//
// One request, one response: a failed attempt is surfaced immediately and
// retry policy stays with the calling host.
package compose

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mailscribe/mailscribe/internal/config"
	"github.com/mailscribe/mailscribe/internal/fault"
	"github.com/mailscribe/mailscribe/internal/guideline"
	"github.com/mailscribe/mailscribe/internal/logging"
	"github.com/mailscribe/mailscribe/internal/mail"
)

const (
	defaultBaseURL   = "https://api.anthropic.com"
	anthropicVersion = "2023-06-01"
	maxReplyTokens   = 1000
	requestTimeout   = 60 * time.Second
)

// Composer calls the Anthropic Messages API.
type Composer struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewComposer creates a composer from the process configuration. A missing
// API key is not an error here; it surfaces on first use.
func NewComposer(cfg *config.Config, logger *slog.Logger) *Composer {
	baseURL := strings.TrimRight(cfg.AnthropicBaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Composer{
		apiKey:  cfg.AnthropicAPIKey,
		model:   cfg.AnthropicModel,
		baseURL: baseURL,
		client:  &http.Client{Timeout: requestTimeout},
		logger:  logger.With(logging.Service("anthropic")),
	}
}

// Anthropic Messages API wire types.

type messagesRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	Messages  []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Compose builds the reply prompt and submits it to the generation service.
// The returned text is reply body content only, stripped of any wrapping the
// service added. No automatic retry on failure.
func (c *Composer) Compose(ctx context.Context, msg *mail.Message, g *guideline.Guideline, instruction string) (string, error) {
	if c.apiKey == "" {
		return "", fault.New(fault.Configuration,
			"text-generation credentials not configured (ANTHROPIC_API_KEY)")
	}

	prompt := BuildReplyPrompt(msg, g, instruction)
	body, err := json.Marshal(messagesRequest{
		Model:     c.model,
		MaxTokens: maxReplyTokens,
		Messages:  []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fault.Wrap(fault.Generation, err, "could not encode generation request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fault.Wrap(fault.Generation, err, "could not build generation request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fault.Wrap(fault.Connection, err, "text-generation service unreachable")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fault.Wrap(fault.Generation, err, "could not read generation response")
	}

	if resp.StatusCode != http.StatusOK {
		detail := apiErrorDetail(respBody)
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return "", fault.New(fault.Configuration,
				"text-generation service rejected the API key: %s", detail)
		default:
			return "", fault.New(fault.Generation,
				"text-generation request failed with status %d: %s", resp.StatusCode, detail)
		}
	}

	var parsed messagesResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fault.Wrap(fault.Generation, err, "malformed generation response")
	}

	var reply string
	for _, block := range parsed.Content {
		if block.Type == "text" {
			reply = block.Text
			break
		}
	}
	reply = StripWrapping(reply)
	if reply == "" {
		return "", fault.New(fault.Generation, "generation response contained no reply text")
	}

	c.logger.Debug("reply generated",
		logging.Operation("compose"), slog.Int("chars", len(reply)))
	return reply, nil
}

func apiErrorDetail(body []byte) string {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Error.Message != "" {
		return fmt.Sprintf("%s (%s)", er.Error.Message, er.Error.Type)
	}
	detail := strings.TrimSpace(string(body))
	if len(detail) > 200 {
		detail = detail[:200]
	}
	return detail
}
