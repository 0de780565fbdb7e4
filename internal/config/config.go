// Package config reads process configuration from the environment.
//
// Nothing is validated here: a missing credential must not crash the process
// at startup. Each component checks the values it needs on first use and
// surfaces a configuration_error through the fault package.
package config

import (
	"os"
	"strconv"
)

// Defaults for optional settings.
const (
	DefaultIMAPServer     = "imap.gmail.com:993"
	DefaultDraftsMailbox  = "[Gmail]/Drafts"
	DefaultAnthropicModel = "claude-sonnet-4-20250514"
	DefaultMaxUnread      = 10
)

// Config holds everything the components need. Credentials stay empty when
// the corresponding environment variable is unset.
type Config struct {
	// Mail store (IMAP with an app password).
	MailAddress     string
	MailAppPassword string
	IMAPServer      string
	DraftsMailbox   string

	// Text-generation service.
	AnthropicAPIKey  string
	AnthropicModel   string
	AnthropicBaseURL string

	// Writing-style guideline document. Optional: an empty doc ID means
	// "compose without stylistic guidance".
	GuidelineDocID  string
	CredentialsFile string

	// Default listing size when the tool caller does not specify one.
	MaxUnread int
}

// FromEnv builds a Config from the environment the MCP client supplies.
func FromEnv() *Config {
	return &Config{
		MailAddress:      os.Getenv("EMAIL_USER"),
		MailAppPassword:  os.Getenv("EMAIL_APP_PASSWORD"),
		IMAPServer:       envOr("IMAP_SERVER", DefaultIMAPServer),
		DraftsMailbox:    envOr("DRAFTS_MAILBOX", DefaultDraftsMailbox),
		AnthropicAPIKey:  os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:   envOr("ANTHROPIC_MODEL", DefaultAnthropicModel),
		AnthropicBaseURL: os.Getenv("ANTHROPIC_BASE_URL"),
		GuidelineDocID:   os.Getenv("GUIDELINES_DOC_ID"),
		CredentialsFile:  os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
		MaxUnread:        envIntOr("MAX_UNREAD_RESULTS", DefaultMaxUnread),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
