// Package logging provides slog helpers used throughout mailscribe.
//
// It defines the canonical attribute keys so log lines stay consistent across
// packages, and anonymization helpers so email addresses never reach the logs
// in clear text.
package logging
