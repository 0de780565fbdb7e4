// Package fault defines the closed error taxonomy shared by all components.
//
// Every failure that crosses a component boundary is a *Error carrying one of
// the Kind constants below. The tool dispatcher maps the kind unchanged into
// the tool error envelope, so callers can match on kind at every boundary.
package fault

import (
	"errors"
	"fmt"
)

// Kind is the machine-readable error category.
type Kind string

const (
	// Authentication covers rejected mail or document store credentials.
	Authentication Kind = "authentication_error"
	// Connection covers unreachable networks or services.
	Connection Kind = "connection_error"
	// NotFound covers identifiers that no longer resolve to a message.
	NotFound Kind = "not_found_error"
	// Configuration covers missing credentials or identifiers for a
	// feature that is being invoked.
	Configuration Kind = "configuration_error"
	// Generation covers text-generation service failures.
	Generation Kind = "generation_error"
	// Persistence covers draft creation rejected by the mail store.
	Persistence Kind = "persistence_error"

	// Internal is the fallback for errors that escaped the taxonomy.
	// It should not appear in practice; KindOf returns it so the tool
	// envelope always has a kind to report.
	Internal Kind = "internal_error"
)

// Error is a tagged error: a kind, a human-readable message, and an
// optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an error of the given kind wrapping an underlying cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of err, or Internal if err carries no *Error.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Internal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
