package mail

import "time"

// Message is an immutable snapshot of a message fetched from the mail store.
//
// ID is the decimal INBOX UID. UIDs are only guaranteed to resolve within the
// current session: a mailbox UIDVALIDITY change (or the message being deleted
// or expunged) invalidates them, so identifiers must not be persisted across
// server restarts.
type Message struct {
	ID      string    `json:"id"`
	From    string    `json:"from"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	Date    time.Time `json:"date"`
}
