// Package queue defines message payloads exchanged over the message broker
// and the background consumer that drains them.
package queue

// MailQueuedEvent is published whenever an auth flow wants a message
// delivered: verification codes, password-reset links, sign-in alerts.
// It carries the fully rendered message so the consumer needs no access
// to the primary database.
type MailQueuedEvent struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
	QueuedAt string `json:"queued_at"`
}
