package transport

import "context"

// Recipient identifies a Messenger recipient by its page-scoped ID (PSID).
// The ID is opaque to us; we only store and echo it.
type Recipient struct {
	ID string
}

// Message is one inbound chat message, already unwrapped from the
// webhook envelope.
type Message struct {
	SenderID string
	Text     string
}

// MessageRef identifies a message we sent.
type MessageRef struct {
	RecipientID string
	MessageID   string
}

// Sender delivers text to a single recipient.
//
// Implementations must be safe for concurrent use: the broadcaster fans out
// independent sends and the webhook handler replies from request goroutines.
type Sender interface {
	SendText(ctx context.Context, to Recipient, text string) (MessageRef, error)
}
