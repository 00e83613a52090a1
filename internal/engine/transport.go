// ABOUTME: Transport contract and inbound message type for the conversation engine
// ABOUTME: Implemented by the Matrix bridge and by recording fakes in tests

package engine

import "context"

// Inbound is one message received from the messaging network.
type Inbound struct {
	ID      string // transport event ID, used for dedupe upstream
	From    string // conversation address; sessions are keyed by it and replies go to it
	Sender  string // author of the message, used for display name lookup
	Body    string
	IsGroup bool
}

// Transport is what the engine needs from the messaging network.
type Transport interface {
	SendText(ctx context.Context, to, text string) error
	ShowTyping(ctx context.Context, to string) error

	// DisplayName is best effort: it returns "" when the name is unavailable.
	DisplayName(ctx context.Context, sender string) string
}

// Handler processes inbound messages.
type Handler interface {
	Handle(ctx context.Context, msg Inbound) error
}
