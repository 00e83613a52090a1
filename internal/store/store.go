// ABOUTME: Ledger interface and event types for ticket activity records
// ABOUTME: Append-only audit of what users asked for, read by human staff

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// EventKind categorizes a ledger event
type EventKind string

const (
	EventTicketOpened       EventKind = "ticket_opened"
	EventTicketPrioritized  EventKind = "ticket_prioritized"
	EventProblemReported    EventKind = "problem_reported"
	EventHandoffRequested   EventKind = "handoff_requested"
	EventHandoffResumed     EventKind = "handoff_resumed"
	EventConversationClosed EventKind = "conversation_closed"
)

// Valid reports whether k is one of the known kinds.
func (k EventKind) Valid() bool {
	switch k {
	case EventTicketOpened, EventTicketPrioritized, EventProblemReported, EventHandoffRequested,
		EventHandoffResumed, EventConversationClosed:
		return true
	}
	return false
}

// Event is one entry in the ticket ledger. Human staff read the ledger to
// follow up on reports; the bot never reads it back.
type Event struct {
	ID          string
	Kind        EventKind
	UserID      string // conversation address of the user, e.g. a Matrix room ID
	Ticket      string
	DisplayName string
	Text        string // problem description, empty for other kinds
	CreatedAt   time.Time
}

// Ledger defines the interface for ticket event persistence
type Ledger interface {
	Append(ctx context.Context, event *Event) error
	GetEvent(ctx context.Context, id string) (*Event, error)
	ListByTicket(ctx context.Context, ticket string, limit int) ([]*Event, error)

	// Close releases any resources held by the ledger
	Close() error
}
