// ABOUTME: Per-user session table with a tagged conversation state per record
// ABOUTME: Replaces separate ticket, suspension, and listener collections with one map

package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrSessionExists is returned when a ticket session is created for a user that already has one
var ErrSessionExists = errors.New("session already exists")

// ErrNotFound is returned when an operation needs a ticket session and the user has none
var ErrNotFound = errors.New("session not found")

// State is the position of a user in the conversation.
type State int

const (
	StateUnknown State = iota
	StateAwaitingTicket
	StateMenuActive
	StateProblemCapture
	StateSuspended
)

// String returns the log-friendly name of the state.
func (s State) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateAwaitingTicket:
		return "awaiting_ticket"
	case StateMenuActive:
		return "menu_active"
	case StateProblemCapture:
		return "problem_capture"
	case StateSuspended:
		return "suspended"
	default:
		return "invalid"
	}
}

// Session is a snapshot of one user's record.
type Session struct {
	UserID      string
	State       State
	Ticket      string // 5-digit ticket number, empty before the ticket is known
	DisplayName string
	Problem     string
	CreatedAt   time.Time
	LastSeen    time.Time
}

// HasTicket reports whether the record is a full ticket session.
func (s Session) HasTicket() bool {
	return s.Ticket != ""
}

// sweepInterval is how often Run checks for idle records.
const sweepInterval = time.Minute

// Table is the process-wide session table. It is safe for concurrent use.
type Table struct {
	mu          sync.Mutex
	records     map[string]*Session
	idleTimeout time.Duration
	now         func() time.Time
	logger      *slog.Logger
}

// NewTable creates an empty table. Records idle longer than idleTimeout are
// evicted by Sweep; zero disables eviction. Pass nil logger for default.
func NewTable(idleTimeout time.Duration, logger *slog.Logger) *Table {
	if logger == nil {
		logger = slog.Default()
	}
	return &Table{
		records:     make(map[string]*Session),
		idleTimeout: idleTimeout,
		now:         time.Now,
		logger:      logger.With("component", "sessions"),
	}
}

// Get returns a copy of the user's record. Users without a record get a zero
// Session in StateUnknown and ok=false.
func (t *Table) Get(userID string) (Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[userID]
	if !ok {
		return Session{UserID: userID, State: StateUnknown}, false
	}
	return *rec, true
}

// Greet records that the user sent a recognized greeting. Unknown users move
// to StateAwaitingTicket; users in any other state are only touched.
func (t *Table) Greet(userID, displayName string) Session {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	rec, ok := t.records[userID]
	if !ok {
		rec = &Session{
			UserID:    userID,
			State:     StateAwaitingTicket,
			CreatedAt: now,
		}
		t.records[userID] = rec
	}
	if displayName != "" && !rec.HasTicket() {
		rec.DisplayName = displayName
	}
	rec.LastSeen = now
	return *rec
}

// Create opens a ticket session and moves the user to StateMenuActive.
// The first ticket wins: a user that already has one gets ErrSessionExists.
func (t *Table) Create(userID, ticket, displayName string) (Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	rec, ok := t.records[userID]
	if ok && rec.HasTicket() {
		return *rec, ErrSessionExists
	}
	if !ok {
		rec = &Session{UserID: userID, CreatedAt: now}
		t.records[userID] = rec
	}
	rec.State = StateMenuActive
	rec.Ticket = ticket
	rec.DisplayName = displayName
	rec.Problem = ""
	rec.LastSeen = now
	return *rec, nil
}

// SetProblem stores the problem description on the user's ticket session,
// replacing any earlier one. A pending capture is consumed.
func (t *Table) SetProblem(userID, text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[userID]
	if !ok || !rec.HasTicket() {
		return ErrNotFound
	}
	rec.Problem = text
	if rec.State == StateProblemCapture {
		rec.State = StateMenuActive
	}
	rec.LastSeen = t.now()
	return nil
}

// Delete forgets the user entirely.
func (t *Table) Delete(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.records, userID)
}

// Close drops the ticket session but remembers that the user already greeted,
// so the next 5-digit message opens a fresh session.
func (t *Table) Close(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[userID]
	if !ok {
		return
	}
	now := t.now()
	t.records[userID] = &Session{
		UserID:      userID,
		State:       StateAwaitingTicket,
		DisplayName: rec.DisplayName,
		CreatedAt:   now,
		LastSeen:    now,
	}
}

// Suspend hands the user over to a human agent. Suspending a suspended user
// is a no-op. A pending capture is abandoned.
func (t *Table) Suspend(userID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[userID]
	if !ok || !rec.HasTicket() {
		return ErrNotFound
	}
	rec.State = StateSuspended
	rec.LastSeen = t.now()
	return nil
}

// IsSuspended reports whether automated replies are disabled for the user.
func (t *Table) IsSuspended(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[userID]
	return ok && rec.State == StateSuspended
}

// Resume returns a suspended user to the menu. It reports whether the user
// was suspended.
func (t *Table) Resume(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[userID]
	if !ok || rec.State != StateSuspended {
		return false
	}
	rec.State = StateMenuActive
	rec.LastSeen = t.now()
	return true
}

// BeginCapture moves a user from the menu into problem capture. It returns
// false, changing nothing, when a capture is already pending or the user is
// not at the menu.
func (t *Table) BeginCapture(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[userID]
	if !ok || rec.State != StateMenuActive {
		return false
	}
	rec.State = StateProblemCapture
	rec.LastSeen = t.now()
	return true
}

// EndCapture leaves problem capture without storing a report. It reports
// whether a capture was pending.
func (t *Table) EndCapture(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[userID]
	if !ok || rec.State != StateProblemCapture {
		return false
	}
	rec.State = StateMenuActive
	rec.LastSeen = t.now()
	return true
}

// Touch refreshes the idle clock of an existing record.
func (t *Table) Touch(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if rec, ok := t.records[userID]; ok {
		rec.LastSeen = t.now()
	}
}

// Len returns the number of records, ticket sessions or not.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}

// Sweep removes records idle since before now minus the idle timeout and
// returns how many were removed.
func (t *Table) Sweep(now time.Time) int {
	if t.idleTimeout <= 0 {
		return 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for id, rec := range t.records {
		if now.Sub(rec.LastSeen) > t.idleTimeout {
			delete(t.records, id)
			removed++
			t.logger.Info("session evicted",
				"user", id,
				"state", rec.State.String(),
				"ticket", rec.Ticket,
			)
		}
	}
	return removed
}

// Run sweeps idle records until ctx is cancelled.
func (t *Table) Run(ctx context.Context) {
	if t.idleTimeout <= 0 {
		return
	}

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.Sweep(t.now())
		case <-ctx.Done():
			return
		}
	}
}
