// ABOUTME: SQLite implementation of the Ledger interface using modernc.org/sqlite
// ABOUTME: Creates the ticket_events table on open and stores fixed-width UTC timestamps

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// timeLayout is fixed-width so created_at sorts lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// defaultListLimit caps ListByTicket when callers pass a non-positive limit.
const defaultListLimit = 100

// SQLiteStore implements the Ledger interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite ledger at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite ledger initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS ticket_events (
			event_id     TEXT PRIMARY KEY,
			kind         TEXT NOT NULL,
			user_id      TEXT NOT NULL,
			ticket       TEXT NOT NULL,
			display_name TEXT NOT NULL DEFAULT '',
			text         TEXT NOT NULL DEFAULT '',
			created_at   TEXT NOT NULL,

			CHECK (kind IN (
				'ticket_opened',
				'ticket_prioritized',
				'problem_reported',
				'handoff_requested',
				'handoff_resumed',
				'conversation_closed'
			))
		);

		CREATE INDEX IF NOT EXISTS idx_ticket_events_ticket
			ON ticket_events(ticket, created_at);
		CREATE INDEX IF NOT EXISTS idx_ticket_events_user
			ON ticket_events(user_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Append persists a ledger event. A missing ID or timestamp is filled in.
func (s *SQLiteStore) Append(ctx context.Context, event *Event) error {
	if !event.Kind.Valid() {
		return fmt.Errorf("invalid event kind %q", event.Kind)
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO ticket_events (event_id, kind, user_id, ticket, display_name, text, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		string(event.Kind),
		event.UserID,
		event.Ticket,
		event.DisplayName,
		event.Text,
		event.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}

	s.logger.Debug("saved ledger event",
		"event_id", event.ID,
		"kind", event.Kind,
		"ticket", event.Ticket,
	)
	return nil
}

// GetEvent retrieves a single event by ID
func (s *SQLiteStore) GetEvent(ctx context.Context, id string) (*Event, error) {
	query := `
		SELECT event_id, kind, user_id, ticket, display_name, text, created_at
		FROM ticket_events
		WHERE event_id = ?
	`

	event, err := scanEvent(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying event: %w", err)
	}
	return event, nil
}

// ListByTicket returns the events of a ticket, oldest first.
func (s *SQLiteStore) ListByTicket(ctx context.Context, ticket string, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := `
		SELECT event_id, kind, user_id, ticket, display_name, text, created_at
		FROM ticket_events
		WHERE ticket = ?
		ORDER BY created_at ASC, rowid ASC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, ticket, limit)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}
	return events, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*Event, error) {
	var (
		event     Event
		kind      string
		createdAt string
	)
	if err := row.Scan(&event.ID, &kind, &event.UserID, &event.Ticket,
		&event.DisplayName, &event.Text, &createdAt); err != nil {
		return nil, err
	}

	ts, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at %q: %w", createdAt, err)
	}
	event.Kind = EventKind(kind)
	event.CreatedAt = ts
	return &event, nil
}
