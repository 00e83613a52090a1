// ABOUTME: Unit tests for MockStore to ensure behavior matches SQLiteStore
// ABOUTME: Focuses on ordering, copies, and injected append failures

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockStore_AppendAndList(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()

	base := time.Now().UTC()
	require.NoError(t, store.Append(ctx, &Event{Kind: EventProblemReported, Ticket: "12345", CreatedAt: base.Add(time.Second)}))
	require.NoError(t, store.Append(ctx, &Event{Kind: EventTicketOpened, Ticket: "12345", CreatedAt: base}))
	require.NoError(t, store.Append(ctx, &Event{Kind: EventTicketOpened, Ticket: "54321"}))

	got, err := store.ListByTicket(ctx, "12345", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, EventTicketOpened, got[0].Kind)
	assert.Equal(t, EventProblemReported, got[1].Kind)

	assert.Equal(t, []EventKind{EventProblemReported, EventTicketOpened, EventTicketOpened}, store.Kinds())
}

func TestMockStore_ReturnsCopies(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()

	event := &Event{ID: "evt-1", Kind: EventProblemReported, Ticket: "12345", Text: "original"}
	require.NoError(t, store.Append(ctx, event))
	event.Text = "mutated"

	got, err := store.GetEvent(ctx, "evt-1")
	require.NoError(t, err)
	assert.Equal(t, "original", got.Text)
}

func TestMockStore_AppendErr(t *testing.T) {
	store := NewMockStore()
	store.AppendErr = errors.New("disk full")

	err := store.Append(context.Background(), &Event{Kind: EventTicketOpened, Ticket: "12345"})
	assert.EqualError(t, err, "disk full")
	assert.Empty(t, store.Events())
}

func TestMockStore_GetEvent_NotFound(t *testing.T) {
	_, err := NewMockStore().GetEvent(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}
