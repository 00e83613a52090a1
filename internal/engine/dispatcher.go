// ABOUTME: Per-user FIFO dispatch of inbound messages to the engine
// ABOUTME: One worker per active user keeps arrival order; different users run in parallel

package engine

import (
	"context"
	"log/slog"
	"sync"
)

// Dispatcher serializes inbound messages per user. Messages from one user are
// handled strictly in arrival order, including their courtesy delays, while
// different users are served concurrently.
type Dispatcher struct {
	ctx     context.Context
	handler Handler
	logger  *slog.Logger

	mu     sync.Mutex
	queues map[string][]Inbound // present while a worker for the user is running
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher whose workers run under ctx. Cancelling
// ctx aborts in-flight courtesy delays. Pass nil logger for default.
func NewDispatcher(ctx context.Context, handler Handler, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		ctx:     ctx,
		handler: handler,
		logger:  logger.With("component", "dispatcher"),
		queues:  make(map[string][]Inbound),
	}
}

// Submit queues msg behind any pending messages from the same user. It
// returns false once the dispatcher is closed.
func (d *Dispatcher) Submit(msg Inbound) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return false
	}

	queue, running := d.queues[msg.From]
	d.queues[msg.From] = append(queue, msg)
	if !running {
		d.wg.Add(1)
		go d.drain(msg.From)
	}
	return true
}

// Pending returns the number of users with queued or in-flight messages.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queues)
}

// drain handles the user's queue until it is empty, then exits.
func (d *Dispatcher) drain(user string) {
	defer d.wg.Done()

	for {
		d.mu.Lock()
		queue := d.queues[user]
		if len(queue) == 0 {
			delete(d.queues, user)
			d.mu.Unlock()
			return
		}
		msg := queue[0]
		d.queues[user] = queue[1:]
		d.mu.Unlock()

		if err := d.handler.Handle(d.ctx, msg); err != nil {
			d.logger.Error("failed to handle message",
				"user", user,
				"event_id", msg.ID,
				"error", err,
			)
		}
	}
}

// Close stops accepting messages and waits for queued ones to be handled.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	d.wg.Wait()
}
