// ABOUTME: Courtesy delay around outbound replies: typing indicator, pause, send, pause
// ABOUTME: Sends of one logical reply go out strictly in order; any send error aborts the rest

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Pacer sends replies with a typing indicator and pauses between messages.
type Pacer struct {
	transport Transport
	typing    time.Duration
	after     time.Duration
	sleep     func(ctx context.Context, d time.Duration) error
	logger    *slog.Logger
}

// NewPacer creates a pacer that shows typing for typing before each message
// and waits after once it is sent. Zero durations skip the pause.
func NewPacer(transport Transport, typing, after time.Duration, logger *slog.Logger) *Pacer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pacer{
		transport: transport,
		typing:    typing,
		after:     after,
		sleep:     sleepContext,
		logger:    logger.With("component", "pacer"),
	}
}

// Send delivers texts to the recipient in order. A failed typing indicator is
// logged and ignored; a failed send aborts the remaining texts.
func (p *Pacer) Send(ctx context.Context, to string, texts ...string) error {
	for i, text := range texts {
		if err := p.transport.ShowTyping(ctx, to); err != nil {
			p.logger.Debug("failed to show typing", "to", to, "error", err)
		}
		if err := p.sleep(ctx, p.typing); err != nil {
			return err
		}

		if err := p.transport.SendText(ctx, to, text); err != nil {
			return fmt.Errorf("sending reply %d of %d: %w", i+1, len(texts), err)
		}

		if err := p.sleep(ctx, p.after); err != nil {
			return err
		}
	}
	return nil
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
