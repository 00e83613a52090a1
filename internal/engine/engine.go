// ABOUTME: Conversation engine: the per-user state machine behind the ticket menu
// ABOUTME: Commits each state transition before delivering its replies through the pacer

package engine

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/2389/envision-bot/internal/script"
	"github.com/2389/envision-bot/internal/session"
	"github.com/2389/envision-bot/internal/store"
)

// Menu choices.
const (
	choicePrioritize = "1"
	choiceProblem    = "2"
	choiceHandoff    = "3"
	choiceFinance    = "4"
	choiceSales      = "5"
	choiceClose      = "6"
)

// Engine decides the replies and state changes for each inbound message.
type Engine struct {
	transport Transport
	sessions  *session.Table
	script    *script.Script
	ledger    store.Ledger
	pacer     *Pacer
	logger    *slog.Logger
}

// Config holds the collaborators of an Engine. Ledger and Logger are optional.
type Config struct {
	Transport Transport
	Sessions  *session.Table
	Script    *script.Script
	Ledger    store.Ledger
	Pacer     *Pacer
	Logger    *slog.Logger
}

// New creates an engine. A nil Pacer sends without courtesy delays and a nil
// Script uses the embedded default.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sc := cfg.Script
	if sc == nil {
		sc = script.Default()
	}
	pacer := cfg.Pacer
	if pacer == nil {
		pacer = NewPacer(cfg.Transport, 0, 0, logger)
	}
	return &Engine{
		transport: cfg.Transport,
		sessions:  cfg.Sessions,
		script:    sc,
		ledger:    cfg.Ledger,
		pacer:     pacer,
		logger:    logger.With("component", "engine"),
	}
}

// Handle processes one inbound message. Unrecognized input is not an error:
// it produces a prompt or nothing. The returned error is always a transport
// failure, and the state change for the message has already been committed.
func (e *Engine) Handle(ctx context.Context, msg Inbound) error {
	if msg.IsGroup || msg.From == "" {
		return nil
	}

	e.sessions.Touch(msg.From)
	sess, _ := e.sessions.Get(msg.From)
	text := strings.TrimSpace(msg.Body)

	switch sess.State {
	case session.StateSuspended:
		return e.handleSuspended(ctx, sess, text)
	case session.StateProblemCapture:
		return e.handleCapture(ctx, sess, msg.Body)
	case session.StateMenuActive:
		return e.handleMenu(ctx, sess, text)
	default:
		return e.handleIntake(ctx, sess, msg, text)
	}
}

// handleIntake covers users without a ticket session: the greeting gate and
// the ticket number prompt.
func (e *Engine) handleIntake(ctx context.Context, sess session.Session, msg Inbound, text string) error {
	if e.script.IsGreeting(text) {
		name := e.script.FirstName(e.transport.DisplayName(ctx, msg.Sender))
		e.sessions.Greet(sess.UserID, name)
		return e.pacer.Send(ctx, sess.UserID,
			script.Render(e.script.Welcome, script.NameData{Name: name}),
			e.script.FallbackContact,
		)
	}

	if sess.State == session.StateUnknown {
		// Strict first message gate: only a ticket number gets a hint.
		if script.IsTicketNumber(text) {
			return e.sendTicketPrompt(ctx, sess, msg)
		}
		e.logger.Debug("ignoring message before greeting", "user", sess.UserID)
		return nil
	}

	if !script.IsTicketNumber(text) {
		return e.sendTicketPrompt(ctx, sess, msg)
	}

	name := sess.DisplayName
	if name == "" {
		name = e.script.FirstName(e.transport.DisplayName(ctx, msg.Sender))
	}
	created, err := e.sessions.Create(sess.UserID, text, name)
	if errors.Is(err, session.ErrSessionExists) {
		// First ticket wins; a later number is ordinary menu input.
		return e.handleMenu(ctx, created, text)
	}

	e.logger.Info("ticket created",
		"user", created.UserID,
		"ticket", created.Ticket,
		"name", created.DisplayName,
	)
	e.record(ctx, store.EventTicketOpened, created, "")

	return e.pacer.Send(ctx, created.UserID, e.script.Menu)
}

func (e *Engine) sendTicketPrompt(ctx context.Context, sess session.Session, msg Inbound) error {
	name := sess.DisplayName
	if name == "" {
		name = e.script.FirstName(e.transport.DisplayName(ctx, msg.Sender))
	}
	return e.pacer.Send(ctx, sess.UserID, script.Render(e.script.TicketPrompt, script.NameData{Name: name}))
}

// handleMenu dispatches a menu choice. Unknown choices are ignored.
func (e *Engine) handleMenu(ctx context.Context, sess session.Session, text string) error {
	if e.script.IsBack(text) {
		return e.pacer.Send(ctx, sess.UserID, e.script.BackToMenu, e.script.Menu)
	}

	switch text {
	case choicePrioritize:
		e.record(ctx, store.EventTicketPrioritized, sess, "")
		return e.pacer.Send(ctx, sess.UserID, e.script.Prioritize...)

	case choiceProblem:
		if !e.sessions.BeginCapture(sess.UserID) {
			return nil
		}
		return e.pacer.Send(ctx, sess.UserID, e.script.ProblemPrompt)

	case choiceHandoff:
		if err := e.sessions.Suspend(sess.UserID); err != nil {
			return nil
		}
		e.logger.Info("handoff requested", "user", sess.UserID, "ticket", sess.Ticket)
		e.record(ctx, store.EventHandoffRequested, sess, "")
		return e.pacer.Send(ctx, sess.UserID, e.script.Handoff)

	case choiceFinance:
		return e.pacer.Send(ctx, sess.UserID, e.script.Finance)

	case choiceSales:
		return e.pacer.Send(ctx, sess.UserID, e.script.Sales)

	case choiceClose:
		e.sessions.Close(sess.UserID)
		e.logger.Info("conversation closed", "user", sess.UserID, "ticket", sess.Ticket)
		e.record(ctx, store.EventConversationClosed, sess, "")
		return e.pacer.Send(ctx, sess.UserID, e.script.Closing...)
	}

	e.logger.Debug("ignoring unknown menu choice", "user", sess.UserID)
	return nil
}

// handleCapture consumes the one message a pending problem capture waits for.
func (e *Engine) handleCapture(ctx context.Context, sess session.Session, body string) error {
	text := strings.TrimSpace(body)

	if e.script.IsBack(text) {
		e.sessions.EndCapture(sess.UserID)
		return e.pacer.Send(ctx, sess.UserID, e.script.BackToMenu, e.script.Menu)
	}

	// Choosing the problem option again while a capture is pending is a no-op.
	if text == choiceProblem {
		return nil
	}

	if err := e.sessions.SetProblem(sess.UserID, body); err != nil {
		return nil
	}

	e.logger.Info("problem registered",
		"user", sess.UserID,
		"ticket", sess.Ticket,
		"name", sess.DisplayName,
	)
	e.record(ctx, store.EventProblemReported, sess, body)

	return e.pacer.Send(ctx, sess.UserID, e.script.ProblemAck)
}

// handleSuspended drops everything except the words that end a hand-off.
func (e *Engine) handleSuspended(ctx context.Context, sess session.Session, text string) error {
	if !e.script.IsResume(text) {
		e.logger.Debug("dropping message while suspended", "user", sess.UserID)
		return nil
	}
	if !e.sessions.Resume(sess.UserID) {
		return nil
	}

	e.logger.Info("handoff resumed", "user", sess.UserID, "ticket", sess.Ticket)
	e.record(ctx, store.EventHandoffResumed, sess, "")
	return e.pacer.Send(ctx, sess.UserID, e.script.Resumed, e.script.Menu)
}

// record appends to the ledger when one is configured. Failures are logged
// and never change the reply.
func (e *Engine) record(ctx context.Context, kind store.EventKind, sess session.Session, text string) {
	if e.ledger == nil {
		return
	}
	event := &store.Event{
		Kind:        kind,
		UserID:      sess.UserID,
		Ticket:      sess.Ticket,
		DisplayName: sess.DisplayName,
		Text:        text,
	}
	if err := e.ledger.Append(ctx, event); err != nil {
		e.logger.Warn("failed to record ledger event",
			"kind", kind,
			"ticket", sess.Ticket,
			"error", err,
		)
	}
}
