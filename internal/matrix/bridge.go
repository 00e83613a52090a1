// ABOUTME: Matrix bridge for envision-bot: sync loop, inbound filtering, and reply delivery
// ABOUTME: Implements the engine transport on top of a mautrix client

package matrix

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/2389/envision-bot/internal/config"
	"github.com/2389/envision-bot/internal/dedupe"
	"github.com/2389/envision-bot/internal/engine"
)

// deviceDisplayName is shown in the account's session list after password login.
const deviceDisplayName = "envision-bot"

// typingTimeout bounds how long a typing indicator lasts if it is never cleared.
const typingTimeout = 10 * time.Second

// sendTimeout caps a single Matrix API call made on behalf of a reply.
const sendTimeout = 30 * time.Second

// Submitter accepts inbound messages for processing. engine.Dispatcher implements it.
type Submitter interface {
	Submit(msg engine.Inbound) bool
}

// api is the part of *mautrix.Client used outside the sync loop.
type api interface {
	SendMessageEvent(ctx context.Context, roomID id.RoomID, eventType event.Type, contentJSON interface{}, extra ...mautrix.ReqSendEvent) (*mautrix.RespSendEvent, error)
	UserTyping(ctx context.Context, roomID id.RoomID, typing bool, timeout time.Duration) (*mautrix.RespTyping, error)
	GetDisplayName(ctx context.Context, mxid id.UserID) (*mautrix.RespUserDisplayName, error)
	JoinedMembers(ctx context.Context, roomID id.RoomID) (*mautrix.RespJoinedMembers, error)
	JoinRoomByID(ctx context.Context, roomID id.RoomID) (*mautrix.RespJoinRoom, error)
}

// Bridge connects a Matrix account to the conversation engine.
type Bridge struct {
	cfg    config.MatrixConfig
	client *mautrix.Client
	api    api
	seen   *dedupe.Cache
	logger *slog.Logger

	submit    Submitter
	startedAt time.Time
	allowed   map[id.UserID]struct{}

	// groups caches whether a room has more than two joined members.
	groups sync.Map
	ready  sync.Once
}

// NewBridge creates a bridge for the configured account. seen may be nil to
// disable event deduplication.
func NewBridge(cfg config.MatrixConfig, seen *dedupe.Cache, logger *slog.Logger) (*Bridge, error) {
	client, err := mautrix.NewClient(cfg.Homeserver, id.UserID(cfg.UserID), cfg.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("creating matrix client: %w", err)
	}
	client.DeviceID = id.DeviceID(cfg.DeviceID)

	b := newBridge(cfg, client, seen, logger)
	b.client = client
	return b, nil
}

func newBridge(cfg config.MatrixConfig, client api, seen *dedupe.Cache, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	allowed := make(map[id.UserID]struct{}, len(cfg.AllowedUsers))
	for _, u := range cfg.AllowedUsers {
		allowed[id.UserID(u)] = struct{}{}
	}
	return &Bridge{
		cfg:     cfg,
		api:     client,
		seen:    seen,
		logger:  logger.With("component", "matrix"),
		allowed: allowed,
	}
}

// Client returns the underlying mautrix client.
func (b *Bridge) Client() *mautrix.Client {
	return b.client
}

// UserID returns the account the bridge is logged in as.
func (b *Bridge) UserID() id.UserID {
	return b.client.UserID
}

// Login authenticates with a password when no access token is configured.
// With a token the client is already authenticated and Login is a no-op.
func (b *Bridge) Login(ctx context.Context) error {
	if !b.cfg.UsesPassword() {
		b.logger.Info("using stored access token", "user_id", b.cfg.UserID)
		return nil
	}

	resp, err := b.client.Login(ctx, &mautrix.ReqLogin{
		Type: mautrix.AuthTypePassword,
		Identifier: mautrix.UserIdentifier{
			Type: mautrix.IdentifierTypeUser,
			User: b.cfg.Username,
		},
		Password:                 b.cfg.Password,
		DeviceID:                 id.DeviceID(b.cfg.DeviceID),
		InitialDeviceDisplayName: deviceDisplayName,
		StoreCredentials:         true,
	})
	if err != nil {
		return fmt.Errorf("password login: %w", err)
	}

	b.logger.Info("logged in", "user_id", resp.UserID, "device_id", resp.DeviceID)
	return nil
}

// Run syncs with the homeserver and feeds text messages to submit until ctx
// is cancelled. Events sent before Run started are skipped.
func (b *Bridge) Run(ctx context.Context, submit Submitter) error {
	b.submit = submit
	b.startedAt = time.Now()

	syncer, ok := b.client.Syncer.(*mautrix.DefaultSyncer)
	if !ok {
		return fmt.Errorf("unexpected syncer type: %T", b.client.Syncer)
	}
	syncer.OnEventType(event.EventMessage, b.handleMessageEvent)
	syncer.OnEventType(event.StateMember, b.handleMemberEvent)
	syncer.OnSync(b.onSync)

	b.logger.Info("connecting to matrix homeserver",
		"homeserver", b.cfg.Homeserver,
		"user_id", b.client.UserID,
	)

	err := b.client.SyncWithContext(ctx)
	if err == nil || errors.Is(err, context.Canceled) || ctx.Err() != nil {
		b.logger.Info("matrix sync stopped")
		return nil
	}
	return fmt.Errorf("matrix sync failed: %w", err)
}

func (b *Bridge) onSync(_ context.Context, _ *mautrix.RespSync, _ string) bool {
	b.ready.Do(func() {
		b.logger.Info("bot ready", "user_id", b.client.UserID)
	})
	return true
}

func (b *Bridge) handleMessageEvent(ctx context.Context, evt *event.Event) {
	msg, ok := b.toInbound(ctx, evt)
	if !ok {
		return
	}

	b.logger.Debug("received message",
		"room", msg.From,
		"sender", msg.Sender,
		"content", truncate(msg.Body, 50),
	)
	if !b.submit.Submit(msg) {
		b.logger.Warn("dropping message after shutdown", "room", msg.From)
	}
}

// toInbound filters a message event and converts it. It reports false for
// events the bot never answers: its own, non-text, stale, duplicate, or from
// users outside the allow list. Group rooms are converted with IsGroup set.
func (b *Bridge) toInbound(ctx context.Context, evt *event.Event) (engine.Inbound, bool) {
	if evt.Sender == b.ownUserID() {
		return engine.Inbound{}, false
	}

	content, ok := evt.Content.Parsed.(*event.MessageEventContent)
	if !ok || content.MsgType != event.MsgText {
		return engine.Inbound{}, false
	}

	if !b.startedAt.IsZero() && time.UnixMilli(evt.Timestamp).Before(b.startedAt) {
		return engine.Inbound{}, false
	}

	if b.seen != nil && b.seen.Seen(evt.ID.String()) {
		b.logger.Debug("skipping duplicate event", "event_id", evt.ID)
		return engine.Inbound{}, false
	}

	if !b.isUserAllowed(evt.Sender) {
		b.logger.Debug("ignoring message from non-allowed user", "sender", evt.Sender)
		return engine.Inbound{}, false
	}

	return engine.Inbound{
		ID:      evt.ID.String(),
		From:    evt.RoomID.String(),
		Sender:  evt.Sender.String(),
		Body:    content.Body,
		IsGroup: b.isGroup(ctx, evt.RoomID),
	}, true
}

func (b *Bridge) handleMemberEvent(ctx context.Context, evt *event.Event) {
	b.groups.Delete(evt.RoomID)

	if !b.cfg.AutoJoin || evt.GetStateKey() != b.ownUserID().String() {
		return
	}
	member := evt.Content.AsMember()
	if member.Membership != event.MembershipInvite {
		return
	}
	if !b.isUserAllowed(evt.Sender) {
		b.logger.Info("ignoring invite from non-allowed user", "room", evt.RoomID, "sender", evt.Sender)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	if _, err := b.api.JoinRoomByID(ctx, evt.RoomID); err != nil {
		b.logger.Warn("failed to join room", "room", evt.RoomID, "error", err)
		return
	}
	b.logger.Info("joined room", "room", evt.RoomID, "inviter", evt.Sender)
}

func (b *Bridge) isUserAllowed(user id.UserID) bool {
	if len(b.allowed) == 0 {
		return true
	}
	_, ok := b.allowed[user]
	return ok
}

// isGroup reports whether the room has more than two joined members. A
// failed lookup counts as a direct chat and is not cached.
func (b *Bridge) isGroup(ctx context.Context, roomID id.RoomID) bool {
	if v, ok := b.groups.Load(roomID); ok {
		return v.(bool)
	}

	resp, err := b.api.JoinedMembers(ctx, roomID)
	if err != nil {
		b.logger.Debug("failed to fetch room members", "room", roomID, "error", err)
		return false
	}
	group := len(resp.Joined) > 2
	b.groups.Store(roomID, group)
	return group
}

func (b *Bridge) ownUserID() id.UserID {
	if b.client != nil {
		return b.client.UserID
	}
	return id.UserID(b.cfg.UserID)
}

// SendText posts a reply to a room, clearing the typing indicator afterwards.
func (b *Bridge) SendText(ctx context.Context, to, text string) error {
	roomID := id.RoomID(to)

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	if _, err := b.api.SendMessageEvent(sendCtx, roomID, event.EventMessage, textContent(text)); err != nil {
		return fmt.Errorf("sending message to %s: %w", to, err)
	}

	if _, err := b.api.UserTyping(sendCtx, roomID, false, 0); err != nil {
		b.logger.Debug("failed to clear typing indicator", "room", to, "error", err)
	}
	return nil
}

// ShowTyping turns on the typing indicator in a room.
func (b *Bridge) ShowTyping(ctx context.Context, to string) error {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	_, err := b.api.UserTyping(ctx, id.RoomID(to), true, typingTimeout)
	return err
}

// DisplayName looks up a user's profile name, returning "" when unavailable.
func (b *Bridge) DisplayName(ctx context.Context, sender string) string {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	resp, err := b.api.GetDisplayName(ctx, id.UserID(sender))
	if err != nil {
		b.logger.Debug("failed to fetch display name", "sender", sender, "error", err)
		return ""
	}
	return resp.DisplayName
}

// truncate shortens a string to the given max rune count, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}

var _ engine.Transport = (*Bridge)(nil)
