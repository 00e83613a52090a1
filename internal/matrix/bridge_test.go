// ABOUTME: Tests for the Matrix bridge filtering and transport methods
// ABOUTME: Uses an in-memory fake of the mautrix client calls

package matrix

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/2389/envision-bot/internal/config"
	"github.com/2389/envision-bot/internal/dedupe"
	"github.com/2389/envision-bot/internal/engine"
)

const botUser = "@envision:example.org"

type fakeAPI struct {
	mu          sync.Mutex
	sent        []*event.MessageEventContent
	sentTo      []id.RoomID
	typing      []bool
	joined      []id.RoomID
	members     map[id.RoomID]int
	memberCalls int
	names       map[id.UserID]string
	sendErr     error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		members: make(map[id.RoomID]int),
		names:   make(map[id.UserID]string),
	}
}

func (f *fakeAPI) SendMessageEvent(_ context.Context, roomID id.RoomID, _ event.Type, contentJSON interface{}, _ ...mautrix.ReqSendEvent) (*mautrix.RespSendEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, contentJSON.(*event.MessageEventContent))
	f.sentTo = append(f.sentTo, roomID)
	return &mautrix.RespSendEvent{EventID: "$sent"}, nil
}

func (f *fakeAPI) UserTyping(_ context.Context, _ id.RoomID, typing bool, _ time.Duration) (*mautrix.RespTyping, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typing = append(f.typing, typing)
	return &mautrix.RespTyping{}, nil
}

func (f *fakeAPI) GetDisplayName(_ context.Context, mxid id.UserID) (*mautrix.RespUserDisplayName, error) {
	name, ok := f.names[mxid]
	if !ok {
		return nil, errors.New("M_NOT_FOUND")
	}
	return &mautrix.RespUserDisplayName{DisplayName: name}, nil
}

func (f *fakeAPI) JoinedMembers(_ context.Context, roomID id.RoomID) (*mautrix.RespJoinedMembers, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.memberCalls++
	n, ok := f.members[roomID]
	if !ok {
		return nil, errors.New("M_FORBIDDEN")
	}
	joined := make(map[id.UserID]mautrix.JoinedMember, n)
	for i := 0; i < n; i++ {
		joined[id.UserID(string(rune('a'+i)))] = mautrix.JoinedMember{}
	}
	return &mautrix.RespJoinedMembers{Joined: joined}, nil
}

func (f *fakeAPI) JoinRoomByID(_ context.Context, roomID id.RoomID) (*mautrix.RespJoinRoom, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joined = append(f.joined, roomID)
	return &mautrix.RespJoinRoom{RoomID: roomID}, nil
}

type collector struct {
	mu   sync.Mutex
	msgs []engine.Inbound
}

func (c *collector) Submit(msg engine.Inbound) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
	return true
}

func newTestBridge(t *testing.T, cfg config.MatrixConfig) (*Bridge, *fakeAPI) {
	t.Helper()
	if cfg.UserID == "" {
		cfg.UserID = botUser
	}
	seen := dedupe.New(time.Minute, 100)
	t.Cleanup(seen.Close)

	fake := newFakeAPI()
	return newBridge(cfg, fake, seen, nil), fake
}

func textEvent(eventID, room, sender, body string) *event.Event {
	return &event.Event{
		ID:        id.EventID(eventID),
		RoomID:    id.RoomID(room),
		Sender:    id.UserID(sender),
		Type:      event.EventMessage,
		Timestamp: time.Now().UnixMilli(),
		Content: event.Content{Parsed: &event.MessageEventContent{
			MsgType: event.MsgText,
			Body:    body,
		}},
	}
}

func TestToInbound_DirectMessage(t *testing.T) {
	b, fake := newTestBridge(t, config.MatrixConfig{})
	fake.members["!dm:example.org"] = 2

	msg, ok := b.toInbound(context.Background(), textEvent("$1", "!dm:example.org", "@ana:example.org", "oi"))
	require.True(t, ok)
	assert.Equal(t, engine.Inbound{
		ID:     "$1",
		From:   "!dm:example.org",
		Sender: "@ana:example.org",
		Body:   "oi",
	}, msg)
}

func TestToInbound_Filters(t *testing.T) {
	tests := []struct {
		name string
		evt  func() *event.Event
	}{
		{
			name: "own message",
			evt:  func() *event.Event { return textEvent("$1", "!dm:example.org", botUser, "menu") },
		},
		{
			name: "not text",
			evt: func() *event.Event {
				evt := textEvent("$2", "!dm:example.org", "@ana:example.org", "photo.jpg")
				evt.Content.Parsed = &event.MessageEventContent{MsgType: event.MsgImage, Body: "photo.jpg"}
				return evt
			},
		},
		{
			name: "sent before start",
			evt: func() *event.Event {
				evt := textEvent("$3", "!dm:example.org", "@ana:example.org", "oi")
				evt.Timestamp = time.Now().Add(-time.Hour).UnixMilli()
				return evt
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, fake := newTestBridge(t, config.MatrixConfig{})
			fake.members["!dm:example.org"] = 2
			b.startedAt = time.Now().Add(-time.Minute)

			_, ok := b.toInbound(context.Background(), tt.evt())
			assert.False(t, ok)
		})
	}
}

func TestToInbound_DuplicateEvent(t *testing.T) {
	b, fake := newTestBridge(t, config.MatrixConfig{})
	fake.members["!dm:example.org"] = 2
	evt := textEvent("$1", "!dm:example.org", "@ana:example.org", "oi")

	_, ok := b.toInbound(context.Background(), evt)
	require.True(t, ok)
	_, ok = b.toInbound(context.Background(), evt)
	assert.False(t, ok)
}

func TestToInbound_AllowedUsers(t *testing.T) {
	b, fake := newTestBridge(t, config.MatrixConfig{AllowedUsers: []string{"@ana:example.org"}})
	fake.members["!dm:example.org"] = 2

	_, ok := b.toInbound(context.Background(), textEvent("$1", "!dm:example.org", "@ana:example.org", "oi"))
	assert.True(t, ok)
	_, ok = b.toInbound(context.Background(), textEvent("$2", "!dm:example.org", "@eve:example.org", "oi"))
	assert.False(t, ok)
}

func TestToInbound_GroupRoomCached(t *testing.T) {
	b, fake := newTestBridge(t, config.MatrixConfig{})
	fake.members["!team:example.org"] = 5

	msg, ok := b.toInbound(context.Background(), textEvent("$1", "!team:example.org", "@ana:example.org", "oi"))
	require.True(t, ok)
	assert.True(t, msg.IsGroup)

	msg, ok = b.toInbound(context.Background(), textEvent("$2", "!team:example.org", "@ana:example.org", "1"))
	require.True(t, ok)
	assert.True(t, msg.IsGroup)
	assert.Equal(t, 1, fake.memberCalls)
}

func TestToInbound_MemberLookupFailureIsDirect(t *testing.T) {
	b, fake := newTestBridge(t, config.MatrixConfig{})

	msg, ok := b.toInbound(context.Background(), textEvent("$1", "!unknown:example.org", "@ana:example.org", "oi"))
	require.True(t, ok)
	assert.False(t, msg.IsGroup)

	_, _ = b.toInbound(context.Background(), textEvent("$2", "!unknown:example.org", "@ana:example.org", "oi"))
	assert.Equal(t, 2, fake.memberCalls)
}

func TestHandleMessageEvent_Submits(t *testing.T) {
	b, fake := newTestBridge(t, config.MatrixConfig{})
	fake.members["!dm:example.org"] = 2
	c := &collector{}
	b.submit = c

	b.handleMessageEvent(context.Background(), textEvent("$1", "!dm:example.org", "@ana:example.org", "12345"))
	b.handleMessageEvent(context.Background(), textEvent("$1", "!dm:example.org", "@ana:example.org", "12345"))

	require.Len(t, c.msgs, 1)
	assert.Equal(t, "12345", c.msgs[0].Body)
}

func memberEvent(room, sender, stateKey string, membership event.Membership) *event.Event {
	return &event.Event{
		ID:       "$member",
		RoomID:   id.RoomID(room),
		Sender:   id.UserID(sender),
		Type:     event.StateMember,
		StateKey: &stateKey,
		Content:  event.Content{Parsed: &event.MemberEventContent{Membership: membership}},
	}
}

func TestHandleMemberEvent_AutoJoin(t *testing.T) {
	b, fake := newTestBridge(t, config.MatrixConfig{AutoJoin: true})

	b.handleMemberEvent(context.Background(), memberEvent("!dm:example.org", "@ana:example.org", botUser, event.MembershipInvite))
	assert.Equal(t, []id.RoomID{"!dm:example.org"}, fake.joined)
}

func TestHandleMemberEvent_NoJoin(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.MatrixConfig
		evt  *event.Event
	}{
		{
			name: "auto join disabled",
			cfg:  config.MatrixConfig{},
			evt:  memberEvent("!dm:example.org", "@ana:example.org", botUser, event.MembershipInvite),
		},
		{
			name: "invite for someone else",
			cfg:  config.MatrixConfig{AutoJoin: true},
			evt:  memberEvent("!dm:example.org", "@ana:example.org", "@bob:example.org", event.MembershipInvite),
		},
		{
			name: "not an invite",
			cfg:  config.MatrixConfig{AutoJoin: true},
			evt:  memberEvent("!dm:example.org", "@ana:example.org", botUser, event.MembershipLeave),
		},
		{
			name: "inviter not allowed",
			cfg:  config.MatrixConfig{AutoJoin: true, AllowedUsers: []string{"@bob:example.org"}},
			evt:  memberEvent("!dm:example.org", "@ana:example.org", botUser, event.MembershipInvite),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, fake := newTestBridge(t, tt.cfg)
			b.handleMemberEvent(context.Background(), tt.evt)
			assert.Empty(t, fake.joined)
		})
	}
}

func TestHandleMemberEvent_InvalidatesGroupCache(t *testing.T) {
	b, fake := newTestBridge(t, config.MatrixConfig{})
	fake.members["!dm:example.org"] = 2
	assert.False(t, b.isGroup(context.Background(), "!dm:example.org"))

	fake.members["!dm:example.org"] = 3
	b.handleMemberEvent(context.Background(), memberEvent("!dm:example.org", "@carl:example.org", "@carl:example.org", event.MembershipJoin))

	assert.True(t, b.isGroup(context.Background(), "!dm:example.org"))
}

func TestSendText(t *testing.T) {
	b, fake := newTestBridge(t, config.MatrixConfig{})

	require.NoError(t, b.SendText(context.Background(), "!dm:example.org", "Até mais!"))
	require.Len(t, fake.sent, 1)
	assert.Equal(t, id.RoomID("!dm:example.org"), fake.sentTo[0])
	assert.Equal(t, "Até mais!", fake.sent[0].Body)
	assert.Equal(t, event.MsgText, fake.sent[0].MsgType)
	assert.Equal(t, []bool{false}, fake.typing)
}

func TestSendText_Error(t *testing.T) {
	b, fake := newTestBridge(t, config.MatrixConfig{})
	fake.sendErr = errors.New("connection reset")

	err := b.SendText(context.Background(), "!dm:example.org", "oi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Empty(t, fake.typing)
}

func TestShowTyping(t *testing.T) {
	b, fake := newTestBridge(t, config.MatrixConfig{})

	require.NoError(t, b.ShowTyping(context.Background(), "!dm:example.org"))
	assert.Equal(t, []bool{true}, fake.typing)
}

func TestDisplayName(t *testing.T) {
	b, fake := newTestBridge(t, config.MatrixConfig{})
	fake.names["@ana:example.org"] = "Ana Souza"

	assert.Equal(t, "Ana Souza", b.DisplayName(context.Background(), "@ana:example.org"))
	assert.Equal(t, "", b.DisplayName(context.Background(), "@ghost:example.org"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "olá", truncate("olá", 5))
	assert.Equal(t, "ol...", truncate("olá mundo", 2))
}
