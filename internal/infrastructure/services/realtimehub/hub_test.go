package realtimehub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orris-inc/livedesk/internal/domain/shared/ids"
	"github.com/orris-inc/livedesk/internal/domain/shared/realtime"
	"github.com/orris-inc/livedesk/internal/infrastructure/presence"
	"github.com/orris-inc/livedesk/internal/infrastructure/pubsub"
	"github.com/orris-inc/livedesk/internal/shared/logger"
)

type mockRoomMembers struct {
	ListParticipantsFunc func(ctx context.Context, roomID ids.RoomID) ([]ids.UserID, error)
}

func (m *mockRoomMembers) ListParticipants(ctx context.Context, roomID ids.RoomID) ([]ids.UserID, error) {
	if m.ListParticipantsFunc != nil {
		return m.ListParticipantsFunc(ctx, roomID)
	}
	return nil, nil
}

type fakeBus struct {
	mu        sync.Mutex
	published []pubsub.RealtimeEnvelope
	inbound   []pubsub.RealtimeEnvelope
	err       error
}

func (b *fakeBus) Publish(ctx context.Context, env pubsub.RealtimeEnvelope) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.published = append(b.published, env)
	return nil
}

func (b *fakeBus) Subscribe(ctx context.Context, handler func(env pubsub.RealtimeEnvelope)) error {
	for _, env := range b.inbound {
		handler(env)
	}
	return nil
}

func newTestHub(members *mockRoomMembers) (*Hub, *presence.MemoryStore) {
	store := presence.NewMemoryStore()
	return NewHub(members, store, logger.NewNopLogger()), store
}

func drain(c *Client) []*Frame {
	var frames []*Frame
	for {
		select {
		case f, ok := <-c.Send:
			if !ok {
				return frames
			}
			frames = append(frames, f)
		default:
			return frames
		}
	}
}

func TestHub_RegisterRecordsPresence(t *testing.T) {
	ctx := context.Background()
	hub, store := newTestHub(&mockRoomMembers{})

	client, err := hub.Register(ctx, 7, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, client.ID)
	assert.Equal(t, 1, hub.ConnectionCount())

	conns, err := store.UserConnections(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, []ids.ConnectionID{client.ID}, conns)

	hub.Unregister(ctx, client.ID)
	assert.Zero(t, hub.ConnectionCount())

	conns, err = store.UserConnections(ctx, 7)
	require.NoError(t, err)
	assert.Empty(t, conns)

	_, open := <-client.Send
	assert.False(t, open)

	// Unknown connections are ignored.
	hub.Unregister(ctx, "missing")
}

func TestHub_SendToUserReachesEveryConnection(t *testing.T) {
	ctx := context.Background()
	hub, _ := newTestHub(&mockRoomMembers{})

	tab1, err := hub.Register(ctx, 7, nil)
	require.NoError(t, err)
	tab2, err := hub.Register(ctx, 7, nil)
	require.NoError(t, err)
	other, err := hub.Register(ctx, 8, nil)
	require.NoError(t, err)

	hub.SendToUser(ctx, 7, realtime.EventRoomUnread, realtime.UnreadPayload{RoomID: 3, UnreadCount: 2})

	for _, c := range []*Client{tab1, tab2} {
		frames := drain(c)
		require.Len(t, frames, 1)
		assert.Equal(t, realtime.EventRoomUnread, frames[0].Event)
		assert.JSONEq(t, `{"room_id":3,"unread_count":2}`, string(frames[0].Data))
	}
	assert.Empty(t, drain(other))
}

func TestHub_SendToRoomUsesParticipants(t *testing.T) {
	ctx := context.Background()
	members := &mockRoomMembers{
		ListParticipantsFunc: func(ctx context.Context, roomID ids.RoomID) ([]ids.UserID, error) {
			if roomID == 3 {
				return []ids.UserID{7, 9}, nil
			}
			return nil, errors.New("unexpected room")
		},
	}
	hub, _ := newTestHub(members)

	member, err := hub.Register(ctx, 7, nil)
	require.NoError(t, err)
	outsider, err := hub.Register(ctx, 8, nil)
	require.NoError(t, err)

	hub.SendToRoom(ctx, 3, realtime.EventTicketClosed, map[string]any{"ticket_id": 1})
	assert.Len(t, drain(member), 1)
	assert.Empty(t, drain(outsider))

	// Lookup failures drop the event.
	hub.SendToRoom(ctx, 4, realtime.EventTicketClosed, nil)
	assert.Empty(t, drain(member))
}

func TestHub_FullBufferDropsEvent(t *testing.T) {
	ctx := context.Background()
	hub, _ := newTestHub(&mockRoomMembers{})

	client, err := hub.Register(ctx, 7, nil)
	require.NoError(t, err)

	for range sendBufferSize + 5 {
		hub.SendToUser(ctx, 7, realtime.EventMessageNew, nil)
	}
	assert.Len(t, drain(client), sendBufferSize)
}

func TestClusterBroadcaster_DeliversLocallyAndPublishes(t *testing.T) {
	ctx := context.Background()
	members := &mockRoomMembers{
		ListParticipantsFunc: func(ctx context.Context, roomID ids.RoomID) ([]ids.UserID, error) {
			return []ids.UserID{7}, nil
		},
	}
	hub, _ := newTestHub(members)
	bus := &fakeBus{}
	b := NewClusterBroadcaster(hub, bus, logger.NewNopLogger())

	client, err := hub.Register(ctx, 7, nil)
	require.NoError(t, err)

	b.SendToUser(ctx, 7, realtime.EventAgentStatus, map[string]string{"status": "away"})
	b.SendToRoom(ctx, 3, realtime.EventMessageNew, map[string]int{"message_id": 11})

	assert.Len(t, drain(client), 2)
	require.Len(t, bus.published, 2)
	assert.Equal(t, pubsub.TargetUser, bus.published[0].Target)
	assert.EqualValues(t, 7, bus.published[0].UserID)
	assert.JSONEq(t, `{"status":"away"}`, string(bus.published[0].Payload))
	assert.Equal(t, pubsub.TargetRoom, bus.published[1].Target)
	assert.EqualValues(t, 3, bus.published[1].RoomID)

	// A failing relay still delivers locally.
	bus.err = errors.New("redis down")
	b.SendToUser(ctx, 7, realtime.EventAgentStatus, nil)
	assert.Len(t, drain(client), 1)
}

func TestClusterBroadcaster_RelayDeliversRemoteEvents(t *testing.T) {
	ctx := context.Background()
	members := &mockRoomMembers{
		ListParticipantsFunc: func(ctx context.Context, roomID ids.RoomID) ([]ids.UserID, error) {
			return []ids.UserID{7, 8}, nil
		},
	}
	hub, _ := newTestHub(members)
	bus := &fakeBus{inbound: []pubsub.RealtimeEnvelope{
		{Target: pubsub.TargetUser, UserID: 7, Event: realtime.EventRoomUnread, Payload: json.RawMessage(`{"unread_count":1}`)},
		{Target: pubsub.TargetRoom, RoomID: 3, Event: realtime.EventTicketAssigned},
		{Target: "broadcast", Event: "ignored"},
	}}
	b := NewClusterBroadcaster(hub, bus, logger.NewNopLogger())

	seven, err := hub.Register(ctx, 7, nil)
	require.NoError(t, err)
	eight, err := hub.Register(ctx, 8, nil)
	require.NoError(t, err)

	require.NoError(t, b.Relay(ctx))

	frames := drain(seven)
	require.Len(t, frames, 2)
	assert.Equal(t, realtime.EventRoomUnread, frames[0].Event)
	assert.JSONEq(t, `{"unread_count":1}`, string(frames[0].Data))
	assert.Equal(t, realtime.EventTicketAssigned, frames[1].Event)

	frames = drain(eight)
	require.Len(t, frames, 1)
	assert.Equal(t, realtime.EventTicketAssigned, frames[0].Event)

	// Relayed frames are not published again.
	assert.Empty(t, bus.published)
}
