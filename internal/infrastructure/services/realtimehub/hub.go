// Package realtimehub keeps the websocket connections of chat clients and
// pushes realtime events to them.
package realtimehub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/orris-inc/livedesk/internal/domain/presence"
	"github.com/orris-inc/livedesk/internal/domain/shared/ids"
	"github.com/orris-inc/livedesk/internal/shared/biztime"
	"github.com/orris-inc/livedesk/internal/shared/logger"
)

const sendBufferSize = 256

// Frame is the envelope written to clients.
type Frame struct {
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// RoomMembers resolves the users of a room for room-wide events.
type RoomMembers interface {
	ListParticipants(ctx context.Context, roomID ids.RoomID) ([]ids.UserID, error)
}

// Client is one websocket connection of a user.
type Client struct {
	ID          ids.ConnectionID
	UserID      ids.UserID
	Conn        *websocket.Conn
	Send        chan *Frame
	ConnectedAt time.Time
}

// Hub tracks local connections by user and implements realtime.Broadcaster
// for this instance.
type Hub struct {
	clients   map[ids.ConnectionID]*Client
	byUser    map[ids.UserID]map[ids.ConnectionID]*Client
	clientsMu sync.RWMutex

	members  RoomMembers
	presence presence.Store
	logger   logger.Interface
}

func NewHub(members RoomMembers, presenceStore presence.Store, log logger.Interface) *Hub {
	return &Hub{
		clients:  make(map[ids.ConnectionID]*Client),
		byUser:   make(map[ids.UserID]map[ids.ConnectionID]*Client),
		members:  members,
		presence: presenceStore,
		logger:   log,
	}
}

// Register adds a websocket connection for userID and records it in the
// presence store.
func (h *Hub) Register(ctx context.Context, userID ids.UserID, conn *websocket.Conn) (*Client, error) {
	client := &Client{
		ID:          ids.ConnectionID(uuid.NewString()),
		UserID:      userID,
		Conn:        conn,
		Send:        make(chan *Frame, sendBufferSize),
		ConnectedAt: biztime.NowUTC(),
	}
	if err := h.attach(ctx, client); err != nil {
		return nil, err
	}
	return client, nil
}

func (h *Hub) attach(ctx context.Context, client *Client) error {
	if err := h.presence.Register(ctx, client.UserID, client.ID); err != nil {
		return err
	}

	h.clientsMu.Lock()
	h.clients[client.ID] = client
	conns, ok := h.byUser[client.UserID]
	if !ok {
		conns = make(map[ids.ConnectionID]*Client)
		h.byUser[client.UserID] = conns
	}
	conns[client.ID] = client
	h.clientsMu.Unlock()

	h.logger.Infow("chat client connected",
		"user_id", client.UserID,
		"conn_id", client.ID,
	)
	return nil
}

// Unregister removes a connection and closes its send channel. Unknown
// connections are ignored.
func (h *Hub) Unregister(ctx context.Context, connID ids.ConnectionID) {
	h.clientsMu.Lock()
	client, ok := h.clients[connID]
	if ok {
		delete(h.clients, connID)
		if conns := h.byUser[client.UserID]; conns != nil {
			delete(conns, connID)
			if len(conns) == 0 {
				delete(h.byUser, client.UserID)
			}
		}
		close(client.Send)
	}
	h.clientsMu.Unlock()

	if !ok {
		return
	}

	if err := h.presence.Unregister(ctx, connID); err != nil {
		h.logger.Warnw("failed to clear presence for closed connection",
			"conn_id", connID,
			"error", err,
		)
	}

	h.logger.Infow("chat client disconnected",
		"user_id", client.UserID,
		"conn_id", connID,
	)
}

// SendToUser queues event for every local connection of userID.
func (h *Hub) SendToUser(ctx context.Context, userID ids.UserID, event string, payload any) {
	frame, err := NewFrame(event, payload)
	if err != nil {
		h.logger.Errorw("failed to encode realtime event", "event", event, "error", err)
		return
	}
	h.DeliverToUser(userID, frame)
}

// SendToRoom queues event for the local connections of every room participant.
func (h *Hub) SendToRoom(ctx context.Context, roomID ids.RoomID, event string, payload any) {
	frame, err := NewFrame(event, payload)
	if err != nil {
		h.logger.Errorw("failed to encode realtime event", "event", event, "error", err)
		return
	}
	h.DeliverToRoom(ctx, roomID, frame)
}

// DeliverToUser queues an encoded frame. A client whose buffer is full
// misses the frame rather than stalling the sender.
func (h *Hub) DeliverToUser(userID ids.UserID, frame *Frame) int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()

	delivered := 0
	for _, client := range h.byUser[userID] {
		select {
		case client.Send <- frame:
			delivered++
		default:
			h.logger.Warnw("client send buffer full, dropping event",
				"user_id", userID,
				"conn_id", client.ID,
				"event", frame.Event,
			)
		}
	}
	return delivered
}

func (h *Hub) DeliverToRoom(ctx context.Context, roomID ids.RoomID, frame *Frame) int {
	users, err := h.members.ListParticipants(ctx, roomID)
	if err != nil {
		h.logger.Warnw("failed to resolve room participants",
			"room_id", roomID,
			"event", frame.Event,
			"error", err,
		)
		return 0
	}

	delivered := 0
	for _, userID := range users {
		delivered += h.DeliverToUser(userID, frame)
	}
	return delivered
}

// ConnectionCount is the number of websocket connections on this instance.
func (h *Hub) ConnectionCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// NewFrame encodes payload into a client frame.
func NewFrame(event string, payload any) (*Frame, error) {
	var data json.RawMessage
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		data = raw
	}
	return &Frame{
		Event:     event,
		Data:      data,
		Timestamp: biztime.NowUTC().UnixMilli(),
	}, nil
}
