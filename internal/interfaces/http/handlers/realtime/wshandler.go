// Package realtime serves the chat websocket endpoint.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	agentusecases "github.com/orris-inc/livedesk/internal/application/agent/usecases"
	"github.com/orris-inc/livedesk/internal/domain/presence"
	"github.com/orris-inc/livedesk/internal/domain/shared/ids"
	"github.com/orris-inc/livedesk/internal/infrastructure/services/realtimehub"
	"github.com/orris-inc/livedesk/internal/interfaces/http/middleware"
	"github.com/orris-inc/livedesk/internal/shared/logger"
	"github.com/orris-inc/livedesk/internal/shared/utils"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 8192
)

// Client frame types.
const (
	FrameViewRoom     = "room.view"
	FrameLeaveRoom    = "room.leave"
	FrameHeartbeat    = "heartbeat"
	FrameDelivered    = "message.delivered"
	FrameRead         = "message.read"
	FrameMarkRoomRead = "room.read"

	frameError = "error"
)

// ConnectionHub registers websocket connections.
type ConnectionHub interface {
	Register(ctx context.Context, userID ids.UserID, conn *websocket.Conn) (*realtimehub.Client, error)
	Unregister(ctx context.Context, connID ids.ConnectionID)
}

// DeliveryTracker is the part of the delivery tracker clients drive over the socket.
type DeliveryTracker interface {
	AcknowledgeDelivered(ctx context.Context, messageID ids.MessageID, userID ids.UserID) (bool, error)
	AcknowledgeRead(ctx context.Context, messageID ids.MessageID, userID ids.UserID) (bool, error)
	MarkRoomRead(ctx context.Context, userID ids.UserID, roomID ids.RoomID) (int, error)
}

// ClientFrame is a frame sent by a chat client.
type ClientFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type roomData struct {
	RoomID ids.RoomID `json:"room_id"`
}

type messageData struct {
	MessageID ids.MessageID `json:"message_id"`
}

type errorData struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type WSHandler struct {
	hub      ConnectionHub
	presence presence.Store
	tracker  DeliveryTracker
	activity agentusecases.RecordActivityExecutor
	upgrader websocket.Upgrader
	logger   logger.Interface
}

func NewWSHandler(
	hub ConnectionHub,
	presenceStore presence.Store,
	tracker DeliveryTracker,
	activity agentusecases.RecordActivityExecutor,
	allowedOrigins []string,
	log logger.Interface,
) *WSHandler {
	return &WSHandler{
		hub:      hub,
		presence: presenceStore,
		tracker:  tracker,
		activity: activity,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || middleware.OriginAllowed(origin, allowedOrigins)
			},
		},
		logger: log,
	}
}

// Connect handles GET /ws
func (h *WSHandler) Connect(c *gin.Context) {
	userID, _, ok := middleware.CurrentUser(c)
	if !ok {
		utils.ErrorResponse(c, http.StatusUnauthorized, "user not authenticated")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warnw("failed to upgrade to websocket",
			"error", err,
			"user_id", userID,
			"ip", c.ClientIP(),
		)
		return
	}

	ctx := context.WithoutCancel(c.Request.Context())
	client, err := h.hub.Register(ctx, userID, conn)
	if err != nil {
		h.logger.Errorw("failed to register chat client", "user_id", userID, "error", err)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "registration failed"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}

	go h.writePump(client)
	h.readPump(ctx, client)
}

func (h *WSHandler) readPump(ctx context.Context, client *realtimehub.Client) {
	conn := client.Conn
	defer func() {
		h.hub.Unregister(ctx, client.ID)
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		if err := h.presence.Touch(ctx, client.ID); err != nil {
			h.logger.Debugw("failed to touch presence", "conn_id", client.ID, "error", err)
		}
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warnw("chat websocket read error",
					"error", err,
					"user_id", client.UserID,
				)
			}
			return
		}

		var frame ClientFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			h.reply(client, frameError, errorData{Type: "invalid_frame", Message: "frame is not valid JSON"})
			continue
		}
		h.handleFrame(ctx, client, frame)
	}
}

func (h *WSHandler) writePump(client *realtimehub.Client) {
	conn := client.Conn
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case frame, ok := <-client.Send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(frame); err != nil {
				h.logger.Debugw("failed to write to chat websocket",
					"error", err,
					"user_id", client.UserID,
				)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *WSHandler) handleFrame(ctx context.Context, client *realtimehub.Client, frame ClientFrame) {
	switch frame.Type {
	case FrameViewRoom:
		var data roomData
		if !h.decode(client, frame, &data) || !h.requireRoom(client, data.RoomID) {
			return
		}
		if err := h.presence.SetActiveRoom(ctx, client.ID, data.RoomID); err != nil {
			h.logger.Warnw("failed to set active room", "conn_id", client.ID, "room_id", data.RoomID, "error", err)
			return
		}
		h.markRoomRead(ctx, client, data.RoomID)

	case FrameLeaveRoom:
		if err := h.presence.ClearActiveRoom(ctx, client.ID); err != nil {
			h.logger.Warnw("failed to clear active room", "conn_id", client.ID, "error", err)
		}

	case FrameHeartbeat:
		if err := h.presence.Touch(ctx, client.ID); err != nil {
			h.logger.Debugw("failed to touch presence", "conn_id", client.ID, "error", err)
		}

	case FrameDelivered, FrameRead:
		var data messageData
		if !h.decode(client, frame, &data) {
			return
		}
		if data.MessageID == 0 {
			h.reply(client, frameError, errorData{Type: "validation_error", Message: "message_id is required"})
			return
		}
		ack := h.tracker.AcknowledgeDelivered
		if frame.Type == FrameRead {
			ack = h.tracker.AcknowledgeRead
		}
		if _, err := ack(ctx, data.MessageID, client.UserID); err != nil {
			h.logger.Warnw("failed to acknowledge message",
				"message_id", data.MessageID,
				"user_id", client.UserID,
				"frame", frame.Type,
				"error", err,
			)
			return
		}
		if frame.Type == FrameRead {
			h.recordActivity(ctx, client.UserID)
		}

	case FrameMarkRoomRead:
		var data roomData
		if !h.decode(client, frame, &data) || !h.requireRoom(client, data.RoomID) {
			return
		}
		h.markRoomRead(ctx, client, data.RoomID)

	default:
		h.reply(client, frameError, errorData{Type: "unknown_frame", Message: "unsupported frame type " + frame.Type})
	}
}

// markRoomRead is run when a client opens a room so unread counts clear.
func (h *WSHandler) markRoomRead(ctx context.Context, client *realtimehub.Client, roomID ids.RoomID) {
	if _, err := h.tracker.MarkRoomRead(ctx, client.UserID, roomID); err != nil {
		h.logger.Warnw("failed to mark room read", "room_id", roomID, "user_id", client.UserID, "error", err)
		return
	}
	h.recordActivity(ctx, client.UserID)
}

func (h *WSHandler) recordActivity(ctx context.Context, userID ids.UserID) {
	if err := h.activity.Execute(ctx, agentusecases.RecordActivityCommand{UserID: userID}); err != nil {
		h.logger.Warnw("failed to record reader activity", "user_id", userID, "error", err)
	}
}

func (h *WSHandler) decode(client *realtimehub.Client, frame ClientFrame, target any) bool {
	if len(frame.Data) == 0 {
		h.reply(client, frameError, errorData{Type: "validation_error", Message: frame.Type + " requires data"})
		return false
	}
	if err := json.Unmarshal(frame.Data, target); err != nil {
		h.reply(client, frameError, errorData{Type: "validation_error", Message: "invalid " + frame.Type + " data"})
		return false
	}
	return true
}

func (h *WSHandler) requireRoom(client *realtimehub.Client, roomID ids.RoomID) bool {
	if roomID == 0 {
		h.reply(client, frameError, errorData{Type: "validation_error", Message: "room_id is required"})
		return false
	}
	return true
}

// reply queues a frame for this connection only; it is dropped when the
// send buffer is full.
func (h *WSHandler) reply(client *realtimehub.Client, event string, payload any) {
	frame, err := realtimehub.NewFrame(event, payload)
	if err != nil {
		return
	}
	select {
	case client.Send <- frame:
	default:
		h.logger.Debugw("dropped reply to slow chat client", "conn_id", client.ID, "event", event)
	}
}
