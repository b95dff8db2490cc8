// Package realtime declares the outbound ports used to reach clients:
// the fire-and-forget broadcaster and the offline push sender.
package realtime

import (
	"context"
	"time"

	"github.com/orris-inc/livedesk/internal/domain/shared/ids"
)

const (
	EventMessageNew         = "message.new"
	EventMessageDelivered   = "message.delivered"
	EventMessageRead        = "message.read"
	EventMessagesRead       = "messages.read"
	EventRoomUnread         = "room.unread"
	EventTicketAssigned     = "ticket.assigned"
	EventTicketReassigned   = "ticket.reassigned"
	EventTicketUnassigned   = "ticket.unassigned"
	EventTicketClosed       = "ticket.closed"
	EventAgentStatus        = "agent.status"
	EventAgentNewAssignment = "agent.new_assignment"
)

// Broadcaster pushes events to connected clients. Delivery is best effort
// and unacknowledged.
type Broadcaster interface {
	SendToUser(ctx context.Context, userID ids.UserID, event string, payload any)
	SendToRoom(ctx context.Context, roomID ids.RoomID, event string, payload any)
}

// NotificationSender pushes to a recipient's offline devices.
type NotificationSender interface {
	SendNewMessageNotification(ctx context.Context, recipient ids.UserID, roomID ids.RoomID, title, body string, data map[string]string) error
}

// TicketPayload accompanies ticket.* and agent.new_assignment events.
type TicketPayload struct {
	TicketID        ids.TicketID `json:"ticket_id"`
	RoomID          ids.RoomID   `json:"room_id"`
	Status          string       `json:"status"`
	AgentID         *ids.AgentID `json:"agent_id,omitempty"`
	PreviousAgentID *ids.AgentID `json:"previous_agent_id,omitempty"`
	AgentName       string       `json:"agent_name,omitempty"`
}

// DeliveryPayload accompanies message.delivered and message.read events.
type DeliveryPayload struct {
	MessageID   ids.MessageID `json:"message_id"`
	RoomID      ids.RoomID    `json:"room_id"`
	RecipientID ids.UserID    `json:"recipient_id"`
	Status      string        `json:"status"`
}

// BulkReadPayload accompanies messages.read, one per sender.
type BulkReadPayload struct {
	RoomID     ids.RoomID      `json:"room_id"`
	ReaderID   ids.UserID      `json:"reader_id"`
	MessageIDs []ids.MessageID `json:"message_ids"`
	Status     string          `json:"status"`
}

// UnreadPayload accompanies room.unread.
type UnreadPayload struct {
	RoomID      ids.RoomID `json:"room_id"`
	UnreadCount int        `json:"unread_count"`
}

// MessagePayload accompanies message.new.
type MessagePayload struct {
	MessageID ids.MessageID `json:"message_id"`
	RoomID    ids.RoomID    `json:"room_id"`
	SenderID  *ids.UserID   `json:"sender_id,omitempty"`
	Kind      string        `json:"kind"`
	Body      string        `json:"body"`
	CreatedAt time.Time     `json:"created_at"`
}
