// Package conversation describes the chat rooms, messages and memberships
// the routing core reads and writes.
package conversation

import (
	"context"
	"time"

	"github.com/orris-inc/livedesk/internal/domain/shared/ids"
	"github.com/orris-inc/livedesk/internal/domain/shared/realtime"
)

type MessageKind string

const (
	MessageKindUser   MessageKind = "user"
	MessageKindSystem MessageKind = "system"
)

// Message is immutable once stored. SenderID is nil for system messages.
type Message struct {
	ID        ids.MessageID
	RoomID    ids.RoomID
	SenderID  *ids.UserID
	Kind      MessageKind
	Body      string
	CreatedAt time.Time
}

// IsFrom reports whether userID authored the message.
func (m *Message) IsFrom(userID ids.UserID) bool {
	return m.SenderID != nil && *m.SenderID == userID
}

// Payload is the message.new event body.
func (m *Message) Payload() realtime.MessagePayload {
	return realtime.MessagePayload{
		MessageID: m.ID,
		RoomID:    m.RoomID,
		SenderID:  m.SenderID,
		Kind:      string(m.Kind),
		Body:      m.Body,
		CreatedAt: m.CreatedAt,
	}
}

// Store is the conversation persistence port.
type Store interface {
	CreateRoom(ctx context.Context, title string) (ids.RoomID, error)
	PostMessage(ctx context.Context, roomID ids.RoomID, senderID ids.UserID, body string) (*Message, error)
	AddSystemMessage(ctx context.Context, roomID ids.RoomID, body string) (*Message, error)
	GetMessage(ctx context.Context, id ids.MessageID) (*Message, error)

	// AddParticipant is idempotent; RemoveParticipant of a non-member is a no-op.
	AddParticipant(ctx context.Context, roomID ids.RoomID, userID ids.UserID) error
	RemoveParticipant(ctx context.Context, roomID ids.RoomID, userID ids.UserID) error
	ListParticipants(ctx context.Context, roomID ids.RoomID) ([]ids.UserID, error)
	IsParticipant(ctx context.Context, roomID ids.RoomID, userID ids.UserID) (bool, error)

	GetReadWatermark(ctx context.Context, roomID ids.RoomID, userID ids.UserID) (ids.MessageID, error)
	// AdvanceReadWatermark only moves the watermark forward and reports whether it moved.
	AdvanceReadWatermark(ctx context.Context, roomID ids.RoomID, userID ids.UserID, messageID ids.MessageID) (bool, error)
	// ListUnreadIncoming returns messages from other users above after, ascending.
	ListUnreadIncoming(ctx context.Context, roomID ids.RoomID, userID ids.UserID, after ids.MessageID) ([]*Message, error)
	// RecountUnread recomputes and stores the user's unread count for the room.
	RecountUnread(ctx context.Context, roomID ids.RoomID, userID ids.UserID) (int, error)
}
