package dto

import (
	"time"

	"github.com/orris-inc/livedesk/internal/domain/conversation"
	"github.com/orris-inc/livedesk/internal/domain/shared/ids"
)

type MessageDTO struct {
	ID        ids.MessageID `json:"id"`
	RoomID    ids.RoomID    `json:"room_id"`
	SenderID  *ids.UserID   `json:"sender_id,omitempty"`
	Kind      string        `json:"kind"`
	Body      string        `json:"body"`
	CreatedAt time.Time     `json:"created_at"`
}

func ToMessageDTO(m *conversation.Message) *MessageDTO {
	if m == nil {
		return nil
	}
	return &MessageDTO{
		ID:        m.ID,
		RoomID:    m.RoomID,
		SenderID:  m.SenderID,
		Kind:      string(m.Kind),
		Body:      m.Body,
		CreatedAt: m.CreatedAt,
	}
}
