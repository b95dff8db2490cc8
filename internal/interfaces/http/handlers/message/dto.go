package message

import (
	"time"

	"github.com/orris-inc/livedesk/internal/application/message/usecases"
	domain "github.com/orris-inc/livedesk/internal/domain/delivery"
	"github.com/orris-inc/livedesk/internal/domain/shared/ids"
)

type PostMessageRequest struct {
	Body       string `json:"body" validate:"required,max=4000"`
	SenderName string `json:"sender_name" validate:"omitempty,max=100"`
}

func (r *PostMessageRequest) ToCommand(roomID ids.RoomID, senderID ids.UserID) usecases.PostMessageCommand {
	return usecases.PostMessageCommand{
		RoomID:     roomID,
		SenderID:   senderID,
		SenderName: r.SenderName,
		Body:       r.Body,
	}
}

type AckResponse struct {
	MessageID ids.MessageID `json:"message_id"`
	Changed   bool          `json:"changed"`
}

type MarkRoomReadResponse struct {
	RoomID ids.RoomID `json:"room_id"`
	Marked int        `json:"marked"`
}

type StatusResponse struct {
	MessageID   ids.MessageID `json:"message_id"`
	RecipientID ids.UserID    `json:"recipient_id"`
	Status      string        `json:"status"`
}

type ReceiptResponse struct {
	RecipientID ids.UserID `json:"recipient_id"`
	Status      string     `json:"status"`
	StatusAt    time.Time  `json:"status_at"`
}

func toReceiptResponses(statuses []*domain.Status) []ReceiptResponse {
	out := make([]ReceiptResponse, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, ReceiptResponse{
			RecipientID: s.RecipientID(),
			Status:      s.State().String(),
			StatusAt:    s.StatusAt(),
		})
	}
	return out
}
