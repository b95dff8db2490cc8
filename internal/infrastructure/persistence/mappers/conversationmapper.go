package mappers

import (
	"github.com/orris-inc/livedesk/internal/domain/conversation"
	"github.com/orris-inc/livedesk/internal/domain/delivery"
	"github.com/orris-inc/livedesk/internal/domain/shared/ids"
	"github.com/orris-inc/livedesk/internal/infrastructure/persistence/models"
)

// MessageToDomain converts a stored chat message.
func MessageToDomain(model *models.ChatMessageModel) *conversation.Message {
	var sender *ids.UserID
	if model.SenderID != nil {
		v := ids.UserID(*model.SenderID)
		sender = &v
	}
	return &conversation.Message{
		ID:        ids.MessageID(model.ID),
		RoomID:    ids.RoomID(model.RoomID),
		SenderID:  sender,
		Kind:      conversation.MessageKind(model.Kind),
		Body:      model.Body,
		CreatedAt: model.CreatedAt.UTC(),
	}
}

func MessagesToDomain(list []models.ChatMessageModel) []*conversation.Message {
	out := make([]*conversation.Message, 0, len(list))
	for i := range list {
		out = append(out, MessageToDomain(&list[i]))
	}
	return out
}

func DeliveryStatusToDomain(model *models.DeliveryStatusModel) *delivery.Status {
	return delivery.NewStatus(
		ids.MessageID(model.MessageID),
		ids.UserID(model.RecipientID),
		delivery.State(model.State),
		model.StatusAt.UTC(),
	)
}
