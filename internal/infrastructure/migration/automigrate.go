package migration

import (
	"github.com/orris-inc/livedesk/internal/infrastructure/persistence/models"
)

func AutoMigrateModels() []any {
	return []any{
		&models.AgentModel{},
		&models.SupportTicketModel{},
		&models.ChatRoomModel{},
		&models.ChatMessageModel{},
		&models.RoomParticipantModel{},
		&models.DeliveryStatusModel{},
	}
}
