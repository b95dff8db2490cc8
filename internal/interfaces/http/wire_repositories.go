package http

import (
	"gorm.io/gorm"

	"github.com/orris-inc/livedesk/internal/domain/agent"
	"github.com/orris-inc/livedesk/internal/domain/conversation"
	"github.com/orris-inc/livedesk/internal/domain/delivery"
	"github.com/orris-inc/livedesk/internal/domain/ticket"
	"github.com/orris-inc/livedesk/internal/infrastructure/repository"
	"github.com/orris-inc/livedesk/internal/shared/biztime"
	"github.com/orris-inc/livedesk/internal/shared/logger"
)

// repositories holds all repository instances used by the application.
type repositories struct {
	agentRepo    agent.Repository
	ticketRepo   ticket.Repository
	conversation conversation.Store
	deliveryRepo delivery.Repository
}

// newRepositories creates all repository instances from the database connection.
func newRepositories(db *gorm.DB, clock biztime.Clock, log logger.Interface) *repositories {
	return &repositories{
		agentRepo:    repository.NewAgentRepository(db, clock, log),
		ticketRepo:   repository.NewSupportTicketRepository(db, log),
		conversation: repository.NewConversationStore(db, clock, log),
		deliveryRepo: repository.NewDeliveryStatusRepository(db),
	}
}
