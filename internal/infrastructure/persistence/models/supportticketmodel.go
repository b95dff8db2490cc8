package models

import (
	"time"

	"github.com/orris-inc/livedesk/internal/shared/constants"
)

type SupportTicketModel struct {
	ID              uint   `gorm:"primaryKey"`
	RequesterID     uint   `gorm:"not null;index:idx_ticket_requester"`
	Guest           bool   `gorm:"not null;default:false"`
	Subject         string `gorm:"size:200;not null"`
	AssignedAgentID *uint  `gorm:"index:idx_ticket_agent_status"`
	RegionID        *uint
	Status          string    `gorm:"size:20;not null;index:idx_ticket_agent_status;index:idx_ticket_status_created"`
	ChatRoomID      uint      `gorm:"not null;uniqueIndex:idx_ticket_chat_room"`
	Version         int       `gorm:"not null;default:1"`
	CreatedAt       time.Time `gorm:"index:idx_ticket_status_created"`
	UpdatedAt       time.Time
	ClosedAt        *time.Time

	// Note: No foreign key constraints or associations.
	// All relationships are managed by application business logic.
}

func (SupportTicketModel) TableName() string {
	return constants.TableSupportTickets
}
