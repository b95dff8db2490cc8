package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/orris-inc/livedesk/internal/shared/constants"
)

// AgentModel is the persistence model for human and bot agents.
// CurrentActiveChats is only written through the guarded capacity updates.
type AgentModel struct {
	ID                 uint           `gorm:"primaryKey"`
	UserID             uint           `gorm:"not null;uniqueIndex:idx_agent_user_id"`
	Kind               string         `gorm:"size:10;not null;index:idx_agent_kind_active"`
	DisplayName        string         `gorm:"size:100;not null"`
	IsActive           bool           `gorm:"not null;index:idx_agent_kind_active"`
	PrimaryRegionID    *uint          `gorm:"index:idx_agent_primary_region"`
	SecondaryRegionIDs datatypes.JSON `gorm:"type:json"`
	CurrentActiveChats int            `gorm:"not null;default:0"`
	MaxConcurrentChats int            `gorm:"not null;default:0"`
	Status             string         `gorm:"size:20;not null;index:idx_agent_status"`
	AutoDetectedStatus string         `gorm:"size:20;not null"`
	ManualStatus       *string        `gorm:"size:20"`
	ManualStatusSetAt  *time.Time
	ManualStatusExpiry *time.Time `gorm:"index:idx_agent_manual_expiry"`
	LastActivityAt     *time.Time
	Version            int `gorm:"not null;default:1"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (AgentModel) TableName() string {
	return constants.TableAgents
}
