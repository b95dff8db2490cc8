package models

import (
	"time"

	"github.com/orris-inc/livedesk/internal/shared/constants"
)

// DeliveryStatusModel stores one row per (message, recipient). State is the
// numeric delivery.State so upgrades can be guarded with state < ?.
type DeliveryStatusModel struct {
	MessageID   uint  `gorm:"primaryKey;autoIncrement:false"`
	RecipientID uint  `gorm:"primaryKey;autoIncrement:false;index:idx_delivery_recipient"`
	State       uint8 `gorm:"not null"`
	StatusAt    time.Time
}

func (DeliveryStatusModel) TableName() string {
	return constants.TableMessageDeliveries
}
