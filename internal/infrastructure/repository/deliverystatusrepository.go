package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/orris-inc/livedesk/internal/domain/delivery"
	"github.com/orris-inc/livedesk/internal/domain/shared/ids"
	"github.com/orris-inc/livedesk/internal/infrastructure/persistence/mappers"
	"github.com/orris-inc/livedesk/internal/infrastructure/persistence/models"
	"github.com/orris-inc/livedesk/internal/shared/db"
	"github.com/orris-inc/livedesk/internal/shared/errors"
)

// DeliveryStatusRepositoryImpl stores per-recipient delivery states. Both
// writes are single conditional statements, so concurrent acknowledgements
// can only move a pair forward.
type DeliveryStatusRepositoryImpl struct {
	db *gorm.DB
}

func NewDeliveryStatusRepository(database *gorm.DB) *DeliveryStatusRepositoryImpl {
	return &DeliveryStatusRepositoryImpl{db: database}
}

func (r *DeliveryStatusRepositoryImpl) Upgrade(ctx context.Context, messageID ids.MessageID, recipientID ids.UserID, state delivery.State, at time.Time) (bool, error) {
	if !state.IsValid() {
		return false, errors.NewValidationError("invalid delivery state", state.String())
	}
	tx := db.GetTxFromContext(ctx, r.db)

	inserted := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.DeliveryStatusModel{
		MessageID:   uint(messageID),
		RecipientID: uint(recipientID),
		State:       uint8(state),
		StatusAt:    at,
	})
	if inserted.Error != nil {
		return false, fmt.Errorf("failed to insert delivery status: %w", inserted.Error)
	}
	if inserted.RowsAffected == 1 {
		return true, nil
	}

	advanced := tx.Model(&models.DeliveryStatusModel{}).
		Where("message_id = ? AND recipient_id = ? AND state < ?", uint(messageID), uint(recipientID), uint8(state)).
		Updates(map[string]any{
			"state":     uint8(state),
			"status_at": at,
		})
	if advanced.Error != nil {
		return false, fmt.Errorf("failed to advance delivery status: %w", advanced.Error)
	}
	return advanced.RowsAffected == 1, nil
}

func (r *DeliveryStatusRepositoryImpl) UpgradeMany(ctx context.Context, messageIDs []ids.MessageID, recipientID ids.UserID, state delivery.State, at time.Time) ([]ids.MessageID, error) {
	changed := make([]ids.MessageID, 0, len(messageIDs))
	for _, id := range messageIDs {
		ok, err := r.Upgrade(ctx, id, recipientID, state, at)
		if err != nil {
			return nil, err
		}
		if ok {
			changed = append(changed, id)
		}
	}
	return changed, nil
}

func (r *DeliveryStatusRepositoryImpl) Get(ctx context.Context, messageID ids.MessageID, recipientID ids.UserID) (*delivery.Status, error) {
	var model models.DeliveryStatusModel
	err := db.GetTxFromContext(ctx, r.db).
		Where("message_id = ? AND recipient_id = ?", uint(messageID), uint(recipientID)).
		First(&model).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("delivery status not found")
		}
		return nil, fmt.Errorf("failed to get delivery status: %w", err)
	}
	return mappers.DeliveryStatusToDomain(&model), nil
}

func (r *DeliveryStatusRepositoryImpl) ListByMessage(ctx context.Context, messageID ids.MessageID) ([]*delivery.Status, error) {
	var list []models.DeliveryStatusModel
	err := db.GetTxFromContext(ctx, r.db).
		Where("message_id = ?", uint(messageID)).
		Order("recipient_id ASC").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list delivery statuses: %w", err)
	}

	out := make([]*delivery.Status, 0, len(list))
	for i := range list {
		out = append(out, mappers.DeliveryStatusToDomain(&list[i]))
	}
	return out, nil
}
