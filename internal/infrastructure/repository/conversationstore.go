package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/orris-inc/livedesk/internal/domain/conversation"
	"github.com/orris-inc/livedesk/internal/domain/shared/ids"
	"github.com/orris-inc/livedesk/internal/infrastructure/persistence/mappers"
	"github.com/orris-inc/livedesk/internal/infrastructure/persistence/models"
	"github.com/orris-inc/livedesk/internal/shared/biztime"
	"github.com/orris-inc/livedesk/internal/shared/db"
	"github.com/orris-inc/livedesk/internal/shared/errors"
	"github.com/orris-inc/livedesk/internal/shared/logger"
)

// ConversationStoreImpl implements conversation.Store on gorm. Read
// watermarks and unread counters live on the participant row.
type ConversationStoreImpl struct {
	db     *gorm.DB
	clock  biztime.Clock
	logger logger.Interface
}

func NewConversationStore(database *gorm.DB, clock biztime.Clock, log logger.Interface) *ConversationStoreImpl {
	return &ConversationStoreImpl{db: database, clock: clock, logger: log}
}

func (s *ConversationStoreImpl) CreateRoom(ctx context.Context, title string) (ids.RoomID, error) {
	room := &models.ChatRoomModel{Title: title, CreatedAt: s.clock.Now()}
	if err := db.GetTxFromContext(ctx, s.db).Create(room).Error; err != nil {
		return 0, fmt.Errorf("failed to create chat room: %w", err)
	}
	return ids.RoomID(room.ID), nil
}

// PostMessage stores a user message and bumps the unread counter of every
// other participant.
func (s *ConversationStoreImpl) PostMessage(ctx context.Context, roomID ids.RoomID, senderID ids.UserID, body string) (*conversation.Message, error) {
	tx := db.GetTxFromContext(ctx, s.db)
	if err := s.ensureRoom(tx, roomID); err != nil {
		return nil, err
	}

	sender := uint(senderID)
	model := &models.ChatMessageModel{
		RoomID:    uint(roomID),
		SenderID:  &sender,
		Kind:      string(conversation.MessageKindUser),
		Body:      body,
		CreatedAt: s.clock.Now(),
	}
	if err := tx.Create(model).Error; err != nil {
		return nil, fmt.Errorf("failed to store message: %w", err)
	}

	err := tx.Model(&models.RoomParticipantModel{}).
		Where("room_id = ? AND user_id <> ?", uint(roomID), sender).
		Update("unread_count", gorm.Expr("unread_count + 1")).Error
	if err != nil {
		return nil, fmt.Errorf("failed to update unread counters: %w", err)
	}

	return mappers.MessageToDomain(model), nil
}

func (s *ConversationStoreImpl) AddSystemMessage(ctx context.Context, roomID ids.RoomID, body string) (*conversation.Message, error) {
	tx := db.GetTxFromContext(ctx, s.db)
	if err := s.ensureRoom(tx, roomID); err != nil {
		return nil, err
	}

	model := &models.ChatMessageModel{
		RoomID:    uint(roomID),
		Kind:      string(conversation.MessageKindSystem),
		Body:      body,
		CreatedAt: s.clock.Now(),
	}
	if err := tx.Create(model).Error; err != nil {
		return nil, fmt.Errorf("failed to store system message: %w", err)
	}
	return mappers.MessageToDomain(model), nil
}

func (s *ConversationStoreImpl) GetMessage(ctx context.Context, id ids.MessageID) (*conversation.Message, error) {
	var model models.ChatMessageModel
	if err := db.GetTxFromContext(ctx, s.db).First(&model, uint(id)).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("message not found")
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return mappers.MessageToDomain(&model), nil
}

func (s *ConversationStoreImpl) AddParticipant(ctx context.Context, roomID ids.RoomID, userID ids.UserID) error {
	err := db.GetTxFromContext(ctx, s.db).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.RoomParticipantModel{
			RoomID:   uint(roomID),
			UserID:   uint(userID),
			JoinedAt: s.clock.Now(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to add participant: %w", err)
	}
	return nil
}

func (s *ConversationStoreImpl) RemoveParticipant(ctx context.Context, roomID ids.RoomID, userID ids.UserID) error {
	err := db.GetTxFromContext(ctx, s.db).
		Where("room_id = ? AND user_id = ?", uint(roomID), uint(userID)).
		Delete(&models.RoomParticipantModel{}).Error
	if err != nil {
		return fmt.Errorf("failed to remove participant: %w", err)
	}
	return nil
}

func (s *ConversationStoreImpl) ListParticipants(ctx context.Context, roomID ids.RoomID) ([]ids.UserID, error) {
	var userIDs []uint
	err := db.GetTxFromContext(ctx, s.db).
		Model(&models.RoomParticipantModel{}).
		Where("room_id = ?", uint(roomID)).
		Order("joined_at ASC, user_id ASC").
		Pluck("user_id", &userIDs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}

	out := make([]ids.UserID, 0, len(userIDs))
	for _, id := range userIDs {
		out = append(out, ids.UserID(id))
	}
	return out, nil
}

func (s *ConversationStoreImpl) IsParticipant(ctx context.Context, roomID ids.RoomID, userID ids.UserID) (bool, error) {
	var count int64
	err := db.GetTxFromContext(ctx, s.db).
		Model(&models.RoomParticipantModel{}).
		Where("room_id = ? AND user_id = ?", uint(roomID), uint(userID)).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check participant: %w", err)
	}
	return count > 0, nil
}

// GetReadWatermark returns zero for users that are not in the room.
func (s *ConversationStoreImpl) GetReadWatermark(ctx context.Context, roomID ids.RoomID, userID ids.UserID) (ids.MessageID, error) {
	var watermarks []uint
	err := db.GetTxFromContext(ctx, s.db).
		Model(&models.RoomParticipantModel{}).
		Where("room_id = ? AND user_id = ?", uint(roomID), uint(userID)).
		Limit(1).
		Pluck("last_read_message_id", &watermarks).Error
	if err != nil {
		return 0, fmt.Errorf("failed to get read watermark: %w", err)
	}
	if len(watermarks) == 0 {
		return 0, nil
	}
	return ids.MessageID(watermarks[0]), nil
}

func (s *ConversationStoreImpl) AdvanceReadWatermark(ctx context.Context, roomID ids.RoomID, userID ids.UserID, messageID ids.MessageID) (bool, error) {
	result := db.GetTxFromContext(ctx, s.db).
		Model(&models.RoomParticipantModel{}).
		Where("room_id = ? AND user_id = ? AND last_read_message_id < ?", uint(roomID), uint(userID), uint(messageID)).
		Update("last_read_message_id", uint(messageID))
	if result.Error != nil {
		return false, fmt.Errorf("failed to advance read watermark: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (s *ConversationStoreImpl) ListUnreadIncoming(ctx context.Context, roomID ids.RoomID, userID ids.UserID, after ids.MessageID) ([]*conversation.Message, error) {
	var list []models.ChatMessageModel
	err := s.incoming(db.GetTxFromContext(ctx, s.db), roomID, userID, after).
		Order("id ASC").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list unread messages: %w", err)
	}
	return mappers.MessagesToDomain(list), nil
}

func (s *ConversationStoreImpl) RecountUnread(ctx context.Context, roomID ids.RoomID, userID ids.UserID) (int, error) {
	watermark, err := s.GetReadWatermark(ctx, roomID, userID)
	if err != nil {
		return 0, err
	}

	tx := db.GetTxFromContext(ctx, s.db)
	var count int64
	if err := s.incoming(tx, roomID, userID, watermark).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count unread messages: %w", err)
	}

	err = tx.Model(&models.RoomParticipantModel{}).
		Where("room_id = ? AND user_id = ?", uint(roomID), uint(userID)).
		Update("unread_count", count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to store unread count: %w", err)
	}
	return int(count), nil
}

func (s *ConversationStoreImpl) incoming(tx *gorm.DB, roomID ids.RoomID, userID ids.UserID, after ids.MessageID) *gorm.DB {
	return tx.Model(&models.ChatMessageModel{}).
		Where("room_id = ? AND id > ? AND sender_id IS NOT NULL AND sender_id <> ?", uint(roomID), uint(after), uint(userID))
}

func (s *ConversationStoreImpl) ensureRoom(tx *gorm.DB, roomID ids.RoomID) error {
	var count int64
	if err := tx.Model(&models.ChatRoomModel{}).Where("id = ?", uint(roomID)).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check chat room: %w", err)
	}
	if count == 0 {
		return errors.NewNotFoundError("room not found", roomID.String())
	}
	return nil
}
