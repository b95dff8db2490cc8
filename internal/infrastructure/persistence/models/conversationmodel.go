package models

import (
	"time"

	"github.com/orris-inc/livedesk/internal/shared/constants"
)

type ChatRoomModel struct {
	ID        uint   `gorm:"primaryKey"`
	Title     string `gorm:"size:200;not null"`
	CreatedAt time.Time
}

func (ChatRoomModel) TableName() string {
	return constants.TableChatRooms
}

// ChatMessageModel rows are append-only. SenderID is null for system messages.
type ChatMessageModel struct {
	ID        uint   `gorm:"primaryKey"`
	RoomID    uint   `gorm:"not null;index:idx_message_room_id"`
	SenderID  *uint  `gorm:"index:idx_message_sender"`
	Kind      string `gorm:"size:10;not null"`
	Body      string `gorm:"type:text;not null"`
	CreatedAt time.Time
}

func (ChatMessageModel) TableName() string {
	return constants.TableChatMessages
}

// RoomParticipantModel is the membership row that also carries the user's
// read watermark and cached unread count for the room.
type RoomParticipantModel struct {
	RoomID            uint `gorm:"primaryKey;autoIncrement:false"`
	UserID            uint `gorm:"primaryKey;autoIncrement:false;index:idx_participant_user"`
	LastReadMessageID uint `gorm:"not null;default:0"`
	UnreadCount       int  `gorm:"not null;default:0"`
	JoinedAt          time.Time
}

func (RoomParticipantModel) TableName() string {
	return constants.TableRoomParticipants
}
