package model

import (
	"time"

	"github.com/google/uuid"
)

type ChatMessage struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	RoomId    string    `gorm:"type:varchar(100);not null;index:idx_chat_messages_room_time,priority:1"`
	Role      string    `gorm:"type:varchar(20);not null"` // "user" | "model"
	Content   string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_chat_messages_room_time,priority:2"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}
