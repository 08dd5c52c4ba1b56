package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Room records that a live room was created, with a snapshot of the persona
// voice settings active at creation. The live state itself is in memory.
type Room struct {
	Id          uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	RoomId      string         `gorm:"type:varchar(100);uniqueIndex;not null"`
	PersonaId   string         `gorm:"type:varchar(100);not null"`
	VoiceConfig datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt   time.Time      `gorm:"autoCreateTime"`
}

func (Room) TableName() string {
	return "rooms"
}
