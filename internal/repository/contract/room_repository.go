package contract

import (
	"context"

	"ai-streamer-be/internal/model"
)

type IRoomRepository interface {
	// Upsert records the room on first creation and refreshes the persona
	// and voice snapshot on subsequent calls.
	Upsert(ctx context.Context, room *model.Room) error
	FindByRoomID(ctx context.Context, roomID string) (*model.Room, error)
	FindAll(ctx context.Context) ([]model.Room, error)
}
