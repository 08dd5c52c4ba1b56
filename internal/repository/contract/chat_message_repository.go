package contract

import (
	"context"

	"ai-streamer-be/internal/model"
)

type IChatMessageRepository interface {
	Save(ctx context.Context, message *model.ChatMessage) error
	// GetHistory returns the most recent messages of a room in chronological
	// order (oldest first), capped at limit.
	GetHistory(ctx context.Context, roomID string, limit int) ([]model.ChatMessage, error)
	GetAllMessages(ctx context.Context, roomID string, skip, limit int) ([]model.ChatMessage, error)
	CountMessages(ctx context.Context, roomID string) (int64, error)
}
