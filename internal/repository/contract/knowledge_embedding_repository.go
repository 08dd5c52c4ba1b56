package contract

import (
	"context"

	"ai-streamer-be/internal/model"
)

type IKnowledgeEmbeddingRepository interface {
	CreateBulk(ctx context.Context, embeddings []*model.KnowledgeEmbedding) error
	FindByPersona(ctx context.Context, personaID string) ([]model.KnowledgeEmbedding, error)
	DeleteByPersona(ctx context.Context, personaID string) error
	CountByPersona(ctx context.Context, personaID string) (int64, error)
}
