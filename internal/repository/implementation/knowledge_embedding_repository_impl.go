package implementation

import (
	"context"

	"ai-streamer-be/internal/model"
	"ai-streamer-be/internal/repository/contract"

	"gorm.io/gorm"
)

type KnowledgeEmbeddingRepositoryImpl struct {
	db *gorm.DB
}

func NewKnowledgeEmbeddingRepository(db *gorm.DB) contract.IKnowledgeEmbeddingRepository {
	return &KnowledgeEmbeddingRepositoryImpl{db: db}
}

func (r *KnowledgeEmbeddingRepositoryImpl) CreateBulk(ctx context.Context, embeddings []*model.KnowledgeEmbedding) error {
	if len(embeddings) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(embeddings, 100).Error
}

func (r *KnowledgeEmbeddingRepositoryImpl) FindByPersona(ctx context.Context, personaID string) ([]model.KnowledgeEmbedding, error) {
	var embeddings []model.KnowledgeEmbedding
	err := r.db.WithContext(ctx).
		Where("persona_id = ?", personaID).
		Order("source ASC, chunk_index ASC").
		Find(&embeddings).Error
	if err != nil {
		return nil, err
	}
	return embeddings, nil
}

func (r *KnowledgeEmbeddingRepositoryImpl) DeleteByPersona(ctx context.Context, personaID string) error {
	return r.db.WithContext(ctx).
		Where("persona_id = ?", personaID).
		Delete(&model.KnowledgeEmbedding{}).Error
}

func (r *KnowledgeEmbeddingRepositoryImpl) CountByPersona(ctx context.Context, personaID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.KnowledgeEmbedding{}).
		Where("persona_id = ?", personaID).
		Count(&count).Error
	return count, err
}
