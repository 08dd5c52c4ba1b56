package service

import (
	"context"
	"encoding/json"

	"ai-streamer-be/internal/dto"
	"ai-streamer-be/internal/persona"
	"ai-streamer-be/internal/repository/contract"
)

type IKnowledgeService interface {
	// Upload queues a document for asynchronous indexing into the persona's
	// knowledge base.
	Upload(ctx context.Context, req dto.UploadKnowledgeRequest) error
	Status(ctx context.Context, personaID string) (*dto.KnowledgeStatusResponse, error)
	// PurgeCache drops the persona's persisted embeddings. The in-memory
	// index keeps serving; the next startup re-embeds from the knowledge dir.
	PurgeCache(ctx context.Context, personaID string) error
}

type knowledgeService struct {
	pm        *persona.Manager
	embedRepo contract.IKnowledgeEmbeddingRepository
	publisher IPublisherService
}

func NewKnowledgeService(
	pm *persona.Manager,
	embedRepo contract.IKnowledgeEmbeddingRepository,
	publisher IPublisherService,
) IKnowledgeService {
	return &knowledgeService{
		pm:        pm,
		embedRepo: embedRepo,
		publisher: publisher,
	}
}

func (s *knowledgeService) Upload(ctx context.Context, req dto.UploadKnowledgeRequest) error {
	// Fail fast on unknown personas before queueing.
	if _, err := s.pm.Get(req.PersonaID); err != nil {
		return err
	}

	payload, err := json.Marshal(dto.IndexKnowledge{
		PersonaID: req.PersonaID,
		Source:    req.Source,
		Text:      req.Text,
	})
	if err != nil {
		return err
	}
	return s.publisher.Publish(ctx, payload)
}

func (s *knowledgeService) Status(ctx context.Context, personaID string) (*dto.KnowledgeStatusResponse, error) {
	bundle, err := s.pm.Get(personaID)
	if err != nil {
		return nil, err
	}
	stored, err := s.embedRepo.CountByPersona(ctx, personaID)
	if err != nil {
		return nil, err
	}
	return &dto.KnowledgeStatusResponse{
		PersonaID:   personaID,
		ChunkCount:  bundle.Index.Count(),
		StoredCount: stored,
	}, nil
}

func (s *knowledgeService) PurgeCache(ctx context.Context, personaID string) error {
	if _, err := s.pm.Get(personaID); err != nil {
		return err
	}
	return s.embedRepo.DeleteByPersona(ctx, personaID)
}
