package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-streamer-be/internal/dto"
	"ai-streamer-be/internal/model"
)

type fakePublisher struct {
	payloads [][]byte
}

func (f *fakePublisher) Publish(ctx context.Context, payload []byte) error {
	f.payloads = append(f.payloads, payload)
	return nil
}

type fakeEmbedRepo struct {
	count   int64
	deleted []string
}

func (f *fakeEmbedRepo) CreateBulk(ctx context.Context, embeddings []*model.KnowledgeEmbedding) error {
	return nil
}

func (f *fakeEmbedRepo) FindByPersona(ctx context.Context, personaID string) ([]model.KnowledgeEmbedding, error) {
	return nil, nil
}

func (f *fakeEmbedRepo) DeleteByPersona(ctx context.Context, personaID string) error {
	f.deleted = append(f.deleted, personaID)
	return nil
}

func (f *fakeEmbedRepo) CountByPersona(ctx context.Context, personaID string) (int64, error) {
	return f.count, nil
}

func newTestKnowledgeService(t *testing.T) (IKnowledgeService, *fakePublisher, *fakeEmbedRepo) {
	t.Helper()
	pub := &fakePublisher{}
	repo := &fakeEmbedRepo{}
	return NewKnowledgeService(newTestManager(t, "aria"), repo, pub), pub, repo
}

func TestUploadPublishesIndexPayload(t *testing.T) {
	svc, pub, _ := newTestKnowledgeService(t)

	err := svc.Upload(context.Background(), dto.UploadKnowledgeRequest{
		PersonaID: "aria",
		Source:    "faq.md",
		Text:      "Aria streams every evening.",
	})
	require.NoError(t, err)

	require.Len(t, pub.payloads, 1)
	var payload dto.IndexKnowledge
	require.NoError(t, json.Unmarshal(pub.payloads[0], &payload))
	assert.Equal(t, "aria", payload.PersonaID)
	assert.Equal(t, "faq.md", payload.Source)
	assert.Equal(t, "Aria streams every evening.", payload.Text)
}

func TestUploadUnknownPersona(t *testing.T) {
	svc, pub, _ := newTestKnowledgeService(t)

	err := svc.Upload(context.Background(), dto.UploadKnowledgeRequest{
		PersonaID: "ghost",
		Text:      "orphaned text",
	})
	assert.Error(t, err)
	assert.Empty(t, pub.payloads, "nothing is queued for unknown personas")
}

func TestStatusReportsIndexAndStoreCounts(t *testing.T) {
	svc, _, repo := newTestKnowledgeService(t)
	repo.count = 7

	res, err := svc.Status(context.Background(), "aria")
	require.NoError(t, err)
	assert.Equal(t, "aria", res.PersonaID)
	assert.Equal(t, int64(7), res.StoredCount)
}

func TestStatusUnknownPersona(t *testing.T) {
	svc, _, _ := newTestKnowledgeService(t)

	_, err := svc.Status(context.Background(), "ghost")
	assert.Error(t, err)
}

func TestPurgeCacheDeletesPersistedEmbeddings(t *testing.T) {
	svc, _, repo := newTestKnowledgeService(t)

	require.NoError(t, svc.PurgeCache(context.Background(), "aria"))
	assert.Equal(t, []string{"aria"}, repo.deleted)
}

func TestPurgeCacheUnknownPersona(t *testing.T) {
	svc, _, repo := newTestKnowledgeService(t)

	assert.Error(t, svc.PurgeCache(context.Background(), "ghost"))
	assert.Empty(t, repo.deleted)
}
