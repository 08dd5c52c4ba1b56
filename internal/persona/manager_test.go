package persona

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-streamer-be/internal/model"
	"ai-streamer-be/pkg/embedding"
)

type nopLogger struct{}

func (nopLogger) Debug(module, message string, details map[string]interface{}) {}
func (nopLogger) Info(module, message string, details map[string]interface{})  {}
func (nopLogger) Warn(module, message string, details map[string]interface{})  {}
func (nopLogger) Error(module, message string, details map[string]interface{}) {}
func (nopLogger) Sync() error                                                  { return nil }

type fakeEmbedder struct {
	calls int
}

func (f *fakeEmbedder) Generate(ctx context.Context, text string, taskType string) (*embedding.EmbeddingResponse, error) {
	f.calls++
	return &embedding.EmbeddingResponse{
		Embedding: embedding.EmbeddingResponseEmbedding{Values: []float32{1, 0, 0}},
	}, nil
}

type fakeEmbedRepo struct {
	stored      []*model.KnowledgeEmbedding
	findResults []model.KnowledgeEmbedding
}

func (f *fakeEmbedRepo) CreateBulk(ctx context.Context, embeddings []*model.KnowledgeEmbedding) error {
	f.stored = append(f.stored, embeddings...)
	return nil
}

func (f *fakeEmbedRepo) FindByPersona(ctx context.Context, personaID string) ([]model.KnowledgeEmbedding, error) {
	return f.findResults, nil
}

func (f *fakeEmbedRepo) DeleteByPersona(ctx context.Context, personaID string) error { return nil }

func (f *fakeEmbedRepo) CountByPersona(ctx context.Context, personaID string) (int64, error) {
	return int64(len(f.stored)), nil
}

const minimalConfig = `name: Aria
description: test streamer
system_prompt: you are Aria
tts:
  voice: en-US-AriaNeural
`

func writeBundle(t *testing.T, root, id, config string) {
	t.Helper()
	dir := filepath.Join(root, id)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(config), 0o644))
}

func TestLoadAllAppliesDefaults(t *testing.T) {
	root := t.TempDir()
	writeBundle(t, root, "aria", minimalConfig)

	m := NewManager(nopLogger{}, &fakeEmbedder{}, nil, 3)
	require.NoError(t, m.LoadAll(context.Background(), root))

	bundle, err := m.Get("aria")
	require.NoError(t, err)
	assert.Equal(t, "Aria", bundle.Config.Name)
	assert.Equal(t, 200, bundle.Config.RAG.ChunkSize)
	assert.Equal(t, 50, bundle.Config.RAG.ChunkOverlap)
	assert.Equal(t, 2, bundle.Config.RAG.SearchTopK)
	assert.Equal(t, "+0%", bundle.Config.TTS.Rate)
	assert.Equal(t, "+0Hz", bundle.Config.TTS.Pitch)
	assert.NotEmpty(t, bundle.Config.FallbackResponses)
}

func TestLoadAllSkipsBrokenBundle(t *testing.T) {
	root := t.TempDir()
	writeBundle(t, root, "good", minimalConfig)
	writeBundle(t, root, "broken", "name: NoPrompt\ntts:\n  voice: v\n")

	m := NewManager(nopLogger{}, &fakeEmbedder{}, nil, 3)
	require.NoError(t, m.LoadAll(context.Background(), root))

	_, err := m.Get("good")
	assert.NoError(t, err)
	_, err = m.Get("broken")
	assert.Error(t, err)
}

func TestLoadAllMissingDirectoryIsCreated(t *testing.T) {
	root := filepath.Join(t.TempDir(), "personas")

	m := NewManager(nopLogger{}, &fakeEmbedder{}, nil, 3)
	require.NoError(t, m.LoadAll(context.Background(), root))

	info, err := os.Stat(root)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	_, err = m.DefaultID()
	assert.Error(t, err)
}

func TestDefaultResolution(t *testing.T) {
	root := t.TempDir()
	writeBundle(t, root, "alpha", minimalConfig)
	writeBundle(t, root, "beta", minimalConfig+"is_default: true\n")

	m := NewManager(nopLogger{}, &fakeEmbedder{}, nil, 3)
	require.NoError(t, m.LoadAll(context.Background(), root))

	id, err := m.DefaultID()
	require.NoError(t, err)
	assert.Equal(t, "beta", id)
}

func TestDefaultFallsBackToFirstLoaded(t *testing.T) {
	root := t.TempDir()
	writeBundle(t, root, "zeta", minimalConfig)
	writeBundle(t, root, "alpha", minimalConfig)

	m := NewManager(nopLogger{}, &fakeEmbedder{}, nil, 3)
	require.NoError(t, m.LoadAll(context.Background(), root))

	id, err := m.DefaultID()
	require.NoError(t, err)
	assert.Equal(t, "alpha", id, "directories are scanned in sorted order")
}

func TestSetDefaultIgnoresUnknownID(t *testing.T) {
	root := t.TempDir()
	writeBundle(t, root, "aria", minimalConfig)

	m := NewManager(nopLogger{}, &fakeEmbedder{}, nil, 3)
	require.NoError(t, m.LoadAll(context.Background(), root))

	m.SetDefault("ghost")
	id, err := m.DefaultID()
	require.NoError(t, err)
	assert.Equal(t, "aria", id)
}

func TestLoadAllIndexesKnowledgeDirectory(t *testing.T) {
	root := t.TempDir()
	writeBundle(t, root, "aria", minimalConfig)
	knowledgeDir := filepath.Join(root, "aria", "knowledge")
	require.NoError(t, os.MkdirAll(knowledgeDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(knowledgeDir, "lore.txt"), []byte("born on a space station"), 0o644))

	repo := &fakeEmbedRepo{}
	m := NewManager(nopLogger{}, &fakeEmbedder{}, repo, 3)
	require.NoError(t, m.LoadAll(context.Background(), root))

	bundle, err := m.Get("aria")
	require.NoError(t, err)
	assert.Equal(t, 1, bundle.Index.Count())

	// The embedded chunk is persisted for later warm starts.
	require.Len(t, repo.stored, 1)
	assert.Equal(t, "aria", repo.stored[0].PersonaId)
	assert.Equal(t, "lore.txt", repo.stored[0].Source)
}

func TestWarmStartSkipsEmbeddingProvider(t *testing.T) {
	root := t.TempDir()
	writeBundle(t, root, "aria", minimalConfig)

	provider := &fakeEmbedder{}
	repo := &fakeEmbedRepo{findResults: []model.KnowledgeEmbedding{
		{PersonaId: "aria", Document: "cached fact", EmbeddingValue: pgvector.NewVector([]float32{1, 0, 0})},
	}}
	m := NewManager(nopLogger{}, provider, repo, 3)
	require.NoError(t, m.LoadAll(context.Background(), root))

	bundle, err := m.Get("aria")
	require.NoError(t, err)
	assert.Equal(t, 1, bundle.Index.Count())
	assert.Zero(t, provider.calls, "warm start must not re-embed the corpus")
}

func TestIndexDocumentUnknownPersona(t *testing.T) {
	m := NewManager(nopLogger{}, &fakeEmbedder{}, nil, 3)
	_, err := m.IndexDocument(context.Background(), "ghost", "src", "text")
	assert.Error(t, err)
}

func TestIndexDocumentAddsChunks(t *testing.T) {
	root := t.TempDir()
	writeBundle(t, root, "aria", minimalConfig)

	repo := &fakeEmbedRepo{}
	m := NewManager(nopLogger{}, &fakeEmbedder{}, repo, 3)
	require.NoError(t, m.LoadAll(context.Background(), root))

	n, err := m.IndexDocument(context.Background(), "aria", "upload", "a new fact about the streamer")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	bundle, _ := m.Get("aria")
	assert.Equal(t, 1, bundle.Index.Count())
	assert.Len(t, repo.stored, 1)
}
