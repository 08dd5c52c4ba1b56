package persona

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pgvector/pgvector-go"
	"gopkg.in/yaml.v3"

	"ai-streamer-be/internal/model"
	"ai-streamer-be/internal/pkg/logger"
	"ai-streamer-be/internal/repository/contract"
	"ai-streamer-be/pkg/embedding"
	"ai-streamer-be/pkg/rag/chunker"
	"ai-streamer-be/pkg/rag/index"
	"ai-streamer-be/pkg/rag/loader"
)

const taskDocument = "RETRIEVAL_DOCUMENT"

// Manager loads persona bundles from disk and keeps one knowledge index per
// persona. Bundles are loaded once at startup; after LoadAll the map is
// read-only, so lookups need no locking. IndexDocument only mutates the
// per-persona index, which is safe for concurrent use.
type Manager struct {
	log       logger.ILogger
	provider  embedding.EmbeddingProvider
	embedRepo contract.IKnowledgeEmbeddingRepository
	dimension int

	personas  map[string]*Bundle
	defaultID string
}

func NewManager(
	log logger.ILogger,
	provider embedding.EmbeddingProvider,
	embedRepo contract.IKnowledgeEmbeddingRepository,
	dimension int,
) *Manager {
	return &Manager{
		log:       log,
		provider:  provider,
		embedRepo: embedRepo,
		dimension: dimension,
		personas:  make(map[string]*Bundle),
	}
}

// LoadAll scans dir for persona bundles (one subdirectory each, holding a
// config.yaml and an optional knowledge/ corpus). A broken bundle is logged
// and skipped, it never takes the whole startup down.
func (m *Manager) LoadAll(ctx context.Context, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			m.log.Warn("persona", "personas directory does not exist, creating it", map[string]interface{}{"dir": dir})
			return os.MkdirAll(dir, 0o755)
		}
		return fmt.Errorf("persona: reading %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		bundleDir := filepath.Join(dir, name)
		configPath := filepath.Join(bundleDir, "config.yaml")
		if _, err := os.Stat(configPath); err != nil {
			continue
		}
		bundle, err := m.loadBundle(ctx, name, configPath, bundleDir)
		if err != nil {
			m.log.Error("persona", "failed to load persona bundle", map[string]interface{}{
				"persona_id": name,
				"error":      err.Error(),
			})
			continue
		}
		m.personas[name] = bundle
		if bundle.Config.IsDefault && m.defaultID == "" {
			m.defaultID = name
		}
		m.log.Info("persona", "loaded persona bundle", map[string]interface{}{
			"persona_id": name,
			"name":       bundle.Config.Name,
			"chunks":     bundle.Index.Count(),
		})
	}

	if m.defaultID == "" && len(names) > 0 {
		for _, name := range names {
			if _, ok := m.personas[name]; ok {
				m.defaultID = name
				break
			}
		}
	}
	return nil
}

func (m *Manager) loadBundle(ctx context.Context, personaID, configPath, bundleDir string) (*Bundle, error) {
	raw, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("persona: parsing %s: %w", configPath, err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	ix, err := index.New(m.provider, index.Config{
		Dimension:    m.dimension,
		ChunkSize:    cfg.RAG.ChunkSize,
		ChunkOverlap: cfg.RAG.ChunkOverlap,
		Threshold:    cfg.RAG.DistanceThreshold,
	})
	if err != nil {
		return nil, err
	}
	cw, err := chunker.New(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	bundle := &Bundle{ID: personaID, Config: cfg, Index: ix, chunker: cw}

	warmed, err := m.warmStart(ctx, bundle)
	if err != nil {
		m.log.Warn("persona", "embedding cache unavailable, re-indexing from disk", map[string]interface{}{
			"persona_id": personaID,
			"error":      err.Error(),
		})
	}
	if !warmed {
		if err := m.indexKnowledgeDir(ctx, bundle, filepath.Join(bundleDir, "knowledge")); err != nil {
			return nil, err
		}
	}
	return bundle, nil
}

// warmStart restores the index from persisted embeddings, skipping the
// embedding provider entirely. Returns false when nothing is cached.
func (m *Manager) warmStart(ctx context.Context, bundle *Bundle) (bool, error) {
	if m.embedRepo == nil {
		return false, nil
	}
	stored, err := m.embedRepo.FindByPersona(ctx, bundle.ID)
	if err != nil {
		return false, err
	}
	if len(stored) == 0 {
		return false, nil
	}
	chunks := make([]string, len(stored))
	vectors := make([][]float32, len(stored))
	for i, s := range stored {
		chunks[i] = s.Document
		vectors[i] = s.EmbeddingValue.Slice()
	}
	if err := bundle.Index.AddVectors(chunks, vectors); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Manager) indexKnowledgeDir(ctx context.Context, bundle *Bundle, knowledgeDir string) error {
	if _, err := os.Stat(knowledgeDir); os.IsNotExist(err) {
		return os.MkdirAll(knowledgeDir, 0o755)
	}
	docs, err := loader.LoadDirectory(knowledgeDir)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		if _, err := m.indexDocument(ctx, bundle, filepath.Base(doc.Path), doc.Text); err != nil {
			m.log.Error("persona", "failed to index knowledge file", map[string]interface{}{
				"persona_id": bundle.ID,
				"file":       doc.Path,
				"error":      err.Error(),
			})
		}
	}
	return nil
}

// IndexDocument chunks and embeds text into the persona's index and persists
// the vectors so later startups can warm-start without re-embedding.
func (m *Manager) IndexDocument(ctx context.Context, personaID, source, text string) (int, error) {
	bundle, err := m.Get(personaID)
	if err != nil {
		return 0, err
	}
	return m.indexDocument(ctx, bundle, source, text)
}

func (m *Manager) indexDocument(ctx context.Context, bundle *Bundle, source, text string) (int, error) {
	chunks := bundle.chunker.Chunk(text)
	if len(chunks) == 0 {
		return 0, nil
	}

	vectors := make([][]float32, 0, len(chunks))
	records := make([]*model.KnowledgeEmbedding, 0, len(chunks))
	for i, chunk := range chunks {
		res, err := m.provider.Generate(ctx, chunk, taskDocument)
		if err != nil {
			return 0, fmt.Errorf("persona: embedding chunk %d of %s: %w", i, source, err)
		}
		vectors = append(vectors, res.Embedding.Values)
		records = append(records, &model.KnowledgeEmbedding{
			PersonaId:      bundle.ID,
			Source:         source,
			Document:       chunk,
			EmbeddingValue: pgvector.NewVector(res.Embedding.Values),
			ChunkIndex:     i,
		})
	}

	if err := bundle.Index.AddVectors(chunks, vectors); err != nil {
		return 0, err
	}
	if m.embedRepo != nil {
		if err := m.embedRepo.CreateBulk(ctx, records); err != nil {
			// The in-memory index already holds the chunks; the next startup
			// re-embeds from disk instead of warm-starting.
			m.log.Warn("persona", "failed to persist embedding cache", map[string]interface{}{
				"persona_id": bundle.ID,
				"source":     source,
				"error":      err.Error(),
			})
		}
	}
	return len(chunks), nil
}

func (m *Manager) Get(personaID string) (*Bundle, error) {
	bundle, ok := m.personas[personaID]
	if !ok {
		return nil, fmt.Errorf("persona: unknown persona_id %q", personaID)
	}
	return bundle, nil
}

// SetDefault overrides the default persona. Unknown IDs are ignored.
func (m *Manager) SetDefault(personaID string) {
	if _, ok := m.personas[personaID]; ok {
		m.defaultID = personaID
	}
}

// DefaultID returns the persona marked is_default, or the first loaded one.
func (m *Manager) DefaultID() (string, error) {
	if m.defaultID == "" {
		return "", fmt.Errorf("persona: no personas loaded")
	}
	return m.defaultID, nil
}

func (m *Manager) List() []*Bundle {
	ids := make([]string, 0, len(m.personas))
	for id := range m.personas {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	bundles := make([]*Bundle, 0, len(ids))
	for _, id := range ids {
		bundles = append(bundles, m.personas[id])
	}
	return bundles
}
