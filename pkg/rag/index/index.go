package index

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"ai-streamer-be/pkg/embedding"
	"ai-streamer-be/pkg/rag/chunker"
)

// Task types passed to the embedding provider, matching the Gemini API codes.
const (
	taskDocument = "RETRIEVAL_DOCUMENT"
	taskQuery    = "RETRIEVAL_QUERY"
)

// Index is an append-only, in-memory vector index over text chunks.
// Exact squared-L2 nearest-neighbor search with a distance cutoff; corpora are
// small (hundreds to low thousands of chunks), so brute force beats the
// complexity of an approximate index.
//
// Safe for concurrent use: Search takes a read lock, Add a write lock.
type Index struct {
	mu sync.RWMutex

	dimension int
	threshold float32
	provider  embedding.EmbeddingProvider
	chunker   *chunker.SlidingWindow

	chunks  []string
	vectors [][]float32
}

// Config carries the retrieval parameters for one index.
type Config struct {
	Dimension    int
	ChunkSize    int
	ChunkOverlap int
	// Threshold is the maximum squared L2 distance for a hit; anything
	// farther is discarded so unrelated queries return nothing.
	Threshold float32
}

func New(provider embedding.EmbeddingProvider, cfg Config) (*Index, error) {
	if provider == nil {
		return nil, fmt.Errorf("index: embedding provider is required")
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("index: dimension must be positive, got %d", cfg.Dimension)
	}
	cw, err := chunker.New(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	return &Index{
		dimension: cfg.Dimension,
		threshold: cfg.Threshold,
		provider:  provider,
		chunker:   cw,
	}, nil
}

// Add chunks the text, embeds every chunk and appends chunks with their
// vectors. Returns the number of chunks added. An embedding failure aborts
// the whole Add; nothing from a failed call is left in the index.
func (ix *Index) Add(ctx context.Context, text string) (int, error) {
	chunks := ix.chunker.Chunk(text)
	if len(chunks) == 0 {
		return 0, nil
	}

	vectors := make([][]float32, 0, len(chunks))
	for i, chunk := range chunks {
		res, err := ix.provider.Generate(ctx, chunk, taskDocument)
		if err != nil {
			return 0, fmt.Errorf("index: embedding chunk %d: %w", i, err)
		}
		vec := res.Embedding.Values
		if len(vec) != ix.dimension {
			return 0, fmt.Errorf("index: embedding dimension mismatch: got %d, want %d", len(vec), ix.dimension)
		}
		vectors = append(vectors, vec)
	}

	ix.mu.Lock()
	ix.chunks = append(ix.chunks, chunks...)
	ix.vectors = append(ix.vectors, vectors...)
	ix.mu.Unlock()

	return len(chunks), nil
}

// AddVectors appends pre-embedded chunks, used to warm the index from the
// persisted embedding cache without calling the provider again.
func (ix *Index) AddVectors(chunks []string, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("index: chunks/vectors length mismatch: %d vs %d", len(chunks), len(vectors))
	}
	for i, vec := range vectors {
		if len(vec) != ix.dimension {
			return fmt.Errorf("index: vector %d dimension mismatch: got %d, want %d", i, len(vec), ix.dimension)
		}
	}
	ix.mu.Lock()
	ix.chunks = append(ix.chunks, chunks...)
	ix.vectors = append(ix.vectors, vectors...)
	ix.mu.Unlock()
	return nil
}

// Count returns the number of indexed chunks.
func (ix *Index) Count() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.chunks)
}

// Search embeds the query and returns the text of the topK nearest chunks
// within the distance threshold, joined by newlines in ascending-distance
// order. An empty index returns "" without touching the provider; so does a
// query whose every hit falls beyond the threshold.
func (ix *Index) Search(ctx context.Context, query string, topK int) (string, error) {
	if ix.Count() == 0 {
		return "", nil
	}
	if topK <= 0 {
		topK = 1
	}

	res, err := ix.provider.Generate(ctx, query, taskQuery)
	if err != nil {
		return "", fmt.Errorf("index: embedding query: %w", err)
	}
	q := res.Embedding.Values
	if len(q) != ix.dimension {
		return "", fmt.Errorf("index: query dimension mismatch: got %d, want %d", len(q), ix.dimension)
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	type hit struct {
		idx  int
		dist float32
	}
	hits := make([]hit, len(ix.vectors))
	for i, vec := range ix.vectors {
		hits[i] = hit{idx: i, dist: squaredL2(q, vec)}
	}

	// Stable sort keeps insertion order on distance ties.
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].dist < hits[b].dist })

	if topK > len(hits) {
		topK = len(hits)
	}

	var results []string
	for _, h := range hits[:topK] {
		if h.dist > ix.threshold {
			continue
		}
		results = append(results, ix.chunks[h.idx])
	}
	return strings.Join(results, "\n"), nil
}

func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
