package embedding

import "context"

// EmbeddingProvider generates a vector for one piece of text. taskType is the
// provider-specific hint ("RETRIEVAL_DOCUMENT", "RETRIEVAL_QUERY"); backends
// that do not distinguish the two ignore it.
type EmbeddingProvider interface {
	Generate(ctx context.Context, text string, taskType string) (*EmbeddingResponse, error)
}
