package dto

// IndexKnowledge is the pub/sub payload for the async indexing pipeline.
// Text is chunked, embedded and added to the persona's index by the consumer.
type IndexKnowledge struct {
	PersonaID string `json:"persona_id"`
	Source    string `json:"source"`
	Text      string `json:"text"`
}

type UploadKnowledgeRequest struct {
	PersonaID string `json:"persona_id" validate:"required"`
	Source    string `json:"source"`
	Text      string `json:"text" validate:"required"`
}

type KnowledgeStatusResponse struct {
	PersonaID   string `json:"persona_id"`
	ChunkCount  int    `json:"chunk_count"`
	StoredCount int64  `json:"stored_count"`
}
