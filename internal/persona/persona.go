package persona

import (
	"fmt"

	"ai-streamer-be/pkg/rag/chunker"
	"ai-streamer-be/pkg/rag/index"
	"ai-streamer-be/pkg/tts"
)

// RAGConfig tunes the per-persona knowledge index.
type RAGConfig struct {
	ChunkSize         int     `yaml:"chunk_size"`
	ChunkOverlap      int     `yaml:"chunk_overlap"`
	SearchTopK        int     `yaml:"search_top_k"`
	DistanceThreshold float32 `yaml:"distance_threshold"`
}

// Config is the parsed config.yaml of one persona bundle.
type Config struct {
	Name              string    `yaml:"name"`
	Description       string    `yaml:"description"`
	SystemPrompt      string    `yaml:"system_prompt"`
	IsDefault         bool      `yaml:"is_default"`
	TTS               tts.Voice `yaml:"tts"`
	RAG               RAGConfig `yaml:"rag"`
	FallbackResponses []string  `yaml:"fallback_responses"`
}

func (c *Config) applyDefaults() {
	if c.RAG.ChunkSize == 0 {
		c.RAG.ChunkSize = 200
	}
	if c.RAG.ChunkOverlap == 0 {
		c.RAG.ChunkOverlap = 50
	}
	if c.RAG.SearchTopK == 0 {
		c.RAG.SearchTopK = 2
	}
	if c.RAG.DistanceThreshold == 0 {
		c.RAG.DistanceThreshold = 1.25
	}
	if c.TTS.Rate == "" {
		c.TTS.Rate = "+0%"
	}
	if c.TTS.Pitch == "" {
		c.TTS.Pitch = "+0Hz"
	}
	if len(c.FallbackResponses) == 0 {
		c.FallbackResponses = []string{
			"The streamer is thinking...",
			"Oops, the stream lagged for a second, bear with me~",
			"One moment, let me gather my thoughts~",
			"Hmm... let me think about that!",
		}
	}
}

func (c *Config) validate() error {
	if c.Name == "" {
		return fmt.Errorf("persona: name is required")
	}
	if c.SystemPrompt == "" {
		return fmt.Errorf("persona: system_prompt is required")
	}
	if c.TTS.Name == "" {
		return fmt.Errorf("persona: tts.voice is required")
	}
	return nil
}

// Bundle pairs a parsed persona config with its private knowledge index.
type Bundle struct {
	ID      string
	Config  Config
	Index   *index.Index
	chunker *chunker.SlidingWindow
}
