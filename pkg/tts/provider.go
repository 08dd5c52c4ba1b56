package tts

import (
	"context"
)

// Voice holds the synthesis parameters from a persona bundle.
type Voice struct {
	Name  string `yaml:"voice" json:"voice"`
	Rate  string `yaml:"rate" json:"rate"`
	Pitch string `yaml:"pitch" json:"pitch"`
}

// Provider synthesizes speech for a finished reply. Implementations return
// the raw audio bytes; an error means no audio for this turn, never a broken
// conversation.
type Provider interface {
	Synthesize(ctx context.Context, text string, voice Voice) ([]byte, error)
}
