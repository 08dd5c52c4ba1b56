package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPProvider talks to an edge-tts compatible sidecar over HTTP.
// POST {baseURL}/api/tts with the text and voice settings, response body is
// the MP3 audio.
type HTTPProvider struct {
	BaseURL string
	Client  *http.Client
}

var _ Provider = &HTTPProvider{}

func NewHTTPProvider(baseURL string) *HTTPProvider {
	return &HTTPProvider{
		BaseURL: baseURL,
		Client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type synthesizeRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
	Rate  string `json:"rate,omitempty"`
	Pitch string `json:"pitch,omitempty"`
}

func (p *HTTPProvider) Synthesize(ctx context.Context, text string, voice Voice) ([]byte, error) {
	payload, err := json.Marshal(synthesizeRequest{
		Text:  text,
		Voice: voice.Name,
		Rate:  voice.Rate,
		Pitch: voice.Pitch,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.BaseURL+"/api/tts", bytes.NewBuffer(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts request failed: %w", err)
	}
	defer res.Body.Close()

	audio, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tts error: status %d, body %s", res.StatusCode, string(audio))
	}
	return audio, nil
}
