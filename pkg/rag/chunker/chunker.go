package chunker

import (
	"fmt"
	"strings"
)

// SlidingWindow splits raw text into bounded, overlapping chunks.
// Text is pre-split on blank-line paragraph boundaries, paragraphs are merged
// greedily up to MaxLen runes, and the tail Overlap runes of a flushed chunk
// seed the next window. Oversized paragraphs are force-split.
type SlidingWindow struct {
	MaxLen  int
	Overlap int
}

// New validates the window parameters. Overlap must stay below MaxLen,
// otherwise the window could never advance.
func New(maxLen, overlap int) (*SlidingWindow, error) {
	if maxLen <= 0 {
		return nil, fmt.Errorf("chunker: maxLen must be positive, got %d", maxLen)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("chunker: overlap must not be negative, got %d", overlap)
	}
	if overlap >= maxLen {
		return nil, fmt.Errorf("chunker: overlap (%d) must be smaller than maxLen (%d)", overlap, maxLen)
	}
	return &SlidingWindow{MaxLen: maxLen, Overlap: overlap}, nil
}

// Chunk splits text into non-empty segments of at most MaxLen runes each.
// The result is fully materialized and deterministic. Empty or
// whitespace-only input yields no chunks.
func (c *SlidingWindow) Chunk(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	paragraphs := splitParagraphs(text)
	if len(paragraphs) == 0 {
		return nil
	}

	var chunks []string
	current := ""

	for _, para := range paragraphs {
		paraRunes := []rune(para)

		// A single paragraph above the window size cannot be merged,
		// flush whatever is pending and slice it directly.
		if len(paraRunes) > c.MaxLen {
			if current != "" {
				chunks = append(chunks, strings.TrimSpace(current))
				current = ""
			}
			chunks = append(chunks, c.forceSplit(paraRunes)...)
			continue
		}

		candidate := para
		if current != "" {
			candidate = current + "\n\n" + para
		}

		if len([]rune(candidate)) <= c.MaxLen {
			current = candidate
			continue
		}

		// Window full: flush and seed the next window with the overlap tail.
		if current != "" {
			chunks = append(chunks, strings.TrimSpace(current))
		}
		if c.Overlap > 0 && current != "" {
			currentRunes := []rune(current)
			tail := string(currentRunes[len(currentRunes)-min(c.Overlap, len(currentRunes)):])
			current = tail + "\n\n" + para
			if len([]rune(current)) > c.MaxLen {
				current = para
			}
		} else {
			current = para
		}
	}

	if strings.TrimSpace(current) != "" {
		chunks = append(chunks, strings.TrimSpace(current))
	}

	out := chunks[:0]
	for _, ch := range chunks {
		if ch != "" {
			out = append(out, ch)
		}
	}
	return out
}

func splitParagraphs(text string) []string {
	raw := strings.Split(text, "\n\n")
	paragraphs := make([]string, 0, len(raw))
	for _, p := range raw {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			paragraphs = append(paragraphs, trimmed)
		}
	}
	return paragraphs
}

// forceSplit cuts an oversized paragraph into fixed windows of MaxLen runes,
// stepping back Overlap runes between windows.
func (c *SlidingWindow) forceSplit(runes []rune) []string {
	var pieces []string
	for start := 0; start < len(runes); {
		end := start + c.MaxLen
		if end > len(runes) {
			end = len(runes)
		}
		if piece := strings.TrimSpace(string(runes[start:end])); piece != "" {
			pieces = append(pieces, piece)
		}
		if end == len(runes) {
			break
		}
		start = end - c.Overlap
	}
	return pieces
}
