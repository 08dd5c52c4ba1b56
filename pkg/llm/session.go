package llm

import (
	"context"
	"math/rand"
	"sync"
)

// ChatSession is a stateful conversation handle over an LLMProvider: it owns
// the growing message history (system prompt first, then alternating turns)
// and substitutes a configured fallback reply when the provider fails, so the
// user-visible channel is never unexpectedly empty.
//
// A session must not run two generations at once; the internal mutex
// serializes callers.
type ChatSession struct {
	mu sync.Mutex

	provider  LLMProvider
	history   []Message
	fallbacks []string
	opts      []Option
}

// NewChatSession seeds the handle with the system prompt and optional prior
// history (oldest first, already capped by the caller).
func NewChatSession(provider LLMProvider, systemPrompt string, seed []Message, fallbacks []string, opts ...Option) *ChatSession {
	history := make([]Message, 0, len(seed)+1)
	if systemPrompt != "" {
		history = append(history, Message{Role: "system", Content: systemPrompt})
	}
	history = append(history, seed...)

	return &ChatSession{
		provider:  provider,
		history:   history,
		fallbacks: fallbacks,
		opts:      opts,
	}
}

// History returns a copy of the accumulated conversation.
func (s *ChatSession) History() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.history))
	copy(out, s.history)
	return out
}

// Send runs one non-streaming turn. Provider failures are swallowed and
// replaced by a fallback reply; the failed turn is still recorded so the
// conversation stays consistent with what viewers saw.
func (s *ChatSession) Send(ctx context.Context, prompt string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	attempt := append(s.copyHistory(), Message{Role: "user", Content: prompt})
	reply, err := s.provider.Chat(ctx, attempt, s.opts...)
	if err != nil || reply == "" {
		reply = s.fallback()
	}

	s.history = append(attempt, Message{Role: "model", Content: reply})
	return reply
}

// SendStream runs one streaming turn. The returned channel is finite and
// single-pass; the caller must drain it. The turn is appended to the history
// once the stream completes. An upfront provider failure or a mid-stream
// error yields a fallback fragment instead of an error.
func (s *ChatSession) SendStream(ctx context.Context, prompt string) <-chan string {
	out := make(chan string)

	go func() {
		defer close(out)

		s.mu.Lock()
		defer s.mu.Unlock()

		attempt := append(s.copyHistory(), Message{Role: "user", Content: prompt})

		stream, err := s.provider.ChatStream(ctx, attempt, s.opts...)
		if err != nil {
			reply := s.fallback()
			s.history = append(attempt, Message{Role: "model", Content: reply})
			select {
			case out <- reply:
			case <-ctx.Done():
			}
			return
		}

		var full string
		for fragment := range stream {
			if fragment.Err != nil {
				// Stream died mid-reply: close out with a fallback so the
				// viewer still gets a complete-looking turn.
				fb := s.fallback()
				full += fb
				select {
				case out <- fb:
				case <-ctx.Done():
					return
				}
				break
			}
			full += fragment.Content
			select {
			case out <- fragment.Content:
			case <-ctx.Done():
				return
			}
		}

		if full == "" {
			full = s.fallback()
			select {
			case out <- full:
			case <-ctx.Done():
				return
			}
		}
		s.history = append(attempt, Message{Role: "model", Content: full})
	}()

	return out
}

func (s *ChatSession) copyHistory() []Message {
	out := make([]Message, len(s.history))
	copy(out, s.history)
	return out
}

func (s *ChatSession) fallback() string {
	if len(s.fallbacks) == 0 {
		return "..."
	}
	return s.fallbacks[rand.Intn(len(s.fallbacks))]
}
