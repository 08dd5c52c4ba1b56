package service

import (
	"context"

	"ai-streamer-be/internal/model"
	"ai-streamer-be/internal/persona"
	"ai-streamer-be/internal/pkg/logger"
	"ai-streamer-be/internal/repository/contract"
	"ai-streamer-be/pkg/llm"
	"ai-streamer-be/pkg/rag/prompt"
)

// SessionContext ties one chat session to a persona's knowledge index and an
// optional persistence target. It is the unit shared by every viewer of a
// room: whoever holds it gets RAG-grounded prompts and durable history.
type SessionContext struct {
	bundle      *persona.Bundle
	chat        *llm.ChatSession
	messageRepo contract.IChatMessageRepository
	roomID      string
	log         logger.ILogger
}

// NewSessionContext builds a context. messageRepo may be nil (or roomID
// empty) for throwaway sessions that should not be persisted.
func NewSessionContext(
	bundle *persona.Bundle,
	chat *llm.ChatSession,
	messageRepo contract.IChatMessageRepository,
	roomID string,
	log logger.ILogger,
) *SessionContext {
	return &SessionContext{
		bundle:      bundle,
		chat:        chat,
		messageRepo: messageRepo,
		roomID:      roomID,
		log:         log,
	}
}

func (s *SessionContext) Persona() persona.Config {
	return s.bundle.Config
}

// HandleMessage runs one non-streaming turn and returns the full reply.
func (s *SessionContext) HandleMessage(ctx context.Context, userMessage string) string {
	finalPrompt := buildPrompt(ctx, s.bundle, userMessage, s.log)
	reply := s.chat.Send(ctx, finalPrompt)
	s.persist(ctx, userMessage, reply)
	return reply
}

// StreamReply runs one streaming turn. The raw danmaku and the assembled
// reply are persisted after the stream is fully drained, never mid-flight.
func (s *SessionContext) StreamReply(ctx context.Context, userMessage string) <-chan string {
	finalPrompt := buildPrompt(ctx, s.bundle, userMessage, s.log)
	inner := s.chat.SendStream(ctx, finalPrompt)

	out := make(chan string)
	go func() {
		defer close(out)
		var full string
		for fragment := range inner {
			full += fragment
			select {
			case out <- fragment:
			case <-ctx.Done():
				// Keep draining so the session records the turn.
				for range inner {
				}
				return
			}
		}
		s.persist(ctx, userMessage, full)
	}()
	return out
}

// persist writes the user danmaku then the model reply, in that order. A
// storage failure is logged and swallowed, it must never break a live turn.
func (s *SessionContext) persist(ctx context.Context, userMessage, reply string) {
	if s.messageRepo == nil || s.roomID == "" {
		return
	}
	if err := s.messageRepo.Save(ctx, chatMessage(s.roomID, "user", userMessage)); err != nil {
		s.log.Warn("SessionContext", "failed to persist user message", map[string]interface{}{
			"room_id": s.roomID,
			"error":   err.Error(),
		})
		return
	}
	if err := s.messageRepo.Save(ctx, chatMessage(s.roomID, "model", reply)); err != nil {
		s.log.Warn("SessionContext", "failed to persist model reply", map[string]interface{}{
			"room_id": s.roomID,
			"error":   err.Error(),
		})
	}
}

func chatMessage(roomID, role, content string) *model.ChatMessage {
	return &model.ChatMessage{RoomId: roomID, Role: role, Content: content}
}

// buildPrompt retrieves persona knowledge for the danmaku and assembles the
// final prompt. A retrieval failure degrades to a knowledge-free prompt.
func buildPrompt(ctx context.Context, bundle *persona.Bundle, userMessage string, log logger.ILogger) string {
	knowledge, err := bundle.Index.Search(ctx, userMessage, bundle.Config.RAG.SearchTopK)
	if err != nil {
		log.Warn("SessionContext", "knowledge retrieval failed", map[string]interface{}{
			"persona_id": bundle.ID,
			"error":      err.Error(),
		})
		knowledge = ""
	}
	return prompt.BuildDanmaku(userMessage, knowledge)
}
