package service

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"

	"ai-streamer-be/internal/model"
	"ai-streamer-be/internal/persona"
	"ai-streamer-be/internal/pkg/logger"
	"ai-streamer-be/internal/repository/contract"
	"ai-streamer-be/internal/repository/memory"
	"ai-streamer-be/internal/websocket"
	"ai-streamer-be/pkg/events"
	"ai-streamer-be/pkg/llm"
	natspkg "ai-streamer-be/pkg/nats"
)

// Room is one live room: a shared bot context plus the broadcaster that fans
// frames out to its viewers. Rooms live for the process lifetime.
type Room struct {
	RoomID      string
	PersonaID   string
	Session     *SessionContext
	Broadcaster *websocket.RoomBroadcaster
}

// LiveService is the room registry. Rooms are created lazily on first
// access, seeded with persisted history so the persona remembers past turns
// across restarts.
type LiveService struct {
	mu    sync.Mutex
	rooms map[string]*Room

	pm          *persona.Manager
	provider    llm.LLMProvider
	messageRepo contract.IChatMessageRepository
	roomRepo    contract.IRoomRepository
	sessions    *memory.SessionRepository
	rdb         *redis.Client
	publisher   *natspkg.Publisher

	historyLimit int
	log          logger.ILogger
}

func NewLiveService(
	pm *persona.Manager,
	provider llm.LLMProvider,
	messageRepo contract.IChatMessageRepository,
	roomRepo contract.IRoomRepository,
	sessions *memory.SessionRepository,
	rdb *redis.Client,
	publisher *natspkg.Publisher,
	historyLimit int,
	log logger.ILogger,
) *LiveService {
	return &LiveService{
		rooms:        make(map[string]*Room),
		pm:           pm,
		provider:     provider,
		messageRepo:  messageRepo,
		roomRepo:     roomRepo,
		sessions:     sessions,
		rdb:          rdb,
		publisher:    publisher,
		historyLimit: historyLimit,
		log:          log,
	}
}

// GetRoom returns the room, creating it on first access. The personaID only
// matters at creation; an existing room keeps the persona it started with.
func (s *LiveService) GetRoom(ctx context.Context, roomID, personaID string) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if room, ok := s.rooms[roomID]; ok {
		return room, nil
	}

	bundle, err := s.resolvePersona(personaID)
	if err != nil {
		return nil, err
	}

	seed := s.loadHistory(ctx, roomID)
	chat := llm.NewChatSession(s.provider, bundle.Config.SystemPrompt, seed, bundle.Config.FallbackResponses)
	room := &Room{
		RoomID:      roomID,
		PersonaID:   bundle.ID,
		Session:     NewSessionContext(bundle, chat, s.messageRepo, roomID, s.log),
		Broadcaster: websocket.NewRoomBroadcaster(roomID, s.rdb, s.log),
	}
	s.rooms[roomID] = room

	s.recordRoom(ctx, room, bundle)
	s.publishEvent(ctx, events.NewRoomCreated(roomID, bundle.ID))

	s.log.Info("LiveService", "room created", map[string]interface{}{
		"room_id":    roomID,
		"persona_id": bundle.ID,
		"restored":   len(seed),
	})
	return room, nil
}

// Lookup returns an already-created room without creating one.
func (s *LiveService) Lookup(roomID string) (*Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	return room, ok
}

// RoomRecord returns the persisted creation record for a room that is not
// live on this instance, or nil when it was never created anywhere.
func (s *LiveService) RoomRecord(ctx context.Context, roomID string) (*model.Room, error) {
	if s.roomRepo == nil {
		return nil, nil
	}
	return s.roomRepo.FindByRoomID(ctx, roomID)
}

// PersistedRooms lists every room ever recorded, including ones without a
// single viewer right now.
func (s *LiveService) PersistedRooms(ctx context.Context) ([]model.Room, error) {
	if s.roomRepo == nil {
		return nil, nil
	}
	return s.roomRepo.FindAll(ctx)
}

// PersonaName resolves a persona's display name, falling back to the raw ID
// for personas that are no longer loaded.
func (s *LiveService) PersonaName(personaID string) string {
	bundle, err := s.pm.Get(personaID)
	if err != nil {
		return personaID
	}
	return bundle.Config.Name
}

// ListRooms returns the active rooms ordered by room ID.
func (s *LiveService) ListRooms() []*Room {
	s.mu.Lock()
	defer s.mu.Unlock()

	rooms := make([]*Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		rooms = append(rooms, room)
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].RoomID < rooms[j].RoomID })
	return rooms
}

// HandleDanmaku serves the stateless HTTP chat path. A session ID from a
// previous response continues that conversation while it is still cached;
// otherwise a fresh unpersisted session is created.
func (s *LiveService) HandleDanmaku(ctx context.Context, sessionID, personaID, message string) (string, string, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		bundle, err := s.resolvePersona(personaID)
		if err != nil {
			return "", "", err
		}
		session = &memory.DanmakuSession{
			ID:        uuid.NewString(),
			PersonaID: bundle.ID,
			Chat:      llm.NewChatSession(s.provider, bundle.Config.SystemPrompt, nil, bundle.Config.FallbackResponses),
		}
	}

	bundle, err := s.pm.Get(session.PersonaID)
	if err != nil {
		return "", "", err
	}

	reply := session.Chat.Send(ctx, buildPrompt(ctx, bundle, message, s.log))
	s.sessions.Save(session)
	return session.ID, reply, nil
}

// History pages through a room's persisted conversation.
func (s *LiveService) History(ctx context.Context, roomID string, skip, limit int) ([]model.ChatMessage, int64, error) {
	messages, err := s.messageRepo.GetAllMessages(ctx, roomID, skip, limit)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.messageRepo.CountMessages(ctx, roomID)
	if err != nil {
		return nil, 0, err
	}
	return messages, total, nil
}

// PublishTurnCompleted emits a turn metric onto the event bus, best effort.
func (s *LiveService) PublishTurnCompleted(ctx context.Context, roomID string, userLen, replyLen int, audio bool) {
	s.publishEvent(ctx, events.NewTurnCompleted(roomID, userLen, replyLen, audio))
}

func (s *LiveService) PublishViewerJoined(ctx context.Context, roomID string, online int) {
	s.publishEvent(ctx, events.NewViewerJoined(roomID, online))
}

func (s *LiveService) PublishViewerLeft(ctx context.Context, roomID string, online int) {
	s.publishEvent(ctx, events.NewViewerLeft(roomID, online))
}

// Personas exposes the loaded bundles for the REST surface.
func (s *LiveService) Personas() []*persona.Bundle {
	return s.pm.List()
}

func (s *LiveService) DefaultPersonaID() string {
	id, _ := s.pm.DefaultID()
	return id
}

func (s *LiveService) resolvePersona(personaID string) (*persona.Bundle, error) {
	if personaID == "" {
		defaultID, err := s.pm.DefaultID()
		if err != nil {
			return nil, err
		}
		personaID = defaultID
	}
	return s.pm.Get(personaID)
}

func (s *LiveService) loadHistory(ctx context.Context, roomID string) []llm.Message {
	if s.messageRepo == nil {
		return nil
	}
	stored, err := s.messageRepo.GetHistory(ctx, roomID, s.historyLimit)
	if err != nil {
		s.log.Warn("LiveService", "failed to restore history, starting fresh", map[string]interface{}{
			"room_id": roomID,
			"error":   err.Error(),
		})
		return nil
	}
	seed := make([]llm.Message, 0, len(stored))
	for _, m := range stored {
		seed = append(seed, llm.Message{Role: m.Role, Content: m.Content})
	}
	return seed
}

func (s *LiveService) recordRoom(ctx context.Context, room *Room, bundle *persona.Bundle) {
	if s.roomRepo == nil {
		return
	}
	voice, _ := json.Marshal(bundle.Config.TTS)
	err := s.roomRepo.Upsert(ctx, &model.Room{
		RoomId:      room.RoomID,
		PersonaId:   bundle.ID,
		VoiceConfig: datatypes.JSON(voice),
	})
	if err != nil {
		s.log.Warn("LiveService", "failed to record room", map[string]interface{}{
			"room_id": room.RoomID,
			"error":   err.Error(),
		})
	}
}

func (s *LiveService) publishEvent(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.Warn("LiveService", "failed to publish event", map[string]interface{}{
			"event": event.EventType(),
			"error": err.Error(),
		})
	}
}
