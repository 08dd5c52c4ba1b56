package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-streamer-be/internal/model"
	"ai-streamer-be/internal/persona"
	"ai-streamer-be/internal/repository/memory"
)

func newTestSessions() *memory.SessionRepository {
	return memory.NewSessionRepository(time.Hour)
}

type fakeRoomRepo struct {
	upserts []*model.Room
	records []model.Room
}

func (f *fakeRoomRepo) Upsert(ctx context.Context, room *model.Room) error {
	f.upserts = append(f.upserts, room)
	return nil
}

func (f *fakeRoomRepo) FindByRoomID(ctx context.Context, roomID string) (*model.Room, error) {
	for i := range f.records {
		if f.records[i].RoomId == roomID {
			return &f.records[i], nil
		}
	}
	return nil, nil
}

func (f *fakeRoomRepo) FindAll(ctx context.Context) ([]model.Room, error) {
	return f.records, nil
}

func newTestManager(t *testing.T, ids ...string) *persona.Manager {
	t.Helper()
	root := t.TempDir()
	for _, id := range ids {
		dir := filepath.Join(root, id)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		config := "name: " + id + "\nsystem_prompt: you are " + id + "\ntts:\n  voice: en-US-AriaNeural\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(config), 0o644))
	}
	m := persona.NewManager(nopLogger{}, fakeEmbedder{}, nil, 3)
	require.NoError(t, m.LoadAll(context.Background(), root))
	return m
}

func newTestLiveService(t *testing.T, provider *fakeLLM, messageRepo *fakeMessageRepo, roomRepo *fakeRoomRepo) *LiveService {
	t.Helper()
	pm := newTestManager(t, "aria", "zeta")
	var msgRepo *fakeMessageRepo
	if messageRepo != nil {
		msgRepo = messageRepo
	} else {
		msgRepo = &fakeMessageRepo{}
	}
	svc := NewLiveService(pm, provider, msgRepo, nil, newTestSessions(), nil, nil, 50, nopLogger{})
	if roomRepo != nil {
		svc.roomRepo = roomRepo
	}
	return svc
}

func TestGetRoomCreatesOnceAndCaches(t *testing.T) {
	repo := &fakeMessageRepo{}
	svc := newTestLiveService(t, &fakeLLM{reply: "hi"}, repo, nil)

	first, err := svc.GetRoom(context.Background(), "room-1", "aria")
	require.NoError(t, err)
	assert.Equal(t, "aria", first.PersonaID)

	// A second viewer joining with a different persona gets the same room.
	second, err := svc.GetRoom(context.Background(), "room-1", "zeta")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, "aria", second.PersonaID)

	assert.Equal(t, 1, repo.historyCalls, "history is only restored on creation")
}

func TestGetRoomResolvesDefaultPersona(t *testing.T) {
	svc := newTestLiveService(t, &fakeLLM{reply: "hi"}, nil, nil)

	room, err := svc.GetRoom(context.Background(), "room-1", "")
	require.NoError(t, err)
	assert.Equal(t, "aria", room.PersonaID, "first persona in sorted order is the default")
}

func TestGetRoomUnknownPersona(t *testing.T) {
	svc := newTestLiveService(t, &fakeLLM{reply: "hi"}, nil, nil)

	_, err := svc.GetRoom(context.Background(), "room-1", "ghost")
	assert.Error(t, err)
	_, ok := svc.Lookup("room-1")
	assert.False(t, ok)
}

func TestGetRoomSeedsPersistedHistory(t *testing.T) {
	repo := &fakeMessageRepo{history: []model.ChatMessage{
		{Role: "user", Content: "earlier question"},
		{Role: "model", Content: "earlier answer"},
	}}
	svc := newTestLiveService(t, &fakeLLM{reply: "hi"}, repo, nil)

	room, err := svc.GetRoom(context.Background(), "room-1", "aria")
	require.NoError(t, err)

	history := room.Session.chat.History()
	require.Len(t, history, 3)
	assert.Equal(t, "system", history[0].Role)
	assert.Equal(t, "earlier question", history[1].Content)
	assert.Equal(t, "earlier answer", history[2].Content)
}

func TestGetRoomRecordsRoomSnapshot(t *testing.T) {
	roomRepo := &fakeRoomRepo{}
	svc := newTestLiveService(t, &fakeLLM{reply: "hi"}, nil, roomRepo)

	_, err := svc.GetRoom(context.Background(), "room-1", "aria")
	require.NoError(t, err)

	require.Len(t, roomRepo.upserts, 1)
	assert.Equal(t, "room-1", roomRepo.upserts[0].RoomId)
	assert.Equal(t, "aria", roomRepo.upserts[0].PersonaId)
	assert.Contains(t, string(roomRepo.upserts[0].VoiceConfig), "en-US-AriaNeural")
}

func TestListRoomsSortedByID(t *testing.T) {
	svc := newTestLiveService(t, &fakeLLM{reply: "hi"}, nil, nil)

	for _, id := range []string{"charlie", "alpha", "bravo"} {
		_, err := svc.GetRoom(context.Background(), id, "aria")
		require.NoError(t, err)
	}

	rooms := svc.ListRooms()
	require.Len(t, rooms, 3)
	assert.Equal(t, "alpha", rooms[0].RoomID)
	assert.Equal(t, "bravo", rooms[1].RoomID)
	assert.Equal(t, "charlie", rooms[2].RoomID)
}

func TestHandleDanmakuCreatesAndReusesSession(t *testing.T) {
	provider := &fakeLLM{reply: "hello there"}
	svc := newTestLiveService(t, provider, nil, nil)

	sessionID, reply, err := svc.HandleDanmaku(context.Background(), "", "aria", "first message")
	require.NoError(t, err)
	assert.NotEmpty(t, sessionID)
	assert.Equal(t, "hello there", reply)

	// The returned session ID continues the same conversation.
	again, _, err := svc.HandleDanmaku(context.Background(), sessionID, "", "second message")
	require.NoError(t, err)
	assert.Equal(t, sessionID, again)
	// system + turn one (user, model) + turn two's prompt.
	assert.Len(t, provider.lastHistory, 4)
}

func TestHandleDanmakuExpiredSessionStartsFresh(t *testing.T) {
	provider := &fakeLLM{reply: "hi"}
	svc := newTestLiveService(t, provider, nil, nil)

	sessionID, _, err := svc.HandleDanmaku(context.Background(), "no-such-session", "zeta", "hello")
	require.NoError(t, err)
	assert.NotEmpty(t, sessionID)
	assert.NotEqual(t, "no-such-session", sessionID)
}

func TestHandleDanmakuUnknownPersona(t *testing.T) {
	svc := newTestLiveService(t, &fakeLLM{reply: "hi"}, nil, nil)

	_, _, err := svc.HandleDanmaku(context.Background(), "", "ghost", "hello")
	assert.Error(t, err)
}

func TestHistoryPagesPersistedMessages(t *testing.T) {
	repo := &fakeMessageRepo{history: []model.ChatMessage{
		{Role: "user", Content: "q"},
		{Role: "model", Content: "a"},
	}}
	svc := newTestLiveService(t, &fakeLLM{reply: "hi"}, repo, nil)

	messages, total, err := svc.History(context.Background(), "room-1", 0, 50)
	require.NoError(t, err)
	assert.Len(t, messages, 2)
	assert.Equal(t, int64(2), total)
}

func TestRoomRecordFindsPersistedRoom(t *testing.T) {
	roomRepo := &fakeRoomRepo{records: []model.Room{
		{RoomId: "room-1", PersonaId: "aria"},
	}}
	svc := newTestLiveService(t, &fakeLLM{reply: "hi"}, nil, roomRepo)

	record, err := svc.RoomRecord(context.Background(), "room-1")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "aria", record.PersonaId)

	// A room that never existed has no record.
	missing, err := svc.RoomRecord(context.Background(), "room-2")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRoomRecordWithoutRepository(t *testing.T) {
	svc := newTestLiveService(t, &fakeLLM{reply: "hi"}, nil, nil)

	record, err := svc.RoomRecord(context.Background(), "room-1")
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestPersistedRoomsListsEveryRecord(t *testing.T) {
	roomRepo := &fakeRoomRepo{records: []model.Room{
		{RoomId: "room-1", PersonaId: "aria"},
		{RoomId: "room-2", PersonaId: "zeta"},
	}}
	svc := newTestLiveService(t, &fakeLLM{reply: "hi"}, nil, roomRepo)

	records, err := svc.PersistedRooms(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "room-2", records[1].RoomId)
}

func TestPersonaNameFallsBackToID(t *testing.T) {
	svc := newTestLiveService(t, &fakeLLM{reply: "hi"}, nil, nil)

	assert.Equal(t, "aria", svc.PersonaName("aria"))
	assert.Equal(t, "retired-persona", svc.PersonaName("retired-persona"))
}

func TestPublishEventsWithoutPublisher(t *testing.T) {
	svc := newTestLiveService(t, &fakeLLM{reply: "hi"}, nil, nil)

	// A nil event bus must never panic; events are best effort.
	svc.PublishViewerJoined(context.Background(), "room-1", 1)
	svc.PublishViewerLeft(context.Background(), "room-1", 0)
	svc.PublishTurnCompleted(context.Background(), "room-1", 5, 10, true)
}
