package memory

import (
	"time"

	"github.com/patrickmn/go-cache"

	"ai-streamer-be/pkg/llm"
)

// DanmakuSession is a short-lived chat session handed out to HTTP clients
// that talk to a persona outside of a live room. It expires from the cache
// when left idle.
type DanmakuSession struct {
	ID        string
	PersonaID string
	Chat      *llm.ChatSession
	CreatedAt time.Time
}

type SessionRepository struct {
	cache *cache.Cache
}

func NewSessionRepository(ttl time.Duration) *SessionRepository {
	if ttl <= 0 {
		ttl = 1 * time.Hour
	}
	return &SessionRepository{
		cache: cache.New(ttl, 10*time.Minute),
	}
}

func (r *SessionRepository) Save(session *DanmakuSession) {
	r.cache.Set(session.ID, session, cache.DefaultExpiration)
}

func (r *SessionRepository) Get(sessionID string) (*DanmakuSession, bool) {
	if x, found := r.cache.Get(sessionID); found {
		return x.(*DanmakuSession), true
	}
	return nil, false
}

func (r *SessionRepository) Delete(sessionID string) {
	r.cache.Delete(sessionID)
}
