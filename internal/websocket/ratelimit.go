package websocket

import (
	"sync"
	"time"
)

// RateLimiter enforces a minimum interval between danmaku per client. An
// allowed call records the send time; a rejected call does not, so a spammer
// stays blocked until they actually slow down.
type RateLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	last     map[string]time.Time

	// Swappable for tests.
	now func() time.Time
}

func NewRateLimiter(interval time.Duration) *RateLimiter {
	return &RateLimiter{
		interval: interval,
		last:     make(map[string]time.Time),
		now:      time.Now,
	}
}

func (rl *RateLimiter) IsAllowed(clientID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if last, ok := rl.last[clientID]; ok && now.Sub(last) < rl.interval {
		return false
	}
	rl.last[clientID] = now
	return true
}

func (rl *RateLimiter) RemoveClient(clientID string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.last, clientID)
}
