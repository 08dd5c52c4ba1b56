package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndGet(t *testing.T) {
	repo := NewSessionRepository(time.Hour)

	repo.Save(&DanmakuSession{ID: "s1", PersonaID: "aria"})

	got, ok := repo.Get("s1")
	require.True(t, ok)
	assert.Equal(t, "aria", got.PersonaID)
}

func TestGetUnknownSession(t *testing.T) {
	repo := NewSessionRepository(time.Hour)

	_, ok := repo.Get("nope")
	assert.False(t, ok)
}

func TestDelete(t *testing.T) {
	repo := NewSessionRepository(time.Hour)
	repo.Save(&DanmakuSession{ID: "s1"})

	repo.Delete("s1")
	_, ok := repo.Get("s1")
	assert.False(t, ok)
}

func TestSessionExpires(t *testing.T) {
	repo := NewSessionRepository(10 * time.Millisecond)
	repo.Save(&DanmakuSession{ID: "s1"})

	time.Sleep(30 * time.Millisecond)
	_, ok := repo.Get("s1")
	assert.False(t, ok)
}
