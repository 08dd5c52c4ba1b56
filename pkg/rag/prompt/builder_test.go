package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildDanmakuWithoutKnowledge(t *testing.T) {
	got := BuildDanmaku("hello streamer", "")
	assert.Equal(t, "hello streamer", got)
}

func TestBuildDanmakuWithKnowledge(t *testing.T) {
	got := BuildDanmaku("what is the best weapon", "the pink meteor sniper rifle")

	assert.Contains(t, got, "<background_knowledge>\nthe pink meteor sniper rifle\n</background_knowledge>")
	assert.Contains(t, got, "Viewer danmaku: what is the best weapon")
}
