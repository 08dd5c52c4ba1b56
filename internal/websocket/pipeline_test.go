package websocket

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-streamer-be/pkg/tts"
)

type fakeStreamer struct {
	fragments []string
}

func (f *fakeStreamer) StreamReply(ctx context.Context, message string) <-chan string {
	out := make(chan string, len(f.fragments))
	for _, fr := range f.fragments {
		out <- fr
	}
	close(out)
	return out
}

type fakeTTS struct {
	audio  []byte
	err    error
	called bool
}

func (f *fakeTTS) Synthesize(ctx context.Context, text string, voice tts.Voice) ([]byte, error) {
	f.called = true
	return f.audio, f.err
}

func newTestPipeline(streamer ChatStreamer, provider tts.Provider) (*Pipeline, *RoomBroadcaster) {
	room := NewRoomBroadcaster("room-1", nil, nopLogger{})
	p := &Pipeline{
		RoomID:    "room-1",
		Room:      room,
		Streamer:  streamer,
		TTS:       provider,
		Limiter:   NewRateLimiter(0),
		QueueSize: 20,
		Log:       nopLogger{},
	}
	return p, room
}

func TestRunTurnBroadcastsFullProtocolSequence(t *testing.T) {
	synth := &fakeTTS{audio: []byte("fake-audio")}
	p, room := newTestPipeline(&fakeStreamer{fragments: []string{"he", "llo"}}, synth)

	first := newTestClient("a", 16)
	second := newTestClient("b", 16)
	room.Connect(first)
	room.Connect(second)

	p.runTurn("hi streamer")

	want := []string{
		"[USER:hi streamer]",
		"he",
		"llo",
		"[AUDIO:" + base64.StdEncoding.EncodeToString([]byte("fake-audio")) + "]",
		"[EOF]",
	}
	// Every viewer of the room sees the identical turn.
	assert.Equal(t, want, drainClient(first))
	assert.Equal(t, want, drainClient(second))
	assert.True(t, synth.called)
}

func TestRunTurnWithoutTTSProvider(t *testing.T) {
	p, room := newTestPipeline(&fakeStreamer{fragments: []string{"reply"}}, nil)
	c := newTestClient("a", 16)
	room.Connect(c)

	p.runTurn("hi")

	assert.Equal(t, []string{"[USER:hi]", "reply", "[EOF]"}, drainClient(c))
}

func TestRunTurnTTSFailureStillEndsTurn(t *testing.T) {
	synth := &fakeTTS{err: errors.New("tts service down")}
	p, room := newTestPipeline(&fakeStreamer{fragments: []string{"reply"}}, synth)
	c := newTestClient("a", 16)
	room.Connect(c)

	p.runTurn("hi")

	// No audio frame, but the EOF still closes the turn.
	assert.Equal(t, []string{"[USER:hi]", "reply", "[EOF]"}, drainClient(c))
}

func TestRunTurnEmptyReplySkipsTTS(t *testing.T) {
	synth := &fakeTTS{audio: []byte("x")}
	p, room := newTestPipeline(&fakeStreamer{fragments: []string{"  "}}, synth)
	c := newTestClient("a", 16)
	room.Connect(c)

	p.runTurn("hi")

	assert.False(t, synth.called, "whitespace-only replies must not be synthesized")
	got := drainClient(c)
	assert.Equal(t, "[EOF]", got[len(got)-1])
}

func TestRunTurnInvokesOnTurn(t *testing.T) {
	p, room := newTestPipeline(&fakeStreamer{fragments: []string{"hello"}}, &fakeTTS{audio: []byte("a")})
	room.Connect(newTestClient("a", 16))

	var gotMessage, gotReply string
	var gotAudio bool
	p.OnTurn = func(message, reply string, audioPushed bool) {
		gotMessage, gotReply, gotAudio = message, reply, audioPushed
	}

	p.runTurn("hi")

	assert.Equal(t, "hi", gotMessage)
	assert.Equal(t, "hello", gotReply)
	assert.True(t, gotAudio)
}

func TestProcessLoopDrainsQueueInOrder(t *testing.T) {
	p, room := newTestPipeline(&fakeStreamer{fragments: []string{"r"}}, nil)
	c := newTestClient("a", 64)
	room.Connect(c)

	queue := make(chan string, 4)
	queue <- "first"
	queue <- "second"
	close(queue)

	p.processLoop(queue)

	got := drainClient(c)
	require.Len(t, got, 6)
	assert.Equal(t, "[USER:first]", got[0])
	assert.Equal(t, "[EOF]", got[2])
	assert.Equal(t, "[USER:second]", got[3])
	assert.Equal(t, "[EOF]", got[5])
}

// scriptedReader feeds a fixed sequence of inbound frames, then fails the
// read the way a closed connection would.
type scriptedReader struct {
	frames []string
}

func (r *scriptedReader) ReadMessage() (int, []byte, error) {
	if len(r.frames) == 0 {
		return 0, nil, errors.New("connection closed")
	}
	frame := r.frames[0]
	r.frames = r.frames[1:]
	return websocket.TextMessage, []byte(frame), nil
}

func (r *scriptedReader) SetReadLimit(limit int64) {}

func drainQueue(queue chan string) []string {
	var out []string
	for {
		select {
		case msg := <-queue:
			out = append(out, msg)
		default:
			return out
		}
	}
}

func TestReceiveLoopRateLimitedDanmakuNeverEnqueued(t *testing.T) {
	p, _ := newTestPipeline(&fakeStreamer{}, nil)
	p.Limiter = NewRateLimiter(time.Hour)
	sender := newTestClient("sender", 8)

	queue := make(chan string, 20)
	p.receiveLoop(&scriptedReader{frames: []string{"hello", "again"}}, sender, queue)

	// The second message hits the rate gate: dropped, sender notified.
	assert.Equal(t, []string{"hello"}, drainQueue(queue))
	assert.Equal(t, []string{systemTooFast}, drainClient(sender))
}

func TestReceiveLoopQueueFullNotifiesSender(t *testing.T) {
	p, _ := newTestPipeline(&fakeStreamer{}, nil)
	sender := newTestClient("sender", 8)

	// Capacity one and no process loop draining, so the second message
	// finds the queue full.
	queue := make(chan string, 1)
	p.receiveLoop(&scriptedReader{frames: []string{"one", "two"}}, sender, queue)

	assert.Equal(t, []string{"one"}, drainQueue(queue))
	assert.Equal(t, []string{systemQueueFull}, drainClient(sender))
}

func TestReceiveLoopReturnsOnReadError(t *testing.T) {
	p, _ := newTestPipeline(&fakeStreamer{}, nil)
	sender := newTestClient("sender", 8)

	queue := make(chan string, 20)
	p.receiveLoop(&scriptedReader{}, sender, queue)

	assert.Empty(t, drainQueue(queue))
	assert.Empty(t, drainClient(sender))
}

func TestFrameHelpers(t *testing.T) {
	assert.Equal(t, "[USER:hi]", FrameUser("hi"))
	assert.Equal(t, "[AUDIO:abc]", FrameAudio("abc"))
	assert.Equal(t, "[SYSTEM:slow down]", FrameSystem("slow down"))
	assert.Equal(t, "[EOF]", FrameEOF)
}
