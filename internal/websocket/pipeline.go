package websocket

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/gofiber/websocket/v2"

	"ai-streamer-be/internal/pkg/logger"
	"ai-streamer-be/pkg/tts"
)

// Wire frames shared with the frontend player.
const (
	FrameEOF = "[EOF]"

	systemTooFast   = "[SYSTEM:You are sending danmaku too fast, please slow down~]"
	systemQueueFull = "[SYSTEM:Too many messages in flight, please try again shortly~]"
)

func FrameUser(message string) string   { return fmt.Sprintf("[USER:%s]", message) }
func FrameAudio(b64 string) string      { return fmt.Sprintf("[AUDIO:%s]", b64) }
func FrameSystem(message string) string { return fmt.Sprintf("[SYSTEM:%s]", message) }

// ChatStreamer produces the persona's streamed reply for one danmaku. The
// channel yields reply fragments and closes when the turn is over.
type ChatStreamer interface {
	StreamReply(ctx context.Context, message string) <-chan string
}

// messageReader is the read half of a viewer connection.
type messageReader interface {
	ReadMessage() (int, []byte, error)
	SetReadLimit(limit int64)
}

// Pipeline runs one viewer connection: a receive loop that rate-checks and
// queues danmaku, and a process loop that turns each queued danmaku into a
// broadcast turn (danmaku echo, streamed reply, optional audio, EOF).
//
// The queue decouples the two so arrival times drive the rate limiter no
// matter how slow a turn is. Turns from different connections of the same
// room serialize on the shared session, not here.
type Pipeline struct {
	RoomID   string
	Room     *RoomBroadcaster
	Streamer ChatStreamer
	TTS      tts.Provider
	Voice    tts.Voice
	Limiter  *RateLimiter

	QueueSize int
	Log       logger.ILogger

	// OnTurn, when set, is called after each completed turn.
	OnTurn func(message, reply string, audioPushed bool)
}

// Run services the connection until the viewer disconnects. It blocks, so
// call it from the websocket handler goroutine.
func (p *Pipeline) Run(conn *websocket.Conn) {
	client := NewClient(conn)
	p.Room.Connect(client)
	go client.WritePump()

	p.Log.Info("Pipeline", "viewer joined room", map[string]interface{}{
		"room_id": p.RoomID,
		"online":  p.Room.OnlineCount(),
	})

	queue := make(chan string, p.QueueSize)
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.processLoop(queue)
	}()

	p.receiveLoop(conn, client, queue)
	close(queue)
	<-done

	p.Room.Disconnect(client)
	p.Limiter.RemoveClient(client.ID)
	p.Log.Info("Pipeline", "viewer left room", map[string]interface{}{
		"room_id": p.RoomID,
		"online":  p.Room.OnlineCount(),
	})
}

func (p *Pipeline) receiveLoop(conn messageReader, client *Client, queue chan<- string) {
	conn.SetReadLimit(maxMessageSize)
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				p.Log.Warn("Pipeline", "read error", map[string]interface{}{
					"room_id": p.RoomID,
					"error":   err.Error(),
				})
			}
			return
		}

		message := string(raw)
		// Rate-check on arrival time. A rejected danmaku is dropped, only
		// the sender is told.
		if !p.Limiter.IsAllowed(client.ID) {
			client.TrySend([]byte(systemTooFast))
			continue
		}
		select {
		case queue <- message:
		default:
			client.TrySend([]byte(systemQueueFull))
			p.Log.Warn("Pipeline", "ingress queue full, dropping danmaku", map[string]interface{}{
				"room_id": p.RoomID,
			})
		}
	}
}

func (p *Pipeline) processLoop(queue <-chan string) {
	for message := range queue {
		p.runTurn(message)
	}
}

// runTurn executes one full danmaku turn against the room. The turn always
// ends with an EOF frame, even when the reply came from a fallback.
func (p *Pipeline) runTurn(message string) {
	ctx := context.Background()

	p.Room.Broadcast(FrameUser(message))

	var full strings.Builder
	for fragment := range p.Streamer.StreamReply(ctx, message) {
		full.WriteString(fragment)
		p.Room.Broadcast(fragment)
	}

	audioPushed := false
	reply := strings.TrimSpace(full.String())
	if reply != "" && p.TTS != nil {
		audio, err := p.TTS.Synthesize(ctx, reply, p.Voice)
		if err != nil {
			p.Log.Warn("Pipeline", "tts synthesis failed", map[string]interface{}{
				"room_id": p.RoomID,
				"error":   err.Error(),
			})
		} else if len(audio) > 0 {
			p.Room.Broadcast(FrameAudio(base64.StdEncoding.EncodeToString(audio)))
			audioPushed = true
		}
	}

	p.Room.Broadcast(FrameEOF)

	if p.OnTurn != nil {
		p.OnTurn(message, reply, audioPushed)
	}
}
