package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"ai-streamer-be/internal/pkg/logger"
)

const roomChannelPrefix = "live:room:"

// roomEnvelope is the cross-instance fanout payload. Origin lets an instance
// skip frames it published itself, they were already delivered locally.
type roomEnvelope struct {
	Origin  string `json:"origin"`
	Message string `json:"message"`
}

// RoomBroadcaster fans frames out to every viewer of one room. Connections
// whose send buffer is full get pruned on the spot. When Redis is configured
// the frame is also published so viewers on other instances receive it.
type RoomBroadcaster struct {
	roomID   string
	originID string

	mu      sync.Mutex
	clients map[*Client]struct{}

	rdb *redis.Client
	log logger.ILogger
}

func NewRoomBroadcaster(roomID string, rdb *redis.Client, log logger.ILogger) *RoomBroadcaster {
	b := &RoomBroadcaster{
		roomID:   roomID,
		originID: uuid.NewString(),
		clients:  make(map[*Client]struct{}),
		rdb:      rdb,
		log:      log,
	}
	if rdb != nil {
		go b.subscribeLoop()
	}
	return b
}

// Connect registers a viewer. Connecting the same client twice is a no-op.
func (b *RoomBroadcaster) Connect(c *Client) {
	b.mu.Lock()
	b.clients[c] = struct{}{}
	b.mu.Unlock()
}

// Disconnect removes a viewer and closes its outbound channel. Idempotent.
func (b *RoomBroadcaster) Disconnect(c *Client) {
	b.mu.Lock()
	_, ok := b.clients[c]
	if ok {
		delete(b.clients, c)
	}
	b.mu.Unlock()
	if ok {
		c.Close()
	}
}

func (b *RoomBroadcaster) OnlineCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Broadcast delivers a frame to every local viewer and publishes it for
// other instances. A failed local delivery prunes that connection.
func (b *RoomBroadcaster) Broadcast(message string) {
	b.broadcastLocal(message)

	if b.rdb == nil {
		return
	}
	payload, _ := json.Marshal(roomEnvelope{Origin: b.originID, Message: message})
	if err := b.rdb.Publish(context.Background(), roomChannelPrefix+b.roomID, payload).Err(); err != nil {
		b.log.Warn("Broadcaster", "redis publish failed", map[string]interface{}{
			"room_id": b.roomID,
			"error":   err.Error(),
		})
	}
}

func (b *RoomBroadcaster) broadcastLocal(message string) {
	data := []byte(message)

	b.mu.Lock()
	var stale []*Client
	for c := range b.clients {
		if !c.TrySend(data) {
			delete(b.clients, c)
			stale = append(stale, c)
		}
	}
	b.mu.Unlock()

	for _, c := range stale {
		c.Close()
		b.log.Warn("Broadcaster", "pruned slow viewer", map[string]interface{}{
			"room_id":   b.roomID,
			"client_id": c.ID,
		})
	}
}

func (b *RoomBroadcaster) subscribeLoop() {
	ctx := context.Background()
	pubsub := b.rdb.Subscribe(ctx, roomChannelPrefix+b.roomID)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var env roomEnvelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			b.log.Warn("Broadcaster", "bad redis payload", map[string]interface{}{
				"room_id": b.roomID,
				"error":   err.Error(),
			})
			continue
		}
		if env.Origin == b.originID {
			continue
		}
		b.broadcastLocal(env.Message)
	}
}
