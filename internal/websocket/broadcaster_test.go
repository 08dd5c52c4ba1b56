package websocket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Debug(module, message string, details map[string]interface{}) {}
func (nopLogger) Info(module, message string, details map[string]interface{})  {}
func (nopLogger) Warn(module, message string, details map[string]interface{})  {}
func (nopLogger) Error(module, message string, details map[string]interface{}) {}
func (nopLogger) Sync() error                                                  { return nil }

func newTestClient(id string, buffer int) *Client {
	return &Client{ID: id, Send: make(chan []byte, buffer)}
}

func drainClient(c *Client) []string {
	var out []string
	for {
		select {
		case msg := <-c.Send:
			out = append(out, string(msg))
		default:
			return out
		}
	}
}

func TestBroadcastReachesAllViewers(t *testing.T) {
	b := NewRoomBroadcaster("room-1", nil, nopLogger{})

	clients := []*Client{
		newTestClient("a", 8),
		newTestClient("b", 8),
		newTestClient("c", 8),
	}
	for _, c := range clients {
		b.Connect(c)
	}
	require.Equal(t, 3, b.OnlineCount())

	b.Broadcast("[USER:hello]")
	b.Broadcast("fragment")

	for _, c := range clients {
		assert.Equal(t, []string{"[USER:hello]", "fragment"}, drainClient(c))
	}
}

func TestBroadcastPrunesSlowViewer(t *testing.T) {
	b := NewRoomBroadcaster("room-1", nil, nopLogger{})

	healthy := newTestClient("healthy", 8)
	slow := newTestClient("slow", 1)
	b.Connect(healthy)
	b.Connect(slow)

	b.Broadcast("one") // fills the slow client's buffer
	b.Broadcast("two") // overflows it, slow client gets pruned

	assert.Equal(t, 1, b.OnlineCount())
	assert.Equal(t, []string{"one", "two"}, drainClient(healthy))

	// The pruned client's channel is closed.
	_, open := <-slow.Send
	assert.True(t, open) // buffered "one" still readable
	_, open = <-slow.Send
	assert.False(t, open)
}

func TestConnectTwiceIsNoOp(t *testing.T) {
	b := NewRoomBroadcaster("room-1", nil, nopLogger{})
	c := newTestClient("a", 4)

	b.Connect(c)
	b.Connect(c)
	assert.Equal(t, 1, b.OnlineCount())
}

func TestDisconnectIsIdempotent(t *testing.T) {
	b := NewRoomBroadcaster("room-1", nil, nopLogger{})
	c := newTestClient("a", 4)
	b.Connect(c)

	b.Disconnect(c)
	b.Disconnect(c)
	assert.Equal(t, 0, b.OnlineCount())

	// Broadcasting to an empty room is harmless.
	b.Broadcast("nobody home")
}

func TestDisconnectUnknownClient(t *testing.T) {
	b := NewRoomBroadcaster("room-1", nil, nopLogger{})
	b.Disconnect(newTestClient("stranger", 4))
	assert.Equal(t, 0, b.OnlineCount())
}
