package ws

import (
	"testing"
	"time"

	"github.com/hilthontt/whisperroom/internal/infrastructure/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startCore(t *testing.T) (*Hub, *Core) {
	t.Helper()

	hub := NewHub(4, []string{"*"})
	core := NewCore(hub, logging.NewNopLogger())
	go core.Run()

	return hub, core
}

func waitForCount(t *testing.T, hub *Hub, roomCode string, want int) {
	t.Helper()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if hub.SubscriberCount(roomCode) == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("room %s never reached %d subscribers", roomCode, want)
}

func TestCoreRegisterAndUnregister(t *testing.T) {
	hub, core := startCore(t)

	cl := newTestClient("c1", "ROOM01", 4)
	core.Register() <- cl
	waitForCount(t, hub, "ROOM01", 1)

	core.Unregister() <- cl
	waitForCount(t, hub, "ROOM01", 0)
}

func TestCoreBroadcastDelivery(t *testing.T) {
	hub, core := startCore(t)

	cl := newTestClient("c1", "ROOM01", 4)
	core.Register() <- cl
	waitForCount(t, hub, "ROOM01", 1)

	core.Broadcast() <- NewTranscription("ROOM01", "live text")

	select {
	case ev := <-cl.Send:
		require.NotNil(t, ev)
		assert.Equal(t, EventTranscription, ev.Type)
		assert.Equal(t, "live text", ev.Text)
	case <-time.After(time.Second):
		t.Fatal("event never reached the subscriber buffer")
	}
}

func TestCoreUnregisterUnknownClient(t *testing.T) {
	hub, core := startCore(t)

	cl := newTestClient("ghost", "ROOM01", 4)
	core.Unregister() <- cl

	// The loop must absorb it without touching counts.
	core.Broadcast() <- NewTranscription("ROOM01", "ping")
	assert.Equal(t, 0, hub.SubscriberCount("ROOM01"))
}
