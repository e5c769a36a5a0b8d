package ws

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(id, roomCode string, buffer int) *Client {
	return NewClient(nil, id, roomCode, buffer)
}

func drain(c *Client) []*Event {
	var out []*Event
	for {
		select {
		case ev, ok := <-c.Send:
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestAddAndRemoveClient(t *testing.T) {
	hub := NewHub(4, []string{"*"})

	cl := newTestClient("c1", "ROOM01", 4)
	hub.AddClient(cl)
	assert.Equal(t, 1, hub.SubscriberCount("ROOM01"))

	assert.True(t, hub.RemoveClient(cl))
	assert.Equal(t, 0, hub.SubscriberCount("ROOM01"))

	// Double removal is a no-op.
	assert.False(t, hub.RemoveClient(cl))
}

func TestRemoveClientClosesSendBuffer(t *testing.T) {
	hub := NewHub(4, []string{"*"})

	cl := newTestClient("c1", "ROOM01", 4)
	hub.AddClient(cl)
	require.True(t, hub.RemoveClient(cl))

	_, open := <-cl.Send
	assert.False(t, open, "detach must close the outbound buffer")
}

func TestBroadcastReachesEverySubscriber(t *testing.T) {
	hub := NewHub(4, []string{"*"})

	a := newTestClient("a", "ROOM01", 4)
	b := newTestClient("b", "ROOM01", 4)
	hub.AddClient(a)
	hub.AddClient(b)

	require.NoError(t, hub.BroadcastToRoom(NewTranscription("ROOM01", "hello")))

	for _, cl := range []*Client{a, b} {
		events := drain(cl)
		require.Len(t, events, 1)
		assert.Equal(t, EventTranscription, events[0].Type)
		assert.Equal(t, "hello", events[0].Text)
	}
}

func TestBroadcastIsScopedToRoom(t *testing.T) {
	hub := NewHub(4, []string{"*"})

	inRoom := newTestClient("a", "ROOM01", 4)
	elsewhere := newTestClient("b", "ROOM02", 4)
	hub.AddClient(inRoom)
	hub.AddClient(elsewhere)

	require.NoError(t, hub.BroadcastToRoom(NewTranscription("ROOM01", "only here")))

	assert.Len(t, drain(inRoom), 1)
	assert.Empty(t, drain(elsewhere), "events must never leak across rooms")
}

func TestBroadcastToEmptyRoom(t *testing.T) {
	hub := NewHub(4, []string{"*"})

	err := hub.BroadcastToRoom(NewTranscription("NOBODY", "void"))
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestBroadcastSkipsDetachedSubscriber(t *testing.T) {
	hub := NewHub(4, []string{"*"})

	stays := newTestClient("a", "ROOM01", 4)
	leaves := newTestClient("b", "ROOM01", 4)
	hub.AddClient(stays)
	hub.AddClient(leaves)
	require.True(t, hub.RemoveClient(leaves))

	require.NoError(t, hub.BroadcastToRoom(NewTranscription("ROOM01", "after detach")))

	assert.Len(t, drain(stays), 1)
}

func TestBroadcastDropsOldestOnFullBuffer(t *testing.T) {
	hub := NewHub(2, []string{"*"})

	slow := newTestClient("slow", "ROOM01", 2)
	hub.AddClient(slow)

	for i := 0; i < 5; i++ {
		require.NoError(t, hub.BroadcastToRoom(NewTranscription("ROOM01", fmt.Sprintf("event-%d", i))))
	}

	events := drain(slow)
	require.Len(t, events, 2, "buffer must stay bounded")
	// The oldest events were shed; the freshest survive.
	assert.Equal(t, "event-3", events[0].Text)
	assert.Equal(t, "event-4", events[1].Text)
}

func TestRemoveLastClientPrunesRoomEntry(t *testing.T) {
	hub := NewHub(4, []string{"*"})

	cl := newTestClient("c1", "ROOM01", 4)
	hub.AddClient(cl)
	require.True(t, hub.RemoveClient(cl))

	hub.mu.RLock()
	_, exists := hub.rooms["ROOM01"]
	hub.mu.RUnlock()
	assert.False(t, exists, "empty subscriber sets must not accumulate")
}
