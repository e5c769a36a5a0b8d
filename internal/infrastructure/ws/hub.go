package ws

import (
	"errors"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/hilthontt/whisperroom/internal/infrastructure/metrics"
)

var (
	ErrRoomNotFound = errors.New("room has no subscribers")
)

// subscriberSet is the set of live connections attached to one room.
type subscriberSet struct {
	Code    string
	Clients map[string]*Client
}

// Hub owns the per-room subscriber sets, keyed by room code. It tracks
// membership only; a connection's transport lifetime belongs to the
// pumps that serve it. Mutation and broadcast iteration are mutually
// exclusive under one RWMutex: sends into client buffers happen under the
// read lock, closes under the write lock, so a buffer is never closed
// mid-send.
type Hub struct {
	rooms      map[string]*subscriberSet // room code → subscribers
	mu         sync.RWMutex
	sendBuffer int
	upgrader   websocket.Upgrader
}

func NewHub(sendBuffer int, allowedOrigins []string) *Hub {
	return &Hub{
		rooms:      make(map[string]*subscriberSet),
		sendBuffer: sendBuffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowedOrigins []string) func(r *http.Request) bool {
	allowAll := false
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = struct{}{}
	}

	return func(r *http.Request) bool {
		if allowAll {
			return true
		}
		origin := r.Header.Get("Origin")
		if origin == "" {
			// Non-browser clients don't send Origin
			return true
		}
		_, ok := allowed[origin]
		return ok
	}
}

func (h *Hub) Upgrade(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	return h.upgrader.Upgrade(w, r, nil)
}

func (h *Hub) NewClient(conn *websocket.Conn, id, roomCode string) *Client {
	return NewClient(conn, id, roomCode, h.sendBuffer)
}

func (h *Hub) AddClient(cl *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[cl.RoomCode]
	if !ok {
		room = &subscriberSet{
			Code:    cl.RoomCode,
			Clients: make(map[string]*Client),
		}
		h.rooms[cl.RoomCode] = room
	}

	if _, exists := room.Clients[cl.ID]; !exists {
		room.Clients[cl.ID] = cl
	}
}

// RemoveClient detaches a connection and closes its buffer. Removing a
// client that is already gone is a no-op, which absorbs double-close
// races. The last detach prunes the per-room set entry, never the room.
func (h *Hub) RemoveClient(cl *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[cl.RoomCode]
	if !ok {
		return false
	}

	if _, ok := room.Clients[cl.ID]; !ok {
		return false
	}

	delete(room.Clients, cl.ID)
	close(cl.Send)

	if len(room.Clients) == 0 {
		delete(h.rooms, cl.RoomCode)
	}

	return true
}

func (h *Hub) SubscriberCount(roomCode string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	room, ok := h.rooms[roomCode]
	if !ok {
		return 0
	}
	return len(room.Clients)
}

// BroadcastToRoom pushes the event into every subscriber buffer currently
// on file for the room. Delivery is fire-and-forget: when a buffer is
// full the oldest pending event is dropped to make space, so a stalled
// subscriber can never consume unbounded memory or block the room.
func (h *Hub) BroadcastToRoom(b *Broadcast) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	room, ok := h.rooms[b.RoomCode]
	if !ok {
		return ErrRoomNotFound
	}

	delivered := 0
	for _, cl := range room.Clients {
		select {
		case cl.Send <- b.Event:
			delivered++
		default:
			// Buffer full: drop the oldest pending event, then retry once.
			select {
			case <-cl.Send:
				metrics.IncBroadcastDropped()
			default:
			}
			select {
			case cl.Send <- b.Event:
				delivered++
			default:
				metrics.IncBroadcastDropped()
			}
		}
	}

	metrics.AddTranscriptionsBroadcast(delivered)
	return nil
}
