package ws

import (
	"github.com/hilthontt/whisperroom/internal/infrastructure/logging"
	"github.com/hilthontt/whisperroom/internal/infrastructure/metrics"
)

// Core serializes hub membership changes and broadcasts through one
// goroutine. Handlers hand clients and events to the channels and move
// on; they never touch the hub maps directly.
type Core struct {
	hub        *Hub
	logger     logging.Logger
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Broadcast
}

func NewCore(hub *Hub, logger logging.Logger) *Core {
	return &Core{
		hub:        hub,
		logger:     logger,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Broadcast, 256),
	}
}

func (c *Core) Hub() *Hub {
	return c.hub
}

func (c *Core) Register() chan<- *Client {
	return c.register
}

func (c *Core) Unregister() chan<- *Client {
	return c.unregister
}

func (c *Core) Broadcast() chan<- *Broadcast {
	return c.broadcast
}

// Run processes membership and broadcast traffic until ctx-free shutdown
// of the process. It is started once from main.
func (c *Core) Run() {
	for {
		select {
		case cl := <-c.register:
			c.hub.AddClient(cl)
			metrics.IncSubscribers()
			c.logger.Info(logging.WebSocket, logging.RoomLifecycle, "subscriber attached", map[logging.ExtraKey]any{
				logging.RoomCode: cl.RoomCode,
				logging.ClientID: cl.ID,
			})

		case cl := <-c.unregister:
			if c.hub.RemoveClient(cl) {
				metrics.DecSubscribers()
				c.logger.Info(logging.WebSocket, logging.RoomLifecycle, "subscriber detached", map[logging.ExtraKey]any{
					logging.RoomCode: cl.RoomCode,
					logging.ClientID: cl.ID,
				})
			}

		case b := <-c.broadcast:
			if err := c.hub.BroadcastToRoom(b); err != nil {
				c.logger.Debug(logging.WebSocket, logging.Broadcast, "broadcast to empty room", map[logging.ExtraKey]any{
					logging.RoomCode: b.RoomCode,
				})
			}
		}
	}
}

func (c *Core) logUnexpectedClose(cl *Client, err error) {
	c.logger.Warn(logging.WebSocket, logging.RoomLifecycle, "unexpected close", map[logging.ExtraKey]any{
		logging.RoomCode:     cl.RoomCode,
		logging.ClientID:     cl.ID,
		logging.ErrorMessage: err.Error(),
	})
}
