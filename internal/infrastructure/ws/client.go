package ws

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Inbound frames are ignored, so anything beyond a control-sized
	// payload is a misbehaving client.
	maxInboundBytes = 512
)

// Client is one subscriber connection, scoped to a single room for its
// whole lifetime. Send is its bounded outbound buffer; the hub closes it
// on detach.
type Client struct {
	conn     *connWrapper
	Send     chan *Event
	ID       string `json:"id"`
	RoomCode string `json:"roomCode"`
}

func NewClient(conn *websocket.Conn, id, roomCode string, sendBuffer int) *Client {
	if sendBuffer <= 0 {
		sendBuffer = 64
	}

	return &Client{
		conn:     newConnWrapper(conn),
		Send:     make(chan *Event, sendBuffer),
		ID:       id,
		RoomCode: roomCode,
	}
}

// ReadPump drains the connection until it closes. The channel is
// publish-only from the server's perspective, so inbound frames are
// discarded; reading still has to happen to notice the close and to keep
// the pong handler running.
func (c *Client) ReadPump(core *Core) {
	defer func() {
		core.Unregister() <- c
		_ = c.conn.Close()
	}()

	c.conn.conn.SetReadLimit(maxInboundBytes)
	_ = c.conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.conn.SetPongHandler(func(string) error {
		return c.conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				core.logUnexpectedClose(c, err)
			}
			return
		}
	}
}

// WritePump serializes outbound events and keepalive pings. It exits when
// the hub closes Send (detach) or a write fails (dead transport).
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.Send:
			if !ok {
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.Ping(); err != nil {
				return
			}
		}
	}
}
