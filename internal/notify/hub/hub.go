// Package hub fans triage events out to dashboard WebSocket subscribers.
// Delivery is fire-and-forget: subscribers that cannot keep up are dropped,
// and nothing in the submission path ever blocks on a slow socket.
package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/beacon/internal/triage"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// sendBuffer is the per-client backlog before the client is dropped.
	sendBuffer = 32

	// broadcastBuffer bounds how far the hub can fall behind before events
	// are shed at the source.
	broadcastBuffer = 256
)

// frame is the wire shape of one event.
type frame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Hub owns the subscriber set. All membership changes go through Run's loop,
// so no locking around the clients map.
type Hub struct {
	logger log.Logger

	register   chan *client
	unregister chan *client
	broadcast  chan []byte
}

// New creates a hub. Call Run before serving subscribers.
func New(logger log.Logger) *Hub {
	if logger == nil {
		logger = log.Nop()
	}
	return &Hub{
		logger:     logger,
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, broadcastBuffer),
	}
}

// Run processes membership and broadcasts until ctx is cancelled. On return
// every subscriber connection is closed.
func (h *Hub) Run(ctx context.Context) {
	clients := make(map[*client]struct{})

	defer func() {
		for c := range clients {
			close(c.send)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			clients[c] = struct{}{}
			h.logger.Info(ctx, "event subscriber connected", "subscribers", len(clients))

		case c := <-h.unregister:
			if _, ok := clients[c]; ok {
				delete(clients, c)
				close(c.send)
				h.logger.Info(ctx, "event subscriber disconnected", "subscribers", len(clients))
			}

		case msg := <-h.broadcast:
			for c := range clients {
				select {
				case c.send <- msg:
				default:
					// Slow consumer: drop it rather than stall the fan-out.
					delete(clients, c)
					close(c.send)
					h.logger.Warn(ctx, "dropping slow event subscriber", "subscribers", len(clients))
				}
			}
		}
	}
}

// Emit implements triage.Emitter. Events are shed when the hub is saturated;
// the dashboard feed is advisory, the submission path is not allowed to block.
func (h *Hub) Emit(ev triage.Event) {
	b, err := json.Marshal(frame{Event: string(ev.Name), Data: ev.Data})
	if err != nil {
		h.logger.Warn(context.Background(), "event marshal failed", "event", ev.Name, "error", err)
		return
	}

	select {
	case h.broadcast <- b:
	default:
		h.logger.Warn(context.Background(), "event hub saturated, shedding event", "event", ev.Name)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser dashboard connects cross-origin in dev; auth is not carried on
	// this read-only feed.
	CheckOrigin: func(*http.Request) bool { return true },
}

// ServeHTTP upgrades a subscriber connection and attaches it to the hub.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(r.Context(), "websocket upgrade failed", "error", err)
		return
	}

	c := &client{hub: h, conn: conn, send: make(chan []byte, sendBuffer)}
	h.register <- c

	go c.writePump()
	go c.readPump()
}

// client is one subscriber connection.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// readPump discards inbound frames; the feed is one-way. It exists to notice
// closes and to service pongs.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump drains the send channel onto the socket and keeps the connection
// alive with pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
