package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait bounds a single write to a peer.
	writeWait = 10 * time.Second

	// pongWait bounds how long a peer may stay silent.
	pongWait = 60 * time.Second

	// pingPeriod must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4096
)

// Hub maintains the set of connected websocket watchers and broadcasts
// monitor notifications to them.
type Hub struct {
	mu      sync.RWMutex
	conns   map[*wsConn]struct{}
	logger  *slog.Logger
	bufSize int
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		conns:   make(map[*wsConn]struct{}),
		logger:  logger,
		bufSize: 64,
	}
}

// Broadcast serializes v as JSON and fans it out to every connected
// watcher. A watcher whose buffer is full is dropped rather than
// allowed to block the others.
func (h *Hub) Broadcast(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Warn("failed to encode broadcast payload", "error", err)
		return
	}

	h.mu.RLock()
	stale := []*wsConn{}
	for c := range h.conns {
		select {
		case c.send <- data:
		default:
			stale = append(stale, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range stale {
		h.logger.Warn("watcher send buffer full, disconnecting", "remote", c.conn.RemoteAddr())
		h.remove(c)
	}
}

// Count returns the number of connected watchers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Serve takes ownership of an upgraded connection, starting its read
// and write pumps. It returns when the peer disconnects.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn) {
	c := &wsConn{
		conn: conn,
		send: make(chan []byte, h.bufSize),
		hub:  h,
	}

	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("watcher connected", "remote", conn.RemoteAddr())

	go c.writePump()
	c.readPump(ctx)
}

// Close disconnects every watcher.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := make([]*wsConn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.conns = make(map[*wsConn]struct{})
	h.mu.Unlock()

	for _, c := range conns {
		c.closeOnce.Do(func() { close(c.send) })
	}
}

func (h *Hub) remove(c *wsConn) {
	h.mu.Lock()
	_, ok := h.conns[c]
	if ok {
		delete(h.conns, c)
	}
	h.mu.Unlock()

	if ok {
		c.closeOnce.Do(func() { close(c.send) })
	}
}

// wsConn is a middleman between one websocket connection and the hub.
type wsConn struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
}

// readPump drains inbound frames to detect disconnects; watchers are
// broadcast-only.
func (c *wsConn) readPump(ctx context.Context) {
	defer func() {
		c.hub.remove(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if ctx.Err() != nil {
			return
		}
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("watcher read error", "error", err)
			}
			return
		}
	}
}

// writePump pumps broadcasts from the hub to the peer, with pings to
// keep the connection alive.
func (c *wsConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
