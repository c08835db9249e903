// Package broadcast replaces the browser BroadcastChannel primitive used by
// the original multi-tab coordination with the closest idiomatic Go
// equivalent: a local gorilla/websocket loopback hub that every process
// sharing a filestore root connects to, so a save() in one tab/process
// notifies every other one. Each member gets a buffered send channel and a
// writer goroutine; a member with a full queue is dropped rather than
// allowed to block the broadcaster.
package broadcast

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lingocore/engine/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	sendQueueDepth = 64
)

// Channel is the multi-tab notification sink pkg/filestore depends on.
// *Hub implements it; a host may substitute another medium (e.g. an
// in-process pub/sub when filestore and its readers share one process).
type Channel interface {
	Publish(stream string)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WrittenMessage is the only message shape this hub carries: a
// stream was saved to disk and every other tab/process should reload it.
type WrittenMessage struct {
	Type     string `json:"type"`
	StreamID string `json:"stream_id"`
}

// client is one connected tab/process.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans WrittenMessage notifications out to every connected client; the
// client (if any) belonging to the process that produced the write is not
// excluded.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	log     *logging.Logger
}

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		log:     logging.L().With(logging.String("component", "broadcast")),
	}
}

// ServeHTTP upgrades the request to a websocket connection and registers it
// as a hub member until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", logging.Error(err))
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendQueueDepth)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writePump(c)
	go h.readPump(c)
}

// readPump only exists to detect disconnects; this hub never expects inbound
// application messages from a member.
func (h *Hub) readPump(c *client) {
	defer h.deregister(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	defer func() {
		_ = c.conn.Close()
	}()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (h *Hub) deregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Publish broadcasts a {"type":"written","stream_id":stream} notification to
// every connected client. A client whose send queue is full is
// dropped rather than allowed to stall the broadcaster.
func (h *Hub) Publish(stream string) {
	msg, err := json.Marshal(WrittenMessage{Type: "written", StreamID: stream})
	if err != nil {
		h.log.Error("failed to encode written notification", logging.Error(err))
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			close(c.send)
			delete(h.clients, c)
		}
	}
}

// Len reports the number of currently connected members, mostly useful for
// tests and diagnostics.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
