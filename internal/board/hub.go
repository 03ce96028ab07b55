// Package board pushes live queue updates to waiting-room display screens
// over WebSockets. Displays are read-only subscribers; there is a single
// broadcast feed, no per-client topics.
package board

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/hospitalos/patientflow/pkg/logging"
)

// Event is one board update.
type Event struct {
	Type      string    `json:"type"`
	QueueCode string    `json:"queue_code,omitempty"`
	Position  int       `json:"position,omitempty"`
	Status    string    `json:"status,omitempty"`
	DoctorID  string    `json:"doctor_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Conn abstracts a WebSocket connection for testability.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is one connected display.
type Client struct {
	Send chan []byte
	hub  *Hub
	conn Conn
}

// Hub tracks connected displays and fans events out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *logging.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Default()
	}
	return &Hub{clients: make(map[*Client]struct{}), logger: logger}
}

// Register adds a connected client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

// Unregister removes a client and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.Send)
}

// Broadcast sends the event to every connected display. A client whose send
// buffer is full is dropped rather than blocking the rest of the feed.
func (h *Hub) Broadcast(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	raw, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error("board event marshal failed", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.Send <- raw:
		default:
			delete(h.clients, c)
			close(c.Send)
			h.logger.Warn("dropped slow board client")
		}
	}
}

// ClientCount returns the number of connected displays.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
