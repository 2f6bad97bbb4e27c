// Package websocket broadcasts dispatched notifications to connected
// dashboard clients so the UI can show star events as they arrive.
package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// Event is a notification dispatch result pushed to feed clients.
type Event struct {
	Type      string    `json:"type"` // "star" or "test"
	Repo      string    `json:"repo,omitempty"`
	Sender    string    `json:"sender,omitempty"`
	Title     string    `json:"title"`
	Attempted int       `json:"attempted"`
	Succeeded int       `json:"succeeded"`
	SentAt    time.Time `json:"sent_at"`
}

// Hub maintains the set of active feed connections and broadcasts events.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Broadcast sends an event to all connected clients. Clients whose send
// buffer is full miss the event rather than block the dispatcher.
func (h *Hub) Broadcast(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("marshal event", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
