package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukerupert/larder/internal/feed"
)

// Message is one push to a client: the full current state of one topic.
type Message struct {
	Type     string     `json:"type"`
	Topic    feed.Topic `json:"topic"`
	FamilyID string     `json:"family_id"`
	Data     any        `json:"data"`
}

// NewMessage creates a snapshot Message with the Type field derived from topic.
func NewMessage(topic feed.Topic, familyID string, data any) Message {
	return Message{
		Type:     fmt.Sprintf("%s_snapshot", topic),
		Topic:    topic,
		FamilyID: familyID,
		Data:     data,
	}
}

// Hub maintains the active WebSocket clients, grouped into one room per family.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*Client]struct{}
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		rooms:  make(map[string]map[*Client]struct{}),
		logger: logger,
	}
}

// Register adds a client to its family's room.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[c.familyID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[c.familyID] = room
	}
	room[c] = struct{}{}
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room := h.rooms[c.familyID]
	if _, ok := room[c]; !ok {
		return
	}
	delete(room, c)
	close(c.send)
	if len(room) == 0 {
		delete(h.rooms, c.familyID)
	}
}

// Broadcast sends a message to every client of one family.
func (h *Hub) Broadcast(familyID string, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.rooms[familyID] {
		h.deliver(c, data)
	}
}

// Send delivers a message to one client if it is still registered.
func (h *Hub) Send(c *Client, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal message", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if _, ok := h.rooms[c.familyID][c]; ok {
		h.deliver(c, data)
	}
}

func (h *Hub) deliver(c *Client, data []byte) {
	select {
	case c.send <- data:
	default:
		// buffer full; the next snapshot supersedes this one
		h.logger.Warn("dropped message for slow client", "family_id", c.familyID)
	}
}

// Families returns the ids of families with at least one client.
func (h *Hub) Families() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.rooms))
	for id := range h.rooms {
		ids = append(ids, id)
	}
	return ids
}

func (h *Hub) HasClients(familyID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[familyID]) > 0
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, room := range h.rooms {
		n += len(room)
	}
	return n
}
