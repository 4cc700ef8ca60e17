package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Message is a live event for maintenance dashboards. Type is always
// "<entity>_<action>".
type Message struct {
	Type   string         `json:"type"`
	Entity string         `json:"entity"`
	Action string         `json:"action"`
	ID     int64          `json:"id,omitempty"`
	Extra  map[string]any `json:"extra,omitempty"`
}

func NewMessage(entity, action string, id int64, extra map[string]any) Message {
	return Message{
		Type:   entity + "_" + action,
		Entity: entity,
		Action: action,
		ID:     id,
		Extra:  extra,
	}
}

// Hub fans events out to connected dashboards. Broadcast never blocks on
// a slow dashboard; the event is dropped for that client instead.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}

	dropped atomic.Uint64
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger.With("component", "websocket"),
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

// Unregister is safe to call more than once for the same client.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.outbox)
}

// Broadcast returns how many dashboards the event was queued for.
func (h *Hub) Broadcast(msg Message) int {
	frame, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("encode event", "type", msg.Type, "error", err)
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	queued := 0
	for c := range h.clients {
		if !c.wants(msg.Entity) {
			continue
		}
		select {
		case c.outbox <- frame:
			queued++
		default:
			h.dropped.Add(1)
			h.logger.Debug("dashboard too slow, event dropped", "type", msg.Type)
		}
	}
	return queued
}

// Dropped counts events discarded because a dashboard's outbox was full.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
