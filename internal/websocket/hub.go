package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	gosync "sync"

	"github.com/dukerupert/hearthquest/internal/sync"
)

// Message is the wire form of a change notification. It carries row identity
// only; clients refetch the affected aggregate over HTTP.
type Message struct {
	Type      string `json:"type"`
	Table     string `json:"table"`
	Action    string `json:"action"`
	RowID     int64  `json:"row_id,omitempty"`
	ProfileID int64  `json:"profile_id,omitempty"`
	Date      string `json:"date,omitempty"`
}

// messageFromEvent converts a feed event into its wire form.
func messageFromEvent(e sync.Event) Message {
	return Message{
		Type:      string(e.Table) + "_" + string(e.Action),
		Table:     string(e.Table),
		Action:    string(e.Action),
		RowID:     e.RowID,
		ProfileID: e.ProfileID,
		Date:      e.Date,
	}
}

// Hub maintains the set of active WebSocket clients, grouped by family, and
// forwards change-feed events to the clients of the family they concern.
type Hub struct {
	mu      gosync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

// NewHub creates a new Hub.
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

// Broadcast sends a message to every connected client of the given family.
func (h *Hub) Broadcast(familyID int64, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if c.familyID != familyID {
			continue
		}
		select {
		case c.send <- data:
		default:
			// Client buffer full — drop, the client's polling fallback catches up
		}
	}
}

// Run subscribes the hub to the change feed and forwards events to clients
// until the context is cancelled or the feed shuts down.
func (h *Hub) Run(ctx context.Context, feed *sync.Feed) {
	sub := feed.Subscribe(sync.Filter{})
	if sub == nil {
		return
	}
	defer func() { sub.Close() }()

	for {
		select {
		case e, ok := <-sub.C:
			if !ok {
				if sub = feed.Subscribe(sync.Filter{}); sub == nil {
					return
				}
				continue
			}
			h.Broadcast(e.FamilyID, messageFromEvent(e))
		case <-ctx.Done():
			return
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// FamilyClientCount returns the number of connected clients for one family.
func (h *Hub) FamilyClientCount(familyID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for c := range h.clients {
		if c.familyID == familyID {
			n++
		}
	}
	return n
}
