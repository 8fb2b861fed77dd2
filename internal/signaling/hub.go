package signaling

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Hub tracks connected clients by id.
type Hub struct {
	clients map[string]*Client
	mu      sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	count := len(h.clients)
	h.mu.Unlock()

	log.Debug().
		Str("connId", c.ID).
		Int("clientCount", count).
		Msg("websocket client registered")
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, ok := h.clients[c.ID]; ok && current == c {
		delete(h.clients, c.ID)
		log.Debug().
			Str("connId", c.ID).
			Int("clientCount", len(h.clients)).
			Msg("websocket client unregistered")
	}
}

// Send delivers env to one client and reports whether it is connected.
func (h *Hub) Send(id string, env Envelope) bool {
	h.mu.RLock()
	c, ok := h.clients[id]
	h.mu.RUnlock()

	if !ok {
		return false
	}
	c.Send(env)
	return true
}

// SendAll delivers env to every connected client in ids.
func (h *Hub) SendAll(ids []string, env Envelope) int {
	h.mu.RLock()
	targets := make([]*Client, 0, len(ids))
	for _, id := range ids {
		if c, ok := h.clients[id]; ok {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.Send(env)
	}
	return len(targets)
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close closes every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*Client)
	h.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}
}
