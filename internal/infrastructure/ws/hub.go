package ws

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Hub tracks open connections for fan-out.
type Hub struct {
	mu    sync.RWMutex
	conns map[*Conn]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[*Conn]struct{})}
}

// Add registers c.
func (h *Hub) Add(c *Conn) {
	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
}

// Remove unregisters c.
func (h *Hub) Remove(c *Conn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
}

// Len returns the number of registered connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Broadcast offers v to every active connection without blocking.
// A connection whose queue is full misses this frame.
// It returns the number of connections that accepted the frame.
func (h *Hub) Broadcast(v any) int {
	data, ok := encode(v)
	if !ok {
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for c := range h.conns {
		if c.State() != StateActive {
			continue
		}
		if c.enqueue(data, false) {
			sent++
		} else {
			log.Debug().Str("user", c.UserID().String()).Msg("outbound queue full, frame dropped")
		}
	}
	return sent
}

// CloseAll closes every registered connection.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.conns {
		c.Close()
	}
}
