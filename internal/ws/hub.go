// Package ws fans check-log events out to live subscribers of a tenant.
package ws

import "sync"

// Subscriber abstracts a streaming client.
type Subscriber interface {
	Send([]byte) error
	Close()
}

// Hub manages stream subscriptions by tenant ID.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[Subscriber]struct{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[string]map[Subscriber]struct{})}
}

// Register adds a client to a tenant stream.
func (h *Hub) Register(tenantID string, client Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[tenantID]; !ok {
		h.clients[tenantID] = make(map[Subscriber]struct{})
	}
	h.clients[tenantID][client] = struct{}{}
}

// Unregister removes a client.
func (h *Hub) Unregister(tenantID string, client Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(tenantID, client)
}

func (h *Hub) remove(tenantID string, client Subscriber) {
	if clients, ok := h.clients[tenantID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.clients, tenantID)
		}
	}
}

// Broadcast sends payload to every client of tenantID. Clients that fail to
// accept the payload are closed and dropped. Other tenants are unaffected.
func (h *Hub) Broadcast(tenantID string, payload []byte) {
	h.mu.RLock()
	targets := make([]Subscriber, 0, len(h.clients[tenantID]))
	for c := range h.clients[tenantID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.Send(payload); err != nil {
			c.Close()
			h.Unregister(tenantID, c)
		}
	}
}

// Count returns the number of subscribers for tenantID.
func (h *Hub) Count(tenantID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[tenantID])
}
