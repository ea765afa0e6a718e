// Package broadcast implements scope-addressed real-time fan-out. A scope
// is "device:<id>" or "user:<id>"; one connection may join many scopes.
// Delivery is at-most-once: no acknowledgement, no retry, no queuing for
// absent subscribers.
package broadcast

import (
	"encoding/json"
	"log"
	"sync"
)

func DeviceScope(deviceID string) string { return "device:" + deviceID }
func UserScope(userID string) string     { return "user:" + userID }

type Hub struct {
	mu sync.RWMutex
	// scope -> subscribed clients
	scopes map[string]map[*Client]struct{}
	// client -> scopes it joined, for teardown
	members map[*Client]map[string]struct{}
}

func NewHub() *Hub {
	return &Hub{
		scopes:  make(map[string]map[*Client]struct{}),
		members: make(map[*Client]map[string]struct{}),
	}
}

func (h *Hub) Join(c *Client, scope string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.scopes[scope] == nil {
		h.scopes[scope] = make(map[*Client]struct{})
	}
	h.scopes[scope][c] = struct{}{}

	if h.members[c] == nil {
		h.members[c] = make(map[string]struct{})
	}
	h.members[c][scope] = struct{}{}
}

func (h *Hub) Leave(c *Client, scope string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, scope)
}

// Unregister removes the client from every scope it joined and closes its
// send channel. A reconnecting client must join its scopes again.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for scope := range h.members[c] {
		h.leaveLocked(c, scope)
	}
	delete(h.members, c)
	c.closeOnce.Do(func() { close(c.send) })
}

func (h *Hub) leaveLocked(c *Client, scope string) {
	if clients, ok := h.scopes[scope]; ok {
		delete(clients, c)
		if len(clients) == 0 {
			delete(h.scopes, scope)
		}
	}
	if scopes, ok := h.members[c]; ok {
		delete(scopes, scope)
	}
}

// Broadcast sends an event envelope to every client in the given scopes,
// deduplicating clients joined to more than one of them. Slow clients are
// skipped; there is no backpressure toward the evaluation path.
func (h *Hub) Broadcast(event string, data interface{}, scopes ...string) {
	body, err := json.Marshal(envelope{Event: event, Data: data})
	if err != nil {
		log.Printf("broadcast marshal %s: %v", event, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[*Client]struct{})
	for _, scope := range scopes {
		for c := range h.scopes[scope] {
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			select {
			case c.send <- body:
			default:
			}
		}
	}
}

// SubscriberCount reports how many clients are joined to a scope.
func (h *Hub) SubscriberCount(scope string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.scopes[scope])
}

type envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}
