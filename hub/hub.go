// Package hub implements the process-wide broadcast fabric: a registry
// of named groups and the clients currently joined to them. A send
// reaches the membership snapshot taken at call time; clients joining
// concurrently may or may not see that particular payload, which is
// acceptable because history is replayable.
package hub

import (
	"log/slog"
	"sync"
)

type Hub struct {
	mu       sync.RWMutex
	groups   map[string]map[*Client]struct{}
	byClient map[*Client]map[string]struct{}
	log      *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		groups:   make(map[string]map[*Client]struct{}),
		byClient: make(map[*Client]map[string]struct{}),
		log:      log,
	}
}

// Join adds the client to a group. Joining twice is a no-op.
func (h *Hub) Join(group string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.groups[group]; !ok {
		h.groups[group] = make(map[*Client]struct{})
	}
	h.groups[group][c] = struct{}{}

	if _, ok := h.byClient[c]; !ok {
		h.byClient[c] = make(map[string]struct{})
	}
	h.byClient[c][group] = struct{}{}

	h.log.Debug("client joined group", "client_id", c.ID, "group", group)
}

// Leave removes the client from one group, dropping empty group entries
// so the registry does not leak over time.
func (h *Hub) Leave(group string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(group, c)
}

func (h *Hub) leaveLocked(group string, c *Client) {
	if members, ok := h.groups[group]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.groups, group)
		}
	}
	if groups, ok := h.byClient[c]; ok {
		delete(groups, group)
		if len(groups) == 0 {
			delete(h.byClient, c)
		}
	}
}

// DropClient removes the client from every group it joined. Called on
// connection teardown, after the subscription registry has already been
// purged, so no fan-out can reference the dead client afterwards.
func (h *Hub) DropClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for group := range h.byClient[c] {
		h.leaveLocked(group, c)
	}
	h.log.Debug("client dropped from all groups", "client_id", c.ID)
}

// Send delivers the payload to every client joined to the group at call
// time. Each recipient's own outbound queue preserves the sender's call
// order; a failed enqueue (closed or saturated client) is logged and
// dropped without aborting delivery to the remaining members.
func (h *Hub) Send(group string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.groups[group] {
		if !c.Enqueue(payload) {
			h.log.Warn("dropping payload for unreachable client", "client_id", c.ID, "group", group)
		}
	}
}

// Members reports the current size of a group.
func (h *Hub) Members(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}

// Groups reports how many groups the client is currently joined to.
func (h *Hub) Groups(c *Client) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byClient[c])
}
