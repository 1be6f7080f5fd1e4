// Package observer implements the subscription registry: per group, the
// set of correlation ids (and owning connections) interested in change
// notifications. One physical connection can hold several independent
// subscriptions at once, one per caller-chosen request id, which is how
// a client tracks multiple live queries over a single socket.
package observer

import (
	"encoding/json"
	"log/slog"
	"sync"

	"chat-server/domain/event"
	"chat-server/hub"
)

type Registry struct {
	mu       sync.RWMutex
	groups   map[string]map[*hub.Client]map[string]struct{}
	byClient map[*hub.Client]map[string]map[string]struct{}

	// dispatchMu serializes OnChange calls so that a connection
	// subscribed to several groups sees distinct changes in the order
	// they were raised.
	dispatchMu sync.Mutex

	log *slog.Logger
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		groups:   make(map[string]map[*hub.Client]map[string]struct{}),
		byClient: make(map[*hub.Client]map[string]map[string]struct{}),
		log:      log,
	}
}

// notification is the envelope dispatched to every interested
// subscriber, tagged with that subscriber's own request id.
type notification struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id"`
	Action    string          `json:"action"`
	PK        any             `json:"pk"`
	Data      json.RawMessage `json:"data"`
}

// Subscribe registers the (request id, group) pair for the connection.
// Subscribing the same pair twice is a no-op.
func (r *Registry) Subscribe(c *hub.Client, group, requestID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.groups[group]; !ok {
		r.groups[group] = make(map[*hub.Client]map[string]struct{})
	}
	if _, ok := r.groups[group][c]; !ok {
		r.groups[group][c] = make(map[string]struct{})
	}
	r.groups[group][c][requestID] = struct{}{}

	if _, ok := r.byClient[c]; !ok {
		r.byClient[c] = make(map[string]map[string]struct{})
	}
	if _, ok := r.byClient[c][group]; !ok {
		r.byClient[c][group] = make(map[string]struct{})
	}
	r.byClient[c][group][requestID] = struct{}{}
}

// Unsubscribe removes exactly one (request id, group) pair. Removing an
// absent pair is a no-op.
func (r *Registry) Unsubscribe(c *hub.Client, group, requestID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ids, ok := r.byClient[c][group]; ok {
		delete(ids, requestID)
		if len(ids) == 0 {
			delete(r.byClient[c], group)
			if len(r.byClient[c]) == 0 {
				delete(r.byClient, c)
			}
		}
	}
	if ids, ok := r.groups[group][c]; ok {
		delete(ids, requestID)
		if len(ids) == 0 {
			delete(r.groups[group], c)
			if len(r.groups[group]) == 0 {
				delete(r.groups, group)
			}
		}
	}
}

// UnsubscribeGroup removes every pair the connection holds for one
// group. Used by leave_room, which revokes all of the caller's live
// queries against that room.
func (r *Registry) UnsubscribeGroup(c *hub.Client, group string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropGroupLocked(c, group)
}

// DropClient removes every subscription owned by the connection. Called
// first during teardown, before the hub releases group memberships, so
// no notification can be dispatched to a dead connection.
func (r *Registry) DropClient(c *hub.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for group := range r.byClient[c] {
		r.dropGroupLocked(c, group)
	}
}

func (r *Registry) dropGroupLocked(c *hub.Client, group string) {
	delete(r.byClient[c], group)
	if len(r.byClient[c]) == 0 {
		delete(r.byClient, c)
	}
	if members, ok := r.groups[group]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(r.groups, group)
		}
	}
}

// Subscriptions reports how many (request id, group) pairs the
// connection currently holds.
func (r *Registry) Subscriptions(c *hub.Client) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, ids := range r.byClient[c] {
		n += len(ids)
	}
	return n
}

// OnChange resolves the groups affected by the change, serializes the
// payload exactly once, and dispatches one notification per subscriber
// present at the moment the call begins. Subscribers added afterwards do
// not receive this particular change. Implements storage.Listener.
func (r *Registry) OnChange(e event.ChangeEvent) {
	r.dispatchMu.Lock()
	defer r.dispatchMu.Unlock()

	data, err := json.Marshal(e.Data())
	if err != nil {
		r.log.Error("change payload serialization failed", "error", err)
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, group := range e.Groups() {
		for c, requestIDs := range r.groups[group] {
			for requestID := range requestIDs {
				payload, err := json.Marshal(notification{
					Type:      "notification",
					RequestID: requestID,
					Action:    string(e.Action()),
					PK:        e.PK(),
					Data:      data,
				})
				if err != nil {
					r.log.Error("notification envelope failed", "error", err)
					continue
				}
				if !c.Enqueue(payload) {
					r.log.Warn("dropping notification for unreachable client",
						"client_id", c.ID, "group", group, "request_id", requestID)
				}
			}
		}
	}
}
