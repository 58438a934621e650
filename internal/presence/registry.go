// Package presence tracks the live gateway connections of each user.
package presence

import (
	"sort"
	"sync"

	"github.com/linkup-social/chat-platform/pkg/metrics"
)

// Sink is a live connection that outbound frames can be pushed to.
type Sink interface {
	ID() string
	Send(frame []byte) error
}

// Registry maps user ids to their live connections. It is safe for
// concurrent use. Users with no live connection have no entry.
type Registry struct {
	mu    sync.RWMutex
	users map[string]map[string]Sink
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{users: make(map[string]map[string]Sink)}
}

// Register adds sink to userID's connections. Registering the same
// connection id twice keeps a single entry.
func (r *Registry) Register(userID string, sink Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.users[userID]
	if !ok {
		conns = make(map[string]Sink)
		r.users[userID] = conns
	}
	conns[sink.ID()] = sink
	metrics.PresenceUsers.Set(float64(len(r.users)))
}

// Deregister removes connectionID from userID's connections and drops the
// user once no connection remains.
func (r *Registry) Deregister(userID, connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.users[userID]
	if !ok {
		return
	}
	delete(conns, connectionID)
	if len(conns) == 0 {
		delete(r.users, userID)
	}
	metrics.PresenceUsers.Set(float64(len(r.users)))
}

// Lookup returns the sorted connection ids of userID, empty when offline.
func (r *Registry) Lookup(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := r.users[userID]
	ids := make([]string, 0, len(conns))
	for id := range conns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Sinks returns a snapshot of userID's live connections.
func (r *Registry) Sinks(userID string) []Sink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := r.users[userID]
	sinks := make([]Sink, 0, len(conns))
	for _, s := range conns {
		sinks = append(sinks, s)
	}
	return sinks
}

// All returns a snapshot of every live connection.
func (r *Registry) All() []Sink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sinks []Sink
	for _, conns := range r.users {
		for _, s := range conns {
			sinks = append(sinks, s)
		}
	}
	return sinks
}

// Online reports whether userID has at least one live connection.
func (r *Registry) Online(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.users[userID]
	return ok
}

// UserCount returns the number of users with a live connection.
func (r *Registry) UserCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

// ConnectionCount returns the number of live connections across all users.
func (r *Registry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, conns := range r.users {
		n += len(conns)
	}
	return n
}
