package subscriptions

import (
	"errors"
	"sync"
)

// ErrNotFound is returned when removing a subscription ID that is not, or is
// no longer, registered.
var ErrNotFound = errors.New("subscription not found")

// Registry is the in-memory index of live subscriptions for one concern.
// It keeps two maps: ID to subscription and connection ID to the set of
// subscription IDs opened over that connection. Both are mutated under one
// mutex so an entry is never visible in one index but not the other.
//
// The registry holds runtime state only. A process restart drops every live
// subscription; clients reconnect and resubscribe.
type Registry[T Entry] struct {
	mu     sync.RWMutex
	byID   map[string]T
	byConn map[string]map[string]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry[T Entry]() *Registry[T] {
	return &Registry[T]{
		byID:   make(map[string]T),
		byConn: make(map[string]map[string]struct{}),
	}
}

// Add registers a subscription under both indexes.
func (r *Registry[T]) Add(sub T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := sub.SubscriptionID()
	conn := sub.Connection()

	r.byID[id] = sub
	ids, ok := r.byConn[conn]
	if !ok {
		ids = make(map[string]struct{})
		r.byConn[conn] = ids
	}
	ids[id] = struct{}{}
}

// Get returns the subscription with the given ID.
func (r *Registry[T]) Get(id string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sub, ok := r.byID[id]
	return sub, ok
}

// Remove deletes a subscription by ID. Returns ErrNotFound for an unknown or
// already-removed ID.
func (r *Registry[T]) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(r.byID, id)

	conn := sub.Connection()
	if ids, ok := r.byConn[conn]; ok {
		delete(ids, id)
		if len(ids) == 0 {
			delete(r.byConn, conn)
		}
	}
	return nil
}

// RemoveAllForConnection tears down every subscription opened over the given
// connection and returns how many were removed.
func (r *Registry[T]) RemoveAllForConnection(connectionID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids, ok := r.byConn[connectionID]
	if !ok {
		return 0
	}
	for id := range ids {
		delete(r.byID, id)
	}
	delete(r.byConn, connectionID)
	return len(ids)
}

// ListActive returns a snapshot of the live subscriptions. The slice is safe
// to iterate while other goroutines add and remove entries.
func (r *Registry[T]) ListActive() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]T, 0, len(r.byID))
	for _, sub := range r.byID {
		out = append(out, sub)
	}
	return out
}

// Len returns the number of live subscriptions.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
