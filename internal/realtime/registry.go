package realtime

import (
	"errors"
	"fmt"
	"sync"

	"alert-service/internal/logging"
	"alert-service/internal/metrics"
)

var ErrTooManyConnections = errors.New("too many connections for user")

// Handle is a live connection that can receive pushes.
type Handle interface {
	ID() string
	Send(message []byte) error
	Close() error
}

// Registry maps user IDs to their live connection handles. An entry exists
// only while the user has at least one connection.
type Registry struct {
	mu          sync.RWMutex
	connections map[int64]map[string]Handle // userID -> handle id -> handle
	owners      map[string]int64            // handle id -> userID
	maxPerUser  int
	logger      *logging.Logger
}

// NewRegistry creates an empty registry. maxPerUser <= 0 means unlimited.
func NewRegistry(maxPerUser int, logger *logging.Logger) *Registry {
	return &Registry{
		connections: make(map[int64]map[string]Handle),
		owners:      make(map[string]int64),
		maxPerUser:  maxPerUser,
		logger:      logger,
	}
}

// Add registers h for userID.
func (r *Registry) Add(userID int64, h Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if owner, ok := r.owners[h.ID()]; ok {
		if owner == userID {
			return nil
		}
		return fmt.Errorf("connection %s already registered for user %d", h.ID(), owner)
	}

	conns, exists := r.connections[userID]
	if !exists {
		conns = make(map[string]Handle)
		r.connections[userID] = conns
	}
	if r.maxPerUser > 0 && len(conns) >= r.maxPerUser {
		r.logger.Warnf("Max connections reached for user %d", userID)
		return fmt.Errorf("user %d: %w", userID, ErrTooManyConnections)
	}
	conns[h.ID()] = h
	r.owners[h.ID()] = userID
	metrics.ActiveConnections.Set(float64(len(r.owners)))
	r.logger.Infof("Added connection %s for user %d (total: %d)", h.ID(), userID, len(conns))
	return nil
}

// Remove unregisters h and returns its owner. The owner's entry is dropped
// when its last connection goes away.
func (r *Registry) Remove(h Handle) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.owners[h.ID()]
	if !ok {
		return 0, false
	}
	delete(r.owners, h.ID())
	conns := r.connections[userID]
	delete(conns, h.ID())
	if len(conns) == 0 {
		delete(r.connections, userID)
	}
	metrics.ActiveConnections.Set(float64(len(r.owners)))
	r.logger.Infof("Removed connection %s for user %d (remaining: %d)", h.ID(), userID, len(conns))
	return userID, true
}

// Connections returns a snapshot of the user's live handles.
func (r *Registry) Connections(userID int64) []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := r.connections[userID]
	out := make([]Handle, 0, len(conns))
	for _, h := range conns {
		out = append(out, h)
	}
	return out
}

// All returns a snapshot of every live handle.
func (r *Registry) All() []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Handle, 0, len(r.owners))
	for _, conns := range r.connections {
		for _, h := range conns {
			out = append(out, h)
		}
	}
	return out
}

// Has reports whether the user has an entry.
func (r *Registry) Has(userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.connections[userID]
	return ok
}

// Users returns the number of users with at least one connection.
func (r *Registry) Users() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections)
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.owners)
}
