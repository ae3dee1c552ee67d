// Package registry tracks which live connection belongs to which
// authenticated user. It is the authoritative "who is online" set.
package registry

import (
	"sort"
	"sync"
)

// Registry maps connection ids to user ids and back. A connection binds to
// at most one user; re-binding replaces the prior association.
type Registry struct {
	mu         sync.RWMutex
	userByConn map[int64]int64
	connByUser map[int64]int64
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		userByConn: make(map[int64]int64),
		connByUser: make(map[int64]int64),
	}
}

// Bind associates a connection with a user. If the connection was bound to
// another user, or the user was bound on another connection, the old
// associations are dropped.
func (r *Registry) Bind(connID, userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.userByConn[connID]; ok {
		delete(r.connByUser, prev)
	}
	if prev, ok := r.connByUser[userID]; ok {
		delete(r.userByConn, prev)
	}
	r.userByConn[connID] = userID
	r.connByUser[userID] = connID
}

// Unbind removes a connection's association on disconnect.
func (r *Registry) Unbind(connID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if userID, ok := r.userByConn[connID]; ok {
		delete(r.connByUser, userID)
		delete(r.userByConn, connID)
	}
}

// UserFor returns the user bound to a connection, if any.
func (r *Registry) UserFor(connID int64) (int64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	userID, ok := r.userByConn[connID]
	return userID, ok
}

// ConnFor returns the connection a user is bound on, if online.
func (r *Registry) ConnFor(userID int64) (int64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	connID, ok := r.connByUser[userID]
	return connID, ok
}

// OnlineUsers returns the ids of all currently bound users, ascending.
func (r *Registry) OnlineUsers() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]int64, 0, len(r.connByUser))
	for id := range r.connByUser {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
