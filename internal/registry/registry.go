// Package registry tracks which authenticated users are reachable over live
// WebSocket connections and which connections are present in which
// conversation rooms. It is the single shared mutable structure of the chat
// server: one Registry is constructed per process and passed by handle to
// every component that needs presence answers.
//
// All operations are in-memory and complete without suspension, so callers
// can snapshot presence state before any store or network call.
package registry

import (
	"errors"
	"sync"
)

// ErrDuplicateConnection is returned by Register when the connection ID is
// already bound. The transport assigns fresh UUIDs per connection, so this
// indicates a caller bug rather than a client condition.
var ErrDuplicateConnection = errors.New("registry: connection already registered")

type connState struct {
	userID string
	rooms  map[string]struct{}
}

// Registry is a goroutine-safe mapping from live connections to their
// authenticated user and joined rooms, with reverse indexes for
// user-to-connections and room-to-connections lookups.
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]*connState          // connID -> state
	byUser map[string]map[string]struct{} // userID -> set of connIDs
	byRoom map[string]map[string]struct{} // roomID -> set of connIDs
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		conns:  make(map[string]*connState),
		byUser: make(map[string]map[string]struct{}),
		byRoom: make(map[string]map[string]struct{}),
	}
}

// Register binds a connection to a user identity. It fails with
// ErrDuplicateConnection if the connection ID is already bound.
func (r *Registry) Register(connID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[connID]; ok {
		return ErrDuplicateConnection
	}

	r.conns[connID] = &connState{
		userID: userID,
		rooms:  make(map[string]struct{}),
	}
	set, ok := r.byUser[userID]
	if !ok {
		set = make(map[string]struct{})
		r.byUser[userID] = set
	}
	set[connID] = struct{}{}
	return nil
}

// Unregister removes a connection and all its room memberships atomically.
// Unregistering an unknown connection is a no-op. It returns true if the
// connection was found and removed.
func (r *Registry) Unregister(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.conns[connID]
	if !ok {
		return false
	}

	for roomID := range state.rooms {
		r.removeFromRoomLocked(connID, roomID)
	}
	if set, ok := r.byUser[state.userID]; ok {
		delete(set, connID)
		if len(set) == 0 {
			delete(r.byUser, state.userID)
		}
	}
	delete(r.conns, connID)
	return true
}

// JoinRoom adds a connection to a room. Joining a room the connection is
// already in is a no-op. Joining from an unregistered connection is ignored.
func (r *Registry) JoinRoom(connID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.conns[connID]
	if !ok {
		return
	}
	if _, in := state.rooms[roomID]; in {
		return
	}
	state.rooms[roomID] = struct{}{}

	set, ok := r.byRoom[roomID]
	if !ok {
		set = make(map[string]struct{})
		r.byRoom[roomID] = set
	}
	set[connID] = struct{}{}
}

// LeaveRoom removes a connection from a room. Leaving a room the connection is
// not in is a no-op.
func (r *Registry) LeaveRoom(connID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.conns[connID]
	if !ok {
		return
	}
	if _, in := state.rooms[roomID]; !in {
		return
	}
	delete(state.rooms, roomID)
	r.removeFromRoomLocked(connID, roomID)
}

// removeFromRoomLocked deletes a connection from the room index. Caller must
// hold the write lock.
func (r *Registry) removeFromRoomLocked(connID, roomID string) {
	set, ok := r.byRoom[roomID]
	if !ok {
		return
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(r.byRoom, roomID)
	}
}

// IsUserReachable reports whether at least one registered connection is bound
// to the given user, regardless of room memberships.
func (r *Registry) IsUserReachable(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID]) > 0
}

// ConnectionsForUser returns a snapshot of all connection IDs bound to the
// given user. The returned slice is safe to iterate without the lock.
func (r *Registry) ConnectionsForUser(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.byUser[userID]
	out := make([]string, 0, len(set))
	for connID := range set {
		out = append(out, connID)
	}
	return out
}

// ConnectionsInRoom returns a snapshot of all connection IDs currently joined
// to the given room. Used for message fan-out.
func (r *Registry) ConnectionsInRoom(roomID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.byRoom[roomID]
	out := make([]string, 0, len(set))
	for connID := range set {
		out = append(out, connID)
	}
	return out
}

// UsersInRoom returns the set of distinct user identities with at least one
// connection joined to the room. The relay uses this to decide which
// participants need the push fallback.
func (r *Registry) UsersInRoom(roomID string) map[string]struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]struct{})
	for connID := range r.byRoom[roomID] {
		if state, ok := r.conns[connID]; ok {
			out[state.userID] = struct{}{}
		}
	}
	return out
}

// UserFor returns the user identity bound to a connection, or "" if the
// connection is not registered.
func (r *Registry) UserFor(connID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if state, ok := r.conns[connID]; ok {
		return state.userID
	}
	return ""
}

// InRoom reports whether the connection is currently joined to the room.
func (r *Registry) InRoom(connID, roomID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, ok := r.conns[connID]
	if !ok {
		return false
	}
	_, in := state.rooms[roomID]
	return in
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
