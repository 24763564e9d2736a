// Package presence tracks which users are connected and which rooms they
// are actively viewing. The registry is the single source of truth for the
// "active in room" question the accounting pass asks: a member who is
// looking at a room gets no unread bump for it.
package presence

import (
	"sync"

	"github.com/google/uuid"
)

type Registry struct {
	mu sync.RWMutex

	// conns maps a connection ID to its user. One user may hold several
	// connections (multiple tabs or devices).
	conns map[string]uuid.UUID
	users map[uuid.UUID]map[string]struct{}

	// rooms maps a user to the rooms they are actively viewing.
	rooms map[uuid.UUID]map[uuid.UUID]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]uuid.UUID),
		users: make(map[uuid.UUID]map[string]struct{}),
		rooms: make(map[uuid.UUID]map[uuid.UUID]struct{}),
	}
}

// Connect registers a connection for a user. It reports whether this is
// the user's first live connection, which callers use to broadcast the
// online transition exactly once.
func (r *Registry) Connect(connID string, userID uuid.UUID) (first bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.conns[connID] = userID
	set, ok := r.users[userID]
	if !ok {
		set = make(map[string]struct{})
		r.users[userID] = set
	}
	first = len(set) == 0
	set[connID] = struct{}{}
	return first
}

// Disconnect removes a connection. It returns the owning user and whether
// this was the user's last connection; on the last one the user's active
// rooms are cleared.
func (r *Registry) Disconnect(connID string) (userID uuid.UUID, last bool, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok = r.conns[connID]
	if !ok {
		return uuid.Nil, false, false
	}
	delete(r.conns, connID)

	set := r.users[userID]
	delete(set, connID)
	if len(set) == 0 {
		delete(r.users, userID)
		delete(r.rooms, userID)
		last = true
	}
	return userID, last, true
}

// JoinRoom marks the user as actively viewing a room
func (r *Registry) JoinRoom(userID, roomID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.rooms[userID]
	if !ok {
		set = make(map[uuid.UUID]struct{})
		r.rooms[userID] = set
	}
	set[roomID] = struct{}{}
}

// LeaveRoom clears the active-viewing mark
func (r *Registry) LeaveRoom(userID, roomID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if set, ok := r.rooms[userID]; ok {
		delete(set, roomID)
		if len(set) == 0 {
			delete(r.rooms, userID)
		}
	}
}

// IsActiveIn reports whether the user is currently viewing the room
func (r *Registry) IsActiveIn(userID, roomID uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.rooms[userID]
	if !ok {
		return false
	}
	_, ok = set[roomID]
	return ok
}

// IsOnline reports whether the user has at least one live connection
func (r *Registry) IsOnline(userID uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.users[userID]) > 0
}

// OnlineUsers returns every user with a live connection
func (r *Registry) OnlineUsers() []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]uuid.UUID, 0, len(r.users))
	for id := range r.users {
		out = append(out, id)
	}
	return out
}

// ConnectionCount returns the number of live connections
func (r *Registry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.conns)
}
