package user

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Registry maps connection IDs to their {username, room} record. It is the
// single source of truth for room membership: a room exists exactly while
// at least one record carries its name.
type Registry struct {
	mu     sync.RWMutex
	users  []*User
	byConn map[string]*User
	now    func() time.Time
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byConn: make(map[string]*User),
		now:    time.Now,
	}
}

// AddUser validates and inserts a record for connID. The duplicate check and
// the insert happen under one lock, so two joins racing for the same name in
// the same room cannot both succeed.
func (r *Registry) AddUser(connID, username, room string) (User, error) {
	username = NormalizeUsername(username)
	room = NormalizeRoom(room)
	if username == "" || room == "" {
		return User{}, ErrValidation
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byConn[connID]; ok {
		return User{}, fmt.Errorf("%w: %s", ErrConnectionRegistered, connID)
	}
	for _, u := range r.users {
		if u.Room == room && strings.EqualFold(u.Username, username) {
			return User{}, fmt.Errorf("%w: %q in room %q", ErrDuplicateUsername, username, room)
		}
	}

	u := &User{
		ConnID:   connID,
		Username: username,
		Room:     room,
		JoinedAt: r.now(),
	}
	r.users = append(r.users, u)
	r.byConn[connID] = u
	return *u, nil
}

// RemoveUser deletes and returns the record for connID. A missing record is
// normal (the connection may never have joined) and reported with ok=false.
func (r *Registry) RemoveUser(connID string) (User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byConn[connID]
	if !ok {
		return User{}, false
	}
	delete(r.byConn, connID)
	for i, candidate := range r.users {
		if candidate == u {
			r.users = append(r.users[:i], r.users[i+1:]...)
			break
		}
	}
	return *u, true
}

// GetUser returns the record for connID.
func (r *Registry) GetUser(connID string) (User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byConn[connID]
	if !ok {
		return User{}, false
	}
	return *u, true
}

// UsersInRoom returns the members of room in insertion order. The room name
// is normalised the same way AddUser does.
func (r *Registry) UsersInRoom(room string) []User {
	room = NormalizeRoom(room)

	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []User
	for _, u := range r.users {
		if u.Room == room {
			result = append(result, *u)
		}
	}
	return result
}

// Users returns a snapshot of every record.
func (r *Registry) Users() []User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]User, 0, len(r.users))
	for _, u := range r.users {
		result = append(result, *u)
	}
	return result
}

// Len returns the number of registered users.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}
