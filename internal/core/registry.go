package core

import "sync"

// Registry is the in-memory mapping from room id to currently-connected
// subscriber handles. All access goes through Join/Leave/Subscribers; the
// lock is never held across a blocking operation. A handle belongs to at
// most one room at a time, and empty rooms are pruned.
type Registry struct {
	mu         sync.Mutex
	rooms      map[string][]*Client
	membership map[*Client]string
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms:      make(map[string][]*Client),
		membership: make(map[*Client]string),
	}
}

// Join adds the client to roomID's subscriber set, leaving any prior room
// first. Idempotent if already a member of roomID. Returns the room the
// client left, or "" if none.
func (r *Registry) Join(roomID string, c *Client) (left string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.membership[c]
	if ok && prev == roomID {
		return ""
	}
	if ok {
		r.removeLocked(prev, c)
		left = prev
	}

	r.rooms[roomID] = append(r.rooms[roomID], c)
	r.membership[c] = roomID
	return left
}

// Leave removes the client from whatever room it belongs to. No-op if none.
// Returns the room left, or "" if the client was not a member anywhere.
func (r *Registry) Leave(c *Client) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	roomID, ok := r.membership[c]
	if !ok {
		return ""
	}
	r.removeLocked(roomID, c)
	delete(r.membership, c)
	return roomID
}

// RoomOf returns the room the client is currently joined to, or "".
func (r *Registry) RoomOf(c *Client) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.membership[c]
}

// Subscribers returns a snapshot of roomID's subscriber handles in join
// order, taken under a single lock hold so fan-out never observes a
// partially-updated set.
func (r *Registry) Subscribers(roomID string) []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	members := r.rooms[roomID]
	if len(members) == 0 {
		return nil
	}
	snapshot := make([]*Client, len(members))
	copy(snapshot, members)
	return snapshot
}

// HasSubscribers reports whether any handle is currently joined to roomID.
func (r *Registry) HasSubscribers(roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms[roomID]) > 0
}

// RoomCount returns the number of live rooms.
func (r *Registry) RoomCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

func (r *Registry) removeLocked(roomID string, c *Client) {
	members := r.rooms[roomID]
	for i, member := range members {
		if member == c {
			r.rooms[roomID] = append(members[:i], members[i+1:]...)
			break
		}
	}
	if len(r.rooms[roomID]) == 0 {
		delete(r.rooms, roomID)
	}
}
