package chat

import "sync"

// Hub is the room registry: which sessions currently receive broadcasts for
// which room. It only holds session ids; session lifecycle belongs to the
// Gateway.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]struct{}
	joined map[string]map[string]struct{} // session id -> rooms
}

func NewHub() *Hub {
	return &Hub{
		rooms:  make(map[string]map[string]struct{}),
		joined: make(map[string]map[string]struct{}),
	}
}

// Add registers sessionID in room. It reports false if it was already there.
func (h *Hub) Add(room, sessionID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]struct{})
		h.rooms[room] = members
	}
	if _, dup := members[sessionID]; dup {
		return false
	}
	members[sessionID] = struct{}{}

	rooms, ok := h.joined[sessionID]
	if !ok {
		rooms = make(map[string]struct{})
		h.joined[sessionID] = rooms
	}
	rooms[room] = struct{}{}
	return true
}

// Remove drops sessionID from room. It reports false if it was not a member.
func (h *Hub) Remove(room, sessionID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.removeLocked(room, sessionID)
}

// RemoveFromAll drops sessionID from every room in one critical section and
// returns the rooms it left. A Members call that starts after RemoveFromAll
// returns never sees the session.
func (h *Hub) RemoveFromAll(sessionID string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	rooms := h.joined[sessionID]
	left := make([]string, 0, len(rooms))
	for room := range rooms {
		left = append(left, room)
	}
	for _, room := range left {
		h.removeLocked(room, sessionID)
	}
	return left
}

func (h *Hub) removeLocked(room, sessionID string) bool {
	members, ok := h.rooms[room]
	if !ok {
		return false
	}
	if _, ok := members[sessionID]; !ok {
		return false
	}
	delete(members, sessionID)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
	if rooms, ok := h.joined[sessionID]; ok {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(h.joined, sessionID)
		}
	}
	return true
}

// Members returns a snapshot of the session ids in room.
func (h *Hub) Members(room string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members := h.rooms[room]
	ids := make([]string, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	return ids
}

// IsMember reports whether sessionID is registered in room.
func (h *Hub) IsMember(room, sessionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[room][sessionID]
	return ok
}

// RoomsOf returns the rooms sessionID is registered in.
func (h *Hub) RoomsOf(sessionID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	rooms := make([]string, 0, len(h.joined[sessionID]))
	for room := range h.joined[sessionID] {
		rooms = append(rooms, room)
	}
	return rooms
}

// RoomCount returns the number of rooms with at least one member.
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}
