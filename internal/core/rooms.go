package core

import "strconv"

// RoomRegistry owns every live room and hands out sequential ids.
// It is not safe for concurrent use; the hub goroutine serializes access.
type RoomRegistry struct {
	rooms map[RoomID]*Room
	order []RoomID
	seq   uint64
}

// NewRoomRegistry builds an empty registry whose first room id is "1".
func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{rooms: make(map[RoomID]*Room)}
}

// Create allocates the next room id and stores an open room for creator.
func (r *RoomRegistry) Create(creator ParticipantID) *Room {
	r.seq++
	room := NewRoom(RoomID(strconv.FormatUint(r.seq, 10)), creator)
	r.rooms[room.ID] = room
	r.order = append(r.order, room.ID)
	return room
}

// Find returns a room by id.
func (r *RoomRegistry) Find(id RoomID) (*Room, bool) {
	room, ok := r.rooms[id]
	return room, ok
}

// Remove deletes a room. Returns true if it existed.
func (r *RoomRegistry) Remove(id RoomID) bool {
	if _, ok := r.rooms[id]; !ok {
		return false
	}
	delete(r.rooms, id)
	for i, rid := range r.order {
		if rid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// List returns live rooms in creation order.
func (r *RoomRegistry) List() []*Room {
	out := make([]*Room, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.rooms[id])
	}
	return out
}

// Len returns the number of live rooms.
func (r *RoomRegistry) Len() int {
	return len(r.rooms)
}
