package core

import "time"

// RoomID identifies a room. Ids come from a monotonic sequence.
type RoomID string

// RoomStatus is the lifecycle state of a room. A closed room is simply gone from the registry.
type RoomStatus string

const (
	StatusOpen       RoomStatus = "open"
	StatusEstimating RoomStatus = "estimating"
	StatusRevealed   RoomStatus = "revealed"
)

// Room groups participants sharing one estimation round.
type Room struct {
	ID        RoomID
	Status    RoomStatus
	CreatorID ParticipantID
	Round     int
	CreatedAt time.Time
	members   []ParticipantID
}

// NewRoom constructs an open room with no members.
func NewRoom(id RoomID, creator ParticipantID) *Room {
	return &Room{
		ID:        id,
		Status:    StatusOpen,
		CreatorID: creator,
		CreatedAt: time.Now(),
	}
}

// AddMember appends a participant. Returns true if newly added.
func (r *Room) AddMember(id ParticipantID) bool {
	if r.HasMember(id) {
		return false
	}
	r.members = append(r.members, id)
	return true
}

// RemoveMember deletes a participant. Returns true if removed.
func (r *Room) RemoveMember(id ParticipantID) bool {
	for i, m := range r.members {
		if m == id {
			r.members = append(r.members[:i], r.members[i+1:]...)
			return true
		}
	}
	return false
}

// HasMember reports membership by identity.
func (r *Room) HasMember(id ParticipantID) bool {
	for _, m := range r.members {
		if m == id {
			return true
		}
	}
	return false
}

// Members returns a copy of the member list in join order.
func (r *Room) Members() []ParticipantID {
	out := make([]ParticipantID, len(r.members))
	copy(out, r.members)
	return out
}

// Len returns the member count.
func (r *Room) Len() int {
	return len(r.members)
}

// Empty returns true if no participants are in the room.
func (r *Room) Empty() bool {
	return len(r.members) == 0
}

// AcceptsEstimates reports whether submissions are valid in the current status.
func (r *Room) AcceptsEstimates(whenOpen bool) bool {
	switch r.Status {
	case StatusEstimating:
		return true
	case StatusOpen:
		return whenOpen
	default:
		return false
	}
}

// CanReveal reports whether showResult is valid.
func (r *Room) CanReveal() bool {
	return r.Status == StatusEstimating || r.Status == StatusRevealed
}

// CanRestart reports whether restartEstimate is valid.
func (r *Room) CanRestart() bool {
	return r.Status == StatusEstimating || r.Status == StatusRevealed
}
