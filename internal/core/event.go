package core

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventLoggedIn answers a successful login.
	EventLoggedIn EventKind = iota
	// EventRecovered answers a successful session recovery.
	EventRecovered
	// EventLoggedOut acknowledges a logout before the connection is closed.
	EventLoggedOut
	// EventRoomCreated answers the creator of a new room.
	EventRoomCreated
	// EventJoinedRoom notifies about a participant entering a room.
	EventJoinedRoom
	// EventLeftRoom notifies about a participant leaving a room.
	EventLeftRoom
	// EventEstimateStarted notifies that a round started.
	EventEstimateStarted
	// EventEstimateSubmitted notifies that a participant picked a card.
	EventEstimateSubmitted
	// EventEstimateCleared notifies that a participant withdrew a card.
	EventEstimateCleared
	// EventResultShown carries the revealed estimates.
	EventResultShown
	// EventEstimateRestarted notifies that the round was reset.
	EventEstimateRestarted
	// EventEstimateStopped notifies that the session ended and the room is gone.
	EventEstimateStopped
	// EventParticipantDisconnected notifies that a member lost its connection but kept its seat.
	EventParticipantDisconnected
	// EventParticipantReconnected notifies that a member came back on a new connection.
	EventParticipantReconnected
	// EventRoomsChanged delivers the lobby room list after a room appears or disappears.
	EventRoomsChanged
	// EventError notifies clients about a domain error.
	EventError
)

var eventNames = map[EventKind]string{
	EventLoggedIn:                "logged_in",
	EventRecovered:               "recovered",
	EventLoggedOut:               "logged_out",
	EventRoomCreated:             "room_created",
	EventJoinedRoom:              "joined_room",
	EventLeftRoom:                "left_room",
	EventEstimateStarted:         "estimate_started",
	EventEstimateSubmitted:       "estimate_submitted",
	EventEstimateCleared:         "estimate_cleared",
	EventResultShown:             "result_shown",
	EventEstimateRestarted:       "estimate_restarted",
	EventEstimateStopped:         "estimate_stopped",
	EventParticipantDisconnected: "participant_disconnected",
	EventParticipantReconnected:  "participant_reconnected",
	EventRoomsChanged:            "rooms_changed",
	EventError:                   "error",
}

func (k EventKind) String() string {
	if name, ok := eventNames[k]; ok {
		return name
	}
	return "unknown"
}

// Scope tells the transport who an event was addressed to.
type Scope int

const (
	// ScopeDirect events go to the initiating connection only.
	ScopeDirect Scope = iota
	// ScopeGroup events go to every connection attached to a room.
	ScopeGroup
	// ScopeGlobal events go to every connection.
	ScopeGlobal
)

// Event is sent to clients to describe what happened in the system.
// Events hold snapshots and are never mutated after dispatch.
type Event struct {
	Kind           EventKind
	Scope          Scope
	Participant    *ParticipantView
	Room           *RoomView
	Rooms          []RoomView
	Estimates      []EstimateView
	AllEstimatesIn bool
	RecoveryKey    string
	Error          *CoreError
}

// ParticipantView is a read-only snapshot of a participant.
// Value is only filled for the participant itself or once the room is revealed.
type ParticipantView struct {
	ID           ParticipantID
	Name         string
	RoomID       RoomID
	OwnedRoomID  RoomID
	HasEstimate  bool
	Value        Estimate
	RevealedView bool
	Connected    bool
}

// RoomView is a read-only snapshot of a room and its members.
type RoomView struct {
	ID        RoomID
	Status    RoomStatus
	CreatorID ParticipantID
	Round     int
	Members   []ParticipantView
}

// EstimateView is one line of a revealed round.
type EstimateView struct {
	ID    ParticipantID
	Name  string
	Value Estimate
}
