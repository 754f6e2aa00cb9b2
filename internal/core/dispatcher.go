package core

import "time"

// Dispatcher delivers events and maintains room broadcast groups.
// Calls are fire-and-forget: the core never waits for delivery.
type Dispatcher interface {
	// Send delivers ev to one connection.
	Send(conn ConnID, ev *Event)
	// Publish delivers ev to every connection attached to room.
	Publish(room RoomID, ev *Event)
	// Broadcast delivers ev to every connection.
	Broadcast(ev *Event)
	// Attach adds conn to the broadcast group of room.
	Attach(conn ConnID, room RoomID)
	// Detach removes conn from the broadcast group of room.
	Detach(conn ConnID, room RoomID)
	// Close ends the physical connection after pending events are flushed.
	Close(conn ConnID)
}

// KeyIssuer mints and checks recovery keys.
type KeyIssuer interface {
	Issue(id ParticipantID, name string) (string, error)
	// Verify returns the participant a key was issued to, or an error if it is forged or expired.
	Verify(key string) (ParticipantID, error)
}

// KeyRenewer is implemented by issuers whose keys expire. Recover rotates a key it reports as due.
type KeyRenewer interface {
	NeedsRenewal(key string) bool
}

// RoundRecord is a revealed round handed to the archive.
type RoundRecord struct {
	Room       RoomID
	Round      int
	RevealedAt time.Time
	Estimates  []EstimateView
}

// RoundRecorder receives revealed rounds. Implementations must not block.
type RoundRecorder interface {
	Record(rec RoundRecord)
}

type nopDispatcher struct{}

func (nopDispatcher) Send(ConnID, *Event)    {}
func (nopDispatcher) Publish(RoomID, *Event) {}
func (nopDispatcher) Broadcast(*Event)       {}
func (nopDispatcher) Attach(ConnID, RoomID)  {}
func (nopDispatcher) Detach(ConnID, RoomID)  {}
func (nopDispatcher) Close(ConnID)           {}

type nopRecorder struct{}

func (nopRecorder) Record(RoundRecord) {}
