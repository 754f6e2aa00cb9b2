package core

import (
	"errors"
	"testing"
	"time"
)

func mustEvent(t testing.TB, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()
	return mustEventWhere(t, ch, kind, nil)
}

// mustEventWhere waits for an event of kind that also satisfies match, skipping everything else.
func mustEventWhere(t testing.TB, ch <-chan *Event, kind EventKind, match func(*Event) bool) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind && (match == nil || match(ev)) {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// recordingDispatcher captures everything the coordinator emits.
type recordingDispatcher struct {
	sent       map[ConnID][]*Event
	published  map[RoomID][]*Event
	broadcasts []*Event
	groups     map[RoomID]map[ConnID]bool
	closed     map[ConnID]bool
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{
		sent:      make(map[ConnID][]*Event),
		published: make(map[RoomID][]*Event),
		groups:    make(map[RoomID]map[ConnID]bool),
		closed:    make(map[ConnID]bool),
	}
}

func (d *recordingDispatcher) Send(conn ConnID, ev *Event) {
	d.sent[conn] = append(d.sent[conn], ev)
}

func (d *recordingDispatcher) Publish(room RoomID, ev *Event) {
	d.published[room] = append(d.published[room], ev)
}

func (d *recordingDispatcher) Broadcast(ev *Event) {
	d.broadcasts = append(d.broadcasts, ev)
}

func (d *recordingDispatcher) Attach(conn ConnID, room RoomID) {
	if d.groups[room] == nil {
		d.groups[room] = make(map[ConnID]bool)
	}
	d.groups[room][conn] = true
}

func (d *recordingDispatcher) Detach(conn ConnID, room RoomID) {
	delete(d.groups[room], conn)
}

func (d *recordingDispatcher) Close(conn ConnID) {
	d.closed[conn] = true
}

func (d *recordingDispatcher) lastSent(t *testing.T, conn ConnID) *Event {
	t.Helper()
	evs := d.sent[conn]
	if len(evs) == 0 {
		t.Fatalf("no event sent to %s", conn)
	}
	return evs[len(evs)-1]
}

func (d *recordingDispatcher) lastPublished(t *testing.T, room RoomID) *Event {
	t.Helper()
	evs := d.published[room]
	if len(evs) == 0 {
		t.Fatalf("no event published to room %s", room)
	}
	return evs[len(evs)-1]
}

func (d *recordingDispatcher) attached(conn ConnID, room RoomID) bool {
	return d.groups[room][conn]
}

// capturingRecorder keeps archived rounds in memory.
type capturingRecorder struct {
	rounds []RoundRecord
}

func (r *capturingRecorder) Record(rec RoundRecord) {
	r.rounds = append(r.rounds, rec)
}

func newTestCoordinator(t *testing.T, opts Options) (*Coordinator, *recordingDispatcher) {
	t.Helper()
	out := newRecordingDispatcher()
	return NewCoordinator(out, opts), out
}

func mustLogin(t *testing.T, c *Coordinator, conn ConnID, name string) *Participant {
	t.Helper()
	p, err := c.Login(conn, name)
	if err != nil {
		t.Fatalf("login %s: %v", name, err)
	}
	return p
}

func mustCreateRoom(t *testing.T, c *Coordinator, conn ConnID) *Room {
	t.Helper()
	room, err := c.CreateRoom(conn)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	return room
}

func mustJoin(t *testing.T, c *Coordinator, conn ConnID, room RoomID) {
	t.Helper()
	if err := c.JoinRoom(conn, room); err != nil {
		t.Fatalf("join room %s from %s: %v", room, conn, err)
	}
}

func mustSubmit(t *testing.T, c *Coordinator, conn ConnID, value Estimate) bool {
	t.Helper()
	allIn, err := c.SubmitEstimate(conn, value)
	if err != nil {
		t.Fatalf("submit %s from %s: %v", value, conn, err)
	}
	return allIn
}

func expectErr(t *testing.T, err error, sentinel *CoreError) {
	t.Helper()
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected %s error, got %v", sentinel.Code, err)
	}
}

// checkSymmetry asserts that p is in room.members iff p.RoomID == room.ID, and that
// no participant sits in more than one room.
func checkSymmetry(t *testing.T, c *Coordinator) {
	t.Helper()
	seats := make(map[ParticipantID]RoomID)
	for _, room := range c.Rooms().List() {
		if room.Empty() {
			t.Fatalf("empty room %s still registered", room.ID)
		}
		for _, id := range room.Members() {
			if prev, dup := seats[id]; dup {
				t.Fatalf("participant %s seated in %s and %s", id, prev, room.ID)
			}
			seats[id] = room.ID
			p, ok := c.Participants().Find(id)
			if !ok {
				t.Fatalf("room %s holds unknown participant %s", room.ID, id)
			}
			if p.RoomID != room.ID {
				t.Fatalf("participant %s listed in room %s but points at %q", p.Name, room.ID, p.RoomID)
			}
		}
	}
	for _, p := range c.Participants().byID {
		if p.RoomID != "" && seats[p.ID] != p.RoomID {
			t.Fatalf("participant %s points at room %s but is not a member", p.Name, p.RoomID)
		}
		if p.OwnedRoomID != "" {
			room, ok := c.Rooms().Find(p.OwnedRoomID)
			if !ok || room.CreatorID != p.ID {
				t.Fatalf("participant %s owns %s which it did not create", p.Name, p.OwnedRoomID)
			}
		}
	}
}
