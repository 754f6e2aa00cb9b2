package core

import (
	"errors"
	"testing"
)

func TestLoginNameUniqueness(t *testing.T) {
	c, out := newTestCoordinator(t, Options{})

	alice := mustLogin(t, c, "c1", "alice")
	ev := out.lastSent(t, "c1")
	if ev.Kind != EventLoggedIn || ev.Participant.ID != alice.ID || ev.RecoveryKey == "" {
		t.Fatalf("unexpected login reply: %+v", ev)
	}

	_, err := c.Login("c2", "alice")
	expectErr(t, err, ErrNameTaken)
	if c.Participants().Len() != 1 {
		t.Fatalf("failed login must not create a participant")
	}
	if _, ok := c.Participants().FindByConn("c2"); ok {
		t.Fatalf("failed login must not bind the connection")
	}
}

func TestLoginTwiceOnSameConnection(t *testing.T) {
	c, _ := newTestCoordinator(t, Options{})
	mustLogin(t, c, "c1", "alice")

	_, err := c.Login("c1", "alice2")
	expectErr(t, err, ErrAlreadyLoggedIn)
}

func TestLoginReplyListsRooms(t *testing.T) {
	c, out := newTestCoordinator(t, Options{})
	mustLogin(t, c, "c1", "alice")
	room := mustCreateRoom(t, c, "c1")

	mustLogin(t, c, "c2", "bob")
	ev := out.lastSent(t, "c2")
	if len(ev.Rooms) != 1 || ev.Rooms[0].ID != room.ID || len(ev.Rooms[0].Members) != 1 {
		t.Fatalf("expected lobby with room %s, got %+v", room.ID, ev.Rooms)
	}
}

func TestCreateRoomMakesCallerOwnerAndMember(t *testing.T) {
	c, out := newTestCoordinator(t, Options{})
	alice := mustLogin(t, c, "c1", "alice")

	room := mustCreateRoom(t, c, "c1")
	if room.Status != StatusOpen || room.CreatorID != alice.ID || !room.HasMember(alice.ID) {
		t.Fatalf("unexpected room: %+v", room)
	}
	if alice.RoomID != room.ID || alice.OwnedRoomID != room.ID {
		t.Fatalf("alice should sit in and own %s: %+v", room.ID, alice)
	}
	if !out.attached("c1", room.ID) {
		t.Fatalf("creator connection not attached to the room group")
	}
	if out.lastSent(t, "c1").Kind != EventRoomCreated {
		t.Fatalf("expected room_created reply")
	}
	if out.lastPublished(t, room.ID).Kind != EventJoinedRoom {
		t.Fatalf("expected joined_room group event")
	}
	if len(out.broadcasts) == 0 || out.broadcasts[len(out.broadcasts)-1].Kind != EventRoomsChanged {
		t.Fatalf("expected rooms_changed broadcast")
	}

	_, err := c.CreateRoom("c1")
	expectErr(t, err, ErrAlreadyOwnsRoom)
	if c.Rooms().Len() != 1 {
		t.Fatalf("failed create must not allocate a room")
	}
	checkSymmetry(t, c)
}

func TestCreateRoomWhileSeatedElsewhere(t *testing.T) {
	c, _ := newTestCoordinator(t, Options{})
	mustLogin(t, c, "c1", "alice")
	mustLogin(t, c, "c2", "bob")
	room := mustCreateRoom(t, c, "c1")
	mustJoin(t, c, "c2", room.ID)

	_, err := c.CreateRoom("c2")
	expectErr(t, err, ErrAlreadyJoined)
	checkSymmetry(t, c)
}

func TestJoinRoomExclusivity(t *testing.T) {
	c, _ := newTestCoordinator(t, Options{})
	mustLogin(t, c, "c1", "alice")
	mustLogin(t, c, "c2", "bob")
	carol := mustLogin(t, c, "c3", "carol")
	first := mustCreateRoom(t, c, "c1")
	second := mustCreateRoom(t, c, "c2")

	mustJoin(t, c, "c3", first.ID)
	err := c.JoinRoom("c3", second.ID)
	expectErr(t, err, ErrAlreadyJoined)
	if carol.RoomID != first.ID || second.HasMember(carol.ID) {
		t.Fatalf("failed join must leave membership untouched")
	}

	expectErr(t, c.JoinRoom("c3", "404"), ErrAlreadyJoined)
	c.LeaveRoom("c3")
	expectErr(t, c.JoinRoom("c3", "404"), ErrRoomNotFound)
	expectErr(t, c.JoinRoom("c3", ""), ErrBadRequest)
	checkSymmetry(t, c)
}

func TestJoinSameRoomIsIdempotent(t *testing.T) {
	c, _ := newTestCoordinator(t, Options{})
	mustLogin(t, c, "c1", "alice")
	bob := mustLogin(t, c, "c2", "bob")
	room := mustCreateRoom(t, c, "c1")

	mustJoin(t, c, "c2", room.ID)
	c.StartEstimate("c1")
	mustSubmit(t, c, "c2", "3")
	mustJoin(t, c, "c2", room.ID)

	if room.Len() != 2 {
		t.Fatalf("re-join duplicated membership: %v", room.Members())
	}
	if bob.Estimate != "3" {
		t.Fatalf("re-join must not drop the current estimate")
	}
	checkSymmetry(t, c)
}

func TestLeaveRoomReclaimsEmptyRoom(t *testing.T) {
	c, out := newTestCoordinator(t, Options{})
	alice := mustLogin(t, c, "c1", "alice")
	mustLogin(t, c, "c2", "bob")
	room := mustCreateRoom(t, c, "c1")
	mustJoin(t, c, "c2", room.ID)

	c.LeaveRoom("c1")
	if _, ok := c.Rooms().Find(room.ID); !ok {
		t.Fatalf("room with a remaining member must survive")
	}
	if alice.RoomID != "" || alice.OwnedRoomID != room.ID {
		t.Fatalf("owner leaving keeps ownership while the room lives: %+v", alice)
	}
	if out.attached("c1", room.ID) {
		t.Fatalf("leaver still attached to group")
	}
	left := out.lastPublished(t, room.ID)
	if left.Kind != EventLeftRoom || left.Participant.ID != alice.ID || len(left.Room.Members) != 1 {
		t.Fatalf("unexpected leave event: %+v", left)
	}

	c.LeaveRoom("c2")
	if _, ok := c.Rooms().Find(room.ID); ok {
		t.Fatalf("empty room must be removed")
	}
	if alice.OwnedRoomID != "" {
		t.Fatalf("ownership must be released with the room")
	}
	if _, err := c.CreateRoom("c1"); err != nil {
		t.Fatalf("owner should be able to create again: %v", err)
	}
	checkSymmetry(t, c)
}

func TestLeaveOutsideRoomIsNoop(t *testing.T) {
	c, out := newTestCoordinator(t, Options{})
	mustLogin(t, c, "c1", "alice")
	before := len(out.sent["c1"])

	c.LeaveRoom("c1")
	if len(out.sent["c1"]) != before {
		t.Fatalf("leaving outside a room must not reply")
	}
}

func TestUnknownConnectionCommandsAreIgnored(t *testing.T) {
	c, out := newTestCoordinator(t, Options{})

	cmds := []*Command{
		{Kind: CommandCreateRoom},
		{Kind: CommandJoinRoom, Room: "1"},
		{Kind: CommandLeaveRoom},
		{Kind: CommandStartEstimate},
		{Kind: CommandSubmitEstimate, Value: "5"},
		{Kind: CommandClearEstimate},
		{Kind: CommandShowResult},
		{Kind: CommandRestartEstimate},
		{Kind: CommandStopEstimate},
	}
	for _, cmd := range cmds {
		if err := c.Handle("ghost", cmd); err != nil {
			t.Fatalf("command %d from unknown connection returned %v", cmd.Kind, err)
		}
	}
	if len(out.sent["ghost"]) != 0 || c.Rooms().Len() != 0 {
		t.Fatalf("unknown connection must not cause effects")
	}
}

func TestLogoutLeavesRoomAndClosesConnection(t *testing.T) {
	c, out := newTestCoordinator(t, Options{})
	mustLogin(t, c, "c1", "alice")
	bob := mustLogin(t, c, "c2", "bob")
	room := mustCreateRoom(t, c, "c1")
	mustJoin(t, c, "c2", room.ID)

	c.Logout("c2")
	if _, ok := c.Participants().Find(bob.ID); ok {
		t.Fatalf("participant must be removed on logout")
	}
	if room.HasMember(bob.ID) {
		t.Fatalf("logout must release the seat")
	}
	if out.lastSent(t, "c2").Kind != EventLoggedOut || !out.closed["c2"] {
		t.Fatalf("expected logged_out ack and closed connection")
	}
	if out.lastPublished(t, room.ID).Kind != EventLeftRoom {
		t.Fatalf("expected left_room group event")
	}

	if _, err := c.Login("c3", "bob"); err != nil {
		t.Fatalf("name must be free after logout: %v", err)
	}
	checkSymmetry(t, c)
}

func TestHandleUnknownCommand(t *testing.T) {
	c, _ := newTestCoordinator(t, Options{})
	err := c.Handle("c1", &Command{Kind: CommandKind(99)})
	if !errors.Is(err, ErrBadRequest) {
		t.Fatalf("expected bad_request, got %v", err)
	}
}

func TestMembershipSymmetryAcrossCommandSequence(t *testing.T) {
	c, _ := newTestCoordinator(t, Options{DisconnectPolicy: EvictOnDisconnect})
	names := []string{"a", "b", "c", "d"}
	for i, n := range names {
		mustLogin(t, c, ConnID("c"+string(rune('1'+i))), n)
	}

	r1 := mustCreateRoom(t, c, "c1")
	checkSymmetry(t, c)
	r2 := mustCreateRoom(t, c, "c2")
	mustJoin(t, c, "c3", r1.ID)
	_ = c.JoinRoom("c4", r2.ID)
	_ = c.JoinRoom("c4", r1.ID)
	checkSymmetry(t, c)

	c.LeaveRoom("c2")
	checkSymmetry(t, c)
	c.Disconnect("c4")
	checkSymmetry(t, c)
	_ = c.StopEstimate("c1")
	checkSymmetry(t, c)
	if c.Rooms().Len() != 0 {
		t.Fatalf("expected every room gone, have %d", c.Rooms().Len())
	}
}
