package core

import "testing"

func TestRoomRegistrySequentialIDs(t *testing.T) {
	r := NewRoomRegistry()

	first := r.Create("p1")
	second := r.Create("p2")
	if first.ID != "1" || second.ID != "2" {
		t.Fatalf("expected ids 1 and 2, got %s and %s", first.ID, second.ID)
	}
	if first.Status != StatusOpen || first.CreatorID != "p1" || !first.Empty() {
		t.Fatalf("unexpected new room: %+v", first)
	}

	r.Remove(first.ID)
	third := r.Create("p3")
	if third.ID != "3" {
		t.Fatalf("ids must not be reused, got %s", third.ID)
	}

	list := r.List()
	if len(list) != 2 || list[0].ID != "2" || list[1].ID != "3" {
		t.Fatalf("unexpected list order: %v", list)
	}
	if _, ok := r.Find("1"); ok {
		t.Fatalf("removed room still found")
	}
}

func TestRoomMembersKeepOrderWithoutDuplicates(t *testing.T) {
	room := NewRoom("1", "a")

	for _, id := range []ParticipantID{"a", "b", "a", "c"} {
		room.AddMember(id)
	}
	got := room.Members()
	want := []ParticipantID{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}

	if !room.RemoveMember("b") || room.RemoveMember("b") {
		t.Fatalf("remove should succeed exactly once")
	}
	if room.HasMember("b") || room.Len() != 2 {
		t.Fatalf("unexpected members after removal: %v", room.Members())
	}
}

func TestRoomStatusPredicates(t *testing.T) {
	tests := []struct {
		status          RoomStatus
		whenOpen        bool
		acceptsEstimate bool
		canReveal       bool
	}{
		{status: StatusOpen, whenOpen: false, acceptsEstimate: false, canReveal: false},
		{status: StatusOpen, whenOpen: true, acceptsEstimate: true, canReveal: false},
		{status: StatusEstimating, acceptsEstimate: true, canReveal: true},
		{status: StatusRevealed, acceptsEstimate: false, canReveal: true},
	}
	for _, tt := range tests {
		room := &Room{Status: tt.status}
		if got := room.AcceptsEstimates(tt.whenOpen); got != tt.acceptsEstimate {
			t.Errorf("%s (whenOpen=%v): AcceptsEstimates=%v, want %v", tt.status, tt.whenOpen, got, tt.acceptsEstimate)
		}
		if got := room.CanReveal(); got != tt.canReveal {
			t.Errorf("%s: CanReveal=%v, want %v", tt.status, got, tt.canReveal)
		}
	}
}
