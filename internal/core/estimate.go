package core

import (
	"strings"
	"unicode/utf8"
)

// MaxEstimateLen bounds a card value, counted in runes.
const MaxEstimateLen = 16

// StartEstimate clears every member's card and opens a new round.
func (c *Coordinator) StartEstimate(conn ConnID) error {
	p, ok := c.caller(conn)
	if !ok {
		return nil
	}
	room, err := c.currentRoom(p)
	if err != nil {
		return err
	}
	c.resetRound(room)

	c.log.Info().Str("room", string(room.ID)).Int("round", room.Round).Str("by", p.Name).Msg("estimate started")
	c.reply(conn, c.roomEvent(EventEstimateStarted, p, true, room))
	c.publish(room.ID, c.roomEvent(EventEstimateStarted, p, false, room))
	return nil
}

// SubmitEstimate records the caller's card and reports whether every member has one.
// The check runs against live membership on every call.
func (c *Coordinator) SubmitEstimate(conn ConnID, value Estimate) (bool, error) {
	p, ok := c.caller(conn)
	if !ok {
		return false, nil
	}
	value = Estimate(strings.TrimSpace(string(value)))
	if value == "" {
		return false, wrapf(ErrBadRequest, "estimate value is required")
	}
	if utf8.RuneCountInString(string(value)) > MaxEstimateLen {
		return false, wrapf(ErrBadRequest, "estimate value longer than %d characters", MaxEstimateLen)
	}
	room, err := c.currentRoom(p)
	if err != nil {
		return false, err
	}
	if !room.AcceptsEstimates(c.opts.AllowEstimateWhenOpen) {
		return false, wrapf(ErrInvalidState, "room %s is %s", room.ID, room.Status)
	}

	p.Estimate = value
	allIn := c.allEstimatesIn(room)

	c.log.Debug().Str("room", string(room.ID)).Str("participant", p.Name).Bool("all_in", allIn).Msg("estimate submitted")
	c.reply(conn, c.roomEvent(EventEstimateSubmitted, p, true, room))
	c.publish(room.ID, c.roomEvent(EventEstimateSubmitted, p, false, room))
	return allIn, nil
}

// ClearEstimate withdraws the caller's card. It tolerates a room that is already gone,
// since page navigation can race with teardown.
func (c *Coordinator) ClearEstimate(conn ConnID) {
	p, ok := c.caller(conn)
	if !ok {
		return
	}
	p.Estimate = ""

	room, ok := c.rooms.Find(p.RoomID)
	if !ok {
		c.reply(conn, c.roomEvent(EventEstimateCleared, p, true, nil))
		return
	}
	c.reply(conn, c.roomEvent(EventEstimateCleared, p, true, room))
	c.publish(room.ID, c.roomEvent(EventEstimateCleared, p, false, room))
}

// ShowResult reveals every member's card and archives the round.
func (c *Coordinator) ShowResult(conn ConnID) ([]EstimateView, error) {
	p, ok := c.caller(conn)
	if !ok {
		return nil, nil
	}
	room, err := c.currentRoom(p)
	if err != nil {
		return nil, err
	}
	if !room.CanReveal() {
		return nil, wrapf(ErrInvalidState, "room %s is %s", room.ID, room.Status)
	}

	estimates := make([]EstimateView, 0, room.Len())
	for _, id := range room.members {
		m, ok := c.participants.Find(id)
		if !ok {
			continue
		}
		estimates = append(estimates, EstimateView{ID: m.ID, Name: m.Name, Value: m.Estimate})
		m.RevealedView = true
	}
	firstReveal := room.Status != StatusRevealed
	room.Status = StatusRevealed
	if firstReveal {
		c.recorder.Record(RoundRecord{Room: room.ID, Round: room.Round, RevealedAt: c.now(), Estimates: estimates})
	}

	c.log.Info().Str("room", string(room.ID)).Int("round", room.Round).Int("estimates", len(estimates)).Msg("result shown")
	self := c.participantView(p, true)
	c.reply(conn, &Event{Kind: EventResultShown, Participant: &self})
	c.publish(room.ID, &Event{
		Kind:           EventResultShown,
		Room:           c.roomView(room),
		Estimates:      estimates,
		AllEstimatesIn: c.allEstimatesIn(room),
	})
	return estimates, nil
}

// RestartEstimate clears every card and starts the next round. Only the group is notified.
func (c *Coordinator) RestartEstimate(conn ConnID) error {
	p, ok := c.caller(conn)
	if !ok {
		return nil
	}
	room, err := c.currentRoom(p)
	if err != nil {
		return err
	}
	if !room.CanRestart() {
		return wrapf(ErrInvalidState, "room %s is %s", room.ID, room.Status)
	}
	c.resetRound(room)

	c.log.Info().Str("room", string(room.ID)).Int("round", room.Round).Str("by", p.Name).Msg("estimate restarted")
	c.publish(room.ID, c.roomEvent(EventEstimateRestarted, nil, false, room))
	return nil
}

// StopEstimate ends the session: members return to the lobby and the room is destroyed.
func (c *Coordinator) StopEstimate(conn ConnID) error {
	p, ok := c.caller(conn)
	if !ok {
		return nil
	}
	room, err := c.currentRoom(p)
	if err != nil {
		return err
	}

	c.log.Info().Str("room", string(room.ID)).Str("by", p.Name).Msg("estimate stopped")
	c.reply(conn, &Event{Kind: EventEstimateStopped})
	c.publish(room.ID, &Event{Kind: EventEstimateStopped, Room: c.roomView(room)})

	for _, id := range room.Members() {
		m, ok := c.participants.Find(id)
		if !ok {
			continue
		}
		room.RemoveMember(id)
		m.RoomID = ""
		m.clearRound()
		if m.ID == room.CreatorID {
			m.OwnedRoomID = ""
		}
		if m.Attached() {
			c.out.Detach(m.Conn, room.ID)
		}
	}
	c.destroyRoom(room)
	return nil
}

func (c *Coordinator) resetRound(room *Room) {
	for _, id := range room.members {
		if m, ok := c.participants.Find(id); ok {
			m.clearRound()
		}
	}
	room.Status = StatusEstimating
	room.Round++
}
