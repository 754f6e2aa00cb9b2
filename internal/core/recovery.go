package core

import "time"

// RecoveredSession is what a reconnecting client needs to rebuild its view.
type RecoveredSession struct {
	Participant ParticipantView
	Rooms       []RoomView
	Room        *RoomView
	RecoveryKey string
}

// Recover rebinds an existing participant to a new physical connection.
//
// Under RetainOnDisconnect the participant is still seated and only the connection and its group
// attachment change. Under EvictOnDisconnect the participant is re-seated in the room it was
// evicted from, if that room still exists. Repeating the call with the same key and connection
// yields the same session and never duplicates membership.
func (c *Coordinator) Recover(conn ConnID, key string) (*RecoveredSession, error) {
	if key == "" {
		return nil, wrapf(ErrUnknownSession, "recovery key is required")
	}
	issuedTo, err := c.keys.Verify(key)
	if err != nil {
		c.log.Debug().Err(err).Str("conn", string(conn)).Msg("recovery key rejected")
		return nil, wrapf(ErrUnknownSession, "invalid recovery key")
	}
	p, ok := c.participants.FindByKey(key)
	if !ok || (issuedTo != "" && issuedTo != p.ID) {
		return nil, wrapf(ErrUnknownSession, "no participant for recovery key")
	}
	if bound, ok := c.participants.FindByConn(conn); ok && bound.ID != p.ID {
		return nil, wrapf(ErrAlreadyLoggedIn, "logged in as %q", bound.Name)
	}

	rebound := p.Conn != conn
	if previous := c.participants.Bind(p.ID, conn); previous != "" {
		if p.RoomID != "" {
			c.out.Detach(previous, p.RoomID)
		}
		c.out.Close(previous)
		c.log.Info().Str("participant", p.Name).Str("conn", string(previous)).Msg("replaced live connection")
	}

	var room *Room
	switch {
	case p.RoomID != "":
		r, ok := c.rooms.Find(p.RoomID)
		if !ok {
			p.RoomID = ""
			p.clearRound()
			break
		}
		r.AddMember(p.ID)
		room = r
	case p.SuspendedRoomID != "":
		if r, ok := c.rooms.Find(p.SuspendedRoomID); ok {
			r.AddMember(p.ID)
			p.RoomID = r.ID
			room = r
		}
		p.SuspendedRoomID = ""
	}
	if room != nil {
		c.out.Attach(conn, room.ID)
	}

	key = c.renewKey(p, key)
	session := &RecoveredSession{
		Participant: c.participantView(p, true),
		Rooms:       c.Lobby(),
		RecoveryKey: key,
	}
	if room != nil {
		session.Room = c.roomView(room)
	}

	c.log.Info().Str("participant", p.Name).Str("conn", string(conn)).Bool("rebound", rebound).Msg("session recovered")
	view := session.Participant
	c.reply(conn, &Event{
		Kind:        EventRecovered,
		Participant: &view,
		Rooms:       session.Rooms,
		Room:        session.Room,
		RecoveryKey: key,
	})
	if room != nil && rebound {
		c.publish(room.ID, c.roomEvent(EventParticipantReconnected, p, false, room))
	}
	return session, nil
}

// Disconnect handles a dropped connection according to the configured policy.
// The participant stays registered so that Recover can pick it up.
func (c *Coordinator) Disconnect(conn ConnID) {
	p, ok := c.participants.Unbind(conn, c.now())
	if !ok {
		return
	}
	c.log.Info().Str("participant", p.Name).Str("conn", string(conn)).Str("policy", string(c.opts.DisconnectPolicy)).Msg("disconnected")
	if p.RoomID == "" {
		return
	}
	room, ok := c.rooms.Find(p.RoomID)
	if !ok {
		p.RoomID = ""
		return
	}
	c.out.Detach(conn, room.ID)

	switch c.opts.DisconnectPolicy {
	case EvictOnDisconnect:
		c.leaveRoom(p, "", false)
		if _, alive := c.rooms.Find(room.ID); alive {
			p.SuspendedRoomID = room.ID
		}
	default:
		c.publish(room.ID, c.roomEvent(EventParticipantDisconnected, p, false, room))
	}
}

// ReapDetached forgets participants detached for longer than the session TTL.
// It returns how many were removed.
func (c *Coordinator) ReapDetached(now time.Time) int {
	if c.opts.SessionTTL <= 0 {
		return 0
	}
	reaped := 0
	for _, p := range c.participants.Detached() {
		if now.Sub(p.DetachedAt) < c.opts.SessionTTL {
			continue
		}
		if p.RoomID != "" {
			c.leaveRoom(p, "", false)
		}
		c.participants.Remove(p.ID)
		reaped++
		c.log.Info().Str("participant", p.Name).Msg("reaped idle session")
	}
	return reaped
}

// renewKey returns the key the client should keep. A key replaced by an earlier rotation
// maps to the current one, so retrying a recovery hands out the same key.
func (c *Coordinator) renewKey(p *Participant, presented string) string {
	if p.recoveryKey != "" && p.recoveryKey != presented {
		return p.recoveryKey
	}
	renewer, ok := c.keys.(KeyRenewer)
	if !ok || !renewer.NeedsRenewal(presented) {
		return presented
	}
	fresh, err := c.keys.Issue(p.ID, p.Name)
	if err != nil {
		c.log.Warn().Err(err).Str("participant", p.Name).Msg("recovery key renewal failed")
		return presented
	}
	c.participants.RotateRecoveryKey(p.ID, fresh)
	c.log.Debug().Str("participant", p.Name).Msg("recovery key renewed")
	return fresh
}
