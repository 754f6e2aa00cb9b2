package core

// CreateRoom opens a room owned by the caller and seats the caller in it.
func (c *Coordinator) CreateRoom(conn ConnID) (*Room, error) {
	p, ok := c.caller(conn)
	if !ok {
		return nil, nil
	}
	if p.OwnedRoomID != "" {
		return nil, wrapf(ErrAlreadyOwnsRoom, "room %s", p.OwnedRoomID)
	}
	if p.RoomID != "" {
		return nil, wrapf(ErrAlreadyJoined, "room %s", p.RoomID)
	}

	room := c.rooms.Create(p.ID)
	room.AddMember(p.ID)
	p.RoomID = room.ID
	p.OwnedRoomID = room.ID
	p.clearRound()
	c.out.Attach(conn, room.ID)

	c.log.Info().Str("room", string(room.ID)).Str("creator", p.Name).Msg("room created")
	c.reply(conn, c.roomEvent(EventRoomCreated, p, true, room))
	c.publish(room.ID, c.roomEvent(EventJoinedRoom, p, false, room))
	c.lobbyChanged()
	return room, nil
}

// JoinRoom seats the caller in an existing room. Joining the room the caller already sits in
// is an idempotent re-join.
func (c *Coordinator) JoinRoom(conn ConnID, id RoomID) error {
	p, ok := c.caller(conn)
	if !ok {
		return nil
	}
	if id == "" {
		return wrapf(ErrBadRequest, "room id is required")
	}
	if p.RoomID != "" && p.RoomID != id {
		return wrapf(ErrAlreadyJoined, "room %s", p.RoomID)
	}
	room, ok := c.rooms.Find(id)
	if !ok {
		return wrapf(ErrRoomNotFound, "room %s", id)
	}

	if room.AddMember(p.ID) {
		p.clearRound()
	}
	p.RoomID = room.ID
	p.SuspendedRoomID = ""
	c.out.Attach(conn, room.ID)

	c.log.Info().Str("room", string(room.ID)).Str("participant", p.Name).Msg("joined room")
	c.reply(conn, c.roomEvent(EventJoinedRoom, p, true, room))
	c.publish(room.ID, c.roomEvent(EventJoinedRoom, p, false, room))
	return nil
}

// LeaveRoom takes the caller out of its room. It is a no-op outside a room.
func (c *Coordinator) LeaveRoom(conn ConnID) {
	p, ok := c.caller(conn)
	if !ok || p.RoomID == "" {
		return
	}
	c.leaveRoom(p, conn, true)
}

// leaveRoom removes p from its room, notifies the group and reclaims the room if it emptied.
func (c *Coordinator) leaveRoom(p *Participant, conn ConnID, replyToSelf bool) {
	room, ok := c.rooms.Find(p.RoomID)
	p.RoomID = ""
	p.clearRound()
	if !ok {
		return
	}
	room.RemoveMember(p.ID)

	c.log.Info().Str("room", string(room.ID)).Str("participant", p.Name).Int("members", room.Len()).Msg("left room")
	if replyToSelf {
		c.reply(conn, c.roomEvent(EventLeftRoom, p, true, room))
	}
	c.publish(room.ID, c.roomEvent(EventLeftRoom, p, false, room))
	if conn != "" {
		c.out.Detach(conn, room.ID)
	}
	if room.Empty() {
		c.destroyRoom(room)
	}
}

// destroyRoom removes a room and every reference participants still hold to it.
func (c *Coordinator) destroyRoom(room *Room) {
	c.rooms.Remove(room.ID)
	if creator, ok := c.participants.Find(room.CreatorID); ok && creator.OwnedRoomID == room.ID {
		creator.OwnedRoomID = ""
	}
	for _, p := range c.participants.Detached() {
		if p.SuspendedRoomID == room.ID {
			p.SuspendedRoomID = ""
		}
	}
	c.log.Info().Str("room", string(room.ID)).Msg("room closed")
	c.lobbyChanged()
}
