package core

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// DisconnectPolicy decides what a dropped connection does to room membership.
type DisconnectPolicy string

const (
	// RetainOnDisconnect keeps the participant seated; recovery only rebinds the connection.
	RetainOnDisconnect DisconnectPolicy = "retain"
	// EvictOnDisconnect removes the participant from its room; recovery re-seats it.
	EvictOnDisconnect DisconnectPolicy = "evict"
)

// ParseDisconnectPolicy maps a config string to a policy.
func ParseDisconnectPolicy(s string) (DisconnectPolicy, error) {
	switch DisconnectPolicy(s) {
	case "", RetainOnDisconnect:
		return RetainOnDisconnect, nil
	case EvictOnDisconnect:
		return EvictOnDisconnect, nil
	default:
		return "", fmt.Errorf("unknown disconnect policy %q", s)
	}
}

// Options tune the coordinator.
type Options struct {
	DisconnectPolicy      DisconnectPolicy
	AllowEstimateWhenOpen bool
	// SessionTTL is how long a detached participant survives. Zero keeps it forever.
	SessionTTL time.Duration
	Keys       KeyIssuer
	Recorder   RoundRecorder
	Logger     *zerolog.Logger
	Now        func() time.Time
}

// Coordinator owns both registries and applies every room and session command.
// All methods must be called from a single goroutine.
type Coordinator struct {
	participants *ParticipantRegistry
	rooms        *RoomRegistry
	out          Dispatcher
	keys         KeyIssuer
	recorder     RoundRecorder
	opts         Options
	log          zerolog.Logger
	now          func() time.Time
}

// NewCoordinator builds a coordinator that reports through out.
func NewCoordinator(out Dispatcher, opts Options) *Coordinator {
	if out == nil {
		out = nopDispatcher{}
	}
	if opts.DisconnectPolicy == "" {
		opts.DisconnectPolicy = RetainOnDisconnect
	}
	c := &Coordinator{
		participants: NewParticipantRegistry(),
		rooms:        NewRoomRegistry(),
		out:          out,
		keys:         opts.Keys,
		recorder:     opts.Recorder,
		opts:         opts,
		log:          zerolog.Nop(),
		now:          opts.Now,
	}
	if c.keys == nil {
		c.keys = opaqueKeys{}
	}
	if c.recorder == nil {
		c.recorder = nopRecorder{}
	}
	if opts.Logger != nil {
		c.log = opts.Logger.With().Str("module", "core.coordinator").Logger()
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Participants exposes the participant registry.
func (c *Coordinator) Participants() *ParticipantRegistry { return c.participants }

// Rooms exposes the room registry.
func (c *Coordinator) Rooms() *RoomRegistry { return c.rooms }

// Handle routes one command from conn. The returned error is meant for the initiating connection.
func (c *Coordinator) Handle(conn ConnID, cmd *Command) error {
	switch cmd.Kind {
	case CommandLogin:
		_, err := c.Login(conn, cmd.Name)
		return err
	case CommandRecover:
		_, err := c.Recover(conn, cmd.RecoveryKey)
		return err
	case CommandLogout:
		c.Logout(conn)
		return nil
	case CommandCreateRoom:
		_, err := c.CreateRoom(conn)
		return err
	case CommandJoinRoom:
		return c.JoinRoom(conn, cmd.Room)
	case CommandLeaveRoom:
		c.LeaveRoom(conn)
		return nil
	case CommandStartEstimate:
		return c.StartEstimate(conn)
	case CommandSubmitEstimate:
		_, err := c.SubmitEstimate(conn, cmd.Value)
		return err
	case CommandClearEstimate:
		c.ClearEstimate(conn)
		return nil
	case CommandShowResult:
		_, err := c.ShowResult(conn)
		return err
	case CommandRestartEstimate:
		return c.RestartEstimate(conn)
	case CommandStopEstimate:
		return c.StopEstimate(conn)
	default:
		return wrapf(ErrBadRequest, "unknown command %d", cmd.Kind)
	}
}

// Login registers a participant for conn and issues its recovery key.
func (c *Coordinator) Login(conn ConnID, name string) (*Participant, error) {
	if p, bound := c.participants.FindByConn(conn); bound {
		return nil, wrapf(ErrAlreadyLoggedIn, "logged in as %q", p.Name)
	}
	p, err := c.participants.Register(name)
	if err != nil {
		return nil, err
	}
	key, err := c.keys.Issue(p.ID, p.Name)
	if err != nil {
		c.participants.Remove(p.ID)
		return nil, fmt.Errorf("issue recovery key: %w", err)
	}
	c.participants.SetRecoveryKey(p.ID, key)
	c.participants.Bind(p.ID, conn)

	c.log.Info().Str("participant", string(p.ID)).Str("name", p.Name).Str("conn", string(conn)).Msg("login")
	view := c.participantView(p, true)
	c.reply(conn, &Event{
		Kind:        EventLoggedIn,
		Participant: &view,
		Rooms:       c.Lobby(),
		RecoveryKey: key,
	})
	return p, nil
}

// Logout releases the caller's room seat, forgets the participant and closes conn.
func (c *Coordinator) Logout(conn ConnID) {
	if p, ok := c.participants.FindByConn(conn); ok {
		if p.RoomID != "" {
			c.leaveRoom(p, conn, false)
		}
		c.participants.Remove(p.ID)
		c.log.Info().Str("participant", string(p.ID)).Str("name", p.Name).Msg("logout")
	}
	c.reply(conn, &Event{Kind: EventLoggedOut})
	c.out.Close(conn)
}

// Lobby snapshots every live room in creation order.
func (c *Coordinator) Lobby() []RoomView {
	rooms := c.rooms.List()
	out := make([]RoomView, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, *c.roomView(room))
	}
	return out
}

// AllEstimatesIn reports whether every current member of a room has an estimate.
func (c *Coordinator) AllEstimatesIn(id RoomID) bool {
	room, ok := c.rooms.Find(id)
	if !ok {
		return false
	}
	return c.allEstimatesIn(room)
}

func (c *Coordinator) allEstimatesIn(room *Room) bool {
	if room.Empty() {
		return false
	}
	for _, id := range room.members {
		p, ok := c.participants.Find(id)
		if !ok || p.Estimate == "" {
			return false
		}
	}
	return true
}

// caller resolves the participant behind conn. Unknown connections are ignored.
func (c *Coordinator) caller(conn ConnID) (*Participant, bool) {
	p, ok := c.participants.FindByConn(conn)
	if !ok {
		c.log.Debug().Str("conn", string(conn)).Msg("command from connection without participant ignored")
	}
	return p, ok
}

func (c *Coordinator) currentRoom(p *Participant) (*Room, error) {
	if p.RoomID == "" {
		return nil, wrapf(ErrNotInRoom, "%s", p.Name)
	}
	room, ok := c.rooms.Find(p.RoomID)
	if !ok {
		return nil, wrapf(ErrRoomNotFound, "room %s", p.RoomID)
	}
	return room, nil
}

func (c *Coordinator) participantView(p *Participant, self bool) ParticipantView {
	v := ParticipantView{
		ID:           p.ID,
		Name:         p.Name,
		RoomID:       p.RoomID,
		OwnedRoomID:  p.OwnedRoomID,
		HasEstimate:  p.Estimate != "",
		RevealedView: p.RevealedView,
		Connected:    p.Attached(),
	}
	if self || c.revealed(p.RoomID) {
		v.Value = p.Estimate
	}
	return v
}

func (c *Coordinator) revealed(id RoomID) bool {
	if id == "" {
		return false
	}
	room, ok := c.rooms.Find(id)
	return ok && room.Status == StatusRevealed
}

func (c *Coordinator) roomView(room *Room) *RoomView {
	v := &RoomView{
		ID:        room.ID,
		Status:    room.Status,
		CreatorID: room.CreatorID,
		Round:     room.Round,
		Members:   make([]ParticipantView, 0, room.Len()),
	}
	for _, id := range room.members {
		if p, ok := c.participants.Find(id); ok {
			v.Members = append(v.Members, c.participantView(p, false))
		}
	}
	return v
}

// roomEvent builds an event about p inside room. self marks the copy sent back to p.
func (c *Coordinator) roomEvent(kind EventKind, p *Participant, self bool, room *Room) *Event {
	ev := &Event{Kind: kind}
	if p != nil {
		v := c.participantView(p, self)
		ev.Participant = &v
	}
	if room != nil {
		ev.Room = c.roomView(room)
		ev.AllEstimatesIn = c.allEstimatesIn(room)
	}
	return ev
}

func (c *Coordinator) reply(conn ConnID, ev *Event) {
	if conn == "" {
		return
	}
	ev.Scope = ScopeDirect
	c.out.Send(conn, ev)
}

func (c *Coordinator) publish(room RoomID, ev *Event) {
	ev.Scope = ScopeGroup
	c.out.Publish(room, ev)
}

func (c *Coordinator) lobbyChanged() {
	c.out.Broadcast(&Event{Kind: EventRoomsChanged, Scope: ScopeGlobal, Rooms: c.Lobby()})
}
