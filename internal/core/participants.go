package core

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

// MaxNameLen bounds display names, counted in runes.
const MaxNameLen = 32

type (
	ParticipantID string
	ConnID        string
	// Estimate is a submitted card value ("5", "13", "?", "coffee"). Empty means none.
	Estimate string
)

// Participant is a logical user, independent of the connection currently carrying it.
type Participant struct {
	ID              ParticipantID
	Name            string
	Conn            ConnID
	RoomID          RoomID
	OwnedRoomID     RoomID
	Estimate        Estimate
	RevealedView    bool
	SuspendedRoomID RoomID
	DetachedAt      time.Time

	recoveryKey string
	keyDigest   [blake2b.Size256]byte
	hasKey      bool
	// prevDigest keeps the key replaced by the last rotation usable until it expires.
	prevDigest [blake2b.Size256]byte
	hasPrev    bool
}

// Attached reports whether a live connection carries the participant.
func (p *Participant) Attached() bool {
	return p.Conn != ""
}

// clearRound drops per-round state.
func (p *Participant) clearRound() {
	p.Estimate = ""
	p.RevealedView = false
}

// ParticipantRegistry owns every logged-in participant.
// It is not safe for concurrent use; the hub goroutine serializes access.
type ParticipantRegistry struct {
	byID   map[ParticipantID]*Participant
	byName map[string]ParticipantID
	byConn map[ConnID]ParticipantID
	byKey  map[[blake2b.Size256]byte]ParticipantID
	order  []ParticipantID
	newID  func() ParticipantID
}

// NewParticipantRegistry builds an empty registry.
func NewParticipantRegistry() *ParticipantRegistry {
	return &ParticipantRegistry{
		byID:   make(map[ParticipantID]*Participant),
		byName: make(map[string]ParticipantID),
		byConn: make(map[ConnID]ParticipantID),
		byKey:  make(map[[blake2b.Size256]byte]ParticipantID),
		newID:  func() ParticipantID { return ParticipantID(uuid.NewString()) },
	}
}

// NormalizeName trims a display name and validates its length.
func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", wrapf(ErrBadRequest, "display name is required")
	}
	if utf8.RuneCountInString(name) > MaxNameLen {
		return "", wrapf(ErrBadRequest, "display name longer than %d characters", MaxNameLen)
	}
	return name, nil
}

// Register creates a participant under a fresh id. Names are unique among registered participants.
func (r *ParticipantRegistry) Register(name string) (*Participant, error) {
	name, err := NormalizeName(name)
	if err != nil {
		return nil, err
	}
	if _, taken := r.byName[name]; taken {
		return nil, wrapf(ErrNameTaken, "name %q", name)
	}
	p := &Participant{ID: r.newID(), Name: name}
	r.byID[p.ID] = p
	r.byName[name] = p.ID
	r.order = append(r.order, p.ID)
	return p, nil
}

// Find returns the participant with the given id.
func (r *ParticipantRegistry) Find(id ParticipantID) (*Participant, bool) {
	p, ok := r.byID[id]
	return p, ok
}

// FindByName returns the participant holding a display name.
func (r *ParticipantRegistry) FindByName(name string) (*Participant, bool) {
	id, ok := r.byName[strings.TrimSpace(name)]
	if !ok {
		return nil, false
	}
	return r.Find(id)
}

// FindByConn returns the participant bound to a connection.
func (r *ParticipantRegistry) FindByConn(conn ConnID) (*Participant, bool) {
	if conn == "" {
		return nil, false
	}
	id, ok := r.byConn[conn]
	if !ok {
		return nil, false
	}
	return r.Find(id)
}

// FindByKey returns the participant whose recovery key digest matches key.
func (r *ParticipantRegistry) FindByKey(key string) (*Participant, bool) {
	if key == "" {
		return nil, false
	}
	id, ok := r.byKey[blake2b.Sum256([]byte(key))]
	if !ok {
		return nil, false
	}
	return r.Find(id)
}

// SetRecoveryKey indexes the digest of key for p, replacing any previous key.
func (r *ParticipantRegistry) SetRecoveryKey(id ParticipantID, key string) {
	p, ok := r.byID[id]
	if !ok {
		return
	}
	r.dropKeys(p)
	r.indexKey(p, key)
}

// RotateRecoveryKey makes key current for p while the key it replaces keeps resolving.
// Only one previous key is retained.
func (r *ParticipantRegistry) RotateRecoveryKey(id ParticipantID, key string) {
	p, ok := r.byID[id]
	if !ok {
		return
	}
	if p.hasPrev {
		delete(r.byKey, p.prevDigest)
		p.hasPrev = false
	}
	if p.hasKey {
		p.prevDigest, p.hasPrev = p.keyDigest, true
	}
	r.indexKey(p, key)
}

func (r *ParticipantRegistry) indexKey(p *Participant, key string) {
	p.recoveryKey = key
	p.keyDigest = blake2b.Sum256([]byte(key))
	p.hasKey = true
	r.byKey[p.keyDigest] = p.ID
}

func (r *ParticipantRegistry) dropKeys(p *Participant) {
	if p.hasKey {
		delete(r.byKey, p.keyDigest)
	}
	if p.hasPrev {
		delete(r.byKey, p.prevDigest)
	}
	p.recoveryKey = ""
	p.hasKey, p.hasPrev = false, false
}

// Bind points p at conn. Any connection previously bound to p is unbound and returned.
func (r *ParticipantRegistry) Bind(id ParticipantID, conn ConnID) (previous ConnID) {
	p, ok := r.byID[id]
	if !ok {
		return ""
	}
	previous = p.Conn
	if previous != "" && previous != conn {
		delete(r.byConn, previous)
	}
	if previous == conn {
		previous = ""
	}
	p.Conn = conn
	p.DetachedAt = time.Time{}
	r.byConn[conn] = id
	return previous
}

// Unbind detaches conn from whichever participant it carries.
func (r *ParticipantRegistry) Unbind(conn ConnID, at time.Time) (*Participant, bool) {
	p, ok := r.FindByConn(conn)
	if !ok {
		return nil, false
	}
	delete(r.byConn, conn)
	p.Conn = ""
	p.DetachedAt = at
	return p, true
}

// Remove deletes a participant. Room membership must be released by the caller first.
func (r *ParticipantRegistry) Remove(id ParticipantID) {
	p, ok := r.byID[id]
	if !ok {
		return
	}
	delete(r.byID, id)
	delete(r.byName, p.Name)
	if p.Conn != "" {
		delete(r.byConn, p.Conn)
	}
	r.dropKeys(p)
	for i, pid := range r.order {
		if pid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Detached lists participants without a connection, in registration order.
func (r *ParticipantRegistry) Detached() []*Participant {
	var out []*Participant
	for _, id := range r.order {
		if p := r.byID[id]; !p.Attached() {
			out = append(out, p)
		}
	}
	return out
}

// Len returns the number of registered participants.
func (r *ParticipantRegistry) Len() int {
	return len(r.byID)
}
