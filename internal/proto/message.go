package proto

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

const (
	InboundTypeLogin           = "login"
	InboundTypeRecover         = "recover"
	InboundTypeLogout          = "logout"
	InboundTypeCreateRoom      = "createRoom"
	InboundTypeJoinRoom        = "joinRoom"
	InboundTypeLeaveRoom       = "leaveRoom"
	InboundTypeStartEstimate   = "startEstimate"
	InboundTypeSubmitEstimate  = "submitEstimate"
	InboundTypeClearEstimate   = "clearEstimate"
	InboundTypeShowResult      = "showResult"
	InboundTypeRestartEstimate = "restartEstimate"
	InboundTypeStopEstimate    = "stopEstimate"

	// OutboundTypeReply answers the connection that sent the command.
	OutboundTypeReply = "reply"
	// OutboundTypeEvent is room or lobby traffic.
	OutboundTypeEvent = "event"
	OutboundTypeError = "error"
)

// LoginData introduces a participant.
type LoginData struct {
	DisplayName string `json:"displayName"`
}

// RecoverData resumes a session after reconnecting.
type RecoverData struct {
	RecoveryKey string `json:"recoveryKey"`
}

// JoinRoomData requests a seat in a room.
type JoinRoomData struct {
	RoomID string `json:"roomId"`
}

// SubmitEstimateData carries a card value.
type SubmitEstimateData struct {
	Value EstimateValue `json:"value"`
}

// EstimateValue accepts a JSON string or number and keeps its text form.
type EstimateValue string

// UnmarshalJSON implements json.Unmarshaler.
func (v *EstimateValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*v = ""
		return nil
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = EstimateValue(s)
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("estimate value must be a string or number: %w", err)
		}
		*v = EstimateValue(n.String())
		return nil
	}
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// Participant is the public view of a participant.
type Participant struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	RoomID       string `json:"roomId,omitempty"`
	OwnedRoomID  string `json:"ownedRoomId,omitempty"`
	HasEstimate  bool   `json:"hasEstimate"`
	Value        string `json:"value,omitempty"`
	RevealedView bool   `json:"revealedView"`
	Connected    bool   `json:"connected"`
}

// Room is the public view of a room.
type Room struct {
	ID        string        `json:"id"`
	Status    string        `json:"status"`
	CreatorID string        `json:"creatorId"`
	Round     int           `json:"round"`
	Members   []Participant `json:"members"`
}

// Estimate is one revealed card.
type Estimate struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Value string `json:"value"`
}

// SessionData answers login and recover.
type SessionData struct {
	Participant *Participant `json:"participant"`
	Rooms       []Room       `json:"rooms"`
	Room        *Room        `json:"room,omitempty"`
	RecoveryKey string       `json:"recoveryKey"`
}

// RoomEventData describes a change inside a room.
type RoomEventData struct {
	Participant    *Participant `json:"participant,omitempty"`
	Room           *Room        `json:"room,omitempty"`
	AllEstimatesIn bool         `json:"allEstimatesIn"`
}

// ResultData carries revealed cards in member order.
type ResultData struct {
	Participant    *Participant `json:"participant,omitempty"`
	Room           *Room        `json:"room,omitempty"`
	Estimates      []Estimate   `json:"estimates,omitempty"`
	AllEstimatesIn bool         `json:"allEstimatesIn"`
}

// LobbyData lists every live room.
type LobbyData struct {
	Rooms []Room `json:"rooms"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
