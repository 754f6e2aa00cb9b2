package http

import (
	"encoding/json"

	"github.com/vovakirdan/wireplan-server/internal/core"
	"github.com/vovakirdan/wireplan-server/internal/proto"
)

func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error) {
	switch inbound.Type {
	case proto.InboundTypeLogin:
		var login proto.LoginData
		if err := decodeData(inbound.Data, &login); err != nil {
			return nil, err
		}
		return &core.Command{Kind: core.CommandLogin, Name: login.DisplayName}, nil
	case proto.InboundTypeRecover:
		var rec proto.RecoverData
		if err := decodeData(inbound.Data, &rec); err != nil {
			return nil, err
		}
		return &core.Command{Kind: core.CommandRecover, RecoveryKey: rec.RecoveryKey}, nil
	case proto.InboundTypeJoinRoom:
		var join proto.JoinRoomData
		if err := decodeData(inbound.Data, &join); err != nil {
			return nil, err
		}
		if join.RoomID == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "roomId is required"}
		}
		return &core.Command{Kind: core.CommandJoinRoom, Room: core.RoomID(join.RoomID)}, nil
	case proto.InboundTypeSubmitEstimate:
		var sub proto.SubmitEstimateData
		if err := decodeData(inbound.Data, &sub); err != nil {
			return nil, err
		}
		return &core.Command{Kind: core.CommandSubmitEstimate, Value: core.Estimate(sub.Value)}, nil
	}

	if kind, ok := bareCommands[inbound.Type]; ok {
		return &core.Command{Kind: kind}, nil
	}
	return nil, &proto.Error{Code: core.ErrCodeInvalidMessage, Msg: "unknown message type"}
}

// bareCommands take no data.
var bareCommands = map[string]core.CommandKind{
	proto.InboundTypeLogout:          core.CommandLogout,
	proto.InboundTypeCreateRoom:      core.CommandCreateRoom,
	proto.InboundTypeLeaveRoom:       core.CommandLeaveRoom,
	proto.InboundTypeStartEstimate:   core.CommandStartEstimate,
	proto.InboundTypeClearEstimate:   core.CommandClearEstimate,
	proto.InboundTypeShowResult:      core.CommandShowResult,
	proto.InboundTypeRestartEstimate: core.CommandRestartEstimate,
	proto.InboundTypeStopEstimate:    core.CommandStopEstimate,
}

func decodeData(raw json.RawMessage, v any) *proto.Error {
	if len(raw) == 0 {
		return &proto.Error{Code: core.ErrCodeBadRequest, Msg: "data is required"}
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &proto.Error{Code: core.ErrCodeInvalidMessage, Msg: err.Error()}
	}
	return nil
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	if event.Kind == core.EventError {
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}
	}

	out := proto.Outbound{Type: proto.OutboundTypeEvent, Event: event.Kind.String()}
	if event.Scope == core.ScopeDirect {
		out.Type = proto.OutboundTypeReply
	}

	switch event.Kind {
	case core.EventLoggedIn, core.EventRecovered:
		out.Data = proto.SessionData{
			Participant: participantOut(event.Participant),
			Rooms:       roomsOut(event.Rooms),
			Room:        roomOut(event.Room),
			RecoveryKey: event.RecoveryKey,
		}
	case core.EventRoomsChanged:
		out.Data = proto.LobbyData{Rooms: roomsOut(event.Rooms)}
	case core.EventResultShown:
		data := proto.ResultData{
			Participant:    participantOut(event.Participant),
			Room:           roomOut(event.Room),
			AllEstimatesIn: event.AllEstimatesIn,
		}
		for _, e := range event.Estimates {
			data.Estimates = append(data.Estimates, proto.Estimate{ID: string(e.ID), Name: e.Name, Value: string(e.Value)})
		}
		out.Data = data
	case core.EventLoggedOut:
	default:
		if event.Participant != nil || event.Room != nil {
			out.Data = proto.RoomEventData{
				Participant:    participantOut(event.Participant),
				Room:           roomOut(event.Room),
				AllEstimatesIn: event.AllEstimatesIn,
			}
		}
	}
	return out
}

func participantOut(v *core.ParticipantView) *proto.Participant {
	if v == nil {
		return nil
	}
	p := participantValue(*v)
	return &p
}

func participantValue(v core.ParticipantView) proto.Participant {
	return proto.Participant{
		ID:           string(v.ID),
		Name:         v.Name,
		RoomID:       string(v.RoomID),
		OwnedRoomID:  string(v.OwnedRoomID),
		HasEstimate:  v.HasEstimate,
		Value:        string(v.Value),
		RevealedView: v.RevealedView,
		Connected:    v.Connected,
	}
}

func roomOut(v *core.RoomView) *proto.Room {
	if v == nil {
		return nil
	}
	r := roomValue(*v)
	return &r
}

func roomValue(v core.RoomView) proto.Room {
	r := proto.Room{
		ID:        string(v.ID),
		Status:    string(v.Status),
		CreatorID: string(v.CreatorID),
		Round:     v.Round,
		Members:   make([]proto.Participant, 0, len(v.Members)),
	}
	for _, m := range v.Members {
		r.Members = append(r.Members, participantValue(m))
	}
	return r
}

func roomsOut(views []core.RoomView) []proto.Room {
	rooms := make([]proto.Room, 0, len(views))
	for _, v := range views {
		rooms = append(rooms, roomValue(v))
	}
	return rooms
}
