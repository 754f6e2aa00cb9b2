package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	CommandLogin CommandKind = iota
	CommandRecover
	CommandLogout
	CommandCreateRoom
	CommandJoinRoom
	CommandLeaveRoom
	CommandStartEstimate
	CommandSubmitEstimate
	CommandClearEstimate
	CommandShowResult
	CommandRestartEstimate
	CommandStopEstimate
)

// Command represents an action requested by a client.
type Command struct {
	Kind        CommandKind
	Name        string
	RecoveryKey string
	Room        RoomID
	Value       Estimate
}
