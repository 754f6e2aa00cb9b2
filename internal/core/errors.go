package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies domain errors.
type ErrorKind string

const (
	KindNotFound     ErrorKind = "not_found"
	KindConflict     ErrorKind = "conflict"
	KindInvalidState ErrorKind = "invalid_state"
	KindBadRequest   ErrorKind = "bad_request"
)

// Error codes for domain errors.
const (
	ErrCodeNameTaken       = "name_taken"
	ErrCodeAlreadyOwnsRoom = "already_owns_room"
	ErrCodeAlreadyJoined   = "already_joined"
	ErrCodeAlreadyLoggedIn = "already_logged_in"
	ErrCodeRoomNotFound    = "room_not_found"
	ErrCodeNotInRoom       = "not_in_room"
	ErrCodeUnknownSession  = "unknown_session"
	ErrCodeInvalidState    = "invalid_state"
	ErrCodeBadRequest      = "bad_request"
	ErrCodeInvalidMessage  = "invalid_message"
	ErrCodeRateLimited     = "rate_limited"
)

var (
	ErrNameTaken       = coreError(KindConflict, ErrCodeNameTaken, "display name already taken")
	ErrAlreadyOwnsRoom = coreError(KindConflict, ErrCodeAlreadyOwnsRoom, "already owns a room")
	ErrAlreadyJoined   = coreError(KindConflict, ErrCodeAlreadyJoined, "already joined a room")
	ErrAlreadyLoggedIn = coreError(KindConflict, ErrCodeAlreadyLoggedIn, "connection already logged in")
	ErrRoomNotFound    = coreError(KindNotFound, ErrCodeRoomNotFound, "room not found")
	ErrNotInRoom       = coreError(KindNotFound, ErrCodeNotInRoom, "not in a room")
	ErrUnknownSession  = coreError(KindNotFound, ErrCodeUnknownSession, "unknown session, log in again")
	ErrInvalidState    = coreError(KindInvalidState, ErrCodeInvalidState, "command not valid in current room state")
	ErrBadRequest      = coreError(KindBadRequest, ErrCodeBadRequest, "bad request")
)

// CoreError wraps a kind, a code and a human-readable message.
type CoreError struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(kind ErrorKind, code, msg string) *CoreError {
	return &CoreError{Kind: kind, Code: code, Message: msg}
}

// wrapf decorates a sentinel with detail while keeping it matchable by errors.Is.
func wrapf(sentinel *CoreError, format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), sentinel)
}

// AsCoreError flattens err into a CoreError suitable for the wire.
// The message keeps any detail added while wrapping.
func AsCoreError(err error) *CoreError {
	if err == nil {
		return nil
	}
	var ce *CoreError
	if errors.As(err, &ce) {
		return &CoreError{Kind: ce.Kind, Code: ce.Code, Message: err.Error()}
	}
	return &CoreError{Kind: KindBadRequest, Code: ErrCodeBadRequest, Message: err.Error()}
}
