package models

import "errors"

var (
	// ErrRoomNotFound is reported to the requesting connection only.
	ErrRoomNotFound = errors.New("room not found")

	// ErrNotInRoom rejects commands from connections not attached to a room.
	ErrNotInRoom = errors.New("not in a room")

	// ErrInvalidPayload rejects malformed commands without touching state.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrInvalidSessionToken rejects reconnects with a bad or expired token.
	ErrInvalidSessionToken = errors.New("invalid session token")
)
