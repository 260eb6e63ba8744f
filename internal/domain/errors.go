package domain

import "errors"

// Realtime error taxonomy. Every error here is scoped: it is reported only
// to the connection whose request caused it, never broadcast.
var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrNotAuthorized     = errors.New("not authorized")
	ErrInvalidIndex      = errors.New("invalid playlist index")
	ErrPlaylistEmpty     = errors.New("playlist is empty")
	ErrInvalidItem       = errors.New("invalid playlist item")
	ErrTargetUnreachable = errors.New("target connection unreachable")
	ErrEmptyMessage      = errors.New("empty message")
	ErrChatDisabled      = errors.New("chat is disabled in this room")
	ErrNotInRoom         = errors.New("not in a room")
	ErrRateLimited       = errors.New("rate limited")
)
