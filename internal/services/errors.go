package services

import "errors"

// Typed results for callers; handlers map these to HTTP statuses. Stale
// transitions are resolved silently and never reach the end user.
var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrRoomFull        = errors.New("room is full")
	ErrRoomClosed      = errors.New("room is closed")
	ErrMemberNotFound  = errors.New("member not found")
	ErrNotAuthorized   = errors.New("not authorized")
	ErrCodeExhausted   = errors.New("room code space exhausted")
	ErrStaleTransition = errors.New("stale transition")
)
