package services

import "errors"

// Sentinel errors returned by the service layer. The HTTP handlers map
// them onto status codes; everything else becomes a 500.
var (
	ErrNotFound         = errors.New("resource not found")
	ErrUnauthorized     = errors.New("invalid credentials")
	ErrForbidden        = errors.New("operation not allowed")
	ErrNotMember        = errors.New("not a member of this room")
	ErrInvalidInput     = errors.New("invalid input")
	ErrEmailTaken       = errors.New("email already registered")
	ErrMessageDeleted   = errors.New("message has been deleted")
	ErrRateLimited      = errors.New("too many messages, slow down")
	ErrAccountDisabled  = errors.New("account is disabled")
	ErrReservedAccount  = errors.New("reserved account")
	ErrRoomInactive     = errors.New("room is no longer active")
	ErrSelfConversation = errors.New("cannot open a direct chat with yourself")
)
