package core

import "errors"

// Errors reported back to the originating connection as {"error": ...}.
// The text of each error is what goes on the wire.
var (
	ErrMalformedMessage  = errors.New("invalid message format")
	ErrMissingField      = errors.New("missing roomId, userId or type")
	ErrRoomNotFound      = errors.New("room not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrInvalidToken      = errors.New("invalid join token")
	ErrUnauthorized      = errors.New("only admin can set offer mode")
	ErrInvalidOfferMode  = errors.New("invalid offer mode")
	ErrInvalidTarget     = errors.New("invalid or missing target user")
	ErrTargetUnreachable = errors.New("target user not connected")
	ErrAdminUnreachable  = errors.New("admin not connected")
	ErrRoomFull          = errors.New("room is full")
	ErrRateLimited       = errors.New("too many join attempts")
)

// ErrConnClosed and ErrBackpressure are transport level; they are logged,
// never sent.
var (
	ErrConnClosed   = errors.New("connection closed")
	ErrBackpressure = errors.New("backpressure")
)

// Reason returns a short stable label for err, used in logs and metrics.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrMalformedMessage):
		return "malformed_message"
	case errors.Is(err, ErrMissingField):
		return "missing_field"
	case errors.Is(err, ErrRoomNotFound):
		return "room_not_found"
	case errors.Is(err, ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrInvalidOfferMode):
		return "invalid_offer_mode"
	case errors.Is(err, ErrInvalidTarget):
		return "invalid_target"
	case errors.Is(err, ErrTargetUnreachable):
		return "target_unreachable"
	case errors.Is(err, ErrAdminUnreachable):
		return "admin_unreachable"
	case errors.Is(err, ErrRoomFull):
		return "room_full"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	default:
		return "internal"
	}
}
