package ws

import (
	"errors"

	"realtime-service/internal/auth"
)

// Operation failures surfaced to clients as error events. They are local to
// a single inbound event and never tear down the channel.
var (
	ErrAccessDenied      = errors.New("access denied")
	ErrNotOwner          = errors.New("not message owner")
	ErrNotAuthorized     = errors.New("not authorized")
	ErrPersistFailed     = errors.New("persist failed")
	ErrTargetUnreachable = errors.New("target unreachable")
	ErrBackpressure      = errors.New("send buffer full")
)

// errorCode maps an operation failure to the wire code clients branch on:
// "you're not in this room" needs a different client reaction than "the
// server couldn't save that" or "they're not online right now".
func errorCode(err error) string {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrAccessDenied):
		return "access_denied"
	case errors.Is(err, ErrNotOwner):
		return "not_owner"
	case errors.Is(err, ErrNotAuthorized):
		return "not_authorized"
	case errors.Is(err, ErrPersistFailed):
		return "persist_failed"
	case errors.Is(err, ErrTargetUnreachable):
		return "target_unreachable"
	default:
		return "internal"
	}
}
