package sessionhub

import "errors"

// CoordError is a typed, single-recipient coordinator error. Code is the
// stable identifier clients switch on; it travels in the error event and
// never crashes the process or leaks to other session members.
type CoordError struct {
	Code    string
	Message string
}

func (e *CoordError) Error() string { return e.Message }

var (
	ErrAuthenticationFailed     = &CoordError{Code: "AUTHENTICATION_FAILED", Message: "missing or invalid credential"}
	ErrPermissionDenied         = &CoordError{Code: "PERMISSION_DENIED", Message: "only the session host can perform this action"}
	ErrInvalidState             = &CoordError{Code: "INVALID_STATE", Message: "action is not valid for the current session status"}
	ErrDuplicateVote            = &CoordError{Code: "DUPLICATE_VOTE", Message: "vote already recorded for this item this round"}
	ErrSessionNotFound          = &CoordError{Code: "SESSION_NOT_FOUND", Message: "session does not exist"}
	ErrInsufficientParticipants = &CoordError{Code: "INSUFFICIENT_PARTICIPANTS", Message: "at least two participants are required to start"}
	ErrUserAlreadyInSession     = &CoordError{Code: "USER_ALREADY_IN_SESSION", Message: "user is already in a different session"}
	ErrInvalidPayload           = &CoordError{Code: "INVALID_PAYLOAD", Message: "event payload failed validation"}
	ErrInternal                 = &CoordError{Code: "INTERNAL_ERROR", Message: "internal error"}
)

// CodeOf maps any error to its stable code; unexpected errors collapse to
// INTERNAL_ERROR so store failures never leak details to clients.
func CodeOf(err error) string {
	var ce *CoordError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ErrInternal.Code
}
