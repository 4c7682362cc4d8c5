package service

import "errors"

// Error classes shared by the supervisors, gateways and transports.
// Lower layers wrap these with fmt.Errorf("%w: ...") and callers classify
// them with errors.Is.
var (
	ErrValidation          = errors.New("validation failed")
	ErrIllegalMove         = errors.New("illegal move")
	ErrConcurrencyConflict = errors.New("session is busy")
	ErrNotFound            = errors.New("not found")
	ErrCredentialExpired   = errors.New("credential expired")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrSessionFinished     = errors.New("session is finished")
	ErrAlreadyPlaying      = errors.New("player already has a game in progress")
	ErrHelpUnavailable     = errors.New("help unavailable")
)
