package session

import "errors"

// Sentinel errors for expected, callable-documented failure conditions.
// Anything outside this list is wrapped with fmt.Errorf("...: %w", err).
var (
	ErrInvalidState     = errors.New("session: operation not valid in current status")
	ErrNoDialog         = errors.New("session: no confirmed dialog")
	ErrAlreadyConnected = errors.New("session: already connecting or connected")
	ErrMissingSDP       = errors.New("session: request has no SDP body")
	ErrBadSDP           = errors.New("session: SDP body failed validation")
	ErrRenegotiating    = errors.New("session: a renegotiation is already in progress")
	ErrDTMFQueueFull    = errors.New("session: DTMF tone queue is full")
	ErrInvalidDTMFTone  = errors.New("session: invalid DTMF tone")
	ErrTerminated       = errors.New("session: session has already terminated")
)
