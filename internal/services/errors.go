package services

import "errors"

// Handshake-time failures. Any of these rejects the connection before it is
// registered anywhere.
var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
	ErrUnknownUser  = errors.New("unknown user")
)

// Per-action failures. The connection survives; only the initiating client is
// told.
var (
	ErrRideNotFound   = errors.New("ride not found")
	ErrNotParticipant = errors.New("not a participant of this ride")
	ErrEmptyMessage   = errors.New("message is empty")
	ErrMessageTooLong = errors.New("message exceeds maximum length")
)
