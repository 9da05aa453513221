package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and collaborator clients
// return these (optionally wrapped) so the flow and the shell can translate
// them into domain errors.
//
// - ErrNotFound: signup flow does not exist in the store
// - ErrExpired: signup flow outlived its idle TTL
// - ErrClosed: signup flow was torn down while an operation was in flight
// - ErrUnavailable: collaborator could not be reached or returned no payload
var (
	ErrNotFound    = errors.New("not found")
	ErrExpired     = errors.New("expired")
	ErrClosed      = errors.New("closed")
	ErrUnavailable = errors.New("unavailable")
)
