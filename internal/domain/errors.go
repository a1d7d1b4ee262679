package domain

import "errors"

// Sentinel errors returned by the booking engine. Callers match them with errors.Is;
// services wrap them with the offending entity and state.
var (
	ErrNotFound               = errors.New("not found")
	ErrDuplicateRegistration  = errors.New("already registered for this event")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrInsufficientCapacity   = errors.New("insufficient capacity")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrInvalidInput           = errors.New("invalid input")

	// ErrCapacityInvariant means a release had no matching reserve. It signals a bug, not a
	// recoverable booking outcome.
	ErrCapacityInvariant = errors.New("capacity invariant violated")
)
