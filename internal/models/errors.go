package models

import "errors"

// Error kinds for engine operations. Callers classify failures with
// errors.Is; messages wrapping these name the operation and paper id(s).
var (
	// ErrInvalidInput marks a malformed or out-of-range request, rejected
	// before any collaborator call and without side effects.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound marks an unknown paper id.
	ErrNotFound = errors.New("not found")

	// ErrUpstreamUnavailable marks an unreachable or failing embedding or
	// generation collaborator. Retryable by the caller; the engine does not
	// retry and guarantees no partial index mutation.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)
