package sessions

import "errors"

// Sentinel errors for registry operations.
var (
	// ErrCapacityExceeded rejects a create for a new identity once the
	// registry holds the configured maximum. The registry is left unchanged.
	ErrCapacityExceeded = errors.New("session capacity exceeded")
	// ErrNotFound reports an identity with no registry entry.
	ErrNotFound = errors.New("session not found")
	// ErrBadIdentity reports an identifier that normalizes to nothing.
	ErrBadIdentity = errors.New("identifier has no digits")
	// ErrNotConnected reports a send on a session whose transport is not
	// yet attached or no longer usable.
	ErrNotConnected = errors.New("session transport not connected")
)
