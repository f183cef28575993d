package port

import "errors"

var (
	// ErrNotFound reports a document that does not exist (or no longer exists).
	ErrNotFound = errors.New("not found")
	// ErrConflict reports a write that lost an optimistic concurrency race.
	ErrConflict = errors.New("transaction conflict")
	// ErrUnavailable reports a store that cannot be reached.
	ErrUnavailable = errors.New("store unavailable")
)
