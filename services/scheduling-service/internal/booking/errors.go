package booking

import "errors"

var (
	// ErrSlotUnavailable means the requested slot is taken, outside the
	// operator's availability or already in the past. Callers should refresh
	// the slot list.
	ErrSlotUnavailable = errors.New("slot unavailable")
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidRequest  = errors.New("invalid request")
	// ErrExceptionLocked rejects changes to exception days before today.
	ErrExceptionLocked = errors.New("exception day is in the past")
	// ErrTransient marks a storage failure where the whole operation may be
	// retried (serialization failure, deadlock, stale version).
	ErrTransient = errors.New("transient storage failure")
)
