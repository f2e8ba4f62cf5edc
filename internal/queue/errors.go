package queue

import "errors"

var (
	// ErrInvalidTransition reports a status change the lifecycle does not allow.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrDiscarded reports a write that arrived after the store was reset.
	ErrDiscarded = errors.New("write discarded after reset")
	// ErrNotFound reports an unknown record id.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate reports an id that is already queued.
	ErrDuplicate = errors.New("record already exists")
)
