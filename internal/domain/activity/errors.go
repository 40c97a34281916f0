package activity

import "errors"

var (
	// ErrActivityNotFound indicates the activity doesn't exist.
	ErrActivityNotFound = errors.New("activity not found")
	// ErrAlreadyStarted indicates Start was called on a started activity.
	ErrAlreadyStarted = errors.New("activity already started")
	// ErrNotStarted indicates an activity was ended before it started.
	ErrNotStarted = errors.New("activity not started")
	// ErrAlreadyEnded indicates an ended activity was ended again.
	ErrAlreadyEnded = errors.New("activity already ended")
	// ErrInvalidInput indicates invalid input for activity operations.
	ErrInvalidInput = errors.New("invalid activity input")
)
