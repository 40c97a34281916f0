package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write conflicts with the stored state,
	// such as a duplicate key or a guarded update that no longer applies
	ErrConflict = errors.New("conflict")
)
