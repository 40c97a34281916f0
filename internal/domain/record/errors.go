package record

import "errors"

var (
	// ErrEntityNotFound indicates the original record or aggregation doesn't exist.
	ErrEntityNotFound = errors.New("entity not found")
	// ErrInvalidInput indicates invalid input for record operations.
	ErrInvalidInput = errors.New("invalid record input")
)
