package storage

import "errors"

// Sentinel errors for storage operations.
var (
	// ErrNotFound is returned when a turn record does not exist.
	ErrNotFound = errors.New("turn not found")

	// ErrConflict is returned when a turn with the given ID already exists.
	ErrConflict = errors.New("turn already exists")
)
