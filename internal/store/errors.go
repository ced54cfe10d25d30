package store

import "errors"

var (
	// ErrNotFound is returned when a requested record does not exist in the
	// store, including when it was deleted by a concurrent call.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateEmail is returned when registering an identity whose email
	// is already taken.
	ErrDuplicateEmail = errors.New("email already registered")
)
