package storage

import "errors"

var (
	// ErrUserNotFound is returned when a user is not in the directory
	ErrUserNotFound = errors.New("user not found")

	// ErrDefaultKeyNotFound is returned when no default key config exists
	ErrDefaultKeyNotFound = errors.New("default key config not found")
)
