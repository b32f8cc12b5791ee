package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling.
var (
	// ErrNotFound is returned when a device key does not exist.
	ErrNotFound = errors.New("device: not found")

	// ErrInvalidKey is returned when a device key is empty or malformed.
	ErrInvalidKey = errors.New("device: invalid key")
)
