package pairing

import "errors"

// Domain errors for the pairing package.
//
// These errors can be checked using errors.Is() for error handling.
var (
	// ErrNotFound is returned when a code does not exist or has expired.
	ErrNotFound = errors.New("pairing: code not found")

	// ErrAlreadyPaired is returned when configuration is submitted for a
	// code that has already been bound.
	ErrAlreadyPaired = errors.New("pairing: already paired")

	// ErrInvalidConfig is returned when a submitted configuration is empty
	// or malformed.
	ErrInvalidConfig = errors.New("pairing: invalid config")

	// ErrCodeSpaceExhausted is returned when a unique code could not be
	// generated after repeated attempts.
	ErrCodeSpaceExhausted = errors.New("pairing: code space exhausted")
)
