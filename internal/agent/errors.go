package agent

import "errors"

// Domain errors for the agent package.
//
// These errors can be checked using errors.Is() for error handling.
var (
	// ErrUnknownSchema is returned when a persisted state file carries a
	// schema version this build does not understand.
	ErrUnknownSchema = errors.New("agent: unknown state schema version")

	// ErrNotPaired is returned when a fetch is attempted without bound
	// server configuration.
	ErrNotPaired = errors.New("agent: not paired")

	// ErrSetupRequired is returned when the server reports that its own
	// configuration is missing and the device should back off.
	ErrSetupRequired = errors.New("agent: server setup required")

	// ErrPairingTimeout is returned when a pairing session expires before
	// configuration arrives.
	ErrPairingTimeout = errors.New("agent: pairing timed out")
)
