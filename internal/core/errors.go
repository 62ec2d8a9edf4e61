package core

import "errors"

// Sentinel errors shared by all engines. Adapters map these to user-facing
// messages; engines wrap IO failures with path context instead.
var (
	// ErrNoInput is returned when a batch operation is started with an
	// empty path list.
	ErrNoInput = errors.New("no input files provided")

	// ErrNoSecret is returned when neither a passphrase nor a keyfile was
	// supplied for a cryptographic operation.
	ErrNoSecret = errors.New("a passphrase or keyfile is required")

	// ErrIntegrity covers every authentication failure during unlock:
	// wrong passphrase, wrong keyfile, truncated or modified container.
	// The causes are deliberately indistinguishable.
	ErrIntegrity = errors.New("decryption failed: wrong credentials or corrupted file")

	// ErrBusy is returned when a service is asked to start a run while
	// another run it owns is still active.
	ErrBusy = errors.New("an operation is already running")
)
