package engine

import "errors"

var (
	// ErrStoreRequired is returned by New without a project store.
	ErrStoreRequired = errors.New("engine: project store is required")

	// ErrNoExecutionLog is returned when no execution log is configured.
	ErrNoExecutionLog = errors.New("engine: no execution log configured")

	// ErrAlreadyRunning is returned by Start on a running engine.
	ErrAlreadyRunning = errors.New("engine: already running")
)
