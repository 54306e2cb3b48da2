package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors carry no infrastructure dependency.

var (
	// Battery errors
	ErrBatteryNotFound = errors.New("battery not found")
	ErrNoBatteries     = errors.New("no batteries found")
	ErrReadFailed      = errors.New("could not read battery information")

	// Snapshot errors
	ErrNoSnapshot    = errors.New("no battery snapshot yet")
	ErrStoreDisabled = errors.New("snapshot store is disabled")

	// Publisher errors
	ErrNotConnected = errors.New("publisher not connected")
)
