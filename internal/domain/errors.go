package domain

import "errors"

// Scan and exchange error taxonomy. Every one of these is recoverable: the scan
// state machine moves to its error state and resets to idle on its own.
var (
	// ErrReaderUnavailable means the physical capability is absent (no camera,
	// no radio device, permission denied). It triggers the simulated fallback.
	ErrReaderUnavailable = errors.New("proximity reader unavailable")
	// ErrReaderFailure is a device or transport error during an active scan.
	ErrReaderFailure = errors.New("proximity reader failure")
	// ErrDecodeRejected covers malformed, non-object and foreign payloads.
	ErrDecodeRejected = errors.New("payload rejected")
	// ErrDecodeIncomplete means the payload carries no usable patient name.
	ErrDecodeIncomplete = errors.New("payload incomplete")
)

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrInvalidRecord  = errors.New("invalid record")
)
