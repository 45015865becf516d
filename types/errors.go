package types

import "errors"

// Sentinel errors for the heatgrid solver.
//
// These errors provide type-safe error checking using errors.Is() and errors.As().
// All components should use these sentinel errors for known error conditions
// and wrap external errors with context using fmt.Errorf("%s: %w", msg, err).
//
// The taxonomy has three fatal classes: configuration errors (raised before
// any iteration), transport failures, and topology mismatches.

// Configuration errors - raised before any worker begins iterating.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrUnevenPartition is returned when the column count is not divisible by the worker count.
	ErrUnevenPartition = errors.New("column count not evenly divisible by worker count")

	// ErrInvalidRank is returned when a rank lies outside 0..size-1.
	ErrInvalidRank = errors.New("invalid rank")

	// ErrTransportRequired is returned when a worker is constructed without a transport.
	ErrTransportRequired = errors.New("transport is required")
)

// Runtime errors - fatal during a run.
var (
	// ErrTransport wraps any send or receive failure.
	ErrTransport = errors.New("transport failure")

	// ErrTopologyMismatch is returned when a message has the wrong sender, tag,
	// iteration, shape or checksum. It signals a broken protocol invariant.
	ErrTopologyMismatch = errors.New("topology mismatch")

	// ErrClosed is returned when a transport is used after Close.
	ErrClosed = errors.New("transport closed")
)

// Lifecycle errors.
var (
	// ErrAlreadyStarted is returned when Run is called twice on the same worker.
	ErrAlreadyStarted = errors.New("worker already started")

	// ErrNotCoordinator is returned when coordinator duties are requested from a non-zero rank.
	ErrNotCoordinator = errors.New("not the coordinator")
)
