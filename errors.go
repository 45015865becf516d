package heatgrid

import "github.com/arloliu/heatgrid/types"

// Sentinel errors returned by workers and their components.
//
// They are re-exported from the types package so callers can match them with
// errors.Is without importing types.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = types.ErrInvalidConfig

	// ErrUnevenPartition is returned when Cols is not a multiple of Workers.
	ErrUnevenPartition = types.ErrUnevenPartition

	// ErrInvalidRank is returned for a rank outside 0..Workers-1.
	ErrInvalidRank = types.ErrInvalidRank

	// ErrTransportRequired is returned when NewWorker gets a nil transport.
	ErrTransportRequired = types.ErrTransportRequired

	// ErrTransport wraps every transport failure.
	ErrTransport = types.ErrTransport

	// ErrTopologyMismatch is returned when a peer's message disagrees with the
	// expected round, shape or sender.
	ErrTopologyMismatch = types.ErrTopologyMismatch

	// ErrClosed is returned by a transport after Close.
	ErrClosed = types.ErrClosed

	// ErrAlreadyStarted is returned when Run is called twice.
	ErrAlreadyStarted = types.ErrAlreadyStarted

	// ErrNotCoordinator is returned when a coordinator-only operation runs on another rank.
	ErrNotCoordinator = types.ErrNotCoordinator
)
