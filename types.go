package heatgrid

import "github.com/arloliu/heatgrid/types"

// Re-export types from the types package.
//
// Internal packages depend on types rather than on the root package, which
// avoids import cycles while still offering heatgrid.State, heatgrid.Logger
// and friends to callers.
type (
	State      = types.State
	Topology   = types.Topology
	Tag        = types.Tag
	Message    = types.Message
	Diagnostic = types.Diagnostic
)

// Re-export interfaces from the types package for convenience.
type (
	Transport        = types.Transport
	Collector        = types.Collector
	Reporter         = types.Reporter
	ReporterFunc     = types.ReporterFunc
	MetricsCollector = types.MetricsCollector
	Logger           = types.Logger
	Hooks            = types.Hooks
)

// Re-export State constants from the types package.
const (
	StateInitialized  = types.StateInitialized
	StateDistributing = types.StateDistributing
	StateRunning      = types.StateRunning
	StateCollecting   = types.StateCollecting
	StateTerminated   = types.StateTerminated
	StateFailed       = types.StateFailed
)

// Re-export message tags from the types package.
const (
	TagScatter    = types.TagScatter
	TagBorder     = types.TagBorder
	TagDiagnostic = types.TagDiagnostic
	TagRelease    = types.TagRelease
	TagCollect    = types.TagCollect
)
