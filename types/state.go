package types

// State represents the worker lifecycle state.
//
// States follow a defined progression during a run:
//
//	StateInitialized → StateDistributing → StateRunning → StateCollecting → StateTerminated
//
// StateFailed is terminal and entered on any fatal error.
type State int

const (
	// StateInitialized is the state after construction, before Run.
	StateInitialized State = iota

	// StateDistributing indicates the worker is obtaining its strip.
	StateDistributing

	// StateRunning indicates the fixed iteration loop is in progress.
	StateRunning

	// StateCollecting indicates strips are being gathered on the coordinator.
	StateCollecting

	// StateTerminated indicates the run completed all iterations.
	StateTerminated

	// StateFailed indicates the run aborted with a fatal error.
	StateFailed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateInitialized:
		return "Initialized"
	case StateDistributing:
		return "Distributing"
	case StateRunning:
		return "Running"
	case StateCollecting:
		return "Collecting"
	case StateTerminated:
		return "Terminated"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// IsTerminal reports whether no further transitions can follow s.
func (s State) IsTerminal() bool {
	return s == StateTerminated || s == StateFailed
}
