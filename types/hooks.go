package types

import "context"

// Hooks defines callbacks for worker lifecycle events.
//
// All hooks are optional. OnStateChanged runs in a background goroutine.
// OnIteration runs inline after every round, in iteration order, and has
// returned for the last iteration before Run returns; keep it cheap.
// OnDiagnostic runs inline on the coordinator right after a gather completes.
//
// Hook errors are logged but never fail the run.
//
// Example:
//
//	hooks := &heatgrid.Hooks{
//	    OnDiagnostic: func(ctx context.Context, d heatgrid.Diagnostic) error {
//	        fmt.Println(d.Iteration, d.MaxDiffs)
//	        return nil
//	    },
//	}
type Hooks struct {
	// OnStateChanged is called when the worker state transitions.
	OnStateChanged func(ctx context.Context, from, to State) error

	// OnIteration is called after a worker completes an iteration. The
	// iteration index is zero-based.
	OnIteration func(ctx context.Context, iteration int, maxDiff float64) error

	// OnDiagnostic is called on the coordinator for every surfaced diagnostic.
	OnDiagnostic func(ctx context.Context, diag Diagnostic) error

	// OnError is called when the run aborts with a fatal error.
	OnError func(ctx context.Context, err error) error
}
