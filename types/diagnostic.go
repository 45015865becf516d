package types

import "context"

// Diagnostic is the per-iteration convergence report assembled by the coordinator.
type Diagnostic struct {
	// Iteration is the zero-based iteration index.
	Iteration int `json:"iteration"`

	// MaxDiffs holds one max-diff per worker, indexed by rank.
	MaxDiffs []float64 `json:"maxDiffs"`
}

// Max returns the largest max-diff across all workers.
func (d Diagnostic) Max() float64 {
	var m float64
	for _, v := range d.MaxDiffs {
		m = max(m, v)
	}

	return m
}

// Collector gathers max-diff values from every worker once per iteration.
//
// Only the coordinator (rank 0) implements Collector; all other workers
// report into it.
type Collector interface {
	// Gather waits for exactly size-1 inbound max-diffs for iteration and
	// combines them with own into a Diagnostic with size entries.
	Gather(ctx context.Context, iteration int, own float64) (Diagnostic, error)
}

// Reporter surfaces diagnostics outside the run.
type Reporter interface {
	Report(ctx context.Context, diag Diagnostic) error
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(ctx context.Context, diag Diagnostic) error

// Report calls f.
func (f ReporterFunc) Report(ctx context.Context, diag Diagnostic) error {
	return f(ctx, diag)
}
