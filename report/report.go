// Package report provides Reporter implementations for coordinator diagnostics.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/arloliu/heatgrid/types"
)

// LogReporter logs each diagnostic at Info level.
type LogReporter struct {
	logger types.Logger
}

var _ types.Reporter = (*LogReporter)(nil)

// NewLogReporter creates a reporter that logs through l.
func NewLogReporter(l types.Logger) *LogReporter {
	return &LogReporter{logger: l}
}

// Report logs the iteration, per-rank max-diffs and their maximum.
func (r *LogReporter) Report(_ context.Context, diag types.Diagnostic) error {
	r.logger.Info("convergence diagnostic",
		"iteration", diag.Iteration,
		"max_diffs", diag.MaxDiffs,
		"max", diag.Max(),
	)

	return nil
}

// JSONReporter writes each diagnostic as one JSON object per line.
type JSONReporter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

var _ types.Reporter = (*JSONReporter)(nil)

// NewJSONReporter creates a reporter writing JSON lines to w.
//
// Example:
//
//	f, _ := os.Create("diagnostics.jsonl")
//	w, _ := heatgrid.NewWorker(cfg, tr, heatgrid.WithReporter(report.NewJSONReporter(f)))
func NewJSONReporter(w io.Writer) *JSONReporter {
	return &JSONReporter{enc: json.NewEncoder(w)}
}

// Report encodes diag as a single line.
func (r *JSONReporter) Report(_ context.Context, diag types.Diagnostic) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.enc.Encode(diag); err != nil {
		return fmt.Errorf("failed to write diagnostic %d: %w", diag.Iteration, err)
	}

	return nil
}
