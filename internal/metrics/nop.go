// Package metrics provides MetricsCollector implementations.
package metrics

import "github.com/arloliu/heatgrid/types"

// NopMetrics implements a no-op metrics collector.
//
// All metrics are discarded. Useful for testing or when external
// metrics collection is used.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements MetricsCollector.
var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNop creates a new no-op metrics collector.
//
// Example:
//
//	w, err := heatgrid.NewWorker(cfg, tr, heatgrid.WithMetrics(metrics.NewNop()))
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

// RecordStateTransition discards the state transition metric.
func (n *NopMetrics) RecordStateTransition(_ /* rank */ int, _ /* from */, _ /* to */ types.State) {}

// RecordIteration discards the iteration metric.
func (n *NopMetrics) RecordIteration(_ /* rank */ int, _ /* maxDiff */ float64) {}

// RecordExchangeDuration discards the halo exchange latency.
func (n *NopMetrics) RecordExchangeDuration(_ /* rank */ int, _ /* seconds */ float64) {}

// RecordGatherDuration discards the gather latency.
func (n *NopMetrics) RecordGatherDuration(_ /* seconds */ float64) {}

// RecordMessage discards the transport message count.
func (n *NopMetrics) RecordMessage(_ /* direction */ string, _ /* tag */ types.Tag) {}
