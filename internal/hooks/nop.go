// Package hooks provides the default no-op lifecycle hooks.
package hooks

import (
	"context"

	"github.com/arloliu/heatgrid/types"
)

// NopHooks implements Hooks with no-op callbacks.
//
// This is the default implementation used when no custom hooks are provided,
// eliminating the need for nil checks throughout the worker.
type NopHooks struct{}

// Compile-time assertions that NopHooks implements hook callbacks.
var (
	_ func(context.Context, types.State, types.State) error = (*NopHooks)(nil).OnStateChanged
	_ func(context.Context, int, float64) error             = (*NopHooks)(nil).OnIteration
	_ func(context.Context, types.Diagnostic) error         = (*NopHooks)(nil).OnDiagnostic
	_ func(context.Context, error) error                    = (*NopHooks)(nil).OnError
)

// NewNop creates a new no-op hooks implementation.
func NewNop() *types.Hooks {
	h := &NopHooks{}

	return &types.Hooks{
		OnStateChanged: h.OnStateChanged,
		OnIteration:    h.OnIteration,
		OnDiagnostic:   h.OnDiagnostic,
		OnError:        h.OnError,
	}
}

// Fill returns a copy of h with every nil callback replaced by a no-op.
// A nil h yields NewNop().
func Fill(h *types.Hooks) *types.Hooks {
	out := NewNop()
	if h == nil {
		return out
	}
	if h.OnStateChanged != nil {
		out.OnStateChanged = h.OnStateChanged
	}
	if h.OnIteration != nil {
		out.OnIteration = h.OnIteration
	}
	if h.OnDiagnostic != nil {
		out.OnDiagnostic = h.OnDiagnostic
	}
	if h.OnError != nil {
		out.OnError = h.OnError
	}

	return out
}

// OnStateChanged is a no-op implementation.
func (h *NopHooks) OnStateChanged(_ context.Context, _, _ types.State) error {
	return nil
}

// OnIteration is a no-op implementation.
func (h *NopHooks) OnIteration(_ context.Context, _ int, _ float64) error {
	return nil
}

// OnDiagnostic is a no-op implementation.
func (h *NopHooks) OnDiagnostic(_ context.Context, _ types.Diagnostic) error {
	return nil
}

// OnError is a no-op implementation.
func (h *NopHooks) OnError(_ context.Context, _ error) error {
	return nil
}
