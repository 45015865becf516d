// Package halo exchanges border columns between horizontally adjacent strips.
//
// Every round a worker sends its first column to the left neighbour and its
// last column to the right neighbour, and receives the matching ghost columns
// back. All sends and receives are posted concurrently and then awaited
// together, so no ordering between neighbours is needed to avoid deadlock.
package halo

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/arloliu/heatgrid/grid"
	"github.com/arloliu/heatgrid/internal/logger"
	"github.com/arloliu/heatgrid/internal/metrics"
	"github.com/arloliu/heatgrid/stencil"
	"github.com/arloliu/heatgrid/types"
)

// Side names a lateral direction.
type Side int

const (
	// Left is the neighbour at rank-1.
	Left Side = iota
	// Right is the neighbour at rank+1.
	Right
)

// String returns "left" or "right".
func (s Side) String() string {
	if s == Left {
		return "left"
	}

	return "right"
}

// Transfer is one planned border transfer with a neighbour.
type Transfer struct {
	Side Side
	Peer int
}

// Plan lists the neighbours a rank exchanges with, left first.
// A single-worker topology has an empty plan.
func Plan(topo types.Topology) []Transfer {
	plan := make([]Transfer, 0, 2)
	if topo.HasLeftNeighbor {
		plan = append(plan, Transfer{Side: Left, Peer: topo.Left})
	}
	if topo.HasRightNeighbor {
		plan = append(plan, Transfer{Side: Right, Peer: topo.Right})
	}

	return plan
}

// Exchanger runs halo exchanges for one rank.
type Exchanger struct {
	tr      types.Transport
	topo    types.Topology
	plan    []Transfer
	logger  types.Logger
	metrics types.MetricsCollector
}

// Option configures an Exchanger.
type Option func(*Exchanger)

// WithLogger sets the logger.
func WithLogger(l types.Logger) Option {
	return func(e *Exchanger) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m types.MetricsCollector) Option {
	return func(e *Exchanger) {
		if m != nil {
			e.metrics = m
		}
	}
}

// NewExchanger creates an exchanger for topo over tr.
//
// Returns types.ErrTopologyMismatch when tr's rank or size disagree with topo.
func NewExchanger(tr types.Transport, topo types.Topology, opts ...Option) (*Exchanger, error) {
	if tr == nil {
		return nil, types.ErrTransportRequired
	}
	if tr.Rank() != topo.Rank || tr.Size() != topo.Size {
		return nil, fmt.Errorf("%w: transport is rank %d/%d, topology is %s",
			types.ErrTopologyMismatch, tr.Rank(), tr.Size(), topo)
	}

	e := &Exchanger{
		tr:      tr,
		topo:    topo,
		plan:    Plan(topo),
		logger:  logger.NewNop(),
		metrics: metrics.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// Exchange sends strip's border columns for iteration and returns the ghosts
// received from the neighbours.
//
// Parameters:
//   - ctx: Cancels all outstanding transfers
//   - iteration: Round number stamped on outgoing borders and required on incoming ones
//   - strip: The current local strip (read only)
//
// Returns:
//   - stencil.Ghosts: Left and right ghost columns (nil where no neighbour exists)
//   - error: Transport error (wrapping types.ErrTransport) or types.ErrTopologyMismatch
//     for a ghost of the wrong round or length
func (e *Exchanger) Exchange(ctx context.Context, iteration int, strip *mat.Dense) (stencil.Ghosts, error) {
	var ghosts stencil.Ghosts
	if len(e.plan) == 0 {
		return ghosts, nil
	}

	start := time.Now()
	rows, cols := strip.Dims()

	g, gctx := errgroup.WithContext(ctx)
	for _, t := range e.plan {
		col := 0
		if t.Side == Right {
			col = cols - 1
		}
		border := types.VectorMessage(types.TagBorder, iteration, grid.Column(strip, col))

		g.Go(func() error {
			if err := e.tr.Send(gctx, t.Peer, border); err != nil {
				return fmt.Errorf("halo send %s to rank %d: %w", t.Side, t.Peer, err)
			}

			return nil
		})

		g.Go(func() error {
			ghost, err := e.receive(gctx, t.Peer, iteration, rows)
			if err != nil {
				return fmt.Errorf("halo recv %s from rank %d: %w", t.Side, t.Peer, err)
			}
			// Each goroutine writes a distinct field.
			if t.Side == Left {
				ghosts.Left = ghost
			} else {
				ghosts.Right = ghost
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return stencil.Ghosts{}, err
	}

	e.metrics.RecordExchangeDuration(e.topo.Rank, time.Since(start).Seconds())
	e.logger.Debug("halo exchanged", "rank", e.topo.Rank, "iteration", iteration, "peers", len(e.plan))

	return ghosts, nil
}

func (e *Exchanger) receive(ctx context.Context, peer, iteration, rows int) ([]float64, error) {
	msg, err := e.tr.Recv(ctx, peer, types.TagBorder)
	if err != nil {
		return nil, err
	}
	if err := msg.Expect(peer, types.TagBorder, iteration); err != nil {
		return nil, err
	}

	ghost, err := msg.Vector()
	if err != nil {
		return nil, err
	}
	if len(ghost) != rows {
		return nil, fmt.Errorf("%w: ghost has %d values, strip has %d rows",
			types.ErrTopologyMismatch, len(ghost), rows)
	}

	return ghost, nil
}
