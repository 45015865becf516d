// Package rendezvous gathers per-worker convergence values on the coordinator.
//
// Every iteration each non-coordinator sends its local max-diff to rank 0 on
// types.TagDiagnostic. The coordinator waits for exactly size-1 values, lays
// them out in rank order next to its own, and every reportEvery iterations
// hands the resulting Diagnostic to its reporters.
//
// In strict mode the coordinator then sends a release on types.TagRelease to
// every rank, and participants block on it before starting the next round.
// That keeps all workers in lock-step with the gather.
package rendezvous

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arloliu/heatgrid/internal/logger"
	"github.com/arloliu/heatgrid/internal/metrics"
	"github.com/arloliu/heatgrid/types"
)

// DefaultReportEvery is the reporting period in iterations.
const DefaultReportEvery = 5

type options struct {
	reportEvery int
	strict      bool
	reporters   []types.Reporter
	logger      types.Logger
	metrics     types.MetricsCollector
}

// Option configures a Coordinator or Participant.
type Option func(*options)

// WithReportEvery sets the reporting period; n <= 0 disables reporting.
func WithReportEvery(n int) Option {
	return func(o *options) { o.reportEvery = n }
}

// WithStrictRounds enables or disables the per-round release.
func WithStrictRounds(strict bool) Option {
	return func(o *options) { o.strict = strict }
}

// WithReporter appends a diagnostic reporter. Only the coordinator reports.
func WithReporter(r types.Reporter) Option {
	return func(o *options) {
		if r != nil {
			o.reporters = append(o.reporters, r)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l types.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m types.MetricsCollector) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		reportEvery: DefaultReportEvery,
		strict:      true,
		logger:      logger.NewNop(),
		metrics:     metrics.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	return o
}

func checkTransport(tr types.Transport, topo types.Topology) error {
	if tr == nil {
		return types.ErrTransportRequired
	}
	if tr.Rank() != topo.Rank || tr.Size() != topo.Size {
		return fmt.Errorf("%w: transport is rank %d/%d, topology is %s",
			types.ErrTopologyMismatch, tr.Rank(), tr.Size(), topo)
	}

	return nil
}

// Coordinator collects diagnostics on rank 0.
type Coordinator struct {
	tr   types.Transport
	topo types.Topology
	opts options
}

var _ types.Collector = (*Coordinator)(nil)

// NewCoordinator creates the rank-0 collector.
//
// Returns types.ErrNotCoordinator when topo is not rank 0.
func NewCoordinator(tr types.Transport, topo types.Topology, opts ...Option) (*Coordinator, error) {
	if !topo.IsCoordinator() {
		return nil, fmt.Errorf("%w: %s", types.ErrNotCoordinator, topo)
	}
	if err := checkTransport(tr, topo); err != nil {
		return nil, err
	}

	return &Coordinator{tr: tr, topo: topo, opts: buildOptions(opts)}, nil
}

// ShouldReport reports whether iteration is a reporting iteration.
func (c *Coordinator) ShouldReport(iteration int) bool {
	return c.opts.reportEvery > 0 && iteration%c.opts.reportEvery == 0
}

// Gather collects the max-diff of every rank for iteration.
//
// Parameters:
//   - ctx: Cancels the gather
//   - iteration: Round number every value must carry
//   - own: The coordinator's own max-diff
//
// Returns:
//   - types.Diagnostic: MaxDiffs has Size entries in rank order
//   - error: Transport error or types.ErrTopologyMismatch for a value from the wrong round
func (c *Coordinator) Gather(ctx context.Context, iteration int, own float64) (types.Diagnostic, error) {
	start := time.Now()

	diag := types.Diagnostic{Iteration: iteration, MaxDiffs: make([]float64, c.topo.Size)}
	diag.MaxDiffs[c.topo.Rank] = own

	g, gctx := errgroup.WithContext(ctx)
	for src := range c.topo.Size {
		if src == c.topo.Rank {
			continue
		}
		g.Go(func() error {
			msg, err := c.tr.Recv(gctx, src, types.TagDiagnostic)
			if err != nil {
				return fmt.Errorf("gather from rank %d: %w", src, err)
			}
			if err := msg.Expect(src, types.TagDiagnostic, iteration); err != nil {
				return err
			}
			v, err := msg.Scalar()
			if err != nil {
				return fmt.Errorf("gather from rank %d: %w", src, err)
			}
			// Each goroutine owns slot src.
			diag.MaxDiffs[src] = v

			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return types.Diagnostic{}, err
	}

	c.opts.metrics.RecordGatherDuration(time.Since(start).Seconds())

	if c.opts.strict {
		if err := c.release(ctx, iteration); err != nil {
			return types.Diagnostic{}, err
		}
	}

	if c.ShouldReport(iteration) {
		c.report(ctx, diag)
	}

	return diag, nil
}

func (c *Coordinator) release(ctx context.Context, iteration int) error {
	g, gctx := errgroup.WithContext(ctx)
	for dst := range c.topo.Size {
		if dst == c.topo.Rank {
			continue
		}
		g.Go(func() error {
			if err := c.tr.Send(gctx, dst, types.ScalarMessage(types.TagRelease, iteration, 0)); err != nil {
				return fmt.Errorf("release rank %d: %w", dst, err)
			}

			return nil
		})
	}

	return g.Wait()
}

func (c *Coordinator) report(ctx context.Context, diag types.Diagnostic) {
	for _, r := range c.opts.reporters {
		if err := r.Report(ctx, diag); err != nil {
			c.opts.logger.Warn("diagnostic reporter failed", "iteration", diag.Iteration, "error", err)
		}
	}
}

// Participant reports diagnostics from a non-coordinator rank.
type Participant struct {
	tr   types.Transport
	topo types.Topology
	opts options
}

// NewParticipant creates the reporting side for a non-zero rank.
func NewParticipant(tr types.Transport, topo types.Topology, opts ...Option) (*Participant, error) {
	if topo.IsCoordinator() {
		return nil, fmt.Errorf("%w: rank 0 gathers, it does not report", types.ErrTopologyMismatch)
	}
	if err := checkTransport(tr, topo); err != nil {
		return nil, err
	}

	return &Participant{tr: tr, topo: topo, opts: buildOptions(opts)}, nil
}

// Report sends maxDiff for iteration to the coordinator and, in strict mode,
// waits for the coordinator to release the round.
func (p *Participant) Report(ctx context.Context, iteration int, maxDiff float64) error {
	if err := p.tr.Send(ctx, 0, types.ScalarMessage(types.TagDiagnostic, iteration, maxDiff)); err != nil {
		return fmt.Errorf("report to coordinator: %w", err)
	}
	if !p.opts.strict {
		return nil
	}

	msg, err := p.tr.Recv(ctx, 0, types.TagRelease)
	if err != nil {
		return fmt.Errorf("await release: %w", err)
	}

	return msg.Expect(0, types.TagRelease, iteration)
}
