package heatgrid

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/arloliu/heatgrid/grid"
	"github.com/arloliu/heatgrid/internal/halo"
	"github.com/arloliu/heatgrid/internal/hooks"
	"github.com/arloliu/heatgrid/internal/logger"
	"github.com/arloliu/heatgrid/internal/metrics"
	"github.com/arloliu/heatgrid/internal/rendezvous"
	"github.com/arloliu/heatgrid/report"
	"github.com/arloliu/heatgrid/stencil"
	"github.com/arloliu/heatgrid/types"
)

// Result is the outcome of a completed run on one rank.
type Result struct {
	// Rank is the worker rank.
	Rank int

	// Iterations is the number of rounds executed.
	Iterations int

	// Strip is the rank's final local strip.
	Strip *mat.Dense

	// Grid is the assembled global grid. Only set on the coordinator when
	// collection is enabled.
	Grid *mat.Dense

	// Diagnostics holds every surfaced diagnostic. Only set on the coordinator.
	Diagnostics []Diagnostic

	// LastMaxDiff is the rank's max-diff in the final round.
	LastMaxDiff float64
}

// Worker runs the Jacobi iteration for one rank.
//
// A Worker is single-use: Run may be called once. State and Collector are
// safe for concurrent use.
//
// Lifecycle:
//   - Create with NewWorker()
//   - Call Run() to distribute, iterate, and collect
//   - Observe progress through Hooks, metrics, or State()
type Worker struct {
	cfg    Config
	layout grid.Layout
	topo   Topology
	tr     Transport

	hooks   *Hooks
	metrics MetricsCollector
	logger  Logger

	exchanger   *halo.Exchanger
	coordinator *rendezvous.Coordinator
	participant *rendezvous.Participant

	state   atomic.Int32 // State
	started atomic.Bool
}

// NewWorker creates a worker for the rank owned by tr.
//
// The topology is derived once from tr.Rank() and tr.Size(); the transport
// size must equal cfg.Workers.
//
// Parameters:
//   - cfg: Run configuration (defaults are applied to a copy)
//   - tr: Transport bound to this rank
//   - opts: Optional configuration (hooks, metrics, logger, reporters)
//
// Returns:
//   - *Worker: Initialized worker
//   - error: ErrInvalidConfig, ErrUnevenPartition, ErrTransportRequired or ErrTopologyMismatch
//
// Example:
//
//	bus, _ := natsbus.New(nc, rank, cfg.Workers)
//	w, err := heatgrid.NewWorker(&cfg, bus)
//	result, err := w.Run(ctx)
func NewWorker(cfg *Config, tr Transport, opts ...Option) (*Worker, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}
	if tr == nil {
		return nil, ErrTransportRequired
	}

	c := *cfg
	SetDefaults(&c)
	if err := c.Validate(); err != nil {
		return nil, err
	}

	layout, err := c.Layout()
	if err != nil {
		return nil, err
	}

	if tr.Size() != c.Workers {
		return nil, fmt.Errorf("%w: transport has %d ranks, config has %d workers",
			ErrTopologyMismatch, tr.Size(), c.Workers)
	}

	topo, err := types.NewTopology(tr.Rank(), tr.Size())
	if err != nil {
		return nil, err
	}

	options := &workerOptions{}
	for _, opt := range opts {
		opt(options)
	}

	metricsCollector := options.metrics
	if metricsCollector == nil {
		metricsCollector = metrics.NewNop()
	}

	loggerInstance := options.logger
	if loggerInstance == nil {
		loggerInstance = logger.NewNop()
	}

	c.ValidateWithWarnings(loggerInstance)

	w := &Worker{
		cfg:     c,
		layout:  layout,
		topo:    topo,
		tr:      tr,
		hooks:   hooks.Fill(options.hooks),
		metrics: metricsCollector,
		logger:  loggerInstance,
	}

	w.exchanger, err = halo.NewExchanger(tr, topo,
		halo.WithLogger(loggerInstance),
		halo.WithMetrics(metricsCollector),
	)
	if err != nil {
		return nil, err
	}

	rvOpts := []rendezvous.Option{
		rendezvous.WithReportEvery(c.ReportEvery),
		rendezvous.WithStrictRounds(!c.AllowRunAhead),
		rendezvous.WithLogger(loggerInstance),
		rendezvous.WithMetrics(metricsCollector),
	}

	if topo.IsCoordinator() {
		reporters := options.reporters
		if len(reporters) == 0 {
			reporters = []Reporter{report.NewLogReporter(loggerInstance)}
		}
		for _, r := range reporters {
			rvOpts = append(rvOpts, rendezvous.WithReporter(r))
		}
		rvOpts = append(rvOpts, rendezvous.WithReporter(ReporterFunc(w.hooks.OnDiagnostic)))

		w.coordinator, err = rendezvous.NewCoordinator(tr, topo, rvOpts...)
	} else {
		w.participant, err = rendezvous.NewParticipant(tr, topo, rvOpts...)
	}
	if err != nil {
		return nil, err
	}

	w.state.Store(int32(StateInitialized))

	return w, nil
}

// Rank returns the worker rank.
func (w *Worker) Rank() int {
	return w.topo.Rank
}

// Topology returns the worker's derived topology.
func (w *Worker) Topology() Topology {
	return w.topo
}

// State returns the current worker state.
func (w *Worker) State() State {
	return State(w.state.Load())
}

// Collector returns the diagnostic collector on the coordinator and nil on
// every other rank.
func (w *Worker) Collector() Collector {
	if w.coordinator == nil {
		return nil
	}

	return w.coordinator
}

// Run executes the full run: distribution, Iterations rounds, and collection.
//
// Every round exchanges halos, applies the stencil, and then either gathers
// diagnostics (rank 0) or reports to the coordinator (other ranks). All errors
// are fatal: the worker moves to StateFailed and the error is returned.
//
// Parameters:
//   - ctx: Cancels the run
//
// Returns:
//   - Result: The rank's final strip and, on the coordinator, diagnostics and the assembled grid
//   - error: ErrAlreadyStarted, a transport error wrapping ErrTransport, ErrTopologyMismatch or a context error
func (w *Worker) Run(ctx context.Context) (Result, error) {
	if !w.started.CompareAndSwap(false, true) {
		return Result{}, ErrAlreadyStarted
	}

	w.logger.Info("worker starting",
		"topology", w.topo.String(),
		"rows", w.layout.Rows,
		"local_cols", w.layout.LocalCols(),
		"iterations", w.cfg.Iterations,
	)

	start := time.Now()
	result, err := w.run(ctx)
	if err != nil {
		w.transitionState(ctx, w.State(), StateFailed)
		w.logger.Error("worker failed", "rank", w.topo.Rank, "error", err)
		if hookErr := w.hooks.OnError(ctx, err); hookErr != nil {
			w.logger.Warn("error hook failed", "rank", w.topo.Rank, "error", hookErr)
		}

		return Result{}, err
	}

	w.transitionState(ctx, w.State(), StateTerminated)
	w.logger.Info("worker finished",
		"rank", w.topo.Rank,
		"last_max_diff", result.LastMaxDiff,
		"duration", time.Since(start),
	)

	return result, nil
}

func (w *Worker) run(ctx context.Context) (Result, error) {
	result := Result{Rank: w.topo.Rank}

	w.transitionState(ctx, StateInitialized, StateDistributing)
	strip, err := w.step(ctx, w.distribute)
	if err != nil {
		return Result{}, fmt.Errorf("distribute: %w", err)
	}

	w.transitionState(ctx, StateDistributing, StateRunning)
	for it := range w.cfg.Iterations {
		next, diff, diag, err := w.iterate(ctx, it, strip)
		if err != nil {
			return Result{}, fmt.Errorf("iteration %d: %w", it, err)
		}
		strip = next
		result.Iterations = it + 1
		result.LastMaxDiff = diff
		if diag != nil {
			result.Diagnostics = append(result.Diagnostics, *diag)
		}
	}
	result.Strip = strip

	if w.cfg.SkipCollect {
		return result, nil
	}

	w.transitionState(ctx, StateRunning, StateCollecting)
	global, err := w.step(ctx, func(ctx context.Context) (*mat.Dense, error) {
		return w.collect(ctx, strip)
	})
	if err != nil {
		return Result{}, fmt.Errorf("collect: %w", err)
	}
	result.Grid = global

	return result, nil
}

// step runs fn under RoundTimeout when one is configured.
func (w *Worker) step(ctx context.Context, fn func(context.Context) (*mat.Dense, error)) (*mat.Dense, error) {
	if w.cfg.RoundTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.cfg.RoundTimeout)
		defer cancel()
	}

	return fn(ctx)
}

// iterate runs one round. diag is non-nil when the coordinator surfaced a
// diagnostic for this iteration.
func (w *Worker) iterate(ctx context.Context, it int, strip *mat.Dense) (*mat.Dense, float64, *Diagnostic, error) {
	var (
		diff float64
		diag *Diagnostic
	)

	next, err := w.step(ctx, func(ctx context.Context) (*mat.Dense, error) {
		ghosts, err := w.exchanger.Exchange(ctx, it, strip)
		if err != nil {
			return nil, err
		}

		next, d, err := stencil.Update(strip, w.topo, ghosts, w.cfg.Boundary)
		if err != nil {
			return nil, err
		}
		diff = d

		if w.coordinator != nil {
			gathered, err := w.coordinator.Gather(ctx, it, diff)
			if err != nil {
				return nil, err
			}
			if w.coordinator.ShouldReport(it) {
				diag = &gathered
			}
		} else if err := w.participant.Report(ctx, it, diff); err != nil {
			return nil, err
		}

		return next, nil
	})
	if err != nil {
		return nil, 0, nil, err
	}

	w.metrics.RecordIteration(w.topo.Rank, diff)
	if err := w.hooks.OnIteration(ctx, it, diff); err != nil {
		w.logger.Warn("iteration hook failed", "rank", w.topo.Rank, "iteration", it, "error", err)
	}

	return next, diff, diag, nil
}

// distribute obtains the initial strip, either from the coordinator's
// scatter or by building it locally.
func (w *Worker) distribute(ctx context.Context) (*mat.Dense, error) {
	if w.cfg.LocalInit || w.topo.Size == 1 {
		return grid.Strip(w.layout, w.topo.Rank, w.cfg.Boundary)
	}

	if !w.topo.IsCoordinator() {
		msg, err := w.tr.Recv(ctx, 0, TagScatter)
		if err != nil {
			return nil, err
		}

		return w.stripFrom(msg, 0, TagScatter, 0)
	}

	strips, err := grid.Decompose(grid.NewGlobal(w.layout.Rows, w.layout.Cols, w.cfg.Boundary), w.layout)
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	for dst := 1; dst < w.topo.Size; dst++ {
		g.Go(func() error {
			if err := w.tr.Send(gctx, dst, types.MatrixMessage(TagScatter, 0, strips[dst])); err != nil {
				return fmt.Errorf("scatter to rank %d: %w", dst, err)
			}

			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	w.logger.Debug("strips scattered", "workers", w.topo.Size)

	return strips[0], nil
}

// collect sends the final strip to the coordinator, or on the coordinator
// assembles every strip into the global grid.
func (w *Worker) collect(ctx context.Context, strip *mat.Dense) (*mat.Dense, error) {
	final := w.cfg.Iterations

	if !w.topo.IsCoordinator() {
		return nil, w.tr.Send(ctx, 0, types.MatrixMessage(TagCollect, final, strip))
	}

	strips := make([]*mat.Dense, w.topo.Size)
	strips[0] = strip

	g, gctx := errgroup.WithContext(ctx)
	for src := 1; src < w.topo.Size; src++ {
		g.Go(func() error {
			msg, err := w.tr.Recv(gctx, src, TagCollect)
			if err != nil {
				return fmt.Errorf("collect from rank %d: %w", src, err)
			}
			// Each goroutine owns slot src.
			strips[src], err = w.stripFrom(msg, src, TagCollect, final)

			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return grid.Assemble(strips)
}

// stripFrom validates a matrix message against the local strip shape.
func (w *Worker) stripFrom(msg Message, src int, tag Tag, iteration int) (*mat.Dense, error) {
	if err := msg.Expect(src, tag, iteration); err != nil {
		return nil, err
	}

	m, err := msg.Matrix()
	if err != nil {
		return nil, err
	}

	if r, c := m.Dims(); r != w.layout.Rows || c != w.layout.LocalCols() {
		return nil, fmt.Errorf("%w: %s strip from rank %d is %dx%d, want %dx%d",
			ErrTopologyMismatch, tag, src, r, c, w.layout.Rows, w.layout.LocalCols())
	}

	return m, nil
}

// transitionState moves the worker to a new state, records the transition,
// and fires the OnStateChanged hook in the background.
func (w *Worker) transitionState(ctx context.Context, from, to State) {
	if from == to {
		return
	}

	w.state.Store(int32(to)) //nolint:gosec // State values are controlled enum

	w.logger.Debug("state transition",
		"rank", w.topo.Rank,
		"from", from.String(),
		"to", to.String(),
	)

	w.metrics.RecordStateTransition(w.topo.Rank, from, to)

	go func() {
		if err := w.hooks.OnStateChanged(ctx, from, to); err != nil {
			w.logger.Warn("state change hook error", "rank", w.topo.Rank, "from", from, "to", to, "error", err)
		}
	}()
}
