package heatgrid

// Option configures a Worker with optional dependencies.
type Option func(*workerOptions)

// workerOptions holds optional Worker configuration.
type workerOptions struct {
	hooks     *Hooks
	metrics   MetricsCollector
	logger    Logger
	reporters []Reporter
}

// WithHooks sets lifecycle event hooks.
//
// Parameters:
//   - hooks: Hooks structure with callback functions (nil callbacks are ignored)
//
// Returns:
//   - Option: Functional option for NewWorker
//
// Example:
//
//	hooks := &heatgrid.Hooks{
//	    OnIteration: func(ctx context.Context, iteration int, maxDiff float64) error {
//	        fmt.Println(iteration, maxDiff)
//	        return nil
//	    },
//	}
//	w, err := heatgrid.NewWorker(&cfg, tr, heatgrid.WithHooks(hooks))
func WithHooks(hooks *Hooks) Option {
	return func(o *workerOptions) {
		o.hooks = hooks
	}
}

// WithMetrics sets a metrics collector.
//
// Example:
//
//	collector := metrics.NewPrometheus(prometheus.DefaultRegisterer, "")
//	w, err := heatgrid.NewWorker(&cfg, tr, heatgrid.WithMetrics(collector))
func WithMetrics(metrics MetricsCollector) Option {
	return func(o *workerOptions) {
		o.metrics = metrics
	}
}

// WithLogger sets a logger.
//
// Example:
//
//	w, err := heatgrid.NewWorker(&cfg, tr, heatgrid.WithLogger(logging.NewSlogDefault()))
func WithLogger(logger Logger) Option {
	return func(o *workerOptions) {
		o.logger = logger
	}
}

// WithReporter adds a diagnostic reporter to the coordinator.
//
// Reporters replace the default log reporter; pass report.NewLogReporter
// explicitly to keep it. Only rank 0 reports.
//
// Example:
//
//	w, err := heatgrid.NewWorker(&cfg, tr, heatgrid.WithReporter(report.NewJSONReporter(f)))
func WithReporter(r Reporter) Option {
	return func(o *workerOptions) {
		if r != nil {
			o.reporters = append(o.reporters, r)
		}
	}
}
