package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arloliu/heatgrid/types"
)

// PrometheusCollector implements types.MetricsCollector backed by Prometheus.
//
// Collectors are registered lazily on first use so constructing one has no
// side effects on the registry.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	stateTransitions *prometheus.CounterVec
	iterations       *prometheus.CounterVec
	maxDiff          *prometheus.GaugeVec
	exchangeLatency  *prometheus.HistogramVec
	gatherLatency    prometheus.Histogram
	messages         *prometheus.CounterVec
}

// Compile-time assertion that PrometheusCollector implements MetricsCollector.
var _ types.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheus creates a new Prometheus-backed metrics collector.
//
// Parameters:
//   - reg: Prometheus registerer interface (uses prometheus.DefaultRegisterer if nil)
//   - namespace: Prometheus metrics namespace (defaults to "heatgrid" if empty)
//
// Returns:
//   - *PrometheusCollector: A MetricsCollector implementation using Prometheus
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "heatgrid"
	}

	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.stateTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "worker",
			Name:      "state_transitions_total",
			Help:      "Worker state transitions by rank and target state.",
		}, []string{"rank", "from", "to"})
		p.iterations = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "worker",
			Name:      "iterations_total",
			Help:      "Completed Jacobi iterations by rank.",
		}, []string{"rank"})
		p.maxDiff = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "worker",
			Name:      "max_diff",
			Help:      "Maximum absolute cell change in the last iteration.",
		}, []string{"rank"})
		p.exchangeLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "halo",
			Name:      "exchange_duration_seconds",
			Help:      "Duration of one halo exchange round.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"rank"})
		p.gatherLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "rendezvous",
			Name:      "gather_duration_seconds",
			Help:      "Duration of one coordinator diagnostic gather.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		})
		p.messages = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "transport",
			Name:      "messages_total",
			Help:      "Transport messages by direction and tag.",
		}, []string{"direction", "tag"})

		p.reg.MustRegister(p.stateTransitions)
		p.reg.MustRegister(p.iterations)
		p.reg.MustRegister(p.maxDiff)
		p.reg.MustRegister(p.exchangeLatency)
		p.reg.MustRegister(p.gatherLatency)
		p.reg.MustRegister(p.messages)
	})
}

// RecordStateTransition counts a worker state transition.
func (p *PrometheusCollector) RecordStateTransition(rank int, from, to types.State) {
	p.ensureRegistered()
	p.stateTransitions.WithLabelValues(strconv.Itoa(rank), from.String(), to.String()).Inc()
}

// RecordIteration counts a completed iteration and records its max-diff.
func (p *PrometheusCollector) RecordIteration(rank int, maxDiff float64) {
	p.ensureRegistered()
	r := strconv.Itoa(rank)
	p.iterations.WithLabelValues(r).Inc()
	p.maxDiff.WithLabelValues(r).Set(maxDiff)
}

// RecordExchangeDuration observes a halo exchange latency.
func (p *PrometheusCollector) RecordExchangeDuration(rank int, seconds float64) {
	p.ensureRegistered()
	p.exchangeLatency.WithLabelValues(strconv.Itoa(rank)).Observe(seconds)
}

// RecordGatherDuration observes a coordinator gather latency.
func (p *PrometheusCollector) RecordGatherDuration(seconds float64) {
	p.ensureRegistered()
	p.gatherLatency.Observe(seconds)
}

// RecordMessage counts a sent or received transport message.
func (p *PrometheusCollector) RecordMessage(direction string, tag types.Tag) {
	p.ensureRegistered()
	p.messages.WithLabelValues(direction, tag.String()).Inc()
}
