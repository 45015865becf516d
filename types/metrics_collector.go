package types

// MetricsCollector defines methods for recording operational metrics.
//
// Implementations should be non-blocking and handle failures gracefully.
// Methods may be called concurrently from every worker in the process.
//
// This interface composes smaller, domain-focused interfaces for better modularity.
type MetricsCollector interface {
	WorkerMetrics
	ExchangeMetrics
	TransportMetrics
}

// WorkerMetrics defines metrics for the iteration driver.
type WorkerMetrics interface {
	// RecordStateTransition records a worker state transition.
	RecordStateTransition(rank int, from, to State)

	// RecordIteration records a completed iteration.
	//
	// Parameters:
	//   - rank: Rank of the worker
	//   - maxDiff: Max-diff produced by the stencil update
	RecordIteration(rank int, maxDiff float64)
}

// ExchangeMetrics defines metrics for halo exchange and rendezvous.
type ExchangeMetrics interface {
	// RecordExchangeDuration records the time a halo exchange took, in seconds.
	RecordExchangeDuration(rank int, seconds float64)

	// RecordGatherDuration records the time the coordinator spent gathering, in seconds.
	RecordGatherDuration(seconds float64)
}

// TransportMetrics defines metrics for point-to-point messaging.
type TransportMetrics interface {
	// RecordMessage counts a message.
	//
	// Parameters:
	//   - direction: "send" or "recv"
	//   - tag: Channel discriminator of the message
	RecordMessage(direction string, tag Tag)
}
