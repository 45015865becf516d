// Package progress publishes each worker's last completed iteration to a
// JetStream KV bucket so operators can follow a run from outside.
//
// Progress records are observability only; no worker reads them to decide
// anything.
package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/heatgrid/internal/kvutil"
	"github.com/arloliu/heatgrid/internal/logger"
	"github.com/arloliu/heatgrid/types"
)

// Common errors for progress operations.
var (
	ErrNotStarted     = errors.New("publisher not started")
	ErrAlreadyStarted = errors.New("publisher already started")
)

// Record is the value stored under "rank-N".
type Record struct {
	Rank       int       `json:"rank"`
	Iteration  int       `json:"iteration"` // completed iterations
	Iterations int       `json:"iterations"`
	MaxDiff    float64   `json:"maxDiff"`
	Done       bool      `json:"done"`
	At         time.Time `json:"at"`
}

// Publisher writes the latest progress of one rank at a fixed interval.
//
// Update is cheap and safe to call every iteration; only the newest value is
// written on each tick, and nothing is written when nothing changed.
type Publisher struct {
	kv       jetstream.KeyValue
	rank     int
	total    int
	interval time.Duration
	logger   types.Logger

	mu      sync.Mutex
	current Record
	dirty   bool
	started bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates a progress publisher for rank.
//
// Parameters:
//   - kv: JetStream KV bucket for progress records
//   - rank: Rank whose progress is published
//   - iterations: Total iteration count of the run
//   - interval: Publish interval (typically 1s)
//   - log: Logger (nop when nil)
//
// Example:
//
//	pub := progress.New(kv, 2, cfg.Iterations, time.Second, log)
//	_ = pub.Start(ctx)
//	defer pub.Stop()
func New(kv jetstream.KeyValue, rank, iterations int, interval time.Duration, log types.Logger) *Publisher {
	if log == nil {
		log = logger.NewNop()
	}

	return &Publisher{
		kv:       kv,
		rank:     rank,
		total:    iterations,
		interval: interval,
		logger:   log,
		current:  Record{Rank: rank, Iterations: iterations},
	}
}

// Start publishes the initial record and begins the background loop.
func (p *Publisher) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return ErrAlreadyStarted
	}

	if err := p.publish(ctx, p.current); err != nil {
		return fmt.Errorf("failed to publish initial progress: %w", err)
	}

	p.started = true
	p.dirty = false
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	go p.publishLoop(p.stopCh, p.doneCh)

	return nil
}

// Update records the completion of the zero-based iteration.
//
// It matches the types.Hooks OnIteration signature and never fails. An
// iteration older than the one already recorded is ignored.
func (p *Publisher) Update(_ context.Context, iteration int, maxDiff float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if iteration+1 < p.current.Iteration {
		return nil
	}

	p.current.Iteration = iteration + 1
	p.current.MaxDiff = maxDiff
	p.current.Done = p.current.Iteration >= p.total
	p.dirty = true

	return nil
}

// Stop halts the loop and writes the final record.
func (p *Publisher) Stop() error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return ErrNotStarted
	}
	p.started = false
	close(p.stopCh)
	doneCh := p.doneCh
	p.mu.Unlock()

	<-doneCh

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	return p.flush(ctx)
}

func (p *Publisher) publishLoop(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := p.flush(ctx); err != nil {
				p.logger.Warn("progress publish failed", "rank", p.rank, "error", err)
			}
			cancel()
		}
	}
}

func (p *Publisher) flush(ctx context.Context) error {
	p.mu.Lock()
	if !p.dirty {
		p.mu.Unlock()
		return nil
	}
	rec := p.current
	p.dirty = false
	p.mu.Unlock()

	return p.publish(ctx, rec)
}

func (p *Publisher) publish(ctx context.Context, rec Record) error {
	rec.At = time.Now().UTC()

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode progress: %w", err)
	}

	if _, err := p.kv.Put(ctx, kvutil.RankKey(p.rank), data); err != nil {
		return fmt.Errorf("failed to publish progress for rank %d: %w", p.rank, err)
	}

	return nil
}

// Snapshot reads every progress record in kv, keyed by rank.
func Snapshot(ctx context.Context, kv jetstream.KeyValue) (map[int]Record, error) {
	lister, err := kv.ListKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress keys: %w", err)
	}
	defer func() { _ = lister.Stop() }()

	out := make(map[int]Record)
	for key := range lister.Keys() {
		rank, ok := kvutil.ParseRankKey(key)
		if !ok {
			continue
		}

		entry, err := kv.Get(ctx, key)
		if err != nil {
			if errors.Is(err, jetstream.ErrKeyNotFound) {
				continue
			}

			return nil, fmt.Errorf("failed to read %s: %w", key, err)
		}

		var rec Record
		if err := json.Unmarshal(entry.Value(), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", key, err)
		}
		out[rank] = rec
	}

	return out, nil
}
