package rankclaim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/heatgrid/internal/kvutil"
	"github.com/arloliu/heatgrid/internal/logger"
	"github.com/arloliu/heatgrid/types"
)

// Common errors returned by the claimer.
var (
	ErrNoAvailableRank = errors.New("no available rank")
	ErrRankTaken       = errors.New("rank already claimed")
	ErrNotClaimed      = errors.New("rank not claimed")
)

// noRank is the held rank before Claim and after Release.
const noRank = -1

// Phase is the lifecycle phase recorded in a claim.
type Phase string

const (
	// PhaseClaimed marks a rank owned by a process that is not yet listening.
	PhaseClaimed Phase = "claimed"
	// PhaseReady marks a rank whose transport is subscribed and can receive.
	PhaseReady Phase = "ready"
)

// Record is the value stored under a rank key.
type Record struct {
	Phase Phase     `json:"phase"`
	Host  string    `json:"host"`
	At    time.Time `json:"at"`
}

// Claimer claims one rank in 0..size-1 and keeps the lease alive.
type Claimer struct {
	kv     jetstream.KeyValue
	size   int
	ttl    time.Duration
	logger types.Logger

	mu     sync.Mutex
	rank   int
	phase  Phase
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewClaimer creates a rank claimer over kv for a cluster of size ranks.
//
// Parameters:
//   - kv: JetStream KV bucket holding rank claims
//   - size: Number of ranks in the run
//   - ttl: Lease renewal period base; renewals run at ttl/3 (0 disables renewal)
//   - log: Logger (nop when nil)
//
// Example:
//
//	claimer := rankclaim.NewClaimer(kv, 4, 30*time.Second, log)
//	rank, err := claimer.Claim(ctx)
func NewClaimer(kv jetstream.KeyValue, size int, ttl time.Duration, log types.Logger) *Claimer {
	if log == nil {
		log = logger.NewNop()
	}

	return &Claimer{
		kv:     kv,
		size:   size,
		ttl:    ttl,
		logger: log,
		rank:   noRank,
	}
}

// Claim takes the lowest free rank.
//
// Returns:
//   - int: Claimed rank
//   - error: ErrNoAvailableRank when all size ranks are taken, context or KV error otherwise
func (c *Claimer) Claim(ctx context.Context) (int, error) {
	for rank := range c.size {
		if err := ctx.Err(); err != nil {
			return noRank, err
		}

		err := c.ClaimRank(ctx, rank)
		if err == nil {
			return rank, nil
		}
		if !errors.Is(err, ErrRankTaken) {
			return noRank, err
		}
		c.logger.Debug("rank already claimed, trying next", "rank", rank)
	}

	c.logger.Error("no available ranks", "size", c.size)

	return noRank, ErrNoAvailableRank
}

// ClaimRank claims a specific rank.
//
// Returns ErrRankTaken when another process holds it and types.ErrInvalidRank
// when rank is out of range.
func (c *Claimer) ClaimRank(ctx context.Context, rank int) error {
	if rank < 0 || rank >= c.size {
		return fmt.Errorf("%w: %d not in [0,%d)", types.ErrInvalidRank, rank, c.size)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rank != noRank {
		return fmt.Errorf("%w: already holding rank %d", types.ErrAlreadyStarted, c.rank)
	}

	value, err := encodeRecord(PhaseClaimed)
	if err != nil {
		return err
	}

	key := kvutil.RankKey(rank)
	revision, err := c.kv.Create(ctx, key, value)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			return fmt.Errorf("%w: %d", ErrRankTaken, rank)
		}

		return fmt.Errorf("failed to claim rank %d: %w", rank, err)
	}

	c.rank = rank
	c.phase = PhaseClaimed
	c.logger.Info("rank claimed", "rank", rank, "key", key, "revision", revision)

	return nil
}

// MarkReady promotes the held claim to PhaseReady.
func (c *Claimer) MarkReady(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rank == noRank {
		return ErrNotClaimed
	}
	c.phase = PhaseReady

	return c.putLocked(ctx)
}

// StartRenewal rewrites the claim every ttl/3 until Release.
func (c *Claimer) StartRenewal() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rank == noRank {
		return ErrNotClaimed
	}
	if c.ttl <= 0 || c.stopCh != nil {
		return nil
	}

	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})
	go c.renewalLoop(c.stopCh, c.doneCh)

	return nil
}

func (c *Claimer) renewalLoop(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(c.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			c.mu.Lock()
			err := c.putLocked(ctx)
			c.mu.Unlock()
			cancel()

			if err != nil {
				c.logger.Warn("rank renewal failed", "error", err)
			}
		}
	}
}

func (c *Claimer) putLocked(ctx context.Context) error {
	value, err := encodeRecord(c.phase)
	if err != nil {
		return err
	}

	if _, err := c.kv.Put(ctx, kvutil.RankKey(c.rank), value); err != nil {
		return fmt.Errorf("failed to write rank %d: %w", c.rank, err)
	}

	return nil
}

// Release stops renewal and deletes the claim so the rank can be reused.
func (c *Claimer) Release(ctx context.Context) error {
	c.mu.Lock()
	rank := c.rank
	stopCh, doneCh := c.stopCh, c.doneCh
	c.stopCh, c.doneCh = nil, nil
	c.mu.Unlock()

	if rank == noRank {
		return ErrNotClaimed
	}

	if stopCh != nil {
		close(stopCh)
		select {
		case <-doneCh:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := c.kv.Delete(ctx, kvutil.RankKey(rank)); err != nil {
		return fmt.Errorf("failed to release rank %d: %w", rank, err)
	}

	c.mu.Lock()
	c.rank = noRank
	c.phase = ""
	c.mu.Unlock()

	c.logger.Info("rank released", "rank", rank)

	return nil
}

// Rank returns the held rank, or -1 when none is held.
func (c *Claimer) Rank() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.rank
}

func encodeRecord(phase Phase) ([]byte, error) {
	host, _ := os.Hostname()

	data, err := json.Marshal(Record{Phase: phase, Host: host, At: time.Now().UTC()})
	if err != nil {
		return nil, fmt.Errorf("failed to encode rank record: %w", err)
	}

	return data, nil
}

// DecodeRecord parses a rank record value.
func DecodeRecord(value []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(value, &rec); err != nil {
		return Record{}, fmt.Errorf("failed to decode rank record: %w", err)
	}

	return rec, nil
}
