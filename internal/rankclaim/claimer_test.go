package rankclaim

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/heatgrid/internal/kvutil"
	hgtest "github.com/arloliu/heatgrid/testing"
	"github.com/arloliu/heatgrid/types"
)

func newBucket(t *testing.T, name string) jetstream.KeyValue {
	t.Helper()
	_, nc := hgtest.StartEmbeddedNATS(t)

	return hgtest.CreateJetStreamKV(t, nc, name)
}

func TestClaimer_WithoutClaim(t *testing.T) {
	t.Parallel()

	c := NewClaimer(nil, 4, time.Second, nil)
	require.Equal(t, noRank, c.Rank())
	require.ErrorIs(t, c.StartRenewal(), ErrNotClaimed)
	require.ErrorIs(t, c.MarkReady(t.Context()), ErrNotClaimed)
	require.ErrorIs(t, c.Release(t.Context()), ErrNotClaimed)
}

func TestClaimer_ClaimRank_OutOfRange(t *testing.T) {
	t.Parallel()

	c := NewClaimer(nil, 2, 0, nil)
	require.ErrorIs(t, c.ClaimRank(t.Context(), 2), types.ErrInvalidRank)
	require.ErrorIs(t, c.ClaimRank(t.Context(), -1), types.ErrInvalidRank)
}

func TestClaimer_ClaimsDenseRanks(t *testing.T) {
	kv := newBucket(t, "rank-dense")
	ctx := t.Context()

	const size = 4
	claimers := make([]*Claimer, size)
	ranks := make([]int, size)
	errs := make([]error, size)

	var wg sync.WaitGroup
	for i := range size {
		claimers[i] = NewClaimer(kv, size, 0, hgtest.NewTestLogger(t))
		wg.Add(1)
		go func() {
			defer wg.Done()
			ranks[i], errs[i] = claimers[i].Claim(ctx)
		}()
	}
	wg.Wait()

	seen := make(map[int]bool)
	for i := range size {
		require.NoError(t, errs[i])
		require.False(t, seen[ranks[i]], "rank %d claimed twice", ranks[i])
		seen[ranks[i]] = true
	}
	require.Len(t, seen, size)

	extra := NewClaimer(kv, size, 0, nil)
	rank, err := extra.Claim(ctx)
	require.ErrorIs(t, err, ErrNoAvailableRank)
	require.Equal(t, noRank, rank)
	require.Equal(t, noRank, extra.Rank())
}

func TestClaimer_ClaimRank_Taken(t *testing.T) {
	kv := newBucket(t, "rank-taken")
	ctx := t.Context()

	a := NewClaimer(kv, 2, 0, nil)
	b := NewClaimer(kv, 2, 0, nil)

	require.NoError(t, a.ClaimRank(ctx, 1))
	require.ErrorIs(t, b.ClaimRank(ctx, 1), ErrRankTaken)
	require.ErrorIs(t, a.ClaimRank(ctx, 0), types.ErrAlreadyStarted)

	require.NoError(t, a.Release(ctx))
	require.Equal(t, noRank, a.Rank())
	require.NoError(t, b.ClaimRank(ctx, 1))
	require.Equal(t, 1, b.Rank())
}

func TestClaimer_MarkReadyAndRenewal(t *testing.T) {
	kv := newBucket(t, "rank-ready")
	ctx := t.Context()

	c := NewClaimer(kv, 1, 150*time.Millisecond, nil)
	rank, err := c.Claim(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, rank)

	entry, err := kv.Get(ctx, kvutil.RankKey(0))
	require.NoError(t, err)
	rec, err := DecodeRecord(entry.Value())
	require.NoError(t, err)
	require.Equal(t, PhaseClaimed, rec.Phase)

	require.NoError(t, c.MarkReady(ctx))
	require.NoError(t, c.StartRenewal())

	first, err := kv.Get(ctx, kvutil.RankKey(0))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		e, err := kv.Get(ctx, kvutil.RankKey(0))
		return err == nil && e.Revision() > first.Revision()
	}, 2*time.Second, 20*time.Millisecond, "renewal should rewrite the claim")

	entry, err = kv.Get(ctx, kvutil.RankKey(0))
	require.NoError(t, err)
	rec, err = DecodeRecord(entry.Value())
	require.NoError(t, err)
	require.Equal(t, PhaseReady, rec.Phase, "renewal keeps the phase")

	require.NoError(t, c.Release(ctx))
	_, err = kv.Get(ctx, kvutil.RankKey(0))
	require.ErrorIs(t, err, jetstream.ErrKeyNotFound)
	require.ErrorIs(t, c.Release(ctx), ErrNotClaimed)
}

func TestWaitAll(t *testing.T) {
	kv := newBucket(t, "rank-wait")
	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	const size = 3
	claimers := make([]*Claimer, size)
	for i := range size {
		claimers[i] = NewClaimer(kv, size, 0, nil)
		require.NoError(t, claimers[i].ClaimRank(ctx, i))
	}
	// Rank 0 ready before the wait starts; the rest after.
	require.NoError(t, claimers[0].MarkReady(ctx))

	done := make(chan error, 1)
	go func() { done <- WaitAll(ctx, kv, size) }()

	select {
	case err := <-done:
		t.Fatalf("WaitAll returned early: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	require.NoError(t, claimers[1].MarkReady(ctx))
	require.NoError(t, claimers[2].MarkReady(ctx))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("WaitAll did not return")
	}
}

func TestWaitAll_Timeout(t *testing.T) {
	kv := newBucket(t, "rank-wait-timeout")

	ctx, cancel := context.WithTimeout(t.Context(), 200*time.Millisecond)
	defer cancel()

	c := NewClaimer(kv, 2, 0, nil)
	require.NoError(t, c.ClaimRank(ctx, 0))
	require.NoError(t, c.MarkReady(ctx))

	err := WaitAll(ctx, kv, 2)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
