// Package kvutil provides helpers for the JetStream KV buckets heatgrid keeps
// its rank claims and progress records in.
package kvutil

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/heatgrid/internal/backoff"
	"github.com/arloliu/heatgrid/internal/natsutil"
)

// rankKeyPrefix prefixes every per-rank key in a bucket.
const rankKeyPrefix = "rank-"

var retryPolicy = backoff.Policy{Base: 10 * time.Millisecond, Multiplier: 3, Cap: time.Second}

// EnsureBucket creates or opens a KV bucket, tolerating concurrent creators.
//
// Several worker processes start at once and all try to create the shared
// buckets; whoever loses the race opens the existing one instead. Connectivity
// failures are retried with jittered backoff; any other error is returned at
// once.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - js: JetStream context
//   - config: KV bucket configuration
//   - maxRetries: Maximum number of attempts (3 when <= 0)
//
// Returns:
//   - jetstream.KeyValue: The KV bucket instance
//   - error: The last error after all attempts failed
//
// Example:
//
//	kv, err := kvutil.EnsureBucket(ctx, js, jetstream.KeyValueConfig{
//	    Bucket: "heatgrid-rank",
//	    TTL:    time.Minute,
//	}, 3)
func EnsureBucket(
	ctx context.Context,
	js jetstream.JetStream,
	config jetstream.KeyValueConfig,
	maxRetries int,
) (jetstream.KeyValue, error) {
	if maxRetries <= 0 {
		maxRetries = 3
	}

	var (
		lastErr error
		delay   time.Duration
	)

	for attempt := range maxRetries {
		kv, err := js.CreateKeyValue(ctx, config)
		if err == nil {
			return kv, nil
		}

		raced := errors.Is(err, jetstream.ErrBucketExists)
		if raced {
			kv, err = js.KeyValue(ctx, config.Bucket)
			if err == nil {
				return kv, nil
			}
			lastErr = fmt.Errorf("bucket exists but failed to open: %w", err)
		} else {
			lastErr = err
		}

		if ctx.Err() != nil {
			return nil, fmt.Errorf("context cancelled during KV bucket creation: %w", ctx.Err())
		}
		if !raced && !natsutil.IsConnectivityError(err) {
			return nil, fmt.Errorf("failed to create KV bucket %s: %w", config.Bucket, lastErr)
		}

		if attempt < maxRetries-1 {
			delay = retryPolicy.Next(delay)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return nil, fmt.Errorf("failed to create/open KV bucket %s after %d attempts: %w",
		config.Bucket, maxRetries, lastErr)
}

// RankKey returns the KV key for a rank, e.g. "rank-3".
func RankKey(rank int) string {
	return rankKeyPrefix + strconv.Itoa(rank)
}

// ParseRankKey extracts the rank from a key produced by RankKey.
func ParseRankKey(key string) (int, bool) {
	s, ok := strings.CutPrefix(key, rankKeyPrefix)
	if !ok {
		return 0, false
	}
	rank, err := strconv.Atoi(s)
	if err != nil || rank < 0 {
		return 0, false
	}

	return rank, true
}
