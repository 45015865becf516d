package rankclaim

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/heatgrid/internal/kvutil"
)

// WaitAll blocks until every rank in 0..size-1 is in PhaseReady.
//
// It watches the bucket, so ranks that become ready before or after the call
// are both observed. A rank whose claim is deleted drops out of the ready set
// again.
//
// Parameters:
//   - ctx: Bounds the wait; its error is returned on expiry
//   - kv: Bucket holding rank claims
//   - size: Number of ranks to wait for
func WaitAll(ctx context.Context, kv jetstream.KeyValue, size int) error {
	watcher, err := kv.WatchAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to watch rank bucket: %w", err)
	}
	defer func() { _ = watcher.Stop() }()

	ready := make(map[int]struct{}, size)
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for %d ranks (%d ready): %w", size, len(ready), ctx.Err())
		case entry, ok := <-watcher.Updates():
			if !ok {
				return errors.New("rank watcher closed")
			}
			if entry == nil {
				// Initial values replayed; fall through to the size check.
				if len(ready) == size {
					return nil
				}

				continue
			}

			rank, ok := kvutil.ParseRankKey(entry.Key())
			if !ok || rank >= size {
				continue
			}

			if entry.Operation() != jetstream.KeyValuePut {
				delete(ready, rank)
				continue
			}

			rec, err := DecodeRecord(entry.Value())
			if err != nil || rec.Phase != PhaseReady {
				delete(ready, rank)
				continue
			}
			ready[rank] = struct{}{}

			if len(ready) == size {
				return nil
			}
		}
	}
}
