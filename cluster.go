package heatgrid

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/arloliu/heatgrid/transport/local"
)

// RunCluster runs one Worker per transport concurrently and waits for all.
//
// transports must be indexed by rank. The first failure cancels the other
// workers, so a fault on one rank never leaves its peers blocked.
//
// Parameters:
//   - ctx: Cancels the run
//   - cfg: Run configuration shared by every rank
//   - transports: One transport per rank, in rank order
//   - opts: Options applied to every worker
//
// Returns:
//   - []Result: Results in rank order; results[0] carries diagnostics and the assembled grid
//   - error: First worker error
func RunCluster(ctx context.Context, cfg *Config, transports []Transport, opts ...Option) ([]Result, error) {
	workers := make([]*Worker, len(transports))
	for rank, tr := range transports {
		if tr != nil && tr.Rank() != rank {
			return nil, fmt.Errorf("%w: transport at index %d is rank %d", ErrTopologyMismatch, rank, tr.Rank())
		}

		w, err := NewWorker(cfg, tr, opts...)
		if err != nil {
			return nil, fmt.Errorf("rank %d: %w", rank, err)
		}
		workers[rank] = w
	}

	results := make([]Result, len(workers))
	g, gctx := errgroup.WithContext(ctx)
	for rank, w := range workers {
		g.Go(func() error {
			res, err := w.Run(gctx)
			if err != nil {
				return fmt.Errorf("rank %d: %w", rank, err)
			}
			// Each goroutine owns slot rank.
			results[rank] = res

			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

// RunLocal runs every rank of cfg in-process over a local transport network.
func RunLocal(ctx context.Context, cfg *Config, opts ...Option) ([]Result, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}

	c := *cfg
	SetDefaults(&c)

	net, err := local.NewNetwork(c.Workers)
	if err != nil {
		return nil, err
	}
	defer func() { _ = net.Close() }()

	return RunCluster(ctx, &c, net.Transports(), opts...)
}
