package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"gonum.org/v1/gonum/mat"

	"github.com/arloliu/heatgrid"
	"github.com/arloliu/heatgrid/internal/kvutil"
	"github.com/arloliu/heatgrid/internal/logging"
	"github.com/arloliu/heatgrid/internal/progress"
	"github.com/arloliu/heatgrid/internal/rankclaim"
	"github.com/arloliu/heatgrid/report"
	"github.com/arloliu/heatgrid/transport/natsbus"
)

func runAllInOne(ctx context.Context, cfg *heatgrid.Config, log *logging.SlogLogger, opts []heatgrid.Option, busOpts []natsbus.Option) error {
	url := cfg.NATS.URL
	if cfg.NATS.Embedded {
		ns, err := startEmbeddedNATS()
		if err != nil {
			return err
		}
		defer ns.Shutdown()
		url = ns.ClientURL()
		log.Info("embedded NATS started", "url", url)
	}

	transports := make([]heatgrid.Transport, cfg.Workers)
	for rank := range cfg.Workers {
		nc, err := nats.Connect(url, nats.Name(fmt.Sprintf("heatgrid-rank-%d", rank)))
		if err != nil {
			return fmt.Errorf("failed to connect rank %d to NATS: %w", rank, err)
		}
		defer nc.Close()

		bus, err := natsbus.New(nc, rank, cfg.Workers, append(busOpts, natsbus.WithLogger(log.WithRank(rank)))...)
		if err != nil {
			return err
		}
		defer bus.Close()
		transports[rank] = bus
	}

	start := time.Now()
	results, err := heatgrid.RunCluster(ctx, cfg, transports, append(opts, heatgrid.WithLogger(log))...)
	if err != nil {
		return err
	}

	summarize(log, results[0], time.Since(start))

	return nil
}

func runWorker(ctx context.Context, cfg *heatgrid.Config, rank int, log *logging.SlogLogger, opts []heatgrid.Option, busOpts []natsbus.Option) error {
	nc, err := nats.Connect(cfg.NATS.URL, nats.Name("heatgrid-worker"))
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	startCtx, cancelStart := context.WithTimeout(ctx, cfg.StartupTimeout)
	defer cancelStart()

	rankKV, err := kvutil.EnsureBucket(startCtx, js, jetstream.KeyValueConfig{
		Bucket:  cfg.KVBuckets.RankBucket,
		TTL:     cfg.KVBuckets.RankTTL,
		History: 1,
	}, 3)
	if err != nil {
		return err
	}

	claimer := rankclaim.NewClaimer(rankKV, cfg.Workers, cfg.KVBuckets.RankTTL, log)
	if rank >= 0 {
		err = claimer.ClaimRank(startCtx, rank)
	} else {
		rank, err = claimer.Claim(startCtx)
	}
	if err != nil {
		return err
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := claimer.Release(releaseCtx); err != nil {
			log.Warn("failed to release rank", "rank", rank, "error", err)
		}
	}()
	if err := claimer.StartRenewal(); err != nil {
		return err
	}

	rankLog := log.WithRank(rank)

	bus, err := natsbus.New(nc, rank, cfg.Workers, append(busOpts, natsbus.WithLogger(rankLog))...)
	if err != nil {
		return err
	}
	defer bus.Close()

	if err := claimer.MarkReady(startCtx); err != nil {
		return err
	}
	rankLog.Info("waiting for all ranks", "workers", cfg.Workers)
	if err := rankclaim.WaitAll(startCtx, rankKV, cfg.Workers); err != nil {
		return err
	}

	progressKV, err := kvutil.EnsureBucket(startCtx, js, jetstream.KeyValueConfig{
		Bucket:  cfg.KVBuckets.ProgressBucket,
		History: 1,
	}, 3)
	if err != nil {
		return err
	}
	pub := progress.New(progressKV, rank, cfg.Iterations, cfg.ProgressInterval, rankLog)
	if err := pub.Start(startCtx); err != nil {
		return err
	}
	defer func() {
		if err := pub.Stop(); err != nil {
			rankLog.Warn("failed to stop progress publisher", "error", err)
		}
	}()

	w, err := heatgrid.NewWorker(cfg, bus, append(opts,
		heatgrid.WithLogger(rankLog),
		heatgrid.WithHooks(&heatgrid.Hooks{OnIteration: pub.Update}),
	)...)
	if err != nil {
		return err
	}

	start := time.Now()
	result, err := w.Run(ctx)
	if err != nil {
		return err
	}

	if result.Grid != nil {
		summarize(rankLog, result, time.Since(start))
	}

	return nil
}

func startEmbeddedNATS() (*server.Server, error) {
	ns, err := server.NewServer(&server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  os.TempDir(),
		NoLog:     true,
		NoSigs:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedded NATS server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(10 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("embedded NATS server not ready")
	}

	return ns, nil
}

func withDiagnosticsFile(f *os.File, log *logging.SlogLogger) []heatgrid.Option {
	return []heatgrid.Option{
		heatgrid.WithReporter(report.NewLogReporter(log)),
		heatgrid.WithReporter(report.NewJSONReporter(f)),
	}
}

func summarize(log *logging.SlogLogger, result heatgrid.Result, d time.Duration) {
	g := result.Grid
	if g == nil {
		g = result.Strip
	}
	r, c := g.Dims()

	log.Info("run complete",
		"iterations", result.Iterations,
		"duration", d,
		"last_max_diff", result.LastMaxDiff,
		"grid", fmt.Sprintf("%dx%d", r, c),
		"min", mat.Min(g),
		"max", mat.Max(g),
		"mean", mat.Sum(g)/float64(r*c),
	)
}
