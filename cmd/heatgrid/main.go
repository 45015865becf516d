// Package main runs the heatgrid solver.
//
// Two modes are supported:
//
//   - all-in-one: every rank runs as a goroutine in this process, each with
//     its own NATS connection. An embedded NATS server is started when
//     nats.embedded is set.
//   - worker: this process runs a single rank against nats.url. The rank is
//     taken from -rank or claimed from the rank KV bucket, and the run starts
//     once every rank is ready.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/arloliu/heatgrid"
	"github.com/arloliu/heatgrid/internal/logging"
	"github.com/arloliu/heatgrid/transport/natsbus"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML configuration file (defaults when empty)")
	mode := flag.String("mode", "all-in-one", "Run mode: all-in-one or worker")
	rank := flag.Int("rank", -1, "Worker rank in worker mode (claimed from KV when negative)")
	diagnosticsPath := flag.String("diagnostics", "", "Write diagnostics as JSON lines to this file")
	flag.Parse()

	if err := run(*configPath, *mode, *rank, *diagnosticsPath); err != nil {
		fmt.Fprintf(os.Stderr, "heatgrid: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, mode string, rank int, diagnosticsPath string) error {
	cfg := heatgrid.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = heatgrid.LoadConfig(configPath); err != nil {
			return err
		}
	}

	log, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}

	heatgrid.SetDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg.ValidateWithWarnings(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	collector, stopMetrics, err := startMetrics(ctx, cfg.Metrics.Addr, log)
	if err != nil {
		return err
	}
	defer stopMetrics()

	opts := []heatgrid.Option{heatgrid.WithMetrics(collector)}
	busOpts := []natsbus.Option{
		natsbus.WithSubjectPrefix(cfg.NATS.SubjectPrefix),
		natsbus.WithMetrics(collector),
	}
	if diagnosticsPath != "" {
		f, err := os.Create(diagnosticsPath)
		if err != nil {
			return fmt.Errorf("failed to create diagnostics file: %w", err)
		}
		defer f.Close()

		opts = append(opts, withDiagnosticsFile(f, log)...)
	}

	log.Info("heatgrid starting",
		"mode", mode,
		"rows", cfg.Rows,
		"cols", cfg.Cols,
		"workers", cfg.Workers,
		"iterations", cfg.Iterations,
	)

	switch mode {
	case "all-in-one":
		err = runAllInOne(ctx, &cfg, log, opts, busOpts)
	case "worker":
		err = runWorker(ctx, &cfg, rank, log, opts, busOpts)
	default:
		err = fmt.Errorf("unknown mode: %s", mode)
	}

	if errors.Is(err, context.Canceled) {
		log.Warn("run cancelled")
	}

	return err
}
