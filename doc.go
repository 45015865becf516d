// Package heatgrid solves the 2D steady-state heat equation with distributed
// Jacobi relaxation.
//
// The rectangular grid is split into vertical strips, one per worker rank.
// Every iteration each worker exchanges its border columns with its
// horizontal neighbours, applies the five-point stencil to its strip, and
// reports its largest cell change to the coordinator (rank 0), which surfaces
// a diagnostic every few iterations. The run always executes the configured
// number of iterations.
//
// # Quick Start
//
// Run every rank in-process:
//
//	cfg := heatgrid.DefaultConfig()
//	cfg.Workers = 4
//
//	results, err := heatgrid.RunLocal(ctx, &cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	final := results[0].Grid // assembled on the coordinator
//
// # Distributed Runs
//
// Each process connects to NATS, builds a natsbus.Bus for its rank and runs a
// single Worker:
//
//	bus, _ := natsbus.New(nc, rank, cfg.Workers)
//	w, _ := heatgrid.NewWorker(&cfg, bus, heatgrid.WithLogger(logger))
//	result, err := w.Run(ctx)
//
// Every bus must be subscribed before any rank sends; cmd/heatgrid uses the
// rankclaim rendezvous for that.
//
// # Architecture
//
// Workers progress through a state machine:
//
//	Initialized → Distributing → Running → Collecting → Terminated
//
// Any error moves the worker to Failed and aborts the run; there is no retry
// or recovery.
package heatgrid
