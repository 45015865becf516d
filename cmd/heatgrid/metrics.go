package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arloliu/heatgrid/internal/metrics"
	"github.com/arloliu/heatgrid/types"
)

// startMetrics returns the collector workers record into and, when addr is
// set, serves it on /metrics until the returned stop function is called.
func startMetrics(ctx context.Context, addr string, log types.Logger) (types.MetricsCollector, func(), error) {
	if addr == "" {
		return metrics.NewNop(), func() {}, nil
	}

	collector := metrics.NewPrometheus(prometheus.DefaultRegisterer, "")

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	go func() {
		log.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", "error", err)
		}
	}()

	stop := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}

	return collector, stop, nil
}
