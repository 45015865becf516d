// Package main runs a JetStream-enabled NATS server for local worker-mode runs.
//
// Start it once, then point every `heatgrid -mode worker` process at the
// printed URL. The rank and progress buckets are created by the workers.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

func main() {
	host := flag.String("host", "127.0.0.1", "Listen host")
	port := flag.Int("port", 4222, "Listen port (-1 picks a random one)")
	storeDir := flag.String("store", "", "JetStream store directory (temporary when empty)")
	verbose := flag.Bool("v", false, "Enable server logging")
	flag.Parse()

	dir := *storeDir
	if dir == "" {
		dir = filepath.Join(os.TempDir(), fmt.Sprintf("heatgrid-nats-%d", os.Getpid()))
		defer func() {
			_ = os.RemoveAll(dir)
		}()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create store directory: %v\n", err)
		os.Exit(1)
	}

	srv, err := server.NewServer(&server.Options{
		Host:      *host,
		Port:      *port,
		JetStream: true,
		StoreDir:  dir,
		NoLog:     !*verbose,
		NoSigs:    true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create NATS server: %v\n", err)
		os.Exit(1) //nolint:gocritic // store directory is temporary
	}
	if *verbose {
		srv.ConfigureLogger()
	}

	go srv.Start()

	if !srv.ReadyForConnections(10 * time.Second) {
		fmt.Fprintln(os.Stderr, "NATS server not ready within timeout")
		os.Exit(1)
	}

	fmt.Printf("NATS_URL=%s\n", srv.ClientURL())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	fmt.Fprintln(os.Stderr, "shutting down NATS server")
	srv.Shutdown()
	srv.WaitForShutdown()
}
