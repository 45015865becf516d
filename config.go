package heatgrid

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arloliu/heatgrid/grid"
)

// NATSConfig configures the NATS transport.
type NATSConfig struct {
	// URL is the server URL workers connect to.
	URL string `yaml:"url"`

	// SubjectPrefix is the first token of every transport subject.
	SubjectPrefix string `yaml:"subjectPrefix"`

	// Embedded starts an in-process NATS server in all-in-one mode.
	Embedded bool `yaml:"embedded"`
}

// KVBucketConfig configures NATS JetStream KV bucket names and TTLs.
type KVBucketConfig struct {
	// RankBucket holds rank claims.
	RankBucket string `yaml:"rankBucket"`

	// ProgressBucket holds per-rank progress records.
	ProgressBucket string `yaml:"progressBucket"`

	// RankTTL is how long an unrenewed rank claim survives.
	// Claims are renewed every RankTTL/3.
	RankTTL time.Duration `yaml:"rankTtl"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is text or json.
	Format string `yaml:"format"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address for /metrics; empty disables the endpoint.
	Addr string `yaml:"addr"`
}

// ReportNever as Config.ReportEvery turns diagnostic reporting off.
const ReportNever = -1

// Config is the configuration for a run.
//
// All duration fields accept standard Go duration strings like "30s", "5m", "1h".
type Config struct {
	// Rows is the global grid height, including the top and bottom boundary rows.
	Rows int `yaml:"rows"`

	// Cols is the global grid width. Must be a multiple of Workers.
	Cols int `yaml:"cols"`

	// Workers is the number of ranks, one strip each.
	Workers int `yaml:"workers"`

	// Iterations is the fixed number of Jacobi rounds. There is no early exit.
	Iterations int `yaml:"iterations"`

	// ReportEvery surfaces a diagnostic on iterations divisible by it.
	// Zero selects the default of 5; ReportNever (any negative value)
	// disables diagnostics.
	ReportEvery int `yaml:"reportEvery"`

	// Boundary is the fixed value of the outer boundary cells.
	// A zero Boundary selects grid.DefaultBoundary.
	Boundary float64 `yaml:"boundary"`

	// AllowRunAhead lets non-coordinators start the next round without
	// waiting for the coordinator's release. Workers stay in lock-step by
	// default.
	AllowRunAhead bool `yaml:"allowRunAhead"`

	// LocalInit has every rank build its own initial strip instead of
	// receiving it from the coordinator.
	LocalInit bool `yaml:"localInit"`

	// SkipCollect leaves the final strips on their ranks instead of
	// assembling the full grid on the coordinator.
	SkipCollect bool `yaml:"skipCollect"`

	// RoundTimeout bounds each blocking step of a run (distribution, one
	// iteration, collection). Zero disables the bound.
	RoundTimeout time.Duration `yaml:"roundTimeout"`

	// OperationTimeout is the timeout for KV operations.
	OperationTimeout time.Duration `yaml:"operationTimeout"`

	// StartupTimeout bounds rank claiming and the wait for all ranks.
	StartupTimeout time.Duration `yaml:"startupTimeout"`

	// ShutdownTimeout bounds releasing the rank claim and final progress writes.
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`

	// ProgressInterval is how often progress records are written.
	ProgressInterval time.Duration `yaml:"progressInterval"`

	NATS      NATSConfig     `yaml:"nats"`
	KVBuckets KVBucketConfig `yaml:"kvBuckets"`
	Log       LogConfig      `yaml:"log"`
	Metrics   MetricsConfig  `yaml:"metrics"`
}

// DefaultConfig returns a Config with sensible defaults.
//
// The default grid is 320 rows by 480 columns on a single worker.
func DefaultConfig() Config {
	return Config{
		Rows:             320,
		Cols:             480,
		Workers:          1,
		Iterations:       100,
		ReportEvery:      5,
		Boundary:         grid.DefaultBoundary,
		RoundTimeout:     30 * time.Second,
		OperationTimeout: 10 * time.Second,
		StartupTimeout:   60 * time.Second,
		ShutdownTimeout:  10 * time.Second,
		ProgressInterval: time.Second,
		NATS: NATSConfig{
			URL:           "nats://127.0.0.1:4222",
			SubjectPrefix: "heatgrid",
		},
		KVBuckets: KVBucketConfig{
			RankBucket:     "heatgrid-rank",
			ProgressBucket: "heatgrid-progress",
			RankTTL:        30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// SetDefaults fills in missing configuration values with defaults.
//
// Parameters:
//   - cfg: Config to apply defaults to (modified in place)
func SetDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.Rows == 0 {
		cfg.Rows = defaults.Rows
	}
	if cfg.Cols == 0 {
		cfg.Cols = defaults.Cols
	}
	if cfg.Workers == 0 {
		cfg.Workers = defaults.Workers
	}
	if cfg.Iterations == 0 {
		cfg.Iterations = defaults.Iterations
	}
	if cfg.ReportEvery == 0 {
		cfg.ReportEvery = defaults.ReportEvery
	}
	if cfg.Boundary == 0 {
		cfg.Boundary = defaults.Boundary
	}
	if cfg.OperationTimeout == 0 {
		cfg.OperationTimeout = defaults.OperationTimeout
	}
	if cfg.StartupTimeout == 0 {
		cfg.StartupTimeout = defaults.StartupTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = defaults.ShutdownTimeout
	}
	if cfg.ProgressInterval == 0 {
		cfg.ProgressInterval = defaults.ProgressInterval
	}
	if cfg.NATS.URL == "" {
		cfg.NATS.URL = defaults.NATS.URL
	}
	if cfg.NATS.SubjectPrefix == "" {
		cfg.NATS.SubjectPrefix = defaults.NATS.SubjectPrefix
	}
	if cfg.KVBuckets.RankBucket == "" {
		cfg.KVBuckets.RankBucket = defaults.KVBuckets.RankBucket
	}
	if cfg.KVBuckets.ProgressBucket == "" {
		cfg.KVBuckets.ProgressBucket = defaults.KVBuckets.ProgressBucket
	}
	if cfg.KVBuckets.RankTTL == 0 {
		cfg.KVBuckets.RankTTL = defaults.KVBuckets.RankTTL
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = defaults.Log.Format
	}
	// RoundTimeout of 0 is valid (unbounded), so no default is applied.
}

// Validate checks configuration constraints.
//
// Hard Validation Rules:
//   - Rows >= 3, Workers >= 1, Cols >= Workers
//   - Cols % Workers == 0 (ErrUnevenPartition)
//   - Iterations >= 1
//   - Timeouts are non-negative
//
// Returns:
//   - error: Wraps ErrInvalidConfig, nil if valid
func (cfg *Config) Validate() error {
	if _, err := cfg.Layout(); err != nil {
		return err
	}

	if cfg.Iterations < 1 {
		return fmt.Errorf("%w: iterations must be >= 1, got %d", ErrInvalidConfig, cfg.Iterations)
	}

	for name, d := range map[string]time.Duration{
		"roundTimeout":      cfg.RoundTimeout,
		"operationTimeout":  cfg.OperationTimeout,
		"startupTimeout":    cfg.StartupTimeout,
		"shutdownTimeout":   cfg.ShutdownTimeout,
		"progressInterval":  cfg.ProgressInterval,
		"kvBuckets.rankTtl": cfg.KVBuckets.RankTTL,
	} {
		if d < 0 {
			return fmt.Errorf("%w: %s must be >= 0, got %v", ErrInvalidConfig, name, d)
		}
	}

	return nil
}

// Layout returns the strip layout described by the config.
func (cfg *Config) Layout() (grid.Layout, error) {
	return grid.NewLayout(cfg.Rows, cfg.Cols, cfg.Workers)
}

// ValidateWithWarnings logs warnings for legal but questionable values.
//
// Parameters:
//   - logger: Logger instance for warning output
func (cfg *Config) ValidateWithWarnings(logger Logger) {
	if cfg.Workers > 0 && cfg.Cols/cfg.Workers == 1 {
		logger.Warn("single-column strips exchange more than they compute",
			"cols", cfg.Cols,
			"workers", cfg.Workers,
		)
	}

	if cfg.ReportEvery > cfg.Iterations {
		logger.Warn("reportEvery exceeds iterations, only iteration 0 is surfaced",
			"reportEvery", cfg.ReportEvery,
			"iterations", cfg.Iterations,
		)
	}

	if cfg.AllowRunAhead && cfg.Workers > 1 {
		logger.Warn("run-ahead enabled, workers may start a round before the coordinator gathered the previous one")
	}
}

// TestConfig returns a small configuration for fast tests.
//
// Example:
//
//	cfg := heatgrid.TestConfig()
//	cfg.Workers = 2
//	results, err := heatgrid.RunLocal(ctx, &cfg)
func TestConfig() Config {
	cfg := DefaultConfig()

	cfg.Rows = 4
	cfg.Cols = 4
	cfg.Workers = 2
	cfg.Iterations = 3
	cfg.ReportEvery = 1
	cfg.RoundTimeout = 5 * time.Second
	cfg.StartupTimeout = 5 * time.Second
	cfg.ShutdownTimeout = time.Second
	cfg.ProgressInterval = 50 * time.Millisecond
	cfg.KVBuckets.RankTTL = 3 * time.Second

	return cfg
}

// LoadConfig reads a YAML config file on top of DefaultConfig.
//
// Unknown keys are rejected. Defaults are applied and the result is validated.
//
// Parameters:
//   - path: YAML file path
//
// Returns:
//   - Config: Loaded configuration
//   - error: Read, parse or validation error
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	return ParseConfig(data)
}

// ParseConfig decodes YAML config bytes on top of DefaultConfig.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	SetDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
