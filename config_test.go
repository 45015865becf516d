package heatgrid

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/heatgrid/grid"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.Equal(t, 320, cfg.Rows)
	require.Equal(t, 480, cfg.Cols)
	require.Equal(t, 1, cfg.Workers)
	require.Equal(t, 100, cfg.Iterations)
	require.Equal(t, 5, cfg.ReportEvery)
	require.InDelta(t, grid.DefaultBoundary, cfg.Boundary, 0)
	require.False(t, cfg.AllowRunAhead)
	require.False(t, cfg.LocalInit)
	require.False(t, cfg.SkipCollect)
	require.Equal(t, 30*time.Second, cfg.RoundTimeout)
	require.Equal(t, "heatgrid", cfg.NATS.SubjectPrefix)
	require.Equal(t, "heatgrid-rank", cfg.KVBuckets.RankBucket)
	require.Equal(t, "heatgrid-progress", cfg.KVBuckets.ProgressBucket)
	require.NoError(t, cfg.Validate())
}

func TestSetDefaults(t *testing.T) {
	t.Run("applies defaults to empty config", func(t *testing.T) {
		cfg := Config{}
		SetDefaults(&cfg)

		require.Equal(t, 320, cfg.Rows)
		require.Equal(t, 100, cfg.Iterations)
		require.InDelta(t, 1.0, cfg.Boundary, 0)
		require.Equal(t, "heatgrid-rank", cfg.KVBuckets.RankBucket)
		require.Equal(t, time.Duration(0), cfg.RoundTimeout, "zero round timeout stays unbounded")
		require.NoError(t, cfg.Validate())
	})

	t.Run("preserves custom values", func(t *testing.T) {
		cfg := Config{
			Rows:        10,
			Cols:        12,
			Workers:     3,
			Iterations:  7,
			ReportEvery: 2,
			Boundary:    2.5,
			NATS:        NATSConfig{SubjectPrefix: "custom"},
			KVBuckets:   KVBucketConfig{RankBucket: "ranks"},
		}
		SetDefaults(&cfg)

		require.Equal(t, 10, cfg.Rows)
		require.Equal(t, 12, cfg.Cols)
		require.Equal(t, 3, cfg.Workers)
		require.Equal(t, 7, cfg.Iterations)
		require.Equal(t, 2, cfg.ReportEvery)
		require.InDelta(t, 2.5, cfg.Boundary, 0)
		require.Equal(t, "custom", cfg.NATS.SubjectPrefix)
		require.Equal(t, "ranks", cfg.KVBuckets.RankBucket)
		require.Equal(t, "heatgrid-progress", cfg.KVBuckets.ProgressBucket)
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"uneven partition", func(c *Config) { c.Cols, c.Workers = 5, 2 }, ErrUnevenPartition},
		{"too few rows", func(c *Config) { c.Rows = 2 }, ErrInvalidConfig},
		{"more workers than columns", func(c *Config) { c.Cols, c.Workers = 2, 4 }, ErrInvalidConfig},
		{"negative iterations", func(c *Config) { c.Iterations = -1 }, ErrInvalidConfig},
		{"negative timeout", func(c *Config) { c.RoundTimeout = -time.Second }, ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := TestConfig()
			tt.mutate(&cfg)
			require.ErrorIs(t, cfg.Validate(), tt.wantErr)
		})
	}

	cfg := TestConfig()
	cfg.Cols, cfg.Workers = 5, 2
	require.ErrorIs(t, cfg.Validate(), ErrInvalidConfig, "uneven partition is also a config error")
}

func TestConfig_ReportNever(t *testing.T) {
	cfg := TestConfig()
	cfg.ReportEvery = ReportNever
	SetDefaults(&cfg)

	require.Equal(t, ReportNever, cfg.ReportEvery, "a negative period survives defaults")
	require.NoError(t, cfg.Validate())

	var zero Config
	SetDefaults(&zero)
	require.Equal(t, 5, zero.ReportEvery, "an omitted period takes the default")
}

type recordingLogger struct {
	mu    sync.Mutex
	warns []string
}

func (l *recordingLogger) Debug(string, ...any) {}
func (l *recordingLogger) Info(string, ...any)  {}
func (l *recordingLogger) Error(string, ...any) {}
func (l *recordingLogger) Fatal(string, ...any) {}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func TestConfig_ValidateWithWarnings(t *testing.T) {
	log := &recordingLogger{}
	cfg := TestConfig()
	cfg.ValidateWithWarnings(log)
	require.Len(t, log.warns, 0)

	cfg.Cols = 2
	cfg.ReportEvery = 10
	cfg.AllowRunAhead = true
	cfg.ValidateWithWarnings(log)
	require.Len(t, log.warns, 3)
}

func TestTestConfig(t *testing.T) {
	cfg := TestConfig()
	require.NoError(t, cfg.Validate())
	require.Equal(t, 2, cfg.Workers)
}

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
rows: 64
cols: 96
workers: 4
iterations: 20
allowRunAhead: true
roundTimeout: 2s
nats:
  url: nats://example:4222
  embedded: true
kvBuckets:
  rankTtl: 45s
metrics:
  addr: ":9090"
`))
	require.NoError(t, err)

	require.Equal(t, 64, cfg.Rows)
	require.Equal(t, 96, cfg.Cols)
	require.Equal(t, 4, cfg.Workers)
	require.Equal(t, 20, cfg.Iterations)
	require.True(t, cfg.AllowRunAhead)
	require.Equal(t, 2*time.Second, cfg.RoundTimeout)
	require.Equal(t, "nats://example:4222", cfg.NATS.URL)
	require.True(t, cfg.NATS.Embedded)
	require.Equal(t, "heatgrid", cfg.NATS.SubjectPrefix)
	require.Equal(t, 45*time.Second, cfg.KVBuckets.RankTTL)
	require.Equal(t, "heatgrid-rank", cfg.KVBuckets.RankBucket)
	require.Equal(t, ":9090", cfg.Metrics.Addr)
	require.Equal(t, 5, cfg.ReportEvery)
}

func TestParseConfig_Errors(t *testing.T) {
	_, err := ParseConfig([]byte("rows: 10\nbogus: 1\n"))
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = ParseConfig([]byte("cols: 10\nworkers: 3\n"))
	require.ErrorIs(t, err, ErrUnevenPartition)

	cfg, err := ParseConfig(nil)
	require.NoError(t, err, "empty document yields defaults")
	require.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heatgrid.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rows: 8\ncols: 8\nworkers: 2\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, 8, cfg.Rows)
	require.Equal(t, 2, cfg.Workers)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
