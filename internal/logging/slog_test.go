package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/heatgrid/types"
)

func TestSlogLogger_ImplementsInterface(t *testing.T) {
	t.Helper()
	var _ types.Logger = (*SlogLogger)(nil)
}

func TestNewSlogDefault(t *testing.T) {
	logger := NewSlogDefault()

	require.NotNil(t, logger)
	require.NotNil(t, logger.logger)
}

func TestSlogLogger_Levels(t *testing.T) {
	buf := &bytes.Buffer{}
	handler := slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := NewSlog(slog.New(handler))

	logger.Debug("halo posted", "iteration", 3)
	logger.Info("worker started", "rank", 1)
	logger.Warn("hook failed", "hook", "OnIteration")
	logger.Error("gather failed", "error", "timeout")

	output := buf.String()
	assert.Contains(t, output, "level=DEBUG")
	assert.Contains(t, output, "iteration=3")
	assert.Contains(t, output, "level=INFO")
	assert.Contains(t, output, "rank=1")
	assert.Contains(t, output, "level=WARN")
	assert.Contains(t, output, "hook=OnIteration")
	assert.Contains(t, output, "level=ERROR")
	assert.Contains(t, output, "error=timeout")
}

func TestNew_LevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := New(buf, "warn", "text")
	require.NoError(t, err)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")

	output := buf.String()
	assert.NotContains(t, output, "debug message")
	assert.NotContains(t, output, "info message")
	assert.Contains(t, output, "warn message")
}

func TestNew_JSONFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := New(buf, "", "json")
	require.NoError(t, err)

	logger.WithRank(2).Info("diagnostic", "iteration", 5)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	require.Equal(t, "diagnostic", record["msg"])
	require.InDelta(t, 2.0, record["rank"], 0)
	require.InDelta(t, 5.0, record["iteration"], 0)
}

func TestNew_Errors(t *testing.T) {
	_, err := New(nil, "loud", "text")
	require.Error(t, err)

	_, err = New(nil, "info", "xml")
	require.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":        slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
}
