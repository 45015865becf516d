package metrics

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/heatgrid/types"
)

func TestNopMetrics(t *testing.T) {
	var m types.MetricsCollector = NewNop()

	require.NotPanics(t, func() {
		m.RecordStateTransition(0, types.StateInitialized, types.StateRunning)
		m.RecordStateTransition(-1, types.State(999), types.State(1000))
		m.RecordIteration(1, 0.25)
		m.RecordExchangeDuration(1, 0.001)
		m.RecordGatherDuration(0.002)
		m.RecordMessage("send", types.TagBorder)
	})
}
