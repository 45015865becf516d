package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSentinelErrors_Wrapping(t *testing.T) {
	sentinels := []error{
		ErrInvalidConfig,
		ErrUnevenPartition,
		ErrInvalidRank,
		ErrTransportRequired,
		ErrTransport,
		ErrTopologyMismatch,
		ErrClosed,
		ErrAlreadyStarted,
		ErrNotCoordinator,
	}

	for _, sentinel := range sentinels {
		t.Run(sentinel.Error(), func(t *testing.T) {
			wrapped := fmt.Errorf("rank 3: %w", sentinel)
			require.ErrorIs(t, wrapped, sentinel)

			for _, other := range sentinels {
				if other == sentinel {
					continue
				}
				require.False(t, errors.Is(wrapped, other), "%v must not match %v", sentinel, other)
			}
		})
	}
}

func TestUnevenPartition_WrappedAsConfigError(t *testing.T) {
	err := fmt.Errorf("%w: %w", ErrInvalidConfig, ErrUnevenPartition)

	require.ErrorIs(t, err, ErrInvalidConfig)
	require.ErrorIs(t, err, ErrUnevenPartition)
}
