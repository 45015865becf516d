package backoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPolicy_Next_StartsAtBase(t *testing.T) {
	p := Policy{Base: 20 * time.Millisecond, Multiplier: 2}
	require.Equal(t, 20*time.Millisecond, p.Next(0))
	require.Equal(t, DefaultBase, Policy{}.Next(-time.Second))
}

func TestPolicy_Next_Bounds(t *testing.T) {
	p := Policy{Base: 10 * time.Millisecond, Multiplier: 3, Cap: 200 * time.Millisecond, Rand: Seeded(42)}

	prev := time.Duration(0)
	for range 100 {
		next := p.Next(prev)
		require.GreaterOrEqual(t, next, p.Base)
		require.LessOrEqual(t, next, p.Cap)
		prev = next
	}
}

func TestPolicy_Next_CapBelowBase(t *testing.T) {
	p := Policy{Base: time.Second, Cap: 100 * time.Millisecond}
	require.Equal(t, 100*time.Millisecond, p.Next(time.Second))
}

func TestPolicy_Next_Deterministic(t *testing.T) {
	a := Policy{Base: time.Millisecond, Multiplier: 2, Rand: Seeded(7)}
	b := Policy{Base: time.Millisecond, Multiplier: 2, Rand: Seeded(7)}

	for prev := time.Millisecond; prev < time.Second; prev *= 2 {
		require.Equal(t, a.Next(prev), b.Next(prev))
	}
}

func TestSeeded_ZeroIsNil(t *testing.T) {
	require.Nil(t, Seeded(0))
	require.NotNil(t, Seeded(1))
}
