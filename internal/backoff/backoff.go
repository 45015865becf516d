// Package backoff computes capped, jittered retry delays.
package backoff

import (
	rand "math/rand/v2"
	"time"
)

// DefaultBase is used when Policy.Base is not positive.
const DefaultBase = 10 * time.Millisecond

// Policy describes a decorrelated-jitter backoff.
//
// Each delay is drawn from [Base, prev*Multiplier) and clamped to Cap.
type Policy struct {
	Base       time.Duration
	Multiplier float64
	Cap        time.Duration

	// Rand is the jitter source. Nil uses the package-level generator.
	Rand *rand.Rand
}

// Next returns the delay that follows prev. A non-positive prev starts at Base.
func (p Policy) Next(prev time.Duration) time.Duration {
	base := p.Base
	if base <= 0 {
		base = DefaultBase
	}
	mult := p.Multiplier
	if mult < 1.0 {
		mult = 1.0
	}
	if p.Cap > 0 && p.Cap < base {
		return p.Cap
	}
	if prev <= 0 {
		return base
	}

	span := time.Duration(float64(prev)*mult) - base
	if span <= 0 {
		span = base
	}

	var jitter int64
	if p.Rand != nil {
		jitter = p.Rand.Int64N(int64(span))
	} else {
		jitter = rand.Int64N(int64(span)) //nolint:gosec // non-crypto backoff jitter
	}

	next := base + time.Duration(jitter)
	if p.Cap > 0 && next > p.Cap {
		return p.Cap
	}

	return next
}

// Seeded returns a deterministic generator for seed, or nil when seed is 0.
//
//nolint:gosec
func Seeded(seed int64) *rand.Rand {
	if seed == 0 {
		return nil
	}
	s1 := uint64(seed)

	return rand.New(rand.NewPCG(s1, s1^0x9e3779b97f4a7c15))
}
