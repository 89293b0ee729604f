package metrics

import (
	"math/rand"

	"github.com/soundstats/music-api/interfaces"
)

var _ interfaces.SessionSampler = (*UniformSampler)(nil)

// UniformSampler draws fabricated session durations uniformly from [lo, hi).
// The values carry no information about real clients.
type UniformSampler struct {
	lo, hi float64
	rand   func() float64
}

// NewUniformSampler returns a sampler over [lo, hi) backed by math/rand/v2
func NewUniformSampler(lo, hi float64) *UniformSampler {
	return &UniformSampler{lo: lo, hi: hi, rand: rand.Float64}
}

// Sample returns the next duration in seconds
func (s *UniformSampler) Sample() float64 {
	return s.lo + s.rand()*(s.hi-s.lo)
}
