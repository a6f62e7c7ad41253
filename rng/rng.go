// Package rng provides deterministic, per-worker pseudo-random sources.
//
// Two runs started from the same master seed and the same worker count must
// draw bit-identical sequences, so each worker owns a private *rand.Rand
// derived from the master seed rather than sharing one source.
package rng

import "math/rand"

// Source is a worker-local PRNG. It is not safe for concurrent use; each
// worker goroutine owns exactly one Source.
type Source struct {
	r *rand.Rand
}

// New creates a Source seeded deterministically from masterSeed and the
// given worker index, so distinct workers never draw the same stream.
func New(masterSeed int64, workerIndex int) *Source {
	// A large odd multiplier keeps the per-worker seeds well separated even
	// for small worker indices; this is not cryptographic, only a stream
	// separator.
	seed := masterSeed + int64(uint64(workerIndex)*0x9E3779B97F4A7C15)
	return &Source{r: rand.New(rand.NewSource(seed))}
}

// Uniform draws from [0, 1).
func (s *Source) Uniform() float64 {
	return s.r.Float64()
}

// UniformRange draws from [lo, hi).
func (s *Source) UniformRange(lo, hi float64) float64 {
	return lo + (hi-lo)*s.Uniform()
}

// Bool draws true with probability p.
func (s *Source) Bool(p float64) bool {
	return s.Uniform() < p
}
