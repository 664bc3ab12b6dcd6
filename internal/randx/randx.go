// Package randx provides the random source shared by clip duration
// selection and clip shuffling. Components receive a Source explicitly so
// that a fixed seed reproduces an assembly exactly.
package randx

import (
	"math/rand/v2"
)

// Source is the subset of *rand.Rand the core relies on.
type Source interface {
	Float64() float64
	Shuffle(n int, swap func(i, j int))
}

// New returns a deterministic source for seed.
func New(seed uint64) Source {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// NewUnseeded returns a source seeded from the runtime's entropy.
func NewUnseeded() Source {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// Uniform draws from [lo, hi]. The upper bound is reachable only through
// rounding; callers treat the range as closed.
func Uniform(src Source, lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	v := lo + src.Float64()*(hi-lo)
	if v > hi {
		return hi
	}
	return v
}
