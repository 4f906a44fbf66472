// Package rng provides the randomness used for bot behavior, room codes
// and shuffles behind a small interface so tests can pin it down.
package rng

import "github.com/valyala/fastrand"

// Source produces pseudo-random numbers.
type Source interface {
	// Float64 returns a value in [0, 1).
	Float64() float64
	// Intn returns a value in [0, n). n must be positive.
	Intn(n int) int
}

// Fast is a Source backed by fastrand. It is safe for concurrent use.
type Fast struct{}

const floatSteps = 1 << 24

// Float64 returns a value in [0, 1) with 24 bits of precision.
func (Fast) Float64() float64 {
	return float64(fastrand.Uint32n(floatSteps)) / floatSteps
}

// Intn returns a value in [0, n).
func (Fast) Intn(n int) int {
	return int(fastrand.Uint32n(uint32(n)))
}

// Shuffle permutes the first n elements using swap.
func Shuffle(src Source, n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		swap(i, src.Intn(i+1))
	}
}

// Fixed is a deterministic Source for tests. Float64 always returns F and
// Intn returns I clamped into range.
type Fixed struct {
	F float64
	I int
}

func (f Fixed) Float64() float64 { return f.F }

func (f Fixed) Intn(n int) int {
	if f.I >= n {
		return n - 1
	}
	if f.I < 0 {
		return 0
	}
	return f.I
}
