// File: internal/humanoid/noise.go
package humanoid

import (
	"math"
	"math/rand"
)

// PinkNoiseGenerator produces 1/f noise with the stochastic Voss-McCartney
// algorithm. Human timing shows this kind of long-range correlation: a typist
// who is slow now tends to stay slow for a while.
type PinkNoiseGenerator struct {
	rng    *rand.Rand
	values []float64
	p      []float64
	pink   float64
	n      int
	scale  float64
}

// NewPinkNoiseGenerator creates a generator with n white sources (12 when n <= 0).
func NewPinkNoiseGenerator(rng *rand.Rand, n int) *PinkNoiseGenerator {
	if n <= 0 {
		n = 12
	}
	g := &PinkNoiseGenerator{
		rng:    rng,
		values: make([]float64, n),
		p:      make([]float64, n),
		n:      n,
		scale:  1.0 / math.Sqrt(float64(n)),
	}

	// Source i changes with probability proportional to 2^-i.
	total := 0.0
	for i := 0; i < n; i++ {
		g.p[i] = math.Pow(2, float64(-i))
		total += g.p[i]
	}
	for i := 0; i < n; i++ {
		g.p[i] /= total
		g.values[i] = g.white()
		g.pink += g.values[i]
	}
	return g
}

func (g *PinkNoiseGenerator) white() float64 { return g.rng.Float64()*2.0 - 1.0 }

// Next returns the next sample, roughly within [-1, 1].
func (g *PinkNoiseGenerator) Next() float64 {
	r := g.rng.Float64()
	idx := g.n - 1
	cumulative := 0.0
	for i := 0; i < g.n; i++ {
		cumulative += g.p[i]
		if r < cumulative {
			idx = i
			break
		}
	}
	old := g.values[idx]
	g.values[idx] = g.white()
	g.pink += g.values[idx] - old
	return g.pink * g.scale
}
