package turbulence

import (
	"math/rand"

	"github.com/tlazar/geoflux/internal/energy"
)

// Generator produces filtered turbulence noise: raw Gaussian draws pushed
// through a one-pole high-pass filter, so the emitted term carries fast
// jitter but negligible low-frequency drift. Turbulence must not itself
// cause secular drift.
//
// The generator owns its filter state and RNG; ensemble members each hold
// their own Generator so noise history is never shared.
type Generator struct {
	sigma float64
	pole  float64
	rng   *rand.Rand

	prevRaw      []float64
	prevFiltered []float64
}

// New builds a generator for n subsystems. Sigma scales the raw Gaussian
// draws; pole in (0,1) sets the high-pass corner (closer to 1 passes more).
func New(n int, sigma, pole float64, seed int64) (*Generator, error) {
	if sigma < 0 {
		return nil, energy.ConfigError{Field: "noise_sigma", Reason: "must be non-negative"}
	}
	if pole <= 0 || pole >= 1 {
		return nil, energy.ConfigError{Field: "noise_pole", Reason: "must be in (0, 1)"}
	}
	g := &Generator{
		sigma:        sigma,
		pole:         pole,
		prevRaw:      make([]float64, n),
		prevFiltered: make([]float64, n),
	}
	g.Reset(seed)
	return g, nil
}

// Reset reseeds the RNG and clears filter state. Independent runs must call
// this so they share no noise history.
func (g *Generator) Reset(seed int64) {
	g.rng = rand.New(rand.NewSource(seed))
	for i := range g.prevRaw {
		g.prevRaw[i] = 0
		g.prevFiltered[i] = 0
	}
}

// Sample emits one filtered noise value per subsystem. The one-pole
// high-pass recurrence is y[n] = pole*(y[n-1] + x[n] - x[n-1]).
func (g *Generator) Sample() []float64 {
	out := make([]float64, len(g.prevRaw))
	for i := range out {
		raw := g.rng.NormFloat64() * g.sigma
		filtered := g.pole * (g.prevFiltered[i] + raw - g.prevRaw[i])
		g.prevRaw[i] = raw
		g.prevFiltered[i] = filtered
		out[i] = filtered
	}
	return out
}
