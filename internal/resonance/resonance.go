package resonance

import (
	"math"

	"github.com/tlazar/geoflux/internal/energy"
)

// Model computes the phase-locked cross-system amplification term. Each
// subsystem carries a natural oscillation period; when two subsystems'
// oscillations align in phase, energy couples constructively between them,
// and destructively when opposed.
type Model struct {
	periods    map[energy.Subsystem]float64
	weight     float64
	modulators []Modulator
}

// DefaultPeriods are the natural oscillation periods, in simulation time
// units, of the four core subsystems. The solar 11-unit cycle is the
// anchor; the others are phenomenological.
func DefaultPeriods() map[energy.Subsystem]float64 {
	return map[energy.Subsystem]float64{
		energy.Solar:       11.0,
		energy.Magnetic:    1.5,
		energy.Atmospheric: 4.2,
		energy.Oceanic:     60.0,
	}
}

// New builds a resonance model. Weight scales the cross terms; modulators
// compose multiplicatively onto the base term and each may be omitted.
func New(periods map[energy.Subsystem]float64, weight float64, modulators ...Modulator) (*Model, error) {
	for sub, p := range periods {
		if p <= 0 {
			return nil, energy.ConfigError{Field: "resonance_periods", Reason: "non-positive period for " + string(sub)}
		}
	}
	if weight < 0 {
		return nil, energy.ConfigError{Field: "resonance_weight", Reason: "must be non-negative"}
	}
	return &Model{periods: periods, weight: weight, modulators: modulators}, nil
}

// Modulation is the composed multiplier of all enabled modulators at time t.
func (m *Model) Modulation(t float64) float64 {
	mod := 1.0
	for _, mm := range m.modulators {
		mod *= mm.Multiplier(t)
	}
	return mod
}

func (m *Model) phase(sub energy.Subsystem, t float64) float64 {
	p, ok := m.periods[sub]
	if !ok || p <= 0 {
		return 0
	}
	return 2 * math.Pi * t / p
}

// Term returns the resonance contribution R_i for subsystem i at time t,
// reading only prior-step energies from state. The sqrt(E_i*E_j) amplitude
// keeps the term symmetric in the coupled pair, and the cosine of the
// relative phase sets sign and strength.
func (m *Model) Term(sub energy.Subsystem, state *energy.State, t float64) float64 {
	ei := state.Get(sub)
	if ei <= 0 {
		return 0
	}
	phi := m.phase(sub, t)
	mod := m.Modulation(t)

	sum := 0.0
	for _, other := range state.Order() {
		if other == sub {
			continue
		}
		ej := state.Get(other)
		if ej <= 0 {
			continue
		}
		sum += math.Sqrt(ei*ej) * math.Cos(phi-m.phase(other, t))
	}
	return m.weight * mod * sum
}
