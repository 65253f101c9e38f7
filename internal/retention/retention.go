package retention

import (
	"math"

	"github.com/tlazar/geoflux/internal/energy"
)

// Model computes the retention amplification factor alpha and the
// high-energy retention-collapse attenuation. Alpha grows with plasma
// momentum and alignment favorability but saturates at AlphaMax, which is
// what makes the amplification phase reachable without being literally
// unbounded.
type Model struct {
	// AlphaMax bounds the retention factor.
	AlphaMax float64
	// Gain controls how quickly alpha saturates in momentum*geometry.
	Gain float64
	// Ceiling is the energy level at which collapse attenuation is 0.5.
	Ceiling float64
	// Width sets how sharply attenuation falls off around the ceiling.
	Width float64
}

// NewModel validates the collapse parameters.
func NewModel(alphaMax, gain, ceiling, width float64) (*Model, error) {
	if alphaMax < 1 {
		return nil, energy.ConfigError{Field: "alpha_max", Reason: "must be at least 1"}
	}
	if gain <= 0 {
		return nil, energy.ConfigError{Field: "retention_gain", Reason: "must be positive"}
	}
	if ceiling <= 0 {
		return nil, energy.ConfigError{Field: "retention_ceiling", Reason: "must be positive"}
	}
	if width <= 0 {
		return nil, energy.ConfigError{Field: "retention_width", Reason: "must be positive"}
	}
	return &Model{AlphaMax: alphaMax, Gain: gain, Ceiling: ceiling, Width: width}, nil
}

// Factor returns alpha in [0, AlphaMax]: neutral retention (alpha = 1) at
// zero plasma momentum, rising monotonically and saturating toward AlphaMax
// with p and xi, attenuated by the collapse term for the current energy e.
func (m *Model) Factor(p, xi, e float64) float64 {
	if p < 0 {
		p = 0
	}
	if xi < 0 {
		xi = 0
	}
	base := 1 + (m.AlphaMax-1)*math.Tanh(m.Gain*p*xi)
	return base * m.Collapse(e)
}

// Collapse is the stability safeguard: exactly 1 at or below the ceiling,
// then a Gaussian-tail attenuation toward 0 above it. The curve and its
// first derivative are continuous at the ceiling, so crossing it introduces
// no discontinuity into the trajectory.
func (m *Model) Collapse(e float64) float64 {
	if e <= m.Ceiling {
		return 1
	}
	d := (e - m.Ceiling) / m.Width
	return math.Exp(-d * d)
}

// DefaultDecay returns the per-subsystem collisional decay constants from
// the reference calibration. The magnetosphere's 0.02 models persistent
// plasma retention.
func DefaultDecay() map[energy.Subsystem]float64 {
	return map[energy.Subsystem]float64{
		energy.Solar:       0.05,
		energy.Magnetic:    0.02,
		energy.Atmospheric: 0.08,
		energy.Oceanic:     0.01,
	}
}
