package resonance

import "math"

// Modulator is a pure function of simulation time producing a dimensionless
// multiplier near 1.0. Modulators are strategies: each is independently
// enableable, so the engine is testable with zero, one, or all active.
type Modulator interface {
	Name() string
	Multiplier(t float64) float64
}

// LunarModulator carries the sidereal-month and nodal-precession
// periodicities of lunar perigee/declination forcing.
type LunarModulator struct{}

func (LunarModulator) Name() string { return "lunar" }

func (LunarModulator) Multiplier(t float64) float64 {
	return 1 + 0.1*math.Sin(2*math.Pi*t/27.3) + 0.05*math.Sin(2*math.Pi*t/206)
}

// Body is one configured planetary contributor.
type Body struct {
	Name      string  `yaml:"name"`
	Amplitude float64 `yaml:"amplitude"`
	Period    float64 `yaml:"period"`
	Phase0    float64 `yaml:"phase0"`
}

// PlanetaryModulator sums the alignment phases of the configured bodies.
type PlanetaryModulator struct {
	Bodies []Body
}

func (PlanetaryModulator) Name() string { return "planetary" }

func (p PlanetaryModulator) Multiplier(t float64) float64 {
	m := 1.0
	for _, b := range p.Bodies {
		if b.Period <= 0 {
			continue
		}
		m += b.Amplitude * math.Cos(2*math.Pi*t/b.Period+b.Phase0)
	}
	return m
}

// DefaultBodies is the Jupiter/Saturn pair that dominates solar-system
// angular-momentum exchange.
func DefaultBodies() []Body {
	return []Body{
		{Name: "jupiter", Amplitude: 0.04, Period: 11.86},
		{Name: "saturn", Amplitude: 0.02, Period: 29.46},
	}
}

// SolarAMModulator is a slowly varying multiplier from the long-period
// solar angular-momentum cycles (~179-unit and ~60-unit components).
type SolarAMModulator struct {
	Amplitude float64
}

func (SolarAMModulator) Name() string { return "solar_am" }

func (s SolarAMModulator) Multiplier(t float64) float64 {
	a := s.Amplitude
	if a == 0 {
		a = 0.05
	}
	return 1 + a*math.Sin(2*math.Pi*t/179.0) + (a/2)*math.Sin(2*math.Pi*t/60.0)
}

// DebrisModulator models the slow accumulation of orbital-debris coupling:
// the multiplier rises from 1 toward 1+Amplitude with timescale Tau.
type DebrisModulator struct {
	Amplitude float64
	Tau       float64
}

func (DebrisModulator) Name() string { return "debris" }

func (d DebrisModulator) Multiplier(t float64) float64 {
	amp := d.Amplitude
	if amp == 0 {
		amp = 0.03
	}
	tau := d.Tau
	if tau <= 0 {
		tau = 50
	}
	return 1 + amp*(1-math.Exp(-t/tau))
}
