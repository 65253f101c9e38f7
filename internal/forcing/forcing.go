package forcing

import (
	"math"

	"github.com/tlazar/geoflux/internal/energy"
)

// Source supplies one external-forcing sample per time step. The engine
// calls Next exactly once per step; implementations may wrap live telemetry
// or replay recorded series, the engine is agnostic to which.
type Source interface {
	Next() energy.ForcingSample
}

// Baseline is a synthetic source reproducing the reference calibration:
// an 11-unit solar activity cycle plus slow secular trends in the
// magnetospheric, thermospheric, and oceanic inputs.
type Baseline struct {
	Dt   float64
	step int
}

// NewBaseline creates a baseline source advancing Dt per sample.
func NewBaseline(dt float64) *Baseline {
	return &Baseline{Dt: dt}
}

func (b *Baseline) Next() energy.ForcingSample {
	t := float64(b.step) * b.Dt
	b.step++
	return energy.ForcingSample{
		SolarFlux:            5 * (1 + 0.3*math.Cos(2*math.Pi*t/11.0)),
		GeomagneticIndex:     2 * (1 + 0.1*math.Sin(2*math.Pi*t/1.5)),
		ThermosphericDensity: 3 * (1 + 0.05*math.Sin(2*math.Pi*t/4.2)),
		OceanCirculation:     1 * (1 + 0.02*math.Sin(2*math.Pi*t/60.0)),
	}
}

// Series is a versioned recorded input record. The core consumes recorded
// observations (solar flux, Kp, thermospheric density, AMOC strength)
// through this record rather than through live API clients.
type Series struct {
	Version string                 `yaml:"version" json:"version"`
	Samples []energy.ForcingSample `yaml:"samples" json:"samples"`
}

// Replay walks a recorded series sample by sample, holding the last sample
// once the series is exhausted.
type Replay struct {
	series Series
	pos    int
}

func NewReplay(s Series) *Replay { return &Replay{series: s} }

func (r *Replay) Next() energy.ForcingSample {
	if len(r.series.Samples) == 0 {
		return energy.ForcingSample{}
	}
	if r.pos >= len(r.series.Samples) {
		return r.series.Samples[len(r.series.Samples)-1]
	}
	s := r.series.Samples[r.pos]
	r.pos++
	return s
}

// Version reports which input record the replay is bound to.
func (r *Replay) Version() string { return r.series.Version }

// Constant emits the same sample every step; useful for fixed-point and
// boundedness tests.
type Constant struct {
	Sample energy.ForcingSample
}

func (c Constant) Next() energy.ForcingSample { return c.Sample }

// Zero emits no external forcing at all.
type Zero struct{}

func (Zero) Next() energy.ForcingSample { return energy.ForcingSample{} }
