package topology

import (
	"github.com/tlazar/geoflux/internal/energy"
)

// Topology holds the static zone-to-zone coupling matrix, the per-subsystem
// deposit weights into the zone lattice, and the per-subsystem forcing
// weights. It is built once at engine construction and read-only for the
// life of a run, so it is safe to share across ensemble members.
type Topology struct {
	coupling      [energy.NumZones][energy.NumZones]float64
	zoneWeights   map[energy.Subsystem][energy.NumZones]float64
	forcingWeight map[energy.Subsystem]float64
	diffusionRate float64
}

// New validates the coupling matrix and weights. Coupling coefficients must
// be non-negative; each subsystem's zone weights are normalized to sum to 1
// so deposits conserve energy across the lattice.
func New(
	coupling [energy.NumZones][energy.NumZones]float64,
	zoneWeights map[energy.Subsystem][energy.NumZones]float64,
	forcingWeight map[energy.Subsystem]float64,
	diffusionRate float64,
) (*Topology, error) {
	for i := range coupling {
		for j := range coupling[i] {
			if coupling[i][j] < 0 {
				return nil, energy.ConfigError{Field: "zone_coupling_matrix", Reason: "negative coupling coefficient"}
			}
		}
	}
	if diffusionRate < 0 || diffusionRate > 0.5 {
		return nil, energy.ConfigError{Field: "diffusion_rate", Reason: "must be in [0, 0.5]"}
	}

	normalized := make(map[energy.Subsystem][energy.NumZones]float64, len(zoneWeights))
	for sub, w := range zoneWeights {
		sum := 0.0
		for _, v := range w {
			if v < 0 {
				return nil, energy.ConfigError{Field: "zone_weights", Reason: "negative weight for " + string(sub)}
			}
			sum += v
		}
		if sum == 0 {
			return nil, energy.ConfigError{Field: "zone_weights", Reason: "all-zero weights for " + string(sub)}
		}
		var n [energy.NumZones]float64
		for i, v := range w {
			n[i] = v / sum
		}
		normalized[sub] = n
	}

	for sub, w := range forcingWeight {
		if w < 0 {
			return nil, energy.ConfigError{Field: "forcing_weights", Reason: "negative weight for " + string(sub)}
		}
	}

	return &Topology{
		coupling:      coupling,
		zoneWeights:   normalized,
		forcingWeight: forcingWeight,
		diffusionRate: diffusionRate,
	}, nil
}

// Coupling returns the coefficient between two zones.
func (t *Topology) Coupling(i, j energy.Zone) float64 { return t.coupling[i][j] }

// ForcingWeight scales the raw forcing sample for a subsystem; unlisted
// subsystems default to 1.
func (t *Topology) ForcingWeight(sub energy.Subsystem) float64 {
	w, ok := t.forcingWeight[sub]
	if !ok {
		return 1
	}
	return w
}

// Deposit distributes a subsystem's energy change into the zone lattice
// according to its normalized zone weights.
func (t *Topology) Deposit(zones *[energy.NumZones]float64, sub energy.Subsystem, delta float64) {
	w, ok := t.zoneWeights[sub]
	if !ok {
		// Unlisted subsystems deposit uniformly.
		for i := range zones {
			zones[i] += delta / float64(energy.NumZones)
		}
		return
	}
	for i := range zones {
		zones[i] += delta * w[i]
	}
}

// Diffuse applies one discrete diffusion step across the zone lattice:
// each zone keeps its retained value and exchanges coupling[i][j]*(z_j - z_i)
// scaled by the diffusion rate, so imbalance equalizes gradually rather
// than instantaneously.
func (t *Topology) Diffuse(zones *[energy.NumZones]float64) {
	var next [energy.NumZones]float64
	for i := range zones {
		next[i] = zones[i]
		for j := range zones {
			if i == j {
				continue
			}
			next[i] += t.diffusionRate * t.coupling[i][j] * (zones[j] - zones[i])
		}
	}
	*zones = next
}

// DefaultCoupling is a mildly connected lattice: adjacent zones exchange
// faster than polar-equatorial pairs.
func DefaultCoupling() [energy.NumZones][energy.NumZones]float64 {
	return [energy.NumZones][energy.NumZones]float64{
		{0.0, 0.6, 0.2, 0.3},
		{0.6, 0.0, 0.6, 0.4},
		{0.2, 0.6, 0.0, 0.5},
		{0.3, 0.4, 0.5, 0.0},
	}
}

// DefaultZoneWeights routes each subsystem's energy toward the zones it
// physically loads: magnetospheric input concentrates at the poles,
// oceanic circulation in the oceanic bucket.
func DefaultZoneWeights() map[energy.Subsystem][energy.NumZones]float64 {
	return map[energy.Subsystem][energy.NumZones]float64{
		energy.Solar:       {0.15, 0.30, 0.40, 0.15},
		energy.Magnetic:    {0.55, 0.25, 0.10, 0.10},
		energy.Atmospheric: {0.20, 0.35, 0.30, 0.15},
		energy.Oceanic:     {0.10, 0.15, 0.15, 0.60},
	}
}
