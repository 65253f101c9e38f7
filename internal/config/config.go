package config

import (
	"math/rand"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tlazar/geoflux/internal/energy"
	"github.com/tlazar/geoflux/internal/resonance"
	"github.com/tlazar/geoflux/internal/retention"
	"github.com/tlazar/geoflux/internal/topology"
)

// Dist describes one uncertain parameter. Normal sampling interprets the
// low/high range as ±2 sigma around the mean.
type Dist struct {
	Mean         float64 `yaml:"mean"`
	Low          float64 `yaml:"low"`
	High         float64 `yaml:"high"`
	Distribution string  `yaml:"distribution"` // "uniform" or "normal"
}

// Sample draws one realization from the distribution.
func (d Dist) Sample(rng *rand.Rand) float64 {
	switch d.Distribution {
	case "normal":
		sigma := (d.High - d.Low) / 4.0
		return rng.NormFloat64()*sigma + d.Mean
	case "uniform":
		return d.Low + rng.Float64()*(d.High-d.Low)
	default:
		return d.Mean
	}
}

// RetentionConfig holds the amplification and collapse parameters.
type RetentionConfig struct {
	AlphaMax float64 `yaml:"alpha_max"`
	Gain     float64 `yaml:"gain"`
	Ceiling  float64 `yaml:"ceiling"`
	Width    float64 `yaml:"width"`
}

// NoiseConfig holds the turbulence generator parameters.
type NoiseConfig struct {
	Sigma float64 `yaml:"sigma"`
	Pole  float64 `yaml:"pole"`
}

// DebrisConfig tunes the orbital-debris modulator.
type DebrisConfig struct {
	Amplitude float64 `yaml:"amplitude"`
	Tau       float64 `yaml:"tau"`
}

// ResonanceConfig holds the cross-system coupling parameters.
type ResonanceConfig struct {
	Weight  float64                      `yaml:"weight"`
	Periods map[energy.Subsystem]float64 `yaml:"periods"`
	Bodies  []resonance.Body             `yaml:"planetary_bodies"`
	SolarAM float64                      `yaml:"solar_am_amplitude"`
	Debris  DebrisConfig                 `yaml:"debris"`
}

// EnsembleConfig sizes the Monte Carlo layer.
type EnsembleConfig struct {
	Members       int             `yaml:"members"`
	Workers       int             `yaml:"workers"`
	Distributions map[string]Dist `yaml:"distributions"`
}

// Extension declares an optional extension subsystem beyond the core four.
type Extension struct {
	Name    energy.Subsystem `yaml:"name"`
	Decay   float64          `yaml:"decay"`
	Initial float64          `yaml:"initial"`
	Beta    float64          `yaml:"beta"`
}

// Config is the full run configuration.
type Config struct {
	Steps int     `yaml:"steps"`
	Dt    float64 `yaml:"dt"`
	Seed  int64   `yaml:"seed"`

	Initial        map[energy.Subsystem]float64 `yaml:"initial"`
	SubsystemDecay map[energy.Subsystem]float64 `yaml:"subsystem_decay"`
	Beta           map[energy.Subsystem]float64 `yaml:"beta"`
	Geometry       float64                      `yaml:"geometry"`

	ZoneCoupling   [][]float64                    `yaml:"zone_coupling_matrix"`
	ZoneWeights    map[energy.Subsystem][]float64 `yaml:"zone_weights"`
	ForcingWeights map[energy.Subsystem]float64   `yaml:"forcing_weights"`
	DiffusionRate  float64                        `yaml:"diffusion_rate"`

	Retention RetentionConfig `yaml:"retention"`
	Noise     NoiseConfig     `yaml:"noise"`
	Resonance ResonanceConfig `yaml:"resonance"`

	Modulators []string `yaml:"modulators_enabled"`

	PhaseThresholds []float64 `yaml:"phase_thresholds"`
	Hysteresis      float64   `yaml:"hysteresis"`
	ECrit           float64   `yaml:"e_crit"`
	ECritSeries     []float64 `yaml:"e_crit_series"`
	Kappa           float64   `yaml:"kappa"`

	Extensions []Extension    `yaml:"extensions"`
	Ensemble   EnsembleConfig `yaml:"ensemble"`
}

// Default returns the reference calibration: the baseline seed energies and
// per-subsystem decay constants of the source model.
func Default() *Config {
	return &Config{
		Steps: 1000,
		Dt:    1.0 / 12.0,
		Seed:  1,
		Initial: map[energy.Subsystem]float64{
			energy.Solar:       180.0,
			energy.Magnetic:    92.5,
			energy.Atmospheric: 118.0,
			energy.Oceanic:     110.0,
		},
		SubsystemDecay: retention.DefaultDecay(),
		Beta: map[energy.Subsystem]float64{
			energy.Solar:       0.05,
			energy.Magnetic:    0.05,
			energy.Atmospheric: 0.05,
			energy.Oceanic:     0.05,
		},
		Geometry:      1.0,
		DiffusionRate: 0.1,
		Retention: RetentionConfig{
			AlphaMax: 1.05,
			Gain:     0.6,
			Ceiling:  400.0,
			Width:    40.0,
		},
		Noise: NoiseConfig{Sigma: 0.5, Pole: 0.7},
		Resonance: ResonanceConfig{
			Weight:  0.02,
			Periods: resonance.DefaultPeriods(),
			Bodies:  resonance.DefaultBodies(),
			SolarAM: 0.05,
		},
		PhaseThresholds: []float64{120, 150, 200, 300},
		Hysteresis:      0,
		ECrit:           300.0,
		Kappa:           0.001,
		Ensemble: EnsembleConfig{
			Members: 200,
			Workers: 4,
			Distributions: map[string]Dist{
				"kappa":             {Mean: 0.001, Low: 0.0005, High: 0.002, Distribution: "uniform"},
				"e_crit":            {Mean: 300, Low: 280, High: 330, Distribution: "normal"},
				"retention.ceiling": {Mean: 400, Low: 350, High: 450, Distribution: "uniform"},
			},
		},
	}
}

// Clone deep-copies the config so ensemble members can perturb their own
// realization without sharing mutable state.
func (c *Config) Clone() *Config {
	dup := *c

	dup.Initial = copyMap(c.Initial)
	dup.SubsystemDecay = copyMap(c.SubsystemDecay)
	dup.Beta = copyMap(c.Beta)
	dup.ForcingWeights = copyMap(c.ForcingWeights)

	if c.ZoneCoupling != nil {
		dup.ZoneCoupling = make([][]float64, len(c.ZoneCoupling))
		for i, row := range c.ZoneCoupling {
			dup.ZoneCoupling[i] = append([]float64(nil), row...)
		}
	}
	if c.ZoneWeights != nil {
		dup.ZoneWeights = make(map[energy.Subsystem][]float64, len(c.ZoneWeights))
		for sub, row := range c.ZoneWeights {
			dup.ZoneWeights[sub] = append([]float64(nil), row...)
		}
	}

	dup.Resonance.Periods = copyMap(c.Resonance.Periods)
	dup.Resonance.Bodies = append([]resonance.Body(nil), c.Resonance.Bodies...)

	dup.Modulators = append([]string(nil), c.Modulators...)
	dup.PhaseThresholds = append([]float64(nil), c.PhaseThresholds...)
	dup.ECritSeries = append([]float64(nil), c.ECritSeries...)
	dup.Extensions = append([]Extension(nil), c.Extensions...)

	if c.Ensemble.Distributions != nil {
		dup.Ensemble.Distributions = make(map[string]Dist, len(c.Ensemble.Distributions))
		for k, v := range c.Ensemble.Distributions {
			dup.Ensemble.Distributions[k] = v
		}
	}
	return &dup
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return nil
	}
	dup := make(map[K]V, len(m))
	for k, v := range m {
		dup[k] = v
	}
	return dup
}

// Load reads a YAML config over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config as YAML.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Subsystems returns the core four plus any configured extensions, in
// deterministic order.
func (c *Config) Subsystems() []energy.Subsystem {
	subs := energy.CoreSubsystems()
	for _, ext := range c.Extensions {
		subs = append(subs, ext.Name)
	}
	return subs
}

// InitialState builds the seed state.
func (c *Config) InitialState() *energy.State {
	initial := make(map[energy.Subsystem]float64, len(c.Initial)+len(c.Extensions))
	for sub, v := range c.Initial {
		initial[sub] = v
	}
	for _, ext := range c.Extensions {
		initial[ext.Name] = ext.Initial
	}
	return energy.NewState(c.Subsystems(), initial)
}

// DecayMap merges the core decay constants with extension decays.
func (c *Config) DecayMap() map[energy.Subsystem]float64 {
	m := make(map[energy.Subsystem]float64, len(c.SubsystemDecay)+len(c.Extensions))
	for sub, v := range c.SubsystemDecay {
		m[sub] = v
	}
	for _, ext := range c.Extensions {
		m[ext.Name] = ext.Decay
	}
	return m
}

// BetaMap merges the core betas with extension betas.
func (c *Config) BetaMap() map[energy.Subsystem]float64 {
	m := make(map[energy.Subsystem]float64, len(c.Beta)+len(c.Extensions))
	for sub, v := range c.Beta {
		m[sub] = v
	}
	for _, ext := range c.Extensions {
		m[ext.Name] = ext.Beta
	}
	return m
}

// Thresholds converts the configured list to the classifier's fixed array.
func (c *Config) Thresholds() ([4]float64, error) {
	var t [4]float64
	if len(c.PhaseThresholds) != 4 {
		return t, energy.ConfigError{Field: "phase_thresholds", Reason: "exactly 4 thresholds required"}
	}
	copy(t[:], c.PhaseThresholds)
	return t, nil
}

// ECritAt builds the per-step critical-energy input: the series when
// configured (holding its last value), otherwise the scalar.
func (c *Config) ECritAt() func(step int) float64 {
	if len(c.ECritSeries) > 0 {
		series := c.ECritSeries
		return func(step int) float64 {
			if step >= len(series) {
				return series[len(series)-1]
			}
			return series[step]
		}
	}
	crit := c.ECrit
	return func(int) float64 { return crit }
}

// BuildTopology assembles the coupling topology, falling back to the
// default lattice when the matrix is not configured.
func (c *Config) BuildTopology() (*topology.Topology, error) {
	coupling := topology.DefaultCoupling()
	if len(c.ZoneCoupling) > 0 {
		if len(c.ZoneCoupling) != int(energy.NumZones) {
			return nil, energy.ConfigError{Field: "zone_coupling_matrix", Reason: "must be 4x4"}
		}
		for i, row := range c.ZoneCoupling {
			if len(row) != int(energy.NumZones) {
				return nil, energy.ConfigError{Field: "zone_coupling_matrix", Reason: "must be 4x4"}
			}
			copy(coupling[i][:], row)
		}
	}

	weights := topology.DefaultZoneWeights()
	for sub, row := range c.ZoneWeights {
		if len(row) != int(energy.NumZones) {
			return nil, energy.ConfigError{Field: "zone_weights", Reason: "need one weight per zone for " + string(sub)}
		}
		var w [energy.NumZones]float64
		copy(w[:], row)
		weights[sub] = w
	}

	return topology.New(coupling, weights, c.ForcingWeights, c.DiffusionRate)
}

// BuildRetention assembles the retention model.
func (c *Config) BuildRetention() (*retention.Model, error) {
	return retention.NewModel(c.Retention.AlphaMax, c.Retention.Gain, c.Retention.Ceiling, c.Retention.Width)
}

// BuildResonance assembles the resonance model with the enabled modulators.
func (c *Config) BuildResonance() (*resonance.Model, error) {
	periods := c.Resonance.Periods
	if len(periods) == 0 {
		periods = resonance.DefaultPeriods()
	}

	var mods []resonance.Modulator
	for _, name := range c.Modulators {
		switch strings.ToLower(name) {
		case "lunar":
			mods = append(mods, resonance.LunarModulator{})
		case "planetary":
			bodies := c.Resonance.Bodies
			if len(bodies) == 0 {
				bodies = resonance.DefaultBodies()
			}
			mods = append(mods, resonance.PlanetaryModulator{Bodies: bodies})
		case "solar_am":
			mods = append(mods, resonance.SolarAMModulator{Amplitude: c.Resonance.SolarAM})
		case "debris":
			mods = append(mods, resonance.DebrisModulator{
				Amplitude: c.Resonance.Debris.Amplitude,
				Tau:       c.Resonance.Debris.Tau,
			})
		default:
			return nil, energy.ConfigError{Field: "modulators_enabled", Reason: "unknown modulator " + name}
		}
	}

	return resonance.New(periods, c.Resonance.Weight, mods...)
}
