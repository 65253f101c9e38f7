package engine

import (
	"github.com/tlazar/geoflux/internal/config"
	"github.com/tlazar/geoflux/internal/turbulence"
)

// FromConfig assembles a complete engine for one run. The turbulence
// generator is seeded here, so two engines built with the same config and
// seed produce byte-identical trajectories.
func FromConfig(cfg *config.Config, seed int64) (*Engine, error) {
	topo, err := cfg.BuildTopology()
	if err != nil {
		return nil, err
	}
	ret, err := cfg.BuildRetention()
	if err != nil {
		return nil, err
	}
	res, err := cfg.BuildResonance()
	if err != nil {
		return nil, err
	}

	subs := cfg.Subsystems()
	noise, err := turbulence.New(len(subs), cfg.Noise.Sigma, cfg.Noise.Pole, seed)
	if err != nil {
		return nil, err
	}

	thresholds, err := cfg.Thresholds()
	if err != nil {
		return nil, err
	}

	return New(Params{
		Subsystems: subs,
		Decay:      cfg.DecayMap(),
		Beta:       cfg.BetaMap(),
		Geometry:   cfg.Geometry,
		Dt:         cfg.Dt,
		ECrit:      cfg.ECritAt(),
		Hysteresis: cfg.Hysteresis,
		Thresholds: thresholds,
		Kappa:      cfg.Kappa,
	}, topo, ret, res, noise)
}
