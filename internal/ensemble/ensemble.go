package ensemble

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tlazar/geoflux/internal/config"
	"github.com/tlazar/geoflux/internal/energy"
	"github.com/tlazar/geoflux/internal/engine"
	"github.com/tlazar/geoflux/internal/forcing"
)

// ErrAllMembersInvalid is returned when no member produced a valid
// trajectory; partial failures are reported in the Result instead.
var ErrAllMembersInvalid = errors.New("ensemble: all members invalid")

// SourceFactory builds one member's forcing source. Each member gets its
// own source so replay positions and synthetic clocks are never shared.
type SourceFactory func() forcing.Source

// Driver runs an ensemble of independent convergence trajectories under
// sampled parameter realizations.
type Driver struct {
	cfg     *config.Config
	sources SourceFactory
	log     zerolog.Logger
}

// NewDriver builds a driver. A nil factory defaults to the baseline
// synthetic source.
func NewDriver(cfg *config.Config, sources SourceFactory, log zerolog.Logger) *Driver {
	if sources == nil {
		dt := cfg.Dt
		sources = func() forcing.Source { return forcing.NewBaseline(dt) }
	}
	return &Driver{cfg: cfg, sources: sources, log: log}
}

// Run executes the configured number of members across a bounded worker
// pool and reduces the outcomes. Members are embarrassingly parallel: each
// owns its engine, RNG stream, turbulence state, and trajectory buffer.
// Cancellation is cooperative, checked per member and per step.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	members := d.cfg.Ensemble.Members
	if members < 1 {
		return nil, energy.ConfigError{Field: "ensemble.members", Reason: "must be at least 1"}
	}
	workers := d.cfg.Ensemble.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > members {
		workers = members
	}

	outcomes := make([]MemberOutcome, members)
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				outcomes[idx] = d.runMember(ctx, idx)
			}
		}()
	}

	for idx := 0; idx < members; idx++ {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return nil, ctx.Err()
		case jobs <- idx:
		}
	}
	close(jobs)
	wg.Wait()

	result := Reduce(outcomes)
	if result.Invalid == result.Members {
		return result, ErrAllMembersInvalid
	}

	d.log.Info().
		Int("members", result.Members).
		Int("invalid", result.Invalid).
		Float64("mean_final_runaway", result.MeanFinalRunaway()).
		Msg("ensemble complete")

	return result, nil
}

func (d *Driver) runMember(ctx context.Context, idx int) MemberOutcome {
	seed := d.cfg.Seed + int64(idx)
	rng := rand.New(rand.NewSource(seed))

	realization := sampleRealization(d.cfg, rng)

	eng, err := engine.FromConfig(realization, seed)
	if err != nil {
		return MemberOutcome{Index: idx, Seed: seed, Err: err}
	}

	traj, err := eng.Run(ctx, realization.InitialState(), realization.Steps, d.sources())
	if err != nil {
		d.log.Warn().Int("member", idx).Err(err).Msg("member invalid")
	}
	return MemberOutcome{Index: idx, Seed: seed, Trajectory: traj, Err: err}
}

// sampleRealization draws one parameter realization from the configured
// distributions into a private copy of the config. Keys address either a
// scalar ("kappa", "e_crit", "retention.ceiling", "resonance.weight",
// "noise.sigma") or a per-subsystem decay ("decay.<subsystem>").
func sampleRealization(cfg *config.Config, rng *rand.Rand) *config.Config {
	out := cfg.Clone()
	for key, dist := range cfg.Ensemble.Distributions {
		v := dist.Sample(rng)
		switch {
		case key == "kappa":
			out.Kappa = v
		case key == "e_crit":
			out.ECrit = v
		case key == "retention.ceiling":
			out.Retention.Ceiling = v
		case key == "retention.alpha_max":
			out.Retention.AlphaMax = v
		case key == "resonance.weight":
			out.Resonance.Weight = v
		case key == "resonance.solar_am":
			out.Resonance.SolarAM = v
		case key == "noise.sigma":
			out.Noise.Sigma = v
		case strings.HasPrefix(key, "decay."):
			sub := energy.Subsystem(strings.TrimPrefix(key, "decay."))
			out.SubsystemDecay[sub] = v
		}
	}
	return out
}
