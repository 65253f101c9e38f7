package engine

import (
	"context"
	"math"

	"github.com/tlazar/geoflux/internal/energy"
	"github.com/tlazar/geoflux/internal/forcing"
	"github.com/tlazar/geoflux/internal/resonance"
	"github.com/tlazar/geoflux/internal/retention"
	"github.com/tlazar/geoflux/internal/topology"
	"github.com/tlazar/geoflux/internal/turbulence"
)

// Params configures one convergence engine. All validation happens at
// construction; a bad configuration never surfaces mid-run.
type Params struct {
	Subsystems []energy.Subsystem
	// Decay holds the per-subsystem collisional decay constants, each in [0, 1).
	Decay map[energy.Subsystem]float64
	// Beta scales each subsystem's resonance contribution.
	Beta map[energy.Subsystem]float64
	// Geometry is the coupling-geometry favorability fed to the retention model.
	Geometry float64
	// Dt converts step indices to simulation time for the oscillatory terms.
	Dt float64
	// ECrit supplies the (time-varying) critical energy per step.
	ECrit func(step int) float64
	// Hysteresis widens downward phase transitions; zero keeps the
	// classifier a pure function of the current total.
	Hysteresis float64
	// Thresholds are the four phase boundaries.
	Thresholds [4]float64
	// Kappa is the runaway-probability steepness.
	Kappa float64
}

// Engine advances the coupled energy state one step at a time. It owns no
// mutable state beyond the components handed to it, so distinct runs build
// distinct engines.
type Engine struct {
	params     Params
	topo       *topology.Topology
	ret        *retention.Model
	res        *resonance.Model
	noise      *turbulence.Generator
	classifier *energy.Classifier
	estimator  energy.RunawayEstimator
}

// New validates params and assembles an engine.
func New(
	params Params,
	topo *topology.Topology,
	ret *retention.Model,
	res *resonance.Model,
	noise *turbulence.Generator,
) (*Engine, error) {
	if len(params.Subsystems) == 0 {
		return nil, energy.ConfigError{Field: "subsystems", Reason: "at least one subsystem required"}
	}
	for _, sub := range params.Subsystems {
		lambda, ok := params.Decay[sub]
		if !ok {
			return nil, energy.ConfigError{Field: "subsystem_decay", Reason: "missing decay for " + string(sub)}
		}
		if lambda < 0 || lambda >= 1 {
			return nil, energy.ConfigError{Field: "subsystem_decay", Reason: "decay for " + string(sub) + " must be in [0, 1)"}
		}
		if b, ok := params.Beta[sub]; ok && b < 0 {
			return nil, energy.ConfigError{Field: "beta", Reason: "negative beta for " + string(sub)}
		}
	}
	if params.Dt <= 0 {
		return nil, energy.ConfigError{Field: "dt", Reason: "must be positive"}
	}
	if params.Kappa < 0 {
		return nil, energy.ConfigError{Field: "kappa", Reason: "must be non-negative"}
	}
	if params.ECrit == nil {
		return nil, energy.ConfigError{Field: "e_crit", Reason: "critical-energy input required"}
	}
	classifier, err := energy.NewClassifier(params.Thresholds, params.Hysteresis)
	if err != nil {
		return nil, err
	}
	return &Engine{
		params:     params,
		topo:       topo,
		ret:        ret,
		res:        res,
		noise:      noise,
		classifier: classifier,
		estimator:  energy.RunawayEstimator{Kappa: params.Kappa},
	}, nil
}

// Classifier exposes the engine's phase classifier for annotation by callers.
func (e *Engine) Classifier() *energy.Classifier { return e.classifier }

// SeedZones initializes an empty zone lattice by depositing each
// subsystem's seed energy through the topology weights. States that already
// carry zonal energy are left untouched.
func (e *Engine) SeedZones(state *energy.State) {
	if state.ZoneTotal() != 0 {
		return
	}
	for i, sub := range e.params.Subsystems {
		e.topo.Deposit(&state.Zones, sub, state.Value(i))
	}
}

// Step advances the state by one timestep:
//
//	E_i(t) = F_i(t) + alpha_i(p,xi)*E_i(t-1)*(1-lambda_i) + beta_i*R_i(t) + eps_i(t)
//
// followed by zone deposit and one diffusion step across the coupling
// matrix. All reads come from the prior-step snapshot and all writes target
// the next one, so cyclic subsystem coupling reduces to a data dependency
// on the previous state.
func (e *Engine) Step(state *energy.State, sample energy.ForcingSample) error {
	t := float64(state.Step) * e.params.Dt

	// Retention collapse keys on the hottest value anywhere in the system.
	hottest := 0.0
	for i := range e.params.Subsystems {
		if v := state.Value(i); v > hottest {
			hottest = v
		}
	}
	for _, z := range state.Zones {
		if z > hottest {
			hottest = z
		}
	}

	prev := state.Clone()
	eps := e.noise.Sample()

	for i, sub := range e.params.Subsystems {
		old := prev.Value(i)
		lambda := e.params.Decay[sub]
		beta := e.params.Beta[sub]

		alpha := e.ret.Factor(sample.GeomagneticIndex, e.params.Geometry, math.Max(old, hottest))
		f := e.topo.ForcingWeight(sub) * sample.BySubsystem(sub)
		r := e.res.Term(sub, prev, t)

		next := f + alpha*old*(1-lambda) + beta*r + eps[i]
		if next < 0 {
			next = 0
		}
		state.SetValue(i, next)
	}

	for i, sub := range e.params.Subsystems {
		e.topo.Deposit(&state.Zones, sub, state.Value(i)-prev.Value(i))
	}
	e.topo.Diffuse(&state.Zones)
	for i, z := range state.Zones {
		if z < 0 {
			state.Zones[i] = 0
		}
	}

	state.Step++

	if !state.IsFinite() {
		return energy.DivergenceError{
			Step:       state.Step,
			Subsystems: state.SubsystemMap(),
			Zones:      state.Zones,
		}
	}
	return nil
}

// Run executes n steps from the initial state, annotating every snapshot
// with phase and runaway probability. A non-finite state aborts the run and
// marks the trajectory invalid; the caller decides what to do with it.
func (e *Engine) Run(ctx context.Context, initial *energy.State, steps int, src forcing.Source) (*energy.Trajectory, error) {
	state := initial.Clone()
	e.SeedZones(state)

	traj := &energy.Trajectory{Snapshots: make([]energy.Snapshot, 0, steps+1)}
	phase := e.classifier.Classify(state.Total())
	state.PhaseCounts[phase]++
	traj.Append(e.annotate(state, phase))

	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			return traj, ctx.Err()
		default:
		}

		sample := src.Next()
		if err := e.Step(state, sample); err != nil {
			traj.MarkInvalid(state.Step, err)
			return traj, err
		}

		phase = e.classifier.Next(phase, state.Total())
		state.PhaseCounts[phase]++
		traj.Append(e.annotate(state, phase))
	}

	return traj, nil
}

func (e *Engine) annotate(state *energy.State, phase energy.PhaseLabel) energy.Snapshot {
	total := state.Total()
	crit := e.params.ECrit(state.Step)

	retained, dissipated := 0.0, 0.0
	for i, sub := range e.params.Subsystems {
		v := state.Value(i)
		retained += v * (1 - e.params.Decay[sub])
		dissipated += v * e.params.Decay[sub]
	}
	stability := retained / (dissipated + 1e-9)

	cascade := e.params.Thresholds[3]
	return energy.Snapshot{
		State:             state.Clone(),
		Phase:             phase,
		Runaway:           e.estimator.Probability(total, crit),
		Stability:         stability,
		DistanceToTipping: (cascade - total) / cascade,
	}
}
