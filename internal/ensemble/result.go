package ensemble

import (
	"math"
	"sort"

	"github.com/tlazar/geoflux/internal/energy"
)

// Band is one step's percentile spread of total system energy across the
// valid ensemble members.
type Band struct {
	Step int
	P5   float64
	P25  float64
	P50  float64
	P75  float64
	P95  float64
}

// MemberOutcome is one member's run, valid or not.
type MemberOutcome struct {
	Index      int
	Seed       int64
	Trajectory *energy.Trajectory
	Err        error
}

// Result aggregates an ensemble after all members complete.
type Result struct {
	Members int
	Invalid int
	// InvalidCauses preserves each failed member's index and cause.
	InvalidCauses map[int]string

	Bands []Band
	// CrossingSteps holds, per phase, the first step each valid member
	// reached that phase. Members that never reached it are absent.
	CrossingSteps map[energy.PhaseLabel][]int
	// FinalRunaway is the distribution of final-state runaway probability.
	FinalRunaway []float64
}

// Reduce folds completed member outcomes into a Result. It runs after all
// members finish; aggregation is single-writer by construction.
func Reduce(outcomes []MemberOutcome) *Result {
	r := &Result{
		Members:       len(outcomes),
		InvalidCauses: make(map[int]string),
		CrossingSteps: make(map[energy.PhaseLabel][]int),
	}

	var totals [][]float64 // totals[member] indexed by step
	maxLen := 0
	for _, o := range outcomes {
		if o.Err != nil || o.Trajectory == nil || o.Trajectory.Invalid {
			r.Invalid++
			if o.Err != nil {
				r.InvalidCauses[o.Index] = o.Err.Error()
			} else if o.Trajectory != nil && o.Trajectory.Cause != nil {
				r.InvalidCauses[o.Index] = o.Trajectory.Cause.Error()
			}
			continue
		}

		series := make([]float64, o.Trajectory.Len())
		crossed := make(map[energy.PhaseLabel]bool)
		for i, snap := range o.Trajectory.Snapshots {
			series[i] = snap.State.Total()
			for p := energy.Stress; p <= snap.Phase; p++ {
				if !crossed[p] {
					crossed[p] = true
					r.CrossingSteps[p] = append(r.CrossingSteps[p], snap.State.Step)
				}
			}
		}
		totals = append(totals, series)
		if len(series) > maxLen {
			maxLen = len(series)
		}
		if f := o.Trajectory.Final(); f != nil {
			r.FinalRunaway = append(r.FinalRunaway, f.Runaway)
		}
	}

	r.Bands = make([]Band, 0, maxLen)
	scratch := make([]float64, 0, len(totals))
	for step := 0; step < maxLen; step++ {
		scratch = scratch[:0]
		for _, series := range totals {
			if step < len(series) {
				scratch = append(scratch, series[step])
			}
		}
		if len(scratch) == 0 {
			continue
		}
		sort.Float64s(scratch)
		r.Bands = append(r.Bands, Band{
			Step: step,
			P5:   percentile(scratch, 5),
			P25:  percentile(scratch, 25),
			P50:  percentile(scratch, 50),
			P75:  percentile(scratch, 75),
			P95:  percentile(scratch, 95),
		})
	}

	return r
}

// CrossingProbability is the fraction of valid members that ever reached
// the given phase.
func (r *Result) CrossingProbability(p energy.PhaseLabel) float64 {
	valid := r.Members - r.Invalid
	if valid == 0 {
		return 0
	}
	return float64(len(r.CrossingSteps[p])) / float64(valid)
}

// MeanFinalRunaway averages the final-state runaway probabilities.
func (r *Result) MeanFinalRunaway() float64 {
	if len(r.FinalRunaway) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range r.FinalRunaway {
		sum += v
	}
	return sum / float64(len(r.FinalRunaway))
}

// percentile interpolates linearly on a sorted slice.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
