package ensemble

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"testing"

	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"

	"github.com/tlazar/geoflux/internal/config"
	"github.com/tlazar/geoflux/internal/energy"
	"github.com/tlazar/geoflux/internal/forcing"
)

func smallConfig() *config.Config {
	cfg := config.Default()
	cfg.Steps = 50
	cfg.Ensemble.Members = 8
	cfg.Ensemble.Workers = 3
	return cfg
}

// trajFromTotals builds a minimal valid trajectory whose per-step totals are
// the given values.
func trajFromTotals(t *testing.T, totals []float64, finalRunaway float64) *energy.Trajectory {
	t.Helper()
	classifier, err := energy.NewClassifier(energy.DefaultThresholds(), 0)
	if err != nil {
		t.Fatalf("classifier: %v", err)
	}

	traj := &energy.Trajectory{}
	for i, total := range totals {
		state := energy.NewState([]energy.Subsystem{energy.Solar}, map[energy.Subsystem]float64{
			energy.Solar: total,
		})
		state.Step = i
		snap := energy.Snapshot{State: state, Phase: classifier.Classify(total)}
		if i == len(totals)-1 {
			snap.Runaway = finalRunaway
		}
		traj.Append(snap)
	}
	return traj
}

func TestReduceAggregatesValidMembers(t *testing.T) {
	g := NewWithT(t)

	outcomes := []MemberOutcome{
		{Index: 0, Trajectory: trajFromTotals(t, []float64{100, 200, 400}, 0.9)},
		{Index: 1, Trajectory: trajFromTotals(t, []float64{100, 110, 130}, 0.0)},
		{Index: 2, Err: energy.DivergenceError{Step: 1}},
	}

	r := Reduce(outcomes)

	g.Expect(r.Members).To(Equal(3))
	g.Expect(r.Invalid).To(Equal(1))
	g.Expect(r.InvalidCauses).To(HaveKey(2))
	g.Expect(r.Bands).To(HaveLen(3))

	// Step 0: both members at 100.
	g.Expect(r.Bands[0].P50).To(Equal(100.0))
	// Step 2: sorted totals are 130, 400.
	g.Expect(r.Bands[2].P50).To(Equal(265.0))
	g.Expect(r.Bands[2].P5).To(BeNumerically("~", 130+0.05*270, 1e-9))

	// Member 0 crossed into cascade at step 2; member 1 stayed stable.
	g.Expect(r.CrossingSteps[energy.Cascade]).To(Equal([]int{2}))
	g.Expect(r.CrossingProbability(energy.Cascade)).To(Equal(0.5))
	g.Expect(r.CrossingProbability(energy.Stress)).To(Equal(0.5))

	g.Expect(r.MeanFinalRunaway()).To(BeNumerically("~", 0.45, 1e-12))
}

func TestReduceSkippedPhasesStillCross(t *testing.T) {
	g := NewWithT(t)

	// A jump straight from stable to cascade records a first crossing for
	// every intermediate phase at the same step.
	outcomes := []MemberOutcome{
		{Index: 0, Trajectory: trajFromTotals(t, []float64{100, 350}, 0.5)},
	}
	r := Reduce(outcomes)

	for _, p := range []energy.PhaseLabel{energy.Stress, energy.Coupling, energy.Amplification, energy.Cascade} {
		g.Expect(r.CrossingSteps[p]).To(Equal([]int{1}), "phase %v", p)
	}
}

func TestPercentileInterpolation(t *testing.T) {
	g := NewWithT(t)

	sorted := []float64{10, 20, 30, 40, 50}
	g.Expect(percentile(sorted, 0)).To(Equal(10.0))
	g.Expect(percentile(sorted, 50)).To(Equal(30.0))
	g.Expect(percentile(sorted, 100)).To(Equal(50.0))
	g.Expect(percentile(sorted, 25)).To(Equal(20.0))
	g.Expect(percentile(sorted, 95)).To(BeNumerically("~", 48.0, 1e-9))
	g.Expect(percentile([]float64{7}, 95)).To(Equal(7.0))
	g.Expect(math.IsNaN(percentile(nil, 50))).To(BeTrue())
}

func TestDriverRunProducesBands(t *testing.T) {
	g := NewWithT(t)

	d := NewDriver(smallConfig(), nil, zerolog.Nop())
	r, err := d.Run(context.Background())
	g.Expect(err).NotTo(HaveOccurred())

	g.Expect(r.Members).To(Equal(8))
	g.Expect(r.Invalid).To(BeZero())
	g.Expect(r.Bands).To(HaveLen(51)) // initial snapshot plus 50 steps

	for _, b := range r.Bands {
		g.Expect(b.P5).To(BeNumerically("<=", b.P25))
		g.Expect(b.P25).To(BeNumerically("<=", b.P50))
		g.Expect(b.P50).To(BeNumerically("<=", b.P75))
		g.Expect(b.P75).To(BeNumerically("<=", b.P95))
	}
	g.Expect(r.FinalRunaway).To(HaveLen(8))
}

func TestDriverRunIsDeterministic(t *testing.T) {
	g := NewWithT(t)

	run := func() *Result {
		d := NewDriver(smallConfig(), nil, zerolog.Nop())
		r, err := d.Run(context.Background())
		g.Expect(err).NotTo(HaveOccurred())
		return r
	}

	a, b := run(), run()
	g.Expect(a.Bands).To(Equal(b.Bands))
	g.Expect(a.FinalRunaway).To(Equal(b.FinalRunaway))
}

func TestMemberIndependence(t *testing.T) {
	g := NewWithT(t)

	// A member's trajectory depends only on its index and the config,
	// never on how many other members ran beside it.
	totalsOf := func(cfg *config.Config, idx int) []float64 {
		d := NewDriver(cfg, nil, zerolog.Nop())
		o := d.runMember(context.Background(), idx)
		g.Expect(o.Err).NotTo(HaveOccurred())
		out := make([]float64, o.Trajectory.Len())
		for i, snap := range o.Trajectory.Snapshots {
			out[i] = snap.State.Total()
		}
		return out
	}

	small := smallConfig()
	big := smallConfig()
	big.Ensemble.Members = 64
	big.Ensemble.Workers = 1

	g.Expect(totalsOf(small, 3)).To(Equal(totalsOf(big, 3)))
	g.Expect(totalsOf(small, 3)).NotTo(Equal(totalsOf(small, 4)))
}

func TestDriverRecordsInvalidMembers(t *testing.T) {
	g := NewWithT(t)

	// Exactly one member receives a diverging source; the rest run clean.
	var mu sync.Mutex
	handed := 0
	factory := func() forcing.Source {
		mu.Lock()
		defer mu.Unlock()
		handed++
		if handed == 1 {
			return forcing.Constant{Sample: energy.ForcingSample{SolarFlux: math.Inf(1)}}
		}
		return forcing.NewBaseline(1.0 / 12)
	}

	d := NewDriver(smallConfig(), factory, zerolog.Nop())
	r, err := d.Run(context.Background())
	g.Expect(err).NotTo(HaveOccurred())

	g.Expect(r.Invalid).To(Equal(1))
	g.Expect(r.InvalidCauses).To(HaveLen(1))
	g.Expect(r.FinalRunaway).To(HaveLen(7))
}

func TestDriverAllMembersInvalid(t *testing.T) {
	g := NewWithT(t)

	factory := func() forcing.Source {
		return forcing.Constant{Sample: energy.ForcingSample{SolarFlux: math.Inf(1)}}
	}

	d := NewDriver(smallConfig(), factory, zerolog.Nop())
	r, err := d.Run(context.Background())
	g.Expect(err).To(MatchError(ErrAllMembersInvalid))
	g.Expect(r).NotTo(BeNil())
	g.Expect(r.Invalid).To(Equal(8))
}

func TestDriverHonorsCancellation(t *testing.T) {
	g := NewWithT(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := smallConfig()
	cfg.Ensemble.Members = 64
	d := NewDriver(cfg, nil, zerolog.Nop())
	_, err := d.Run(ctx)
	g.Expect(err).To(MatchError(context.Canceled))
}

func TestDriverRejectsZeroMembers(t *testing.T) {
	g := NewWithT(t)

	cfg := smallConfig()
	cfg.Ensemble.Members = 0
	d := NewDriver(cfg, nil, zerolog.Nop())
	_, err := d.Run(context.Background())
	g.Expect(err).To(HaveOccurred())
}

func TestSampleRealizationLeavesBaseUntouched(t *testing.T) {
	g := NewWithT(t)

	cfg := smallConfig()
	cfg.Ensemble.Distributions = map[string]config.Dist{
		"kappa":             {Mean: 0.001, Low: 0.0005, High: 0.0015},
		"retention.ceiling": {Mean: 400, Low: 360, High: 440},
		"decay.magnetic":    {Mean: 0.02, Low: 0.01, High: 0.03},
	}

	rng := rand.New(rand.NewSource(7))
	out := sampleRealization(cfg, rng)

	g.Expect(out).NotTo(BeIdenticalTo(cfg))
	g.Expect(cfg.Kappa).To(Equal(config.Default().Kappa))
	g.Expect(cfg.Retention.Ceiling).To(Equal(config.Default().Retention.Ceiling))
	g.Expect(cfg.SubsystemDecay[energy.Magnetic]).To(Equal(0.02))

	// The realization drew values near the configured means.
	g.Expect(out.Kappa).To(BeNumerically("~", 0.001, 0.001))
	g.Expect(out.Retention.Ceiling).To(BeNumerically("~", 400, 80))
	g.Expect(out.SubsystemDecay[energy.Magnetic]).To(BeNumerically("~", 0.02, 0.02))
}
