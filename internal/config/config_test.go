package config

import (
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/tlazar/geoflux/internal/energy"
)

func TestDefaultIsBuildable(t *testing.T) {
	cfg := Default()

	if _, err := cfg.BuildTopology(); err != nil {
		t.Errorf("BuildTopology: %v", err)
	}
	if _, err := cfg.BuildRetention(); err != nil {
		t.Errorf("BuildRetention: %v", err)
	}
	if _, err := cfg.BuildResonance(); err != nil {
		t.Errorf("BuildResonance: %v", err)
	}
	if _, err := cfg.Thresholds(); err != nil {
		t.Errorf("Thresholds: %v", err)
	}

	state := cfg.InitialState()
	want := 180.0 + 92.5 + 118.0 + 110.0
	if math.Abs(state.Total()-want) > 1e-12 {
		t.Errorf("initial total = %v, want %v", state.Total(), want)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")

	cfg := Default()
	cfg.Steps = 42
	cfg.Modulators = []string{"lunar", "debris"}
	cfg.ECritSeries = []float64{300, 310, 320}
	cfg.Extensions = []Extension{{Name: "debris_belt", Decay: 0.03, Initial: 5, Beta: 0.01}}

	if err := Save(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if loaded.Steps != 42 {
		t.Errorf("Steps = %d, want 42", loaded.Steps)
	}
	if len(loaded.Modulators) != 2 || loaded.Modulators[0] != "lunar" {
		t.Errorf("Modulators = %v", loaded.Modulators)
	}
	if len(loaded.ECritSeries) != 3 || loaded.ECritSeries[2] != 320 {
		t.Errorf("ECritSeries = %v", loaded.ECritSeries)
	}
	if len(loaded.Extensions) != 1 || loaded.Extensions[0].Name != "debris_belt" {
		t.Errorf("Extensions = %v", loaded.Extensions)
	}
	if loaded.SubsystemDecay[energy.Magnetic] != 0.02 {
		t.Errorf("magnetic decay = %v, want 0.02", loaded.SubsystemDecay[energy.Magnetic])
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestCloneIsolation(t *testing.T) {
	cfg := Default()
	dup := cfg.Clone()

	dup.SubsystemDecay[energy.Magnetic] = 0.5
	dup.Initial[energy.Solar] = 999
	dup.PhaseThresholds[0] = 1
	dup.Ensemble.Distributions["kappa"] = Dist{Mean: 9}
	dup.Resonance.Periods[energy.Solar] = 1

	if cfg.SubsystemDecay[energy.Magnetic] != 0.02 {
		t.Error("decay mutation leaked into the base config")
	}
	if cfg.Initial[energy.Solar] != 180 {
		t.Error("initial mutation leaked into the base config")
	}
	if cfg.PhaseThresholds[0] != 120 {
		t.Error("threshold mutation leaked into the base config")
	}
	if cfg.Ensemble.Distributions["kappa"].Mean == 9 {
		t.Error("distribution mutation leaked into the base config")
	}
	if cfg.Resonance.Periods[energy.Solar] != 11 {
		t.Error("period mutation leaked into the base config")
	}
}

func TestThresholdsRequireExactlyFour(t *testing.T) {
	cfg := Default()
	cfg.PhaseThresholds = []float64{120, 150, 200}
	if _, err := cfg.Thresholds(); err == nil {
		t.Error("expected error for 3 thresholds")
	}
}

func TestECritAtScalarAndSeries(t *testing.T) {
	cfg := Default()

	at := cfg.ECritAt()
	if at(0) != 300 || at(5000) != 300 {
		t.Error("scalar e_crit should be constant")
	}

	cfg.ECritSeries = []float64{300, 310, 320}
	at = cfg.ECritAt()
	for step, want := range map[int]float64{0: 300, 1: 310, 2: 320, 3: 320, 100: 320} {
		if got := at(step); got != want {
			t.Errorf("ECritAt(%d) = %v, want %v", step, got, want)
		}
	}
}

func TestBuildResonanceRejectsUnknownModulator(t *testing.T) {
	cfg := Default()
	cfg.Modulators = []string{"lunar", "gravity_waves"}
	if _, err := cfg.BuildResonance(); err == nil {
		t.Error("expected error for unknown modulator")
	}
}

func TestBuildResonanceEnablesAll(t *testing.T) {
	cfg := Default()
	cfg.Modulators = []string{"lunar", "planetary", "solar_am", "debris"}

	m, err := cfg.BuildResonance()
	if err != nil {
		t.Fatalf("BuildResonance: %v", err)
	}
	// All four modulators are near 1 at t=0; their composition must be too.
	if mod := m.Modulation(0); math.Abs(mod-1) > 0.1 {
		t.Errorf("composed modulation at t=0 = %v, want ~1", mod)
	}
}

func TestBuildTopologyRejectsBadMatrix(t *testing.T) {
	cfg := Default()
	cfg.ZoneCoupling = [][]float64{{0, 1}, {1, 0}}
	if _, err := cfg.BuildTopology(); err == nil {
		t.Error("expected error for non-4x4 matrix")
	}

	cfg = Default()
	cfg.ZoneWeights = map[energy.Subsystem][]float64{energy.Solar: {1, 2}}
	if _, err := cfg.BuildTopology(); err == nil {
		t.Error("expected error for short zone weights")
	}
}

func TestExtensionsJoinEveryMap(t *testing.T) {
	cfg := Default()
	cfg.Extensions = []Extension{{Name: "debris_belt", Decay: 0.03, Initial: 5, Beta: 0.01}}

	subs := cfg.Subsystems()
	if len(subs) != 5 || subs[4] != "debris_belt" {
		t.Fatalf("Subsystems() = %v", subs)
	}
	if cfg.DecayMap()["debris_belt"] != 0.03 {
		t.Error("extension decay missing")
	}
	if cfg.BetaMap()["debris_belt"] != 0.01 {
		t.Error("extension beta missing")
	}
	if cfg.InitialState().Get("debris_belt") != 5 {
		t.Error("extension initial energy missing")
	}
}

func TestDistSample(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	fixed := Dist{Mean: 7}
	if got := fixed.Sample(rng); got != 7 {
		t.Errorf("default distribution should return the mean, got %v", got)
	}

	uniform := Dist{Mean: 5, Low: 4, High: 6, Distribution: "uniform"}
	for i := 0; i < 1000; i++ {
		v := uniform.Sample(rng)
		if v < 4 || v > 6 {
			t.Fatalf("uniform sample %v outside [4, 6]", v)
		}
	}

	normal := Dist{Mean: 100, Low: 96, High: 104, Distribution: "normal"}
	sum := 0.0
	const n = 20000
	for i := 0; i < n; i++ {
		sum += normal.Sample(rng)
	}
	if mean := sum / n; math.Abs(mean-100) > 0.1 {
		t.Errorf("normal sample mean = %v, want ~100", mean)
	}
}
