package energy

import (
	"math"
	"testing"
)

func TestRunawayZeroAtOrBelowCritical(t *testing.T) {
	est := RunawayEstimator{Kappa: 0.001}

	for _, total := range []float64{0, 150, 299.99, 300} {
		if p := est.Probability(total, 300); p != 0 {
			t.Errorf("Probability(%v, 300) = %v, want exactly 0", total, p)
		}
	}
}

func TestRunawayReferenceValue(t *testing.T) {
	est := RunawayEstimator{Kappa: 0.001}

	got := est.Probability(400, 300)
	want := 1 - math.Exp(-10) // kappa*(400-300)^2 = 10
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("Probability(400, 300) = %v, want %v", got, want)
	}
	if got < 0.9999 {
		t.Errorf("Probability(400, 300) = %v, expected ~0.99995", got)
	}
}

func TestRunawayStrictlyIncreasingAboveCritical(t *testing.T) {
	est := RunawayEstimator{Kappa: 0.001}

	prev := 0.0
	for total := 301.0; total < 500; total += 1 {
		p := est.Probability(total, 300)
		if p <= prev {
			t.Fatalf("probability not strictly increasing at total=%v: %v <= %v", total, p, prev)
		}
		prev = p
	}
}

func TestRunawayTimeVaryingCritical(t *testing.T) {
	est := RunawayEstimator{Kappa: 0.001}

	// The same total is supercritical or not depending on the per-step crit.
	if p := est.Probability(320, 330); p != 0 {
		t.Errorf("expected 0 below the raised threshold, got %v", p)
	}
	if p := est.Probability(320, 300); p <= 0 {
		t.Errorf("expected positive probability above the lowered threshold, got %v", p)
	}
}
