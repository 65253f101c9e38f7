package energy

import "math"

// RunawayEstimator computes the instantaneous probability of irreversible
// cascade onset from total system energy, following a
// Dreicer-Connor-Hastie-style formulation. The expression is only
// meaningful above the critical threshold; at or below it the probability
// is defined as exactly zero.
type RunawayEstimator struct {
	Kappa float64
}

// Probability returns 1 - exp(-kappa*(total-crit)^2) for total > crit,
// else 0. Crit is time-varying and supplied per step by the caller.
func (r RunawayEstimator) Probability(total, crit float64) float64 {
	if total <= crit {
		return 0
	}
	d := total - crit
	return 1 - math.Exp(-r.Kappa*d*d)
}
