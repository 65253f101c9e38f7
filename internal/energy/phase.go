package energy

// PhaseLabel is one of five ordered qualitative system states keyed to
// total-energy thresholds.
type PhaseLabel int

const (
	Stable PhaseLabel = iota
	Stress
	Coupling
	Amplification
	Cascade
	NumPhases
)

func (p PhaseLabel) String() string {
	switch p {
	case Stable:
		return "stable"
	case Stress:
		return "stress"
	case Coupling:
		return "coupling"
	case Amplification:
		return "amplification"
	case Cascade:
		return "cascade"
	}
	return "unknown"
}

// DefaultThresholds are the phase boundaries from the reference model.
func DefaultThresholds() [4]float64 { return [4]float64{120, 150, 200, 300} }

// Classifier maps total system energy to a phase. With a zero hysteresis
// band classification is a pure function of the current total; with a
// positive band, downward transitions require the total to fall below
// threshold-band, which suppresses flicker under noise near a boundary.
type Classifier struct {
	thresholds [4]float64
	hysteresis float64
}

// NewClassifier validates that thresholds are strictly increasing and the
// band is non-negative.
func NewClassifier(thresholds [4]float64, hysteresis float64) (*Classifier, error) {
	for i := 1; i < len(thresholds); i++ {
		if thresholds[i] <= thresholds[i-1] {
			return nil, ConfigError{Field: "phase_thresholds", Reason: "must be strictly increasing"}
		}
	}
	if hysteresis < 0 {
		return nil, ConfigError{Field: "hysteresis", Reason: "must be non-negative"}
	}
	return &Classifier{thresholds: thresholds, hysteresis: hysteresis}, nil
}

// Classify is the pure, monotonic threshold mapping.
func (c *Classifier) Classify(total float64) PhaseLabel {
	switch {
	case total >= c.thresholds[3]:
		return Cascade
	case total >= c.thresholds[2]:
		return Amplification
	case total >= c.thresholds[1]:
		return Coupling
	case total >= c.thresholds[0]:
		return Stress
	default:
		return Stable
	}
}

// Next classifies relative to the previous phase, applying the hysteresis
// band to downward transitions only. Upward transitions are never delayed.
func (c *Classifier) Next(prev PhaseLabel, total float64) PhaseLabel {
	raw := c.Classify(total)
	if c.hysteresis == 0 || raw >= prev {
		return raw
	}
	// Dropping below a boundary: stay in prev unless clear of the band.
	idx := int(prev) - 1
	if idx >= 0 && idx < len(c.thresholds) && total > c.thresholds[idx]-c.hysteresis {
		return prev
	}
	return raw
}

// Threshold returns the lower boundary of the given phase; Stable has none.
func (c *Classifier) Threshold(p PhaseLabel) (float64, bool) {
	idx := int(p) - 1
	if idx < 0 || idx >= len(c.thresholds) {
		return 0, false
	}
	return c.thresholds[idx], true
}
