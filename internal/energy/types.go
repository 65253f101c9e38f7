package energy

import "math"

// Subsystem identifies one coupled energy reservoir.
type Subsystem string

const (
	Solar       Subsystem = "solar"
	Magnetic    Subsystem = "magnetic"
	Atmospheric Subsystem = "atmospheric"
	Oceanic     Subsystem = "oceanic"
)

// CoreSubsystems returns the four always-present subsystems in canonical order.
func CoreSubsystems() []Subsystem {
	return []Subsystem{Solar, Magnetic, Atmospheric, Oceanic}
}

// Zone is one of the four spatial aggregation buckets.
type Zone int

const (
	Polar Zone = iota
	MidLatitude
	Equatorial
	OceanicZone
	NumZones
)

func (z Zone) String() string {
	switch z {
	case Polar:
		return "polar"
	case MidLatitude:
		return "mid-latitude"
	case Equatorial:
		return "equatorial"
	case OceanicZone:
		return "oceanic"
	}
	return "unknown"
}

// State is the unit of simulated time: per-subsystem retained energy,
// per-zone energy, and cumulative phase occupancy. Subsystem values are
// stored as an ordered slice so iteration order is deterministic.
type State struct {
	Step        int
	order       []Subsystem
	values      []float64
	Zones       [NumZones]float64
	PhaseCounts [NumPhases]int
}

// NewState creates a seed state over the given subsystems. The order slice
// is retained; callers must not mutate it afterwards.
func NewState(order []Subsystem, initial map[Subsystem]float64) *State {
	s := &State{
		order:  order,
		values: make([]float64, len(order)),
	}
	for i, sub := range order {
		s.values[i] = initial[sub]
	}
	return s
}

// Order returns the canonical subsystem ordering of this state.
func (s *State) Order() []Subsystem { return s.order }

func (s *State) Value(i int) float64       { return s.values[i] }
func (s *State) SetValue(i int, v float64) { s.values[i] = v }

// Get returns the retained energy of a subsystem, or 0 if absent.
func (s *State) Get(sub Subsystem) float64 {
	for i, o := range s.order {
		if o == sub {
			return s.values[i]
		}
	}
	return 0
}

// Total is the global system energy across all subsystems.
func (s *State) Total() float64 {
	sum := 0.0
	for _, v := range s.values {
		sum += v
	}
	return sum
}

// ZoneTotal is the energy summed across the zone lattice.
func (s *State) ZoneTotal() float64 {
	sum := 0.0
	for _, v := range s.Zones {
		sum += v
	}
	return sum
}

// Clone returns a deep copy; trajectory snapshots must never alias the
// engine's working state.
func (s *State) Clone() *State {
	c := &State{
		Step:        s.Step,
		order:       s.order,
		values:      make([]float64, len(s.values)),
		Zones:       s.Zones,
		PhaseCounts: s.PhaseCounts,
	}
	copy(c.values, s.values)
	return c
}

// IsFinite reports whether every subsystem and zone value is a finite number.
func (s *State) IsFinite() bool {
	for _, v := range s.values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	for _, v := range s.Zones {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// SubsystemMap materializes the subsystem energies as a map for export.
func (s *State) SubsystemMap() map[Subsystem]float64 {
	m := make(map[Subsystem]float64, len(s.order))
	for i, sub := range s.order {
		m[sub] = s.values[i]
	}
	return m
}

// ForcingSample is one timestep's external inputs. It is produced fresh each
// step and not retained beyond the step that consumes it.
type ForcingSample struct {
	SolarFlux            float64
	GeomagneticIndex     float64
	ThermosphericDensity float64
	OceanCirculation     float64

	// Extra carries forcing for any enabled extension subsystems.
	Extra map[Subsystem]float64
}

// BySubsystem routes the sample's fields to the subsystem they force.
func (f ForcingSample) BySubsystem(sub Subsystem) float64 {
	switch sub {
	case Solar:
		return f.SolarFlux
	case Magnetic:
		return f.GeomagneticIndex
	case Atmospheric:
		return f.ThermosphericDensity
	case Oceanic:
		return f.OceanCirculation
	}
	return f.Extra[sub]
}

// Snapshot is one annotated trajectory entry.
type Snapshot struct {
	State   *State
	Phase   PhaseLabel
	Runaway float64

	// Stability is the retention/dissipation balance at this step
	// (>1 accumulating, <1 dissipating).
	Stability float64
	// DistanceToTipping is (cascadeThreshold - total) / cascadeThreshold.
	DistanceToTipping float64
}

// Trajectory is the ordered, append-only log of one run. Once a run
// terminates the trajectory is read-only.
type Trajectory struct {
	Snapshots []Snapshot
	Invalid   bool
	FailStep  int
	Cause     error
}

func (t *Trajectory) Append(s Snapshot) { t.Snapshots = append(t.Snapshots, s) }
func (t *Trajectory) Len() int          { return len(t.Snapshots) }

// Final returns the last snapshot, or nil for an empty trajectory.
func (t *Trajectory) Final() *Snapshot {
	if len(t.Snapshots) == 0 {
		return nil
	}
	return &t.Snapshots[len(t.Snapshots)-1]
}

// MarkInvalid records a fatal numeric failure; the offending step and cause
// are preserved for diagnosis, never silently replaced.
func (t *Trajectory) MarkInvalid(step int, cause error) {
	t.Invalid = true
	t.FailStep = step
	t.Cause = cause
}
