package energy

import "fmt"

// ConfigError reports an invalid run configuration. It is returned at
// construction time and never surfaces mid-run.
type ConfigError struct {
	Field  string
	Reason string
}

func (e ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}

// DivergenceError reports a non-finite value that survived retention
// collapse. It is fatal for the run that produced it.
type DivergenceError struct {
	Step       int
	Subsystems map[Subsystem]float64
	Zones      [NumZones]float64
}

func (e DivergenceError) Error() string {
	return fmt.Sprintf("non-finite energy state at step %d: subsystems=%v zones=%v",
		e.Step, e.Subsystems, e.Zones)
}
