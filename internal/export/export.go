// Package export renders trajectories and ensemble results as serializable
// records for external reporting and visualization collaborators. The core
// performs no rendering itself.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"github.com/tlazar/geoflux/internal/energy"
	"github.com/tlazar/geoflux/internal/ensemble"
)

// SnapshotRecord is one serialized trajectory entry.
type SnapshotRecord struct {
	Step              int                `json:"step"`
	Time              float64            `json:"time"`
	Subsystems        map[string]float64 `json:"subsystems"`
	Zones             map[string]float64 `json:"zones"`
	Total             float64            `json:"total"`
	Phase             string             `json:"phase"`
	Runaway           float64            `json:"runaway"`
	Stability         float64            `json:"stability"`
	DistanceToTipping float64            `json:"distance_to_tipping"`
}

// TrajectoryRecord is the serializable form of one run.
type TrajectoryRecord struct {
	RunID     string           `json:"run_id,omitempty"`
	Valid     bool             `json:"valid"`
	FailStep  int              `json:"fail_step,omitempty"`
	Cause     string           `json:"cause,omitempty"`
	Snapshots []SnapshotRecord `json:"snapshots"`
}

// FromTrajectory converts a trajectory, using dt to derive timestamps.
func FromTrajectory(traj *energy.Trajectory, dt float64) TrajectoryRecord {
	rec := TrajectoryRecord{
		Valid:     !traj.Invalid,
		FailStep:  traj.FailStep,
		Snapshots: make([]SnapshotRecord, 0, traj.Len()),
	}
	if traj.Cause != nil {
		rec.Cause = traj.Cause.Error()
	}
	for _, snap := range traj.Snapshots {
		subs := make(map[string]float64, len(snap.State.Order()))
		for sub, v := range snap.State.SubsystemMap() {
			subs[string(sub)] = v
		}
		zones := make(map[string]float64, int(energy.NumZones))
		for z := energy.Polar; z < energy.NumZones; z++ {
			zones[z.String()] = snap.State.Zones[z]
		}
		rec.Snapshots = append(rec.Snapshots, SnapshotRecord{
			Step:              snap.State.Step,
			Time:              float64(snap.State.Step) * dt,
			Subsystems:        subs,
			Zones:             zones,
			Total:             snap.State.Total(),
			Phase:             snap.Phase.String(),
			Runaway:           snap.Runaway,
			Stability:         snap.Stability,
			DistanceToTipping: snap.DistanceToTipping,
		})
	}
	return rec
}

// EnsembleRecord is the serializable form of an aggregated ensemble.
type EnsembleRecord struct {
	Members       int                `json:"members"`
	Invalid       int                `json:"invalid"`
	InvalidCauses map[int]string     `json:"invalid_causes,omitempty"`
	Bands         []ensemble.Band    `json:"bands"`
	CrossingSteps map[string][]int   `json:"crossing_steps"`
	CrossingProb  map[string]float64 `json:"crossing_probability"`
	FinalRunaway  []float64          `json:"final_runaway"`
	MeanRunaway   float64            `json:"mean_final_runaway"`
}

// FromResult converts an ensemble result.
func FromResult(r *ensemble.Result) EnsembleRecord {
	rec := EnsembleRecord{
		Members:       r.Members,
		Invalid:       r.Invalid,
		InvalidCauses: r.InvalidCauses,
		Bands:         r.Bands,
		CrossingSteps: make(map[string][]int, len(r.CrossingSteps)),
		CrossingProb:  make(map[string]float64, len(r.CrossingSteps)),
		FinalRunaway:  r.FinalRunaway,
		MeanRunaway:   r.MeanFinalRunaway(),
	}
	for p := energy.Stress; p <= energy.Cascade; p++ {
		if steps, ok := r.CrossingSteps[p]; ok {
			rec.CrossingSteps[p.String()] = steps
		}
		rec.CrossingProb[p.String()] = r.CrossingProbability(p)
	}
	return rec
}

// WriteJSON writes any record with indentation.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteCSV writes a trajectory as rows of step, time, per-subsystem and
// per-zone energies, total, phase, and runaway probability.
func WriteCSV(w io.Writer, rec TrajectoryRecord, order []energy.Subsystem) error {
	cw := csv.NewWriter(w)

	header := []string{"step", "time"}
	for _, sub := range order {
		header = append(header, string(sub))
	}
	for z := energy.Polar; z < energy.NumZones; z++ {
		header = append(header, "zone_"+z.String())
	}
	header = append(header, "total", "phase", "runaway")
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, snap := range rec.Snapshots {
		row := []string{
			strconv.Itoa(snap.Step),
			strconv.FormatFloat(snap.Time, 'f', 6, 64),
		}
		for _, sub := range order {
			row = append(row, strconv.FormatFloat(snap.Subsystems[string(sub)], 'f', 6, 64))
		}
		for z := energy.Polar; z < energy.NumZones; z++ {
			row = append(row, strconv.FormatFloat(snap.Zones[z.String()], 'f', 6, 64))
		}
		row = append(row,
			strconv.FormatFloat(snap.Total, 'f', 6, 64),
			snap.Phase,
			strconv.FormatFloat(snap.Runaway, 'f', 6, 64),
		)
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
