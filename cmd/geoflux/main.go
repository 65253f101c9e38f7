package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/guptarohit/asciigraph"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tlazar/geoflux/internal/analysis"
	"github.com/tlazar/geoflux/internal/config"
	"github.com/tlazar/geoflux/internal/energy"
	"github.com/tlazar/geoflux/internal/engine"
	"github.com/tlazar/geoflux/internal/ensemble"
	"github.com/tlazar/geoflux/internal/export"
	"github.com/tlazar/geoflux/internal/forcing"
	"github.com/tlazar/geoflux/internal/storage"
	"github.com/tlazar/geoflux/internal/tui"
)

var (
	dataPath     string
	configFile   string
	steps        int
	seed         int64
	members      int
	workers      int
	modulators   []string
	noSave       bool
	format       string
	frameRate    int
	perturbation float64
	verbose      bool

	log zerolog.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "geoflux",
		Short: "multi-system energy convergence simulator",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := zerolog.InfoLevel
			if verbose {
				level = zerolog.DebugLevel
			}
			log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
				Level(level).With().Timestamp().Logger()
		},
	}
	rootCmd.PersistentFlags().StringVar(&dataPath, "data", "geoflux.db", "run-log database path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run one convergence trajectory",
		RunE:  runTrajectory,
	}
	addRunFlags(runCmd)
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "skip the run log")

	ensembleCmd := &cobra.Command{
		Use:   "ensemble",
		Short: "run a Monte Carlo ensemble",
		RunE:  runEnsemble,
	}
	addRunFlags(ensembleCmd)
	ensembleCmd.Flags().IntVar(&members, "members", 0, "ensemble size (0 = config value)")
	ensembleCmd.Flags().IntVar(&workers, "workers", 0, "parallel workers (0 = config value)")
	ensembleCmd.Flags().BoolVar(&noSave, "no-save", false, "skip the run log")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVar(&format, "format", "json", "json or csv")

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a stored run's total energy",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "run with live terminal view",
		RunE:  runLive,
	}
	addRunFlags(liveCmd)
	liveCmd.Flags().IntVar(&frameRate, "fps", 30, "steps per second")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "spectral and sensitivity diagnostics",
		Args:  cobra.MaximumNArgs(1),
		RunE:  analyzeRun,
	}
	addRunFlags(analyzeCmd)
	analyzeCmd.Flags().Float64Var(&perturbation, "perturbation", 1e-6, "initial perturbation for the divergence estimate")

	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "write the default configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.Save(args[0], config.Default())
		},
	}

	rootCmd.AddCommand(runCmd, ensembleCmd, listCmd, exportCmd, plotCmd, liveCmd, analyzeCmd, initCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file (yaml)")
	cmd.Flags().IntVar(&steps, "steps", 0, "steps to simulate (0 = config value)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "rng seed (0 = config value)")
	cmd.Flags().StringSliceVar(&modulators, "modulators", nil, "enabled modulators (lunar, planetary, solar_am, debris)")
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	if cmd.Flags().Changed("steps") {
		cfg.Steps = steps
	}
	if cmd.Flags().Changed("seed") {
		cfg.Seed = seed
	}
	if cmd.Flags().Changed("modulators") {
		cfg.Modulators = modulators
	}
	return cfg, nil
}

func runTrajectory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	eng, err := engine.FromConfig(cfg, cfg.Seed)
	if err != nil {
		return err
	}

	start := time.Now()
	traj, runErr := eng.Run(cmd.Context(), cfg.InitialState(), cfg.Steps, forcing.NewBaseline(cfg.Dt))
	log.Info().Int("steps", traj.Len()-1).Dur("elapsed", time.Since(start)).Msg("run complete")

	rec := export.FromTrajectory(traj, cfg.Dt)
	if !noSave {
		id, err := saveTrajectory(cfg, rec)
		if err != nil {
			return err
		}
		fmt.Printf("run id: %s\n", id)
	}

	printTrajectorySummary(traj)
	if runErr != nil {
		return fmt.Errorf("run aborted: %w", runErr)
	}
	return nil
}

func saveTrajectory(cfg *config.Config, rec export.TrajectoryRecord) (string, error) {
	store, err := storage.Open(dataPath)
	if err != nil {
		return "", err
	}
	defer store.Close()

	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}
	return store.SaveTrajectory(rec, cfg.Seed, cfg.Steps, string(raw))
}

func printTrajectorySummary(traj *energy.Trajectory) {
	final := traj.Final()
	if final == nil {
		return
	}

	totals := make([]float64, traj.Len())
	for i, snap := range traj.Snapshots {
		totals[i] = snap.State.Total()
	}
	fmt.Println(asciigraph.Plot(totals, asciigraph.Height(12), asciigraph.Width(72), asciigraph.Caption("total system energy")))
	fmt.Println()

	fmt.Printf("final total:   %.2f\n", final.State.Total())
	fmt.Printf("final phase:   %s\n", final.Phase)
	fmt.Printf("runaway prob:  %.5f\n", final.Runaway)
	fmt.Printf("stability:     %.3f\n", final.Stability)

	var occupancy []string
	for p := energy.Stable; p < energy.NumPhases; p++ {
		if n := final.State.PhaseCounts[p]; n > 0 {
			occupancy = append(occupancy, fmt.Sprintf("%s=%d", p, n))
		}
	}
	fmt.Printf("phase steps:   %s\n", strings.Join(occupancy, " "))
	if traj.Invalid {
		fmt.Printf("INVALID at step %d: %v\n", traj.FailStep, traj.Cause)
	}
}

func runEnsemble(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("members") {
		cfg.Ensemble.Members = members
	}
	if cmd.Flags().Changed("workers") {
		cfg.Ensemble.Workers = workers
	}

	driver := ensemble.NewDriver(cfg, nil, log)

	start := time.Now()
	result, err := driver.Run(cmd.Context())
	if err != nil {
		return err
	}
	log.Info().Dur("elapsed", time.Since(start)).Msg("ensemble complete")

	rec := export.FromResult(result)
	if !noSave {
		store, err := storage.Open(dataPath)
		if err != nil {
			return err
		}
		defer store.Close()
		raw, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		id, err := store.SaveEnsemble(rec, cfg.Seed, cfg.Steps, string(raw))
		if err != nil {
			return err
		}
		fmt.Printf("run id: %s\n", id)
	}

	printEnsembleSummary(result)
	return nil
}

func printEnsembleSummary(r *ensemble.Result) {
	fmt.Printf("members: %d (%d invalid)\n", r.Members, r.Invalid)
	fmt.Printf("mean final runaway: %.5f\n", r.MeanFinalRunaway())
	fmt.Println()

	if len(r.Bands) > 0 {
		last := r.Bands[len(r.Bands)-1]
		fmt.Printf("final total energy percentiles:\n")
		fmt.Printf("  p5=%.2f  p25=%.2f  p50=%.2f  p75=%.2f  p95=%.2f\n",
			last.P5, last.P25, last.P50, last.P75, last.P95)

		median := make([]float64, len(r.Bands))
		for i, b := range r.Bands {
			median[i] = b.P50
		}
		fmt.Println()
		fmt.Println(asciigraph.Plot(median, asciigraph.Height(12), asciigraph.Width(72), asciigraph.Caption("median total energy")))
	}

	fmt.Println()
	fmt.Println("phase crossing probability:")
	for p := energy.Stress; p <= energy.Cascade; p++ {
		fmt.Printf("  %-14s %.1f%%\n", p.String(), 100*r.CrossingProbability(p))
	}
}

func listRuns(cmd *cobra.Command, args []string) error {
	store, err := storage.Open(dataPath)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs stored")
		return nil
	}

	for _, run := range runs {
		fmt.Printf("%s  %-8s  %s  seed=%d steps=%s members=%d invalid=%d\n",
			run.ID, run.Kind, humanize.Time(run.CreatedAt),
			run.Seed, humanize.Comma(int64(run.Steps)), run.Members, run.Invalid)
	}
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	store, err := storage.Open(dataPath)
	if err != nil {
		return err
	}
	defer store.Close()

	id := args[0]
	kind, err := store.Kind(id)
	if err != nil {
		return err
	}

	if kind == "ensemble" {
		rec, err := store.LoadEnsemble(id)
		if err != nil {
			return err
		}
		return export.WriteJSON(os.Stdout, rec)
	}

	rec, err := store.LoadTrajectory(id)
	if err != nil {
		return err
	}
	switch format {
	case "csv":
		return export.WriteCSV(os.Stdout, rec, energy.CoreSubsystems())
	default:
		return export.WriteJSON(os.Stdout, rec)
	}
}

func plotRun(cmd *cobra.Command, args []string) error {
	store, err := storage.Open(dataPath)
	if err != nil {
		return err
	}
	defer store.Close()

	id := args[0]
	kind, err := store.Kind(id)
	if err != nil {
		return err
	}

	var totals []float64
	caption := "total system energy"
	if kind == "ensemble" {
		rec, err := store.LoadEnsemble(id)
		if err != nil {
			return err
		}
		for _, b := range rec.Bands {
			totals = append(totals, b.P50)
		}
		caption = "median total energy"
	} else {
		rec, err := store.LoadTrajectory(id)
		if err != nil {
			return err
		}
		for _, snap := range rec.Snapshots {
			totals = append(totals, snap.Total)
		}
	}

	if len(totals) < 2 {
		return fmt.Errorf("run %s has no plottable data", id)
	}
	fmt.Println(asciigraph.Plot(totals, asciigraph.Height(14), asciigraph.Width(76), asciigraph.Caption(caption)))
	return nil
}

// analyzeRun diagnoses either a stored run's trajectory or, with no run ID,
// a fresh run under the current configuration.
func analyzeRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	var totals []float64
	if len(args) == 1 {
		store, err := storage.Open(dataPath)
		if err != nil {
			return err
		}
		defer store.Close()
		rec, err := store.LoadTrajectory(args[0])
		if err != nil {
			return err
		}
		for _, snap := range rec.Snapshots {
			totals = append(totals, snap.Total)
		}
	} else {
		eng, err := engine.FromConfig(cfg, cfg.Seed)
		if err != nil {
			return err
		}
		traj, err := eng.Run(cmd.Context(), cfg.InitialState(), cfg.Steps, forcing.NewBaseline(cfg.Dt))
		if err != nil {
			return fmt.Errorf("analysis run aborted: %w", err)
		}
		for _, snap := range traj.Snapshots {
			totals = append(totals, snap.State.Total())
		}
	}

	peaks := analysis.DominantPeriods(totals, cfg.Dt, 5)
	if len(peaks) == 0 {
		fmt.Println("no resolvable oscillations")
	} else {
		fmt.Println("dominant periods (simulation time units):")
		for _, p := range peaks {
			fmt.Printf("  %8.2f  power=%.1f\n", p.Period, p.Power)
		}
	}

	start := time.Now()
	rate, err := analysis.DivergenceRate(cmd.Context(), cfg, perturbation)
	if err != nil {
		return err
	}
	log.Debug().Dur("elapsed", time.Since(start)).Msg("divergence estimate complete")

	fmt.Printf("\ndivergence rate: %+.4f per time unit ", rate)
	if rate > 0 {
		fmt.Println("(perturbations grow)")
	} else {
		fmt.Println("(perturbations damp out)")
	}
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	eng, err := engine.FromConfig(cfg, cfg.Seed)
	if err != nil {
		return err
	}

	model := tui.New(
		eng,
		cfg.InitialState(),
		cfg.Steps,
		frameRate,
		func() forcing.Source { return forcing.NewBaseline(cfg.Dt) },
		cfg.ECritAt(),
		energy.RunawayEstimator{Kappa: cfg.Kappa}.Probability,
	)

	p := tea.NewProgram(model)
	_, err = p.Run()
	return err
}
