package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	kitlog "github.com/go-kit/kit/log"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	aviary "github.com/Kenneth-T-Moore/om-Aviary"
)

var (
	propMapFile string
	grossMass   float64
	wingArea    float64
	numEngines  float64
	ratedPower  float64
	asCSV       bool
	timestamp   bool
	plot        bool
	quiet       bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mission",
		Short: "aircraft mission analysis over prescribed trajectories",
	}
	rootCmd.PersistentFlags().StringVar(&propMapFile, "propmap", "", "propeller performance map (csv)")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "suppress solver logging")

	runCmd := &cobra.Command{
		Use:   "run [mission.yaml]",
		Short: "solve the configured mission",
		Args:  cobra.ExactArgs(1),
		RunE:  runMission,
	}
	runCmd.Flags().Float64Var(&grossMass, "mass", 0, "gross mass (lbm), overrides the default")
	runCmd.Flags().Float64Var(&wingArea, "wing-area", 0, "wing area (ft**2), overrides the default")
	runCmd.Flags().Float64Var(&numEngines, "engines", 0, "engine count, overrides the default")
	runCmd.Flags().Float64Var(&ratedPower, "power", 0, "rated power per engine (hp), overrides the default")
	runCmd.Flags().BoolVar(&asCSV, "csv", false, "write the trajectory CSV")
	runCmd.Flags().BoolVar(&timestamp, "timestamp", false, "timestamp the trajectory CSV name")
	runCmd.Flags().BoolVar(&plot, "plot", false, "plot the altitude and throttle profiles")

	validateCmd := &cobra.Command{
		Use:   "validate [mission.yaml]",
		Short: "load and report a mission configuration",
		Args:  cobra.ExactArgs(1),
		RunE:  validateMission,
	}

	propmapCmd := &cobra.Command{
		Use:   "propmap",
		Short: "report the propeller map contents",
		RunE:  reportPropMap,
	}

	rootCmd.AddCommand(runCmd, validateCmd, propmapCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() kitlog.Logger {
	if quiet {
		return kitlog.NewNopLogger()
	}
	return kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stdout))
}

// buildModel assembles the aircraft inputs and subsystem builders shared by
// the commands. Flags left at zero keep the registry defaults.
func buildModel(logger kitlog.Logger) (*aviary.AircraftInputs, []aviary.SubsystemBuilder, error) {
	inputs := aviary.NewAircraftInputs(aviary.NewCoreRegistry())
	if grossMass > 0 {
		if err := inputs.Set(aviary.VarMass, grossMass, "lbm"); err != nil {
			return nil, nil, err
		}
	}
	if wingArea > 0 {
		if err := inputs.Set(aviary.VarWingArea, wingArea, "ft**2"); err != nil {
			return nil, nil, err
		}
	}
	if numEngines > 0 {
		if err := inputs.Set(aviary.VarNumEngines, numEngines, aviary.Unitless); err != nil {
			return nil, nil, err
		}
	}
	if ratedPower > 0 {
		if err := inputs.Set(aviary.VarEnginePowerMax, ratedPower, "hp"); err != nil {
			return nil, nil, err
		}
	}

	pm, err := loadPropMap(logger)
	if err != nil {
		return nil, nil, err
	}
	builders := []aviary.SubsystemBuilder{
		aviary.NewPolarAeroBuilder(),
		aviary.NewTurbopropBuilder(pm),
		aviary.NewTheveninBatteryBuilder(),
	}
	return inputs, builders, nil
}

func loadPropMap(logger kitlog.Logger) (*aviary.PropellerMap, error) {
	if propMapFile == "" {
		return aviary.DefaultPropellerMap(), nil
	}
	return aviary.LoadPropellerMap(propMapFile, logger)
}

func runMission(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	cfg, err := aviary.LoadMissionConfig(args[0])
	if err != nil {
		return err
	}
	inputs, builders, err := buildModel(logger)
	if err != nil {
		return err
	}
	conf := aviary.ExportConfig{Filename: "mission", AsCSV: asCSV, Timestamp: timestamp}
	m := aviary.NewMission(cfg, inputs, builders, conf, logger)
	if err := m.Run(); err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PHASE\tITERS\tRANGE(NM)\tDURATION(s)\tFUEL(lbm)")
	for _, pr := range m.Summary.Phases {
		fmt.Fprintf(w, "%s\t%d\t%.1f\t%.1f\t%.1f\n",
			pr.Name, pr.Iterations, pr.RangeFlown, pr.Duration, pr.FuelBurned)
	}
	fmt.Fprintf(w, "TOTAL\t\t%.1f\t%.1f\t%.1f\n",
		m.Summary.TotalRange, m.Summary.TotalDuration, m.Summary.TotalFuel)
	if err := w.Flush(); err != nil {
		return err
	}
	if m.Summary.TakeoffDistance > 0 {
		fmt.Printf("takeoff roll: %.0f ft\n", m.Summary.TakeoffDistance)
	}
	if cfg.PostMission.ConstrainRange {
		fmt.Printf("range residual: %+.2f NM\n", m.Summary.RangeResidual)
	}
	if cfg.PostMission.IncludeLanding {
		fmt.Printf("landing roll: %.0f ft\n", m.Summary.LandingDistance)
	}

	if plot && len(m.Trajectory) > 1 {
		alts := make([]float64, len(m.Trajectory))
		throttles := make([]float64, len(m.Trajectory))
		for i, ts := range m.Trajectory {
			alts[i] = ts.Altitude
			throttles[i] = ts.Throttle
		}
		fmt.Println()
		fmt.Println(asciigraph.Plot(alts,
			asciigraph.Height(12), asciigraph.Width(80),
			asciigraph.Caption("altitude (ft) vs node")))
		fmt.Println()
		fmt.Println(asciigraph.Plot(throttles,
			asciigraph.Height(8), asciigraph.Width(80),
			asciigraph.Caption("throttle vs node")))
	}
	return nil
}

func validateMission(cmd *cobra.Command, args []string) error {
	cfg, err := aviary.LoadMissionConfig(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("mission: %d phases, takeoff=%v, landing=%v\n",
		len(cfg.Phases), cfg.PreMission.IncludeTakeoff, cfg.PostMission.IncludeLanding)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PHASE\tNODES\tGROUND\tMACH\tALTITUDE(ft)\tTHROTTLE")
	for _, pc := range cfg.Phases {
		o := pc.UserOptions
		fmt.Fprintf(w, "%s\t%d\t%v\t%.3f-%.3f\t%.0f-%.0f\t%s\n",
			pc.Name, o.NumNodes(), o.GroundRoll,
			o.InitialMach, o.FinalMach,
			o.InitialAltitude, o.FinalAltitude,
			o.ThrottleEnforcement)
	}
	return w.Flush()
}

func reportPropMap(cmd *cobra.Command, args []string) error {
	pm, err := loadPropMap(newLogger())
	if err != nil {
		return err
	}
	fmt.Printf("mach type: %s\n", pm.MachType)
	for _, pv := range []aviary.PropVar{aviary.PropMach, aviary.PropCP, aviary.PropCT, aviary.PropJ} {
		name, found := pm.Variables[pv]
		if !found {
			continue
		}
		fmt.Printf("  %s (%s): %d points\n", pv, name, len(pm.Data[pv]))
	}
	return nil
}
