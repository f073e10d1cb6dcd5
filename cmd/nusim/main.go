package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/san-kum/nusim/internal/config"
	"github.com/san-kum/nusim/internal/dynamo"
	"github.com/san-kum/nusim/internal/experiment"
	"github.com/san-kum/nusim/internal/export"
	"github.com/san-kum/nusim/internal/lv"
	"github.com/san-kum/nusim/internal/osc"
	"github.com/san-kum/nusim/internal/storage"
	"github.com/san-kum/nusim/internal/viz"
)

var (
	dataDir    string
	verbose    bool
	configFile string
	preset     string
	integrator string
	baseline   float64
	dt         float64
	archive    string
	atmos      bool
	segment    float64
	theme      string
	output     string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "nusim",
		Short: "neutrino flavor oscillations with flavor-violating perturbations",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".nusim", "data directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging on stderr")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "propagate and store final flavor probabilities",
		Args:  cobra.NoArgs,
		RunE:  runExperiment,
	}
	addConfigFlags(runCmd)
	runCmd.Flags().StringVar(&archive, "archive", "", "also write the evolved system to this archive")

	probsCmd := &cobra.Command{
		Use:   "probs [archive]",
		Short: "print the flavor probabilities of an archived system",
		Args:  cobra.ExactArgs(1),
		RunE:  dumpProbabilities,
	}
	probsCmd.Flags().BoolVar(&atmos, "atm", false, "archive holds zenith bins")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run probabilities against energy",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run probabilities to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run metadata and probabilities to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}

	exportSVGCmd := &cobra.Command{
		Use:   "export-svg [run_id]",
		Short: "draw run probabilities against energy as SVG",
		Args:  cobra.ExactArgs(1),
		RunE:  exportSVG,
	}
	exportSVGCmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSYSTEM\tTYPE\tC_EMU\tC_MUTAU\tPOWER")
			for _, name := range config.ListPresets() {
				c := config.GetPreset(name)
				p := c.Perturbation
				fmt.Fprintf(w, "%s\t%s\t%s\t%g%+gi\t%g%+gi\t%d\n",
					name, c.System, c.NeutrinoType, p.CEMuRe, p.CEMuIm, p.CMuTauRe, p.CMuTauIm, p.EnergyPower)
			}
			return w.Flush()
		},
	}

	integratorsCmd := &cobra.Command{
		Use:   "integrators",
		Short: "list available integrators",
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range experiment.NewRegistry().ListIntegrators() {
				fmt.Println(name)
			}
		},
	}

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "propagate with live visualization",
		Args:  cobra.NoArgs,
		RunE:  runLive,
	}
	addConfigFlags(liveCmd)
	liveCmd.Flags().Float64Var(&segment, "segment", 0, "km propagated per frame (default dt)")
	liveCmd.Flags().StringVar(&theme, "theme", "cyberpunk", "color theme ("+strings.Join(viz.ThemeNames(), ", ")+")")

	rootCmd.AddCommand(runCmd, probsCmd, listCmd, plotCmd, exportCSVCmd, exportJSONCmd, exportSVGCmd, presetsCmd, integratorsCmd, liveCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addConfigFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	cmd.Flags().StringVar(&integrator, "integrator", "rk4", "integrator")
	cmd.Flags().Float64Var(&baseline, "baseline", config.DefaultBaselineKm, "baseline in km (vacuum)")
	cmd.Flags().Float64Var(&dt, "dt", config.DefaultDtKm, "step in km")
}

// loadConfig starts from the preset, then the config file, then any flag
// set on the command line.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}
	if configFile != "" {
		var err error
		cfg, err = config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}
	if cmd.Flags().Changed("integrator") {
		cfg.Propagation.Integrator = integrator
	}
	if cmd.Flags().Changed("baseline") {
		cfg.Propagation.BaselineKm = baseline
	}
	if cmd.Flags().Changed("dt") {
		cfg.Propagation.DtKm = dt
	}
	return cfg, cfg.Validate()
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func runExperiment(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	exp, err := experiment.New(cfg, experiment.WithLogger(slog.Default()))
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Printf("running %s propagation...\n", cfg.System)
	start := time.Now()

	out, err := exp.Run(ctx)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	runID, err := st.Save(out.Meta, out.Table)
	if err != nil {
		return err
	}

	if archive != "" {
		ar := storage.NewArchive()
		if a := exp.Atmospheric(); a != nil {
			a.WriteArchive(ar)
		} else {
			exp.System().WriteArchive(ar, "/")
		}
		if err := ar.Save(archive); err != nil {
			return err
		}
		fmt.Printf("archive: %s\n", archive)
	}

	steps := 0
	for _, r := range out.Results {
		steps += r.StepsTaken
	}

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("steps: %d\n", steps)
	fmt.Println("\nmetrics:")
	names := make([]string, 0, len(out.Meta.Metrics))
	for name := range out.Meta.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %s: %.3e\n", name, out.Meta.Metrics[name])
	}
	return nil
}

func dumpProbabilities(cmd *cobra.Command, args []string) error {
	ar, err := storage.LoadArchive(args[0])
	if err != nil {
		return err
	}
	if !atmos {
		s, err := lv.LoadSystem(ar, "/", osc.WithLogger(slog.Default()))
		if err != nil {
			return err
		}
		return s.DumpProbabilities(os.Stdout)
	}

	a, err := lv.LoadAtmospheric(ar, osc.WithLogger(slog.Default()))
	if err != nil {
		return err
	}
	for i, s := range a.Systems() {
		fmt.Printf("# cosz %g\n", a.CosZenith(i))
		if err := s.DumpProbabilities(os.Stdout); err != nil {
			return err
		}
	}
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSYSTEM\tTIME\tTYPE\tNODES\tBASELINE\tINTEG\tLV")

	for _, run := range runs {
		lvState := "off"
		if run.Perturbation.Enabled {
			lvState = fmt.Sprintf("E^%d", run.Perturbation.EnergyPower)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%.0fkm\t%s\t%s\n",
			run.ID,
			run.System,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.NeutrinoType,
			run.Nodes,
			run.BaselineKm,
			run.Integrator,
			lvState,
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	table, err := st.LoadTable(runID)
	if err != nil {
		return err
	}
	if len(table.Rows) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("system: %s\n", meta.System)
	fmt.Printf("rows: %d\n\n", len(table.Rows))

	cols := viz.FlavorColumns(*table)
	for _, col := range cols {
		graph, err := viz.PlotColumns(*table, []string{col}, viz.PlotOptions{
			Width:   80,
			Height:  10,
			Caption: "P(" + col + ") by energy node",
		})
		if err != nil {
			return err
		}
		fmt.Println(graph)
		fmt.Println()
	}
	return nil
}

func exportCSV(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	table, err := st.LoadTable(args[0])
	if err != nil {
		return err
	}
	if len(table.Rows) == 0 {
		return fmt.Errorf("no data to export")
	}
	return storage.WriteCSV(os.Stdout, *table)
}

func exportJSON(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	table, err := st.LoadTable(runID)
	if err != nil {
		return err
	}
	return storage.ExportJSON(os.Stdout, *meta, *table)
}

func exportSVG(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	if meta.System != "vacuum" {
		return fmt.Errorf("svg export supports vacuum runs only, got %s", meta.System)
	}
	table, err := st.LoadTable(runID)
	if err != nil {
		return err
	}

	svg, err := export.SpectrumSVG(*table, viz.FlavorColumns(*table), export.SpectrumOptions{
		Width:  800,
		Height: 400,
		LogX:   true,
	})
	if err != nil {
		return err
	}
	if output == "" {
		_, err = fmt.Fprintln(os.Stdout, svg)
		return err
	}
	return os.WriteFile(output, []byte(svg), 0644)
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.System != "vacuum" {
		return fmt.Errorf("live view supports vacuum systems only, got %s", cfg.System)
	}

	// Warnings would corrupt the alternate screen.
	slog.SetDefault(slog.New(slog.DiscardHandler))

	exp, err := experiment.New(cfg, experiment.WithLogger(slog.Default()))
	if err != nil {
		return err
	}

	registry := experiment.NewRegistry()
	viz.SetTheme(theme)
	model := viz.NewModel(exp.System(), viz.LiveConfig{
		BaselineKm: cfg.Propagation.BaselineKm,
		SegmentKm:  segment,
		DtKm:       cfg.Propagation.DtKm,
		NewIntegrator: func() dynamo.Integrator {
			integ, _ := registry.GetIntegrator(cfg.Propagation.Integrator)
			return integ
		},
		Title: preset,
	})

	p := tea.NewProgram(model, tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return err
	}
	if m, ok := final.(viz.Model); ok && m.Err() != nil {
		return m.Err()
	}
	return nil
}
