package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/daesim/internal/analysis"
	"github.com/san-kum/daesim/internal/config"
	"github.com/san-kum/daesim/internal/dynamo"
	"github.com/san-kum/daesim/internal/experiment"
	"github.com/san-kum/daesim/internal/export"
	"github.com/san-kum/daesim/internal/initfile"
	"github.com/san-kum/daesim/internal/models"
	"github.com/san-kum/daesim/internal/plt"
	"github.com/san-kum/daesim/internal/storage"
	"github.com/san-kum/daesim/internal/viz"
)

var (
	modelName   string
	solverName  string
	initPath    string
	resultPath  string
	dataDir     string
	metricsFile string
	configFile  string
	showUsage   bool
	verbose     bool
	quiet       bool
	// init
	outPath string
	preset  string
	start   float64
	stop    float64
	step    float64
	// plot and chart
	vars   []string
	phase  string
	width  int
	height int
	// analyze
	showSpectrum bool
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

// execute runs the command line and maps the outcome to an exit status.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "daesim: %v\n", err)
	}
	return dynamo.ExitCode(err)
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "daesim",
		Short:         "integrate a DAE model from an init file into a plot file",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runSimulation,
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return dynamo.ConfigError("parse arguments", "", err)
	})

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", config.DefaultDataDir, "run archive directory (empty disables archiving)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.Flags().StringVarP(&modelName, "model", "m", config.DefaultModel, "model to simulate")
	rootCmd.Flags().StringVar(&solverName, "solver", experiment.DefaultSolver, "solver")
	rootCmd.Flags().StringVarP(&initPath, "init", "f", "", "init file (default <model>_init.txt)")
	rootCmd.Flags().StringVarP(&resultPath, "result", "r", "", "result file (default <model>_res.plt)")
	rootCmd.Flags().StringVar(&metricsFile, "metrics-file", "", "write Prometheus textfile metrics here")
	rootCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.Flags().BoolVarP(&showUsage, "usage", "?", false, "print usage and exit")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not print the run summary")

	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "list models",
		Args:  cobra.NoArgs,
		RunE:  listModels,
	}

	initCmd := &cobra.Command{
		Use:   "init [model]",
		Short: "write a starter init file from the model's defaults",
		Args:  cobra.MaximumNArgs(1),
		RunE:  writeInitFile,
	}
	h := dynamo.DefaultHorizon()
	initCmd.Flags().StringVarP(&outPath, "output", "o", "", "output file (default <model>_init.txt)")
	initCmd.Flags().StringVar(&preset, "preset", "", "use a named horizon preset")
	initCmd.Flags().Float64Var(&start, "start", h.Start, "start time")
	initCmd.Flags().Float64Var(&stop, "stop", h.Stop, "stop time")
	initCmd.Flags().Float64Var(&step, "step", h.Step, "output interval")
	initCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")

	presetsCmd := &cobra.Command{
		Use:   "presets [model]",
		Short: "list horizon presets for a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			presets := config.ListPresets(args[0])
			if len(presets) == 0 {
				fmt.Fprintf(out, "no presets for model: %s\n", args[0])
				return nil
			}
			fmt.Fprintf(out, "presets for %s:\n", args[0])
			for _, p := range presets {
				hz, _ := config.GetPreset(args[0], p)
				fmt.Fprintf(out, "  %-10s start=%g stop=%g step=%g\n", p, hz.Start, hz.Stop, hz.Step)
			}
			return nil
		},
	}

	plotCmd := &cobra.Command{
		Use:   "plot [file.plt]",
		Short: "plot datasets of a result file in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE:  plotFile,
	}
	plotCmd.Flags().StringSliceVar(&vars, "var", nil, "datasets to plot (default all)")
	plotCmd.Flags().StringVar(&phase, "phase", "", "phase portrait of two datasets, e.g. x,v")
	plotCmd.Flags().IntVar(&width, "width", viz.DefaultWidth, "plot width")
	plotCmd.Flags().IntVar(&height, "height", viz.DefaultHeight, "plot height")

	chartCmd := &cobra.Command{
		Use:   "chart [file.plt]",
		Short: "render datasets of a result file to an image",
		Args:  cobra.ExactArgs(1),
		RunE:  chartFile,
	}
	chartCmd.Flags().StringVarP(&outPath, "output", "o", "", "image file; format from extension (default <file>.png)")
	chartCmd.Flags().StringSliceVar(&vars, "var", nil, "datasets to draw (default all)")
	chartCmd.Flags().StringVar(&phase, "phase", "", "phase portrait of two datasets, e.g. x,v")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [file.plt]",
		Short: "frequency analysis of result datasets",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeFile,
	}
	analyzeCmd.Flags().StringSliceVar(&vars, "var", nil, "datasets to analyze (default all)")
	analyzeCmd.Flags().BoolVar(&showSpectrum, "spectrum", false, "plot the amplitude spectrum")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list archived runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "print an archived run as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := storage.New(dataDir)
			if err := st.ExportJSON(args[0], cmd.OutOrStdout()); err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return dynamo.ConfigError("show run", args[0], err)
				}
				return dynamo.ResourceError("show run", args[0], err)
			}
			return nil
		},
	}

	rootCmd.AddCommand(modelsCmd, initCmd, presetsCmd, plotCmd, chartCmd, analyzeCmd, listCmd, showCmd)
	return rootCmd
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	if verbose {
		lvl = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// loadConfig returns the file configuration, or defaults when no file was
// given, with explicitly set flags applied on top.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		var err error
		if cfg, err = config.Load(configFile); err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("model") {
		cfg.Model = modelName
	}
	if flags.Changed("init") {
		cfg.InitFile = initPath
	}
	if flags.Changed("result") {
		cfg.ResultFile = resultPath
	}
	if flags.Changed("data") {
		cfg.DataDir = dataDir
	}
	if flags.Changed("metrics-file") {
		cfg.MetricsFile = metricsFile
	}
	return cfg, nil
}

func runSimulation(cmd *cobra.Command, args []string) error {
	if showUsage {
		return cmd.Usage()
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg.LogLevel)

	exp := experiment.New(experiment.Config{
		Model:       cfg.Model,
		Solver:      solverName,
		InitFile:    cfg.InitFile,
		ResultFile:  cfg.ResultFile,
		DataDir:     cfg.DataDir,
		MetricsFile: cfg.MetricsFile,
	}, experiment.NewRegistry(), experiment.WithLogger(logger))

	out, err := exp.Run(cmd.Context())
	if quiet || out.Result == nil {
		return err
	}

	res := out.Result
	s := viz.Summary{
		Model:      out.Model,
		Phase:      res.Phase.String(),
		Failed:     err != nil,
		Steps:      res.Diagnostics.Steps,
		Rejected:   res.Diagnostics.Rejected,
		Residuals:  res.Diagnostics.ResidualEvals,
		Jacobians:  res.Diagnostics.JacobianEvals,
		Status:     res.Diagnostics.Status.String(),
		RunID:      out.RunID,
		Elapsed:    out.Elapsed,
		Metrics:    out.RowMetrics,
		Err:        err,
	}
	if out.Written {
		s.ResultFile = out.ResultFile
	}
	if res.Buffer != nil {
		s.Rows, s.Capacity = res.Buffer.Len(), res.Buffer.Cap()
		s.Trace = res.Buffer.Column(1)
	}
	fmt.Fprintln(cmd.OutOrStdout(), viz.RenderSummary(s))
	return err
}

func listModels(cmd *cobra.Command, args []string) error {
	reg := models.NewRegistry()
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tNX\tNY\tNP\tVARIABLES")
	for _, name := range reg.List() {
		b, err := reg.Get(name)
		if err != nil {
			return err
		}
		d := b.Dimensions()
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\n", name, d.NX, d.NY, d.NP, strings.Join(b.Metadata().VariableNames, " "))
	}
	return w.Flush()
}

func writeInitFile(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	model := cfg.Model
	if len(args) > 0 {
		model = args[0]
	}
	b, err := models.NewRegistry().Get(model)
	if err != nil {
		return dynamo.ConfigError("select model", "", err)
	}

	h := cfg.GetHorizon()
	if preset != "" {
		hz, ok := config.GetPreset(model, preset)
		if !ok {
			return dynamo.ConfigError("select preset", "", fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(model)))
		}
		h = dynamo.Horizon{Start: hz.Start, Stop: hz.Stop, Step: hz.Step}
	}
	flags := cmd.Flags()
	if flags.Changed("start") {
		h.Start = start
	}
	if flags.Changed("stop") {
		h.Stop = stop
	}
	if flags.Changed("step") {
		h.Step = step
	}

	path := outPath
	if path == "" {
		path = initfile.DefaultPath(model)
	}
	if err := initfile.WriteFile(path, b, h); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
	return nil
}

func readPlot(path string) (*plt.File, error) {
	f, err := plt.Read(path)
	if err != nil {
		return nil, dynamo.ConfigError("read plot file", path, err)
	}
	return f, nil
}

func splitPhase(arg string) (string, string, error) {
	x, y, ok := strings.Cut(arg, ",")
	if !ok || x == "" || y == "" {
		return "", "", dynamo.ConfigError("parse arguments", "", fmt.Errorf("--phase wants two dataset names, got %q", arg))
	}
	return strings.TrimSpace(x), strings.TrimSpace(y), nil
}

func plotFile(cmd *cobra.Command, args []string) error {
	f, err := readPlot(args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "file: %s\nrows: %d\n\n", args[0], f.IntervalSize)

	if phase != "" {
		xName, yName, err := splitPhase(phase)
		if err != nil {
			return err
		}
		s, err := export.PhaseSeries(f, xName, yName)
		if err != nil {
			return dynamo.ConfigError("plot", args[0], err)
		}
		portrait, err := viz.Phase(xName, s.X, yName, s.Y, width-12, height*2)
		if err != nil {
			return dynamo.ConfigError("plot", args[0], err)
		}
		fmt.Fprintln(out, portrait)
		return nil
	}

	series, err := export.TimeSeries(f, vars)
	if err != nil {
		return dynamo.ConfigError("plot", args[0], err)
	}
	plots := make([]viz.Series, len(series))
	for i, s := range series {
		plots[i] = viz.Series{Name: s.Name, Values: s.Y}
	}
	fmt.Fprint(out, viz.Plot(plots, width, height))
	return nil
}

func chartFile(cmd *cobra.Command, args []string) error {
	f, err := readPlot(args[0])
	if err != nil {
		return err
	}

	path := outPath
	if path == "" {
		path = strings.TrimSuffix(args[0], ".plt") + ".png"
	}

	opts := export.Options{Title: f.Title, XLabel: f.XLabel}
	var series []export.Series
	if phase != "" {
		xName, yName, err := splitPhase(phase)
		if err != nil {
			return err
		}
		s, err := export.PhaseSeries(f, xName, yName)
		if err != nil {
			return dynamo.ConfigError("chart", args[0], err)
		}
		series = []export.Series{s}
		opts.XLabel, opts.YLabel = xName, yName
	} else if series, err = export.TimeSeries(f, vars); err != nil {
		return dynamo.ConfigError("chart", args[0], err)
	}

	if err := export.Chart(path, opts, series); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
	return nil
}

func analyzeFile(cmd *cobra.Command, args []string) error {
	f, err := readPlot(args[0])
	if err != nil {
		return err
	}
	series, err := export.TimeSeries(f, vars)
	if err != nil {
		return dynamo.ConfigError("analyze", args[0], err)
	}

	out := cmd.OutOrStdout()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATASET\tDOMINANT\tPERIOD\tINTERVAL")
	var spectra []viz.Series
	for _, s := range series {
		sp, err := analysis.Analyze(s.X, s.Y)
		if err != nil {
			fmt.Fprintf(w, "%s\t-\t-\t%v\n", s.Name, err)
			continue
		}
		period := "-"
		if sp.Period > 0 {
			period = fmt.Sprintf("%.4g", sp.Period)
		}
		fmt.Fprintf(w, "%s\t%.4g\t%s\t%.4g\n", s.Name, sp.Dominant, period, sp.Interval)
		spectra = append(spectra, viz.Series{Name: s.Name + " amplitude spectrum", Values: sp.Power})
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if showSpectrum {
		fmt.Fprintln(out)
		fmt.Fprint(out, viz.Plot(spectra, viz.DefaultWidth, viz.DefaultHeight))
	}
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return dynamo.ResourceError("list runs", st.Dir(), err)
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "no runs found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODEL\tTIME\tPHASE\tROWS\tSTEPS\tERROR")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%.0f\t%s\n",
			run.ID,
			run.Model,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Phase,
			run.Rows,
			run.Solver["steps"],
			firstLine(run.Error),
		)
	}
	return w.Flush()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}
