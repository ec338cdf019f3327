// Package experiment runs the whole pipeline for one simulation: resolve
// the model, load its init file, drive the solver, write the plot file and
// optionally archive the run and export its counters.
package experiment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/san-kum/daesim/internal/driver"
	"github.com/san-kum/daesim/internal/dynamo"
	"github.com/san-kum/daesim/internal/initfile"
	"github.com/san-kum/daesim/internal/metrics"
	"github.com/san-kum/daesim/internal/models"
	"github.com/san-kum/daesim/internal/plt"
	"github.com/san-kum/daesim/internal/solver"
	"github.com/san-kum/daesim/internal/storage"
	"github.com/san-kum/daesim/internal/trajectory"
)

// Config names the inputs and outputs of a run. Empty InitFile and
// ResultFile default to <model>_init.txt and <model>_res.plt; empty DataDir
// and MetricsFile disable archiving and metric export.
type Config struct {
	Model       string
	Solver      string
	InitFile    string
	ResultFile  string
	DataDir     string
	MetricsFile string
}

// Outcome is everything a run produced, including partial results of a
// failed run.
type Outcome struct {
	Model      string
	InitFile   string
	ResultFile string
	Metadata   models.Metadata
	Input      *initfile.Input
	Result     *driver.Result
	RowMetrics map[string]float64
	RunID      string
	Elapsed    time.Duration
	// Written reports whether the plot file was produced.
	Written bool
}

type Experiment struct {
	cfg      Config
	registry *Registry
	logger   *slog.Logger
	recorder *metrics.Recorder
	solver   solver.Solver
	hooks    *solver.Hooks
}

type Option func(*Experiment)

func WithLogger(l *slog.Logger) Option {
	return func(e *Experiment) { e.logger = l }
}

// WithRecorder shares a recorder across runs; by default each run gets
// its own.
func WithRecorder(r *metrics.Recorder) Option {
	return func(e *Experiment) { e.recorder = r }
}

// WithSolver bypasses the registry's solver lookup.
func WithSolver(s solver.Solver) Option {
	return func(e *Experiment) { e.solver = s }
}

func WithHooks(h solver.Hooks) Option {
	return func(e *Experiment) { e.hooks = &h }
}

func New(cfg Config, registry *Registry, opts ...Option) *Experiment {
	if cfg.Solver == "" {
		cfg.Solver = DefaultSolver
	}
	e := &Experiment{
		cfg:      cfg,
		registry: registry,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.recorder == nil {
		e.recorder = metrics.NewRecorder()
	}
	return e
}

func (e *Experiment) Recorder() *metrics.Recorder { return e.recorder }

// Run executes the pipeline. The plot file is written whenever a
// trajectory buffer exists, so a numerical failure still leaves every row
// captured before it on disk. The returned error joins the run failure
// with any output failure; its first classified member decides the exit
// code.
func (e *Experiment) Run(ctx context.Context) (*Outcome, error) {
	out := &Outcome{
		Model:      e.cfg.Model,
		InitFile:   e.cfg.InitFile,
		ResultFile: e.cfg.ResultFile,
	}
	if out.InitFile == "" {
		out.InitFile = initfile.DefaultPath(e.cfg.Model)
	}
	if out.ResultFile == "" {
		out.ResultFile = plt.DefaultPath(e.cfg.Model)
	}
	log := e.logger.With("model", e.cfg.Model)

	runErr := e.simulate(ctx, out, log)

	var errs []error
	if runErr != nil {
		errs = append(errs, runErr)
	}
	if out.Result != nil && out.Result.Buffer != nil {
		if err := plt.Write(out.ResultFile, out.Result.Buffer, out.Metadata); err != nil {
			log.Error("result not written", "path", out.ResultFile, "err", err)
			errs = append(errs, err)
		} else {
			out.Written = true
			log.Info("result written", "path", out.ResultFile, "rows", out.Result.Buffer.Len())
		}
	}
	err := errors.Join(errs...)

	if e.cfg.DataDir != "" {
		if aerr := e.archive(out, err); aerr != nil {
			log.Warn("run not archived", "dir", e.cfg.DataDir, "err", aerr)
			err = errors.Join(err, aerr)
		} else {
			log.Debug("run archived", "id", out.RunID)
		}
	}

	e.recorder.Observe(e.cfg.Model, out.Result, out.Elapsed)
	e.recorder.ObserveRowMetrics(e.cfg.Model, out.RowMetrics)
	if e.cfg.MetricsFile != "" {
		if merr := e.recorder.WriteTextfile(e.cfg.MetricsFile); merr != nil {
			err = errors.Join(err, dynamo.ResourceError("write metrics", e.cfg.MetricsFile, merr))
		}
	}
	log.Debug("run finished", "summary", out.Summary(), "failed", err != nil)
	return out, err
}

func (e *Experiment) simulate(ctx context.Context, out *Outcome, log *slog.Logger) error {
	binding, err := e.registry.GetModel(e.cfg.Model)
	if err != nil {
		return dynamo.ConfigError("select model", "", err)
	}
	out.Metadata = binding.Metadata()

	s := e.solver
	if s == nil {
		if s, err = e.registry.GetSolver(e.cfg.Solver); err != nil {
			return dynamo.ConfigError("select solver", "", err)
		}
	}

	in, err := initfile.Load(out.InitFile, binding.Dimensions())
	if err != nil {
		return err
	}
	out.Input = in
	log.Debug("input loaded", "path", out.InitFile, "dims", binding.Dimensions().String())

	opts := []driver.Option{driver.WithLogger(e.logger)}
	if e.hooks != nil {
		opts = append(opts, driver.WithHooks(*e.hooks))
	}
	rowMetrics := e.registry.DefaultMetrics(e.cfg.Model)
	for _, m := range rowMetrics {
		opts = append(opts, driver.WithObserver(m))
	}

	start := time.Now()
	res, err := driver.New(binding, s, opts...).Run(ctx, in)
	out.Elapsed = time.Since(start)
	out.Result = res
	out.RowMetrics = metrics.Collect(rowMetrics)

	if err != nil {
		return err
	}
	log.Info("run complete", "rows", res.Buffer.Len(), "steps", res.Diagnostics.Steps, "elapsed", out.Elapsed)
	return nil
}

func (e *Experiment) archive(out *Outcome, runErr error) error {
	st := storage.New(e.cfg.DataDir)
	if err := st.Init(); err != nil {
		return dynamo.ResourceError("archive run", e.cfg.DataDir, err)
	}

	meta := storage.RunMetadata{
		Model:      out.Model,
		InitFile:   out.InitFile,
		ResultFile: out.ResultFile,
		Phase:      driver.Failed.String(),
		Elapsed:    out.Elapsed.Seconds(),
		Solver:     map[string]float64{},
	}
	if out.Input != nil {
		h, d := out.Input.Horizon, out.Input.State.Dimensions()
		meta.Horizon = storage.Horizon{Start: h.Start, Stop: h.Stop, Step: h.Step}
		meta.Dimensions = storage.Dimensions{NX: d.NX, NY: d.NY, NP: d.NP}
	}
	if runErr != nil {
		meta.Error = runErr.Error()
	}

	var names []string
	res := out.Result
	if res != nil {
		meta.Phase = res.Phase.String()
		d := res.Diagnostics
		meta.Solver = map[string]float64{
			"steps":          float64(d.Steps),
			"rejected":       float64(d.Rejected),
			"residual_evals": float64(d.ResidualEvals),
			"jacobian_evals": float64(d.JacobianEvals),
			"newton_iters":   float64(d.NewtonIters),
			"status":         float64(d.Status),
		}
		if res.Buffer != nil {
			meta.Rows = res.Buffer.Len()
			names = out.Metadata.VariableNames
		}
	}
	meta.Metrics = out.RowMetrics

	var buf *trajectory.Buffer
	if names != nil {
		buf = res.Buffer
	}
	id, err := st.Save(meta, buf, names)
	if err != nil {
		return dynamo.ResourceError("archive run", e.cfg.DataDir, err)
	}
	out.RunID = id
	return nil
}

// Summary is a one-line description used in logs.
func (o *Outcome) Summary() string {
	if o.Result == nil || o.Result.Buffer == nil {
		return fmt.Sprintf("%s: no trajectory", o.Model)
	}
	return fmt.Sprintf("%s: %s, %d rows, %d solver steps", o.Model, o.Result.Phase, o.Result.Buffer.Len(), o.Result.Diagnostics.Steps)
}
