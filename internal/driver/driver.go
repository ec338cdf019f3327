// Package driver owns the time-stepping loop of a run: it advances the
// solver from start to stop, lets the model derive its algebraic variables
// after every step and appends each reached point to the trajectory.
package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/san-kum/daesim/internal/dynamo"
	"github.com/san-kum/daesim/internal/initfile"
	"github.com/san-kum/daesim/internal/models"
	"github.com/san-kum/daesim/internal/solver"
	"github.com/san-kum/daesim/internal/trajectory"
)

// Fixed integration tolerances.
const (
	RTol = 1e-5
	ATol = 1e-5
)

// targetSnap is the fraction of a step within which an output target is
// taken to be the stop time.
const targetSnap = 1e-9

type Phase int

const (
	Initializing Phase = iota
	Stepping
	Converged
	Failed
)

func (p Phase) String() string {
	switch p {
	case Initializing:
		return "initializing"
	case Stepping:
		return "stepping"
	case Converged:
		return "converged"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Observer is notified after every captured row.
type Observer interface {
	OnRow(t float64, state *dynamo.SimulationState)
}

// Result is what a run leaves behind, complete or partial.
type Result struct {
	Buffer      *trajectory.Buffer
	Phase       Phase
	Diagnostics solver.Diagnostics
	Steps       int
	Final       *dynamo.SimulationState
}

type Driver struct {
	binding   models.Binding
	solver    solver.Solver
	hooks     solver.Hooks
	logger    *slog.Logger
	observers []Observer
}

type Option func(*Driver)

// WithHooks replaces the default no-op Jacobian and root hooks.
func WithHooks(h solver.Hooks) Option {
	return func(d *Driver) { d.hooks = h }
}

func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) { d.logger = l }
}

func WithObserver(o Observer) Option {
	return func(d *Driver) { d.observers = append(d.observers, o) }
}

func New(binding models.Binding, s solver.Solver, opts ...Option) *Driver {
	d := &Driver{
		binding: binding,
		solver:  s,
		hooks:   solver.DefaultHooks(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run integrates in from its start to its stop time. The loaded state is
// not modified. On failure the returned Result still holds every row
// captured so far.
func (d *Driver) Run(ctx context.Context, in *initfile.Input) (*Result, error) {
	dims := d.binding.Dimensions()
	if !in.State.Conforms(dims) {
		return nil, dynamo.ConfigError("initialize", "", &dynamo.DimensionMismatchError{Expected: dims, Found: in.State.Dimensions()})
	}

	h := in.Horizon
	result := &Result{Phase: Initializing}
	result.Diagnostics.Reset()
	log := d.logger.With("model", d.binding.Metadata().Name)

	capacity, err := trajectory.Capacity(h.Start, h.Stop, h.Step)
	if err != nil {
		result.Phase = Failed
		if errors.Is(err, dynamo.ErrInvalidHorizon) {
			return result, dynamo.ConfigError("initialize", "", err)
		}
		return result, dynamo.ResourceError("allocate trajectory", "", err)
	}
	buf, err := trajectory.Allocate(capacity, dims)
	if err != nil {
		result.Phase = Failed
		return result, dynamo.ResourceError("allocate trajectory", "", err)
	}
	result.Buffer = buf

	st := in.State.Clone()
	result.Final = st
	t := h.Start

	// the initial point is captured as loaded, before any solver call
	if err := d.capture(buf, t, st); err != nil {
		result.Phase = Failed
		return result, err
	}
	log.Debug("trajectory allocated", "capacity", capacity, "width", buf.Width(), "start", h.Start, "stop", h.Stop, "step", h.Step)

	prob := solver.Problem{
		N: dims.NX,
		Residual: func(tt float64, x, xd, delta []float64) {
			d.binding.Residual(tt, x, xd, st.P, delta)
		},
		RTol:  RTol,
		ATol:  ATol,
		Hooks: d.hooks,
	}

	result.Phase = Stepping
	diag := &result.Diagnostics
	k := 1
	for t < h.Stop {
		select {
		case <-ctx.Done():
			result.Phase = Failed
			log.Error("run interrupted", "t", t, "rows", buf.Len())
			return result, fmt.Errorf("%w at t=%g: %w", dynamo.ErrContextCanceled, t, ctx.Err())
		default:
		}

		tout := d.target(h, k, buf)
		reached, err := d.solver.Solve(prob, t, st.X, st.XD, tout, diag)
		if err != nil {
			result.Phase = Failed
			log.Error("solver failed", "t", reached, "tout", tout, "status", int(diag.Status), "reason", diag.Status.String())
			return result, dynamo.NumericalError(result.Steps+1, reached, int(diag.Status), err)
		}
		t = reached

		// roots are reported, not recorded; rows stay on the output grid
		if diag.Status == solver.StatusRootFound && t < tout {
			log.Debug("zero crossing", "t", t, "roots", diag.Roots)
			continue
		}

		d.binding.Output(t, st.X, st.XD, st.P, st.Y)
		if err := d.capture(buf, t, st); err != nil {
			result.Phase = Failed
			return result, err
		}
		result.Steps++

		if !st.IsValid() {
			result.Phase = Failed
			log.Error("state diverged", "t", t)
			return result, dynamo.NumericalError(result.Steps, t, int(diag.Status), dynamo.ErrInvalidState)
		}
		k++
	}

	result.Phase = Converged
	log.Debug("run converged", "rows", buf.Len(), "steps", diag.Steps, "rejected", diag.Rejected)
	return result, nil
}

// target returns the k-th output time. A target that rounding left just
// short of stop, or the one that would fill the last free row, becomes
// stop itself so the grid never needs more rows than Capacity allows.
func (d *Driver) target(h dynamo.Horizon, k int, buf *trajectory.Buffer) float64 {
	tout := h.Target(k)
	if tout >= h.Stop {
		return tout
	}
	if h.Stop-tout <= targetSnap*h.Step || buf.Len() >= buf.Cap()-1 {
		return h.Stop
	}
	return tout
}

func (d *Driver) capture(buf *trajectory.Buffer, t float64, st *dynamo.SimulationState) error {
	if err := buf.Append(t, st.X, st.XD, st.Y); err != nil {
		return dynamo.ResourceError("append trajectory row", "", err)
	}
	for _, o := range d.observers {
		o.OnRow(t, st)
	}
	return nil
}
