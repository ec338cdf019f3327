// Package solver defines the call contract of the DAE solver used by the
// driver and provides a built-in implicit BDF implementation.
//
// A solver advances F(t, x, xd) = 0 from t towards tout, updating x and xd
// in place. All state it needs across calls lives in [Diagnostics], which
// the caller owns and zeroes before the first call of a run.
package solver

import "fmt"

// ResidualFunc evaluates delta = F(t, x, xd).
type ResidualFunc func(t float64, x, xd, delta []float64)

// Jacobian supplies an analytic iteration matrix.
type Jacobian interface {
	// Jacobian fills pd, row-major n×n, with dF/dx + cj*dF/dxd and reports
	// whether it did. Returning false makes the solver difference the residual.
	Jacobian(t float64, x, xd []float64, cj float64, pd []float64) bool
}

// RootFinder supplies zero-crossing functions for event detection.
type RootFinder interface {
	NumRoots() int
	Roots(t float64, x, xd, gout []float64)
}

// NoJacobian acknowledges the call and reports no analytic Jacobian.
type NoJacobian struct{}

func (NoJacobian) Jacobian(float64, []float64, []float64, float64, []float64) bool { return false }

// NoRoots reports zero root functions.
type NoRoots struct{}

func (NoRoots) NumRoots() int                                { return 0 }
func (NoRoots) Roots(float64, []float64, []float64, []float64) {}

// Hooks are the optional callbacks passed alongside the residual.
type Hooks struct {
	Jacobian Jacobian
	Roots    RootFinder
}

func DefaultHooks() Hooks {
	return Hooks{Jacobian: NoJacobian{}, Roots: NoRoots{}}
}

func (h Hooks) withDefaults() Hooks {
	if h.Jacobian == nil {
		h.Jacobian = NoJacobian{}
	}
	if h.Roots == nil {
		h.Roots = NoRoots{}
	}
	return h
}

// Problem is one residual system and its tolerances.
type Problem struct {
	N        int
	Residual ResidualFunc
	RTol     float64
	ATol     float64
	Hooks    Hooks
}

// Status is the outcome code of the last Solve call. Values follow the
// DASSL idid convention; negative codes are unrecoverable.
type Status int

const (
	StatusNone              Status = 0
	StatusReachedTout       Status = 3
	StatusRootFound         Status = 4
	StatusTooMuchWork       Status = -1
	StatusErrorTestFailed   Status = -6
	StatusConvergenceFailed Status = -7
	StatusSingularMatrix    Status = -8
	StatusInvalidInput      Status = -33
)

func (s Status) Failed() bool { return s < 0 }

func (s Status) String() string {
	switch s {
	case StatusNone:
		return "none"
	case StatusReachedTout:
		return "reached tout"
	case StatusRootFound:
		return "root found"
	case StatusTooMuchWork:
		return "too much work"
	case StatusErrorTestFailed:
		return "error test failed repeatedly"
	case StatusConvergenceFailed:
		return "corrector failed to converge repeatedly"
	case StatusSingularMatrix:
		return "singular iteration matrix"
	case StatusInvalidInput:
		return "invalid input"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Diagnostics is the solver workspace and status kept across calls.
type Diagnostics struct {
	Status              Status
	Steps               int
	Rejected            int
	ErrorTestFailures   int
	ConvergenceFailures int
	ResidualEvals       int
	JacobianEvals       int
	NewtonIters         int
	LastStep            float64
	// Roots holds, after a StatusRootFound return, +1 or -1 for each root
	// function that crossed zero upwards or downwards, 0 otherwise.
	Roots []int

	started  bool
	prev     []float64
	prevStep float64
	g        []float64
}

// Reset zeroes the workspace so the next call starts a new integration.
func (d *Diagnostics) Reset() {
	*d = Diagnostics{}
}

// Solver advances a DAE to tout, mutating x and xd in place and returning
// the time actually reached.
type Solver interface {
	Solve(p Problem, t float64, x, xd []float64, tout float64, d *Diagnostics) (float64, error)
}
