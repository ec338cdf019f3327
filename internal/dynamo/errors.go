package dynamo

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors for simulation operations.
var (
	// ErrInvalidState indicates a state vector with NaN or Inf values.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrContextCanceled indicates the simulation was interrupted.
	ErrContextCanceled = errors.New("dynamo: simulation canceled by context")

	// ErrStepTooSmall indicates the solver step size fell below its minimum.
	ErrStepTooSmall = errors.New("dynamo: step size below minimum")

	// ErrDimensionMismatch indicates declared counts that differ from the model.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch between input and model")

	// ErrMalformedValue indicates a field that could not be parsed as a number.
	ErrMalformedValue = errors.New("dynamo: malformed numeric value")

	// ErrMissingValue indicates the input ended before all fields were read.
	ErrMissingValue = errors.New("dynamo: unexpected end of input")

	// ErrInvalidHorizon indicates a start/stop/step triple that cannot be stepped.
	ErrInvalidHorizon = errors.New("dynamo: invalid time horizon")

	// ErrAllocation indicates the trajectory storage could not be reserved.
	ErrAllocation = errors.New("dynamo: cannot allocate trajectory storage")

	// ErrCapacityExceeded indicates an append past the preallocated row count.
	ErrCapacityExceeded = errors.New("dynamo: trajectory capacity exceeded")

	// ErrSolverFailure indicates an unrecoverable integration status.
	ErrSolverFailure = errors.New("dynamo: unrecoverable solver failure")
)

// Class groups errors by the kind of failure they report.
type Class int

const (
	ClassUnknown Class = iota
	// ClassConfig covers unreadable input, malformed values and dimension mismatches.
	ClassConfig
	// ClassResource covers storage allocation and output file failures.
	ClassResource
	// ClassNumerical covers unrecoverable solver status codes.
	ClassNumerical
)

func (c Class) String() string {
	switch c {
	case ClassConfig:
		return "configuration"
	case ClassResource:
		return "resource"
	case ClassNumerical:
		return "numerical"
	default:
		return "unknown"
	}
}

// SimulationError wraps an error with simulation context.
type SimulationError struct {
	Class   Class
	Op      string
	Path    string
	Step    int
	Time    float64
	Status  int
	Wrapped error
}

func (e *SimulationError) Error() string {
	var b strings.Builder
	b.WriteString(e.Class.String())
	b.WriteString(" error")
	if e.Op != "" {
		b.WriteString(" during ")
		b.WriteString(e.Op)
	}
	if e.Path != "" {
		fmt.Fprintf(&b, " (%s)", e.Path)
	}
	if e.Class == ClassNumerical {
		fmt.Fprintf(&b, " at step %d, t=%g, status %d", e.Step, e.Time, e.Status)
	}
	if e.Wrapped != nil {
		b.WriteString(": ")
		b.WriteString(e.Wrapped.Error())
	}
	return b.String()
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}

// ConfigError classifies err as a configuration failure for the given op and path.
func ConfigError(op, path string, err error) error {
	return &SimulationError{Class: ClassConfig, Op: op, Path: path, Wrapped: err}
}

// ResourceError classifies err as a resource failure for the given op and path.
func ResourceError(op, path string, err error) error {
	return &SimulationError{Class: ClassResource, Op: op, Path: path, Wrapped: err}
}

// NumericalError classifies err as a solver failure at the given step.
func NumericalError(step int, t float64, status int, err error) error {
	return &SimulationError{Class: ClassNumerical, Op: "integrate", Step: step, Time: t, Status: status, Wrapped: err}
}

// ClassOf reports the class of the first SimulationError in err's chain.
func ClassOf(err error) Class {
	var se *SimulationError
	if errors.As(err, &se) {
		return se.Class
	}
	return ClassUnknown
}

// Process exit codes.
const (
	ExitOK        = 0
	ExitFailure   = 1
	ExitConfig    = 2
	ExitResource  = 3
	ExitNumerical = 4
)

// ExitCode maps err to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	switch ClassOf(err) {
	case ClassConfig:
		return ExitConfig
	case ClassResource:
		return ExitResource
	case ClassNumerical:
		return ExitNumerical
	default:
		return ExitFailure
	}
}

// DimensionMismatchError reports declared counts that differ from the model.
type DimensionMismatchError struct {
	Expected Dimensions
	Found    Dimensions
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("input data file does not match model: nx expected %d found %d, ny expected %d found %d, np expected %d found %d",
		e.Expected.NX, e.Found.NX, e.Expected.NY, e.Found.NY, e.Expected.NP, e.Found.NP)
}

func (e *DimensionMismatchError) Unwrap() error {
	return ErrDimensionMismatch
}
