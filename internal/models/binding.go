package models

import (
	"fmt"

	"github.com/san-kum/daesim/internal/dynamo"
)

// Binding is a generated model unit: fixed dimensions, a residual
// F(t, x, xd) = 0 over the nx states, and an output function deriving the
// ny algebraic variables from a solved state. Parameters p are constant for
// the run and passed to both.
type Binding interface {
	Metadata() Metadata
	Dimensions() dynamo.Dimensions
	Residual(t float64, x, xd, p, delta []float64)
	Output(t float64, x, xd, p, y []float64)
}

// Defaulter is implemented by bindings that can supply a starting state.
type Defaulter interface {
	Defaults() *dynamo.SimulationState
}

// Metadata is the read-only description of a model.
type Metadata struct {
	Name string
	// VariableNames is ordered [states][derivatives][algebraics].
	VariableNames []string
}

// StateNames returns the names of the nx states.
func (m Metadata) StateNames(dims dynamo.Dimensions) []string {
	return m.VariableNames[:dims.NX]
}

// DerivativeNames returns the names of the nx state derivatives.
func (m Metadata) DerivativeNames(dims dynamo.Dimensions) []string {
	return m.VariableNames[dims.NX : 2*dims.NX]
}

// AlgebraicNames returns the names of the ny algebraic variables.
func (m Metadata) AlgebraicNames(dims dynamo.Dimensions) []string {
	return m.VariableNames[2*dims.NX:]
}

// Validate checks that a binding's dimensions and names are consistent.
func Validate(b Binding) error {
	dims := b.Dimensions()
	meta := b.Metadata()
	if meta.Name == "" {
		return fmt.Errorf("model has no name")
	}
	if dims.NX <= 0 || dims.NY < 0 || dims.NP < 0 {
		return fmt.Errorf("model %s: invalid dimensions %v", meta.Name, dims)
	}
	if len(meta.VariableNames) != dims.Vars() {
		return fmt.Errorf("model %s: %d variable names, want %d", meta.Name, len(meta.VariableNames), dims.Vars())
	}
	return nil
}

func derivativeNames(states ...string) []string {
	names := make([]string, 0, 2*len(states))
	names = append(names, states...)
	for _, s := range states {
		names = append(names, "der("+s+")")
	}
	return names
}
