package dynamo

import (
	"fmt"
	"math"
)

// Dimensions are the fixed problem sizes of a model.
type Dimensions struct {
	NX int // continuous states
	NY int // algebraic variables
	NP int // parameters
}

// RecordWidth is the number of values in one trajectory row:
// time, states, derivatives and algebraic variables.
func (d Dimensions) RecordWidth() int {
	return 1 + 2*d.NX + d.NY
}

// Vars is the number of named variables (states, derivatives, algebraics).
func (d Dimensions) Vars() int {
	return 2*d.NX + d.NY
}

func (d Dimensions) String() string {
	return fmt.Sprintf("nx=%d ny=%d np=%d", d.NX, d.NY, d.NP)
}

// Horizon is the time span and output interval of a run.
type Horizon struct {
	Start float64
	Stop  float64
	Step  float64
}

// DefaultHorizon matches the defaults of generated init files.
func DefaultHorizon() Horizon {
	return Horizon{Start: 0, Stop: 5, Step: 0.05}
}

// Target returns the k-th output time. Computing it from the index rather
// than by repeated addition keeps targets free of accumulated drift.
func (h Horizon) Target(k int) float64 {
	return h.Start + float64(k)*h.Step
}

// SimulationState is the DAE state at a single instant.
type SimulationState struct {
	X  []float64
	XD []float64
	Y  []float64
	P  []float64
}

// NewSimulationState allocates a zeroed state for dims.
func NewSimulationState(dims Dimensions) *SimulationState {
	return &SimulationState{
		X:  make([]float64, dims.NX),
		XD: make([]float64, dims.NX),
		Y:  make([]float64, dims.NY),
		P:  make([]float64, dims.NP),
	}
}

// Dimensions reports the counts implied by the slice lengths.
func (s *SimulationState) Dimensions() Dimensions {
	return Dimensions{NX: len(s.X), NY: len(s.Y), NP: len(s.P)}
}

// Conforms reports whether the state has exactly the layout of dims.
func (s *SimulationState) Conforms(dims Dimensions) bool {
	return len(s.X) == dims.NX && len(s.XD) == dims.NX && len(s.Y) == dims.NY && len(s.P) == dims.NP
}

func (s *SimulationState) Clone() *SimulationState {
	return &SimulationState{
		X:  append([]float64(nil), s.X...),
		XD: append([]float64(nil), s.XD...),
		Y:  append([]float64(nil), s.Y...),
		P:  append([]float64(nil), s.P...),
	}
}

// IsValid reports whether every x, xd and y value is finite.
func (s *SimulationState) IsValid() bool {
	for _, v := range [][]float64{s.X, s.XD, s.Y} {
		for _, f := range v {
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return false
			}
		}
	}
	return true
}
