package models

import "github.com/san-kum/daesim/internal/dynamo"

// Oscillator is the unit harmonic oscillator in implicit form.
// States: [x, v]
//
//	der(x) - v = 0
//	der(v) + x = 0
//
// The single algebraic output is the total energy.
type Oscillator struct{}

func NewOscillator() *Oscillator { return &Oscillator{} }

func (o *Oscillator) Metadata() Metadata {
	return Metadata{
		Name:          "oscillator",
		VariableNames: append(derivativeNames("x", "v"), "energy"),
	}
}

func (o *Oscillator) Dimensions() dynamo.Dimensions {
	return dynamo.Dimensions{NX: 2, NY: 1, NP: 0}
}

func (o *Oscillator) Residual(_ float64, x, xd, _, delta []float64) {
	delta[0] = xd[0] - x[1]
	delta[1] = xd[1] + x[0]
}

func (o *Oscillator) Output(_ float64, x, _, _, y []float64) {
	y[0] = 0.5 * (x[0]*x[0] + x[1]*x[1])
}

func (o *Oscillator) Defaults() *dynamo.SimulationState {
	return &dynamo.SimulationState{
		X:  []float64{1, 0},
		XD: []float64{0, -1},
		Y:  []float64{0.5},
		P:  []float64{},
	}
}
