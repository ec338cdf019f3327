package models

import (
	"math"

	"github.com/san-kum/daesim/internal/dynamo"
)

// VanDerPol implements the Van der Pol oscillator in implicit form.
// State: [x, y] where y = dx/dt
//
//	der(x) - y = 0
//	der(y) - μ(1 - x²)y + x = 0
//
// The output is the phase-plane radius.
type VanDerPol struct{}

func NewVanDerPol() *VanDerPol { return &VanDerPol{} }

func (v *VanDerPol) Metadata() Metadata {
	return Metadata{
		Name:          "vanderpol",
		VariableNames: append(derivativeNames("x", "y"), "radius"),
	}
}

func (v *VanDerPol) Dimensions() dynamo.Dimensions {
	return dynamo.Dimensions{NX: 2, NY: 1, NP: 1}
}

func (v *VanDerPol) Residual(_ float64, s, sd, par, delta []float64) {
	mu := par[0]
	x, y := s[0], s[1]

	delta[0] = sd[0] - y
	delta[1] = sd[1] - mu*(1-x*x)*y + x
}

func (v *VanDerPol) Output(_ float64, s, _, _, out []float64) {
	out[0] = math.Hypot(s[0], s[1])
}

func (v *VanDerPol) Defaults() *dynamo.SimulationState {
	// Classic value for limit cycle
	return &dynamo.SimulationState{
		X:  []float64{2.0, 0.0},
		XD: []float64{0.0, -2.0},
		Y:  []float64{2.0},
		P:  []float64{1.0},
	}
}
