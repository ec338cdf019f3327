package models

import (
	"math"

	"github.com/san-kum/daesim/internal/dynamo"
)

// Parameter indices of the pendulum.
const (
	PendulumMass = iota
	PendulumLength
	PendulumDamping
	PendulumGravity
)

// Pendulum is a damped rigid pendulum. States are the angle and angular
// velocity; outputs are the total energy and the bob height.
type Pendulum struct{}

func NewPendulum() *Pendulum { return &Pendulum{} }

func (p *Pendulum) Metadata() Metadata {
	return Metadata{
		Name:          "pendulum",
		VariableNames: append(derivativeNames("theta", "omega"), "energy", "height"),
	}
}

func (p *Pendulum) Dimensions() dynamo.Dimensions {
	return dynamo.Dimensions{NX: 2, NY: 2, NP: 4}
}

func (p *Pendulum) Residual(_ float64, x, xd, par, delta []float64) {
	m, l, c, g := par[PendulumMass], par[PendulumLength], par[PendulumDamping], par[PendulumGravity]
	theta, omega := x[0], x[1]

	delta[0] = xd[0] - omega
	delta[1] = m*l*l*xd[1] + c*omega + m*g*l*math.Sin(theta)
}

func (p *Pendulum) Output(_ float64, x, _, par, y []float64) {
	m, l, g := par[PendulumMass], par[PendulumLength], par[PendulumGravity]
	// KE = 0.5 * m * (L*omega)^2
	// PE = m * g * L * (1 - cos(theta))
	v := l * x[1]
	h := l * (1.0 - math.Cos(x[0]))
	y[0] = 0.5*m*v*v + m*g*h
	y[1] = h
}

func (p *Pendulum) Defaults() *dynamo.SimulationState {
	par := []float64{1.0, 1.0, 0.1, 9.81}
	x := []float64{0.5, 0}
	xd := []float64{0, -par[PendulumGravity] / par[PendulumLength] * math.Sin(x[0])}
	y := make([]float64, 2)
	p.Output(0, x, xd, par, y)
	return &dynamo.SimulationState{X: x, XD: xd, Y: y, P: par}
}
