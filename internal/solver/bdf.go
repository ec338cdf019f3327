package solver

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/daesim/internal/dynamo"
)

const uround = 2.220446049250313e-16

// BDF is a variable-step backward differentiation solver of order one and
// two. The first step of a run uses backward Euler; once a past point is
// available the corrector switches to the variable-coefficient BDF2 formula.
// Each step solves the corrector with a modified Newton iteration whose
// matrix dF/dx + cj*dF/dxd comes from the Jacobian hook or from finite
// differences of the residual.
type BDF struct {
	MaxSteps    int     // steps allowed per Solve call
	MaxNewton   int     // corrector iterations per step attempt
	MaxFailures int     // consecutive rejections before giving up
	MaxStep     float64 // 0 means unbounded
	MaxOrder    int     // 1 pins the corrector to backward Euler
	NewtonTol   float64 // weighted norm of the Newton update
	safety      float64
	maxRatio    float64
}

func NewBDF() *BDF {
	return &BDF{
		MaxSteps:    500,
		MaxNewton:   4,
		MaxFailures: 10,
		MaxOrder:    2,
		NewtonTol:   0.1,
		safety:      0.9,
		maxRatio:    2.0,
	}
}

type stepWork struct {
	xp, z, zd, base, delta, col, w []float64
	jac                            []float64
	rhs, dz                        *mat.VecDense
}

func newStepWork(n int) *stepWork {
	return &stepWork{
		xp:    make([]float64, n),
		z:     make([]float64, n),
		zd:    make([]float64, n),
		base:  make([]float64, n),
		delta: make([]float64, n),
		col:   make([]float64, n),
		w:     make([]float64, n),
		jac:   make([]float64, n*n),
		rhs:   mat.NewVecDense(n, nil),
		dz:    mat.NewVecDense(n, nil),
	}
}

func (b *BDF) Solve(p Problem, t float64, x, xd []float64, tout float64, d *Diagnostics) (float64, error) {
	if err := validate(p, t, x, xd, tout); err != nil {
		d.Status = StatusInvalidInput
		return t, fmt.Errorf("%w: %s: %v", dynamo.ErrSolverFailure, d.Status, err)
	}
	hooks := p.Hooks.withDefaults()
	n := p.N

	if !d.started {
		d.started = true
		d.prev = nil
		if nr := hooks.Roots.NumRoots(); nr > 0 {
			d.g = make([]float64, nr)
			d.Roots = make([]int, nr)
			hooks.Roots.Roots(t, x, xd, d.g)
		}
	}
	for i := range d.Roots {
		d.Roots[i] = 0
	}

	hmin := 4 * uround * math.Max(math.Abs(t), math.Abs(tout))
	if tout-t <= 100*hmin {
		d.Status = StatusReachedTout
		return tout, nil
	}

	ws := newStepWork(n)
	h := d.LastStep
	if h <= 0 {
		h = b.initialStep(p, tout-t, x, xd, ws.w)
	}

	steps, errFails, convFails := 0, 0, 0
	for t < tout {
		if steps >= b.MaxSteps {
			return t, b.fail(d, StatusTooMuchWork, h, nil)
		}

		order := 1
		if d.prev != nil && b.MaxOrder >= 2 {
			order = 2
			h = math.Min(h, b.maxRatio*d.prevStep)
		}
		if b.MaxStep > 0 {
			h = math.Min(h, b.MaxStep)
		}

		hStep, last := h, false
		rem := tout - t
		switch {
		case rem <= 1.1*h:
			hStep, last = rem, true
		case rem < 2*h:
			hStep = rem / 2
		}
		tn := t + hStep
		if last {
			tn = tout
		}

		weights(ws.w, x, p.RTol, p.ATol)
		cj := b.coefficients(order, hStep, d.prevStep, x, d.prev, ws.base)
		b.predict(order, hStep, d.prevStep, x, xd, d.prev, ws.xp)

		if status := b.correct(p, hooks, tn, cj, ws, d); status != StatusNone {
			d.Rejected++
			d.ConvergenceFailures++
			convFails++
			h = hStep / 4
			if convFails >= b.MaxFailures || h < hmin {
				return t, b.fail(d, status, h, tooSmall(h, hmin))
			}
			continue
		}

		for i := range ws.col {
			ws.col[i] = ws.z[i] - ws.xp[i]
		}
		est := errorConstant(order) * wrms(ws.col, ws.w)
		if est > 1 || math.IsNaN(est) {
			d.Rejected++
			d.ErrorTestFailures++
			errFails++
			h = hStep * math.Max(0.2, b.safety*math.Pow(est, -1/float64(order+1)))
			if math.IsNaN(h) {
				h = hStep / 4
			}
			if errFails >= b.MaxFailures || h < hmin {
				return t, b.fail(d, StatusErrorTestFailed, h, tooSmall(h, hmin))
			}
			continue
		}

		if d.prev == nil {
			d.prev = make([]float64, n)
		}
		copy(d.prev, x)
		d.prevStep = hStep
		copy(x, ws.z)
		copy(xd, ws.zd)
		t = tn
		steps++
		d.Steps++
		errFails, convFails = 0, 0

		factor := b.maxRatio
		if est > 0 {
			factor = math.Min(b.maxRatio, b.safety*math.Pow(est, -1/float64(order+1)))
		}
		next := hStep * math.Max(factor, 0.5)
		if last && hStep < h {
			// keep the size the controller wanted before the final step was cut
			next = math.Max(next, h)
		}
		h = next

		if len(d.g) > 0 && b.crossed(hooks, t, x, xd, d) {
			d.LastStep = h
			d.Status = StatusRootFound
			return t, nil
		}
	}

	d.LastStep = h
	d.Status = StatusReachedTout
	return t, nil
}

func validate(p Problem, t float64, x, xd []float64, tout float64) error {
	switch {
	case p.N <= 0:
		return fmt.Errorf("system size %d", p.N)
	case len(x) != p.N || len(xd) != p.N:
		return fmt.Errorf("state lengths %d/%d, want %d", len(x), len(xd), p.N)
	case p.Residual == nil:
		return errors.New("no residual function")
	case p.RTol < 0 || p.ATol < 0 || (p.RTol == 0 && p.ATol == 0):
		return fmt.Errorf("tolerances rtol=%g atol=%g", p.RTol, p.ATol)
	case math.IsNaN(t) || math.IsInf(t, 0) || math.IsNaN(tout) || math.IsInf(tout, 0):
		return fmt.Errorf("non-finite time t=%g tout=%g", t, tout)
	case tout < t:
		return fmt.Errorf("tout %g behind t %g", tout, t)
	}
	return nil
}

func (b *BDF) fail(d *Diagnostics, status Status, h float64, cause error) error {
	d.Status = status
	d.LastStep = h
	if cause != nil {
		return fmt.Errorf("%w: %s (h=%g): %w", dynamo.ErrSolverFailure, status, h, cause)
	}
	return fmt.Errorf("%w: %s", dynamo.ErrSolverFailure, status)
}

func tooSmall(h, hmin float64) error {
	if h < hmin {
		return dynamo.ErrStepTooSmall
	}
	return nil
}

// initialStep picks the first step as in DASSL: a thousandth of the span,
// reduced when the initial derivative is large.
func (b *BDF) initialStep(p Problem, span float64, x, xd, w []float64) float64 {
	h := 1e-3 * span
	weights(w, x, p.RTol, p.ATol)
	if ypnorm := wrms(xd, w); ypnorm > 0.5/h {
		h = 0.5 / ypnorm
	}
	if b.MaxStep > 0 {
		h = math.Min(h, b.MaxStep)
	}
	return h
}

// coefficients fills base so that the corrector derivative is
// xd = cj*z + base, and returns cj.
func (b *BDF) coefficients(order int, h, hPrev float64, x, prev, base []float64) float64 {
	if order == 1 {
		cj := 1 / h
		for i := range base {
			base[i] = -cj * x[i]
		}
		return cj
	}

	omega := h / hPrev
	a0 := (1 + 2*omega) / (h * (1 + omega))
	a1 := -(1 + omega) / h
	a2 := omega * omega / (h * (1 + omega))
	for i := range base {
		base[i] = a1*x[i] + a2*prev[i]
	}
	return a0
}

// predict extrapolates the next point: linearly from x and xd for order 1,
// and for order 2 with the quadratic through prev, x and slope xd at x.
func (b *BDF) predict(order int, h, hPrev float64, x, xd, prev, xp []float64) {
	for i := range xp {
		xp[i] = x[i] + h*xd[i]
		if order == 2 {
			c := (prev[i] - x[i] + xd[i]*hPrev) / (hPrev * hPrev)
			xp[i] += c * h * h
		}
	}
}

func errorConstant(order int) float64 {
	if order == 1 {
		return 0.5
	}
	return 0.4
}

// correct runs the modified Newton iteration from ws.xp, leaving the
// solution in ws.z and its derivative in ws.zd.
func (b *BDF) correct(p Problem, hooks Hooks, tn, cj float64, ws *stepWork, d *Diagnostics) Status {
	n := p.N
	derive := func() {
		for i := range ws.zd {
			ws.zd[i] = cj*ws.z[i] + ws.base[i]
		}
	}

	copy(ws.z, ws.xp)
	derive()
	if hooks.Jacobian.Jacobian(tn, ws.z, ws.zd, cj, ws.jac) {
		d.JacobianEvals++
	} else {
		b.differenceJacobian(p, tn, cj, ws, d)
	}
	iter := mat.NewDense(n, n, ws.jac)

	for k := 0; k < b.MaxNewton; k++ {
		derive()
		p.Residual(tn, ws.z, ws.zd, ws.delta)
		d.ResidualEvals++
		d.NewtonIters++

		for i, v := range ws.delta {
			ws.rhs.SetVec(i, -v)
		}
		if err := ws.dz.SolveVec(iter, ws.rhs); err != nil {
			return StatusSingularMatrix
		}

		for i := range ws.z {
			ws.z[i] += ws.dz.AtVec(i)
		}
		norm := wrms(ws.dz.RawVector().Data, ws.w)
		if math.IsNaN(norm) || math.IsInf(norm, 0) {
			return StatusConvergenceFailed
		}
		if norm <= b.NewtonTol {
			derive()
			return StatusNone
		}
	}
	return StatusConvergenceFailed
}

// differenceJacobian approximates dF/dz column by column, where z enters
// the residual both directly and through xd = cj*z + base.
func (b *BDF) differenceJacobian(p Problem, tn, cj float64, ws *stepWork, d *Diagnostics) {
	n := p.N
	p.Residual(tn, ws.z, ws.zd, ws.delta)
	d.ResidualEvals++

	sq := math.Sqrt(uround)
	for j := 0; j < n; j++ {
		del := sq * math.Max(math.Max(math.Abs(ws.z[j]), math.Abs(ws.zd[j]/cj)), ws.w[j])
		zj, zdj := ws.z[j], ws.zd[j]
		ws.z[j] = zj + del
		ws.zd[j] = zdj + cj*del

		p.Residual(tn, ws.z, ws.zd, ws.col)
		d.ResidualEvals++
		for i := 0; i < n; i++ {
			ws.jac[i*n+j] = (ws.col[i] - ws.delta[i]) / del
		}

		ws.z[j], ws.zd[j] = zj, zdj
	}
	d.JacobianEvals++
}

// crossed evaluates the root functions at the accepted point and marks
// every sign change since the previous point.
func (b *BDF) crossed(hooks Hooks, t float64, x, xd []float64, d *Diagnostics) bool {
	g := make([]float64, len(d.g))
	hooks.Roots.Roots(t, x, xd, g)

	found := false
	for i := range g {
		switch {
		case d.g[i] < 0 && g[i] >= 0:
			d.Roots[i] = 1
			found = true
		case d.g[i] > 0 && g[i] <= 0:
			d.Roots[i] = -1
			found = true
		}
	}
	copy(d.g, g)
	return found
}

func weights(w, x []float64, rtol, atol float64) {
	for i := range w {
		w[i] = rtol*math.Abs(x[i]) + atol
	}
}

// wrms is the weighted root-mean-square norm used for every tolerance test.
func wrms(v, w []float64) float64 {
	sum := 0.0
	for i := range v {
		r := v[i] / w[i]
		sum += r * r
	}
	return math.Sqrt(sum / float64(len(v)))
}
