package models

import (
	"math"
	"testing"
)

func residualOf(b Binding, x, xd, p []float64) []float64 {
	delta := make([]float64, b.Dimensions().NX)
	b.Residual(0, x, xd, p, delta)
	return delta
}

func TestBuiltinsValidate(t *testing.T) {
	r := NewRegistry()
	for _, name := range r.List() {
		b, err := r.Get(name)
		if err != nil {
			t.Fatalf("model %s: %v", name, err)
		}
		if b.Metadata().Name != name {
			t.Errorf("model %s reports name %s", name, b.Metadata().Name)
		}
	}
}

func TestDefaultsAreConsistent(t *testing.T) {
	r := NewRegistry()
	for _, name := range r.List() {
		b, _ := r.Get(name)
		d, ok := b.(Defaulter)
		if !ok {
			t.Fatalf("model %s has no defaults", name)
		}
		s := d.Defaults()
		if !s.Conforms(b.Dimensions()) {
			t.Fatalf("model %s defaults do not match %v", name, b.Dimensions())
		}
		for i, r := range residualOf(b, s.X, s.XD, s.P) {
			if math.Abs(r) > 1e-12 {
				t.Errorf("model %s: residual[%d] = %g at defaults, want 0", name, i, r)
			}
		}
	}
}

func TestRegistryUnknownModel(t *testing.T) {
	if _, err := NewRegistry().Get("nonexistent"); err == nil {
		t.Error("expected error for unknown model")
	}
}

func TestMetadataSlices(t *testing.T) {
	p := NewPendulum()
	dims := p.Dimensions()
	meta := p.Metadata()

	states := meta.StateNames(dims)
	if len(states) != 2 || states[0] != "theta" {
		t.Errorf("unexpected state names %v", states)
	}
	ders := meta.DerivativeNames(dims)
	if len(ders) != 2 || ders[1] != "der(omega)" {
		t.Errorf("unexpected derivative names %v", ders)
	}
	algs := meta.AlgebraicNames(dims)
	if len(algs) != 2 || algs[0] != "energy" {
		t.Errorf("unexpected algebraic names %v", algs)
	}
}

func TestPendulumEquilibrium(t *testing.T) {
	p := NewPendulum()
	par := []float64{1, 1, 0, 9.81}

	delta := residualOf(p, []float64{0, 0}, []float64{0, 0}, par)
	if math.Abs(delta[0]) > 1e-10 || math.Abs(delta[1]) > 1e-10 {
		t.Errorf("expected zero residual at equilibrium, got %v", delta)
	}
}

func TestPendulumGravity(t *testing.T) {
	p := NewPendulum()
	par := []float64{1, 1, 0, 9.81}

	// at theta = pi/2 the consistent angular acceleration is -g/L
	delta := residualOf(p, []float64{math.Pi / 2, 0}, []float64{0, -9.81}, par)
	if math.Abs(delta[1]) > 1e-6 {
		t.Errorf("expected residual 0 for alpha = -g/L, got %f", delta[1])
	}
}

func TestOscillatorEnergy(t *testing.T) {
	o := NewOscillator()
	y := make([]float64, 1)
	o.Output(0, []float64{3, 4}, []float64{4, -3}, nil, y)
	if y[0] != 12.5 {
		t.Errorf("expected energy 12.5, got %f", y[0])
	}
}

func TestVanDerPolLimitCycleSign(t *testing.T) {
	v := NewVanDerPol()
	// inside |x| < 1 the damping term pumps energy in
	delta := residualOf(v, []float64{0, 1}, []float64{1, 0}, []float64{1})
	if delta[1] >= 0 {
		t.Errorf("expected negative residual (positive required accel), got %f", delta[1])
	}
}
