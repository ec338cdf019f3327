package metrics

import (
	"math"

	"github.com/san-kum/daesim/internal/dynamo"
)

// RowMetric summarizes a trajectory as rows are captured. Implementations
// satisfy driver.Observer.
type RowMetric interface {
	Name() string
	OnRow(t float64, s *dynamo.SimulationState)
	Value() float64
	Reset()
}

// Drift tracks the largest deviation of one algebraic output from its
// value in the first row, e.g. energy for a conservative model.
type Drift struct {
	name    string
	index   int
	initial float64
	max     float64
	samples int
}

func NewDrift(name string, index int) *Drift {
	return &Drift{name: name + "_drift", index: index}
}

func (d *Drift) Name() string { return d.name }

func (d *Drift) OnRow(t float64, s *dynamo.SimulationState) {
	if d.index >= len(s.Y) {
		return
	}
	v := s.Y[d.index]
	if d.samples == 0 {
		d.initial = v
	}
	if dev := math.Abs(v - d.initial); dev > d.max || math.IsNaN(dev) {
		d.max = dev
	}
	d.samples++
}

func (d *Drift) Value() float64 { return d.max }

func (d *Drift) Reset() {
	d.initial = 0
	d.max = 0
	d.samples = 0
}

// Bound is the fraction of rows whose states all stay within threshold.
type Bound struct {
	name       string
	threshold  float64
	violations int
	samples    int
}

func NewBound(threshold float64) *Bound {
	return &Bound{name: "bounded", threshold: threshold}
}

func (b *Bound) Name() string { return b.name }

func (b *Bound) OnRow(t float64, s *dynamo.SimulationState) {
	b.samples++
	for _, v := range s.X {
		if !(math.Abs(v) <= b.threshold) {
			b.violations++
			break
		}
	}
}

func (b *Bound) Value() float64 {
	if b.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(b.violations)/float64(b.samples)
}

func (b *Bound) Reset() {
	b.violations = 0
	b.samples = 0
}

// Collect returns the current value of each metric keyed by name.
func Collect(ms []RowMetric) map[string]float64 {
	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		out[m.Name()] = m.Value()
	}
	return out
}
