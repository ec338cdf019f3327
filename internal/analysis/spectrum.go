package analysis

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// MinSamples is the shortest series with a meaningful spectrum.
const MinSamples = 4

var ErrTooShort = errors.New("analysis: too few finite samples")

type Spectrum struct {
	// Freqs[i] is the frequency of Power[i] in cycles per time unit.
	Freqs    []float64
	Power    []float64
	Dominant float64
	Period   float64
	Interval float64
}

// Analyze computes the amplitude spectrum of values sampled at times.
// Times must be non-decreasing; repeated times (zero-crossing rows) and
// non-finite samples are dropped before resampling.
func Analyze(times, values []float64) (*Spectrum, error) {
	if len(times) != len(values) {
		return nil, fmt.Errorf("analysis: %d times, %d values", len(times), len(values))
	}
	ts, vs := clean(times, values)
	if len(ts) < MinSamples {
		return nil, fmt.Errorf("%w: %d of %d", ErrTooShort, len(ts), MinSamples)
	}

	n := len(ts)
	dt := (ts[n-1] - ts[0]) / float64(n-1)
	data := resample(ts, vs, dt, n)

	mean := 0.0
	for _, v := range data {
		mean += v
	}
	mean /= float64(n)
	for i := range data {
		data[i] -= mean
	}

	coeffs := fft.FFTReal(data)
	bins := n/2 + 1
	s := &Spectrum{
		Freqs:    make([]float64, bins),
		Power:    make([]float64, bins),
		Interval: dt,
	}
	best := 0
	for k := 0; k < bins; k++ {
		s.Freqs[k] = float64(k) / (float64(n) * dt)
		s.Power[k] = cmplx.Abs(coeffs[k]) / float64(n)
		if k > 0 && s.Power[k] > s.Power[best] {
			best = k
		}
	}
	if best > 0 {
		s.Dominant = s.Freqs[best]
		s.Period = 1 / s.Dominant
	}
	return s, nil
}

func clean(times, values []float64) ([]float64, []float64) {
	ts := make([]float64, 0, len(times))
	vs := make([]float64, 0, len(values))
	for i := range times {
		if !finite(times[i]) || !finite(values[i]) {
			continue
		}
		if len(ts) > 0 && times[i] <= ts[len(ts)-1] {
			continue
		}
		ts = append(ts, times[i])
		vs = append(vs, values[i])
	}
	return ts, vs
}

// resample interpolates linearly onto t0 + i*dt.
func resample(ts, vs []float64, dt float64, n int) []float64 {
	out := make([]float64, n)
	j := 0
	for i := range out {
		t := ts[0] + float64(i)*dt
		for j < len(ts)-2 && ts[j+1] < t {
			j++
		}
		span := ts[j+1] - ts[j]
		frac := (t - ts[j]) / span
		frac = math.Max(0, math.Min(1, frac))
		out[i] = vs[j] + frac*(vs[j+1]-vs[j])
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
