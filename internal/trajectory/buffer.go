// Package trajectory holds the fixed-capacity row store filled by a run.
package trajectory

import (
	"fmt"
	"math"

	"github.com/san-kum/daesim/internal/dynamo"
)

// MaxSlots bounds a single allocation (values, not bytes).
const MaxSlots = 1 << 28

// Capacity returns the preallocated row count for a horizon:
// floor((stop-start)/step) + 2, the requested span plus the initial point
// and one safety row. A horizon that ends at or before it starts only ever
// captures the initial row.
func Capacity(start, stop, step float64) (int, error) {
	for _, v := range []float64{start, stop, step} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("%w: start=%g stop=%g step=%g", dynamo.ErrInvalidHorizon, start, stop, step)
		}
	}
	if stop < start {
		return 1, nil
	}
	if step <= 0 {
		if stop == start {
			return 1, nil
		}
		return 0, fmt.Errorf("%w: step must be positive, got %g", dynamo.ErrInvalidHorizon, step)
	}

	rows := math.Floor((stop-start)/step) + 2
	if rows > MaxSlots {
		return 0, fmt.Errorf("%w: %g rows requested", dynamo.ErrAllocation, rows)
	}
	return int(rows), nil
}

// Buffer is a flat, preallocated store of trajectory rows. Each row holds
// time, the nx states, the nx derivatives and the ny algebraic variables.
type Buffer struct {
	dims     dynamo.Dimensions
	width    int
	capacity int
	count    int
	data     []float64
}

// Allocate reserves capacity rows for dims up front.
func Allocate(capacity int, dims dynamo.Dimensions) (*Buffer, error) {
	width := dims.RecordWidth()
	if capacity <= 0 || dims.NX < 0 || dims.NY < 0 {
		return nil, fmt.Errorf("%w: %d rows of %d values", dynamo.ErrAllocation, capacity, width)
	}
	if capacity > MaxSlots/width {
		return nil, fmt.Errorf("%w: %d rows of %d values exceeds %d", dynamo.ErrAllocation, capacity, width, MaxSlots)
	}
	return &Buffer{
		dims:     dims,
		width:    width,
		capacity: capacity,
		data:     make([]float64, capacity*width),
	}, nil
}

// Append writes one row at the cursor. It is the only mutator and never
// writes past the allocated capacity.
func (b *Buffer) Append(t float64, x, xd, y []float64) error {
	if len(x) != b.dims.NX || len(xd) != b.dims.NX || len(y) != b.dims.NY {
		return fmt.Errorf("trajectory: row layout %d/%d/%d does not match %v", len(x), len(xd), len(y), b.dims)
	}
	if b.count >= b.capacity {
		return fmt.Errorf("%w: row %d at t=%g, capacity %d", dynamo.ErrCapacityExceeded, b.count+1, t, b.capacity)
	}

	pos := b.count * b.width
	b.data[pos] = t
	pos++
	pos += copy(b.data[pos:], x)
	pos += copy(b.data[pos:], xd)
	copy(b.data[pos:], y)
	b.count++
	return nil
}

func (b *Buffer) Len() int                      { return b.count }
func (b *Buffer) Cap() int                      { return b.capacity }
func (b *Buffer) Width() int                    { return b.width }
func (b *Buffer) Dimensions() dynamo.Dimensions { return b.dims }

// Row returns a view of row i. Callers must not modify it.
func (b *Buffer) Row(i int) []float64 {
	return b.data[i*b.width : (i+1)*b.width : (i+1)*b.width]
}

func (b *Buffer) Time(i int) float64 {
	return b.data[i*b.width]
}

// Column copies field j of every written row; column 0 is time.
func (b *Buffer) Column(j int) []float64 {
	col := make([]float64, b.count)
	for i := range col {
		col[i] = b.data[i*b.width+j]
	}
	return col
}

// Finalize returns the written rows as one flat slice and the row count.
func (b *Buffer) Finalize() ([]float64, int) {
	return b.data[:b.count*b.width], b.count
}
