package trajectory

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/daesim/internal/dynamo"
)

func TestCapacity(t *testing.T) {
	tests := []struct {
		name              string
		start, stop, step float64
		expected          int
	}{
		{"scenario", 0, 5, 0.05, 102},
		{"unit steps", 0, 10, 1, 12},
		{"partial step", 0, 1, 0.3, 5},
		{"zero horizon", 2, 2, 0.1, 2},
		{"zero horizon zero step", 2, 2, 0, 1},
		{"reversed", 3, 1, 0.1, 1},
		{"offset start", 1, 2, 0.25, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Capacity(tt.start, tt.stop, tt.step)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("Capacity(%g, %g, %g) = %d, want %d", tt.start, tt.stop, tt.step, got, tt.expected)
			}
		})
	}
}

func TestCapacityInvalid(t *testing.T) {
	tests := []struct {
		name              string
		start, stop, step float64
		want              error
	}{
		{"zero step", 0, 1, 0, dynamo.ErrInvalidHorizon},
		{"negative step", 0, 1, -0.1, dynamo.ErrInvalidHorizon},
		{"NaN stop", 0, math.NaN(), 0.1, dynamo.ErrInvalidHorizon},
		{"Inf step", 0, 1, math.Inf(1), dynamo.ErrInvalidHorizon},
		{"too many rows", 0, 1, 1e-12, dynamo.ErrAllocation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Capacity(tt.start, tt.stop, tt.step)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestAppendLayout(t *testing.T) {
	dims := dynamo.Dimensions{NX: 2, NY: 1}
	b, err := Allocate(3, dims)
	if err != nil {
		t.Fatalf("allocate failed: %v", err)
	}
	if b.Width() != 6 {
		t.Fatalf("expected width 6, got %d", b.Width())
	}

	if err := b.Append(0.5, []float64{1, 2}, []float64{3, 4}, []float64{5}); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	row := b.Row(0)
	expected := []float64{0.5, 1, 2, 3, 4, 5}
	if len(row) != len(expected) {
		t.Fatalf("row has %d values, want %d", len(row), len(expected))
	}
	for i := range expected {
		if row[i] != expected[i] {
			t.Errorf("row[%d] = %v, want %v", i, row[i], expected[i])
		}
	}
	if b.Time(0) != 0.5 {
		t.Errorf("Time(0) = %v", b.Time(0))
	}
}

func TestAppendRejectsOverrun(t *testing.T) {
	dims := dynamo.Dimensions{NX: 1}
	b, _ := Allocate(2, dims)

	for i := 0; i < 2; i++ {
		if err := b.Append(float64(i), []float64{1}, []float64{0}, nil); err != nil {
			t.Fatalf("append %d failed: %v", i, err)
		}
	}

	err := b.Append(2, []float64{1}, []float64{0}, nil)
	if !errors.Is(err, dynamo.ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
	if b.Len() != 2 {
		t.Errorf("overrun changed count to %d", b.Len())
	}
}

func TestAppendRejectsBadLayout(t *testing.T) {
	b, _ := Allocate(2, dynamo.Dimensions{NX: 2, NY: 1})
	if err := b.Append(0, []float64{1}, []float64{0, 0}, []float64{0}); err == nil {
		t.Error("expected error for short x")
	}
	if b.Len() != 0 {
		t.Error("rejected row should not be counted")
	}
}

func TestIndependentBuffers(t *testing.T) {
	dims := dynamo.Dimensions{NX: 1}
	a, _ := Allocate(2, dims)
	b, _ := Allocate(2, dims)

	_ = a.Append(0, []float64{1}, []float64{0}, nil)
	_ = a.Append(1, []float64{2}, []float64{0}, nil)

	if b.Len() != 0 {
		t.Errorf("second buffer shares cursor: len %d", b.Len())
	}
	if err := b.Append(0, []float64{7}, []float64{0}, nil); err != nil {
		t.Fatalf("append on fresh buffer failed: %v", err)
	}
	if b.Row(0)[1] != 7 {
		t.Errorf("unexpected row %v", b.Row(0))
	}
}

func TestFinalizeAndColumn(t *testing.T) {
	dims := dynamo.Dimensions{NX: 1, NY: 1}
	b, _ := Allocate(4, dims)
	for i := 0; i < 3; i++ {
		_ = b.Append(float64(i), []float64{float64(10 * i)}, []float64{1}, []float64{-float64(i)})
	}

	data, count := b.Finalize()
	if count != 3 {
		t.Fatalf("expected 3 rows, got %d", count)
	}
	if len(data) != count*b.Width() {
		t.Errorf("expected %d values, got %d", count*b.Width(), len(data))
	}

	col := b.Column(1)
	if len(col) != 3 || col[2] != 20 {
		t.Errorf("unexpected state column %v", col)
	}
	times := b.Column(0)
	if times[0] != 0 || times[2] != 2 {
		t.Errorf("unexpected time column %v", times)
	}
}

func TestAllocateInvalid(t *testing.T) {
	if _, err := Allocate(0, dynamo.Dimensions{NX: 1}); !errors.Is(err, dynamo.ErrAllocation) {
		t.Errorf("expected ErrAllocation for zero capacity, got %v", err)
	}
	if _, err := Allocate(MaxSlots, dynamo.Dimensions{NX: 2, NY: 1}); !errors.Is(err, dynamo.ErrAllocation) {
		t.Errorf("expected ErrAllocation for oversized request, got %v", err)
	}
}
