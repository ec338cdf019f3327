package viz

import (
	"fmt"
	"math"
	"strings"
)

// Braille cells are 2x4 dots starting at U+2800; pixelMap gives the bit
// for each sub-pixel.
var pixelMap = [4][2]rune{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

const brailleBlank = 0x2800

// canvas addresses (cols*2) x (rows*4) sub-pixels.
type canvas struct {
	cols, rows int
	grid       [][]rune
}

func newCanvas(cols, rows int) *canvas {
	c := &canvas{cols: cols, rows: rows, grid: make([][]rune, rows)}
	for i := range c.grid {
		c.grid[i] = []rune(strings.Repeat(string(rune(brailleBlank)), cols))
	}
	return c
}

func (c *canvas) set(x, y int) {
	if x < 0 || y < 0 {
		return
	}
	col, row := x/2, y/4
	if col >= c.cols || row >= c.rows {
		return
	}
	c.grid[row][col] |= pixelMap[y%4][x%2]
}

// line joins two sub-pixels with Bresenham's algorithm.
func (c *canvas) line(x0, y0, x1, y1 int) {
	dx, dy := abs(x1-x0), abs(y1-y0)
	sx, sy := -1, -1
	if x0 < x1 {
		sx = 1
	}
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy
	for {
		c.set(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

func (c *canvas) lines() []string {
	out := make([]string, len(c.grid))
	for i, row := range c.grid {
		out[i] = string(row)
	}
	return out
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// Phase draws ys against xs on a cols x rows braille canvas with the
// value range on the axes. Consecutive points are joined; pairs with a
// non-finite coordinate break the curve.
func Phase(xName string, xs []float64, yName string, ys []float64, cols, rows int) (string, error) {
	if len(xs) != len(ys) {
		return "", fmt.Errorf("viz: %s has %d points, %s has %d", xName, len(xs), yName, len(ys))
	}
	if cols <= 0 || rows <= 0 {
		return "", fmt.Errorf("viz: canvas %dx%d", cols, rows)
	}

	xMin, xMax := bounds(xs)
	yMin, yMax := bounds(ys)
	if math.IsInf(xMin, 0) || math.IsInf(yMin, 0) {
		return "", fmt.Errorf("viz: %s/%s has no finite points", xName, yName)
	}
	xRange, yRange := xMax-xMin, yMax-yMin
	if xRange == 0 {
		xRange = 1
	}
	if yRange == 0 {
		yRange = 1
	}

	c := newCanvas(cols, rows)
	w, h := cols*2-1, rows*4-1
	project := func(x, y float64) (int, int) {
		px := int(math.Round(float64(w) * (x - xMin) / xRange))
		py := h - int(math.Round(float64(h)*(y-yMin)/yRange))
		return px, py
	}

	havePrev := false
	var px0, py0 int
	for i := range xs {
		if !isFinite(xs[i]) || !isFinite(ys[i]) {
			havePrev = false
			continue
		}
		px, py := project(xs[i], ys[i])
		if havePrev {
			c.line(px0, py0, px, py)
		} else {
			c.set(px, py)
		}
		px0, py0, havePrev = px, py, true
	}

	var b strings.Builder
	b.WriteString(Title.Render(fmt.Sprintf("%s vs %s", yName, xName)) + "\n")
	for i, line := range c.lines() {
		label := strings.Repeat(" ", 10)
		switch i {
		case 0:
			label = fmt.Sprintf("%9.3g ", yMax)
		case rows - 1:
			label = fmt.Sprintf("%9.3g ", yMin)
		}
		b.WriteString(Subtle.Render(label) + "│" + line + "\n")
	}
	b.WriteString(strings.Repeat(" ", 10) + "└" + strings.Repeat("─", cols) + "\n")
	lo, hi := fmt.Sprintf("%.3g", xMin), fmt.Sprintf("%.3g", xMax)
	gap := max(1, cols-len(lo)-len(hi)+1)
	b.WriteString(strings.Repeat(" ", 10) + Subtle.Render(lo+strings.Repeat(" ", gap)+hi))
	return b.String(), nil
}

func bounds(vs []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range vs {
		if isFinite(v) {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	return lo, hi
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
