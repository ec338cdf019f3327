package viz

import (
	"fmt"
	"math"

	"github.com/guptarohit/asciigraph"
)

const (
	DefaultWidth  = 80
	DefaultHeight = 10
)

// Series is one named column to draw against row index.
type Series struct {
	Name   string
	Values []float64
}

// Plot draws each series as its own asciigraph chart. Series that hold no
// finite value are reported instead of plotted.
func Plot(series []Series, width, height int) string {
	var out string
	for _, s := range series {
		out += PlotSeries(s, width, height) + "\n\n"
	}
	return out
}

func PlotSeries(s Series, width, height int) string {
	data := finite(s.Values)
	if len(data) == 0 {
		return Subtle.Render(fmt.Sprintf("%s: no finite values", s.Name))
	}
	return asciigraph.Plot(data,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(s.Name),
	)
}

// finite drops NaN and Inf, which asciigraph cannot scale.
func finite(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}
