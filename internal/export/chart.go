// Package export renders plot-file datasets to image files with
// gonum/plot. The output format follows the file extension (png, svg,
// pdf, eps, jpg, tif).
package export

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/san-kum/daesim/internal/dynamo"
	"github.com/san-kum/daesim/internal/plt"
)

const (
	DefaultWidth  = 8 * vg.Inch
	DefaultHeight = 4 * vg.Inch
)

var formats = map[string]bool{
	".png": true, ".svg": true, ".pdf": true, ".eps": true,
	".jpg": true, ".jpeg": true, ".tif": true, ".tiff": true,
}

// Series is one curve. X and Y must have equal length.
type Series struct {
	Name string
	X, Y []float64
}

type Options struct {
	Title  string
	XLabel string
	YLabel string
	Width  vg.Length
	Height vg.Length
}

// Chart draws every series on one set of axes and saves the image to
// path. Non-finite points are left out of the curve.
func Chart(path string, opts Options, series []Series) error {
	ext := strings.ToLower(filepath.Ext(path))
	if !formats[ext] {
		return dynamo.ConfigError("chart", path, fmt.Errorf("unsupported image format %q", ext))
	}
	if len(series) == 0 {
		return dynamo.ConfigError("chart", path, fmt.Errorf("nothing to draw"))
	}
	if opts.Width == 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height == 0 {
		opts.Height = DefaultHeight
	}

	p := plot.New()
	p.Title.Text = opts.Title
	p.X.Label.Text = opts.XLabel
	p.Y.Label.Text = opts.YLabel
	p.Add(plotter.NewGrid())

	for i, s := range series {
		xys, err := points(s)
		if err != nil {
			return dynamo.ConfigError("chart", path, err)
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return dynamo.ConfigError("chart", path, fmt.Errorf("series %s: %w", s.Name, err))
		}
		line.Color = plotutil.Color(i)
		line.Dashes = plotutil.Dashes(i / len(plotutil.DefaultColors))
		p.Add(line)
		p.Legend.Add(s.Name, line)
	}
	p.Legend.Top = true

	if err := p.Save(opts.Width, opts.Height, path); err != nil {
		return dynamo.ResourceError("chart", path, err)
	}
	return nil
}

func points(s Series) (plotter.XYs, error) {
	if len(s.X) != len(s.Y) {
		return nil, fmt.Errorf("series %s: %d x values, %d y values", s.Name, len(s.X), len(s.Y))
	}
	xys := make(plotter.XYs, 0, len(s.X))
	for i := range s.X {
		if isFinite(s.X[i]) && isFinite(s.Y[i]) {
			xys = append(xys, plotter.XY{X: s.X[i], Y: s.Y[i]})
		}
	}
	if len(xys) == 0 {
		return nil, fmt.Errorf("series %s: no finite points", s.Name)
	}
	return xys, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// TimeSeries selects datasets by name as curves over time. An empty names
// list selects every dataset except time.
func TimeSeries(f *plt.File, names []string) ([]Series, error) {
	if len(names) == 0 {
		for _, ds := range f.DataSets {
			if ds.Name != plt.TimeName {
				names = append(names, ds.Name)
			}
		}
	}
	out := make([]Series, 0, len(names))
	for _, name := range names {
		ds, ok := f.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("no dataset %q (have %s)", name, strings.Join(f.Names(), ", "))
		}
		out = append(out, Series{Name: name, X: ds.Times, Y: ds.Values})
	}
	return out, nil
}

// PhaseSeries pairs two datasets row by row, yName against xName.
func PhaseSeries(f *plt.File, xName, yName string) (Series, error) {
	xs, ok := f.Lookup(xName)
	if !ok {
		return Series{}, fmt.Errorf("no dataset %q", xName)
	}
	ys, ok := f.Lookup(yName)
	if !ok {
		return Series{}, fmt.Errorf("no dataset %q", yName)
	}
	return Series{Name: yName + " vs " + xName, X: xs.Values, Y: ys.Values}, nil
}
