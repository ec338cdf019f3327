package plt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// DataSet is one named series of (time, value) pairs.
type DataSet struct {
	Name   string
	Times  []float64
	Values []float64
}

// File is a decoded plot file.
type File struct {
	IntervalSize int
	Title        string
	XLabel       string
	DataSets     []DataSet
}

// Read decodes the plot file at path.
func Read(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses plot text. Header lines may appear in any order before the
// first DataSet; blank lines separate blocks.
func Decode(r io.Reader) (*File, error) {
	out := &File{IntervalSize: -1}
	sc := bufio.NewScanner(r)
	var cur *DataSet
	line := 0

	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		switch {
		case text == "":
			cur = nil
		case strings.HasPrefix(text, "#IntervalSize="):
			n, err := strconv.Atoi(strings.TrimPrefix(text, "#IntervalSize="))
			if err != nil {
				return nil, fmt.Errorf("plt: line %d: bad interval size: %w", line, err)
			}
			out.IntervalSize = n
		case strings.HasPrefix(text, "#"):
		case strings.HasPrefix(text, "TitleText:"):
			out.Title = strings.TrimSpace(strings.TrimPrefix(text, "TitleText:"))
		case strings.HasPrefix(text, "XLabel:"):
			out.XLabel = strings.TrimSpace(strings.TrimPrefix(text, "XLabel:"))
		case strings.HasPrefix(text, "DataSet:"):
			out.DataSets = append(out.DataSets, DataSet{Name: strings.TrimSpace(strings.TrimPrefix(text, "DataSet:"))})
			cur = &out.DataSets[len(out.DataSets)-1]
		default:
			if cur == nil {
				return nil, fmt.Errorf("plt: line %d: data outside a DataSet block", line)
			}
			ts, vs, ok := strings.Cut(text, ",")
			if !ok {
				return nil, fmt.Errorf("plt: line %d: expected \"time, value\", got %q", line, text)
			}
			t, err := strconv.ParseFloat(strings.TrimSpace(ts), 64)
			if err != nil {
				return nil, fmt.Errorf("plt: line %d: %w", line, err)
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(vs), 64)
			if err != nil {
				return nil, fmt.Errorf("plt: line %d: %w", line, err)
			}
			cur.Times = append(cur.Times, t)
			cur.Values = append(cur.Values, v)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Lookup returns the dataset called name.
func (f *File) Lookup(name string) (*DataSet, bool) {
	for i := range f.DataSets {
		if f.DataSets[i].Name == name {
			return &f.DataSets[i], true
		}
	}
	return nil, false
}

// Names lists the dataset names in file order.
func (f *File) Names() []string {
	names := make([]string, len(f.DataSets))
	for i, ds := range f.DataSets {
		names[i] = ds.Name
	}
	return names
}

// Rows re-pairs the datasets by row index into trajectory rows: time
// followed by each dataset value after the leading time dataset.
func (f *File) Rows() ([][]float64, error) {
	if len(f.DataSets) == 0 {
		return nil, nil
	}
	n := len(f.DataSets[0].Times)
	if f.IntervalSize >= 0 && f.IntervalSize != n {
		return nil, fmt.Errorf("plt: header declares %d rows, time has %d", f.IntervalSize, n)
	}
	for _, ds := range f.DataSets {
		if len(ds.Times) != n {
			return nil, fmt.Errorf("plt: dataset %s has %d rows, want %d", ds.Name, len(ds.Times), n)
		}
	}

	rows := make([][]float64, n)
	for i := range rows {
		row := make([]float64, 0, len(f.DataSets))
		row = append(row, f.DataSets[0].Times[i])
		for _, ds := range f.DataSets[1:] {
			if ds.Times[i] != row[0] {
				return nil, fmt.Errorf("plt: dataset %s row %d at t=%g, want %g", ds.Name, i, ds.Times[i], row[0])
			}
			row = append(row, ds.Values[i])
		}
		rows[i] = row
	}
	return rows, nil
}
