// Package initfile reads and writes the initial-condition file of a run.
//
// The file is a sequence of numeric fields, one per line, each optionally
// followed by a comment that runs to the end of the line:
//
//	0.0     // start value
//	5.0     // stop value
//	0.05    // step value
//	2       // n states
//	1       // n alg vars
//	0       // n parameters
//	1.0     // x
//	...
//
// Fields appear in the order start, stop, step, nx, ny, np, then nx state
// values, nx derivative values, ny algebraic values and np parameters.
package initfile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/san-kum/daesim/internal/dynamo"
)

// Input is the content of an init file.
type Input struct {
	Horizon dynamo.Horizon
	State   *dynamo.SimulationState
}

// DefaultPath is the init file used when none is given.
func DefaultPath(modelName string) string {
	return modelName + "_init.txt"
}

// Load reads path and validates it against dims.
func Load(path string, dims dynamo.Dimensions) (*Input, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, dynamo.ConfigError("read input", path, fmt.Errorf("can not read file as indata to simulation: %w", err))
	}
	defer f.Close()

	in, err := Parse(f, dims)
	if err != nil {
		return nil, dynamo.ConfigError("read input", path, err)
	}
	return in, nil
}

// Parse reads an init file from r and validates it against dims.
func Parse(r io.Reader, dims dynamo.Dimensions) (*Input, error) {
	fr := &fieldReader{sc: bufio.NewScanner(r)}

	var h dynamo.Horizon
	for _, f := range []struct {
		name string
		dst  *float64
	}{{"start", &h.Start}, {"stop", &h.Stop}, {"step", &h.Step}} {
		v, err := fr.readFloat(f.name)
		if err != nil {
			return nil, err
		}
		*f.dst = v
	}

	var found dynamo.Dimensions
	for _, f := range []struct {
		name string
		dst  *int
	}{{"nx", &found.NX}, {"ny", &found.NY}, {"np", &found.NP}} {
		v, err := fr.readInt(f.name)
		if err != nil {
			return nil, err
		}
		*f.dst = v
	}
	if found != dims {
		return nil, &dynamo.DimensionMismatchError{Expected: dims, Found: found}
	}

	st := dynamo.NewSimulationState(dims)
	for _, block := range []struct {
		name string
		dst  []float64
	}{{"x", st.X}, {"xd", st.XD}, {"y", st.Y}, {"p", st.P}} {
		for i := range block.dst {
			v, err := fr.readFloat(fmt.Sprintf("%s[%d]", block.name, i))
			if err != nil {
				return nil, err
			}
			block.dst[i] = v
		}
	}
	if err := fr.sc.Err(); err != nil {
		return nil, err
	}

	return &Input{Horizon: h, State: st}, nil
}

// FieldError reports the field and line of a parse failure.
type FieldError struct {
	Field string
	Line  int
	Text  string
	Err   error
}

func (e *FieldError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("field %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("field %s (line %d, %q): %v", e.Field, e.Line, e.Text, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

type fieldReader struct {
	sc   *bufio.Scanner
	line int
}

// next returns the leading token of the next non-blank line; whatever
// follows it on the line is a comment.
func (r *fieldReader) next(field string) (string, error) {
	for r.sc.Scan() {
		r.line++
		tokens := strings.Fields(r.sc.Text())
		if len(tokens) == 0 {
			continue
		}
		return tokens[0], nil
	}
	if err := r.sc.Err(); err != nil {
		return "", &FieldError{Field: field, Line: r.line, Err: err}
	}
	return "", &FieldError{Field: field, Err: dynamo.ErrMissingValue}
}

func (r *fieldReader) readFloat(field string) (float64, error) {
	tok, err := r.next(field)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, &FieldError{Field: field, Line: r.line, Text: tok, Err: dynamo.ErrMalformedValue}
	}
	return v, nil
}

func (r *fieldReader) readInt(field string) (int, error) {
	tok, err := r.next(field)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(tok)
	if err != nil {
		return 0, &FieldError{Field: field, Line: r.line, Text: tok, Err: dynamo.ErrMalformedValue}
	}
	return v, nil
}
