package initfile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/san-kum/daesim/internal/dynamo"
	"github.com/san-kum/daesim/internal/models"
)

// Write emits in as an init file, annotating each value with a comment.
func Write(w io.Writer, in *Input, meta models.Metadata) error {
	dims := in.State.Dimensions()
	if len(meta.VariableNames) != dims.Vars() {
		return fmt.Errorf("metadata has %d names, state needs %d", len(meta.VariableNames), dims.Vars())
	}

	bw := bufio.NewWriter(w)
	line := func(v string, comment string) {
		fmt.Fprintf(bw, "%-24s // %s\n", v, comment)
	}
	num := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

	line(num(in.Horizon.Start), "start value")
	line(num(in.Horizon.Stop), "stop value")
	line(num(in.Horizon.Step), "step value")
	line(strconv.Itoa(dims.NX), "n states")
	line(strconv.Itoa(dims.NY), "n alg vars")
	line(strconv.Itoa(dims.NP), "n parameters")

	names := meta.VariableNames
	for i, v := range in.State.X {
		line(num(v), names[i])
	}
	for i, v := range in.State.XD {
		line(num(v), names[dims.NX+i])
	}
	for i, v := range in.State.Y {
		line(num(v), names[2*dims.NX+i])
	}
	for i, v := range in.State.P {
		line(num(v), fmt.Sprintf("p[%d]", i))
	}
	return bw.Flush()
}

// WriteFile writes the default init file of binding b to path.
func WriteFile(path string, b models.Binding, h dynamo.Horizon) error {
	st := dynamo.NewSimulationState(b.Dimensions())
	if d, ok := b.(models.Defaulter); ok {
		st = d.Defaults()
	}

	f, err := os.Create(path)
	if err != nil {
		return dynamo.ResourceError("write init file", path, err)
	}
	if err := Write(f, &Input{Horizon: h, State: st}, b.Metadata()); err != nil {
		f.Close()
		return dynamo.ResourceError("write init file", path, err)
	}
	if err := f.Close(); err != nil {
		return dynamo.ResourceError("write init file", path, err)
	}
	return nil
}
