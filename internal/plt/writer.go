// Package plt encodes trajectories in the Ptolemy plot text format: a
// short header followed by one DataSet block per variable, each listing
// (time, value) pairs for every captured row.
package plt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/san-kum/daesim/internal/dynamo"
	"github.com/san-kum/daesim/internal/models"
	"github.com/san-kum/daesim/internal/trajectory"
)

const (
	Signature = "#Ptolemy Plot file, generated by daesim"
	Title     = "daesim simulation plot"
	XLabel    = "t"
	TimeName  = "time"
)

// DefaultPath is the result file used when none is given.
func DefaultPath(modelName string) string {
	return modelName + "_res.plt"
}

// Write encodes buf to path. The file is written next to its destination
// and renamed into place, so a failed write never leaves a truncated
// result under the requested name.
func Write(path string, buf *trajectory.Buffer, meta models.Metadata) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return dynamo.ResourceError("create output file", path, err)
	}
	defer os.Remove(tmp.Name())

	if err := Encode(tmp, buf, meta); err != nil {
		tmp.Close()
		return dynamo.ResourceError("write output file", path, err)
	}
	if err := tmp.Close(); err != nil {
		return dynamo.ResourceError("write output file", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return dynamo.ResourceError("write output file", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return dynamo.ResourceError("create output file", path, err)
	}
	return nil
}

// Encode writes the plot text for buf to w.
func Encode(w io.Writer, buf *trajectory.Buffer, meta models.Metadata) error {
	dims := buf.Dimensions()
	if len(meta.VariableNames) != dims.Vars() {
		return fmt.Errorf("plt: %d variable names for %d variables", len(meta.VariableNames), dims.Vars())
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, Signature)
	fmt.Fprintf(bw, "#IntervalSize=%d\n", buf.Len())
	fmt.Fprintf(bw, "TitleText: %s\n", Title)
	fmt.Fprintf(bw, "XLabel: %s\n\n", XLabel)

	// column 0 is time, then states, derivatives and algebraics in the
	// same order as the variable names
	writeDataSet(bw, TimeName, buf, 0)
	for j, name := range meta.VariableNames {
		writeDataSet(bw, name, buf, j+1)
	}
	return bw.Flush()
}

func writeDataSet(bw *bufio.Writer, name string, buf *trajectory.Buffer, col int) {
	fmt.Fprintf(bw, "DataSet: %s\n", name)
	num := make([]byte, 0, 32)
	for i := 0; i < buf.Len(); i++ {
		row := buf.Row(i)
		num = strconv.AppendFloat(num[:0], row[0], 'g', -1, 64)
		num = append(num, ',', ' ')
		num = strconv.AppendFloat(num, row[col], 'g', -1, 64)
		num = append(num, '\n')
		bw.Write(num)
	}
	bw.WriteByte('\n')
}
