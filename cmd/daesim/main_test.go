package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/daesim/internal/dynamo"
	"github.com/san-kum/daesim/internal/plt"
)

func run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestUsageExitsZero(t *testing.T) {
	code, out, _ := run(t, "-?")
	assert.Equal(t, dynamo.ExitOK, code)
	assert.Contains(t, out, "--init")
	assert.Contains(t, out, "--result")
}

func TestUnknownFlagIsConfigError(t *testing.T) {
	code, _, errOut := run(t, "--bogus")
	assert.Equal(t, dynamo.ExitConfig, code)
	assert.Contains(t, errOut, "bogus")
}

func TestMissingInitFile(t *testing.T) {
	dir := t.TempDir()
	code, _, errOut := run(t, "-f", filepath.Join(dir, "missing.txt"), "-r", filepath.Join(dir, "out.plt"), "--data", "")
	assert.Equal(t, dynamo.ExitConfig, code)
	assert.Contains(t, errOut, "can not read file")
	assert.NoFileExists(t, filepath.Join(dir, "out.plt"))
}

func TestInitRunPlotChart(t *testing.T) {
	dir := t.TempDir()
	initPath := filepath.Join(dir, "osc_init.txt")
	resPath := filepath.Join(dir, "osc_res.plt")
	runs := filepath.Join(dir, "runs")

	code, out, _ := run(t, "init", "oscillator", "-o", initPath, "--stop", "1", "--step", "0.1")
	require.Equal(t, dynamo.ExitOK, code)
	assert.Contains(t, out, initPath)

	code, out, errOut := run(t, "-m", "oscillator", "-f", initPath, "-r", resPath, "--data", runs,
		"--metrics-file", filepath.Join(dir, "daesim.prom"))
	require.Equal(t, dynamo.ExitOK, code, errOut)
	assert.Contains(t, out, "converged")
	assert.Contains(t, out, "11/12")

	f, err := plt.Read(resPath)
	require.NoError(t, err)
	assert.Equal(t, 11, f.IntervalSize)
	assert.FileExists(t, filepath.Join(dir, "daesim.prom"))

	code, out, _ = run(t, "plot", resPath, "--var", "x", "--width", "40", "--height", "5")
	require.Equal(t, dynamo.ExitOK, code)
	assert.Contains(t, out, "rows: 11")

	code, out, _ = run(t, "plot", resPath, "--phase", "x,v")
	require.Equal(t, dynamo.ExitOK, code)
	assert.Contains(t, out, "v vs x")

	png := filepath.Join(dir, "osc.png")
	code, _, errOut = run(t, "chart", resPath, "-o", png, "--var", "x,energy")
	require.Equal(t, dynamo.ExitOK, code, errOut)
	assert.FileExists(t, png)

	code, out, _ = run(t, "list", "--data", runs)
	require.Equal(t, dynamo.ExitOK, code)
	assert.Contains(t, out, "oscillator")
	assert.Contains(t, out, "converged")

	entries, err := os.ReadDir(runs)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	code, out, _ = run(t, "show", entries[0].Name(), "--data", runs)
	require.Equal(t, dynamo.ExitOK, code)
	assert.Contains(t, out, `"model": "oscillator"`)

	code, _, _ = run(t, "show", "nope", "--data", runs)
	assert.Equal(t, dynamo.ExitConfig, code)

	states := filepath.Join(runs, entries[0].Name(), "states.csv")
	require.NoError(t, os.WriteFile(states, []byte("time,x\nbad,1\n"), 0644))
	code, _, _ = run(t, "show", entries[0].Name(), "--data", runs)
	assert.Equal(t, dynamo.ExitResource, code)
}

func TestSummaryShowsFailureCause(t *testing.T) {
	dir := t.TempDir()
	initPath := filepath.Join(dir, "osc_init.txt")
	code, _, _ := run(t, "init", "oscillator", "-o", initPath, "--stop", "0.5", "--step", "0.1")
	require.Equal(t, dynamo.ExitOK, code)

	code, out, _ := run(t, "-f", initPath, "-r", filepath.Join(dir, "missing", "out.plt"), "--data", "")
	assert.Equal(t, dynamo.ExitResource, code)
	assert.Contains(t, out, "error:")
	assert.Contains(t, out, "create output file")
}

func TestConfigFileWithFlagOverride(t *testing.T) {
	dir := t.TempDir()
	initPath := filepath.Join(dir, "vdp_init.txt")
	code, _, _ := run(t, "init", "vanderpol", "-o", initPath, "--preset", "transient")
	require.Equal(t, dynamo.ExitOK, code)

	cfgPath := filepath.Join(dir, "run.yaml")
	yaml := "model: vanderpol\ninit_file: " + initPath + "\nresult_file: " + filepath.Join(dir, "from_config.plt") + "\ndata_dir: \"\"\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(yaml), 0644))

	override := filepath.Join(dir, "from_flag.plt")
	code, _, errOut := run(t, "--config", cfgPath, "-r", override, "-q")
	require.Equal(t, dynamo.ExitOK, code, errOut)
	assert.FileExists(t, override)
	assert.NoFileExists(t, filepath.Join(dir, "from_config.plt"))
}

func TestBadArguments(t *testing.T) {
	dir := t.TempDir()
	cases := [][]string{
		{"init", "rocket", "-o", filepath.Join(dir, "x.txt")},
		{"init", "oscillator", "--preset", "nope", "-o", filepath.Join(dir, "x.txt")},
		{"plot", filepath.Join(dir, "missing.plt")},
		{"chart", filepath.Join(dir, "missing.plt")},
		{"-m", "rocket", "--data", ""},
	}
	for _, args := range cases {
		code, _, _ := run(t, args...)
		assert.Equal(t, dynamo.ExitConfig, code, "%v", args)
	}
}

func TestModelsAndPresets(t *testing.T) {
	code, out, _ := run(t, "models")
	require.Equal(t, dynamo.ExitOK, code)
	assert.Contains(t, out, "oscillator")
	assert.Contains(t, out, "der(x)")

	code, out, _ = run(t, "presets", "pendulum")
	require.Equal(t, dynamo.ExitOK, code)
	assert.Contains(t, out, "swing")
}

func TestAnalyze(t *testing.T) {
	dir := t.TempDir()
	initPath := filepath.Join(dir, "osc_init.txt")
	resPath := filepath.Join(dir, "osc_res.plt")

	code, _, _ := run(t, "init", "oscillator", "-o", initPath, "--stop", "20", "--step", "0.1")
	require.Equal(t, dynamo.ExitOK, code)
	code, _, errOut := run(t, "-f", initPath, "-r", resPath, "--data", "", "-q")
	require.Equal(t, dynamo.ExitOK, code, errOut)

	code, out, _ := run(t, "analyze", resPath, "--var", "x", "--spectrum")
	require.Equal(t, dynamo.ExitOK, code)
	assert.Contains(t, out, "DOMINANT")
	assert.Contains(t, out, "x amplitude spectrum")
}
