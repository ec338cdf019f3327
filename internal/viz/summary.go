package viz

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Summary is the printable digest of one run.
type Summary struct {
	Model      string
	Phase      string
	Failed     bool
	Rows       int
	Capacity   int
	Steps      int
	Rejected   int
	Residuals  int
	Jacobians  int
	Status     string
	ResultFile string
	RunID      string
	Elapsed    time.Duration
	Metrics    map[string]float64
	// Trace is sparkline input, typically the first state column.
	Trace []float64
	Err   error
}

func RenderSummary(s Summary) string {
	status := StatusOK.Render(s.Phase)
	if s.Failed {
		status = StatusFailed.Render(s.Phase)
	}

	var b strings.Builder
	b.WriteString(Title.Render("daesim · "+s.Model) + "\n\n")
	row := func(label, value string) {
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, Label.Render(label), Value.Render(value)) + "\n")
	}

	row("phase", status)
	fill := 0.0
	if s.Capacity > 0 {
		fill = float64(s.Rows) / float64(s.Capacity)
	}
	row("rows", fmt.Sprintf("%d/%d %s", s.Rows, s.Capacity, ProgressBar(fill, 20)))
	row("solver steps", fmt.Sprintf("%d (%d rejected)", s.Steps, s.Rejected))
	row("evaluations", fmt.Sprintf("%d residual, %d jacobian", s.Residuals, s.Jacobians))
	if s.Status != "" {
		row("last status", s.Status)
	}
	if s.Elapsed > 0 {
		row("elapsed", s.Elapsed.Round(time.Microsecond).String())
	}
	if s.ResultFile != "" {
		row("result", s.ResultFile)
	}
	if s.RunID != "" {
		row("run id", s.RunID)
	}

	if len(s.Metrics) > 0 {
		names := make([]string, 0, len(s.Metrics))
		for name := range s.Metrics {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			row(name, fmt.Sprintf("%.6g", s.Metrics[name]))
		}
	}
	if len(s.Trace) > 0 {
		b.WriteString("\n" + Sparkline(s.Trace, 40) + "\n")
	}
	if s.Err != nil {
		b.WriteString("\n" + StatusFailed.Render("error: ") + s.Err.Error() + "\n")
	}

	return Panel.Render(strings.TrimRight(b.String(), "\n"))
}
