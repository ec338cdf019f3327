// Package metrics summarizes runs: per-row observers computed while the
// driver steps, and Prometheus counters exported as a node_exporter
// textfile once the run is over.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/san-kum/daesim/internal/driver"
)

// Recorder owns a private registry so repeated runs in one process never
// collide with the default registerer.
type Recorder struct {
	reg *prometheus.Registry

	runs          *prometheus.CounterVec
	steps         *prometheus.CounterVec
	rejected      *prometheus.CounterVec
	residualEvals *prometheus.CounterVec
	jacobianEvals *prometheus.CounterVec
	newtonIters   *prometheus.CounterVec
	rows          *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	rowMetrics    *prometheus.GaugeVec
}

func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	byModel := []string{"model"}

	return &Recorder{
		reg: reg,
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "daesim_runs_total",
			Help: "Simulation runs by model and final phase",
		}, []string{"model", "phase"}),
		steps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "daesim_solver_steps_total",
			Help: "Accepted solver steps",
		}, byModel),
		rejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "daesim_solver_rejected_steps_total",
			Help: "Solver steps rejected by the error test or Newton failure",
		}, byModel),
		residualEvals: f.NewCounterVec(prometheus.CounterOpts{
			Name: "daesim_residual_evaluations_total",
			Help: "Residual function evaluations",
		}, byModel),
		jacobianEvals: f.NewCounterVec(prometheus.CounterOpts{
			Name: "daesim_jacobian_evaluations_total",
			Help: "Iteration matrix evaluations",
		}, byModel),
		newtonIters: f.NewCounterVec(prometheus.CounterOpts{
			Name: "daesim_newton_iterations_total",
			Help: "Corrector Newton iterations",
		}, byModel),
		rows: f.NewCounterVec(prometheus.CounterOpts{
			Name: "daesim_trajectory_rows_total",
			Help: "Rows captured into the trajectory buffer",
		}, byModel),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "daesim_run_duration_seconds",
			Help:    "Wall time of the stepping loop",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}, byModel),
		rowMetrics: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "daesim_row_metric",
			Help: "Trajectory summary metrics of the last run",
		}, []string{"model", "metric"}),
	}
}

func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

// Observe adds one run. res may be nil when the run never started.
func (r *Recorder) Observe(model string, res *driver.Result, elapsed time.Duration) {
	if res == nil {
		r.runs.WithLabelValues(model, driver.Failed.String()).Inc()
		return
	}
	d := res.Diagnostics
	r.runs.WithLabelValues(model, res.Phase.String()).Inc()
	r.steps.WithLabelValues(model).Add(float64(d.Steps))
	r.rejected.WithLabelValues(model).Add(float64(d.Rejected))
	r.residualEvals.WithLabelValues(model).Add(float64(d.ResidualEvals))
	r.jacobianEvals.WithLabelValues(model).Add(float64(d.JacobianEvals))
	r.newtonIters.WithLabelValues(model).Add(float64(d.NewtonIters))
	if res.Buffer != nil {
		r.rows.WithLabelValues(model).Add(float64(res.Buffer.Len()))
	}
	r.duration.WithLabelValues(model).Observe(elapsed.Seconds())
}

func (r *Recorder) ObserveRowMetrics(model string, values map[string]float64) {
	for name, v := range values {
		r.rowMetrics.WithLabelValues(model, name).Set(v)
	}
}

// WriteTextfile writes the registry in text exposition format, replacing
// path atomically.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.reg)
}
