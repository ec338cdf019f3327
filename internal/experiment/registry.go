package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/daesim/internal/metrics"
	"github.com/san-kum/daesim/internal/models"
	"github.com/san-kum/daesim/internal/solver"
)

const DefaultSolver = "bdf2"

// Registry resolves the names a run configuration refers to: models,
// solvers and the row metrics attached to each model.
type Registry struct {
	models  *models.Registry
	solvers map[string]func() solver.Solver
	metrics map[string]func() []metrics.RowMetric
}

func NewRegistry() *Registry {
	r := &Registry{
		models:  models.NewRegistry(),
		solvers: make(map[string]func() solver.Solver),
		metrics: make(map[string]func() []metrics.RowMetric),
	}

	r.solvers["bdf2"] = func() solver.Solver { return solver.NewBDF() }
	r.solvers["bdf1"] = func() solver.Solver {
		s := solver.NewBDF()
		s.MaxOrder = 1
		return s
	}

	// output index 0 is the conserved quantity where a model has one
	r.metrics["oscillator"] = func() []metrics.RowMetric {
		return []metrics.RowMetric{metrics.NewDrift("energy", 0), metrics.NewBound(10)}
	}
	r.metrics["pendulum"] = func() []metrics.RowMetric {
		return []metrics.RowMetric{metrics.NewDrift("energy", 0), metrics.NewBound(100)}
	}
	r.metrics["vanderpol"] = func() []metrics.RowMetric {
		return []metrics.RowMetric{metrics.NewBound(10)}
	}

	return r
}

func (r *Registry) Models() *models.Registry { return r.models }

func (r *Registry) GetModel(name string) (models.Binding, error) {
	return r.models.Get(name)
}

func (r *Registry) GetSolver(name string) (solver.Solver, error) {
	fn, ok := r.solvers[name]
	if !ok {
		return nil, fmt.Errorf("unknown solver: %s (available: %v)", name, r.ListSolvers())
	}
	return fn(), nil
}

func (r *Registry) ListModels() []string {
	return r.models.List()
}

func (r *Registry) ListSolvers() []string {
	names := make([]string, 0, len(r.solvers))
	for name := range r.solvers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultMetrics returns fresh row metrics for model, or nil.
func (r *Registry) DefaultMetrics(model string) []metrics.RowMetric {
	fn, ok := r.metrics[model]
	if !ok {
		return nil
	}
	return fn()
}
