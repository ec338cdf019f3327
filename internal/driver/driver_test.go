package driver_test

import (
	"context"
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/daesim/internal/driver"
	"github.com/san-kum/daesim/internal/dynamo"
	"github.com/san-kum/daesim/internal/initfile"
	"github.com/san-kum/daesim/internal/models"
	"github.com/san-kum/daesim/internal/solver"
)

// jumpSolver lands exactly on every target and marks the state with the
// number of calls so rows can be told apart.
type jumpSolver struct {
	calls  int
	failAt int
	// the first roots calls stop halfway at a zero crossing
	roots int
}

func (s *jumpSolver) Solve(_ solver.Problem, t float64, x, xd []float64, tout float64, d *solver.Diagnostics) (float64, error) {
	s.calls++
	if s.calls == s.failAt {
		d.Status = solver.StatusConvergenceFailed
		return t, errors.Join(dynamo.ErrSolverFailure, errors.New("corrector diverged"))
	}
	x[0] = float64(s.calls)
	d.Steps++
	if s.calls <= s.roots {
		d.Status = solver.StatusRootFound
		return (t + tout) / 2, nil
	}
	d.Status = solver.StatusReachedTout
	return tout, nil
}

type rowCounter struct{ times []float64 }

func (r *rowCounter) OnRow(t float64, _ *dynamo.SimulationState) { r.times = append(r.times, t) }

func oscillatorInput(h dynamo.Horizon) *initfile.Input {
	return &initfile.Input{Horizon: h, State: models.NewOscillator().Defaults()}
}

var _ = Describe("Driver", func() {
	var (
		ctx     context.Context
		binding models.Binding
	)

	BeforeEach(func() {
		ctx = context.Background()
		binding = models.NewOscillator()
	})

	Describe("the reference scenario", func() {
		It("captures the horizon inside the allocated capacity", func() {
			in := oscillatorInput(dynamo.Horizon{Start: 0, Stop: 5, Step: 0.05})
			res, err := driver.New(binding, solver.NewBDF()).Run(ctx, in)

			Expect(err).NotTo(HaveOccurred())
			Expect(res.Phase).To(Equal(driver.Converged))
			Expect(res.Buffer.Cap()).To(Equal(102))
			Expect(res.Buffer.Width()).To(Equal(6))
			Expect(res.Buffer.Len()).To(BeNumerically("<=", res.Buffer.Cap()))
			Expect(res.Buffer.Time(0)).To(Equal(0.0))
			Expect(res.Buffer.Time(res.Buffer.Len() - 1)).To(BeNumerically(">=", 5.0))
			Expect(res.Diagnostics.Status).To(Equal(solver.StatusReachedTout))
		})

		It("tracks the analytic solution and derives the algebraic output", func() {
			in := oscillatorInput(dynamo.Horizon{Start: 0, Stop: 5, Step: 0.05})
			res, err := driver.New(binding, solver.NewBDF()).Run(ctx, in)
			Expect(err).NotTo(HaveOccurred())

			for i := 1; i < res.Buffer.Len(); i++ {
				row := res.Buffer.Row(i)
				t, x, v, energy := row[0], row[1], row[2], row[5]
				Expect(x).To(BeNumerically("~", math.Cos(t), 1e-2))
				Expect(energy).To(BeNumerically("~", 0.5*(x*x+v*v), 1e-12))
			}
		})

		It("leaves the loaded state untouched", func() {
			in := oscillatorInput(dynamo.Horizon{Start: 0, Stop: 1, Step: 0.1})
			_, err := driver.New(binding, solver.NewBDF()).Run(ctx, in)
			Expect(err).NotTo(HaveOccurred())
			Expect(in.State.X).To(Equal([]float64{1, 0}))
		})
	})

	Describe("the initial row", func() {
		It("is the only row of a zero-length horizon", func() {
			in := oscillatorInput(dynamo.Horizon{Start: 2, Stop: 2, Step: 0.1})
			s := &jumpSolver{}
			res, err := driver.New(binding, s).Run(ctx, in)

			Expect(err).NotTo(HaveOccurred())
			Expect(s.calls).To(BeZero())
			Expect(res.Phase).To(Equal(driver.Converged))
			Expect(res.Buffer.Len()).To(Equal(1))
			Expect(res.Buffer.Row(0)).To(Equal([]float64{2, 1, 0, 0, -1, 0.5}))
		})

		It("is captured even when stop lies before start", func() {
			in := oscillatorInput(dynamo.Horizon{Start: 1, Stop: 0, Step: -0.1})
			res, err := driver.New(binding, &jumpSolver{}).Run(ctx, in)

			Expect(err).NotTo(HaveOccurred())
			Expect(res.Buffer.Len()).To(Equal(1))
			Expect(res.Buffer.Time(0)).To(Equal(1.0))
		})
	})

	Describe("step termination", func() {
		DescribeTable("never outgrows the capacity formula",
			func(start, stop, step float64) {
				in := oscillatorInput(dynamo.Horizon{Start: start, Stop: stop, Step: step})
				res, err := driver.New(binding, &jumpSolver{}).Run(ctx, in)

				Expect(err).NotTo(HaveOccurred())
				Expect(res.Buffer.Len()).To(BeNumerically("<=", res.Buffer.Cap()))
				Expect(res.Buffer.Time(res.Buffer.Len() - 1)).To(BeNumerically(">=", stop))
				Expect(res.Buffer.Time(res.Buffer.Len() - 2)).To(BeNumerically("<", stop))
			},
			Entry("tenths", 0.0, 1.0, 0.1),
			Entry("thirds", 0.0, 1.0, 1.0/3),
			Entry("sevenths", 0.0, 1.0, 1.0/7),
			Entry("offset start", 0.3, 2.9, 0.13),
			Entry("step longer than span", 0.0, 0.5, 2.0),
			Entry("fine grid", 0.0, 10.0, 0.001),
			Entry("last target rounds below stop", 0.1, 0.43, 0.03),
			Entry("long offset grid", 1.1, 5.2, 0.02),
			Entry("offset sixths", 0.2, 0.86, 0.06),
		)

		It("snaps a target that rounding left short of stop", func() {
			in := oscillatorInput(dynamo.Horizon{Start: 0.1, Stop: 0.43, Step: 0.03})
			res, err := driver.New(binding, &jumpSolver{}).Run(ctx, in)

			Expect(err).NotTo(HaveOccurred())
			Expect(res.Buffer.Len()).To(Equal(res.Buffer.Cap()))
			Expect(res.Buffer.Time(res.Buffer.Len() - 1)).To(Equal(0.43))
		})

		It("keeps real solver runs inside the capacity on awkward grids", func() {
			for _, h := range []dynamo.Horizon{
				{Start: 0.1, Stop: 0.43, Step: 0.03},
				{Start: 1.1, Stop: 5.2, Step: 0.02},
				{Start: 0.2, Stop: 0.86, Step: 0.06},
			} {
				res, err := driver.New(binding, solver.NewBDF()).Run(ctx, oscillatorInput(h))
				Expect(err).NotTo(HaveOccurred(), "%+v", h)
				Expect(res.Phase).To(Equal(driver.Converged))
				Expect(res.Buffer.Len()).To(BeNumerically("<=", res.Buffer.Cap()))
			}
		})

		It("re-targets the same output time after a root return", func() {
			in := oscillatorInput(dynamo.Horizon{Start: 0, Stop: 1, Step: 0.5})
			s := &jumpSolver{roots: 1}
			res, err := driver.New(binding, s).Run(ctx, in)

			Expect(err).NotTo(HaveOccurred())
			Expect(s.calls).To(Equal(3))
			Expect(res.Buffer.Column(0)).To(Equal([]float64{0, 0.5, 1}))
			Expect(res.Buffer.Column(1)).To(Equal([]float64{1, 2, 3}))
		})

		It("does not spend rows on repeated root returns", func() {
			in := oscillatorInput(dynamo.Horizon{Start: 0, Stop: 1, Step: 0.5})
			s := &jumpSolver{roots: 5}
			res, err := driver.New(binding, s).Run(ctx, in)

			Expect(err).NotTo(HaveOccurred())
			Expect(res.Phase).To(Equal(driver.Converged))
			Expect(res.Buffer.Column(0)).To(Equal([]float64{0, 0.5, 1}))
			Expect(res.Steps).To(Equal(2))
		})
	})

	Describe("solver failure", func() {
		It("stops stepping and keeps the partial trajectory", func() {
			in := oscillatorInput(dynamo.Horizon{Start: 0, Stop: 1, Step: 0.1})
			res, err := driver.New(binding, &jumpSolver{failAt: 4}).Run(ctx, in)

			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, dynamo.ErrSolverFailure)).To(BeTrue())
			Expect(dynamo.ClassOf(err)).To(Equal(dynamo.ClassNumerical))
			Expect(err.Error()).To(ContainSubstring("status -7"))

			Expect(res.Phase).To(Equal(driver.Failed))
			Expect(res.Buffer.Len()).To(Equal(4))
			Expect(res.Buffer.Column(1)).To(Equal([]float64{1, 1, 2, 3}))
		})

		It("reports a diverged state as a numerical error", func() {
			bad := &jumpSolver{}
			in := oscillatorInput(dynamo.Horizon{Start: 0, Stop: 1, Step: 0.5})
			nanModel := &nanOutput{Oscillator: models.NewOscillator()}
			res, err := driver.New(nanModel, bad).Run(ctx, in)

			Expect(errors.Is(err, dynamo.ErrInvalidState)).To(BeTrue())
			Expect(res.Phase).To(Equal(driver.Failed))
			Expect(res.Buffer.Len()).To(Equal(2))
		})
	})

	Describe("configuration errors", func() {
		It("rejects a state that does not match the model", func() {
			in := oscillatorInput(dynamo.DefaultHorizon())
			in.State.Y = nil
			res, err := driver.New(binding, &jumpSolver{}).Run(ctx, in)

			Expect(res).To(BeNil())
			Expect(errors.Is(err, dynamo.ErrDimensionMismatch)).To(BeTrue())
		})

		It("rejects a forward horizon with a non-positive step", func() {
			in := oscillatorInput(dynamo.Horizon{Start: 0, Stop: 1, Step: 0})
			res, err := driver.New(binding, &jumpSolver{}).Run(ctx, in)

			Expect(dynamo.ClassOf(err)).To(Equal(dynamo.ClassConfig))
			Expect(res.Phase).To(Equal(driver.Failed))
		})
	})

	It("notifies observers for every captured row", func() {
		obs := &rowCounter{}
		in := oscillatorInput(dynamo.Horizon{Start: 0, Stop: 1, Step: 0.25})
		res, err := driver.New(binding, &jumpSolver{}, driver.WithObserver(obs)).Run(ctx, in)

		Expect(err).NotTo(HaveOccurred())
		Expect(obs.times).To(Equal(res.Buffer.Column(0)))
		Expect(obs.times).To(HaveLen(5))
	})

	It("stops with the rows captured so far when the context is canceled", func() {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		in := oscillatorInput(dynamo.Horizon{Start: 0, Stop: 1, Step: 0.25})
		res, err := driver.New(binding, &jumpSolver{}).Run(cctx, in)

		Expect(errors.Is(err, dynamo.ErrContextCanceled)).To(BeTrue())
		Expect(errors.Is(err, context.Canceled)).To(BeTrue())
		Expect(res.Phase).To(Equal(driver.Failed))
		Expect(res.Buffer.Len()).To(Equal(1))
	})

	It("names its phases", func() {
		Expect(driver.Initializing.String()).To(Equal("initializing"))
		Expect(driver.Converged.String()).To(Equal("converged"))
		Expect(driver.Phase(9).String()).To(Equal("phase(9)"))
	})
})

type nanOutput struct {
	*models.Oscillator
}

func (n *nanOutput) Output(_ float64, _, _, _, y []float64) {
	y[0] = math.NaN()
}
