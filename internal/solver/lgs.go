package solver

import (
	"context"
	"slices"

	"github.com/vk/mdaogrid/internal/ctxlog"
	"github.com/vk/mdaogrid/internal/mdaoerr"
	"github.com/vk/mdaogrid/internal/system"
	"gonum.org/v1/gonum/floats"
)

// LinearGaussSeidelOptions configures LinearGaussSeidel.
type LinearGaussSeidelOptions struct {
	Atol     float64 `mdao:"atol,optional"`
	MaxIter  int     `mdao:"maxiter,optional"`
	Fallback string  `mdao:"fallback,optional"`
}

// DefaultLinearGaussSeidelOptions returns the defaults.
func DefaultLinearGaussSeidelOptions() LinearGaussSeidelOptions {
	return LinearGaussSeidelOptions{Atol: 1e-10, MaxIter: 100, Fallback: "fd"}
}

// LinearGaussSeidel is block Gauss-Seidel over a group's children. Each
// child block is solved by the child's own policy. Reverse solves visit the
// children last to first.
type LinearGaussSeidel struct {
	opts     LinearGaussSeidelOptions
	fallback system.Fallback
}

// NewLinearGaussSeidel validates opts and builds the solver.
func NewLinearGaussSeidel(opts LinearGaussSeidelOptions) (*LinearGaussSeidel, error) {
	c := &optionChecks{solver: "ln_gauss_seidel"}
	c.tolerance("atol", opts.Atol)
	c.maxIter(opts.MaxIter)
	fb, err := parseFallback(opts.Fallback)
	c.require(err == nil, "%v", err)
	if err := c.err(); err != nil {
		return nil, err
	}
	return &LinearGaussSeidel{opts: opts, fallback: fb}, nil
}

func (s *LinearGaussSeidel) Name() string              { return "ln_gauss_seidel" }
func (s *LinearGaussSeidel) Fallback() system.Fallback { return s.fallback }

// Options returns the solver's configuration.
func (s *LinearGaussSeidel) Options() LinearGaussSeidelOptions { return s.opts }

func (s *LinearGaussSeidel) SolveLinear(ctx context.Context, b *system.Block, rhs []float64, dir system.Direction) ([]float64, system.Result, error) {
	logger := ctxlog.FromContext(ctx)
	n := b.Size()
	x := make([]float64, n)
	r := make([]float64, n)
	res := system.Result{State: system.Converging}

	children := b.Children()
	if dir == system.Reverse {
		slices.Reverse(children)
	}

	residual := func() error {
		if err := b.Apply(ctx, r, x, dir); err != nil {
			return err
		}
		floats.SubTo(r, rhs, r)
		return nil
	}

	if err := residual(); err != nil {
		res.State = system.Failed
		return nil, res, err
	}
	res.Norm0 = floats.Norm(r, 2)
	res.Norm = res.Norm0
	if res.Norm < s.opts.Atol {
		res.State = system.Converged
		return x, res, nil
	}

	for res.Iterations < s.opts.MaxIter {
		res.Iterations++
		for _, child := range children {
			if child.Size() == 0 {
				continue
			}
			lo := b.Offset(child)
			hi := lo + child.Size()
			delta, _, err := child.Solve(ctx, r[lo:hi], dir)
			if err != nil {
				res.State = system.Failed
				return nil, res, err
			}
			floats.Add(x[lo:hi], delta)
			if err := residual(); err != nil {
				res.State = system.Failed
				return nil, res, err
			}
		}

		res.Norm = floats.Norm(r, 2)
		logger.Debug("LinearGaussSeidel iteration finished.", "system", b.System().Pathname(), "iteration", res.Iterations, "norm", res.Norm)
		if res.Norm < s.opts.Atol {
			res.State = system.Converged
			return x, res, nil
		}
	}

	res.State = system.Failed
	return nil, res, &mdaoerr.ConvergenceError{Solver: s.Name(), System: b.System().Pathname(), Iterations: res.Iterations, Norm: res.Norm, Linear: true}
}
