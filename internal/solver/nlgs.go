package solver

import (
	"context"

	"github.com/vk/mdaogrid/internal/ctxlog"
	"github.com/vk/mdaogrid/internal/mdaoerr"
	"github.com/vk/mdaogrid/internal/system"
)

// NLGaussSeidelOptions configures NLGaussSeidel.
type NLGaussSeidelOptions struct {
	Atol    float64 `mdao:"atol,optional"`
	Rtol    float64 `mdao:"rtol,optional"`
	MaxIter int     `mdao:"maxiter,optional"`
}

// DefaultNLGaussSeidelOptions returns the defaults.
func DefaultNLGaussSeidelOptions() NLGaussSeidelOptions {
	return NLGaussSeidelOptions{Atol: 1e-6, Rtol: 1e-6, MaxIter: 100}
}

// NLGaussSeidel repeats sweeps until the residual norm meets a tolerance.
type NLGaussSeidel struct {
	opts NLGaussSeidelOptions
}

// NewNLGaussSeidel validates opts and builds the solver.
func NewNLGaussSeidel(opts NLGaussSeidelOptions) (*NLGaussSeidel, error) {
	c := &optionChecks{solver: "nl_gauss_seidel"}
	c.tolerance("atol", opts.Atol)
	c.tolerance("rtol", opts.Rtol)
	c.maxIter(opts.MaxIter)
	if err := c.err(); err != nil {
		return nil, err
	}
	return &NLGaussSeidel{opts: opts}, nil
}

func (s *NLGaussSeidel) Name() string    { return "nl_gauss_seidel" }
func (s *NLGaussSeidel) Iterative() bool { return true }

// Options returns the solver's configuration.
func (s *NLGaussSeidel) Options() NLGaussSeidelOptions { return s.opts }

func (s *NLGaussSeidel) SolveNonlinear(ctx context.Context, g *system.Group) (system.Result, error) {
	logger := ctxlog.FromContext(ctx)
	res := system.Result{State: system.Converging}

	for res.Iterations < s.opts.MaxIter {
		if err := ctx.Err(); err != nil {
			res.State = system.Failed
			return res, err
		}
		res.Iterations++
		if err := g.Sweep(ctx, false); err != nil {
			res.State = system.Failed
			return res, err
		}
		if err := g.ApplyNonlinear(ctx); err != nil {
			res.State = system.Failed
			return res, err
		}

		res.Norm = g.ResidualNorm()
		if res.Iterations == 1 {
			res.Norm0 = res.Norm
		}
		logger.Debug("NLGaussSeidel iteration finished.", "group", g.Pathname(), "iteration", res.Iterations, "norm", res.Norm)

		if converged(res, s.opts.Atol, s.opts.Rtol) {
			res.State = system.Converged
			logger.Debug("NLGaussSeidel converged.", "group", g.Pathname(), "iterations", res.Iterations, "norm", res.Norm)
			return res, nil
		}
	}

	res.State = system.Failed
	return res, &mdaoerr.ConvergenceError{Solver: s.Name(), System: g.Pathname(), Iterations: res.Iterations, Norm: res.Norm}
}

// converged applies the absolute and relative tests. The relative test
// needs a nonzero reference norm.
func converged(res system.Result, atol, rtol float64) bool {
	if res.Norm < atol {
		return true
	}
	return res.Norm0 > 0 && res.Norm/res.Norm0 < rtol
}
