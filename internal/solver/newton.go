package solver

import (
	"context"
	"fmt"

	"github.com/vk/mdaogrid/internal/ctxlog"
	"github.com/vk/mdaogrid/internal/mdaoerr"
	"github.com/vk/mdaogrid/internal/system"
)

// NewtonOptions configures Newton.
type NewtonOptions struct {
	Atol    float64 `mdao:"atol,optional"`
	Rtol    float64 `mdao:"rtol,optional"`
	MaxIter int     `mdao:"maxiter,optional"`
	// Alpha scales every step.
	Alpha float64 `mdao:"alpha,optional"`
}

// DefaultNewtonOptions returns the defaults.
func DefaultNewtonOptions() NewtonOptions {
	return NewtonOptions{Atol: 1e-10, Rtol: 1e-10, MaxIter: 20, Alpha: 1}
}

// Newton drives a group's residuals to zero with steps from its linear
// solver: A·δ = -F, u += alpha·δ.
type Newton struct {
	opts NewtonOptions
}

// NewNewton validates opts and builds the solver.
func NewNewton(opts NewtonOptions) (*Newton, error) {
	c := &optionChecks{solver: "newton"}
	c.tolerance("atol", opts.Atol)
	c.tolerance("rtol", opts.Rtol)
	c.maxIter(opts.MaxIter)
	c.require(opts.Alpha > 0 && opts.Alpha <= 1, "alpha must be in (0, 1], got %g", opts.Alpha)
	if err := c.err(); err != nil {
		return nil, err
	}
	return &Newton{opts: opts}, nil
}

func (s *Newton) Name() string    { return "newton" }
func (s *Newton) Iterative() bool { return true }

// Options returns the solver's configuration.
func (s *Newton) Options() NewtonOptions { return s.opts }

func (s *Newton) SolveNonlinear(ctx context.Context, g *system.Group) (system.Result, error) {
	logger := ctxlog.FromContext(ctx)
	res := system.Result{State: system.Converging}

	if err := g.ApplyNonlinear(ctx); err != nil {
		res.State = system.Failed
		return res, err
	}
	res.Norm = g.ResidualNorm()
	res.Norm0 = res.Norm
	if res.Norm < s.opts.Atol {
		res.State = system.Converged
		return res, nil
	}

	block := g.Block()
	for res.Iterations < s.opts.MaxIter {
		if err := ctx.Err(); err != nil {
			res.State = system.Failed
			return res, err
		}
		res.Iterations++

		if err := g.Linearize(ctx); err != nil {
			res.State = system.Failed
			return res, err
		}
		rhs := g.ResidualVector()
		for i := range rhs {
			rhs[i] = -rhs[i]
		}
		delta, _, err := block.Solve(ctx, rhs, system.Forward)
		if err != nil {
			res.State = system.Failed
			return res, fmt.Errorf("newton step %d: %w", res.Iterations, err)
		}
		if err := g.AddToUnknowns(s.opts.Alpha, delta); err != nil {
			res.State = system.Failed
			return res, err
		}

		if err := g.Sweep(ctx, false); err != nil {
			res.State = system.Failed
			return res, err
		}
		if err := g.ApplyNonlinear(ctx); err != nil {
			res.State = system.Failed
			return res, err
		}
		res.Norm = g.ResidualNorm()
		logger.Debug("Newton iteration finished.", "group", g.Pathname(), "iteration", res.Iterations, "norm", res.Norm)

		if converged(res, s.opts.Atol, s.opts.Rtol) {
			res.State = system.Converged
			logger.Debug("Newton converged.", "group", g.Pathname(), "iterations", res.Iterations, "norm", res.Norm)
			return res, nil
		}
	}

	res.State = system.Failed
	return res, &mdaoerr.ConvergenceError{Solver: s.Name(), System: g.Pathname(), Iterations: res.Iterations, Norm: res.Norm}
}
