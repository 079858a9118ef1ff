package solver

import (
	"context"

	"github.com/vk/mdaogrid/internal/ctxlog"
	"github.com/vk/mdaogrid/internal/mdaoerr"
	"github.com/vk/mdaogrid/internal/system"
)

// RunOnceOptions configures RunOnce.
type RunOnceOptions struct {
	// Parallel runs independent children of one wave concurrently.
	Parallel bool `mdao:"parallel,optional"`
	// CheckResiduals applies the residuals after the sweep and fails when
	// their norm exceeds Atol.
	CheckResiduals bool    `mdao:"check_residuals,optional"`
	Atol           float64 `mdao:"atol,optional"`
}

// DefaultRunOnceOptions returns the defaults.
func DefaultRunOnceOptions() RunOnceOptions {
	return RunOnceOptions{Atol: 1e-10}
}

// RunOnce runs every child of a group exactly once in execution order.
type RunOnce struct {
	opts RunOnceOptions
}

// NewRunOnce validates opts and builds the solver.
func NewRunOnce(opts RunOnceOptions) (*RunOnce, error) {
	c := &optionChecks{solver: "run_once"}
	c.tolerance("atol", opts.Atol)
	if err := c.err(); err != nil {
		return nil, err
	}
	return &RunOnce{opts: opts}, nil
}

func (s *RunOnce) Name() string { return "run_once" }

// Iterative is false: feedback cycles are not resolved.
func (s *RunOnce) Iterative() bool { return false }

// Options returns the solver's configuration.
func (s *RunOnce) Options() RunOnceOptions { return s.opts }

func (s *RunOnce) SolveNonlinear(ctx context.Context, g *system.Group) (system.Result, error) {
	logger := ctxlog.FromContext(ctx)
	res := system.Result{State: system.Converging, Iterations: 1}

	if err := g.Sweep(ctx, s.opts.Parallel); err != nil {
		res.State = system.Failed
		return res, err
	}
	if !s.opts.CheckResiduals {
		res.State = system.Converged
		return res, nil
	}

	if err := g.ApplyNonlinear(ctx); err != nil {
		res.State = system.Failed
		return res, err
	}
	res.Norm = g.ResidualNorm()
	res.Norm0 = res.Norm
	logger.Debug("Residuals checked after single pass.", "group", g.Pathname(), "norm", res.Norm, "atol", s.opts.Atol)
	if res.Norm > s.opts.Atol {
		res.State = system.Failed
		return res, &mdaoerr.ConvergenceError{Solver: s.Name(), System: g.Pathname(), Iterations: 1, Norm: res.Norm}
	}
	res.State = system.Converged
	return res, nil
}
