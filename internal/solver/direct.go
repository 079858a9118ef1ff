package solver

import (
	"context"
	"fmt"

	"github.com/vk/mdaogrid/internal/ctxlog"
	"github.com/vk/mdaogrid/internal/jacobian"
	"github.com/vk/mdaogrid/internal/system"
)

// DirectOptions configures Direct.
type DirectOptions struct {
	Fallback string `mdao:"fallback,optional"`
}

// DefaultDirectOptions returns the defaults.
func DefaultDirectOptions() DirectOptions {
	return DirectOptions{Fallback: "fd"}
}

// Direct assembles the block column by column and solves it with an LU
// factorization.
type Direct struct {
	opts     DirectOptions
	fallback system.Fallback
}

// NewDirect validates opts and builds the solver.
func NewDirect(opts DirectOptions) (*Direct, error) {
	c := &optionChecks{solver: "direct"}
	fb, err := parseFallback(opts.Fallback)
	c.require(err == nil, "%v", err)
	if err := c.err(); err != nil {
		return nil, err
	}
	return &Direct{opts: opts, fallback: fb}, nil
}

func (s *Direct) Name() string              { return "direct" }
func (s *Direct) Fallback() system.Fallback { return s.fallback }

func (s *Direct) SolveLinear(ctx context.Context, b *system.Block, rhs []float64, dir system.Direction) ([]float64, system.Result, error) {
	res := system.Result{State: system.Converging, Iterations: 1}
	if b.Size() == 0 {
		res.State = system.Converged
		return []float64{}, res, nil
	}
	a, err := b.Dense(ctx)
	if err != nil {
		res.State = system.Failed
		return nil, res, err
	}
	x, err := jacobian.SolveDense(a, rhs, dir == system.Reverse)
	if err != nil {
		res.State = system.Failed
		return nil, res, fmt.Errorf("direct solve on %s: %w", b.System().Pathname(), err)
	}
	ctxlog.FromContext(ctx).Debug("Direct solve finished.", "system", b.System().Pathname(), "size", b.Size())
	res.State = system.Converged
	return x, res, nil
}
