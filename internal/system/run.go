package system

import (
	"context"
	"fmt"

	"github.com/vk/mdaogrid/internal/ctxlog"
	"github.com/vk/mdaogrid/internal/mdaoerr"
	"github.com/vk/mdaogrid/internal/vars"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
)

func (g *Group) ready() error {
	if g.model == nil {
		return fmt.Errorf("%w: group %s", mdaoerr.ErrNotSetUp, displayPath(g.pathname))
	}
	return nil
}

// transfer routes inbound values into child i.
func (g *Group) transfer(i int) {
	for _, r := range g.transfers[i] {
		r.transfer()
	}
}

// RunChild routes values into child i and solves it: a component is
// evaluated and committed, a group runs its own nonlinear solver.
func (g *Group) RunChild(ctx context.Context, i int) error {
	g.transfer(i)
	switch s := g.children[i].sys.(type) {
	case *Component:
		return s.solveNonlinear(ctx)
	case *Group:
		_, err := s.nl.SolveNonlinear(ctx, s)
		return err
	}
	return nil
}

// Sweep runs every child once in execution order. With parallel set,
// children of one wave run concurrently; waves preserve the data flow of the
// sequential order.
func (g *Group) Sweep(ctx context.Context, parallel bool) error {
	if err := g.ready(); err != nil {
		return err
	}
	if !parallel {
		for i := range g.children {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := g.RunChild(ctx, i); err != nil {
				return err
			}
		}
		return nil
	}

	logger := ctxlog.FromContext(ctx)
	for w, wave := range g.waves {
		logger.Debug("Running wave.", "group", displayPath(g.pathname), "wave", w, "children", len(wave))
		eg, egCtx := errgroup.WithContext(ctx)
		for _, i := range wave {
			eg.Go(func() error {
				return g.RunChild(egCtx, i)
			})
		}
		if err := eg.Wait(); err != nil {
			return err
		}
	}
	return nil
}

// ApplyNonlinear refreshes every residual below the group at the current
// point without changing any unknown.
func (g *Group) ApplyNonlinear(ctx context.Context) error {
	if err := g.ready(); err != nil {
		return err
	}
	for i, c := range g.children {
		g.transfer(i)
		var err error
		switch s := c.sys.(type) {
		case *Component:
			err = s.applyNonlinear(ctx)
		case *Group:
			err = s.ApplyNonlinear(ctx)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// ResidualVector returns F over the group's range: y - f(p) for explicit
// outputs and the written residual for states.
func (g *Group) ResidualVector() []float64 {
	out := make([]float64, g.hi-g.lo)
	for _, c := range g.comps {
		for _, u := range c.reg.Unknowns() {
			if u.Mode != vars.ModeFlat {
				continue
			}
			res, _ := c.reg.Residual(u.Name)
			off := c.infos[u.Name].Offset - g.lo
			for k, v := range res.Data() {
				if u.State {
					out[off+k] = v
				} else {
					out[off+k] = -v
				}
			}
		}
	}
	return out
}

// ResidualNorm is the 2-norm of the stored residuals.
func (g *Group) ResidualNorm() float64 {
	r := g.ResidualVector()
	if len(r) == 0 {
		return 0
	}
	return floats.Norm(r, 2)
}

// UnknownVector returns a copy of the flat unknowns over the group's range.
func (g *Group) UnknownVector() []float64 {
	out := make([]float64, g.hi-g.lo)
	g.eachUnknown(func(data []float64, off int) {
		copy(out[off:], data)
	})
	return out
}

// AddToUnknowns applies u += alpha*delta over the group's range.
func (g *Group) AddToUnknowns(alpha float64, delta []float64) error {
	if len(delta) != g.hi-g.lo {
		return fmt.Errorf("delta has %d entries, want %d", len(delta), g.hi-g.lo)
	}
	g.eachUnknown(func(data []float64, off int) {
		floats.AddScaled(data, alpha, delta[off:off+len(data)])
	})
	return nil
}

func (g *Group) eachUnknown(fn func(data []float64, off int)) {
	for _, c := range g.comps {
		for _, u := range c.reg.Unknowns() {
			if u.Mode == vars.ModeFlat {
				fn(u.Data(), c.infos[u.Name].Offset-g.lo)
			}
		}
	}
}

// Linearize refreshes the Jacobian blocks of every component below the
// group. Components without analytic derivatives follow the fallback of the
// nearest group's linear solver.
func (g *Group) Linearize(ctx context.Context) error {
	if err := g.ready(); err != nil {
		return err
	}
	fallback := FallbackFD
	if p, ok := g.ln.(FallbackPolicy); ok {
		fallback = p.Fallback()
	}
	for i, c := range g.children {
		g.transfer(i)
		var err error
		switch s := c.sys.(type) {
		case *Component:
			err = s.linearize(ctx, fallback)
		case *Group:
			err = s.Linearize(ctx)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
