package system

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/vk/mdaogrid/internal/ctxlog"
	"github.com/vk/mdaogrid/internal/mdaoerr"
	"github.com/vk/mdaogrid/internal/vars"
)

// evaluation holds the scratch copies written by one UpdateValues call.
type evaluation struct {
	snap     vars.Snapshot
	unknowns map[string]*vars.Var
	resids   map[string]*vars.Var
}

// evaluate runs UpdateValues against scratch unknowns and residuals and
// checks the contract before anything is committed.
func (c *Component) evaluate(ctx context.Context) (*evaluation, error) {
	unknowns := c.reg.Unknowns()
	resids := c.reg.Resids()

	ev := &evaluation{
		unknowns: make(map[string]*vars.Var, len(unknowns)),
		resids:   make(map[string]*vars.Var, len(resids)),
	}
	scratchU := make([]*vars.Var, len(unknowns))
	for i, u := range unknowns {
		scratchU[i] = u.Clone()
		ev.unknowns[u.Name] = scratchU[i]
	}
	scratchR := make([]*vars.Var, len(resids))
	for i, r := range resids {
		scratchR[i] = r.Clone()
		ev.resids[r.Name] = scratchR[i]
	}
	ev.snap = vars.Snapshot{
		Params:   vars.NewView(vars.KindParam, c.reg.Params(), true),
		Unknowns: vars.NewView(vars.KindUnknown, scratchU, false),
		Resids:   vars.NewView(vars.KindResidual, scratchR, false),
	}

	if err := c.impl.UpdateValues(ctx, ev.snap.Params, ev.snap.Unknowns, ev.snap.Resids); err != nil {
		return nil, fmt.Errorf("component %s: %w", displayPath(c.pathname), err)
	}

	var result *multierror.Error
	result = multierror.Append(result, ev.snap.Params.Err(), ev.snap.Unknowns.Err(), ev.snap.Resids.Err())

	var missing []string
	for _, u := range unknowns {
		switch {
		case u.State && !ev.snap.Resids.Written(u.Name):
			missing = append(missing, "resids."+u.Name)
		case !u.State && !ev.snap.Unknowns.Written(u.Name):
			missing = append(missing, u.Name)
		}
	}
	if len(missing) > 0 {
		result = multierror.Append(result, &mdaoerr.IncompleteUpdateError{Component: displayPath(c.pathname), Missing: missing})
	}

	if err := result.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("component %s: %w", displayPath(c.pathname), err)
	}
	return ev, nil
}

// solveNonlinear runs the component and commits its outputs.
func (c *Component) solveNonlinear(ctx context.Context) error {
	ev, err := c.evaluate(ctx)
	if err != nil {
		return err
	}
	c.commit(ev, true)
	ctxlog.FromContext(ctx).Debug("Component updated.", "component", c.pathname)
	return nil
}

// applyNonlinear computes residuals at the current point without changing
// any unknown.
func (c *Component) applyNonlinear(ctx context.Context) error {
	ev, err := c.evaluate(ctx)
	if err != nil {
		return err
	}
	c.commit(ev, false)
	return nil
}

// commit stores residuals and, when update is set, the new unknowns.
// Explicit residuals are new minus old; state residuals are as written.
func (c *Component) commit(ev *evaluation, update bool) {
	for _, u := range c.reg.Unknowns() {
		scratch := ev.unknowns[u.Name]
		if u.Mode == vars.ModeByObj {
			if update {
				u.SetObj(scratch.Obj())
			}
			continue
		}

		res, _ := c.reg.Residual(u.Name)
		if u.State {
			copy(res.Data(), ev.resids[u.Name].Data())
			if update && ev.snap.Unknowns.Written(u.Name) {
				copy(u.Data(), scratch.Data())
			}
			continue
		}

		out, cur, newVals := res.Data(), u.Data(), scratch.Data()
		for k := range out {
			out[k] = newVals[k] - cur[k]
		}
		if update {
			copy(cur, newVals)
		}
	}
}

// outputs returns the values differentiated by finite differences: new
// values of explicit outputs and residuals of states.
func (ev *evaluation) outputs(unknowns []*vars.Var) map[string][]float64 {
	out := make(map[string][]float64, len(unknowns))
	for _, u := range unknowns {
		if u.Mode == vars.ModeByObj {
			continue
		}
		if u.State {
			out[u.Name] = ev.resids[u.Name].Data()
		} else {
			out[u.Name] = ev.unknowns[u.Name].Data()
		}
	}
	return out
}
