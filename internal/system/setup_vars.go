package system

import (
	"context"
	"fmt"

	"github.com/vk/mdaogrid/internal/ctxlog"
	"github.com/vk/mdaogrid/internal/varpath"
)

// assignPaths names every system after its position in the tree, installs
// default solvers and enumerates the variables depth-first.
func (st *setupState) assignPaths(ctx context.Context, g *Group, pathname string) error {
	g.pathname = pathname
	st.groups = append(st.groups, g)
	if err := st.installDefaults(ctx, g); err != nil {
		return err
	}

	g.comps = nil
	for _, c := range g.children {
		path := varpath.Join(pathname, c.name)
		switch sys := c.sys.(type) {
		case *Group:
			if err := st.assignPaths(ctx, sys, path); err != nil {
				return err
			}
			g.comps = append(g.comps, sys.comps...)
		case *Component:
			sys.pathname = path
			sys.reg.SetScope(path)
			st.enumerate(sys)
			g.comps = append(g.comps, sys)
		default:
			return fmt.Errorf("unsupported system type %T at %s", c.sys, path)
		}
	}
	if g == st.root {
		st.model.comps = g.comps
	}
	return nil
}

func (st *setupState) installDefaults(ctx context.Context, g *Group) error {
	logger := ctxlog.FromContext(ctx)
	if g.nl == nil {
		if st.opts.DefaultNonlinear == nil {
			return fmt.Errorf("group %s has no nonlinear solver", displayPath(g.pathname))
		}
		g.nl = st.opts.DefaultNonlinear()
		logger.Info("Setup: Installed default nonlinear solver.", "group", displayPath(g.pathname), "solver", g.nl.Name())
	}
	if g.ln == nil {
		if st.opts.DefaultLinear == nil {
			return fmt.Errorf("group %s has no linear solver", displayPath(g.pathname))
		}
		g.ln = st.opts.DefaultLinear()
		logger.Info("Setup: Installed default linear solver.", "group", displayPath(g.pathname), "solver", g.ln.Name())
	}
	return nil
}

func (st *setupState) enumerate(c *Component) {
	c.infos = make(map[string]*VarInfo)
	add := func(list []*VarInfo) {
		for _, vi := range list {
			c.infos[vi.Var.Name] = vi
			st.model.vars = append(st.model.vars, vi)
			st.model.byPath[vi.Path] = vi
		}
	}
	var params, unknowns []*VarInfo
	for _, v := range c.reg.Params() {
		params = append(params, &VarInfo{Path: varpath.Join(c.pathname, v.Name), Comp: c, Var: v, Offset: -1})
	}
	for _, v := range c.reg.Unknowns() {
		unknowns = append(unknowns, &VarInfo{Path: varpath.Join(c.pathname, v.Name), Comp: c, Var: v, Offset: -1})
	}
	add(params)
	add(unknowns)
}
