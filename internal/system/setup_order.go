package system

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/vk/mdaogrid/internal/ctxlog"
	"github.com/vk/mdaogrid/internal/dag"
	"github.com/vk/mdaogrid/internal/mdaoerr"
	"github.com/vk/mdaogrid/internal/vars"
)

// order places every route at the group where its ends meet, reports
// connections that run against insertion order and cycles that a single-pass
// solver cannot resolve, and computes the parallel schedule of each group.
func (st *setupState) order(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)

	data := make(map[*Group]*dag.Graph, len(st.groups))
	sched := make(map[*Group]*dag.Graph, len(st.groups))
	for _, g := range st.groups {
		g.transfers = make([][]*Route, len(g.children))
		data[g], sched[g] = dag.New(), dag.New()
		for _, c := range g.children {
			data[g].AddNode(c.name)
			sched[g].AddNode(c.name)
		}
	}

	// A component feeding its own input is a feedback loop of one child.
	selfLoops := make(map[*Group][]string)
	for _, r := range st.model.Routes() {
		g, si, ti := meet(r.Source.Comp, r.Target.Comp)
		if g == nil {
			continue
		}
		g.transfers[ti] = append(g.transfers[ti], r)
		src, tgt := g.children[si].name, g.children[ti].name
		if si == ti {
			if !slices.Contains(selfLoops[g], src) {
				selfLoops[g] = append(selfLoops[g], src)
			}
			st.model.diags = append(st.model.diags, Diagnostic{
				Kind:   OutOfOrder,
				Group:  g.pathname,
				Source: r.Source.Path,
				Target: r.Target.Path,
				Message: fmt.Sprintf("%s feeds its own input, so %s reads the value from the previous pass",
					src, r.Target.Path),
			})
			continue
		}
		_ = data[g].AddEdge(src, tgt)
		_ = sched[g].AddEdge(g.children[min(si, ti)].name, g.children[max(si, ti)].name)
		if si > ti {
			st.model.diags = append(st.model.diags, Diagnostic{
				Kind:   OutOfOrder,
				Group:  g.pathname,
				Source: r.Source.Path,
				Target: r.Target.Path,
				Message: fmt.Sprintf("%s runs after %s, so %s reads the value from the previous pass",
					src, tgt, r.Target.Path),
			})
		}
	}

	for _, g := range st.groups {
		var cycles [][]string
		for _, name := range selfLoops[g] {
			cycles = append(cycles, []string{name})
		}
		cycles = append(cycles, data[g].Cycles()...)
		for _, cycle := range cycles {
			if g.nl.Iterative() {
				logger.Debug("Setup: Cycle resolved by iterative solver.", "group", displayPath(g.pathname), "children", cycle, "solver", g.nl.Name())
				continue
			}
			if st.opts.StrictCycles {
				st.fail(&mdaoerr.CycleError{Group: g.pathname, Children: cycle})
				continue
			}
			st.model.diags = append(st.model.diags, Diagnostic{
				Kind:     CycleUnderRunOnce,
				Group:    g.pathname,
				Children: cycle,
				Message: fmt.Sprintf("cycle through %s is run once by %s and will not converge",
					strings.Join(cycle, ", "), g.nl.Name()),
			})
		}

		waves, err := sched[g].Waves()
		if err != nil {
			st.fail(fmt.Errorf("scheduling %s: %w", displayPath(g.pathname), err))
			continue
		}
		g.waves = make([][]int, len(waves))
		for i, wave := range waves {
			for _, name := range wave {
				g.waves[i] = append(g.waves[i], g.indexOf(name))
			}
		}
	}
}

// meet finds the lowest group containing both systems and the positions of
// the children of that group on the way to each.
func meet(a, b System) (*Group, int, int) {
	below := make(map[*Group]System)
	prev := a
	for g := a.base().parent; g != nil; g = g.parent {
		below[g] = prev
		prev = g
	}
	prev = b
	for g := b.base().parent; g != nil; g = g.parent {
		if onA, ok := below[g]; ok {
			return g, g.indexOf(onA.Name()), g.indexOf(prev.Name())
		}
		prev = g
	}
	return nil, -1, -1
}

func (g *Group) indexOf(name string) int {
	for i, c := range g.children {
		if c.name == name {
			return i
		}
	}
	return -1
}

// layout assigns global offsets to flat unknowns depth-first, so every
// subtree covers the range [lo, hi).
func (st *setupState) layout(sys System, offset int) int {
	b := sys.base()
	b.lo = offset
	switch s := sys.(type) {
	case *Component:
		for _, u := range s.reg.Unknowns() {
			if u.Mode != vars.ModeFlat {
				continue
			}
			s.infos[u.Name].Offset = offset
			offset += u.Size()
		}
	case *Group:
		for _, c := range s.children {
			offset = st.layout(c.sys, offset)
		}
	}
	b.hi = offset
	if sys == System(st.root) {
		st.model.size = offset
	}
	return offset
}

// syncAliases copies the first member's value to the rest of each alias set.
func (st *setupState) syncAliases() {
	for _, set := range st.model.aliases {
		first := set[0].Var
		for _, vi := range set[1:] {
			if first.Mode == vars.ModeByObj {
				vi.Var.SetObj(first.Obj())
				continue
			}
			copy(vi.Var.Data(), first.Data())
		}
	}
}
