package system

import (
	"context"
	"fmt"

	"github.com/vk/mdaogrid/internal/ctxlog"
	"github.com/vk/mdaogrid/internal/mdaoerr"
	"github.com/vk/mdaogrid/internal/varpath"
	"github.com/vk/mdaogrid/internal/vars"
)

// connectExplicit resolves every Connect call in the namespace of the group
// it was made on.
func (st *setupState) connectExplicit(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)
	for _, g := range st.groups {
		for _, conn := range g.conns {
			sources, err := st.lookup(g, conn.source)
			if err != nil {
				st.fail(err)
				continue
			}
			targets, err := st.lookup(g, conn.target)
			if err != nil {
				st.fail(err)
				continue
			}

			source, err := pickSource(g.pathname, conn.source, sources)
			if err != nil {
				st.fail(err)
				continue
			}
			params, err := st.pickTargets(g.pathname, conn.target, targets)
			if err != nil {
				st.fail(err)
				continue
			}

			for _, p := range params {
				st.routes = append(st.routes, &Route{Source: source, Target: p, Indices: conn.indices})
				logger.Debug("Setup: Linking explicit connection.", "group", displayPath(g.pathname), "source", source.Path, "target", p.Path)
			}
		}
	}
}

// lookup resolves a name in g's namespace, falling back to a dotted path
// relative to g.
func (st *setupState) lookup(g *Group, name string) ([]*VarInfo, error) {
	if vis, ok := st.ns[g].byName[name]; ok {
		return vis, nil
	}
	if vi, ok := st.model.byPath[varpath.Join(g.pathname, name)]; ok {
		return []*VarInfo{vi}, nil
	}
	return nil, &mdaoerr.UnknownVariableError{Scope: g.pathname, Name: name}
}

func pickSource(scope, name string, vis []*VarInfo) (*VarInfo, error) {
	for _, vi := range vis {
		if vi.IsUnknown() {
			return vi, nil
		}
	}
	return nil, &mdaoerr.UnknownVariableError{Scope: scope, Name: name, Reason: "connection source must be an unknown"}
}

// pickTargets expands the resolved params to their whole alias sets. An
// unknown sharing the name is not a target.
func (st *setupState) pickTargets(scope, name string, vis []*VarInfo) ([]*VarInfo, error) {
	seen := make(map[*VarInfo]bool)
	var out []*VarInfo
	for _, vi := range vis {
		if vi.IsUnknown() {
			continue
		}
		for _, member := range st.classOf(vi) {
			if !member.IsUnknown() && !seen[member] {
				seen[member] = true
				out = append(out, member)
			}
		}
	}
	if len(out) == 0 {
		return nil, &mdaoerr.UnknownVariableError{Scope: scope, Name: name, Reason: "connection target must be a param"}
	}
	return out, nil
}

// mergeRoutes builds the connection set. A param may have one source.
func (st *setupState) mergeRoutes() {
	inbound := make(map[*VarInfo][]*Route)
	for _, r := range st.routes {
		inbound[r.Target] = append(inbound[r.Target], r)
	}
	for _, vi := range st.model.vars {
		rs := inbound[vi]
		switch {
		case len(rs) == 1:
			st.model.routes[vi] = rs[0]
		case len(rs) > 1:
			sources := make([]string, len(rs))
			for i, r := range rs {
				sources[i] = r.Source.Path
				if r.Implicit {
					sources[i] += " (promoted)"
				}
			}
			st.fail(&mdaoerr.MultipleSourcesError{Target: vi.Path, Sources: sources})
		}
	}
}

// validateRoutes checks data-passing mode, source indices and size of every
// route in the connection set.
func (st *setupState) validateRoutes() {
	for _, r := range st.model.Routes() {
		if err := validateRoute(r); err != nil {
			st.fail(err)
		}
	}
}

func validateRoute(r *Route) error {
	src, tgt := r.Source.Var, r.Target.Var
	mismatch := &mdaoerr.ShapeMismatchError{
		Source:      r.Source.Path,
		Target:      r.Target.Path,
		SourceShape: src.Shape(),
		TargetShape: tgt.Shape(),
	}
	if src.Mode != tgt.Mode {
		mismatch.Mode = true
		return mismatch
	}
	if src.Mode == vars.ModeByObj {
		if r.Indices != nil {
			mismatch.Detail = fmt.Sprintf("source indices cannot select from pass-by-object %q", r.Source.Path)
			return mismatch
		}
		return nil
	}

	size := src.Size()
	if r.Indices != nil {
		for _, idx := range r.Indices {
			if idx < 0 || idx >= size {
				mismatch.Detail = fmt.Sprintf("source index %d is out of range for %q of size %d", idx, r.Source.Path, size)
				return mismatch
			}
		}
		size = len(r.Indices)
	}
	if size != tgt.Size() {
		return mismatch
	}
	return nil
}
