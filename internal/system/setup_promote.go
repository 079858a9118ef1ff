package system

import (
	"context"
	"fmt"
	"path"
	"slices"

	"github.com/vk/mdaogrid/internal/ctxlog"
	"github.com/vk/mdaogrid/internal/mdaoerr"
	"github.com/vk/mdaogrid/internal/varpath"
	"github.com/vk/mdaogrid/internal/vars"
)

// namespace maps the names visible in one group to the variables behind
// them, in first-seen order.
type namespace struct {
	order  []string
	byName map[string][]*VarInfo
}

func newNamespace() *namespace {
	return &namespace{byName: make(map[string][]*VarInfo)}
}

func (ns *namespace) add(name string, vis ...*VarInfo) {
	if _, ok := ns.byName[name]; !ok {
		ns.order = append(ns.order, name)
	}
	ns.byName[name] = append(ns.byName[name], vis...)
}

// unionFind groups variables promoted to a common name. Each class records
// the scope and name of the highest group where its members met.
type unionFind struct {
	parent map[*VarInfo]*VarInfo
	scope  map[*VarInfo]string
	name   map[*VarInfo]string
}

func newUnionFind() *unionFind {
	return &unionFind{
		parent: make(map[*VarInfo]*VarInfo),
		scope:  make(map[*VarInfo]string),
		name:   make(map[*VarInfo]string),
	}
}

func (u *unionFind) find(vi *VarInfo) *VarInfo {
	p, ok := u.parent[vi]
	if !ok || p == vi {
		return vi
	}
	root := u.find(p)
	u.parent[vi] = root
	return root
}

func (u *unionFind) union(a, b *VarInfo) *VarInfo {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[rb] = ra
	}
	return ra
}

// promote builds every group's namespace bottom-up and merges variables that
// meet under one name into collision classes, then resolves each class.
func (st *setupState) promote(ctx context.Context) {
	st.namespaceOf(st.root)
	st.model.names = st.ns[st.root].byName
	st.model.order = st.ns[st.root].order
	for name, vis := range st.model.names {
		for _, vi := range vis {
			vi.Promoted = name
		}
	}
	st.resolveClasses(ctx)
}

func (st *setupState) namespaceOf(sys System) *namespace {
	ns := newNamespace()
	switch s := sys.(type) {
	case *Component:
		for _, vi := range st.model.vars {
			if vi.Comp == s {
				ns.add(vi.Var.Name, vi)
			}
		}
		return ns
	case *Group:
		from := make(map[string][]int)
		for ci, c := range s.children {
			sub := st.namespaceOf(c.sys)
			matched := make([]bool, len(c.promotes))
			for _, name := range sub.order {
				exported := varpath.Join(c.name, name)
				for pi, pattern := range c.promotes {
					if ok, _ := path.Match(pattern, name); ok {
						exported = name
						matched[pi] = true
						break
					}
				}
				ns.add(exported, sub.byName[name]...)
				from[exported] = append(from[exported], ci)
			}
			for pi, ok := range matched {
				if !ok {
					st.fail(&mdaoerr.UnknownVariableError{
						Scope:  varpath.Join(s.pathname, c.name),
						Name:   c.promotes[pi],
						Reason: "promotes entry matches no variable",
					})
				}
			}
		}
		for _, name := range ns.order {
			if len(from[name]) < 2 {
				continue
			}
			members := ns.byName[name]
			root := members[0]
			for _, vi := range members[1:] {
				root = st.uf.union(root, vi)
			}
			st.uf.scope[root] = s.pathname
			st.uf.name[root] = name
		}
		st.ns[s] = ns
		return ns
	}
	return ns
}

// resolveClasses turns every collision class into implicit routes or an
// alias set, or reports why its members cannot share a name.
func (st *setupState) resolveClasses(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)

	classes := make(map[*VarInfo][]*VarInfo)
	var roots []*VarInfo
	for _, vi := range st.model.vars {
		r := st.uf.find(vi)
		if _, ok := classes[r]; !ok {
			roots = append(roots, r)
		}
		classes[r] = append(classes[r], vi)
	}

	for _, r := range roots {
		members := classes[r]
		if len(members) < 2 {
			continue
		}
		scope, name := st.uf.scope[r], st.uf.name[r]
		if err := checkClass(scope, name, members); err != nil {
			st.fail(err)
			continue
		}

		var source *VarInfo
		for _, vi := range members {
			if vi.IsUnknown() {
				source = vi
			}
		}
		if source == nil {
			st.model.aliases = append(st.model.aliases, members)
			logger.Debug("Setup: Promoted params form an alias set.", "name", name, "scope", displayPath(scope), "members", len(members))
			continue
		}
		for _, vi := range members {
			if vi != source {
				st.routes = append(st.routes, &Route{Source: source, Target: vi, Implicit: true})
			}
		}
	}
}

func checkClass(scope, name string, members []*VarInfo) error {
	paths := make([]string, len(members))
	for i, vi := range members {
		paths[i] = vi.Path
	}
	conflict := func(reason string) error {
		return &mdaoerr.PromotionConflictError{Scope: scope, Name: name, Vars: paths, Reason: reason}
	}

	first := members[0].Var
	unknowns := 0
	for _, vi := range members {
		if vi.IsUnknown() {
			unknowns++
		}
		if vi.Var.Mode != first.Mode {
			return conflict(fmt.Sprintf("data-passing modes differ (%s, %s)", first.Mode, vi.Var.Mode))
		}
		if first.Mode == vars.ModeFlat && !slices.Equal(vi.Var.Shape(), first.Shape()) {
			return conflict(fmt.Sprintf("shapes differ (%v, %v)", first.Shape(), vi.Var.Shape()))
		}
	}
	if unknowns > 1 {
		return conflict(fmt.Sprintf("promoted by %d unknowns", unknowns))
	}
	return nil
}

// classOf returns every variable sharing vi's collision class.
func (st *setupState) classOf(vi *VarInfo) []*VarInfo {
	r := st.uf.find(vi)
	var out []*VarInfo
	for _, other := range st.model.vars {
		if st.uf.find(other) == r {
			out = append(out, other)
		}
	}
	return out
}
