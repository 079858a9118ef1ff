package system

import (
	"slices"

	"github.com/vk/mdaogrid/internal/mdaoerr"
	"github.com/vk/mdaogrid/internal/varpath"
	"github.com/vk/mdaogrid/internal/vars"
)

// VarInfo describes one declared variable once the tree is set up.
type VarInfo struct {
	// Path is the full dotted path: component pathname plus variable name.
	Path string
	// Promoted is the variable's name in the root namespace.
	Promoted string
	Comp     *Component
	Var      *vars.Var
	// Offset locates a flat unknown in the global vectors; -1 otherwise.
	Offset int
}

// Size is the number of flat entries, zero for pass-by-object variables.
func (vi *VarInfo) Size() int {
	return vi.Var.Size()
}

// IsUnknown reports whether the variable is an output of its component.
func (vi *VarInfo) IsUnknown() bool {
	return vi.Var.Kind == vars.KindUnknown
}

// Route moves a value from an unknown to a param before the param's
// component runs.
type Route struct {
	Source *VarInfo
	Target *VarInfo
	// Indices selects source entries; nil passes the whole value.
	Indices  []int
	Implicit bool
}

func (r *Route) transfer() {
	src, tgt := r.Source.Var, r.Target.Var
	if src.Mode == vars.ModeByObj {
		tgt.SetObj(src.Obj())
		return
	}
	if r.Indices == nil {
		copy(tgt.Data(), src.Data())
		return
	}
	s, d := src.Data(), tgt.Data()
	for k, idx := range r.Indices {
		d[k] = s[idx]
	}
}

// gather reads the target-sized slice of a global vector at the source.
func (r *Route) gather(x []float64) []float64 {
	off := r.Source.Offset
	if r.Indices == nil {
		return x[off : off+r.Source.Size()]
	}
	out := make([]float64, len(r.Indices))
	for k, idx := range r.Indices {
		out[k] = x[off+idx]
	}
	return out
}

// scatter accumulates target-sized values into a global vector at the source.
func (r *Route) scatter(dst, vals []float64) {
	off := r.Source.Offset
	if r.Indices == nil {
		for k, v := range vals {
			dst[off+k] += v
		}
		return
	}
	for k, idx := range r.Indices {
		dst[off+idx] += vals[k]
	}
}

// Model is the frozen result of setup: every variable, the connection set,
// the flat layout of the unknowns and the diagnostics found on the way.
type Model struct {
	Owner string
	Root  *Group

	vars    []*VarInfo
	byPath  map[string]*VarInfo
	names   map[string][]*VarInfo
	order   []string
	routes  map[*VarInfo]*Route
	aliases [][]*VarInfo
	size    int
	comps   []*Component
	diags   []Diagnostic
}

// Size is the length of the global unknown and residual vectors.
func (m *Model) Size() int { return m.size }

// Vars lists every variable in depth-first declaration order.
func (m *Model) Vars() []*VarInfo { return slices.Clone(m.vars) }

// Components lists the components in execution order.
func (m *Model) Components() []*Component { return slices.Clone(m.comps) }

// Diagnostics returns the non-fatal findings of setup.
func (m *Model) Diagnostics() []Diagnostic { return slices.Clone(m.diags) }

// Names lists the root namespace in first-seen order.
func (m *Model) Names() []string { return slices.Clone(m.order) }

// Aliases returns the sets of params promoted to one name without a source.
func (m *Model) Aliases() [][]*VarInfo {
	out := make([][]*VarInfo, len(m.aliases))
	for i, set := range m.aliases {
		out[i] = slices.Clone(set)
	}
	return out
}

// Resolve finds the variables behind a name in the root namespace, or behind
// a full dotted path. A promoted param alias yields every member.
func (m *Model) Resolve(name string) ([]*VarInfo, error) {
	if vis, ok := m.names[name]; ok {
		return slices.Clone(vis), nil
	}
	if vi, ok := m.byPath[name]; ok {
		return []*VarInfo{vi}, nil
	}
	if _, err := varpath.Parse(name); err != nil {
		return nil, err
	}
	return nil, &mdaoerr.UnknownVariableError{Name: name}
}

// Source returns the route feeding a param, if any.
func (m *Model) Source(target *VarInfo) (*Route, bool) {
	r, ok := m.routes[target]
	return r, ok
}

// Routes returns the connection set ordered by target.
func (m *Model) Routes() []*Route {
	out := make([]*Route, 0, len(m.routes))
	for _, vi := range m.vars {
		if r, ok := m.routes[vi]; ok {
			out = append(out, r)
		}
	}
	return out
}

// Primary picks the variable a name reads from: the unknown when one is
// present, otherwise the first member.
func Primary(vis []*VarInfo) *VarInfo {
	for _, vi := range vis {
		if vi.IsUnknown() {
			return vi
		}
	}
	return vis[0]
}
