package system

import (
	"fmt"
	"slices"

	"github.com/vk/mdaogrid/internal/mdaoerr"
	"github.com/vk/mdaogrid/internal/varpath"
)

type child struct {
	name     string
	sys      System
	promotes []string
}

type connection struct {
	source  string
	target  string
	indices []int
}

// Group is an ordered container of named children. Its nonlinear solver
// decides how the children are run; its linear solver how its block of the
// linear operator is solved.
type Group struct {
	sysBase

	children []*child
	byName   map[string]*child
	conns    []connection

	nl NonlinearSolver
	ln LinearSolver

	// Filled by setup.
	transfers [][]*Route
	waves     [][]int
	comps     []*Component
}

// GroupOption configures a Group at construction.
type GroupOption func(*Group)

// WithNonlinearSolver injects the group's nonlinear solver.
func WithNonlinearSolver(s NonlinearSolver) GroupOption {
	return func(g *Group) { g.nl = s }
}

// WithLinearSolver injects the group's linear solver.
func WithLinearSolver(s LinearSolver) GroupOption {
	return func(g *Group) { g.ln = s }
}

// NewGroup creates an empty group.
func NewGroup(opts ...GroupOption) *Group {
	g := &Group{byName: make(map[string]*child)}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Add appends a child. Promotes entries are variable names or glob patterns
// matched against the child's namespace; matching variables keep their name
// in this group instead of being prefixed with the child's name.
func (g *Group) Add(name string, sys System, promotes ...string) error {
	if g.frozen {
		return &mdaoerr.AlreadySetUpError{Op: fmt.Sprintf("add %q to %s", name, displayPath(g.pathname))}
	}
	if err := varpath.ValidateSystemName(name); err != nil {
		return err
	}
	if _, exists := g.byName[name]; exists {
		return &mdaoerr.DuplicateNameError{Scope: g.pathname, Name: name}
	}

	b := sys.base()
	if b.parent != nil {
		return &mdaoerr.OwnershipViolationError{System: name, Owner: "group " + displayPath(b.parent.pathname)}
	}
	if b.owner != "" {
		return &mdaoerr.OwnershipViolationError{System: name, Owner: "problem " + b.owner}
	}
	for anc := g; anc != nil; anc = anc.parent {
		if System(anc) == sys {
			return &mdaoerr.OwnershipViolationError{System: name, Owner: "itself"}
		}
	}

	for _, pattern := range promotes {
		if pattern == "" {
			return fmt.Errorf("%w: empty promotes entry for %q", mdaoerr.ErrInvalidName, name)
		}
	}

	c := &child{name: name, sys: sys, promotes: slices.Clone(promotes)}
	b.name = name
	b.parent = g
	g.children = append(g.children, c)
	g.byName[name] = c
	return nil
}

// Connect records an explicit edge from an unknown to a param, both named in
// this group's namespace. A trailing index on the source, as in "px.z[1]",
// is shorthand for a single source index.
func (g *Group) Connect(source, target string, indices ...int) error {
	if g.frozen {
		return &mdaoerr.AlreadySetUpError{Op: fmt.Sprintf("connect %q to %q in %s", source, target, displayPath(g.pathname))}
	}

	tp, err := varpath.Parse(target)
	if err != nil {
		return err
	}
	if tp.Indexed() {
		return &mdaoerr.ShapeMismatchError{Source: source, Target: target, TargetIndexed: true}
	}

	sp, err := varpath.Parse(source)
	if err != nil {
		return err
	}
	last := len(sp.Segments) - 1
	for i, seg := range sp.Segments {
		if seg.HasIndex() && i != last {
			return fmt.Errorf("%w: only the variable in %q may carry an index", mdaoerr.ErrInvalidName, source)
		}
	}
	if seg := sp.Segments[last]; seg.HasIndex() {
		if len(indices) > 0 {
			return fmt.Errorf("%w: %q is indexed and also given source indices", mdaoerr.ErrInvalidName, source)
		}
		indices = []int{seg.Index}
		sp.Segments[last] = varpath.NewSegment(seg.Name)
	}

	var idx []int
	if len(indices) > 0 {
		idx = slices.Clone(indices)
	}
	g.conns = append(g.conns, connection{source: sp.String(), target: target, indices: idx})
	return nil
}

// SetNonlinearSolver replaces the nonlinear solver. It may be called after
// setup, for instance to retry with another policy.
func (g *Group) SetNonlinearSolver(s NonlinearSolver) { g.nl = s }

// NonlinearSolver returns the installed nonlinear solver.
func (g *Group) NonlinearSolver() NonlinearSolver { return g.nl }

// SetLinearSolver replaces the linear solver.
func (g *Group) SetLinearSolver(s LinearSolver) { g.ln = s }

// LinearSolver returns the installed linear solver.
func (g *Group) LinearSolver() LinearSolver { return g.ln }

// Children returns the children in insertion order, which is also the
// execution order.
func (g *Group) Children() []System {
	out := make([]System, len(g.children))
	for i, c := range g.children {
		out[i] = c.sys
	}
	return out
}

// ChildNames returns the local names of the children in insertion order.
func (g *Group) ChildNames() []string {
	out := make([]string, len(g.children))
	for i, c := range g.children {
		out[i] = c.name
	}
	return out
}

// Child finds a direct child by name.
func (g *Group) Child(name string) (System, bool) {
	c, ok := g.byName[name]
	if !ok {
		return nil, false
	}
	return c.sys, true
}

// Components lists the components below the group in execution order.
// Empty before setup.
func (g *Group) Components() []*Component {
	return slices.Clone(g.comps)
}

// Waves returns the child indices grouped into sets that may run
// concurrently. Empty before setup.
func (g *Group) Waves() [][]int {
	out := make([][]int, len(g.waves))
	for i, w := range g.waves {
		out[i] = slices.Clone(w)
	}
	return out
}

// Model returns the set-up model, or nil before setup.
func (g *Group) Model() *Model {
	return g.model
}

// walk visits sys and its descendants depth-first, parents first.
func walk(sys System, fn func(System)) {
	fn(sys)
	if g, ok := sys.(*Group); ok {
		for _, c := range g.children {
			walk(c.sys, fn)
		}
	}
}
