package vars

import (
	"fmt"
	"slices"

	"github.com/hashicorp/go-multierror"
	"github.com/vk/mdaogrid/internal/mdaoerr"
)

// Snapshot bundles the three kind-partitioned views passed to a component.
type Snapshot struct {
	Params   *View
	Unknowns *View
	Resids   *View
}

// View is a name-keyed window onto one kind of variable. Lookups of
// undeclared names, writes to a read-only view and malformed values are
// recorded rather than returned; Err reports them once the caller is done.
type View struct {
	kind     Kind
	readOnly bool
	vars     map[string]*Var
	order    []string
	written  map[string]bool
	errs     *multierror.Error
}

// NewView wraps vs. The view reads and writes the given variables directly.
func NewView(kind Kind, vs []*Var, readOnly bool) *View {
	v := &View{
		kind:     kind,
		readOnly: readOnly,
		vars:     make(map[string]*Var, len(vs)),
		order:    make([]string, 0, len(vs)),
		written:  make(map[string]bool),
	}
	for _, variable := range vs {
		v.vars[variable.Name] = variable
		v.order = append(v.order, variable.Name)
	}
	return v
}

// Kind returns the kind of variable held by the view.
func (v *View) Kind() Kind { return v.kind }

// Names returns variable names in declaration order.
func (v *View) Names() []string { return slices.Clone(v.order) }

// Has reports whether name is in the view.
func (v *View) Has(name string) bool {
	_, ok := v.vars[name]
	return ok
}

// Var returns the underlying variable.
func (v *View) Var(name string) (*Var, bool) {
	variable, ok := v.vars[name]
	return variable, ok
}

// Shape returns the shape of a flat variable.
func (v *View) Shape(name string) []int {
	variable, ok := v.lookup(name)
	if !ok {
		return nil
	}
	return variable.Shape()
}

// Get returns a copy of a flat variable's values.
func (v *View) Get(name string) []float64 {
	variable, ok := v.lookup(name)
	if !ok {
		return nil
	}
	if variable.Mode == ModeByObj {
		v.errs = multierror.Append(v.errs, fmt.Errorf("%w: %q has no numeric value", mdaoerr.ErrNotDifferentiable, name))
		return nil
	}
	return slices.Clone(variable.data)
}

// Float returns the first element of a flat variable.
func (v *View) Float(name string) float64 {
	vals := v.Get(name)
	if len(vals) == 0 {
		return 0
	}
	return vals[0]
}

// Obj returns the value of a pass-by-object variable.
func (v *View) Obj(name string) any {
	variable, ok := v.lookup(name)
	if !ok {
		return nil
	}
	if variable.Mode != ModeByObj {
		return variable.Value()
	}
	return variable.obj
}

// Set writes a value. Numeric input is normalized and must match the
// declared size.
func (v *View) Set(name string, value any) {
	variable, ok := v.lookup(name)
	if !ok {
		return
	}
	if v.readOnly {
		v.errs = multierror.Append(v.errs, fmt.Errorf("%w: %s %q", mdaoerr.ErrReadOnly, v.kind, name))
		return
	}
	if err := variable.Assign(value); err != nil {
		v.errs = multierror.Append(v.errs, err)
		return
	}
	v.written[name] = true
}

// SetFloat writes a scalar.
func (v *View) SetFloat(name string, value float64) {
	v.Set(name, value)
}

// Written reports whether name was set through this view.
func (v *View) Written(name string) bool {
	return v.written[name]
}

// Err returns everything that went wrong while the view was in use.
func (v *View) Err() error {
	return v.errs.ErrorOrNil()
}

func (v *View) lookup(name string) (*Var, bool) {
	variable, ok := v.vars[name]
	if !ok {
		v.errs = multierror.Append(v.errs, &mdaoerr.UnknownVariableError{Name: name, Reason: fmt.Sprintf("no %s with that name", v.kind)})
	}
	return variable, ok
}
