package vars

import (
	"fmt"
	"maps"
	"slices"

	"github.com/vk/mdaogrid/internal/mdaoerr"
	"github.com/vk/mdaogrid/internal/varpath"
)

// Registry holds the variables declared on one component. Params and
// unknowns share a single namespace; each flat unknown owns a residual of
// the same name.
type Registry struct {
	scope    string
	byName   map[string]*Var
	params   []*Var
	unknowns []*Var
	resids   map[string]*Var
	frozen   bool
}

// NewRegistry creates an empty registry. The scope names the owner in errors.
func NewRegistry(scope string) *Registry {
	return &Registry{
		scope:  scope,
		byName: make(map[string]*Var),
		resids: make(map[string]*Var),
	}
}

// SetScope renames the owner, typically to its full pathname at setup.
func (r *Registry) SetScope(scope string) {
	r.scope = scope
}

// Declare adds a variable. A nil initial value requires the shape metadata
// key and yields zeros.
func (r *Registry) Declare(name string, kind Kind, initial any, meta Meta) (*Var, error) {
	return r.declare(name, kind, false, initial, meta)
}

func (r *Registry) declare(name string, kind Kind, state bool, initial any, meta Meta) (*Var, error) {
	if r.frozen {
		return nil, &mdaoerr.AlreadySetUpError{Op: fmt.Sprintf("declare %q on %s", name, r.scope)}
	}
	if kind == KindResidual {
		return nil, fmt.Errorf("%w: cannot declare residual %q directly", mdaoerr.ErrDerivedResidual, name)
	}
	if err := varpath.ValidateVarName(name); err != nil {
		return nil, err
	}
	if _, exists := r.byName[name]; exists {
		return nil, &mdaoerr.DuplicateNameError{Scope: r.scope, Name: name}
	}

	if state && passByObj(meta) {
		return nil, fmt.Errorf("%w: state %q on %s must be numeric", mdaoerr.ErrNotDifferentiable, name, r.scope)
	}

	v, err := newVar(name, kind, initial, meta)
	if err != nil {
		return nil, fmt.Errorf("declaring %q on %s: %w", name, r.scope, err)
	}
	v.State = state

	r.byName[name] = v
	switch kind {
	case KindParam:
		r.params = append(r.params, v)
	case KindUnknown:
		r.unknowns = append(r.unknowns, v)
		if v.Mode == ModeFlat {
			r.resids[name] = &Var{
				Name:  name,
				Kind:  KindResidual,
				Mode:  ModeFlat,
				Meta:  v.Meta,
				shape: slices.Clone(v.shape),
				data:  make([]float64, len(v.data)),
			}
		}
	}
	return v, nil
}

// DeclareState adds an implicit unknown, one whose residual is computed by
// the component rather than derived from a value change.
func (r *Registry) DeclareState(name string, initial any, meta Meta) (*Var, error) {
	return r.declare(name, KindUnknown, true, initial, meta)
}

func newVar(name string, kind Kind, initial any, meta Meta) (*Var, error) {
	meta = maps.Clone(meta)
	if meta == nil {
		meta = Meta{}
	}
	v := &Var{Name: name, Kind: kind, Meta: meta}

	if passByObj(meta) {
		v.Mode = ModeByObj
		v.obj = initial
		return v, nil
	}

	shape, hasShape, err := shapeFromMeta(meta)
	if err != nil {
		return nil, err
	}

	if initial == nil {
		if !hasShape {
			return nil, fmt.Errorf("%w: shape is required when no initial value is given", mdaoerr.ErrNonNumeric)
		}
		v.shape = shape
		v.data = make([]float64, shapeSize(shape))
		return v, nil
	}

	data, valShape, err := ToFlat(initial)
	if err != nil {
		return nil, err
	}
	if hasShape {
		if shapeSize(shape) != len(data) {
			return nil, sizeError(name, shape, len(data))
		}
		valShape = shape
	}
	v.shape = valShape
	v.data = data
	return v, nil
}

// Freeze rejects any further declarations.
func (r *Registry) Freeze() {
	r.frozen = true
}

// Thaw reverses Freeze when a model is released.
func (r *Registry) Thaw() {
	r.frozen = false
}

// Frozen reports whether the registry has been frozen by setup.
func (r *Registry) Frozen() bool {
	return r.frozen
}

// Params returns the parameters in declaration order.
func (r *Registry) Params() []*Var {
	return slices.Clone(r.params)
}

// Unknowns returns the unknowns in declaration order.
func (r *Registry) Unknowns() []*Var {
	return slices.Clone(r.unknowns)
}

// Resids returns the residuals in the order of their unknowns.
func (r *Registry) Resids() []*Var {
	out := make([]*Var, 0, len(r.resids))
	for _, u := range r.unknowns {
		if res, ok := r.resids[u.Name]; ok {
			out = append(out, res)
		}
	}
	return out
}

// Lookup finds a param or unknown by name.
func (r *Registry) Lookup(name string) (*Var, bool) {
	v, ok := r.byName[name]
	return v, ok
}

// Residual finds the residual of a flat unknown.
func (r *Registry) Residual(name string) (*Var, bool) {
	v, ok := r.resids[name]
	return v, ok
}

// Snapshot returns live views over the registry's own storage. The params
// view is read-only.
func (r *Registry) Snapshot() Snapshot {
	return Snapshot{
		Params:   NewView(KindParam, r.params, true),
		Unknowns: NewView(KindUnknown, r.unknowns, false),
		Resids:   NewView(KindResidual, r.Resids(), false),
	}
}
