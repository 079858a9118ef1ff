package vars

import "slices"

// Kind partitions the variables of a component.
type Kind int

const (
	KindParam Kind = iota
	KindUnknown
	KindResidual
)

func (k Kind) String() string {
	switch k {
	case KindParam:
		return "param"
	case KindUnknown:
		return "unknown"
	case KindResidual:
		return "residual"
	default:
		return "invalid"
	}
}

// Mode is the data-passing mode of a variable.
type Mode int

const (
	// ModeFlat values are contiguous float64 arrays of a fixed shape.
	ModeFlat Mode = iota
	// ModeByObj values are opaque and excluded from derivatives.
	ModeByObj
)

func (m Mode) String() string {
	if m == ModeByObj {
		return "pass_by_obj"
	}
	return "flat"
}

// Reserved metadata keys.
const (
	MetaPassByObj = "pass_by_obj"
	MetaShape     = "shape"
	MetaUnits     = "units"
	MetaDesc      = "desc"
)

// Meta is opaque per-variable metadata.
type Meta map[string]any

// Var is a single declared variable and its current value.
type Var struct {
	Name  string
	Kind  Kind
	Mode  Mode
	State bool
	Meta  Meta

	shape []int
	data  []float64
	obj   any
}

// Shape returns a copy of the variable's shape. Pass-by-object variables have
// no shape.
func (v *Var) Shape() []int {
	return slices.Clone(v.shape)
}

// Size is the number of flat elements, zero for pass-by-object variables.
func (v *Var) Size() int {
	return len(v.data)
}

// Data exposes the backing storage of a flat variable. Callers inside the
// engine use it for routing and must not retain it.
func (v *Var) Data() []float64 {
	return v.data
}

// Obj returns the value of a pass-by-object variable.
func (v *Var) Obj() any {
	return v.obj
}

// Value returns a detached copy of the value: a float64 for flat scalars, a
// []float64 for flat arrays, or the object itself.
func (v *Var) Value() any {
	if v.Mode == ModeByObj {
		return v.obj
	}
	if len(v.shape) == 1 && v.shape[0] == 1 {
		return v.data[0]
	}
	return slices.Clone(v.data)
}

// Assign replaces the value, normalizing numeric input for flat variables.
func (v *Var) Assign(value any) error {
	if v.Mode == ModeByObj {
		v.obj = value
		return nil
	}
	flat, _, err := ToFlat(value)
	if err != nil {
		return err
	}
	return v.SetData(flat)
}

// SetData copies vals into a flat variable of the same size.
func (v *Var) SetData(vals []float64) error {
	if len(vals) != len(v.data) {
		return sizeError(v.Name, v.shape, len(vals))
	}
	copy(v.data, vals)
	return nil
}

// SetObj replaces the value of a pass-by-object variable.
func (v *Var) SetObj(obj any) {
	v.obj = obj
}

// Clone returns an independent copy of the variable, sharing metadata.
func (v *Var) Clone() *Var {
	c := *v
	c.shape = slices.Clone(v.shape)
	c.data = slices.Clone(v.data)
	return &c
}
