package system

import (
	"context"
	"maps"

	"github.com/vk/mdaogrid/internal/jacobian"
	"github.com/vk/mdaogrid/internal/vars"
)

// Updater is the value-update operation every component provides. It reads
// params and writes every explicit unknown, and the residual of every state.
type Updater interface {
	UpdateValues(ctx context.Context, params, unknowns, resids *vars.View) error
}

// Linearizer is the optional derivative-update operation. Blocks keyed by an
// explicit output hold d(output)/d(wrt); blocks keyed by a state hold
// d(residual)/d(wrt).
type Linearizer interface {
	UpdateDerivatives(ctx context.Context, params, unknowns, resids *vars.View) (jacobian.Jacobian, error)
}

// Component is a leaf of the model tree.
type Component struct {
	sysBase
	impl Updater
	reg  *vars.Registry
	// infos maps variable names to their setup records.
	infos map[string]*VarInfo

	jac     jacobian.Jacobian
	jacKeys []jacobian.Key
}

// NewComponent wraps impl. Variables are declared with AddParam, AddOutput
// and AddState before setup.
func NewComponent(impl Updater) *Component {
	return &Component{
		impl: impl,
		reg:  vars.NewRegistry("<unattached>"),
	}
}

// AddParam declares an input.
func (c *Component) AddParam(name string, val any, meta ...vars.Meta) error {
	_, err := c.reg.Declare(name, vars.KindParam, val, mergeMeta(meta))
	return err
}

// AddOutput declares an explicit output.
func (c *Component) AddOutput(name string, val any, meta ...vars.Meta) error {
	_, err := c.reg.Declare(name, vars.KindUnknown, val, mergeMeta(meta))
	return err
}

// AddState declares an implicit output driven to a zero residual.
func (c *Component) AddState(name string, val any, meta ...vars.Meta) error {
	_, err := c.reg.DeclareState(name, val, mergeMeta(meta))
	return err
}

// Registry exposes the component's variables.
func (c *Component) Registry() *vars.Registry {
	return c.reg
}

// Impl returns the wrapped implementation.
func (c *Component) Impl() Updater {
	return c.impl
}

// HasDerivatives reports whether the implementation provides analytic blocks.
func (c *Component) HasDerivatives() bool {
	_, ok := c.impl.(Linearizer)
	return ok
}

// Jacobian returns the blocks of the last linearization.
func (c *Component) Jacobian() jacobian.Jacobian {
	return c.jac
}

func mergeMeta(metas []vars.Meta) vars.Meta {
	if len(metas) == 0 {
		return nil
	}
	out := vars.Meta{}
	for _, m := range metas {
		maps.Copy(out, m)
	}
	return out
}
