// Package indepvar provides the "indep" component type: outputs that only
// carry values set from outside, typically design variables.
package indepvar

import (
	"context"
	"fmt"
	"slices"

	"github.com/vk/mdaogrid/internal/registry"
	"github.com/vk/mdaogrid/internal/system"
	"github.com/vk/mdaogrid/internal/vars"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Options defines the arguments of an indep component.
type Options struct {
	// Outputs maps each output name to its initial value.
	Outputs map[string]any `mdao:"outputs"`
	// PassByObj names outputs whose values are opaque.
	PassByObj []string `mdao:"pass_by_obj,optional"`
	// Units is passed through as variable metadata.
	Units map[string]string `mdao:"units,optional"`
}

// IndepVarComp re-writes the current value of every output. It has no
// params and contributes no partial derivatives.
type IndepVarComp struct {
	byObj map[string]bool
}

// UpdateValues implements system.Updater.
func (c *IndepVarComp) UpdateValues(_ context.Context, _, unknowns, _ *vars.View) error {
	for _, name := range unknowns.Names() {
		if c.byObj[name] {
			unknowns.Set(name, unknowns.Obj(name))
			continue
		}
		unknowns.Set(name, unknowns.Get(name))
	}
	return nil
}

// New builds an indep component. Outputs are declared in name order.
func New(opts Options) (*system.Component, error) {
	if len(opts.Outputs) == 0 {
		return nil, fmt.Errorf("indep component needs at least one output")
	}
	impl := &IndepVarComp{byObj: make(map[string]bool, len(opts.PassByObj))}
	for _, name := range opts.PassByObj {
		if _, ok := opts.Outputs[name]; !ok {
			return nil, fmt.Errorf("pass_by_obj names %q, which is not an output", name)
		}
		impl.byObj[name] = true
	}

	comp := system.NewComponent(impl)
	names := make([]string, 0, len(opts.Outputs))
	for name := range opts.Outputs {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		meta := vars.Meta{}
		if impl.byObj[name] {
			meta[vars.MetaPassByObj] = true
		}
		if u, ok := opts.Units[name]; ok {
			meta[vars.MetaUnits] = u
		}
		if err := comp.AddOutput(name, opts.Outputs[name], meta); err != nil {
			return nil, fmt.Errorf("output %q: %w", name, err)
		}
	}
	return comp, nil
}

// Register registers the "indep" component type.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterComponent(&registry.ComponentType{
		Name:        "indep",
		Description: "Independent variables set from outside the model.",
		NewOptions:  func() any { return new(Options) },
		Build: func(_ context.Context, opts any) (*system.Component, error) {
			return New(*opts.(*Options))
		},
	})
}
