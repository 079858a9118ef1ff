// Package execcomp provides the "exec" component type: outputs computed
// from equations written in HCL expression syntax, such as
// "y = 2.0*x + pow(z, 2)".
//
// Free names on a right-hand side become params and each left-hand side
// becomes an output. HCL identifiers may contain dashes, so subtraction
// needs spaces around the operator: "y = x - 1".
package execcomp

import (
	"context"

	"github.com/vk/mdaogrid/internal/registry"
	"github.com/vk/mdaogrid/internal/system"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Options defines the arguments of an exec component.
type Options struct {
	Equations []string         `mdao:"equations"`
	Shapes    map[string][]int `mdao:"shapes,optional"`
	Values    map[string]any   `mdao:"values,optional"`
}

// Register registers the "exec" component type.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterComponent(&registry.ComponentType{
		Name:        "exec",
		Description: "Outputs computed from equations.",
		NewOptions:  func() any { return new(Options) },
		Build: func(_ context.Context, opts any) (*system.Component, error) {
			o := opts.(*Options)
			return New(o.Equations, o.Shapes, o.Values)
		},
	})
}
