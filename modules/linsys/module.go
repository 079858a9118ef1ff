// Package linsys provides the "linear_system" component type: an implicit
// component whose state x satisfies A·x = b.
package linsys

import (
	"context"
	"fmt"

	"github.com/vk/mdaogrid/internal/registry"
	"github.com/vk/mdaogrid/internal/system"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Options defines the arguments of a linear_system component. Size may be
// omitted when A or b is given.
type Options struct {
	Size int         `mdao:"size,optional"`
	A    [][]float64 `mdao:"a,optional"`
	B    []float64   `mdao:"b,optional"`
}

func (o *Options) size() (int, error) {
	n := o.Size
	for _, other := range []int{len(o.A), len(o.B)} {
		switch {
		case other == 0:
		case n == 0:
			n = other
		case other != n:
			return 0, fmt.Errorf("size %d, a with %d rows and b with %d elements disagree", o.Size, len(o.A), len(o.B))
		}
	}
	if n == 0 {
		return 0, fmt.Errorf("one of size, a or b is required")
	}
	return n, nil
}

// Register registers the "linear_system" component type.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterComponent(&registry.ComponentType{
		Name:        "linear_system",
		Description: "Implicit component solving A·x = b.",
		NewOptions:  func() any { return new(Options) },
		Build: func(_ context.Context, opts any) (*system.Component, error) {
			o := opts.(*Options)
			n, err := o.size()
			if err != nil {
				return nil, err
			}
			return New(n, o.A, o.B)
		},
	})
}
