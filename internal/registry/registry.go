package registry

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/vk/mdaogrid/internal/system"
)

// Module is the interface that all core modules must implement to be registered.
type Module interface {
	Register(r *Registry)
}

// ComponentType is a component kind that problem files can instantiate.
type ComponentType struct {
	Name        string
	Description string
	// NewOptions returns a pointer to a fresh options struct holding the
	// defaults. Fields are decoded through `mdao` tags.
	NewOptions func() any
	// Build declares the component's variables from decoded options.
	Build func(ctx context.Context, opts any) (*system.Component, error)
}

// Registry holds the component types of a single application instance.
type Registry struct {
	components map[string]*ComponentType
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{
		components: make(map[string]*ComponentType),
	}
}

// RegisterComponent adds a component type. Registering a name twice is a
// programming error and panics.
func (r *Registry) RegisterComponent(ct *ComponentType) {
	if _, exists := r.components[ct.Name]; exists {
		panic(fmt.Sprintf("component type with name '%s' already registered", ct.Name))
	}
	slog.Debug("Registering component type.", "name", ct.Name)
	r.components[ct.Name] = ct
}

// Component looks up a component type by name.
func (r *Registry) Component(name string) (*ComponentType, bool) {
	ct, ok := r.components[name]
	return ct, ok
}

// ComponentTypes returns the registered type names, sorted.
func (r *Registry) ComponentTypes() []string {
	names := make([]string, 0, len(r.components))
	for name := range r.components {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
