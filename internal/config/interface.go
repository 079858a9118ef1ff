package config

import (
	"context"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// Loader is the interface for a format-specific problem loader.
type Loader interface {
	// Load reads the problem from the given paths, translates it into the
	// format-agnostic model, and returns a matching Converter.
	Load(ctx context.Context, paths ...string) (*Model, Converter, error)
}

// Converter is the interface for a format-specific data binding and type
// conversion implementation. It bridges raw option expressions and the Go
// option structs of components and solvers.
type Converter interface {
	// DecodeOptions decodes option expressions into the fields of target, a
	// pointer to a struct whose fields carry `mdao:"name[,optional]"` tags.
	// Fields keep their current value when the option is absent. An
	// expression with no matching field is an error.
	DecodeOptions(ctx context.Context, target any, args map[string]hcl.Expression) error

	// ToCtyValue converts a native Go value into its equivalent cty.Value.
	ToCtyValue(v any) (cty.Value, error)
}
