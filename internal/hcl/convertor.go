package hcl

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/hcl/v2"
	"github.com/vk/mdaogrid/internal/config"
	"github.com/vk/mdaogrid/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// Converter is the HCL-specific implementation of the config.Converter interface.
type Converter struct{}

// NewConverter creates a new HCL converter.
func NewConverter() *Converter {
	return &Converter{}
}

// DecodeOptions evaluates option expressions and populates the tagged fields
// of target. Every problem is reported, not only the first.
func (c *Converter) DecodeOptions(ctx context.Context, target any, args map[string]hcl.Expression) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Starting option decoding.", "target", fmt.Sprintf("%T", target), "args", len(args))

	structVal := reflect.ValueOf(target)
	if structVal.Kind() != reflect.Ptr || structVal.IsNil() || structVal.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("target must be a non-nil pointer to a struct, got %T", target)
	}
	structVal = structVal.Elem()

	fields := config.OptionFields(structVal.Type())
	known := make(map[string]bool, len(fields))
	for _, f := range fields {
		known[f.Name] = true
	}

	var errs *multierror.Error
	for _, name := range sortedKeys(args) {
		if !known[name] {
			errs = multierror.Append(errs, fmt.Errorf("unsupported option %q", name))
		}
	}

	for _, f := range fields {
		expr, provided := args[f.Name]
		if !provided {
			if !f.Optional {
				errs = multierror.Append(errs, fmt.Errorf("missing required option %q", f.Name))
			}
			continue
		}
		val, diags := expr.Value(nil)
		if diags.HasErrors() {
			errs = multierror.Append(errs, fmt.Errorf("option %q: %w", f.Name, diags))
			continue
		}
		if err := c.decode(ctx, val, structVal.Field(f.Index).Addr().Interface()); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("failed to decode option %q: %w", f.Name, err))
		}
	}

	if errs != nil {
		errs.ErrorFormat = func(es []error) string {
			points := make([]string, len(es))
			for i, err := range es {
				points[i] = "- " + err.Error()
			}
			return fmt.Sprintf("option decoding failed:\n%s", strings.Join(points, "\n"))
		}
		return errs
	}
	logger.Debug("Finished option decoding successfully.")
	return nil
}

// ToCtyValue converts a native Go value into its corresponding cty.Value.
func (c *Converter) ToCtyValue(v any) (cty.Value, error) {
	if v == nil {
		return cty.NilVal, nil
	}
	ty, err := gocty.ImpliedType(v)
	if err != nil {
		return cty.NilVal, fmt.Errorf("unable to infer cty.Type: %w", err)
	}
	return gocty.ToCtyValue(v, ty)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

var (
	_ config.Converter = (*Converter)(nil)
	_ config.Loader    = (*Loader)(nil)
)
