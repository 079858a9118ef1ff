package registry

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/vk/mdaogrid/internal/config"
	"github.com/vk/mdaogrid/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

var ctyValueType = reflect.TypeOf(cty.Value{})

// ValidateRegistry checks that every component type is complete and that
// each field of its options struct has a type options can be decoded into.
func (r *Registry) ValidateRegistry(ctx context.Context) error {
	var errs []string
	logger := ctxlog.FromContext(ctx)

	for _, name := range r.ComponentTypes() {
		ct := r.components[name]
		if ct.Build == nil {
			errs = append(errs, fmt.Sprintf("component '%s': no Build function", name))
		}
		if ct.NewOptions == nil {
			errs = append(errs, fmt.Sprintf("component '%s': no NewOptions function", name))
			continue
		}

		opts := ct.NewOptions()
		optsType := reflect.TypeOf(opts)
		if optsType == nil || optsType.Kind() != reflect.Ptr || optsType.Elem().Kind() != reflect.Struct {
			errs = append(errs, fmt.Sprintf("component '%s': NewOptions must return a pointer to a struct, got %T", name, opts))
			continue
		}

		fields := config.OptionFields(optsType.Elem())
		if len(fields) == 0 {
			logger.Warn("Component type declares no options.", "component", name)
		}
		seen := make(map[string]bool, len(fields))
		for _, f := range fields {
			if seen[f.Name] {
				errs = append(errs, fmt.Sprintf("component '%s': option '%s' is declared twice", name, f.Name))
				continue
			}
			seen[f.Name] = true
			if err := decodable(f.Field.Type); err != nil {
				errs = append(errs, fmt.Sprintf("component '%s', option '%s': field '%s' %v", name, f.Name, f.Field.Name, err))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("registry validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

// decodable reports whether option values can be decoded into t.
func decodable(t reflect.Type) error {
	switch {
	case t == ctyValueType, t.Kind() == reflect.Interface:
		return nil
	case t.Kind() == reflect.Slice:
		return decodable(t.Elem())
	case t.Kind() == reflect.Map:
		if t.Key().Kind() != reflect.String {
			return fmt.Errorf("has map type %s without string keys", t)
		}
		return decodable(t.Elem())
	}
	if _, err := gocty.ImpliedType(reflect.Zero(t).Interface()); err != nil {
		return fmt.Errorf("has type %s with no cty equivalent: %w", t, err)
	}
	return nil
}
