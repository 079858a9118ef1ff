package hcl

import (
	"context"
	"fmt"
	"reflect"

	"github.com/vk/mdaogrid/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

var ctyValueType = reflect.TypeOf(cty.Value{})

// decode is a recursive function that populates a Go value from a cty.Value,
// guided by the Go type of the target.
func (c *Converter) decode(ctx context.Context, val cty.Value, goVal any) error {
	goPtr := reflect.ValueOf(goVal).Elem()
	goType := goPtr.Type()
	logger := ctxlog.FromContext(ctx).With("go_kind", goType.Kind().String())

	if goType == ctyValueType {
		logger.Debug("Target is cty.Value, performing direct assignment.")
		goPtr.Set(reflect.ValueOf(val))
		return nil
	}

	if !val.IsWhollyKnown() {
		return fmt.Errorf("value is not known")
	}
	if val.IsNull() {
		logger.Debug("Skipping decode for null value.")
		return nil
	}

	switch goType.Kind() {
	case reflect.Interface:
		logger.Debug("Decoding as interface (any).")
		nativeVal, err := ctyToNative(val)
		if err != nil {
			return err
		}
		if nativeVal != nil {
			goPtr.Set(reflect.ValueOf(nativeVal))
		}
		return nil

	case reflect.Map:
		return c.decodeMap(ctx, val, goPtr)

	case reflect.Slice:
		logger.Debug("Decoding as slice.")
		ty := val.Type()
		if !ty.IsListType() && !ty.IsTupleType() && !ty.IsSetType() {
			return fmt.Errorf("type mismatch: cannot decode cty.%s into Go slice %s", ty.FriendlyName(), goType.String())
		}
		newSlice := reflect.MakeSlice(goType, val.LengthInt(), val.LengthInt())
		it := val.ElementIterator()
		for i := 0; it.Next(); i++ {
			_, elemVal := it.Element()
			if err := c.decode(ctx, elemVal, newSlice.Index(i).Addr().Interface()); err != nil {
				return fmt.Errorf("in slice element %d: %w", i, err)
			}
		}
		goPtr.Set(newSlice)
		return nil

	default:
		logger.Debug("Decoding as primitive.")
		impliedType, err := gocty.ImpliedType(goPtr.Interface())
		if err != nil {
			return gocty.FromCtyValue(val, goVal)
		}
		convertedVal, err := convert.Convert(val, impliedType)
		if err != nil {
			return fmt.Errorf("cannot convert %s to required type %s: %w", val.Type().FriendlyName(), impliedType.FriendlyName(), err)
		}
		return gocty.FromCtyValue(convertedVal, goVal)
	}
}

// decodeMap handles the recursive decoding of a cty object or map into a Go
// map with string keys.
func (c *Converter) decodeMap(ctx context.Context, val cty.Value, goPtr reflect.Value) error {
	logger := ctxlog.FromContext(ctx).With("go_type", goPtr.Type().String(), "cty_type", val.Type().FriendlyName())
	logger.Debug("Decoding into Go map.")

	ty := val.Type()
	if !ty.IsObjectType() && !ty.IsMapType() {
		return fmt.Errorf("type mismatch: cannot decode cty.%s into Go map %s", ty.FriendlyName(), goPtr.Type().String())
	}
	if goPtr.Type().Key().Kind() != reflect.String {
		return fmt.Errorf("map %s must have string keys", goPtr.Type().String())
	}

	newMap := reflect.MakeMapWithSize(goPtr.Type(), val.LengthInt())
	it := val.ElementIterator()
	for it.Next() {
		key, elemVal := it.Element()
		keyStr := key.AsString()

		newElemPtr := reflect.New(goPtr.Type().Elem())
		if err := c.decode(ctx, elemVal, newElemPtr.Interface()); err != nil {
			return fmt.Errorf("failed to decode map element '%s': %w", keyStr, err)
		}
		newMap.SetMapIndex(reflect.ValueOf(keyStr).Convert(goPtr.Type().Key()), newElemPtr.Elem())
	}
	goPtr.Set(newMap)
	return nil
}

// ctyToNative converts a known cty value into plain Go values. Numbers
// become float64; a sequence of numbers becomes []float64 and a sequence of
// equal-length number sequences becomes [][]float64, the forms variables
// accept as values.
func ctyToNative(val cty.Value) (any, error) {
	if val.IsNull() {
		return nil, nil
	}
	if !val.IsWhollyKnown() {
		return nil, fmt.Errorf("value is not known")
	}

	ty := val.Type()
	switch {
	case ty == cty.Number:
		f, _ := val.AsBigFloat().Float64()
		return f, nil
	case ty == cty.String:
		return val.AsString(), nil
	case ty == cty.Bool:
		return val.True(), nil
	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		elems := make([]any, 0, val.LengthInt())
		for it := val.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			native, err := ctyToNative(ev)
			if err != nil {
				return nil, err
			}
			elems = append(elems, native)
		}
		return numericSequence(elems), nil
	case ty.IsMapType() || ty.IsObjectType():
		out := make(map[string]any, val.LengthInt())
		for it := val.ElementIterator(); it.Next(); {
			k, ev := it.Element()
			native, err := ctyToNative(ev)
			if err != nil {
				return nil, fmt.Errorf("in key %q: %w", k.AsString(), err)
			}
			out[k.AsString()] = native
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported cty type %s", ty.FriendlyName())
}

func numericSequence(elems []any) any {
	if len(elems) == 0 {
		return elems
	}
	if flat, ok := floatsOf(elems); ok {
		return flat
	}
	first, ok := elems[0].([]float64)
	if !ok {
		return elems
	}
	rows := make([][]float64, len(elems))
	for i, e := range elems {
		row, ok := e.([]float64)
		if !ok || len(row) != len(first) {
			return elems
		}
		rows[i] = row
	}
	return rows
}

func floatsOf(elems []any) ([]float64, bool) {
	out := make([]float64, len(elems))
	for i, e := range elems {
		f, ok := e.(float64)
		if !ok {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}
