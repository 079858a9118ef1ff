package execcomp

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/mdaogrid/internal/system"
	"github.com/vk/mdaogrid/internal/vars"
	"github.com/zclconf/go-cty/cty"
)

// ExecComp evaluates its equations in order. It has no analytic
// derivatives, so the linear solver's fallback supplies its partials.
type ExecComp struct {
	equations []equation
	params    []string
}

// New builds an exec component. shapes gives the shape of array variables;
// values gives initial values. Variables in neither are scalars starting at 1.
func New(equations []string, shapes map[string][]int, values map[string]any) (*system.Component, error) {
	eqs, params, err := parseEquations(equations)
	if err != nil {
		return nil, err
	}
	impl := &ExecComp{equations: eqs, params: params}
	comp := system.NewComponent(impl)

	known := make(map[string]bool, len(params)+len(eqs))
	for _, name := range params {
		known[name] = true
		val, meta := initial(name, shapes, values)
		if err := comp.AddParam(name, val, meta); err != nil {
			return nil, fmt.Errorf("param %q: %w", name, err)
		}
	}
	for _, eq := range eqs {
		known[eq.output] = true
		val, meta := initial(eq.output, shapes, values)
		if err := comp.AddOutput(eq.output, val, meta); err != nil {
			return nil, fmt.Errorf("output %q: %w", eq.output, err)
		}
	}

	for name := range shapes {
		if !known[name] {
			return nil, fmt.Errorf("shapes names %q, which no equation uses", name)
		}
	}
	for name := range values {
		if !known[name] {
			return nil, fmt.Errorf("values names %q, which no equation uses", name)
		}
	}
	return comp, nil
}

func initial(name string, shapes map[string][]int, values map[string]any) (any, vars.Meta) {
	shape, hasShape := shapes[name]
	val, hasVal := values[name]
	switch {
	case hasShape && hasVal:
		return val, vars.Meta{vars.MetaShape: shape}
	case hasShape:
		return nil, vars.Meta{vars.MetaShape: shape}
	case hasVal:
		return val, nil
	}
	return 1.0, nil
}

// UpdateValues implements system.Updater.
func (c *ExecComp) UpdateValues(_ context.Context, params, unknowns, _ *vars.View) error {
	evalCtx := &hcl.EvalContext{
		Variables: make(map[string]cty.Value, len(c.params)),
		Functions: functions,
	}
	for _, name := range c.params {
		val, err := toCty(params.Get(name), params.Shape(name))
		if err != nil {
			return fmt.Errorf("param %q: %w", name, err)
		}
		evalCtx.Variables[name] = val
	}

	for _, eq := range c.equations {
		result, diags := eq.rhs.Value(evalCtx)
		if diags.HasErrors() {
			return fmt.Errorf("equation %q: %w", eq.source, diags)
		}
		flat, err := fromCty(result)
		if err != nil {
			return fmt.Errorf("equation %q: %w", eq.source, err)
		}
		if len(flat) == 1 {
			unknowns.Set(eq.output, flat[0])
		} else {
			unknowns.Set(eq.output, flat)
		}
	}
	return nil
}

// toCty turns a flat variable into a number, a list, or a list of lists.
func toCty(data []float64, shape []int) (cty.Value, error) {
	if len(data) == 0 {
		return cty.NilVal, fmt.Errorf("no value")
	}
	if len(shape) <= 1 && len(data) == 1 {
		return number("value", data[0])
	}
	if len(shape) <= 1 {
		return numberList(data)
	}
	cols := len(data) / shape[0]
	rows := make([]cty.Value, shape[0])
	for i := range rows {
		row, err := numberList(data[i*cols : (i+1)*cols])
		if err != nil {
			return cty.NilVal, err
		}
		rows[i] = row
	}
	return cty.ListVal(rows), nil
}

func numberList(data []float64) (cty.Value, error) {
	elems := make([]cty.Value, len(data))
	for i, f := range data {
		v, err := number("value", f)
		if err != nil {
			return cty.NilVal, err
		}
		elems[i] = v
	}
	return cty.ListVal(elems), nil
}

// fromCty flattens a number or a nested sequence of numbers.
func fromCty(val cty.Value) ([]float64, error) {
	if val.IsNull() || !val.IsWhollyKnown() {
		return nil, fmt.Errorf("result has no value")
	}
	ty := val.Type()
	switch {
	case ty == cty.Number:
		f, _ := val.AsBigFloat().Float64()
		return []float64{f}, nil
	case ty.IsListType() || ty.IsTupleType():
		var out []float64
		for it := val.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			part, err := fromCty(ev)
			if err != nil {
				return nil, err
			}
			out = append(out, part...)
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("result is empty")
		}
		return out, nil
	}
	return nil, fmt.Errorf("result must be a number or a list of numbers, got %s", ty.FriendlyName())
}
