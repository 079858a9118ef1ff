package execcomp

import (
	"fmt"
	"math"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// functions is the table equations may call.
var functions = map[string]function.Function{
	"abs":    stdlib.AbsoluteFunc,
	"ceil":   stdlib.CeilFunc,
	"floor":  stdlib.FloorFunc,
	"max":    stdlib.MaxFunc,
	"min":    stdlib.MinFunc,
	"pow":    stdlib.PowFunc,
	"signum": stdlib.SignumFunc,
	"sqrt":   unary("sqrt", math.Sqrt),
	"exp":    unary("exp", math.Exp),
	"log":    unary("log", math.Log),
	"sin":    unary("sin", math.Sin),
	"cos":    unary("cos", math.Cos),
	"tan":    unary("tan", math.Tan),
}

// unary wraps a float64 function as a cty function of one number.
func unary(name string, fn func(float64) float64) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{
			{Name: "num", Type: cty.Number},
		},
		Type: function.StaticReturnType(cty.Number),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			x, _ := args[0].AsBigFloat().Float64()
			return number(name, fn(x))
		},
	})
}

// number converts a float64 result into a cty number. cty has no NaN.
func number(op string, f float64) (cty.Value, error) {
	if math.IsNaN(f) {
		return cty.NilVal, fmt.Errorf("%s: result is not a number", op)
	}
	return cty.NumberFloatVal(f), nil
}
