package hcl

import (
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/mdaogrid/internal/testutil"
	"github.com/zclconf/go-cty/cty"
)

// parseExpr is a test helper to quickly get an hcl.Expression from a string.
func parseExpr(t *testing.T, exprStr string) hcl.Expression {
	t.Helper()
	expr, diags := hclsyntax.ParseExpression([]byte(exprStr), "test.hcl", hcl.Pos{Line: 1, Column: 1})
	require.False(t, diags.HasErrors(), "Expression parsing failed: %s", diags.Error())
	return expr
}

type sampleOptions struct {
	Atol      float64          `mdao:"atol,optional"`
	MaxIter   int              `mdao:"maxiter,optional"`
	Parallel  bool             `mdao:"parallel,optional"`
	Equations []string         `mdao:"equations"`
	Shapes    map[string][]int `mdao:"shapes,optional"`
	Outputs   map[string]any   `mdao:"outputs,optional"`
	Raw       cty.Value        `mdao:"raw,optional"`
	internal  string
}

func TestConverter_DecodeOptions(t *testing.T) {
	// --- Arrange ---
	ctx, _ := testutil.NewContext(t)
	opts := sampleOptions{Atol: 1e-10, MaxIter: 10, internal: "kept"}
	args := map[string]hcl.Expression{
		"maxiter":   parseExpr(t, `25`),
		"parallel":  parseExpr(t, `true`),
		"equations": parseExpr(t, `["y = 2*x", "z = y"]`),
		"shapes":    parseExpr(t, `{ x = [3], A = [2, 2] }`),
		"outputs":   parseExpr(t, `{ s = 1.5, v = [1, 2], m = [[1, 2], [3, 4]], name = "n" }`),
		"raw":       parseExpr(t, `"as-is"`),
	}

	// --- Act ---
	err := NewConverter().DecodeOptions(ctx, &opts, args)

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, 1e-10, opts.Atol, "absent options keep their value")
	assert.Equal(t, 25, opts.MaxIter)
	assert.True(t, opts.Parallel)
	assert.Equal(t, []string{"y = 2*x", "z = y"}, opts.Equations)
	assert.Equal(t, map[string][]int{"x": {3}, "A": {2, 2}}, opts.Shapes)
	assert.Equal(t, map[string]any{
		"s":    1.5,
		"v":    []float64{1, 2},
		"m":    [][]float64{{1, 2}, {3, 4}},
		"name": "n",
	}, opts.Outputs)
	assert.Equal(t, cty.StringVal("as-is"), opts.Raw)
	assert.Equal(t, "kept", opts.internal)
}

func TestConverter_DecodeOptionsErrors(t *testing.T) {
	// --- Arrange ---
	ctx, _ := testutil.NewContext(t)
	var opts sampleOptions
	args := map[string]hcl.Expression{
		"maxiter": parseExpr(t, `"many"`),
		"bogus":   parseExpr(t, `1`),
	}

	// --- Act ---
	err := NewConverter().DecodeOptions(ctx, &opts, args)

	// --- Assert ---
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "option decoding failed:")
	assert.Contains(t, msg, `- unsupported option "bogus"`)
	assert.Contains(t, msg, `missing required option "equations"`)
	assert.Contains(t, msg, `failed to decode option "maxiter"`)
}

func TestConverter_DecodeOptionsTarget(t *testing.T) {
	ctx, _ := testutil.NewContext(t)
	var notStruct int
	require.Error(t, NewConverter().DecodeOptions(ctx, &notStruct, nil))
	require.Error(t, NewConverter().DecodeOptions(ctx, sampleOptions{}, nil))
}

func TestCtyToNative(t *testing.T) {
	testCases := []struct {
		name string
		in   cty.Value
		want any
	}{
		{"number", cty.NumberFloatVal(2.5), 2.5},
		{"string", cty.StringVal("s"), "s"},
		{"bool", cty.True, true},
		{"null", cty.NullVal(cty.Number), nil},
		{"empty tuple", cty.EmptyTupleVal, []any{}},
		{"vector", cty.ListVal([]cty.Value{cty.NumberIntVal(1), cty.NumberIntVal(2)}), []float64{1, 2}},
		{
			"ragged rows stay generic",
			cty.TupleVal([]cty.Value{
				cty.TupleVal([]cty.Value{cty.NumberIntVal(1)}),
				cty.TupleVal([]cty.Value{cty.NumberIntVal(1), cty.NumberIntVal(2)}),
			}),
			[]any{[]float64{1}, []float64{1, 2}},
		},
		{
			"mixed tuple",
			cty.TupleVal([]cty.Value{cty.NumberIntVal(1), cty.StringVal("a")}),
			[]any{1.0, "a"},
		},
		{"object", cty.ObjectVal(map[string]cty.Value{"k": cty.NumberIntVal(3)}), map[string]any{"k": 3.0}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ctyToNative(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := ctyToNative(cty.UnknownVal(cty.Number))
	require.Error(t, err)
}
