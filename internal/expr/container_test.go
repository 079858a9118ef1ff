package expr_test

import (
	"sync"
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/stretchr/testify/require"
	"github.com/vk/mdaogrid/internal/expr"
)

// parseExpr is a test helper to quickly get an hcl.Expression from a string.
func parseExpr(t *testing.T, exprStr string) hcl.Expression {
	t.Helper()
	e, diags := hclsyntax.ParseExpression([]byte(exprStr), "test.hcl", hcl.Pos{Line: 1, Column: 1})
	require.False(t, diags.HasErrors(), "Expression parsing failed: %s", diags.Error())
	return e
}

func keys(refs []hcl.Traversal) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = expr.TraversalKey(r)
	}
	return out
}

func TestContainer_AddAndExtract(t *testing.T) {
	c := expr.NewContainer()
	c.Add(
		parseExpr(t, `sqrt(x)`),
		parseExpr(t, `2*z + pow(y, 2)`),
		parseExpr(t, `exp(x) - v[1]`),
		parseExpr(t, `y`), // Duplicate reference
	)

	require.Equal(t, []string{"exp", "pow", "sqrt"}, c.CalledFunctions())
	require.Equal(t, []string{"v[1]", "x", "y", "z"}, keys(c.References()))
	require.Equal(t, []string{"v", "x", "y", "z"}, c.RootNames())
}

func TestContainer_AddAfterExtract(t *testing.T) {
	c := expr.NewContainer()
	c.Add(parseExpr(t, `first`))
	require.Equal(t, []string{"first"}, c.RootNames())

	c.Add(parseExpr(t, `second`), parseExpr(t, `my_func()`))

	require.Equal(t, []string{"my_func"}, c.CalledFunctions())
	require.Equal(t, []string{"first", "second"}, c.RootNames())
}

func TestContainer_ConcurrentAccess(t *testing.T) {
	c := expr.NewContainer()
	c.Add(
		parseExpr(t, `a`),
		parseExpr(t, `b`),
		parseExpr(t, `func_a()`),
	)

	var wg sync.WaitGroup
	numGoroutines := 100
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				require.Len(t, c.References(), 2)
			} else {
				require.Len(t, c.CalledFunctions(), 1)
			}
		}()
	}

	wg.Wait()
}

func TestContainer_EdgeCases(t *testing.T) {
	t.Run("Empty Container", func(t *testing.T) {
		c := expr.NewContainer()
		require.Empty(t, c.References())
		require.Empty(t, c.CalledFunctions())
		require.Empty(t, c.RootNames())
	})

	t.Run("Adding Nil Expressions", func(t *testing.T) {
		c := expr.NewContainer()
		c.Add(nil, parseExpr(t, `a`), nil)
		require.Equal(t, []string{"a"}, keys(c.References()))
	})
}

func TestIsPlain(t *testing.T) {
	testCases := []struct {
		src  string
		want bool
	}{
		{"x", true},
		{"x[2]", true},
		{"m[0][1]", true},
		{"var.x", false},
	}
	for _, tc := range testCases {
		t.Run(tc.src, func(t *testing.T) {
			refs := parseExpr(t, tc.src).Variables()
			require.Len(t, refs, 1)
			require.Equal(t, tc.want, expr.IsPlain(refs[0]))
		})
	}
}
