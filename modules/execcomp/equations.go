package execcomp

import (
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/vk/mdaogrid/internal/expr"
	"github.com/vk/mdaogrid/internal/varpath"
)

// equation is one parsed "output = expression" line.
type equation struct {
	source string
	output string
	rhs    hclsyntax.Expression
}

// parseEquations parses every equation and splits the variables they use
// into outputs, in equation order, and params, sorted.
func parseEquations(sources []string) ([]equation, []string, error) {
	if len(sources) == 0 {
		return nil, nil, fmt.Errorf("exec component needs at least one equation")
	}

	eqs := make([]equation, 0, len(sources))
	outputs := make(map[string]bool, len(sources))
	refs := expr.NewContainer()
	for i, src := range sources {
		eq, err := parseEquation(src, i)
		if err != nil {
			return nil, nil, err
		}
		if outputs[eq.output] {
			return nil, nil, fmt.Errorf("equation %q: output %q is assigned twice", src, eq.output)
		}
		outputs[eq.output] = true
		refs.Add(eq.rhs)
		eqs = append(eqs, eq)
	}

	for _, t := range refs.References() {
		if !expr.IsPlain(t) {
			return nil, nil, fmt.Errorf("unsupported reference %q: use a variable name, optionally indexed", expr.TraversalKey(t))
		}
	}
	for _, fn := range refs.CalledFunctions() {
		if _, ok := functions[fn]; !ok {
			return nil, nil, fmt.Errorf("unknown function %q", fn)
		}
	}

	var params []string
	for _, name := range refs.RootNames() {
		if outputs[name] {
			return nil, nil, fmt.Errorf("variable %q is both an output and an input", name)
		}
		if err := varpath.ValidateVarName(name); err != nil {
			return nil, nil, err
		}
		params = append(params, name)
	}
	return eqs, params, nil
}

func parseEquation(src string, index int) (equation, error) {
	at := assignment(src)
	if at < 0 {
		return equation{}, fmt.Errorf("equation %q has no assignment", src)
	}
	lhs := strings.TrimSpace(src[:at])
	if err := varpath.ValidateVarName(lhs); err != nil {
		return equation{}, fmt.Errorf("equation %q: %w", src, err)
	}

	filename := fmt.Sprintf("equation[%d]", index)
	rhs, diags := hclsyntax.ParseExpression([]byte(src[at+1:]), filename, hcl.Pos{Line: 1, Column: at + 2, Byte: at + 1})
	if diags.HasErrors() {
		return equation{}, fmt.Errorf("equation %q: %w", src, diags)
	}
	return equation{source: src, output: lhs, rhs: rhs}, nil
}

// assignment finds the "=" that is not part of a comparison operator.
func assignment(src string) int {
	for i := 0; i < len(src); i++ {
		if src[i] != '=' {
			continue
		}
		if i > 0 && strings.ContainsRune("=<>!", rune(src[i-1])) {
			continue
		}
		if i+1 < len(src) && src[i+1] == '=' {
			i++
			continue
		}
		return i
	}
	return -1
}
