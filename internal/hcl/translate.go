package hcl

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/vk/mdaogrid/internal/config"
	"github.com/vk/mdaogrid/internal/ctxlog"
	"github.com/vk/mdaogrid/internal/schema"
)

// translateProblem converts a `problem` block into the agnostic model. Its
// body doubles as the root group.
func (l *Loader) translateProblem(ctx context.Context, s *schema.Problem) (*config.Problem, hcl.Diagnostics) {
	content, diags := s.Body.Content(schema.ProblemBody)
	if diags.HasErrors() {
		return nil, diags
	}

	p := &config.Problem{Name: s.Name}
	root, groupDiags := l.translateGroupContent(ctx, "", content)
	diags = append(diags, groupDiags...)
	p.Root = root

	derivBlock, uniqDiags := findUniqueBlock(content.Blocks, "derivatives")
	diags = append(diags, uniqDiags...)
	if derivBlock != nil {
		var d schema.Derivatives
		diags = append(diags, gohcl.DecodeBody(derivBlock.Body, nil, &d)...)
		p.Derivatives = &config.Derivatives{Of: d.Of, Wrt: d.Wrt, Mode: d.Mode}
	}

	for _, block := range content.Blocks {
		switch block.Type {
		case "recorder":
			var r schema.Recorder
			diags = append(diags, gohcl.DecodeBody(block.Body, nil, &r)...)
			p.Recorders = append(p.Recorders, &config.Recorder{Type: r.Type, Path: r.Path})
		case "design_var":
			var dv schema.DesVar
			diags = append(diags, gohcl.DecodeBody(block.Body, nil, &dv)...)
			p.DesVars = append(p.DesVars, &config.DesVar{
				Name:    block.Labels[0],
				Lower:   dv.Lower,
				Upper:   dv.Upper,
				Adder:   valueOr(dv.Adder, 0),
				Scaler:  valueOr(dv.Scaler, 1),
				Indices: dv.Indices,
			})
		case "objective":
			var o schema.Objective
			diags = append(diags, gohcl.DecodeBody(block.Body, nil, &o)...)
			p.Objectives = append(p.Objectives, &config.Objective{
				Name:   block.Labels[0],
				Adder:  valueOr(o.Adder, 0),
				Scaler: valueOr(o.Scaler, 1),
			})
		case "constraint":
			var c schema.Constraint
			diags = append(diags, gohcl.DecodeBody(block.Body, nil, &c)...)
			p.Constraints = append(p.Constraints, &config.Constraint{
				Name:   block.Labels[0],
				Lower:  c.Lower,
				Upper:  c.Upper,
				Equals: c.Equals,
				Adder:  valueOr(c.Adder, 0),
				Scaler: valueOr(c.Scaler, 1),
			})
		}
	}
	return p, diags
}

// translateGroup converts a nested `group` block.
func (l *Loader) translateGroup(ctx context.Context, block *hcl.Block) (*config.Group, hcl.Diagnostics) {
	name := block.Labels[0]
	content, diags := block.Body.Content(schema.GroupBody)
	if diags.HasErrors() {
		return nil, diags
	}
	g, groupDiags := l.translateGroupContent(ctx, name, content)
	diags = append(diags, groupDiags...)

	if attr, ok := content.Attributes["promotes"]; ok {
		diags = append(diags, gohcl.DecodeExpression(attr.Expr, nil, &g.Promotes)...)
	}
	return g, diags
}

// translateGroupContent walks the blocks a group can hold, keeping children
// in document order.
func (l *Loader) translateGroupContent(ctx context.Context, name string, content *hcl.BodyContent) (*config.Group, hcl.Diagnostics) {
	logger := ctxlog.FromContext(ctx)
	g := &config.Group{Name: name}
	var diags hcl.Diagnostics

	for _, block := range content.Blocks {
		switch block.Type {
		case "component":
			comp, compDiags := translateComponent(block)
			diags = append(diags, compDiags...)
			if comp != nil {
				g.Children = append(g.Children, &config.Child{Component: comp})
			}
		case "group":
			sub, subDiags := l.translateGroup(ctx, block)
			diags = append(diags, subDiags...)
			if sub != nil {
				g.Children = append(g.Children, &config.Child{Group: sub})
			}
		case "connect":
			var c schema.Connect
			diags = append(diags, gohcl.DecodeBody(block.Body, nil, &c)...)
			g.Connections = append(g.Connections, &config.Connection{
				Source:     c.Source,
				Targets:    c.Targets,
				SrcIndices: c.SrcIndices,
			})
		}
	}

	nonlinear, solverDiags := translateSolver(content.Blocks, "nonlinear")
	diags = append(diags, solverDiags...)
	linear, solverDiags := translateSolver(content.Blocks, "linear")
	diags = append(diags, solverDiags...)
	g.Nonlinear, g.Linear = nonlinear, linear

	for _, block := range content.Blocks {
		if block.Type == "solver" && block.Labels[0] != "nonlinear" && block.Labels[0] != "linear" {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Unsupported solver kind",
				Detail:   fmt.Sprintf("Solver kind must be \"nonlinear\" or \"linear\", got %q.", block.Labels[0]),
				Subject:  &block.LabelRanges[0],
			})
		}
	}

	logger.Debug("Translated group.", "group", name, "children", len(g.Children), "connections", len(g.Connections))
	return g, diags
}

// translateComponent splits a component body into its reserved attributes
// and the type options.
func translateComponent(block *hcl.Block) (*config.Component, hcl.Diagnostics) {
	attrs, diags := block.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, diags
	}

	c := &config.Component{
		Name:    block.Labels[0],
		Options: make(map[string]hcl.Expression),
		Range:   block.DefRange,
	}
	typeAttr, ok := attrs["type"]
	if !ok {
		return nil, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Missing component type",
			Detail:   fmt.Sprintf("Component %q needs a \"type\" attribute.", c.Name),
			Subject:  &block.DefRange,
		}}
	}
	diags = append(diags, gohcl.DecodeExpression(typeAttr.Expr, nil, &c.Type)...)
	if attr, ok := attrs["promotes"]; ok {
		diags = append(diags, gohcl.DecodeExpression(attr.Expr, nil, &c.Promotes)...)
	}

	for name, attr := range attrs {
		if name == "type" || name == "promotes" {
			continue
		}
		c.Options[name] = attr.Expr
	}
	return c, diags
}

// translateSolver finds the solver block of one kind.
func translateSolver(blocks hcl.Blocks, kind string) (*config.Solver, hcl.Diagnostics) {
	var matching hcl.Blocks
	for _, block := range blocks {
		if block.Type == "solver" && block.Labels[0] == kind {
			matching = append(matching, block)
		}
	}
	block, diags := findUniqueBlock(relabel(matching, "solver "+kind), "solver "+kind)
	if block == nil {
		return nil, diags
	}

	attrs, attrDiags := block.Body.JustAttributes()
	diags = append(diags, attrDiags...)
	if attrDiags.HasErrors() {
		return nil, diags
	}
	s := &config.Solver{Kind: kind, Options: make(map[string]hcl.Expression)}
	typeAttr, ok := attrs["type"]
	if !ok {
		return nil, append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Missing solver type",
			Detail:   fmt.Sprintf("The %s solver needs a \"type\" attribute.", kind),
			Subject:  &block.DefRange,
		})
	}
	diags = append(diags, gohcl.DecodeExpression(typeAttr.Expr, nil, &s.Type)...)
	for name, attr := range attrs {
		if name != "type" {
			s.Options[name] = attr.Expr
		}
	}
	return s, diags
}

// relabel gives labelled blocks a combined type so findUniqueBlock can tell
// them apart.
func relabel(blocks hcl.Blocks, typ string) hcl.Blocks {
	out := make(hcl.Blocks, len(blocks))
	for i, b := range blocks {
		cp := *b
		cp.Type = typ
		out[i] = &cp
	}
	return out
}

func valueOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}
