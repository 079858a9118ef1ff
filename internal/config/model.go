package config

import (
	"github.com/hashicorp/hcl/v2"
)

// Model is the unified, format-agnostic representation of a problem file.
type Model struct {
	Problem *Problem
}

// Problem is the format-agnostic representation of the `problem` block.
type Problem struct {
	Name        string
	Root        *Group
	Derivatives *Derivatives
	Recorders   []*Recorder
	DesVars     []*DesVar
	Objectives  []*Objective
	Constraints []*Constraint
}

// Group is a `group` block, or the body of the `problem` block for the root.
type Group struct {
	Name      string
	Promotes  []string
	Nonlinear *Solver
	Linear    *Solver
	// Children are in document order, which becomes the execution order.
	Children    []*Child
	Connections []*Connection
}

// Child is exactly one of a component or a nested group.
type Child struct {
	Component *Component
	Group     *Group
}

// Name returns the local name of the child.
func (c *Child) Name() string {
	if c.Group != nil {
		return c.Group.Name
	}
	return c.Component.Name
}

// Component is a `component` block. Options holds every attribute besides
// type and promotes, decoded later against the type's option struct.
type Component struct {
	Type     string
	Name     string
	Promotes []string
	Options  map[string]hcl.Expression
	Range    hcl.Range
}

// Connection is a `connect` block: one source feeding one or more targets.
type Connection struct {
	Source     string
	Targets    []string
	SrcIndices []int
}

// Solver is a `solver "nonlinear"` or `solver "linear"` block.
type Solver struct {
	Kind    string
	Type    string
	Options map[string]hcl.Expression
}

// Derivatives is the total-derivative query run after the analysis.
type Derivatives struct {
	Of   []string
	Wrt  []string
	Mode string
}

// Recorder is a `recorder` block.
type Recorder struct {
	Type string
	Path string
}

// DesVar is a `design_var` block.
type DesVar struct {
	Name    string
	Lower   *float64
	Upper   *float64
	Adder   float64
	Scaler  float64
	Indices []int
}

// Objective is an `objective` block.
type Objective struct {
	Name   string
	Adder  float64
	Scaler float64
}

// Constraint is a `constraint` block.
type Constraint struct {
	Name   string
	Lower  *float64
	Upper  *float64
	Equals *float64
	Adder  float64
	Scaler float64
}
