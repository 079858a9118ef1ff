// Package schema holds the HCL decoding structs of problem files. Bodies
// whose block order matters (problem and group) are kept raw and walked with
// the block schemas below.
package schema

import (
	"github.com/hashicorp/hcl/v2"
)

// --- File Structure ---

// File represents the top-level structure of a problem file.
type File struct {
	Problems []*Problem `hcl:"problem,block"`
	Body     hcl.Body   `hcl:",remain"`
}

// Problem represents a `problem` block. Its body is the root group plus the
// problem-level blocks.
type Problem struct {
	Name string   `hcl:"name,label"`
	Body hcl.Body `hcl:",remain"`
}

// ProblemBody lists everything allowed directly inside a `problem` block.
var ProblemBody = &hcl.BodySchema{
	Blocks: append([]hcl.BlockHeaderSchema{
		{Type: "derivatives"},
		{Type: "recorder"},
		{Type: "design_var", LabelNames: []string{"name"}},
		{Type: "objective", LabelNames: []string{"name"}},
		{Type: "constraint", LabelNames: []string{"name"}},
	}, groupBlocks...),
}

// GroupBody lists everything allowed inside a `group` block.
var GroupBody = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "promotes"},
	},
	Blocks: groupBlocks,
}

var groupBlocks = []hcl.BlockHeaderSchema{
	{Type: "component", LabelNames: []string{"name"}},
	{Type: "group", LabelNames: []string{"name"}},
	{Type: "connect"},
	{Type: "solver", LabelNames: []string{"kind"}},
}

// --- Leaf Blocks ---

// Connect represents a `connect` block.
type Connect struct {
	Source     string   `hcl:"source"`
	Targets    []string `hcl:"targets"`
	SrcIndices []int    `hcl:"src_indices,optional"`
}

// Derivatives represents the `derivatives` block: the total-derivative
// query run after the analysis.
type Derivatives struct {
	Of   []string `hcl:"of"`
	Wrt  []string `hcl:"wrt"`
	Mode string   `hcl:"mode,optional"`
}

// Recorder represents a `recorder` block.
type Recorder struct {
	Type string `hcl:"type"`
	Path string `hcl:"path,optional"`
}

// DesVar represents a `design_var` block.
type DesVar struct {
	Lower   *float64 `hcl:"lower,optional"`
	Upper   *float64 `hcl:"upper,optional"`
	Adder   *float64 `hcl:"adder,optional"`
	Scaler  *float64 `hcl:"scaler,optional"`
	Indices []int    `hcl:"indices,optional"`
}

// Objective represents an `objective` block.
type Objective struct {
	Adder  *float64 `hcl:"adder,optional"`
	Scaler *float64 `hcl:"scaler,optional"`
}

// Constraint represents a `constraint` block.
type Constraint struct {
	Lower  *float64 `hcl:"lower,optional"`
	Upper  *float64 `hcl:"upper,optional"`
	Equals *float64 `hcl:"equals,optional"`
	Adder  *float64 `hcl:"adder,optional"`
	Scaler *float64 `hcl:"scaler,optional"`
}
