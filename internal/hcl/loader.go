package hcl

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/mdaogrid/internal/config"
	"github.com/vk/mdaogrid/internal/ctxlog"
	"github.com/vk/mdaogrid/internal/fsutil"
	"github.com/vk/mdaogrid/internal/schema"
)

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct{}

// NewLoader creates a new HCL problem loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses every .hcl file under the given paths. Exactly one `problem`
// block must exist across all of them.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, config.Converter, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	hclFiles, err := fsutil.FindFilesByExtension(".hcl", paths...)
	if err != nil {
		return nil, nil, err
	}
	if len(hclFiles) == 0 {
		return nil, nil, fmt.Errorf("no .hcl files found in %v", paths)
	}
	logger.Debug("Discovered HCL files.", "count", len(hclFiles))

	parser := hclparse.NewParser()
	var problems []*schema.Problem
	for _, file := range hclFiles {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}

		var root schema.File
		diags = gohcl.DecodeBody(hclFile.Body, nil, &root)
		if diags.HasErrors() {
			return nil, nil, fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
		}
		problems = append(problems, root.Problems...)
	}

	switch len(problems) {
	case 0:
		return nil, nil, fmt.Errorf("no problem block found in %v", hclFiles)
	case 1:
	default:
		return nil, nil, fmt.Errorf("expected exactly one problem block, found %d", len(problems))
	}

	p, diags := l.translateProblem(ctx, problems[0])
	if diags.HasErrors() {
		return nil, nil, fmt.Errorf("invalid problem %q: %w", problems[0].Name, diags)
	}

	logger.Debug("HCL loading complete.", "problem", p.Name, "children", len(p.Root.Children), "connections", len(p.Root.Connections))
	return &config.Model{Problem: p}, NewConverter(), nil
}

// findAllHCLFiles walks all given paths and returns a flat list of all .hcl files found.
// findUniqueBlock returns the only block of the given type, or nil. Every
// repeat is reported.
func findUniqueBlock(blocks hcl.Blocks, name string) (*hcl.Block, hcl.Diagnostics) {
	var found *hcl.Block
	var diags hcl.Diagnostics

	for _, block := range blocks {
		if block.Type != name {
			continue
		}
		if found != nil {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Duplicate \"" + name + "\" block",
				Detail:   "Only one \"" + name + "\" block is allowed.",
				Subject:  &block.DefRange,
			})
			continue
		}
		found = block
	}

	return found, diags
}
