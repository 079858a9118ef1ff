package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/hcl/v2"
	"github.com/vk/mdaogrid/internal/config"
	"github.com/vk/mdaogrid/internal/ctxlog"
	"github.com/vk/mdaogrid/internal/driver"
	"github.com/vk/mdaogrid/internal/recorder"
	"github.com/vk/mdaogrid/internal/solver"
	"github.com/vk/mdaogrid/internal/system"
)

// buildErrors gives assembly failures the same layout as registry validation.
func buildErrors(result *multierror.Error) error {
	if result == nil {
		return nil
	}
	result.ErrorFormat = func(es []error) string {
		points := make([]string, len(es))
		for i, err := range es {
			points[i] = "- " + err.Error()
		}
		return fmt.Sprintf("model assembly failed:\n%s", strings.Join(points, "\n"))
	}
	return result
}

// buildGroup turns a group of the config model into a system group. Every
// child and connection is attempted so that all mistakes are reported
// together.
func (a *App) buildGroup(ctx context.Context, g *config.Group) (*system.Group, error) {
	logger := ctxlog.FromContext(ctx)
	var result *multierror.Error

	var opts []system.GroupOption
	if g.Nonlinear != nil {
		s, err := solver.NewNonlinear(g.Nonlinear.Type, a.decoder(ctx, g.Nonlinear.Options))
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("nonlinear solver of %s: %w", groupLabel(g), err))
		} else {
			opts = append(opts, system.WithNonlinearSolver(s))
		}
	}
	if g.Linear != nil {
		s, err := solver.NewLinear(g.Linear.Type, a.decoder(ctx, g.Linear.Options))
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("linear solver of %s: %w", groupLabel(g), err))
		} else {
			opts = append(opts, system.WithLinearSolver(s))
		}
	}
	group := system.NewGroup(opts...)

	for _, child := range g.Children {
		var (
			sys      system.System
			promotes []string
			err      error
		)
		if child.Group != nil {
			sys, err = a.buildGroup(ctx, child.Group)
			promotes = child.Group.Promotes
		} else {
			sys, err = a.buildComponent(ctx, child.Component)
			promotes = child.Component.Promotes
		}
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		if err := group.Add(child.Name(), sys, promotes...); err != nil {
			result = multierror.Append(result, err)
		}
	}

	for _, conn := range g.Connections {
		for _, target := range conn.Targets {
			if err := group.Connect(conn.Source, target, conn.SrcIndices...); err != nil {
				result = multierror.Append(result, fmt.Errorf("connecting %q to %q: %w", conn.Source, target, err))
			}
		}
	}

	logger.Debug("Assembled group.", "group", groupLabel(g), "children", len(g.Children), "connections", len(g.Connections))
	return group, buildErrors(result)
}

// buildComponent decodes the options of a component block against its
// registered type and builds it.
func (a *App) buildComponent(ctx context.Context, c *config.Component) (*system.Component, error) {
	ct, ok := a.registry.Component(c.Type)
	if !ok {
		return nil, fmt.Errorf("component %q at %s: unknown type %q, available types: %s",
			c.Name, c.Range, c.Type, strings.Join(a.registry.ComponentTypes(), ", "))
	}

	opts := ct.NewOptions()
	if err := a.converter.DecodeOptions(ctx, opts, c.Options); err != nil {
		return nil, fmt.Errorf("component %q at %s: %w", c.Name, c.Range, err)
	}
	comp, err := ct.Build(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("component %q at %s: %w", c.Name, c.Range, err)
	}
	ctxlog.FromContext(ctx).Debug("Built component.", "name", c.Name, "type", c.Type)
	return comp, nil
}

func (a *App) decoder(ctx context.Context, opts map[string]hcl.Expression) solver.Decoder {
	return func(target any) error {
		return a.converter.DecodeOptions(ctx, target, opts)
	}
}

func groupLabel(g *config.Group) string {
	if g.Name == "" {
		return "root group"
	}
	return fmt.Sprintf("group %q", g.Name)
}

// openRecorders creates one recorder per `recorder` block plus one for the
// configured record path. Files already opened are closed on failure.
func (a *App) openRecorders(ctx context.Context, p *config.Problem) ([]recorder.Recorder, error) {
	specs := make([]*config.Recorder, 0, len(p.Recorders)+1)
	specs = append(specs, p.Recorders...)
	if a.config.RecordPath != "" {
		typ := "dump"
		if ext := filepath.Ext(a.config.RecordPath); ext == ".yaml" || ext == ".yml" {
			typ = "yaml"
		}
		specs = append(specs, &config.Recorder{Type: typ, Path: a.config.RecordPath})
	}

	var recs []recorder.Recorder
	closeAll := func() {
		for _, r := range recs {
			_ = r.Close()
		}
	}
	for _, spec := range specs {
		if spec.Type != "dump" && spec.Type != "yaml" {
			closeAll()
			return nil, fmt.Errorf("unknown recorder type %q: must be 'dump' or 'yaml'", spec.Type)
		}
		if spec.Path == "" {
			closeAll()
			return nil, fmt.Errorf("%s recorder needs a path", spec.Type)
		}
		f, err := os.Create(spec.Path)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("opening recorder output: %w", err)
		}
		if spec.Type == "yaml" {
			recs = append(recs, recorder.NewYAML(f))
		} else {
			recs = append(recs, recorder.NewDump(f))
		}
		ctxlog.FromContext(ctx).Debug("Recorder opened.", "type", spec.Type, "path", spec.Path)
	}
	return recs, nil
}

// buildDriver registers the design variables and responses of the problem,
// or returns nil when there are none.
func buildDriver(p *config.Problem) (*driver.Driver, error) {
	if len(p.DesVars) == 0 && len(p.Objectives) == 0 && len(p.Constraints) == 0 {
		return nil, nil
	}

	d := driver.New()
	var result *multierror.Error
	for _, dv := range p.DesVars {
		err := d.AddDesVar(dv.Name, driver.Bounds{
			Lower:   dv.Lower,
			Upper:   dv.Upper,
			Scaling: driver.Scaling{Adder: dv.Adder, Scaler: dv.Scaler},
			Indices: dv.Indices,
		})
		if err != nil {
			result = multierror.Append(result, err)
		}
	}
	for _, o := range p.Objectives {
		if err := d.AddObjective(o.Name, driver.Scaling{Adder: o.Adder, Scaler: o.Scaler}); err != nil {
			result = multierror.Append(result, err)
		}
	}
	for _, c := range p.Constraints {
		err := d.AddConstraint(c.Name, driver.Constraint{
			Lower:   c.Lower,
			Upper:   c.Upper,
			Equals:  c.Equals,
			Scaling: driver.Scaling{Adder: c.Adder, Scaler: c.Scaler},
		})
		if err != nil {
			result = multierror.Append(result, err)
		}
	}
	return d, buildErrors(result)
}
