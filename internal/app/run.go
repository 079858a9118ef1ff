package app

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/vk/mdaogrid/internal/ctxlog"
	"github.com/vk/mdaogrid/internal/driver"
	"github.com/vk/mdaogrid/internal/problem"
	"github.com/vk/mdaogrid/internal/system"
)

// Run assembles the model, sets it up, runs the analysis and any requested
// derivative query, and writes the report. A failed run still produces a
// report with the values reached.
func (a *App) Run(ctx context.Context) (report *Report, err error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")
	spec := a.model.Problem

	root, err := a.buildGroup(ctx, spec.Root)
	if err != nil {
		return nil, err
	}
	drv, err := buildDriver(spec)
	if err != nil {
		return nil, err
	}

	recs, err := a.openRecorders(ctx, spec)
	if err != nil {
		return nil, err
	}
	opts := []problem.Option{problem.WithName(spec.Name)}
	for _, r := range recs {
		opts = append(opts, problem.WithRecorder(r))
	}
	if a.config.StrictCycles {
		opts = append(opts, problem.WithStrictCycles())
	}
	if a.config.Parallel {
		opts = append(opts, problem.WithParallel())
	}
	prob := problem.New(root, opts...)
	defer func() {
		if closeErr := prob.Close(); closeErr != nil {
			err = multierror.Append(err, fmt.Errorf("closing problem: %w", closeErr))
		}
	}()

	diags, err := prob.Setup(ctx)
	if err != nil {
		return nil, fmt.Errorf("setup failed: %w", err)
	}
	report = &Report{Problem: spec.Name, Unknowns: make(map[string]any)}
	for _, d := range diags {
		a.logger.Warn("Setup diagnostic.", "kind", d.Kind.String(), "group", d.Group, "message", d.Message)
		report.Diagnostics = append(report.Diagnostics, d.String())
	}

	if drv != nil {
		if err := drv.Attach(prob); err != nil {
			return nil, fmt.Errorf("attaching driver: %w", err)
		}
	}

	a.logger.Info("🚀 Starting analysis...", "problem", spec.Name)
	var res system.Result
	var runErr error
	if drv != nil {
		res, runErr = drv.Run(ctx)
	} else {
		res, runErr = prob.Run(ctx)
	}
	report.State, report.Iterations, report.Norm = res.State.String(), res.Iterations, res.Norm
	if runErr != nil {
		report.Error = runErr.Error()
	}
	if err := a.collectUnknowns(prob, report); err != nil {
		return nil, err
	}

	if runErr == nil {
		if err := a.queryDerivatives(ctx, prob, report); err != nil {
			return nil, err
		}
		if drv != nil {
			if err := collectDriver(ctx, drv, report); err != nil {
				return nil, err
			}
		}
		a.logger.Info("🏁 Analysis finished.", "state", report.State, "iterations", report.Iterations)
	}

	if err := writeReport(a.outW, a.config.ReportFormat, report); err != nil {
		return report, fmt.Errorf("writing report: %w", err)
	}
	if runErr != nil {
		return report, fmt.Errorf("run failed: %w", runErr)
	}
	a.logger.Debug("App.Run method finished.")
	return report, nil
}

// collectUnknowns reports every unknown under its promoted name.
func (a *App) collectUnknowns(prob *problem.Problem, report *Report) error {
	for _, vi := range prob.Model().Vars() {
		if !vi.IsUnknown() {
			continue
		}
		v, err := prob.GetObj(vi.Promoted)
		if err != nil {
			return err
		}
		report.Unknowns[vi.Promoted] = v
	}
	return nil
}

func (a *App) queryDerivatives(ctx context.Context, prob *problem.Problem, report *Report) error {
	q := a.model.Problem.Derivatives
	if q == nil {
		return nil
	}
	mode, err := system.ParseTotalsMode(q.Mode)
	if err != nil {
		return err
	}
	totals, err := prob.CalcGradient(ctx, q.Of, q.Wrt, mode)
	if err != nil {
		return fmt.Errorf("derivative query failed: %w", err)
	}
	for _, d := range totals.Diagnostics {
		a.logger.Warn("Derivative diagnostic.", "kind", d.Kind.String(), "target", d.Target, "message", d.Message)
		report.Diagnostics = append(report.Diagnostics, d.String())
	}

	dr := &DerivativeReport{Mode: totals.Mode.String()}
	for _, of := range q.Of {
		for _, wrt := range q.Wrt {
			if m := totals.At(of, wrt); m != nil {
				dr.Blocks = append(dr.Blocks, newBlock(of, wrt, m))
			}
		}
	}
	report.Derivatives = dr
	return nil
}

func collectDriver(ctx context.Context, drv *driver.Driver, report *Report) error {
	dr := &DriverReport{}
	var err error
	if dr.DesVars, err = drv.DesVars(); err != nil {
		return err
	}
	if dr.Objectives, err = drv.Objectives(); err != nil {
		return err
	}
	if dr.Constraints, err = drv.Constraints(); err != nil {
		return err
	}
	grad, err := drv.Gradient(ctx)
	if err != nil {
		return fmt.Errorf("driver gradient failed: %w", err)
	}
	for _, of := range sortedKeys(grad) {
		for _, wrt := range sortedKeys(grad[of]) {
			dr.Gradient = append(dr.Gradient, newBlock(of, wrt, grad[of][wrt]))
		}
	}
	report.Driver = dr
	return nil
}
