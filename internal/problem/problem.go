package problem

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/vk/mdaogrid/internal/ctxlog"
	"github.com/vk/mdaogrid/internal/mdaoerr"
	"github.com/vk/mdaogrid/internal/recorder"
	"github.com/vk/mdaogrid/internal/solver"
	"github.com/vk/mdaogrid/internal/system"
)

// Problem is the top-level handle on a model tree. Its methods are safe to
// call from several goroutines; they are serialised.
type Problem struct {
	mu        sync.Mutex
	id        string
	name      string
	root      *system.Group
	model     *system.Model
	strict    bool
	parallel  bool
	recorders []recorder.Recorder
	iteration int
}

// Option configures a Problem.
type Option func(*Problem)

// WithStrictCycles makes a feedback cycle under a single-pass solver a setup
// error instead of a diagnostic.
func WithStrictCycles() Option {
	return func(p *Problem) { p.strict = true }
}

// WithRecorder adds a recorder. It is started at setup and closed by Close.
func WithRecorder(r recorder.Recorder) Option {
	return func(p *Problem) { p.recorders = append(p.recorders, r) }
}

// WithName labels the problem in logs and recorder metadata.
func WithName(name string) Option {
	return func(p *Problem) { p.name = name }
}

// WithParallel makes default single-pass solvers run independent children
// concurrently.
func WithParallel() Option {
	return func(p *Problem) { p.parallel = true }
}

// New wraps root. Nothing is validated until Setup.
func New(root *system.Group, opts ...Option) *Problem {
	p := &Problem{
		id:   uuid.NewString(),
		root: root,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ID returns the problem's unique identity, also used as the ownership tag.
func (p *Problem) ID() string { return p.id }

// Name returns the label given with WithName.
func (p *Problem) Name() string { return p.name }

// Root returns the model tree.
func (p *Problem) Root() *system.Group { return p.root }

// Model returns the set-up model, or nil before Setup.
func (p *Problem) Model() *system.Model {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.model
}

// Setup validates the tree, resolves every connection and freezes it. The
// returned diagnostics are non-fatal findings.
func (p *Problem) Setup(ctx context.Context) ([]system.Diagnostic, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ctx = ctxlog.With(ctx, "problem", p.id)
	logger := ctxlog.FromContext(ctx)

	if p.model != nil {
		return nil, &mdaoerr.AlreadySetUpError{Op: "set up problem " + p.id}
	}

	opts := solver.Defaults()
	opts.Owner = p.id
	opts.StrictCycles = p.strict
	if p.parallel {
		opts.DefaultNonlinear = func() system.NonlinearSolver {
			o := solver.DefaultRunOnceOptions()
			o.Parallel = true
			s, _ := solver.NewRunOnce(o)
			return s
		}
	}

	model, err := system.Setup(ctx, p.root, opts)
	if err != nil {
		return nil, err
	}
	p.model = model

	meta := p.metadata()
	var result *multierror.Error
	for _, r := range p.recorders {
		if err := r.Startup(meta); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		p.model.Release()
		p.model = nil
		return nil, fmt.Errorf("starting recorders: %w", err)
	}

	logger.Info("Problem set up.", "name", p.name, "vars", len(model.Vars()), "unknowns", model.Size(), "diagnostics", len(model.Diagnostics()))
	return model.Diagnostics(), nil
}

// Run performs one nonlinear solve of the root and records the outcome. On
// a convergence failure the result is returned along with the error and
// the problem stays usable.
func (p *Problem) Run(ctx context.Context) (system.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ctx = ctxlog.With(ctx, "problem", p.id)
	logger := ctxlog.FromContext(ctx)

	if err := p.ready(); err != nil {
		return system.Result{}, err
	}

	nl := p.root.NonlinearSolver()
	logger.Info("Run started.", "solver", nl.Name())
	res, runErr := nl.SolveNonlinear(ctx, p.root)
	p.iteration++

	recErr := p.record(ctx, runErr)
	if runErr != nil {
		logger.Error("Run failed.", "state", res.State, "iterations", res.Iterations, "error", runErr)
	} else {
		logger.Info("Run finished.", "state", res.State, "iterations", res.Iterations, "norm", res.Norm)
	}

	switch {
	case recErr == nil:
		return res, runErr
	case runErr == nil:
		return res, recErr
	default:
		return res, multierror.Append(runErr, recErr)
	}
}

// CalcGradient computes d(of)/d(wrt) at the current point.
func (p *Problem) CalcGradient(ctx context.Context, of, wrt []string, mode system.TotalsMode) (*system.Totals, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ready(); err != nil {
		return nil, err
	}
	totals, err := system.ComputeTotals(ctx, p.root, of, wrt, mode)
	if err != nil {
		return nil, err
	}
	ctxlog.FromContext(ctx).Info("Total derivatives computed.",
		"problem", p.id, "mode", totals.Mode, "of", strings.Join(of, ","), "wrt", strings.Join(wrt, ","))
	return totals, nil
}

// CheckPartials compares every analytic Jacobian block in the tree with a
// forward-difference approximation at the current point.
func (p *Problem) CheckPartials(ctx context.Context) ([]system.PartialCheck, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ready(); err != nil {
		return nil, err
	}
	if err := p.root.ApplyNonlinear(ctx); err != nil {
		return nil, err
	}

	var checks []system.PartialCheck
	for _, c := range p.model.Components() {
		if !c.HasDerivatives() {
			continue
		}
		cc, err := c.CheckPartials(ctx)
		if err != nil {
			return nil, err
		}
		checks = append(checks, cc...)
	}
	return checks, nil
}

// Close releases the tree so it can be set up by another problem and
// closes every recorder.
func (p *Problem) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.model != nil {
		p.model.Release()
		p.model = nil
	}

	var result *multierror.Error
	for _, r := range p.recorders {
		if err := r.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	p.recorders = nil
	return result.ErrorOrNil()
}

func (p *Problem) ready() error {
	if p.model == nil {
		return fmt.Errorf("problem %s: %w", p.id, mdaoerr.ErrNotSetUp)
	}
	return nil
}
