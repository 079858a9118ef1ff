package system

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/vk/mdaogrid/internal/ctxlog"
	"github.com/vk/mdaogrid/internal/jacobian"
	"github.com/vk/mdaogrid/internal/mdaoerr"
	"github.com/vk/mdaogrid/internal/vars"
	"gonum.org/v1/gonum/mat"
)

// fdStep is the forward-difference step relative to max(1, |x|).
const fdStep = 1e-6

// linearize refreshes the component's blocks at the current point.
func (c *Component) linearize(ctx context.Context, fallback Fallback) error {
	logger := ctxlog.FromContext(ctx)

	var (
		jac    jacobian.Jacobian
		err    error
		method string
	)
	switch {
	case c.HasDerivatives():
		jac, err = c.AnalyticJacobian(ctx)
		method = "analytic"
	case fallback == FallbackZero:
		jac = jacobian.Jacobian{}
		method = "zero"
	default:
		jac, err = c.FiniteDifference(ctx)
		method = "fd"
	}
	if err != nil {
		return err
	}

	c.setJacobian(jac)
	logger.Debug("Component linearized.", "component", c.pathname, "method", method, "blocks", len(jac))
	return nil
}

func (c *Component) setJacobian(jac jacobian.Jacobian) {
	keys := make([]jacobian.Key, 0, len(jac))
	for k := range jac {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b jacobian.Key) int {
		if n := strings.Compare(a.Of, b.Of); n != 0 {
			return n
		}
		return strings.Compare(a.Wrt, b.Wrt)
	})
	c.jac = jac
	c.jacKeys = keys
}

// AnalyticJacobian calls UpdateDerivatives with read-only views and
// validates the returned blocks.
func (c *Component) AnalyticJacobian(ctx context.Context) (jacobian.Jacobian, error) {
	lin, ok := c.impl.(Linearizer)
	if !ok {
		return nil, fmt.Errorf("component %s does not provide derivatives", displayPath(c.pathname))
	}

	p := vars.NewView(vars.KindParam, c.reg.Params(), true)
	u := vars.NewView(vars.KindUnknown, c.reg.Unknowns(), true)
	r := vars.NewView(vars.KindResidual, c.reg.Resids(), true)

	jac, err := lin.UpdateDerivatives(ctx, p, u, r)
	if err != nil {
		return nil, fmt.Errorf("component %s: %w", displayPath(c.pathname), err)
	}

	var result *multierror.Error
	result = multierror.Append(result, p.Err(), u.Err(), r.Err(), c.validateJacobian(jac))
	if err := result.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("component %s: %w", displayPath(c.pathname), err)
	}
	return jac, nil
}

func (c *Component) validateJacobian(jac jacobian.Jacobian) error {
	var result *multierror.Error
	for key, block := range jac {
		of, ok := c.reg.Lookup(key.Of)
		if !ok || of.Kind != vars.KindUnknown {
			result = multierror.Append(result, &mdaoerr.UnknownVariableError{
				Scope: c.pathname, Name: key.Of, Reason: "jacobian rows must be unknowns",
			})
			continue
		}
		wrt, ok := c.reg.Lookup(key.Wrt)
		if !ok {
			result = multierror.Append(result, &mdaoerr.UnknownVariableError{
				Scope: c.pathname, Name: key.Wrt, Reason: "jacobian column is not declared",
			})
			continue
		}
		if of.Mode == vars.ModeByObj || wrt.Mode == vars.ModeByObj {
			result = multierror.Append(result, fmt.Errorf("%w: jacobian block (%s, %s)", mdaoerr.ErrNotDifferentiable, key.Of, key.Wrt))
			continue
		}
		r, cols := block.Dims()
		if r != of.Size() || cols != wrt.Size() {
			result = multierror.Append(result, &mdaoerr.ShapeMismatchError{
				Source: key.Wrt,
				Target: key.Of,
				Detail: fmt.Sprintf("jacobian block (%s, %s) is %dx%d, want %dx%d", key.Of, key.Wrt, r, cols, of.Size(), wrt.Size()),
			})
		}
	}
	return result.ErrorOrNil()
}

// FiniteDifference approximates every block by perturbing each flat param
// and state one element at a time. Blocks that are identically zero are
// omitted.
func (c *Component) FiniteDifference(ctx context.Context) (jacobian.Jacobian, error) {
	unknowns := c.reg.Unknowns()
	base, err := c.evaluate(ctx)
	if err != nil {
		return nil, err
	}
	baseOut := base.outputs(unknowns)

	var inputs []*vars.Var
	for _, p := range c.reg.Params() {
		if p.Mode == vars.ModeFlat {
			inputs = append(inputs, p)
		}
	}
	for _, u := range unknowns {
		if u.State {
			inputs = append(inputs, u)
		}
	}

	jac := jacobian.Jacobian{}
	for _, w := range inputs {
		blocks := make(map[string]*mat.Dense)
		for name, vals := range baseOut {
			blocks[name] = mat.NewDense(len(vals), w.Size(), nil)
		}

		data := w.Data()
		for k := range data {
			orig := data[k]
			h := fdStep * math.Max(1, math.Abs(orig))
			data[k] = orig + h
			ev, err := c.evaluate(ctx)
			data[k] = orig
			if err != nil {
				return nil, err
			}
			for name, perturbed := range ev.outputs(unknowns) {
				ref := baseOut[name]
				for i := range perturbed {
					blocks[name].Set(i, k, (perturbed[i]-ref[i])/h)
				}
			}
		}

		for name, block := range blocks {
			if mat.Norm(block, math.Inf(1)) == 0 {
				continue
			}
			jac[jacobian.Key{Of: name, Wrt: w.Name}] = jacobian.FromMatrix(block)
		}
	}
	return jac, nil
}

// PartialCheck compares one analytic block against forward differences.
type PartialCheck struct {
	Component string
	Key       jacobian.Key
	Analytic  *mat.Dense
	FD        *mat.Dense
	AbsError  float64
	RelError  float64
}

// CheckPartials evaluates the analytic blocks and a finite-difference
// approximation at the current point. Keys present on either side are
// compared; a missing block counts as zeros.
func (c *Component) CheckPartials(ctx context.Context) ([]PartialCheck, error) {
	analytic, err := c.AnalyticJacobian(ctx)
	if err != nil {
		return nil, err
	}
	fd, err := c.FiniteDifference(ctx)
	if err != nil {
		return nil, err
	}

	keys := make(map[jacobian.Key]bool)
	for k := range analytic {
		keys[k] = true
	}
	for k := range fd {
		keys[k] = true
	}
	sorted := make([]jacobian.Key, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	slices.SortFunc(sorted, func(a, b jacobian.Key) int {
		if n := strings.Compare(a.Of, b.Of); n != 0 {
			return n
		}
		return strings.Compare(a.Wrt, b.Wrt)
	})

	checks := make([]PartialCheck, 0, len(sorted))
	for _, key := range sorted {
		a, f := c.denseBlock(analytic, key), c.denseBlock(fd, key)
		var diff mat.Dense
		diff.Sub(a, f)
		abs := mat.Norm(&diff, 2)
		rel := abs
		if ref := mat.Norm(f, 2); ref > 0 {
			rel = abs / ref
		}
		checks = append(checks, PartialCheck{
			Component: c.pathname,
			Key:       key,
			Analytic:  a,
			FD:        f,
			AbsError:  abs,
			RelError:  rel,
		})
	}
	return checks, nil
}

func (c *Component) denseBlock(jac jacobian.Jacobian, key jacobian.Key) *mat.Dense {
	if b, ok := jac[key]; ok {
		return jacobian.ToDense(b)
	}
	of, _ := c.reg.Lookup(key.Of)
	wrt, _ := c.reg.Lookup(key.Wrt)
	return mat.NewDense(of.Size(), wrt.Size(), nil)
}
