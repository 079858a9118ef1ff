// Package driver exposes a problem to an optimizer: design variables,
// objectives and constraints in scaled units, and their scaled gradient.
package driver

import (
	"context"
	"fmt"
	"slices"

	"github.com/hashicorp/go-multierror"
	"github.com/vk/mdaogrid/internal/ctxlog"
	"github.com/vk/mdaogrid/internal/mdaoerr"
	"github.com/vk/mdaogrid/internal/problem"
	"github.com/vk/mdaogrid/internal/system"
)

// Unbounded is the magnitude used for a missing bound.
const Unbounded = 1e99

// Scaling maps a model value v to (v + Adder) * Scaler. A zero Scaler is
// treated as 1.
type Scaling struct {
	Adder  float64
	Scaler float64
}

func (s Scaling) scaler() float64 {
	if s.Scaler == 0 {
		return 1
	}
	return s.Scaler
}

func (s Scaling) apply(v float64) float64   { return (v + s.Adder) * s.scaler() }
func (s Scaling) unapply(v float64) float64 { return v/s.scaler() - s.Adder }

// Bounds configures a design variable. Lower and Upper are in model units;
// nil means unbounded. Indices selects entries of an array variable.
type Bounds struct {
	Lower, Upper *float64
	Scaling
	Indices []int
}

// Constraint configures a response. Equals makes it an equality constraint
// and excludes Lower and Upper.
type Constraint struct {
	Lower, Upper, Equals *float64
	Scaling
}

// Float returns a pointer to v, for bounds.
func Float(v float64) *float64 { return &v }

type desVar struct {
	name    string
	bounds  Bounds
	indices []int
	size    int
}

type response struct {
	name       string
	scaling    Scaling
	constraint Constraint
}

// Driver runs a single analysis per call and reports scaled quantities.
type Driver struct {
	prob        *problem.Problem
	desVars     []*desVar
	objectives  []*response
	constraints []*response
	names       map[string]string
}

// New creates an empty driver.
func New() *Driver {
	return &Driver{names: make(map[string]string)}
}

func (d *Driver) claimName(name, role string) error {
	if prev, ok := d.names[name]; ok {
		return &mdaoerr.DuplicateNameError{Scope: "driver " + prev + "s", Name: name}
	}
	d.names[name] = role
	return nil
}

// AddDesVar registers a design variable.
func (d *Driver) AddDesVar(name string, b Bounds) error {
	if b.Lower != nil && b.Upper != nil && *b.Lower > *b.Upper {
		return fmt.Errorf("%w: design variable %q has lower %g above upper %g", mdaoerr.ErrInvalidOption, name, *b.Lower, *b.Upper)
	}
	if err := d.claimName(name, "design variable"); err != nil {
		return err
	}
	d.desVars = append(d.desVars, &desVar{name: name, bounds: b, indices: slices.Clone(b.Indices)})
	return nil
}

// AddObjective registers an objective.
func (d *Driver) AddObjective(name string, s Scaling) error {
	if err := d.claimName(name, "objective"); err != nil {
		return err
	}
	d.objectives = append(d.objectives, &response{name: name, scaling: s})
	return nil
}

// AddConstraint registers a constraint.
func (d *Driver) AddConstraint(name string, c Constraint) error {
	if c.Equals != nil && (c.Lower != nil || c.Upper != nil) {
		return fmt.Errorf("%w: constraint %q sets equals together with a bound", mdaoerr.ErrInvalidOption, name)
	}
	if err := d.claimName(name, "constraint"); err != nil {
		return err
	}
	d.constraints = append(d.constraints, &response{name: name, scaling: c.Scaling, constraint: c})
	return nil
}

// Attach validates every registered name against a set-up problem.
func (d *Driver) Attach(p *problem.Problem) error {
	model := p.Model()
	if model == nil {
		return fmt.Errorf("attaching driver: %w", mdaoerr.ErrNotSetUp)
	}

	var result *multierror.Error
	for _, dv := range d.desVars {
		vals, err := p.Get(dv.name)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("design variable %q: %w", dv.name, err))
			continue
		}
		dv.size = len(vals)
		for _, i := range dv.indices {
			if i < 0 || i >= dv.size {
				result = multierror.Append(result, &mdaoerr.ShapeMismatchError{
					Target: dv.name,
					Detail: fmt.Sprintf("design variable index %d out of range for size %d", i, dv.size),
				})
			}
		}
	}
	for _, r := range slices.Concat(d.objectives, d.constraints) {
		if _, err := p.Get(r.name); err != nil {
			result = multierror.Append(result, fmt.Errorf("response %q: %w", r.name, err))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return err
	}
	d.prob = p
	return nil
}

func (d *Driver) attached() error {
	if d.prob == nil {
		return fmt.Errorf("driver is not attached: %w", mdaoerr.ErrNotSetUp)
	}
	return nil
}

// selected returns the entries of a design variable the driver controls.
func (dv *desVar) selected() []int {
	if len(dv.indices) > 0 {
		return dv.indices
	}
	idx := make([]int, dv.size)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// ScaledBounds returns the scaled lower and upper bound of a design
// variable, with missing bounds at ±Unbounded before scaling.
func (d *Driver) ScaledBounds(name string) (lower, upper float64, err error) {
	for _, dv := range d.desVars {
		if dv.name == name {
			lo, hi := -Unbounded, Unbounded
			if dv.bounds.Lower != nil {
				lo = *dv.bounds.Lower
			}
			if dv.bounds.Upper != nil {
				hi = *dv.bounds.Upper
			}
			lo, hi = dv.bounds.apply(lo), dv.bounds.apply(hi)
			if lo > hi {
				lo, hi = hi, lo
			}
			return lo, hi, nil
		}
	}
	return 0, 0, &mdaoerr.UnknownVariableError{Scope: "driver", Name: name, Reason: "not a design variable"}
}

// DesVars returns the scaled values of every design variable.
func (d *Driver) DesVars() (map[string][]float64, error) {
	if err := d.attached(); err != nil {
		return nil, err
	}
	out := make(map[string][]float64, len(d.desVars))
	for _, dv := range d.desVars {
		vals, err := d.prob.Get(dv.name)
		if err != nil {
			return nil, err
		}
		scaled := make([]float64, 0, len(vals))
		for _, i := range dv.selected() {
			scaled = append(scaled, dv.bounds.apply(vals[i]))
		}
		out[dv.name] = scaled
	}
	return out, nil
}

// SetDesVars takes scaled values, unscales them and writes them to the
// model. Every value is checked against its bounds before anything is
// written.
func (d *Driver) SetDesVars(values map[string][]float64) error {
	if err := d.attached(); err != nil {
		return err
	}

	type write struct {
		name string
		vals []float64
	}
	var (
		writes []write
		result *multierror.Error
	)
	for _, dv := range d.desVars {
		scaled, ok := values[dv.name]
		if !ok {
			continue
		}
		sel := dv.selected()
		if len(scaled) != len(sel) {
			result = multierror.Append(result, &mdaoerr.ShapeMismatchError{
				Target: dv.name,
				Detail: fmt.Sprintf("design variable %q takes %d values, got %d", dv.name, len(sel), len(scaled)),
			})
			continue
		}
		current, err := d.prob.Get(dv.name)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		for k, i := range sel {
			v := dv.bounds.unapply(scaled[k])
			if (dv.bounds.Lower != nil && v < *dv.bounds.Lower) || (dv.bounds.Upper != nil && v > *dv.bounds.Upper) {
				result = multierror.Append(result, fmt.Errorf("%w: design variable %q entry %d = %g is out of bounds", mdaoerr.ErrInvalidOption, dv.name, i, v))
			}
			current[i] = v
		}
		writes = append(writes, write{name: dv.name, vals: current})
	}
	for name := range values {
		if d.names[name] != "design variable" {
			result = multierror.Append(result, &mdaoerr.UnknownVariableError{Scope: "driver", Name: name, Reason: "not a design variable"})
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return err
	}

	for _, w := range writes {
		if err := d.prob.Set(w.name, w.vals); err != nil {
			return err
		}
	}
	return nil
}

// Run performs a single analysis.
func (d *Driver) Run(ctx context.Context) (system.Result, error) {
	if err := d.attached(); err != nil {
		return system.Result{}, err
	}
	ctxlog.FromContext(ctx).Debug("Driver run started.", "desvars", len(d.desVars), "objectives", len(d.objectives), "constraints", len(d.constraints))
	return d.prob.Run(ctx)
}

// Objectives returns the scaled objective values.
func (d *Driver) Objectives() (map[string][]float64, error) {
	return d.scaledResponses(d.objectives)
}

// Constraints returns the scaled constraint values.
func (d *Driver) Constraints() (map[string][]float64, error) {
	return d.scaledResponses(d.constraints)
}

// ConstraintMeta returns the configuration of a constraint.
func (d *Driver) ConstraintMeta(name string) (Constraint, bool) {
	for _, r := range d.constraints {
		if r.name == name {
			return r.constraint, true
		}
	}
	return Constraint{}, false
}

func (d *Driver) scaledResponses(rs []*response) (map[string][]float64, error) {
	if err := d.attached(); err != nil {
		return nil, err
	}
	out := make(map[string][]float64, len(rs))
	for _, r := range rs {
		vals, err := d.prob.Get(r.name)
		if err != nil {
			return nil, err
		}
		for i, v := range vals {
			vals[i] = r.scaling.apply(v)
		}
		out[r.name] = vals
	}
	return out, nil
}
