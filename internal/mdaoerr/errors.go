// Package mdaoerr holds the error taxonomy shared by the model tree, the
// setup phases and the solvers. Every typed error unwraps to one of the
// sentinels so callers can match with errors.Is.
package mdaoerr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vk/mdaogrid/internal/varpath"
)

// Structural and runtime errors.
var (
	ErrDuplicateName      = errors.New("mdao: duplicate name")
	ErrUnknownVariable    = errors.New("mdao: unknown variable")
	ErrShapeMismatch      = errors.New("mdao: shape mismatch")
	ErrMultipleSources    = errors.New("mdao: multiple sources")
	ErrPromotionConflict  = errors.New("mdao: promotion conflict")
	ErrAlreadySetUp       = errors.New("mdao: already set up")
	ErrIncompleteUpdate   = errors.New("mdao: incomplete update")
	ErrConvergence        = errors.New("mdao: convergence failure")
	ErrOwnershipViolation = errors.New("mdao: ownership violation")
)

// Supporting errors.
var (
	ErrInvalidName       = varpath.ErrInvalidName
	ErrNotSetUp          = errors.New("mdao: problem has not been set up")
	ErrReadOnly          = errors.New("mdao: variable is read-only")
	ErrNonNumeric        = errors.New("mdao: value is not numeric")
	ErrDerivedResidual   = errors.New("mdao: residuals are derived from unknowns")
	ErrNotDifferentiable = errors.New("mdao: variable is passed by object")
	ErrConnectedParam    = errors.New("mdao: param is driven by a connection")
	ErrCycle             = errors.New("mdao: cycle under single-pass solver")
	ErrInvalidOption     = errors.New("mdao: invalid option")
)

// DuplicateNameError reports a variable or child name declared twice in one scope.
type DuplicateNameError struct {
	Scope string
	Name  string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("%s: %q already exists in %s", ErrDuplicateName, e.Name, scopeName(e.Scope))
}

func (e *DuplicateNameError) Unwrap() error { return ErrDuplicateName }

// UnknownVariableError reports a path that does not resolve in a scope.
type UnknownVariableError struct {
	Scope  string
	Name   string
	Reason string
}

func (e *UnknownVariableError) Error() string {
	msg := fmt.Sprintf("%s: %q in %s", ErrUnknownVariable, e.Name, scopeName(e.Scope))
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *UnknownVariableError) Unwrap() error { return ErrUnknownVariable }

// ShapeMismatchError reports incompatible ends of a connection or a value of
// the wrong size. Mode is set when the data-passing modes differ and
// TargetIndexed when the target side carried an index selection.
type ShapeMismatchError struct {
	Source        string
	Target        string
	SourceShape   []int
	TargetShape   []int
	Mode          bool
	TargetIndexed bool
	Detail        string
}

func (e *ShapeMismatchError) Error() string {
	switch {
	case e.Mode:
		return fmt.Sprintf("%s: %q and %q differ in data-passing mode", ErrShapeMismatch, e.Source, e.Target)
	case e.TargetIndexed:
		return fmt.Sprintf("%s: target %q may not select indices", ErrShapeMismatch, e.Target)
	case e.Detail != "":
		return fmt.Sprintf("%s: %s", ErrShapeMismatch, e.Detail)
	default:
		return fmt.Sprintf("%s: %q%v cannot feed %q%v", ErrShapeMismatch, e.Source, e.SourceShape, e.Target, e.TargetShape)
	}
}

func (e *ShapeMismatchError) Unwrap() error { return ErrShapeMismatch }

// MultipleSourcesError reports a target with more than one inbound connection.
type MultipleSourcesError struct {
	Target  string
	Sources []string
}

func (e *MultipleSourcesError) Error() string {
	return fmt.Sprintf("%s: %q is connected from %s", ErrMultipleSources, e.Target, strings.Join(e.Sources, ", "))
}

func (e *MultipleSourcesError) Unwrap() error { return ErrMultipleSources }

// PromotionConflictError reports variables promoted to the same name that
// cannot be merged.
type PromotionConflictError struct {
	Scope  string
	Name   string
	Vars   []string
	Reason string
}

func (e *PromotionConflictError) Error() string {
	return fmt.Sprintf("%s: %q in %s (%s): %s", ErrPromotionConflict, e.Name, scopeName(e.Scope), strings.Join(e.Vars, ", "), e.Reason)
}

func (e *PromotionConflictError) Unwrap() error { return ErrPromotionConflict }

// AlreadySetUpError reports a structural change attempted after setup.
type AlreadySetUpError struct {
	Op string
}

func (e *AlreadySetUpError) Error() string {
	return fmt.Sprintf("%s: cannot %s", ErrAlreadySetUp, e.Op)
}

func (e *AlreadySetUpError) Unwrap() error { return ErrAlreadySetUp }

// IncompleteUpdateError reports declared outputs that a component did not write.
type IncompleteUpdateError struct {
	Component string
	Missing   []string
}

func (e *IncompleteUpdateError) Error() string {
	return fmt.Sprintf("%s: %s did not write %s", ErrIncompleteUpdate, e.Component, strings.Join(e.Missing, ", "))
}

func (e *IncompleteUpdateError) Unwrap() error { return ErrIncompleteUpdate }

// ConvergenceError carries the state of an iterative solve that stopped
// without meeting its tolerance.
type ConvergenceError struct {
	Solver     string
	System     string
	Iterations int
	Norm       float64
	Linear     bool
}

func (e *ConvergenceError) Error() string {
	kind := "nonlinear"
	if e.Linear {
		kind = "linear"
	}
	return fmt.Sprintf("%s: %s solver %s on %s stopped after %d iterations with residual norm %g",
		ErrConvergence, kind, e.Solver, scopeName(e.System), e.Iterations, e.Norm)
}

func (e *ConvergenceError) Unwrap() error { return ErrConvergence }

// OwnershipViolationError reports a system attached to a second parent or problem.
type OwnershipViolationError struct {
	System string
	Owner  string
}

func (e *OwnershipViolationError) Error() string {
	return fmt.Sprintf("%s: %s already belongs to %s", ErrOwnershipViolation, scopeName(e.System), e.Owner)
}

func (e *OwnershipViolationError) Unwrap() error { return ErrOwnershipViolation }

// CycleError reports a feedback loop among children run by a single-pass solver.
type CycleError struct {
	Group    string
	Children []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: %s has a cycle through %s", ErrCycle, scopeName(e.Group), strings.Join(e.Children, ", "))
}

func (e *CycleError) Unwrap() error { return ErrCycle }

func scopeName(scope string) string {
	if scope == "" {
		return "<root>"
	}
	return scope
}
