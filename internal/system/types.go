package system

import (
	"context"
	"fmt"

	"github.com/vk/mdaogrid/internal/varpath"
)

// System is a node of the model tree: a Component or a Group.
type System interface {
	// Name is the local name given when the system was added to its parent.
	Name() string
	// Pathname is the dotted path from the root, empty for the root itself.
	Pathname() string

	base() *sysBase
}

// sysBase carries the state shared by components and groups.
type sysBase struct {
	name     string
	pathname string
	parent   *Group
	owner    string
	frozen   bool
	model    *Model
	// lo and hi bound the system's flat unknowns in the global vectors.
	lo, hi int
}

func (b *sysBase) Name() string     { return b.name }
func (b *sysBase) Pathname() string { return b.pathname }
func (b *sysBase) base() *sysBase   { return b }

// treePath derives the dotted path from the parent chain, so it is valid
// before setup assigns pathnames.
func (b *sysBase) treePath() string {
	if b.parent == nil {
		return ""
	}
	return varpath.Join(b.parent.treePath(), b.name)
}

func displayPath(path string) string {
	if path == "" {
		return "<root>"
	}
	return path
}

// Direction selects forward (A) or reverse (Aᵀ) application of the linear
// operator.
type Direction int

const (
	Forward Direction = iota
	Reverse
)

func (d Direction) String() string {
	if d == Reverse {
		return "rev"
	}
	return "fwd"
}

// SolveState is the state of a solver run.
type SolveState int

const (
	Idle SolveState = iota
	Converging
	Converged
	Failed
)

func (s SolveState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Converging:
		return "converging"
	case Converged:
		return "converged"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("SolveState(%d)", int(s))
	}
}

// Result summarizes a solver run.
type Result struct {
	State      SolveState
	Iterations int
	Norm       float64
	Norm0      float64
}

// NonlinearSolver converges the values of a group's children.
type NonlinearSolver interface {
	Name() string
	// Iterative reports whether the policy repeats sweeps until a tolerance
	// is met. Single-pass policies cannot resolve feedback cycles.
	Iterative() bool
	SolveNonlinear(ctx context.Context, g *Group) (Result, error)
}

// LinearSolver solves A x = rhs, or Aᵀ x = rhs in reverse, on a block of the
// global linear operator.
type LinearSolver interface {
	Name() string
	SolveLinear(ctx context.Context, b *Block, rhs []float64, dir Direction) ([]float64, Result, error)
}

// Fallback selects how components without analytic derivatives contribute
// to the linear system.
type Fallback int

const (
	// FallbackFD approximates the missing blocks by forward differences.
	FallbackFD Fallback = iota
	// FallbackZero contributes only the identity on explicit outputs.
	FallbackZero
)

func (f Fallback) String() string {
	if f == FallbackZero {
		return "zero"
	}
	return "fd"
}

// FallbackPolicy is implemented by linear solvers that choose a fallback.
type FallbackPolicy interface {
	Fallback() Fallback
}

// DiagnosticKind classifies non-fatal findings.
type DiagnosticKind int

const (
	// OutOfOrder marks a connection whose source runs after its target.
	OutOfOrder DiagnosticKind = iota
	// CycleUnderRunOnce marks a feedback cycle driven by a single-pass solver.
	CycleUnderRunOnce
	// NotDifferentiable marks a pass-by-object variable in a derivative query.
	NotDifferentiable
)

func (k DiagnosticKind) String() string {
	switch k {
	case OutOfOrder:
		return "out_of_order"
	case CycleUnderRunOnce:
		return "cycle_under_run_once"
	case NotDifferentiable:
		return "not_differentiable"
	default:
		return fmt.Sprintf("DiagnosticKind(%d)", int(k))
	}
}

// Diagnostic is a finding reported to the caller without failing the operation.
type Diagnostic struct {
	Kind     DiagnosticKind
	Group    string
	Source   string
	Target   string
	Children []string
	Message  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s", d.Kind, d.Message)
}
