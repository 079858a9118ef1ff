package solver

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/vk/mdaogrid/internal/mdaoerr"
	"github.com/vk/mdaogrid/internal/system"
)

// optionChecks collects option violations into one ErrInvalidOption.
type optionChecks struct {
	solver string
	errs   *multierror.Error
}

func (c *optionChecks) require(ok bool, format string, args ...any) {
	if !ok {
		c.errs = multierror.Append(c.errs, fmt.Errorf(format, args...))
	}
}

func (c *optionChecks) tolerance(name string, v float64) {
	c.require(v >= 0, "%s must not be negative, got %g", name, v)
}

func (c *optionChecks) maxIter(v int) {
	c.require(v >= 1, "maxiter must be at least 1, got %d", v)
}

func (c *optionChecks) err() error {
	if c.errs == nil {
		return nil
	}
	c.errs.ErrorFormat = func(es []error) string {
		points := make([]string, len(es))
		for i, err := range es {
			points[i] = "- " + err.Error()
		}
		return fmt.Sprintf("%s options validation failed:\n%s", c.solver, strings.Join(points, "\n"))
	}
	return fmt.Errorf("%w: %w", mdaoerr.ErrInvalidOption, c.errs)
}

func parseFallback(s string) (system.Fallback, error) {
	switch s {
	case "", "fd":
		return system.FallbackFD, nil
	case "zero":
		return system.FallbackZero, nil
	}
	return system.FallbackFD, fmt.Errorf("fallback must be \"fd\" or \"zero\", got %q", s)
}

// Decoder fills an options struct that already holds the defaults.
type Decoder func(target any) error

// NewNonlinear builds a nonlinear solver by type name. decode may be nil to
// keep the defaults.
func NewNonlinear(kind string, decode Decoder) (system.NonlinearSolver, error) {
	switch kind {
	case "run_once":
		opts := DefaultRunOnceOptions()
		if err := decodeInto(decode, &opts); err != nil {
			return nil, err
		}
		s, err := NewRunOnce(opts)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "nl_gauss_seidel":
		opts := DefaultNLGaussSeidelOptions()
		if err := decodeInto(decode, &opts); err != nil {
			return nil, err
		}
		s, err := NewNLGaussSeidel(opts)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "newton":
		opts := DefaultNewtonOptions()
		if err := decodeInto(decode, &opts); err != nil {
			return nil, err
		}
		s, err := NewNewton(opts)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("%w: unknown nonlinear solver type %q", mdaoerr.ErrInvalidOption, kind)
}

// NewLinear builds a linear solver by type name.
func NewLinear(kind string, decode Decoder) (system.LinearSolver, error) {
	switch kind {
	case "gmres":
		opts := DefaultGMRESOptions()
		if err := decodeInto(decode, &opts); err != nil {
			return nil, err
		}
		s, err := NewGMRES(opts)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "ln_gauss_seidel":
		opts := DefaultLinearGaussSeidelOptions()
		if err := decodeInto(decode, &opts); err != nil {
			return nil, err
		}
		s, err := NewLinearGaussSeidel(opts)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "direct":
		opts := DefaultDirectOptions()
		if err := decodeInto(decode, &opts); err != nil {
			return nil, err
		}
		s, err := NewDirect(opts)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("%w: unknown linear solver type %q", mdaoerr.ErrInvalidOption, kind)
}

func decodeInto(decode Decoder, target any) error {
	if decode == nil {
		return nil
	}
	if err := decode(target); err != nil {
		return fmt.Errorf("%w: %w", mdaoerr.ErrInvalidOption, err)
	}
	return nil
}

// Defaults returns the solvers installed on groups that have none.
func Defaults() system.SetupOptions {
	return system.SetupOptions{
		DefaultNonlinear: func() system.NonlinearSolver {
			s, _ := NewRunOnce(DefaultRunOnceOptions())
			return s
		},
		DefaultLinear: func() system.LinearSolver {
			s, _ := NewGMRES(DefaultGMRESOptions())
			return s
		},
	}
}
