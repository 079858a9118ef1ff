package solver

import (
	"context"
	"errors"
	"math"

	"github.com/vk/mdaogrid/internal/ctxlog"
	"github.com/vk/mdaogrid/internal/mdaoerr"
	"github.com/vk/mdaogrid/internal/system"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// GMRESOptions configures GMRES.
type GMRESOptions struct {
	Atol    float64 `mdao:"atol,optional"`
	MaxIter int     `mdao:"maxiter,optional"`
	Restart int     `mdao:"restart,optional"`
	// Fallback is "fd" or "zero" for components without derivatives.
	Fallback string `mdao:"fallback,optional"`
}

// DefaultGMRESOptions returns the defaults.
func DefaultGMRESOptions() GMRESOptions {
	return GMRESOptions{Atol: 1e-12, MaxIter: 1000, Restart: 20, Fallback: "fd"}
}

// GMRES is a restarted, matrix-free GMRES over a block of the operator.
type GMRES struct {
	opts     GMRESOptions
	fallback system.Fallback
}

// NewGMRES validates opts and builds the solver.
func NewGMRES(opts GMRESOptions) (*GMRES, error) {
	c := &optionChecks{solver: "gmres"}
	c.tolerance("atol", opts.Atol)
	c.maxIter(opts.MaxIter)
	c.require(opts.Restart >= 1, "restart must be at least 1, got %d", opts.Restart)
	fb, err := parseFallback(opts.Fallback)
	c.require(err == nil, "%v", err)
	if err := c.err(); err != nil {
		return nil, err
	}
	return &GMRES{opts: opts, fallback: fb}, nil
}

func (s *GMRES) Name() string              { return "gmres" }
func (s *GMRES) Fallback() system.Fallback { return s.fallback }

// Options returns the solver's configuration.
func (s *GMRES) Options() GMRESOptions { return s.opts }

func (s *GMRES) SolveLinear(ctx context.Context, b *system.Block, rhs []float64, dir system.Direction) ([]float64, system.Result, error) {
	logger := ctxlog.FromContext(ctx)
	n := b.Size()
	x := make([]float64, n)
	res := system.Result{State: system.Converging}
	if n == 0 {
		res.State = system.Converged
		return x, res, nil
	}

	r := make([]float64, n)
	w := make([]float64, n)
	m := min(s.opts.Restart, n)

	for res.Iterations < s.opts.MaxIter {
		// r = rhs - A·x
		if err := b.Apply(ctx, r, x, dir); err != nil {
			res.State = system.Failed
			return nil, res, err
		}
		floats.SubTo(r, rhs, r)
		beta := floats.Norm(r, 2)
		if res.Iterations == 0 {
			res.Norm0 = beta
		}
		res.Norm = beta
		if beta < s.opts.Atol {
			res.State = system.Converged
			return x, res, nil
		}

		basis := make([][]float64, 1, m+1)
		basis[0] = floats.ScaleTo(make([]float64, n), 1/beta, r)
		h := mat.NewDense(m+1, m, nil)
		cs := make([]float64, m)
		sn := make([]float64, m)
		g := make([]float64, m+1)
		g[0] = beta

		k := 0
		for k < m && res.Iterations < s.opts.MaxIter {
			res.Iterations++
			if err := b.Apply(ctx, w, basis[k], dir); err != nil {
				res.State = system.Failed
				return nil, res, err
			}
			for i := 0; i <= k; i++ {
				hik := floats.Dot(w, basis[i])
				h.Set(i, k, hik)
				floats.AddScaled(w, -hik, basis[i])
			}
			hnext := floats.Norm(w, 2)
			h.Set(k+1, k, hnext)

			for i := range k {
				a, c := h.At(i, k), h.At(i+1, k)
				h.Set(i, k, cs[i]*a+sn[i]*c)
				h.Set(i+1, k, -sn[i]*a+cs[i]*c)
			}
			denom := math.Hypot(h.At(k, k), hnext)
			if denom == 0 {
				cs[k], sn[k] = 1, 0
			} else {
				cs[k], sn[k] = h.At(k, k)/denom, hnext/denom
			}
			h.Set(k, k, denom)
			h.Set(k+1, k, 0)
			g[k+1] = -sn[k] * g[k]
			g[k] = cs[k] * g[k]
			res.Norm = math.Abs(g[k+1])
			k++

			if res.Norm < s.opts.Atol || hnext == 0 {
				break
			}
			basis = append(basis, floats.ScaleTo(make([]float64, n), 1/hnext, w))
		}

		if err := s.update(x, h, g, basis, k); err != nil {
			res.State = system.Failed
			return nil, res, err
		}
		logger.Debug("GMRES cycle finished.", "system", b.System().Pathname(), "iterations", res.Iterations, "norm", res.Norm)
		if res.Norm < s.opts.Atol {
			res.State = system.Converged
			return x, res, nil
		}
	}

	res.State = system.Failed
	return nil, res, &mdaoerr.ConvergenceError{Solver: s.Name(), System: b.System().Pathname(), Iterations: res.Iterations, Norm: res.Norm, Linear: true}
}

// update adds basis·y to x, where y solves the leading k×k triangle of h
// against g.
func (s *GMRES) update(x []float64, h *mat.Dense, g []float64, basis [][]float64, k int) error {
	if k == 0 {
		return nil
	}
	tri := mat.NewTriDense(k, mat.Upper, nil)
	for i := range k {
		for j := i; j < k; j++ {
			tri.SetTri(i, j, h.At(i, j))
		}
	}
	var y mat.VecDense
	if err := y.SolveVec(tri, mat.NewVecDense(k, g[:k])); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return err
		}
	}
	for j := range k {
		floats.AddScaled(x, y.AtVec(j), basis[j])
	}
	return nil
}
