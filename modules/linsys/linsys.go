package linsys

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/mdaogrid/internal/jacobian"
	"github.com/vk/mdaogrid/internal/system"
	"github.com/vk/mdaogrid/internal/vars"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// LinearSystem holds the state x of A·x = b. Its residual is R = A·x - b.
type LinearSystem struct {
	n int
}

// New builds a linear system component of size n. a and b are the initial
// params and default to the identity and ones.
func New(n int, a [][]float64, b []float64) (*system.Component, error) {
	if n < 1 {
		return nil, fmt.Errorf("linear system size must be at least 1, got %d", n)
	}
	if a == nil {
		a = make([][]float64, n)
		for i := range a {
			a[i] = make([]float64, n)
			a[i][i] = 1
		}
	}
	if b == nil {
		b = make([]float64, n)
		floats.AddConst(1, b)
	}

	comp := system.NewComponent(&LinearSystem{n: n})
	if err := comp.AddParam("A", a, vars.Meta{vars.MetaShape: []int{n, n}}); err != nil {
		return nil, fmt.Errorf("param A: %w", err)
	}
	if err := comp.AddParam("b", b, vars.Meta{vars.MetaShape: []int{n}}); err != nil {
		return nil, fmt.Errorf("param b: %w", err)
	}
	if err := comp.AddState("x", nil, vars.Meta{vars.MetaShape: []int{n}}); err != nil {
		return nil, fmt.Errorf("state x: %w", err)
	}
	return comp, nil
}

// UpdateValues solves for x and reports the residual of the incoming x.
func (s *LinearSystem) UpdateValues(_ context.Context, params, unknowns, resids *vars.View) error {
	a := mat.NewDense(s.n, s.n, params.Get("A"))
	b := params.Get("b")

	resids.Set("x", s.residual(a, unknowns.Get("x"), b))

	var lu mat.LU
	lu.Factorize(a)
	x := mat.NewVecDense(s.n, nil)
	if err := lu.SolveVecTo(x, false, mat.NewVecDense(s.n, b)); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return fmt.Errorf("solving A·x = b: %w", err)
		}
		return fmt.Errorf("solving A·x = b: matrix is singular to working precision")
	}
	unknowns.Set("x", mat.Vector(x))
	return nil
}

func (s *LinearSystem) residual(a *mat.Dense, x, b []float64) []float64 {
	r := mat.NewVecDense(s.n, nil)
	r.MulVec(a, mat.NewVecDense(s.n, x))
	out := r.RawVector().Data
	floats.Sub(out, b)
	return out
}

// UpdateDerivatives implements system.Linearizer: dR/dx = A, dR/dA holds x
// in each row's slice, and dR/db = -I applied without storage.
func (s *LinearSystem) UpdateDerivatives(_ context.Context, params, unknowns, _ *vars.View) (jacobian.Jacobian, error) {
	n := s.n
	x := unknowns.Get("x")

	dA := jacobian.NewSparse(n, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			dA.Set(i, i*n+j, x[j])
		}
	}
	negate := func(dst, v []float64) { floats.AddScaled(dst, -1, v) }

	return jacobian.Jacobian{
		{Of: "x", Wrt: "x"}: jacobian.NewDense(n, n, params.Get("A")),
		{Of: "x", Wrt: "A"}: dA,
		{Of: "x", Wrt: "b"}: &jacobian.Operator{Rows: n, Cols: n, Fwd: negate, Rev: negate},
	}, nil
}
