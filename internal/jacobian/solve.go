package jacobian

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// SolveDense solves a·x = rhs, or aᵀ·x = rhs when trans is set, with an LU
// factorization. An exactly singular matrix is an error; a poorly
// conditioned one is solved anyway.
func SolveDense(a mat.Matrix, rhs []float64, trans bool) ([]float64, error) {
	r, c := a.Dims()
	if r != c {
		return nil, fmt.Errorf("solve: matrix is %dx%d, want square", r, c)
	}
	if len(rhs) != r {
		return nil, fmt.Errorf("solve: rhs has %d entries, want %d", len(rhs), r)
	}
	if r == 0 {
		return nil, nil
	}

	var lu mat.LU
	lu.Factorize(a)
	var x mat.VecDense
	if err := lu.SolveVecTo(&x, trans, mat.NewVecDense(len(rhs), rhs)); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return nil, fmt.Errorf("solve: %w", err)
		}
	}
	out := make([]float64, r)
	for i := range out {
		out[i] = x.AtVec(i)
	}
	return out, nil
}
