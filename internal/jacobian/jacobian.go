package jacobian

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Key addresses a block by the variable being differentiated and the
// variable it is differentiated with respect to.
type Key struct {
	Of  string
	Wrt string
}

// Jacobian is the set of local blocks of one component.
type Jacobian map[Key]Block

// Block is a linear map from a wrt perturbation to an of perturbation.
type Block interface {
	Dims() (r, c int)
	// AddMulVec accumulates dst += alpha*B*x, or alpha*Bᵀ*x when trans is set.
	AddMulVec(dst []float64, alpha float64, x []float64, trans bool)
}

// ToDense materializes any block by applying it to unit vectors.
func ToDense(b Block) *mat.Dense {
	if d, ok := b.(*Dense); ok {
		return mat.DenseCopyOf(d.m)
	}
	r, c := b.Dims()
	out := mat.NewDense(r, c, nil)
	unit := make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		unit[j] = 1
		for i := range col {
			col[i] = 0
		}
		b.AddMulVec(col, 1, unit, false)
		out.SetCol(j, col)
		unit[j] = 0
	}
	return out
}

// Dense is a block stored as a gonum dense matrix.
type Dense struct {
	m *mat.Dense
}

// NewDense creates a dense block from row-major data.
func NewDense(r, c int, data []float64) *Dense {
	return &Dense{m: mat.NewDense(r, c, data)}
}

// Scalar creates a 1x1 block.
func Scalar(v float64) *Dense {
	return NewDense(1, 1, []float64{v})
}

// FromMatrix copies any gonum matrix into a dense block.
func FromMatrix(m mat.Matrix) *Dense {
	return &Dense{m: mat.DenseCopyOf(m)}
}

// Dims returns the block dimensions.
func (d *Dense) Dims() (int, int) { return d.m.Dims() }

// Matrix exposes the underlying matrix.
func (d *Dense) Matrix() *mat.Dense { return d.m }

// AddMulVec implements Block.
func (d *Dense) AddMulVec(dst []float64, alpha float64, x []float64, trans bool) {
	var m mat.Matrix = d.m
	if trans {
		m = d.m.T()
	}
	r, _ := m.Dims()
	var prod mat.VecDense
	prod.MulVec(m, mat.NewVecDense(len(x), x))
	for i := 0; i < r; i++ {
		dst[i] += alpha * prod.AtVec(i)
	}
}

// Entry is a single nonzero of a sparse block.
type Entry struct {
	Row, Col int
	Val      float64
}

// Sparse is a block in coordinate form. Repeated coordinates are summed.
type Sparse struct {
	rows, cols int
	entries    []Entry
}

// NewSparse creates an empty r x c sparse block.
func NewSparse(r, c int) *Sparse {
	return &Sparse{rows: r, cols: c}
}

// Identity returns an n x n sparse identity scaled by v.
func Identity(n int, v float64) *Sparse {
	s := NewSparse(n, n)
	for i := 0; i < n; i++ {
		s.Set(i, i, v)
	}
	return s
}

// Set adds a nonzero at (i, j).
func (s *Sparse) Set(i, j int, v float64) {
	if i < 0 || i >= s.rows || j < 0 || j >= s.cols {
		panic(mat.ErrIndexOutOfRange)
	}
	s.entries = append(s.entries, Entry{Row: i, Col: j, Val: v})
}

// Dims returns the block dimensions.
func (s *Sparse) Dims() (int, int) { return s.rows, s.cols }

// At implements mat.Matrix.
func (s *Sparse) At(i, j int) float64 {
	var sum float64
	for _, e := range s.entries {
		if e.Row == i && e.Col == j {
			sum += e.Val
		}
	}
	return sum
}

// T implements mat.Matrix.
func (s *Sparse) T() mat.Matrix { return mat.Transpose{Matrix: s} }

// NNZ returns the number of stored entries.
func (s *Sparse) NNZ() int { return len(s.entries) }

// AddMulVec implements Block.
func (s *Sparse) AddMulVec(dst []float64, alpha float64, x []float64, trans bool) {
	for _, e := range s.entries {
		if trans {
			dst[e.Col] += alpha * e.Val * x[e.Row]
		} else {
			dst[e.Row] += alpha * e.Val * x[e.Col]
		}
	}
}

// Operator is a matrix-free block. Fwd and Rev accumulate J*x and Jᵀ*x
// into dst.
type Operator struct {
	Rows, Cols int
	Fwd        func(dst, x []float64)
	Rev        func(dst, x []float64)
}

// Dims returns the block dimensions.
func (o *Operator) Dims() (int, int) { return o.Rows, o.Cols }

// AddMulVec implements Block.
func (o *Operator) AddMulVec(dst []float64, alpha float64, x []float64, trans bool) {
	n, apply := o.Rows, o.Fwd
	if trans {
		n, apply = o.Cols, o.Rev
	}
	tmp := make([]float64, n)
	apply(tmp, x)
	floats.AddScaled(dst, alpha, tmp)
}

var (
	_ Block      = (*Dense)(nil)
	_ Block      = (*Sparse)(nil)
	_ Block      = (*Operator)(nil)
	_ mat.Matrix = (*Sparse)(nil)
)
