package system

import (
	"context"
	"fmt"
	"slices"

	"github.com/vk/mdaogrid/internal/jacobian"
	"github.com/vk/mdaogrid/internal/vars"
	"gonum.org/v1/gonum/mat"
)

// Block is the restriction of the global linear operator A = dF/du to the
// contiguous range of one system. Off-block couplings are treated as zero.
type Block struct {
	model  *Model
	sys    System
	lo, hi int
}

// Block returns the group's block of the linear operator.
func (g *Group) Block() *Block {
	return &Block{model: g.model, sys: g, lo: g.lo, hi: g.hi}
}

// Size is the number of rows, and columns, of the block.
func (b *Block) Size() int { return b.hi - b.lo }

// System returns the system the block covers.
func (b *Block) System() System { return b.sys }

// Group returns the covered group, or nil for a component block.
func (b *Block) Group() *Group {
	g, _ := b.sys.(*Group)
	return g
}

// Children returns the blocks of a group's children in execution order.
// Component blocks have none.
func (b *Block) Children() []*Block {
	g := b.Group()
	if g == nil {
		return nil
	}
	out := make([]*Block, len(g.children))
	for i, c := range g.children {
		cb := c.sys.base()
		out[i] = &Block{model: b.model, sys: c.sys, lo: cb.lo, hi: cb.hi}
	}
	return out
}

// Offset is the position of a sub-block inside this block.
func (b *Block) Offset(sub *Block) int { return sub.lo - b.lo }

func (b *Block) components() []*Component {
	switch s := b.sys.(type) {
	case *Component:
		return []*Component{s}
	case *Group:
		return s.comps
	}
	return nil
}

// Apply computes dst = A_bb·x, or A_bbᵀ·x in reverse.
func (b *Block) Apply(ctx context.Context, dst, x []float64, dir Direction) error {
	if len(dst) != b.Size() || len(x) != b.Size() {
		return fmt.Errorf("block %s: vectors have %d and %d entries, want %d", displayPath(b.sys.Pathname()), len(dst), len(x), b.Size())
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	gx := make([]float64, b.model.size)
	copy(gx[b.lo:b.hi], x)
	gy := make([]float64, b.model.size)
	for _, c := range b.components() {
		c.applyLinear(b.model, gy, gx, dir)
	}
	copy(dst, gy[b.lo:b.hi])
	return nil
}

// Dense assembles the block by applying it to unit vectors. An empty block
// yields an empty 0×0 matrix.
func (b *Block) Dense(ctx context.Context) (*mat.Dense, error) {
	n := b.Size()
	if n == 0 {
		return &mat.Dense{}, nil
	}
	out := mat.NewDense(n, n, nil)
	unit := make([]float64, n)
	col := make([]float64, n)
	for j := range n {
		unit[j] = 1
		if err := b.Apply(ctx, col, unit, Forward); err != nil {
			return nil, err
		}
		out.SetCol(j, col)
		unit[j] = 0
	}
	return out, nil
}

// Solve solves the block system. Group blocks use the group's linear solver;
// component blocks are solved directly.
func (b *Block) Solve(ctx context.Context, rhs []float64, dir Direction) ([]float64, Result, error) {
	switch s := b.sys.(type) {
	case *Group:
		return s.ln.SolveLinear(ctx, b, rhs, dir)
	case *Component:
		x, err := b.solveComponent(ctx, s, rhs, dir)
		if err != nil {
			return nil, Result{State: Failed}, err
		}
		return x, Result{State: Converged, Iterations: 1}, nil
	}
	return nil, Result{State: Failed}, fmt.Errorf("unsupported system type %T", b.sys)
}

// solveComponent inverts a component's diagonal block: the identity for a
// purely explicit component, an LU solve when states couple its rows.
func (b *Block) solveComponent(ctx context.Context, c *Component, rhs []float64, dir Direction) ([]float64, error) {
	hasState := slices.ContainsFunc(c.reg.Unknowns(), func(u *vars.Var) bool { return u.State })
	if !hasState {
		return slices.Clone(rhs), nil
	}
	a, err := b.Dense(ctx)
	if err != nil {
		return nil, err
	}
	x, err := jacobian.SolveDense(a, rhs, dir == Reverse)
	if err != nil {
		return nil, fmt.Errorf("component %s: %w", displayPath(c.pathname), err)
	}
	return x, nil
}

// applyLinear accumulates the component's rows of A·x into dst, or its
// contribution to Aᵀ·x in reverse. Both vectors span the whole model.
func (c *Component) applyLinear(m *Model, dst, x []float64, dir Direction) {
	for _, u := range c.reg.Unknowns() {
		if u.Mode != vars.ModeFlat || u.State {
			continue
		}
		off := c.infos[u.Name].Offset
		for k := range u.Size() {
			dst[off+k] += x[off+k]
		}
	}

	for _, key := range c.jacKeys {
		block := c.jac[key]
		of, wrt := c.infos[key.Of], c.infos[key.Wrt]
		sign := 1.0
		if !of.Var.State {
			sign = -1
		}

		var route *Route
		if !wrt.IsUnknown() {
			r, ok := m.routes[wrt]
			if !ok || r.Source.Offset < 0 {
				continue
			}
			route = r
		}

		rows := dst[of.Offset : of.Offset+of.Size()]
		if dir == Forward {
			var dw []float64
			if route != nil {
				dw = route.gather(x)
			} else {
				dw = x[wrt.Offset : wrt.Offset+wrt.Size()]
			}
			block.AddMulVec(rows, sign, dw, false)
			continue
		}

		adj := make([]float64, wrt.Size())
		block.AddMulVec(adj, sign, x[of.Offset:of.Offset+of.Size()], true)
		if route != nil {
			route.scatter(dst, adj)
			continue
		}
		for k, v := range adj {
			dst[wrt.Offset+k] += v
		}
	}
}
