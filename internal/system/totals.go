package system

import (
	"context"
	"fmt"

	"github.com/vk/mdaogrid/internal/ctxlog"
	"github.com/vk/mdaogrid/internal/mdaoerr"
	"github.com/vk/mdaogrid/internal/vars"
	"gonum.org/v1/gonum/mat"
)

// TotalsMode selects how total derivatives are propagated.
type TotalsMode int

const (
	// Auto picks Fwd when the wrt side is no larger than the of side.
	Auto TotalsMode = iota
	Fwd
	Rev
)

func (m TotalsMode) String() string {
	switch m {
	case Fwd:
		return "fwd"
	case Rev:
		return "rev"
	default:
		return "auto"
	}
}

// ParseTotalsMode reads "fwd", "rev" or "auto".
func ParseTotalsMode(s string) (TotalsMode, error) {
	switch s {
	case "fwd":
		return Fwd, nil
	case "rev":
		return Rev, nil
	case "auto", "":
		return Auto, nil
	}
	return Auto, fmt.Errorf("%w: derivative mode %q", mdaoerr.ErrInvalidOption, s)
}

// Totals holds d(of)/d(wrt) for every differentiable pair.
type Totals struct {
	Mode        TotalsMode
	J           map[string]map[string]*mat.Dense
	Diagnostics []Diagnostic
}

// At returns the block for one pair, or nil if it was omitted.
func (t *Totals) At(of, wrt string) *mat.Dense {
	return t.J[of][wrt]
}

// ofTerm reads one requested output from a global vector.
type ofTerm struct {
	name string
	size int
	// rows returns the output's entries of a global solution vector.
	rows func(x []float64) []float64
	// seed sets the adjoint seed for entry k.
	seed func(e []float64, k int)
}

// wrtTerm perturbs one requested input.
type wrtTerm struct {
	name string
	size int
	// rhs builds the forward right-hand side for entry k.
	rhs func(b []float64, k int)
	// read extracts the derivative wrt every entry from an adjoint.
	read func(lam []float64) []float64
}

// ComputeTotals linearizes the model at its current point and solves the
// linear system once per wrt entry (Fwd) or once per of entry (Rev).
func ComputeTotals(ctx context.Context, root *Group, of, wrt []string, mode TotalsMode) (*Totals, error) {
	if err := root.ready(); err != nil {
		return nil, err
	}
	logger := ctxlog.FromContext(ctx)
	m := root.model

	out := &Totals{J: make(map[string]map[string]*mat.Dense)}
	var ofs []ofTerm
	for _, name := range of {
		term, diag, err := m.ofTerm(name)
		if err != nil {
			return nil, err
		}
		if diag != nil {
			out.Diagnostics = append(out.Diagnostics, *diag)
			continue
		}
		ofs = append(ofs, term)
	}
	var wrts []wrtTerm
	for _, name := range wrt {
		term, diag, err := m.wrtTerm(name)
		if err != nil {
			return nil, err
		}
		if diag != nil {
			out.Diagnostics = append(out.Diagnostics, *diag)
			continue
		}
		wrts = append(wrts, term)
	}

	ofSize, wrtSize := 0, 0
	for _, t := range ofs {
		ofSize += t.size
	}
	for _, t := range wrts {
		wrtSize += t.size
	}
	if mode == Auto {
		mode = Rev
		if wrtSize <= ofSize {
			mode = Fwd
		}
	}
	out.Mode = mode

	for _, o := range ofs {
		out.J[o.name] = make(map[string]*mat.Dense)
		for _, w := range wrts {
			out.J[o.name][w.name] = mat.NewDense(o.size, w.size, nil)
		}
	}
	if len(ofs) == 0 || len(wrts) == 0 {
		return out, nil
	}

	if err := root.Linearize(ctx); err != nil {
		return nil, fmt.Errorf("linearizing: %w", err)
	}
	logger.Debug("Computing total derivatives.", "mode", mode.String(), "of", ofSize, "wrt", wrtSize)

	block := root.Block()
	if mode == Fwd {
		for _, w := range wrts {
			for k := range w.size {
				rhs := make([]float64, m.size)
				w.rhs(rhs, k)
				du, _, err := block.Solve(ctx, rhs, Forward)
				if err != nil {
					return nil, fmt.Errorf("forward solve for %s[%d]: %w", w.name, k, err)
				}
				for _, o := range ofs {
					col := o.rows(du)
					for i, v := range col {
						out.J[o.name][w.name].Set(i, k, v)
					}
				}
			}
		}
		return out, nil
	}

	for _, o := range ofs {
		for i := range o.size {
			seed := make([]float64, m.size)
			o.seed(seed, i)
			lam, _, err := block.Solve(ctx, seed, Reverse)
			if err != nil {
				return nil, fmt.Errorf("reverse solve for %s[%d]: %w", o.name, i, err)
			}
			for _, w := range wrts {
				out.J[o.name][w.name].SetRow(i, w.read(lam))
			}
		}
	}
	return out, nil
}

func notDifferentiable(name string, vi *VarInfo) *Diagnostic {
	return &Diagnostic{
		Kind:    NotDifferentiable,
		Target:  vi.Path,
		Message: fmt.Sprintf("%s is passed by object and has no derivatives", name),
	}
}

func (m *Model) ofTerm(name string) (ofTerm, *Diagnostic, error) {
	vis, err := m.Resolve(name)
	if err != nil {
		return ofTerm{}, nil, err
	}
	vi := Primary(vis)
	if vi.Var.Mode == vars.ModeByObj {
		return ofTerm{}, notDifferentiable(name, vi), nil
	}
	if vi.IsUnknown() {
		off, n := vi.Offset, vi.Size()
		return ofTerm{
			name: name,
			size: n,
			rows: func(x []float64) []float64 { return x[off : off+n] },
			seed: func(e []float64, k int) { e[off+k] = 1 },
		}, nil, nil
	}

	r, ok := m.routes[vi]
	if !ok {
		return ofTerm{}, nil, &mdaoerr.UnknownVariableError{Name: name, Reason: "derivatives are taken of unknowns or connected params"}
	}
	return ofTerm{
		name: name,
		size: vi.Size(),
		rows: r.gather,
		seed: func(e []float64, k int) {
			unit := make([]float64, vi.Size())
			unit[k] = 1
			r.scatter(e, unit)
		},
	}, nil, nil
}

func (m *Model) wrtTerm(name string) (wrtTerm, *Diagnostic, error) {
	vis, err := m.Resolve(name)
	if err != nil {
		return wrtTerm{}, nil, err
	}
	vi := Primary(vis)
	if vi.Var.Mode == vars.ModeByObj {
		return wrtTerm{}, notDifferentiable(name, vi), nil
	}

	if vi.IsUnknown() {
		off, n := vi.Offset, vi.Size()
		return wrtTerm{
			name: name,
			size: n,
			rhs:  func(b []float64, k int) { b[off+k] = 1 },
			read: func(lam []float64) []float64 { return append([]float64(nil), lam[off:off+n]...) },
		}, nil, nil
	}

	if r, ok := m.routes[vi]; ok {
		// A connected param stands for the entries of its source.
		off, n := r.Source.Offset, vi.Size()
		at := func(k int) int {
			if r.Indices == nil {
				return off + k
			}
			return off + r.Indices[k]
		}
		return wrtTerm{
			name: name,
			size: n,
			rhs:  func(b []float64, k int) { b[at(k)] = 1 },
			read: func(lam []float64) []float64 {
				row := make([]float64, n)
				for k := range row {
					row[k] = lam[at(k)]
				}
				return row
			},
		}, nil, nil
	}

	// An unconnected param, or an alias set of them, enters through the
	// partials of the components reading it: rhs = -(dF/dp)·e_k.
	n := vi.Size()
	return wrtTerm{
		name: name,
		size: n,
		rhs: func(b []float64, k int) {
			unit := make([]float64, n)
			unit[k] = 1
			for _, p := range vis {
				p.Comp.paramProduct(p, b, unit, -1, Forward)
			}
		},
		read: func(lam []float64) []float64 {
			row := make([]float64, n)
			for _, p := range vis {
				p.Comp.paramProduct(p, row, lam, -1, Reverse)
			}
			return row
		},
	}, nil, nil
}

// paramProduct applies the component's partials with respect to one param.
// Forward accumulates alpha·(dF/dp)·v into the global vector dst; Reverse
// accumulates alpha·(dF/dp)ᵀ·v, v being global, into the param-sized dst.
func (c *Component) paramProduct(p *VarInfo, dst, v []float64, alpha float64, dir Direction) {
	for _, key := range c.jacKeys {
		if key.Wrt != p.Var.Name {
			continue
		}
		of := c.infos[key.Of]
		sign := alpha
		if !of.Var.State {
			sign = -alpha
		}
		block := c.jac[key]
		if dir == Forward {
			block.AddMulVec(dst[of.Offset:of.Offset+of.Size()], sign, v, false)
			continue
		}
		block.AddMulVec(dst, sign, v[of.Offset:of.Offset+of.Size()], true)
	}
}
