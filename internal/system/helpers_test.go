package system_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/mdaogrid/internal/jacobian"
	"github.com/vk/mdaogrid/internal/solver"
	"github.com/vk/mdaogrid/internal/system"
	"github.com/vk/mdaogrid/internal/testutil"
	"github.com/vk/mdaogrid/internal/vars"
)

// indep re-writes its declared outputs.
type indep struct{}

func (indep) UpdateValues(_ context.Context, _, u, _ *vars.View) error {
	for _, name := range u.Names() {
		if v, ok := u.Var(name); ok && v.Mode == vars.ModeByObj {
			u.Set(name, v.Obj())
			continue
		}
		u.Set(name, u.Get(name))
	}
	return nil
}

func newIndep(t *testing.T, outputs map[string]any) *system.Component {
	t.Helper()
	c := system.NewComponent(indep{})
	for name, val := range outputs {
		require.NoError(t, c.AddOutput(name, val))
	}
	return c
}

// scale computes y = k*x and provides dy/dx.
type scale struct {
	k float64
}

func (s scale) UpdateValues(_ context.Context, p, u, _ *vars.View) error {
	x := p.Get("x")
	for i := range x {
		x[i] *= s.k
	}
	u.Set("y", x)
	return nil
}

func (s scale) UpdateDerivatives(_ context.Context, p, _, _ *vars.View) (jacobian.Jacobian, error) {
	n := len(p.Get("x"))
	return jacobian.Jacobian{{Of: "y", Wrt: "x"}: jacobian.Identity(n, s.k)}, nil
}

func newScale(t *testing.T, k float64, x any) *system.Component {
	t.Helper()
	c := system.NewComponent(scale{k: k})
	require.NoError(t, c.AddParam("x", x))
	require.NoError(t, c.AddOutput("y", x))
	return c
}

// paraboloid computes f = (x-3)^2 + x*y + (y+4)^2 - 3.
type paraboloid struct{}

func (paraboloid) UpdateValues(_ context.Context, p, u, _ *vars.View) error {
	x, y := p.Float("x"), p.Float("y")
	u.SetFloat("f", (x-3)*(x-3)+x*y+(y+4)*(y+4)-3)
	return nil
}

func (paraboloid) UpdateDerivatives(_ context.Context, p, _, _ *vars.View) (jacobian.Jacobian, error) {
	x, y := p.Float("x"), p.Float("y")
	return jacobian.Jacobian{
		{Of: "f", Wrt: "x"}: jacobian.Scalar(2*x - 6 + y),
		{Of: "f", Wrt: "y"}: jacobian.Scalar(2*y + 8 + x),
	}, nil
}

func newParaboloid(t *testing.T) *system.Component {
	t.Helper()
	c := system.NewComponent(paraboloid{})
	require.NoError(t, c.AddParam("x", 0.0))
	require.NoError(t, c.AddParam("y", 0.0))
	require.NoError(t, c.AddOutput("f", 0.0))
	return c
}

// sellarDis1 computes y1 = z1^2 + z2 + x - 0.2*y2.
type sellarDis1 struct{}

func (sellarDis1) UpdateValues(_ context.Context, p, u, _ *vars.View) error {
	z := p.Get("z")
	u.SetFloat("y1", z[0]*z[0]+z[1]+p.Float("x")-0.2*p.Float("y2"))
	return nil
}

// sellarDis2 computes y2 = sqrt(|y1|) + z1 + z2.
type sellarDis2 struct{}

func (sellarDis2) UpdateValues(_ context.Context, p, u, _ *vars.View) error {
	z := p.Get("z")
	u.SetFloat("y2", math.Sqrt(math.Abs(p.Float("y1")))+z[0]+z[1])
	return nil
}

// newSellar builds the coupled Sellar problem with promoted names and the
// given solver on the cycle group.
func newSellar(t *testing.T, nl system.NonlinearSolver, ln system.LinearSolver) *system.Group {
	t.Helper()

	d1 := system.NewComponent(sellarDis1{})
	require.NoError(t, d1.AddParam("x", 0.0))
	require.NoError(t, d1.AddParam("z", []float64{0, 0}))
	require.NoError(t, d1.AddParam("y2", 1.0))
	require.NoError(t, d1.AddOutput("y1", 1.0))

	d2 := system.NewComponent(sellarDis2{})
	require.NoError(t, d2.AddParam("z", []float64{0, 0}))
	require.NoError(t, d2.AddParam("y1", 1.0))
	require.NoError(t, d2.AddOutput("y2", 1.0))

	opts := []system.GroupOption{system.WithNonlinearSolver(nl)}
	if ln != nil {
		opts = append(opts, system.WithLinearSolver(ln))
	}
	cycle := system.NewGroup(opts...)
	require.NoError(t, cycle.Add("d1", d1, "*"))
	require.NoError(t, cycle.Add("d2", d2, "*"))

	root := system.NewGroup()
	require.NoError(t, root.Add("px", newIndep(t, map[string]any{"x": 1.0}), "x"))
	require.NoError(t, root.Add("pz", newIndep(t, map[string]any{"z": []float64{5, 2}}), "z"))
	require.NoError(t, root.Add("cycle", cycle, "*"))
	return root
}

// setup runs system.Setup with the default solvers and no owner.
func setup(t *testing.T, ctx context.Context, root *system.Group, opts ...func(*system.SetupOptions)) (*system.Model, error) {
	t.Helper()
	so := solver.Defaults()
	for _, opt := range opts {
		opt(&so)
	}
	return system.Setup(ctx, root, so)
}

func newCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, _ := testutil.NewContext(t)
	return ctx
}

func value(t *testing.T, m *system.Model, name string) []float64 {
	t.Helper()
	vis, err := m.Resolve(name)
	require.NoError(t, err)
	return append([]float64(nil), system.Primary(vis).Var.Data()...)
}

func scalar(t *testing.T, m *system.Model, name string) float64 {
	t.Helper()
	vis, err := m.Resolve(name)
	require.NoError(t, err)
	return system.Primary(vis).Var.Value().(float64)
}
