package problem_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/mdaogrid/internal/jacobian"
	"github.com/vk/mdaogrid/internal/mdaoerr"
	"github.com/vk/mdaogrid/internal/problem"
	"github.com/vk/mdaogrid/internal/recorder"
	"github.com/vk/mdaogrid/internal/solver"
	"github.com/vk/mdaogrid/internal/system"
	"github.com/vk/mdaogrid/internal/testutil"
	"github.com/vk/mdaogrid/internal/vars"
)

// source re-writes its outputs.
type source struct{}

func (source) UpdateValues(_ context.Context, _, u, _ *vars.View) error {
	for _, name := range u.Names() {
		u.Set(name, u.Obj(name))
	}
	return nil
}

func newSource(t *testing.T, name string, val any) *system.Component {
	t.Helper()
	c := system.NewComponent(source{})
	require.NoError(t, c.AddOutput(name, val))
	return c
}

// affine computes y = k*x + b.
type affine struct {
	k, b float64
}

func (a affine) UpdateValues(_ context.Context, p, u, _ *vars.View) error {
	u.SetFloat("y", a.k*p.Float("x")+a.b)
	return nil
}

func (a affine) UpdateDerivatives(context.Context, *vars.View, *vars.View, *vars.View) (jacobian.Jacobian, error) {
	return jacobian.Jacobian{{Of: "y", Wrt: "x"}: jacobian.Scalar(a.k)}, nil
}

func newAffine(t *testing.T, k, b float64) *system.Component {
	t.Helper()
	c := system.NewComponent(affine{k: k, b: b})
	require.NoError(t, c.AddParam("x", 1.0))
	require.NoError(t, c.AddOutput("y", 1.0))
	return c
}

// newChain builds p.x = 2 feeding c.y = 2x.
func newChain(t *testing.T) *system.Group {
	t.Helper()
	root := system.NewGroup()
	require.NoError(t, root.Add("p", newSource(t, "x", 2.0)))
	require.NoError(t, root.Add("c", newAffine(t, 2, 0)))
	require.NoError(t, root.Connect("p.x", "c.x"))
	return root
}

// newLoop builds a = 0.5b + 1 and b = 0.5a + 1, which meet at a = b = 2.
func newLoop(t *testing.T, nl system.NonlinearSolver) *system.Group {
	t.Helper()
	root := system.NewGroup(system.WithNonlinearSolver(nl))
	require.NoError(t, root.Add("a", newAffine(t, 0.5, 1)))
	require.NoError(t, root.Add("b", newAffine(t, 0.5, 1)))
	require.NoError(t, root.Connect("b.y", "a.x"))
	require.NoError(t, root.Connect("a.y", "b.x"))
	return root
}

func nlgs(t *testing.T, maxIter int) system.NonlinearSolver {
	t.Helper()
	s, err := solver.NewNLGaussSeidel(solver.NLGaussSeidelOptions{Atol: 1e-12, Rtol: 1e-12, MaxIter: maxIter})
	require.NoError(t, err)
	return s
}

func TestProblem_SetupAndRun(t *testing.T) {
	// --- Arrange ---
	ctx, logs := testutil.NewContext(t)
	p := problem.New(newChain(t), problem.WithName("chain"))

	// --- Act ---
	diags, err := p.Setup(ctx)
	require.NoError(t, err)
	res, err := p.Run(ctx)
	require.NoError(t, err)

	// --- Assert ---
	assert.Empty(t, diags)
	assert.Equal(t, system.Converged, res.State)
	y, err := p.GetFloat("c.y")
	require.NoError(t, err)
	assert.Equal(t, 4.0, y)
	assert.Contains(t, logs.String(), "Run finished.")
	assert.Contains(t, logs.String(), p.ID())

	_, err = p.Setup(ctx)
	require.ErrorIs(t, err, mdaoerr.ErrAlreadySetUp)
}

func TestProblem_NotSetUp(t *testing.T) {
	ctx, _ := testutil.NewContext(t)
	p := problem.New(newChain(t))

	_, err := p.Run(ctx)
	require.ErrorIs(t, err, mdaoerr.ErrNotSetUp)
	_, err = p.Get("c.y")
	require.ErrorIs(t, err, mdaoerr.ErrNotSetUp)
	require.ErrorIs(t, p.Set("p.x", 1.0), mdaoerr.ErrNotSetUp)
	_, err = p.CalcGradient(ctx, []string{"c.y"}, []string{"p.x"}, system.Auto)
	require.ErrorIs(t, err, mdaoerr.ErrNotSetUp)
}

func TestProblem_Set(t *testing.T) {
	ctx, _ := testutil.NewContext(t)

	t.Run("unknown drives downstream on the next run", func(t *testing.T) {
		p := problem.New(newChain(t))
		_, err := p.Setup(ctx)
		require.NoError(t, err)

		require.NoError(t, p.Set("p.x", 3.0))
		_, err = p.Run(ctx)
		require.NoError(t, err)

		y, err := p.GetFloat("c.y")
		require.NoError(t, err)
		assert.Equal(t, 6.0, y)
	})

	t.Run("connected param", func(t *testing.T) {
		p := problem.New(newChain(t))
		_, err := p.Setup(ctx)
		require.NoError(t, err)

		err = p.Set("c.x", 3.0)
		require.ErrorIs(t, err, mdaoerr.ErrConnectedParam)
		assert.Contains(t, err.Error(), "p.x")
	})

	t.Run("alias name sets every member", func(t *testing.T) {
		root := system.NewGroup()
		require.NoError(t, root.Add("c1", newAffine(t, 2, 0), "x"))
		require.NoError(t, root.Add("c2", newAffine(t, 5, 0), "x"))
		p := problem.New(root)
		_, err := p.Setup(ctx)
		require.NoError(t, err)

		require.NoError(t, p.Set("x", 4.0))
		_, err = p.Run(ctx)
		require.NoError(t, err)

		y1, _ := p.GetFloat("c1.y")
		y2, _ := p.GetFloat("c2.y")
		assert.Equal(t, 8.0, y1)
		assert.Equal(t, 20.0, y2)
	})

	t.Run("promoted name shared with an unknown sets the unknown", func(t *testing.T) {
		root := system.NewGroup()
		require.NoError(t, root.Add("p", newSource(t, "x", 1.0), "x"))
		require.NoError(t, root.Add("c", newAffine(t, 2, 0), "x"))
		p := problem.New(root)
		_, err := p.Setup(ctx)
		require.NoError(t, err)

		require.NoError(t, p.Set("x", 7.0))
		_, err = p.Run(ctx)
		require.NoError(t, err)

		x, _ := p.GetFloat("p.x")
		y, _ := p.GetFloat("c.y")
		assert.Equal(t, 7.0, x)
		assert.Equal(t, 14.0, y)
	})

	t.Run("wrong size", func(t *testing.T) {
		p := problem.New(newChain(t))
		_, err := p.Setup(ctx)
		require.NoError(t, err)

		err = p.Set("p.x", []float64{1, 2})
		require.ErrorIs(t, err, mdaoerr.ErrShapeMismatch)
	})

	t.Run("unknown name", func(t *testing.T) {
		p := problem.New(newChain(t))
		_, err := p.Setup(ctx)
		require.NoError(t, err)

		require.ErrorIs(t, p.Set("nope", 1.0), mdaoerr.ErrUnknownVariable)
	})
}

func TestProblem_GetObj(t *testing.T) {
	ctx, _ := testutil.NewContext(t)
	root := system.NewGroup()
	meta := newSource(t, "x", 1.0)
	require.NoError(t, meta.AddOutput("label", "wing", vars.Meta{vars.MetaPassByObj: true}))
	require.NoError(t, root.Add("p", meta))
	p := problem.New(root)
	_, err := p.Setup(ctx)
	require.NoError(t, err)
	_, err = p.Run(ctx)
	require.NoError(t, err)

	label, err := p.GetObj("p.label")
	require.NoError(t, err)
	assert.Equal(t, "wing", label)

	_, err = p.Get("p.label")
	require.ErrorIs(t, err, mdaoerr.ErrNonNumeric)
}

func TestProblem_Ownership(t *testing.T) {
	// --- Arrange ---
	ctx, _ := testutil.NewContext(t)
	root := newChain(t)
	first := problem.New(root)
	second := problem.New(root)

	// --- Act ---
	_, err := first.Setup(ctx)
	require.NoError(t, err)
	_, errWhileOwned := second.Setup(ctx)
	errAdd := system.NewGroup().Add("sub", root)
	require.NoError(t, first.Close())
	_, errAfterClose := second.Setup(ctx)

	// --- Assert ---
	var violation *mdaoerr.OwnershipViolationError
	require.ErrorAs(t, errWhileOwned, &violation)
	assert.Contains(t, violation.Owner, first.ID())
	require.ErrorIs(t, errAdd, mdaoerr.ErrOwnershipViolation)
	require.NoError(t, errAfterClose)
	assert.Equal(t, second.ID(), system.Owner(root))
	require.NoError(t, second.Close())
	assert.Empty(t, system.Owner(root))
}

func TestProblem_Recording(t *testing.T) {
	// --- Arrange ---
	ctx, _ := testutil.NewContext(t)
	mem := recorder.NewMemory()
	root := newLoop(t, nlgs(t, 1))
	p := problem.New(root, problem.WithRecorder(mem), problem.WithName("loop"))
	_, err := p.Setup(ctx)
	require.NoError(t, err)

	// --- Act ---
	failedRes, failedErr := p.Run(ctx)
	root.SetNonlinearSolver(nlgs(t, 200))
	res, err := p.Run(ctx)
	require.NoError(t, err)
	require.NoError(t, p.Close())

	// --- Assert ---
	require.ErrorIs(t, failedErr, mdaoerr.ErrConvergence)
	assert.Equal(t, system.Failed, failedRes.State)
	assert.Equal(t, system.Converged, res.State)

	meta := mem.Metadata()
	assert.Equal(t, p.ID(), meta.ProblemID)
	assert.Equal(t, "loop", meta.Name)
	assert.Len(t, meta.Vars, 4)

	cases := mem.Cases()
	require.Len(t, cases, 2)
	assert.False(t, cases[0].Success)
	assert.Contains(t, cases[0].Message, "convergence failure")
	assert.Equal(t, 1, cases[0].Iteration)
	assert.True(t, cases[1].Success)
	assert.Equal(t, 2, cases[1].Iteration)
	assert.InDelta(t, 2.0, cases[1].Unknowns["a.y"], 1e-9)
	assert.InDelta(t, 2.0, cases[1].Params["b.x"], 1e-9)
	assert.Contains(t, cases[1].Resids, "b.y")
	assert.NotEqual(t, cases[0].ID, cases[1].ID)
	assert.True(t, mem.Closed())
}

func TestProblem_CalcGradient(t *testing.T) {
	ctx, _ := testutil.NewContext(t)
	p := problem.New(newChain(t))
	_, err := p.Setup(ctx)
	require.NoError(t, err)
	_, err = p.Run(ctx)
	require.NoError(t, err)

	for _, mode := range []system.TotalsMode{system.Auto, system.Fwd, system.Rev} {
		t.Run(mode.String(), func(t *testing.T) {
			totals, err := p.CalcGradient(ctx, []string{"c.y"}, []string{"p.x"}, mode)
			require.NoError(t, err)
			assert.InDelta(t, 2.0, totals.At("c.y", "p.x").At(0, 0), 1e-12)
		})
	}
}

func TestProblem_CheckPartials(t *testing.T) {
	ctx, _ := testutil.NewContext(t)
	p := problem.New(newChain(t))
	_, err := p.Setup(ctx)
	require.NoError(t, err)

	checks, err := p.CheckPartials(ctx)
	require.NoError(t, err)

	require.Len(t, checks, 1)
	assert.Equal(t, "c", checks[0].Component)
	assert.Less(t, checks[0].AbsError, 1e-6)
}

func TestProblem_ParallelMatchesSequential(t *testing.T) {
	ctx, _ := testutil.NewContext(t)

	build := func() *system.Group {
		root := system.NewGroup()
		require.NoError(t, root.Add("p", newSource(t, "x", 3.0)))
		require.NoError(t, root.Add("c1", newAffine(t, 2, 1)))
		require.NoError(t, root.Add("c2", newAffine(t, -1, 4)))
		require.NoError(t, root.Connect("p.x", "c1.x"))
		require.NoError(t, root.Connect("p.x", "c2.x"))
		return root
	}

	seq := problem.New(build())
	par := problem.New(build(), problem.WithParallel())
	for _, p := range []*problem.Problem{seq, par} {
		_, err := p.Setup(ctx)
		require.NoError(t, err)
		_, err = p.Run(ctx)
		require.NoError(t, err)
	}

	for _, name := range []string{"c1.y", "c2.y"} {
		want, _ := seq.GetFloat(name)
		got, _ := par.GetFloat(name)
		assert.Equal(t, want, got, name)
	}
	assert.True(t, par.Root().NonlinearSolver().(*solver.RunOnce).Options().Parallel)
}

func TestProblem_ConcurrentCalls(t *testing.T) {
	ctx, _ := testutil.NewContext(t)
	p := problem.New(newChain(t))
	_, err := p.Setup(ctx)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v float64) {
			defer wg.Done()
			assert.NoError(t, p.Set("p.x", v))
			_, err := p.Run(ctx)
			assert.NoError(t, err)
		}(float64(i))
	}
	wg.Wait()

	x, _ := p.GetFloat("p.x")
	y, _ := p.GetFloat("c.y")
	assert.Equal(t, 2*x, y)
}
