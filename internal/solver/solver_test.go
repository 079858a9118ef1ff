package solver_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/mdaogrid/internal/jacobian"
	"github.com/vk/mdaogrid/internal/mdaoerr"
	"github.com/vk/mdaogrid/internal/solver"
	"github.com/vk/mdaogrid/internal/system"
	"github.com/vk/mdaogrid/internal/testutil"
	"github.com/vk/mdaogrid/internal/vars"
)

// gain computes y = k*x.
type gain struct {
	k float64
}

func (g gain) UpdateValues(_ context.Context, p, u, _ *vars.View) error {
	u.SetFloat("y", g.k*p.Float("x"))
	return nil
}

func (g gain) UpdateDerivatives(context.Context, *vars.View, *vars.View, *vars.View) (jacobian.Jacobian, error) {
	return jacobian.Jacobian{{Of: "y", Wrt: "x"}: jacobian.Scalar(g.k)}, nil
}

func newGain(t *testing.T, k float64) *system.Component {
	t.Helper()
	c := system.NewComponent(gain{k: k})
	require.NoError(t, c.AddParam("x", 1.0))
	require.NoError(t, c.AddOutput("y", 1.0))
	return c
}

// newLoop builds two gains of 0.5 feeding each other. Its operator is
// [[1, -0.5], [-0.5, 1]].
func newLoop(t *testing.T, ctx context.Context, ln system.LinearSolver) *system.Group {
	t.Helper()
	root := system.NewGroup(system.WithLinearSolver(ln))
	require.NoError(t, root.Add("c1", newGain(t, 0.5)))
	require.NoError(t, root.Add("c2", newGain(t, 0.5)))
	require.NoError(t, root.Connect("c2.y", "c1.x"))
	require.NoError(t, root.Connect("c1.y", "c2.x"))

	_, err := system.Setup(ctx, root, solver.Defaults())
	require.NoError(t, err)
	require.NoError(t, root.Linearize(ctx))
	return root
}

func TestLinearSolvers_AgreeOnCoupledBlock(t *testing.T) {
	ctx, _ := testutil.NewContext(t)

	gmres, err := solver.NewGMRES(solver.DefaultGMRESOptions())
	require.NoError(t, err)
	lgs, err := solver.NewLinearGaussSeidel(solver.DefaultLinearGaussSeidelOptions())
	require.NoError(t, err)
	direct, err := solver.NewDirect(solver.DefaultDirectOptions())
	require.NoError(t, err)

	testCases := []struct {
		name string
		ln   system.LinearSolver
	}{
		{name: "gmres", ln: gmres},
		{name: "ln_gauss_seidel", ln: lgs},
		{name: "direct", ln: direct},
	}

	for _, tc := range testCases {
		for _, dir := range []system.Direction{system.Forward, system.Reverse} {
			t.Run(tc.name+"/"+dir.String(), func(t *testing.T) {
				// --- Arrange ---
				root := newLoop(t, ctx, tc.ln)

				// --- Act ---
				x, res, err := root.Block().Solve(ctx, []float64{1, 0}, dir)

				// --- Assert ---
				require.NoError(t, err)
				assert.Equal(t, system.Converged, res.State)
				require.Len(t, x, 2)
				assert.InDelta(t, 4.0/3.0, x[0], 1e-8)
				assert.InDelta(t, 2.0/3.0, x[1], 1e-8)
			})
		}
	}
}

func TestLinearSolvers_ReportNonConvergence(t *testing.T) {
	ctx, _ := testutil.NewContext(t)

	lgs, err := solver.NewLinearGaussSeidel(solver.LinearGaussSeidelOptions{Atol: 1e-14, MaxIter: 2})
	require.NoError(t, err)
	root := newLoop(t, ctx, lgs)

	_, res, err := root.Block().Solve(ctx, []float64{1, 0}, system.Forward)

	var convErr *mdaoerr.ConvergenceError
	require.ErrorAs(t, err, &convErr)
	assert.True(t, convErr.Linear)
	assert.Equal(t, 2, convErr.Iterations)
	assert.Equal(t, system.Failed, res.State)
}

// label publishes a pass-by-object output and has no flat unknowns.
type label struct{}

func (label) UpdateValues(_ context.Context, _, u, _ *vars.View) error {
	u.Set("name", "wing")
	return nil
}

func TestDirect_EmptyBlock(t *testing.T) {
	// --- Arrange ---
	ctx, _ := testutil.NewContext(t)
	direct, err := solver.NewDirect(solver.DefaultDirectOptions())
	require.NoError(t, err)

	c := system.NewComponent(label{})
	require.NoError(t, c.AddOutput("name", "", vars.Meta{vars.MetaPassByObj: true}))
	root := system.NewGroup(system.WithLinearSolver(direct))
	require.NoError(t, root.Add("c", c))
	_, err = system.Setup(ctx, root, solver.Defaults())
	require.NoError(t, err)
	require.Equal(t, 0, root.Block().Size())

	// --- Act ---
	a, err := root.Block().Dense(ctx)
	require.NoError(t, err)
	x, res, err := root.Block().Solve(ctx, []float64{}, system.Forward)

	// --- Assert ---
	require.NoError(t, err)
	require.NotNil(t, a)
	rows, cols := a.Dims()
	assert.Zero(t, rows)
	assert.Zero(t, cols)
	assert.NotNil(t, x)
	assert.Empty(t, x)
	assert.Equal(t, system.Converged, res.State)
}

func TestDirect_SingularBlock(t *testing.T) {
	ctx, _ := testutil.NewContext(t)
	direct, err := solver.NewDirect(solver.DefaultDirectOptions())
	require.NoError(t, err)

	root := system.NewGroup(system.WithLinearSolver(direct))
	require.NoError(t, root.Add("c1", newGain(t, 1)))
	require.NoError(t, root.Add("c2", newGain(t, 1)))
	require.NoError(t, root.Connect("c2.y", "c1.x"))
	require.NoError(t, root.Connect("c1.y", "c2.x"))
	_, err = system.Setup(ctx, root, solver.Defaults())
	require.NoError(t, err)
	require.NoError(t, root.Linearize(ctx))

	_, _, err = root.Block().Solve(ctx, []float64{1, 0}, system.Forward)

	require.ErrorContains(t, err, "direct solve on")
}

func TestOptions_Validation(t *testing.T) {
	testCases := []struct {
		name    string
		build   func() error
		wantMsg string
	}{
		{
			name: "negative tolerance",
			build: func() error {
				_, err := solver.NewNLGaussSeidel(solver.NLGaussSeidelOptions{Atol: -1, Rtol: 0, MaxIter: 10})
				return err
			},
			wantMsg: "atol must not be negative",
		},
		{
			name: "zero iteration cap",
			build: func() error {
				_, err := solver.NewNewton(solver.NewtonOptions{MaxIter: 0, Alpha: 1})
				return err
			},
			wantMsg: "maxiter must be at least 1",
		},
		{
			name: "newton step out of range",
			build: func() error {
				opts := solver.DefaultNewtonOptions()
				opts.Alpha = 1.5
				_, err := solver.NewNewton(opts)
				return err
			},
			wantMsg: "alpha",
		},
		{
			name: "gmres restart",
			build: func() error {
				opts := solver.DefaultGMRESOptions()
				opts.Restart = 0
				_, err := solver.NewGMRES(opts)
				return err
			},
			wantMsg: "restart must be at least 1",
		},
		{
			name: "unknown fallback",
			build: func() error {
				_, err := solver.NewDirect(solver.DirectOptions{Fallback: "complex_step"})
				return err
			},
			wantMsg: `fallback must be "fd" or "zero"`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.build()
			require.ErrorIs(t, err, mdaoerr.ErrInvalidOption)
			assert.Contains(t, err.Error(), "options validation failed")
			assert.Contains(t, err.Error(), tc.wantMsg)
		})
	}

	t.Run("every violation is reported", func(t *testing.T) {
		_, err := solver.NewGMRES(solver.GMRESOptions{Atol: -1, MaxIter: 0, Restart: 0})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "atol must not be negative")
		assert.Contains(t, err.Error(), "maxiter must be at least 1")
		assert.Contains(t, err.Error(), "restart must be at least 1")
	})
}

func TestFactories(t *testing.T) {
	t.Run("nonlinear by type name", func(t *testing.T) {
		for _, kind := range []string{"run_once", "nl_gauss_seidel", "newton"} {
			s, err := solver.NewNonlinear(kind, nil)
			require.NoError(t, err, kind)
			assert.Equal(t, kind, s.Name())
			assert.Equal(t, kind != "run_once", s.Iterative())
		}
	})

	t.Run("linear by type name", func(t *testing.T) {
		for _, kind := range []string{"gmres", "ln_gauss_seidel", "direct"} {
			s, err := solver.NewLinear(kind, nil)
			require.NoError(t, err, kind)
			assert.Equal(t, kind, s.Name())
			assert.Equal(t, system.FallbackFD, s.(system.FallbackPolicy).Fallback())
		}
	})

	t.Run("decoder overrides defaults", func(t *testing.T) {
		s, err := solver.NewNonlinear("newton", func(target any) error {
			target.(*solver.NewtonOptions).MaxIter = 5
			return nil
		})
		require.NoError(t, err)

		opts := s.(*solver.Newton).Options()
		assert.Equal(t, 5, opts.MaxIter)
		assert.Equal(t, solver.DefaultNewtonOptions().Atol, opts.Atol)
	})

	t.Run("decoded values are validated", func(t *testing.T) {
		ln, err := solver.NewLinear("gmres", func(target any) error {
			target.(*solver.GMRESOptions).Fallback = "zero"
			target.(*solver.GMRESOptions).MaxIter = -3
			return nil
		})
		require.ErrorIs(t, err, mdaoerr.ErrInvalidOption)
		assert.True(t, ln == nil, "a rejected linear solver must be a nil interface")

		nl, err := solver.NewNonlinear("nl_gauss_seidel", func(target any) error {
			target.(*solver.NLGaussSeidelOptions).MaxIter = 0
			return nil
		})
		require.ErrorIs(t, err, mdaoerr.ErrInvalidOption)
		assert.True(t, nl == nil, "a rejected nonlinear solver must be a nil interface")
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := solver.NewNonlinear("broyden", nil)
		require.ErrorIs(t, err, mdaoerr.ErrInvalidOption)
		_, err = solver.NewLinear("petsc_ksp", nil)
		require.ErrorIs(t, err, mdaoerr.ErrInvalidOption)
	})
}
