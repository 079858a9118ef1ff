package system

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/mdaogrid/internal/jacobian"
	"github.com/vk/mdaogrid/internal/mdaoerr"
	"github.com/vk/mdaogrid/internal/testutil"
	"github.com/vk/mdaogrid/internal/vars"
)

// affine computes y = 3x + 1 and drives the state s to s^2 = x.
type affine struct {
	jac jacobian.Jacobian
}

func (affine) UpdateValues(_ context.Context, p, u, r *vars.View) error {
	x := p.Float("x")
	u.SetFloat("y", 3*x+1)
	s := u.Float("s")
	r.SetFloat("s", s*s-x)
	return nil
}

func (a affine) UpdateDerivatives(context.Context, *vars.View, *vars.View, *vars.View) (jacobian.Jacobian, error) {
	return a.jac, nil
}

func newAffine(t *testing.T, jac jacobian.Jacobian) *Component {
	t.Helper()
	c := NewComponent(affine{jac: jac})
	require.NoError(t, c.AddParam("x", 4.0))
	require.NoError(t, c.AddOutput("y", 10.0))
	require.NoError(t, c.AddState("s", 3.0))
	return c
}

func TestComponent_Commit(t *testing.T) {
	ctx, _ := testutil.NewContext(t)

	t.Run("solve updates unknowns and stores new minus old", func(t *testing.T) {
		c := newAffine(t, nil)

		require.NoError(t, c.solveNonlinear(ctx))

		y, _ := c.reg.Lookup("y")
		ry, _ := c.reg.Residual("y")
		rs, _ := c.reg.Residual("s")
		s, _ := c.reg.Lookup("s")
		assert.Equal(t, 13.0, y.Value())
		assert.Equal(t, 3.0, ry.Value())
		assert.Equal(t, 5.0, rs.Value())
		assert.Equal(t, 3.0, s.Value(), "an unwritten state keeps its value")
	})

	t.Run("apply leaves unknowns untouched", func(t *testing.T) {
		c := newAffine(t, nil)

		require.NoError(t, c.applyNonlinear(ctx))

		y, _ := c.reg.Lookup("y")
		ry, _ := c.reg.Residual("y")
		assert.Equal(t, 10.0, y.Value())
		assert.Equal(t, 3.0, ry.Value())
	})
}

// stateless forgets the residual of its state.
type stateless struct{}

func (stateless) UpdateValues(_ context.Context, _, u, _ *vars.View) error {
	u.SetFloat("s", 1)
	return nil
}

func TestComponent_StateResidualRequired(t *testing.T) {
	ctx, _ := testutil.NewContext(t)
	c := NewComponent(stateless{})
	require.NoError(t, c.AddState("s", 0.0))

	err := c.solveNonlinear(ctx)

	var incomplete *mdaoerr.IncompleteUpdateError
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, []string{"resids.s"}, incomplete.Missing)
	s, _ := c.reg.Lookup("s")
	assert.Equal(t, 0.0, s.Value())
}

func TestComponent_FiniteDifference(t *testing.T) {
	ctx, _ := testutil.NewContext(t)
	c := newAffine(t, nil)

	jac, err := c.FiniteDifference(ctx)

	require.NoError(t, err)
	require.Len(t, jac, 3)
	assert.InDelta(t, 3.0, jacobian.ToDense(jac[jacobian.Key{Of: "y", Wrt: "x"}]).At(0, 0), 1e-6)
	assert.InDelta(t, -1.0, jacobian.ToDense(jac[jacobian.Key{Of: "s", Wrt: "x"}]).At(0, 0), 1e-6)
	assert.InDelta(t, 6.0, jacobian.ToDense(jac[jacobian.Key{Of: "s", Wrt: "s"}]).At(0, 0), 1e-5)
	assert.NotContains(t, jac, jacobian.Key{Of: "y", Wrt: "s"})
}

func TestComponent_AnalyticJacobianValidation(t *testing.T) {
	ctx, _ := testutil.NewContext(t)

	testCases := []struct {
		name string
		jac  jacobian.Jacobian
		want error
	}{
		{
			name: "row is a param",
			jac:  jacobian.Jacobian{{Of: "x", Wrt: "x"}: jacobian.Scalar(1)},
			want: mdaoerr.ErrUnknownVariable,
		},
		{
			name: "column is undeclared",
			jac:  jacobian.Jacobian{{Of: "y", Wrt: "w"}: jacobian.Scalar(1)},
			want: mdaoerr.ErrUnknownVariable,
		},
		{
			name: "block of the wrong size",
			jac:  jacobian.Jacobian{{Of: "y", Wrt: "x"}: jacobian.NewDense(2, 1, nil)},
			want: mdaoerr.ErrShapeMismatch,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := newAffine(t, tc.jac)
			_, err := c.AnalyticJacobian(ctx)
			require.ErrorIs(t, err, tc.want)
		})
	}

	t.Run("valid blocks", func(t *testing.T) {
		c := newAffine(t, jacobian.Jacobian{
			{Of: "y", Wrt: "x"}: jacobian.Scalar(3),
			{Of: "s", Wrt: "s"}: jacobian.Scalar(6),
		})
		require.NoError(t, c.linearize(ctx, FallbackFD))
		assert.Equal(t, []jacobian.Key{{Of: "s", Wrt: "s"}, {Of: "y", Wrt: "x"}}, c.jacKeys)
	})
}
