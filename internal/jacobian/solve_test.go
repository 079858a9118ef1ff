package jacobian

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestSolveDense(t *testing.T) {
	a := mat.NewDense(2, 2, []float64{2, 1, 0, 4})

	t.Run("forward", func(t *testing.T) {
		x, err := SolveDense(a, []float64{5, 8}, false)
		require.NoError(t, err)
		assert.InDeltaSlice(t, []float64{1.5, 2}, x, 1e-12)
	})

	t.Run("transposed", func(t *testing.T) {
		x, err := SolveDense(a, []float64{2, 9}, true)
		require.NoError(t, err)
		assert.InDeltaSlice(t, []float64{1, 2}, x, 1e-12)
	})

	t.Run("singular", func(t *testing.T) {
		_, err := SolveDense(mat.NewDense(2, 2, []float64{1, 1, 1, 1}), []float64{1, 0}, false)
		require.Error(t, err)
	})

	t.Run("shape errors", func(t *testing.T) {
		_, err := SolveDense(mat.NewDense(2, 3, nil), []float64{1, 0}, false)
		require.ErrorContains(t, err, "want square")
		_, err = SolveDense(a, []float64{1}, false)
		require.ErrorContains(t, err, "rhs has 1 entries")
	})
}
