package linsys

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions_Size(t *testing.T) {
	testCases := []struct {
		name    string
		opts    Options
		want    int
		wantErr bool
	}{
		{name: "explicit", opts: Options{Size: 3}, want: 3},
		{name: "from a", opts: Options{A: [][]float64{{1, 0}, {0, 1}}}, want: 2},
		{name: "from b", opts: Options{B: []float64{1, 2, 3}}, want: 3},
		{name: "all agree", opts: Options{Size: 1, A: [][]float64{{4}}, B: []float64{2}}, want: 1},
		{name: "disagree", opts: Options{Size: 2, B: []float64{1}}, wantErr: true},
		{name: "nothing", opts: Options{}, wantErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			n, err := tc.opts.size()
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, n)
		})
	}
}
