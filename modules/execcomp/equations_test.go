package execcomp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssignment(t *testing.T) {
	testCases := []struct {
		src  string
		want int
	}{
		{"y = x", 2},
		{"y=x", 1},
		{"y = x >= 1 ? 1 : 0", 2},
		{"x == 1", -1},
		{"x <= 1", -1},
		{"x != 1", -1},
		{"", -1},
	}
	for _, tc := range testCases {
		t.Run(tc.src, func(t *testing.T) {
			assert.Equal(t, tc.want, assignment(tc.src))
		})
	}
}
