package varpath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		name         string
		raw          string
		expectErr    bool
		expectedPath Path
	}{
		{
			name: "simple path",
			raw:  "a.b.c",
			expectedPath: Path{
				Segments: []Segment{NewSegment("a"), NewSegment("b"), NewSegment("c")},
			},
		},
		{
			name: "indexed last segment",
			raw:  "px.z[1]",
			expectedPath: Path{
				Segments: []Segment{NewSegment("px"), NewSegmentWithIndex("z", 1)},
			},
		},
		{
			name: "namespaced variable name",
			raw:  "comp.geom:area",
			expectedPath: Path{
				Segments: []Segment{NewSegment("comp"), NewSegment("geom:area")},
			},
		},
		{name: "error - empty path segment", raw: "a..b", expectErr: true},
		{name: "error - non numeric index", raw: "a.b[x]", expectErr: true},
		{name: "error - empty string", raw: "", expectErr: true},
		{name: "error - leading digit", raw: "a.1b", expectErr: true},
		{name: "error - hyphen", raw: "a-b", expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := Parse(tc.raw)

			if tc.expectErr {
				require.ErrorIs(t, err, ErrInvalidName)
				return
			}

			require.NoError(t, err)
			assert.True(t, tc.expectedPath.Equal(p), "parsed path does not match expected path")
			assert.Equal(t, tc.raw, p.String())
		})
	}
}

func TestValidateVarName(t *testing.T) {
	valid := []string{"x", "_x1", "geom:area", "a:b:c"}
	for _, name := range valid {
		t.Run(name, func(t *testing.T) {
			assert.NoError(t, ValidateVarName(name))
		})
	}

	invalid := []string{"", "1x", "x.y", "a:", ":a", "x y", "x[0]"}
	for _, name := range invalid {
		t.Run("invalid "+name, func(t *testing.T) {
			assert.ErrorIs(t, ValidateVarName(name), ErrInvalidName)
		})
	}
}

func TestValidateSystemName(t *testing.T) {
	assert.NoError(t, ValidateSystemName("comp1"))
	assert.ErrorIs(t, ValidateSystemName("comp:1"), ErrInvalidName)
	assert.ErrorIs(t, ValidateSystemName("comp.1"), ErrInvalidName)
}
