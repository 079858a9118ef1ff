package recorder

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleCase() Case {
	return Case{
		ID:        "c-1",
		ProblemID: "p-1",
		Iteration: 1,
		Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Params:    map[string]any{"comp.x": 2.0, "comp.a": []float64{1.5, 2.5}},
		Unknowns:  map[string]any{"comp.y": 4.0},
		Resids:    map[string]any{"comp.y": 0.0},
		Success:   true,
	}
}

func TestDump_Record(t *testing.T) {
	// --- Arrange ---
	var buf bytes.Buffer
	d := NewDump(&buf)
	require.NoError(t, d.Startup(Metadata{ProblemID: "p-1", Vars: make([]VarMeta, 3)}))

	failed := sampleCase()
	failed.Iteration = 2
	failed.Success = false
	failed.Message = "mdao: convergence failure"

	// --- Act ---
	require.NoError(t, d.Record(context.Background(), sampleCase()))
	require.NoError(t, d.Record(context.Background(), failed))
	require.NoError(t, d.Close())

	// --- Assert ---
	want := `Problem p-1: 3 variables
Iteration 1 (2024-05-01T12:00:00.000Z)
  Status: success
  Params:
    comp.a: [1.5 2.5]
    comp.x: 2
  Unknowns:
    comp.y: 4
  Resids:
    comp.y: 0
Iteration 2 (2024-05-01T12:00:00.000Z)
  Status: failed: mdao: convergence failure
  Params:
    comp.a: [1.5 2.5]
    comp.x: 2
  Unknowns:
    comp.y: 4
  Resids:
    comp.y: 0
`
	assert.Equal(t, want, buf.String())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestDump_WriteError(t *testing.T) {
	d := NewDump(failingWriter{})
	err := d.Record(context.Background(), sampleCase())
	require.EqualError(t, err, "disk full")
}

type closingBuffer struct {
	bytes.Buffer
	closed bool
}

func (c *closingBuffer) Close() error {
	c.closed = true
	return nil
}

func TestYAML_Record(t *testing.T) {
	// --- Arrange ---
	out := &closingBuffer{}
	y := NewYAML(out)
	meta := Metadata{
		ProblemID: "p-1",
		Vars: []VarMeta{
			{Path: "comp.x", Promoted: "x", Kind: "param", Shape: []int{1}},
			{Path: "comp.y", Kind: "unknown", Shape: []int{1}},
		},
	}

	// --- Act ---
	require.NoError(t, y.Startup(meta))
	require.NoError(t, y.Record(context.Background(), sampleCase()))
	require.NoError(t, y.Close())

	// --- Assert ---
	assert.True(t, out.closed)

	dec := yaml.NewDecoder(bytes.NewReader(out.Bytes()))
	var gotMeta Metadata
	require.NoError(t, dec.Decode(&gotMeta))
	assert.Equal(t, meta, gotMeta)

	var got struct {
		ID       string             `yaml:"id"`
		Unknowns map[string]float64 `yaml:"unknowns"`
		Params   map[string]any     `yaml:"params"`
		Success  bool               `yaml:"success"`
	}
	require.NoError(t, dec.Decode(&got))
	assert.Equal(t, "c-1", got.ID)
	assert.Equal(t, map[string]float64{"comp.y": 4}, got.Unknowns)
	assert.Equal(t, []any{1.5, 2.5}, got.Params["comp.a"])
	assert.True(t, got.Success)
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Startup(Metadata{ProblemID: "p-1"}))
	require.NoError(t, m.Record(context.Background(), sampleCase()))
	require.NoError(t, m.Close())

	assert.Equal(t, "p-1", m.Metadata().ProblemID)
	require.Len(t, m.Cases(), 1)
	assert.Equal(t, 4.0, m.Cases()[0].Unknowns["comp.y"])
	assert.True(t, m.Closed())
}
