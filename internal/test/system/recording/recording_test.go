package system

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/mdaogrid/internal/app"
	"gopkg.in/yaml.v3"
)

const chainTemplate = `
problem "chain" {
  component "px" {
    type     = "indep"
    promotes = ["x"]
    outputs  = { x = 2.0 }
  }
  component "a" {
    type      = "exec"
    promotes  = ["*"]
    equations = ["y = 3*x"]
  }
  component "b" {
    type      = "exec"
    promotes  = ["*"]
    equations = ["z = x + 1"]
  }
  component "c" {
    type      = "exec"
    promotes  = ["*"]
    equations = ["w = y + z"]
  }
  %s
}
`

func writeProblem(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "main.hcl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600), "failed to write hcl file")
	return path
}

// Test for: a recorder block writes metadata and one case per run
func TestRecording_YAMLRecorderBlock(t *testing.T) {
	// --- Arrange ---
	dir := t.TempDir()
	casesPath := filepath.Join(dir, "cases.yaml")
	recorderBlock := fmt.Sprintf("recorder {\n    type = \"yaml\"\n    path = %q\n  }", casesPath)
	path := writeProblem(t, dir, fmt.Sprintf(chainTemplate, recorderBlock))
	testApp, _ := app.SetupAppTest(t, &app.Config{ProblemPath: path})

	// --- Act ---
	_, err := testApp.Run(context.Background())

	// --- Assert ---
	require.NoError(t, err)
	f, err := os.Open(casesPath)
	require.NoError(t, err)
	defer f.Close()

	dec := yaml.NewDecoder(f)
	var meta struct {
		Name string `yaml:"name"`
		Vars []struct {
			Path string `yaml:"path"`
		} `yaml:"vars"`
	}
	require.NoError(t, dec.Decode(&meta))
	assert.Equal(t, "chain", meta.Name)
	assert.NotEmpty(t, meta.Vars)

	var c struct {
		Iteration int            `yaml:"iteration"`
		Success   bool           `yaml:"success"`
		Unknowns  map[string]any `yaml:"unknowns"`
	}
	require.NoError(t, dec.Decode(&c))
	assert.Equal(t, 1, c.Iteration)
	assert.True(t, c.Success)
	assert.InDelta(t, 9.0, c.Unknowns["c.w"], 1e-12)
}

// Test for: the record path adds a text dump recorder
func TestRecording_RecordPathDump(t *testing.T) {
	// --- Arrange ---
	dir := t.TempDir()
	dumpPath := filepath.Join(dir, "cases.txt")
	path := writeProblem(t, dir, fmt.Sprintf(chainTemplate, ""))
	testApp, _ := app.SetupAppTest(t, &app.Config{ProblemPath: path, RecordPath: dumpPath})

	// --- Act ---
	_, err := testApp.Run(context.Background())

	// --- Assert ---
	require.NoError(t, err)
	content, err := os.ReadFile(dumpPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Iteration 1")
	assert.Contains(t, string(content), "Status: success")
	assert.Contains(t, string(content), "c.w: 9")
}

// Test for: parallel single-pass execution matches sequential execution
func TestRecording_ParallelMatchesSequential(t *testing.T) {
	// --- Arrange ---
	dir := t.TempDir()
	path := writeProblem(t, dir, fmt.Sprintf(chainTemplate, ""))
	seqApp, _ := app.SetupAppTest(t, &app.Config{ProblemPath: path})
	parApp, _ := app.SetupAppTest(t, &app.Config{ProblemPath: path, Parallel: true})

	// --- Act ---
	seq, seqErr := seqApp.Run(context.Background())
	par, parErr := parApp.Run(context.Background())

	// --- Assert ---
	require.NoError(t, seqErr)
	require.NoError(t, parErr)
	assert.Equal(t, seq.Unknowns, par.Unknowns)
	assert.InDelta(t, 9.0, par.Unknowns["w"], 1e-12)
}
