package cli

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/mdaogrid/internal/app"
	"github.com/vk/mdaogrid/internal/mdaoerr"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		name       string
		args       []string
		want       *app.Config
		shouldExit bool
		wantCode   int
		wantErr    string
	}{
		{
			name: "positional path with defaults",
			args: []string{"model.hcl"},
			want: &app.Config{ProblemPath: "model.hcl", LogFormat: "text", LogLevel: "info", ReportFormat: "text"},
		},
		{
			name: "every flag",
			args: []string{"-problem", "a.hcl", "-log-format", "JSON", "-log-level", "debug", "-report-format", "yaml",
				"-record", "cases.yaml", "-strict-cycles", "-parallel"},
			want: &app.Config{ProblemPath: "a.hcl", LogFormat: "json", LogLevel: "debug", ReportFormat: "yaml",
				RecordPath: "cases.yaml", StrictCycles: true, Parallel: true},
		},
		{
			name: "shorthand wins over positional",
			args: []string{"-p", "short.hcl", "other.hcl"},
			want: &app.Config{ProblemPath: "short.hcl", LogFormat: "text", LogLevel: "info", ReportFormat: "text"},
		},
		{name: "help", args: []string{"-h"}, shouldExit: true},
		{name: "no path prints usage", args: nil, shouldExit: true},
		{name: "unknown flag", args: []string{"-nope"}, wantCode: ExitUsage, wantErr: "flag provided but not defined"},
		{name: "bad log format", args: []string{"-log-format", "xml", "a.hcl"}, wantCode: ExitUsage, wantErr: "invalid log-format"},
		{name: "bad log level", args: []string{"-log-level", "trace", "a.hcl"}, wantCode: ExitUsage, wantErr: "invalid log-level"},
		{name: "bad report format", args: []string{"-report-format", "csv", "a.hcl"}, wantCode: ExitUsage, wantErr: "invalid report-format"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// --- Arrange ---
			var out bytes.Buffer

			// --- Act ---
			cfg, shouldExit, err := Parse(tc.args, &out)

			// --- Assert ---
			if tc.wantErr != "" {
				var exitErr *ExitError
				require.ErrorAs(t, err, &exitErr)
				assert.Equal(t, tc.wantCode, exitErr.Code)
				assert.Contains(t, exitErr.Message, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.shouldExit, shouldExit)
			if tc.shouldExit {
				assert.Contains(t, out.String(), "Usage:")
				return
			}
			assert.Equal(t, tc.want, cfg)
		})
	}
}

func TestParse_EnvironmentOverrides(t *testing.T) {
	// --- Arrange ---
	t.Setenv("MDAO_LOG_LEVEL", "warn")
	t.Setenv("MDAO_REPORT_FORMAT", "yaml")
	t.Setenv("MDAO_PARALLEL", "true")
	t.Setenv("MDAO_PROBLEM", "env.hcl")

	// --- Act ---
	cfg, shouldExit, err := Parse([]string{"-report-format", "text"}, &bytes.Buffer{})

	// --- Assert ---
	require.NoError(t, err)
	require.False(t, shouldExit)
	assert.Equal(t, "env.hcl", cfg.ProblemPath)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "text", cfg.ReportFormat, "an explicit flag wins over the environment")
	assert.True(t, cfg.Parallel)
}

func TestRunError(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		wantCode int
	}{
		{name: "convergence", err: fmt.Errorf("run failed: %w", &mdaoerr.ConvergenceError{Solver: "newton", Iterations: 10}), wantCode: ExitConvergence},
		{name: "setup", err: fmt.Errorf("setup failed: %w", mdaoerr.ErrMultipleSources), wantCode: ExitFailure},
		{name: "plain", err: errors.New("boom"), wantCode: ExitFailure},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var exitErr *ExitError
			require.ErrorAs(t, RunError(tc.err), &exitErr)
			assert.Equal(t, tc.wantCode, exitErr.Code)
			assert.Equal(t, tc.err.Error(), exitErr.Message)
		})
	}
	assert.NoError(t, RunError(nil))
}
