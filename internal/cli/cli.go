package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
	"github.com/vk/mdaogrid/internal/app"
	"github.com/vk/mdaogrid/internal/mdaoerr"
)

// Exit codes returned by the binary.
const (
	ExitFailure     = 1
	ExitUsage       = 2
	ExitConvergence = 3
)

// EnvPrefix prefixes the environment variables that override flags.
const EnvPrefix = "MDAO"

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// RunError maps an application failure to its exit code.
func RunError(err error) error {
	if err == nil {
		return nil
	}
	code := ExitFailure
	if errors.Is(err, mdaoerr.ErrConvergence) {
		code = ExitConvergence
	}
	return &ExitError{Code: code, Message: err.Error()}
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
// Flags given on the command line win over MDAO_<FLAG> environment
// variables, which win over the defaults.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("mdaogrid", flag.ContinueOnError)
	flagSet.SetOutput(output)

	// Custom usage/help text function
	flagSet.Usage = func() {
		fmt.Fprint(output, `
mdaogrid - Assemble and solve multidisciplinary analysis models.

Usage:
  mdaogrid [options] [PROBLEM_PATH]

Arguments:
  PROBLEM_PATH
    Path to a single .hcl file or a directory containing .hcl files.

Every option can also be set through an environment variable named
MDAO_<OPTION>, with dashes turned into underscores (MDAO_LOG_LEVEL).

Options:
`)
		flagSet.PrintDefaults()
	}

	flagSet.String("problem", "", "Path to the problem file or directory.")
	flagSet.String("p", "", "Path to the problem file or directory (shorthand).")
	flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	flagSet.String("report-format", "text", "Report output format. Options: 'text' or 'yaml'.")
	flagSet.String("record", "", "Record every run to this file. A .yaml extension selects YAML, anything else a text dump.")
	flagSet.Bool("strict-cycles", false, "Fail setup when a feedback cycle is run by a single-pass solver.")
	flagSet.Bool("parallel", false, "Run independent children of single-pass groups concurrently.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: ExitUsage, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	v := newViper(flagSet)

	path := v.GetString("problem")
	if path == "" {
		path = v.GetString("p")
	}
	if path == "" && flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	slog.Debug("Problem path determined.", "path", path)

	if path == "" {
		slog.Debug("No problem path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(v.GetString("log-format"))
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: ExitUsage, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(v.GetString("log-level"))
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: ExitUsage, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	reportFormat := strings.ToLower(v.GetString("report-format"))
	if reportFormat != "text" && reportFormat != "yaml" {
		return nil, false, &ExitError{Code: ExitUsage, Message: "invalid report-format: must be 'text' or 'yaml'"}
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		ProblemPath:  path,
		LogFormat:    logFormat,
		LogLevel:     logLevel,
		ReportFormat: reportFormat,
		RecordPath:   v.GetString("record"),
		StrictCycles: v.GetBool("strict-cycles"),
		Parallel:     v.GetBool("parallel"),
	})
	if err != nil {
		return nil, false, &ExitError{Code: ExitUsage, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}

// newViper layers the parsed flags over the environment. Flag defaults are
// viper defaults and explicitly set flags are overrides.
func newViper(flagSet *flag.FlagSet) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	flagSet.VisitAll(func(f *flag.Flag) {
		v.SetDefault(f.Name, f.DefValue)
	})
	flagSet.Visit(func(f *flag.Flag) {
		v.Set(f.Name, f.Value.String())
	})
	return v
}
