package app

import (
	"errors"
	"fmt"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	ProblemPath string // hcl file or directory

	LogFormat    string
	LogLevel     string
	ReportFormat string // text or yaml
	// RecordPath adds a recorder next to any declared in the problem file.
	// A .yaml or .yml extension selects the YAML recorder, anything else
	// the text dump.
	RecordPath   string
	StrictCycles bool
	Parallel     bool
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.ProblemPath == "" {
		return nil, errors.New("ProblemPath is a required configuration field and cannot be empty")
	}

	switch cfg.ReportFormat {
	case "":
		cfg.ReportFormat = "text"
	case "text", "yaml":
	default:
		return nil, fmt.Errorf("ReportFormat must be 'text' or 'yaml', got %q", cfg.ReportFormat)
	}

	return &cfg, nil
}
