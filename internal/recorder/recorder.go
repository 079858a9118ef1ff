// Package recorder captures the state of a model after each run.
package recorder

import (
	"context"
	"time"
)

// Metadata describes the model being recorded. It is passed once, before
// the first case.
type Metadata struct {
	ProblemID string    `yaml:"problem_id"`
	Name      string    `yaml:"name,omitempty"`
	Vars      []VarMeta `yaml:"vars"`
}

// VarMeta describes one variable by its full path.
type VarMeta struct {
	Path     string `yaml:"path"`
	Promoted string `yaml:"promoted,omitempty"`
	Kind     string `yaml:"kind"`
	Shape    []int  `yaml:"shape,omitempty,flow"`
	ByObj    bool   `yaml:"by_obj,omitempty"`
}

// Case is the state of the model after one run. Values are keyed by full
// path: scalars as float64, arrays as []float64, pass-by-object values as
// stored.
type Case struct {
	ID        string         `yaml:"id"`
	ProblemID string         `yaml:"problem_id"`
	Iteration int            `yaml:"iteration"`
	Timestamp time.Time      `yaml:"timestamp"`
	Params    map[string]any `yaml:"params"`
	Unknowns  map[string]any `yaml:"unknowns"`
	Resids    map[string]any `yaml:"resids"`
	Success   bool           `yaml:"success"`
	Message   string         `yaml:"message,omitempty"`
}

// Recorder receives cases from a Problem.
type Recorder interface {
	Startup(meta Metadata) error
	Record(ctx context.Context, c Case) error
	Close() error
}
