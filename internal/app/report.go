package app

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"
)

// Report is the outcome of one application run.
type Report struct {
	Problem     string            `yaml:"problem"`
	State       string            `yaml:"state"`
	Iterations  int               `yaml:"iterations"`
	Norm        float64           `yaml:"norm"`
	Error       string            `yaml:"error,omitempty"`
	Diagnostics []string          `yaml:"diagnostics,omitempty"`
	Unknowns    map[string]any    `yaml:"unknowns"`
	Derivatives *DerivativeReport `yaml:"derivatives,omitempty"`
	Driver      *DriverReport     `yaml:"driver,omitempty"`
}

// DerivativeReport holds the blocks of a total-derivative query.
type DerivativeReport struct {
	Mode   string            `yaml:"mode"`
	Blocks []DerivativeBlock `yaml:"blocks"`
}

// DerivativeBlock is d(Of)/d(Wrt) as rows.
type DerivativeBlock struct {
	Of   string      `yaml:"of"`
	Wrt  string      `yaml:"wrt"`
	Rows [][]float64 `yaml:"rows,flow"`
}

// DriverReport holds the scaled driver quantities after the run.
type DriverReport struct {
	DesVars     map[string][]float64 `yaml:"desvars,omitempty"`
	Objectives  map[string][]float64 `yaml:"objectives,omitempty"`
	Constraints map[string][]float64 `yaml:"constraints,omitempty"`
	Gradient    []DerivativeBlock    `yaml:"gradient,omitempty"`
}

// Block returns the derivative block for a pair, if reported.
func (d *DerivativeReport) Block(of, wrt string) (DerivativeBlock, bool) {
	for _, b := range d.Blocks {
		if b.Of == of && b.Wrt == wrt {
			return b, true
		}
	}
	return DerivativeBlock{}, false
}

func newBlock(of, wrt string, m *mat.Dense) DerivativeBlock {
	r, _ := m.Dims()
	rows := make([][]float64, r)
	for i := range rows {
		rows[i] = slices.Clone(m.RawRowView(i))
	}
	return DerivativeBlock{Of: of, Wrt: wrt, Rows: rows}
}

func writeReport(w io.Writer, format string, r *Report) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encoding report: %w", err)
		}
		return enc.Close()
	}
	_, err := io.WriteString(w, r.text())
	return err
}

func (r *Report) text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Problem %s: %s after %d iterations (norm %g)\n", r.Problem, r.State, r.Iterations, r.Norm)
	if r.Error != "" {
		fmt.Fprintf(&b, "Error: %s\n", r.Error)
	}
	if len(r.Diagnostics) > 0 {
		b.WriteString("Diagnostics:\n")
		for _, d := range r.Diagnostics {
			fmt.Fprintf(&b, "  %s\n", d)
		}
	}
	b.WriteString("Unknowns:\n")
	for _, name := range slices.Sorted(maps.Keys(r.Unknowns)) {
		fmt.Fprintf(&b, "  %s = %v\n", name, r.Unknowns[name])
	}
	if r.Derivatives != nil {
		fmt.Fprintf(&b, "Derivatives (%s):\n", r.Derivatives.Mode)
		writeBlocks(&b, r.Derivatives.Blocks)
	}
	if d := r.Driver; d != nil {
		b.WriteString("Driver:\n")
		writeScaled(&b, "desvar", d.DesVars)
		writeScaled(&b, "objective", d.Objectives)
		writeScaled(&b, "constraint", d.Constraints)
		writeBlocks(&b, d.Gradient)
	}
	return b.String()
}

func writeBlocks(b *strings.Builder, blocks []DerivativeBlock) {
	for _, blk := range blocks {
		fmt.Fprintf(b, "  d(%s)/d(%s) = %v\n", blk.Of, blk.Wrt, blk.Rows)
	}
}

func writeScaled(b *strings.Builder, label string, values map[string][]float64) {
	for _, name := range slices.Sorted(maps.Keys(values)) {
		fmt.Fprintf(b, "  %s %s = %v\n", label, name, values[name])
	}
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
