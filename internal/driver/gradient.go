package driver

import (
	"context"
	"slices"

	"github.com/vk/mdaogrid/internal/system"
	"gonum.org/v1/gonum/mat"
)

// Gradient returns d(response)/d(design variable) for every objective and
// constraint, in scaled units and restricted to the selected design
// variable entries.
func (d *Driver) Gradient(ctx context.Context) (map[string]map[string]*mat.Dense, error) {
	if err := d.attached(); err != nil {
		return nil, err
	}

	responses := slices.Concat(d.objectives, d.constraints)
	of := make([]string, len(responses))
	for i, r := range responses {
		of[i] = r.name
	}
	wrt := make([]string, len(d.desVars))
	for i, dv := range d.desVars {
		wrt[i] = dv.name
	}

	totals, err := d.prob.CalcGradient(ctx, of, wrt, system.Auto)
	if err != nil {
		return nil, err
	}

	out := make(map[string]map[string]*mat.Dense, len(responses))
	for _, r := range responses {
		row := make(map[string]*mat.Dense, len(d.desVars))
		for _, dv := range d.desVars {
			raw := totals.At(r.name, dv.name)
			if raw == nil {
				continue
			}
			rows, _ := raw.Dims()
			sel := dv.selected()
			scaled := mat.NewDense(rows, len(sel), nil)
			for i := 0; i < rows; i++ {
				for k, j := range sel {
					scaled.Set(i, k, raw.At(i, j)*r.scaling.scaler()/dv.bounds.scaler())
				}
			}
			row[dv.name] = scaled
		}
		out[r.name] = row
	}
	return out, nil
}
