package problem

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/vk/mdaogrid/internal/recorder"
	"github.com/vk/mdaogrid/internal/vars"
)

func (p *Problem) metadata() recorder.Metadata {
	meta := recorder.Metadata{ProblemID: p.id, Name: p.name}
	for _, vi := range p.model.Vars() {
		kind := vi.Var.Kind.String()
		if vi.Var.State {
			kind = "state"
		}
		meta.Vars = append(meta.Vars, recorder.VarMeta{
			Path:     vi.Path,
			Promoted: vi.Promoted,
			Kind:     kind,
			Shape:    vi.Var.Shape(),
			ByObj:    vi.Var.Mode == vars.ModeByObj,
		})
	}
	return meta
}

// snapshot captures every variable keyed by full path.
func (p *Problem) snapshot(runErr error) recorder.Case {
	c := recorder.Case{
		ID:        uuid.NewString(),
		ProblemID: p.id,
		Iteration: p.iteration,
		Timestamp: time.Now().UTC(),
		Params:    make(map[string]any),
		Unknowns:  make(map[string]any),
		Resids:    make(map[string]any),
		Success:   runErr == nil,
	}
	if runErr != nil {
		c.Message = runErr.Error()
	}

	for _, vi := range p.model.Vars() {
		if !vi.IsUnknown() {
			c.Params[vi.Path] = vi.Var.Value()
			continue
		}
		c.Unknowns[vi.Path] = vi.Var.Value()
		if res, ok := vi.Comp.Registry().Residual(vi.Var.Name); ok {
			c.Resids[vi.Path] = res.Value()
		}
	}
	return c
}

func (p *Problem) record(ctx context.Context, runErr error) error {
	if len(p.recorders) == 0 {
		return nil
	}
	c := p.snapshot(runErr)

	var result *multierror.Error
	for _, r := range p.recorders {
		if err := r.Record(ctx, c); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
