package problem

import (
	"fmt"

	"github.com/vk/mdaogrid/internal/mdaoerr"
	"github.com/vk/mdaogrid/internal/system"
	"github.com/vk/mdaogrid/internal/vars"
)

// Get returns a copy of a flat variable's values. Names are promoted names
// or full dotted paths.
func (p *Problem) Get(name string) ([]float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	vi, err := p.resolve(name)
	if err != nil {
		return nil, err
	}
	if vi.Var.Mode == vars.ModeByObj {
		return nil, fmt.Errorf("%w: %q is passed by object", mdaoerr.ErrNonNumeric, name)
	}
	return append([]float64(nil), vi.Var.Data()...), nil
}

// GetFloat returns the value of a flat variable with a single entry.
func (p *Problem) GetFloat(name string) (float64, error) {
	vals, err := p.Get(name)
	if err != nil {
		return 0, err
	}
	if len(vals) != 1 {
		return 0, fmt.Errorf("%q has %d entries, want 1", name, len(vals))
	}
	return vals[0], nil
}

// GetObj returns the value of any variable: the stored object for
// pass-by-object variables, a float64 or []float64 otherwise.
func (p *Problem) GetObj(name string) (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	vi, err := p.resolve(name)
	if err != nil {
		return nil, err
	}
	return vi.Var.Value(), nil
}

// Set writes a value. A name shared by an unknown and the params it feeds
// sets the unknown. A name shared only by unconnected params sets every one
// of them. A connected param cannot be set directly.
func (p *Problem) Set(name string, value any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ready(); err != nil {
		return err
	}
	vis, err := p.model.Resolve(name)
	if err != nil {
		return err
	}

	primary := system.Primary(vis)
	if primary.IsUnknown() {
		return assign(primary, value)
	}
	for _, vi := range vis {
		if route, ok := p.model.Source(vi); ok {
			return fmt.Errorf("%w: %s is driven by %s", mdaoerr.ErrConnectedParam, vi.Path, route.Source.Path)
		}
	}
	for _, vi := range vis {
		if err := assign(vi, value); err != nil {
			return err
		}
	}
	return nil
}

func assign(vi *system.VarInfo, value any) error {
	if err := vi.Var.Assign(value); err != nil {
		return fmt.Errorf("setting %s: %w", vi.Path, err)
	}
	return nil
}

func (p *Problem) resolve(name string) (*system.VarInfo, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	vis, err := p.model.Resolve(name)
	if err != nil {
		return nil, err
	}
	return system.Primary(vis), nil
}
