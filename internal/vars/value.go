package vars

import (
	"fmt"
	"slices"

	"github.com/vk/mdaogrid/internal/mdaoerr"
	"gonum.org/v1/gonum/mat"
)

// ToFlat converts a numeric value into flat storage and its shape.
func ToFlat(value any) ([]float64, []int, error) {
	switch v := value.(type) {
	case float64:
		return []float64{v}, []int{1}, nil
	case float32:
		return []float64{float64(v)}, []int{1}, nil
	case int:
		return []float64{float64(v)}, []int{1}, nil
	case []float64:
		if len(v) == 0 {
			return nil, nil, fmt.Errorf("%w: empty array", mdaoerr.ErrNonNumeric)
		}
		return slices.Clone(v), []int{len(v)}, nil
	case [][]float64:
		return fromRows(v)
	case mat.Vector:
		n := v.Len()
		if n == 0 {
			return nil, nil, fmt.Errorf("%w: empty vector", mdaoerr.ErrNonNumeric)
		}
		out := make([]float64, n)
		for i := range out {
			out[i] = v.AtVec(i)
		}
		return out, []int{n}, nil
	case mat.Matrix:
		r, c := v.Dims()
		out := make([]float64, 0, r*c)
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				out = append(out, v.At(i, j))
			}
		}
		return out, []int{r, c}, nil
	default:
		return nil, nil, fmt.Errorf("%w: unsupported type %T", mdaoerr.ErrNonNumeric, value)
	}
}

func fromRows(rows [][]float64) ([]float64, []int, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, nil, fmt.Errorf("%w: empty matrix", mdaoerr.ErrNonNumeric)
	}
	cols := len(rows[0])
	out := make([]float64, 0, len(rows)*cols)
	for i, row := range rows {
		if len(row) != cols {
			return nil, nil, fmt.Errorf("%w: row %d has %d columns, want %d", mdaoerr.ErrNonNumeric, i, len(row), cols)
		}
		out = append(out, row...)
	}
	return out, []int{len(rows), cols}, nil
}

// shapeFromMeta reads the reserved shape key.
func shapeFromMeta(meta Meta) ([]int, bool, error) {
	raw, ok := meta[MetaShape]
	if !ok {
		return nil, false, nil
	}
	var shape []int
	switch s := raw.(type) {
	case int:
		shape = []int{s}
	case []int:
		shape = slices.Clone(s)
	default:
		return nil, true, fmt.Errorf("%w: shape must be an int or []int, got %T", mdaoerr.ErrNonNumeric, raw)
	}
	if len(shape) == 0 {
		return nil, true, fmt.Errorf("%w: shape must have at least one dimension", mdaoerr.ErrNonNumeric)
	}
	for _, d := range shape {
		if d <= 0 {
			return nil, true, fmt.Errorf("%w: shape %v has a non-positive dimension", mdaoerr.ErrNonNumeric, shape)
		}
	}
	return shape, true, nil
}

func shapeSize(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

func passByObj(meta Meta) bool {
	b, ok := meta[MetaPassByObj].(bool)
	return ok && b
}

func sizeError(name string, shape []int, got int) error {
	return &mdaoerr.ShapeMismatchError{
		Target:      name,
		TargetShape: shape,
		Detail:      fmt.Sprintf("%q has shape %v (size %d), got %d values", name, shape, shapeSize(shape), got),
	}
}
