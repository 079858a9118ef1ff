package app

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/mdaogrid/internal/config"
	"github.com/vk/mdaogrid/internal/registry"
	"github.com/vk/mdaogrid/internal/system"
)

// stubLoader returns a fixed model or error without reading any file.
type stubLoader struct {
	model *config.Model
	err   error
}

func (l *stubLoader) Load(context.Context, ...string) (*config.Model, config.Converter, error) {
	return l.model, nil, l.err
}

// badOptionsModule registers a type whose options are not a struct pointer.
type badOptionsModule struct{}

func (badOptionsModule) Register(r *registry.Registry) {
	r.RegisterComponent(&registry.ComponentType{
		Name:       "bad",
		NewOptions: func() any { return 42 },
		Build:      func(context.Context, any) (*system.Component, error) { return nil, nil },
	})
}

func TestNewApp(t *testing.T) {
	emptyModel := &config.Model{Problem: &config.Problem{Name: "empty", Root: &config.Group{}}}

	t.Run("registers the core modules by default", func(t *testing.T) {
		a := NewApp(io.Discard, io.Discard, &Config{ProblemPath: "p.hcl"}, &stubLoader{model: emptyModel})
		assert.Equal(t, []string{"exec", "indep", "linear_system"}, a.Registry().ComponentTypes())
	})

	t.Run("panics when loading fails", func(t *testing.T) {
		loader := &stubLoader{err: errors.New("boom")}
		assert.PanicsWithError(t, "failed to load problem: boom", func() {
			NewApp(io.Discard, io.Discard, &Config{ProblemPath: "p.hcl"}, loader)
		})
	})

	t.Run("panics when the registry is invalid", func(t *testing.T) {
		defer func() {
			r := recover()
			require.NotNil(t, r, "NewApp should panic")
			err, ok := r.(error)
			require.True(t, ok)
			assert.Contains(t, err.Error(), "registry validation failed")
		}()
		NewApp(io.Discard, io.Discard, &Config{ProblemPath: "p.hcl"}, &stubLoader{model: emptyModel}, badOptionsModule{})
	})
}
