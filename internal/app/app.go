package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/vk/mdaogrid/internal/config"
	"github.com/vk/mdaogrid/internal/ctxlog"
	"github.com/vk/mdaogrid/internal/registry"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW      io.Writer
	logger    *slog.Logger
	config    *Config
	registry  *registry.Registry
	model     *config.Model
	converter config.Converter
}

// NewApp is the constructor for the main application. Reports go to outW
// and logs to logW. It returns a fully initialized App instance, including
// its own isolated logger and registry.
func NewApp(outW, logW io.Writer, cfg *Config, loader config.Loader, modules ...registry.Module) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, logW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	// Load the problem into the format-agnostic model first.
	cfgModel, converter, err := loader.Load(ctx, cfg.ProblemPath)
	if err != nil {
		// A failure to load the problem is a fatal startup error.
		panic(fmt.Errorf("failed to load problem: %w", err))
	}
	logger.Debug("Problem loaded and translated into unified model.", "problem", cfgModel.Problem.Name)

	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("All Go modules registered.", "count", len(modules), "types", reg.ComponentTypes())

	// Validate the integrity of the registry.
	if err := reg.ValidateRegistry(ctx); err != nil {
		// This is a programmer error in a module, so we panic.
		panic(err)
	}
	logger.Debug("Registry validation passed.")

	return &App{
		outW:      outW,
		logger:    logger,
		config:    cfg,
		registry:  reg,
		model:     cfgModel,
		converter: converter,
	}
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}
