package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/vk/boxmotion/internal/config"
	"github.com/vk/boxmotion/internal/ctxlog"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config
	model  *config.Model

	levels    map[string]*level
	transfers []*transferPlan

	httpServer *http.Server
	healthAddr string
	completed  atomic.Int32
	report     *Report
}

// NewApp is the constructor for the main application. It loads the scenario
// and builds every layout it declares. A scenario that cannot be loaded or
// resolved is a fatal startup error and panics.
func NewApp(outW io.Writer, cfg *Config, loader config.Loader) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	model, err := loader.Load(ctx, cfg.ScenarioPath)
	if err != nil {
		panic(fmt.Errorf("failed to load scenario: %w", err))
	}
	logger.Debug("Scenario loaded into unified model.", "layouts", len(model.Layouts), "transfers", len(model.Transfers))

	a := &App{
		outW:   outW,
		logger: logger,
		config: cfg,
		model:  model,
	}
	if err := a.resolve(ctx); err != nil {
		panic(fmt.Errorf("failed to resolve scenario: %w", err))
	}
	logger.Debug("Scenario resolved.", "levels", len(a.levels), "transfers", len(a.transfers))
	return a
}

// Model returns the loaded scenario. This is primarily for testing.
func (a *App) Model() *config.Model {
	return a.model
}

// Report returns the outcome of the last Run, or nil.
func (a *App) Report() *Report {
	return a.report
}
