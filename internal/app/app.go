package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/matstage/matstage/internal/config"
	"github.com/matstage/matstage/internal/ctxlog"
)

// App encapsulates one measurement campaign: the loaded plan, the step-kind
// registry and the run-scoped logger.
type App struct {
	outW       io.Writer
	logger     *slog.Logger
	plan       *config.Plan
	kinds      *kindRegistry
	httpServer *http.Server
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger, a run identifier
// attached to every log line, and the plan loaded through the given loader.
func NewApp(outW io.Writer, appConfig *Config, loader config.Loader) *App {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW).
		With("run_id", uuid.NewString())
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	plan, err := loader.Load(ctx, appConfig.PlanPath)
	if err != nil {
		// A failure to load the plan is a fatal startup error.
		panic(fmt.Errorf("failed to load plan: %w", err))
	}
	logger.Debug("Plan loaded and translated into unified model.",
		"calibrations", len(plan.Calibrations),
		"measurements", len(plan.Measurements),
	)

	return &App{
		outW:   outW,
		logger: logger,
		plan:   plan,
		kinds:  defaultKinds(),
	}
}

// Plan returns the loaded plan. This is primarily for testing.
func (a *App) Plan() *config.Plan {
	return a.plan
}
