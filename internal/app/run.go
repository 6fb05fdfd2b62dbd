package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/matstage/matstage/internal/collect"
	"github.com/matstage/matstage/internal/config"
	"github.com/matstage/matstage/internal/ctxlog"
	"github.com/matstage/matstage/internal/matweb"
	"github.com/matstage/matstage/internal/measure"
	"github.com/matstage/matstage/internal/params"
	"github.com/matstage/matstage/internal/presets"
)

// summaryFileName is the result file written into a measurement's output
// directory after its energy table is computed.
const summaryFileName = "measurements.json"

// Run executes every measurement in the plan, in declaration order.
func (a *App) Run(ctx context.Context, appConfig *Config) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if appConfig.HealthcheckPort > 0 {
		a.startHealthcheckServer(appConfig.HealthcheckPort)
		defer a.closeHealthcheckServer()
	}

	library, err := a.loadPresets()
	if err != nil {
		return err
	}

	a.fetchReferenceData(ctx)

	if len(a.plan.Measurements) == 0 {
		a.logger.Warn("Plan declares no measurements, nothing to do.")
		return nil
	}

	ws := a.plan.Workspace
	if ws == nil {
		ws = &config.Workspace{}
	}

	specs := make(map[string]*config.Calibration, len(a.plan.Calibrations))
	for _, cal := range a.plan.Calibrations {
		specs[cal.Name] = cal
	}

	a.logger.Info("🚀 Starting measurement campaign.", "measurements", len(a.plan.Measurements), "dry_run", appConfig.DryRun)
	for _, m := range a.plan.Measurements {
		if err := a.runMeasurement(ctx, ws, specs, m, library, appConfig.DryRun); err != nil {
			return fmt.Errorf("measurement %s: %w", m.Name, err)
		}
	}
	a.logger.Info("🏁 Measurement campaign finished.")

	a.logger.Debug("App.Run method finished.")
	return nil
}

// runMeasurement drives one measurement through its lifecycle: build
// handles, construct the step, stage the follow-up jobs, execute them and
// collect the energy tables.
func (a *App) runMeasurement(ctx context.Context, ws *config.Workspace, specs map[string]*config.Calibration, m *config.Measurement, library *presets.Library, dryRun bool) error {
	logger := a.logger.With("measurement", m.Name, "kind", m.Kind)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Info("Measurement starting.", "calibrations", len(m.Calibrations))

	selected := make([]*config.Calibration, 0, len(m.Calibrations))
	for _, name := range m.Calibrations {
		selected = append(selected, specs[name])
	}

	stepParams, err := measurementParams(m, library)
	if err != nil {
		return err
	}

	outputName := ws.OutputArtifact
	if outputName == "" {
		outputName = collect.DefaultOutputName
	}
	outputDir := resolvePath(ws.Root, m.OutputDir)

	step, err := a.kinds.build(m.Kind, stepRequest{
		handles:   buildHandles(ws, selected),
		outputDir: outputDir,
		collector: collect.DirCollector{OutputName: outputName},
		params:    stepParams,
	})
	if err != nil {
		return err
	}

	warnings, err := step.Setup(ctx)
	if err != nil {
		return fmt.Errorf("setup: %w", err)
	}
	if len(warnings) > 0 {
		logger.Warn("Setup finished with identity warnings.", "count", len(warnings))
	}

	if dryRun {
		logger.Info("Dry run: jobs staged, skipping execution and measurements.")
		return nil
	}

	if err := step.Run(ctx); err != nil {
		return fmt.Errorf("run: %w", err)
	}

	measurer, ok := step.(measure.Measurer)
	if !ok {
		logger.Info("Measurement finished.")
		return nil
	}

	table, err := measurer.MakeMeasurements(ctx)
	if err != nil {
		return fmt.Errorf("measurements: %w", err)
	}
	return a.reportTable(logger, m, table, warnings, outputDir)
}

// measurementParams resolves the measurement's parameter record: the named
// preset first, then inline params on top.
func measurementParams(m *config.Measurement, library *presets.Library) (params.Map, error) {
	if m.Preset == "" {
		return m.Params, nil
	}
	base, err := library.Get(m.Preset)
	if err != nil {
		return params.Map{}, fmt.Errorf("resolving preset: %w", err)
	}
	return base.WithAll(m.Params.AsMap()), nil
}

// loadPresets reads the plan's preset library when one is configured.
func (a *App) loadPresets() (*presets.Library, error) {
	if a.plan.Presets == nil {
		return nil, nil
	}
	library, err := presets.Load(a.plan.Presets.Path)
	if err != nil {
		return nil, fmt.Errorf("loading presets: %w", err)
	}
	a.logger.Debug("Presets loaded.", "path", a.plan.Presets.Path, "names", library.Names())
	return library, nil
}

// fetchReferenceData pulls any configured reference documents and logs
// their energies next to the run. Failures are logged and skipped; a
// reference lookup must not abort a measurement campaign.
func (a *App) fetchReferenceData(ctx context.Context) {
	mw := a.plan.MaterialsWeb
	if mw == nil || len(mw.Materials) == 0 {
		return
	}
	client := matweb.New(mw.APIKey, mw.Endpoint)
	for _, material := range mw.Materials {
		docs, err := client.GetData(ctx, material, "", "")
		if err != nil {
			a.logger.Warn("Reference data fetch failed.", "material", material, "error", err)
			continue
		}
		a.logger.Info("Reference data fetched.", "material", material, "documents", len(docs))
		for _, doc := range docs {
			if e, ok := doc["final_energy"]; ok {
				a.logger.Info("Reference energy.", "material", material, "final_energy", e)
			}
		}
	}
}

// reportTable logs the computed tables, prints the human summary and
// persists it into the measurement's output directory.
func (a *App) reportTable(logger *slog.Logger, m *config.Measurement, table measure.EnergyTable, warnings []measure.Warning, outputDir string) error {
	if table.IsEmpty() {
		logger.Info("Measurement produced no energy table.")
		return nil
	}
	logger.Info("Energy tables computed.",
		"slabs", len(table.Slabs),
		"ligands", len(table.Ligands),
		"interfaces", len(table.Interfaces),
		"binding", len(table.Binding),
	)

	a.printSummary(m, table, warnings)
	return a.writeSummary(logger, outputDir, table)
}

// printSummary renders the human-readable result block on the app writer.
func (a *App) printSummary(m *config.Measurement, table measure.EnergyTable, warnings []measure.Warning) {
	fmt.Fprintf(a.outW, "\nMeasurement %s (%s)\n", m.Name, m.Kind)
	for _, key := range sortedKeys(table.Binding) {
		fmt.Fprintf(a.outW, "  binding   %-22s %14.6f eV\n", key, table.Binding[key])
	}
	a.printSeries("slab", table.Slabs)
	a.printSeries("ligand", table.Ligands)
	a.printSeries("interface", table.Interfaces)
	for _, w := range warnings {
		fmt.Fprintf(a.outW, "  warning: %s\n", w)
	}
}

// printSeries prints the final energy of each identity key, the value the
// binding combination consumes.
func (a *App) printSeries(role string, series map[string][]float64) {
	for _, key := range sortedKeys(series) {
		s := series[key]
		if len(s) == 0 {
			continue
		}
		fmt.Fprintf(a.outW, "  %-9s %-22s %14.6f eV (%d jobs)\n", role, key, s[len(s)-1], len(s))
	}
}

// writeSummary persists the energy table as JSON in the measurement's
// output directory.
func (a *App) writeSummary(logger *slog.Logger, outputDir string, table measure.EnergyTable) error {
	data, err := json.MarshalIndent(table, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding measurement summary: %w", err)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory %s: %w", outputDir, err)
	}
	path := filepath.Join(outputDir, summaryFileName)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing measurement summary: %w", err)
	}
	logger.Info("Measurement summary written.", "path", path)
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
