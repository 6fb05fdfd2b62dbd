package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/matstage/matstage/internal/hcl"
	"github.com/matstage/matstage/internal/measure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

const testContcar = `Pt slab
1.0
  3.92 0.00 0.00
  0.00 3.92 0.00
  0.00 0.00 14.00
Pt
2
Direct
  0.00 0.00 0.25
  0.50 0.50 0.35
`

// emitScript writes an OUTCAR whose energy depends on the job directory,
// so one uniform job command can stand in for distinct simulation runs.
const emitScript = `#!/bin/sh
case "$(pwd)" in
  *calibrate_surface*) e="-7.0" ;;
  *calibrate_hydrazine*) e="-1.0" ;;
  *calibrate_combo*) e="-10.0" ;;
  *) e="0.0" ;;
esac
printf '  free  energy   TOTEN  =     %s eV\n' "$e" > OUTCAR
`

// newWorkspace lays out a root with the emit script and one completed
// calibration directory per name, each holding a relaxed structure.
func newWorkspace(t *testing.T, names ...string) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "emit.sh"), []byte(emitScript), 0o755))
	for _, name := range names {
		dir := filepath.Join(root, "calibrate", name)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "CONTCAR"), []byte(testContcar), 0o644))
	}
	return root
}

// writePlanFile drops plan.hcl under root/plan and returns its path.
func writePlanFile(t *testing.T, root, content string) string {
	t.Helper()
	dir := filepath.Join(root, "plan")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, "plan.hcl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestApp(t *testing.T, planPath string, dryRun bool) (*App, *Config, *SafeBuffer) {
	t.Helper()
	buf := &SafeBuffer{}
	cfg, err := NewConfig(Config{
		PlanPath:  planPath,
		LogFormat: "text",
		LogLevel:  "debug",
		DryRun:    dryRun,
	})
	require.NoError(t, err)
	return NewApp(buf, cfg, hcl.NewLoader()), cfg, buf
}

func TestNewAppLoadsPlan(t *testing.T) {
	root := newWorkspace(t, "surface")
	planPath := writePlanFile(t, root, fmt.Sprintf(`
workspace {
  root    = %q
  job_cmd = ["sh", %q]
}

calibration "slab" "surface" {
  miller   = [1, 0, 0]
  job_dirs = ["calibrate/surface"]
}

measurement "static" "refine" {
  output_dir   = "derived"
  calibrations = ["surface"]
}
`, root, filepath.Join(root, "emit.sh")))

	app, _, _ := newTestApp(t, planPath, false)

	require.NotNil(t, app.Plan())
	assert.Len(t, app.Plan().Calibrations, 1)
	assert.Len(t, app.Plan().Measurements, 1)
}

func TestNewAppPanicsOnBadPlan(t *testing.T) {
	buf := &SafeBuffer{}
	cfg, err := NewConfig(Config{PlanPath: t.TempDir(), LogFormat: "text", LogLevel: "error"})
	require.NoError(t, err)

	require.Panics(t, func() {
		NewApp(buf, cfg, hcl.NewLoader())
	})
}

func TestAppRunStaticMeasurement(t *testing.T) {
	root := newWorkspace(t, "surface")
	planPath := writePlanFile(t, root, fmt.Sprintf(`
workspace {
  root    = %q
  job_cmd = ["sh", %q]
}

calibration "slab" "surface" {
  miller   = [1, 0, 0]
  job_dirs = ["calibrate/surface"]

  params {
    encut = 450
  }
}

measurement "static" "refine" {
  output_dir   = "derived"
  calibrations = ["surface"]
}
`, root, filepath.Join(root, "emit.sh")))

	app, cfg, buf := newTestApp(t, planPath, false)
	require.NoError(t, app.Run(context.Background(), cfg))

	jobDir := filepath.Join(root, "derived", "calibrate_surface", "STATIC")

	incar, err := os.ReadFile(filepath.Join(jobDir, "INCAR"))
	require.NoError(t, err)
	assert.Contains(t, string(incar), "NSW = 0")
	assert.Contains(t, string(incar), "ENCUT = 450")

	assert.FileExists(t, filepath.Join(jobDir, "POSCAR"))
	assert.FileExists(t, filepath.Join(jobDir, "KPOINTS"))
	assert.FileExists(t, filepath.Join(jobDir, "OUTCAR"), "job command should have produced an output")

	assert.NoFileExists(t, filepath.Join(root, "derived", summaryFileName))
	assert.Contains(t, buf.String(), "Measurement finished.")
}

func TestAppRunInterfaceMeasurement(t *testing.T) {
	root := newWorkspace(t, "surface", "hydrazine", "combo")
	planPath := writePlanFile(t, root, fmt.Sprintf(`
workspace {
  root    = %q
  job_cmd = ["sh", %q]
}

calibration "slab" "surface" {
  miller   = [1, 0, 0]
  job_dirs = ["calibrate/surface"]
}

calibration "ligand" "hydrazine" {
  formula  = "H4N2"
  job_dirs = ["calibrate/hydrazine"]
}

calibration "interface" "combo" {
  miller       = [1, 0, 0]
  formula      = "H4N2"
  ligand_count = 2
  job_dirs     = ["calibrate/combo"]
}

measurement "interface" "binding" {
  output_dir   = "derived"
  calibrations = ["surface", "hydrazine", "combo"]
}
`, root, filepath.Join(root, "emit.sh")))

	app, cfg, buf := newTestApp(t, planPath, false)
	require.NoError(t, app.Run(context.Background(), cfg))

	summaryPath := filepath.Join(root, "derived", summaryFileName)
	require.FileExists(t, summaryPath)

	data, err := os.ReadFile(summaryPath)
	require.NoError(t, err)
	var table measure.EnergyTable
	require.NoError(t, json.Unmarshal(data, &table))

	assert.Equal(t, []float64{-7.0}, table.Slabs["[1,0,0]"])
	assert.Equal(t, []float64{-1.0}, table.Ligands["H4N2"])
	assert.Equal(t, []float64{-10.0}, table.Interfaces["[1,0,0]H4N2"])
	require.Contains(t, table.Binding, "[1,0,0]H4N2")
	assert.InDelta(t, -1.0, table.Binding["[1,0,0]H4N2"], 1e-9)

	// Identity manifests land next to the derived jobs.
	comboManifest, err := os.ReadFile(filepath.Join(root, "derived", "calibrate_combo", "STATIC", "system.json"))
	require.NoError(t, err)
	var ident map[string]any
	require.NoError(t, json.Unmarshal(comboManifest, &ident))
	assert.Contains(t, ident, "hkl")
	assert.Equal(t, "H4N2", ident["ligand"])

	out := buf.String()
	assert.Contains(t, out, "Measurement binding (interface)")
	assert.Contains(t, out, "[1,0,0]H4N2")
}

func TestAppRunSolvationMeasurement(t *testing.T) {
	root := newWorkspace(t, "solv")
	wavecar := []byte("binary wavefunction")
	require.NoError(t, os.WriteFile(filepath.Join(root, "calibrate", "solv", "WAVECAR"), wavecar, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "presets.yaml"), []byte("water:\n  EB_K: 80\n  TAU: 0\n"), 0o644))

	planPath := writePlanFile(t, root, fmt.Sprintf(`
workspace {
  root    = %q
  job_cmd = ["sh", %q]
}

presets {
  path = %q
}

calibration "slab" "solv" {
  miller   = [1, 0, 0]
  job_dirs = ["calibrate/solv"]
}

measurement "solvation" "solvated" {
  output_dir   = "solvated"
  calibrations = ["solv"]
  preset       = "water"

  params {
    TAU = 0.1
  }
}
`, root, filepath.Join(root, "emit.sh"), filepath.Join(root, "presets.yaml")))

	app, cfg, buf := newTestApp(t, planPath, false)
	require.NoError(t, app.Run(context.Background(), cfg))

	jobDir := filepath.Join(root, "solvated", "calibrate_solv", "SOL")

	copied, err := os.ReadFile(filepath.Join(jobDir, "WAVECAR"))
	require.NoError(t, err)
	assert.Equal(t, wavecar, copied)

	manifestData, err := os.ReadFile(filepath.Join(jobDir, "system.json"))
	require.NoError(t, err)
	var sol map[string]float64
	require.NoError(t, json.Unmarshal(manifestData, &sol))
	assert.Equal(t, map[string]float64{"EB_K": 80, "TAU": 0.1}, sol)

	incar, err := os.ReadFile(filepath.Join(jobDir, "INCAR"))
	require.NoError(t, err)
	assert.Contains(t, string(incar), "LSOL = .TRUE.")
	assert.Contains(t, string(incar), "EB_K = 80")
	assert.Contains(t, string(incar), "TAU = 0.1")

	// Solvation derivations produce no energy table.
	assert.NoFileExists(t, filepath.Join(root, "solvated", summaryFileName))
	assert.Contains(t, buf.String(), "Measurement produced no energy table.")
}

func TestAppRunDryRun(t *testing.T) {
	root := newWorkspace(t, "surface")
	planPath := writePlanFile(t, root, fmt.Sprintf(`
workspace {
  root    = %q
  job_cmd = ["sh", %q]
}

calibration "slab" "surface" {
  miller   = [1, 0, 0]
  job_dirs = ["calibrate/surface"]
}

measurement "static" "refine" {
  output_dir   = "derived"
  calibrations = ["surface"]
}
`, root, filepath.Join(root, "emit.sh")))

	app, cfg, buf := newTestApp(t, planPath, true)
	require.NoError(t, app.Run(context.Background(), cfg))

	jobDir := filepath.Join(root, "derived", "calibrate_surface", "STATIC")
	assert.FileExists(t, filepath.Join(jobDir, "INCAR"), "dry run still stages inputs")
	assert.NoFileExists(t, filepath.Join(jobDir, "OUTCAR"), "dry run must not execute jobs")
	assert.Contains(t, buf.String(), "Dry run")
}

func TestAppRunUnknownKind(t *testing.T) {
	root := newWorkspace(t, "surface")
	planPath := writePlanFile(t, root, fmt.Sprintf(`
workspace {
  root = %q
}

calibration "slab" "surface" {
  miller   = [1, 0, 0]
  job_dirs = ["calibrate/surface"]
}

measurement "anneal" "oops" {
  output_dir   = "derived"
  calibrations = ["surface"]
}
`, root))

	app, cfg, _ := newTestApp(t, planPath, false)

	err := app.Run(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown measurement kind "anneal"`)
	assert.Contains(t, err.Error(), "interface, solvation, static")
}

func TestAppRunUnknownPreset(t *testing.T) {
	root := newWorkspace(t, "solv")
	require.NoError(t, os.WriteFile(filepath.Join(root, "presets.yaml"), []byte("water:\n  EB_K: 80\n"), 0o644))

	planPath := writePlanFile(t, root, fmt.Sprintf(`
workspace {
  root = %q
}

presets {
  path = %q
}

calibration "slab" "solv" {
  miller   = [1, 0, 0]
  job_dirs = ["calibrate/solv"]
}

measurement "solvation" "solvated" {
  output_dir   = "solvated"
  calibrations = ["solv"]
  preset       = "glycol"
}
`, root, filepath.Join(root, "presets.yaml")))

	app, cfg, _ := newTestApp(t, planPath, false)

	err := app.Run(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "glycol")
}

func TestAppRunSetupFailure(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "calibrate", "bare"), 0o755))

	planPath := writePlanFile(t, root, fmt.Sprintf(`
workspace {
  root = %q
}

calibration "slab" "bare" {
  miller   = [1, 0, 0]
  job_dirs = ["calibrate/bare"]
}

measurement "static" "refine" {
  output_dir   = "derived"
  calibrations = ["bare"]
}
`, root))

	app, cfg, _ := newTestApp(t, planPath, false)

	err := app.Run(context.Background(), cfg)
	require.Error(t, err)

	var missing *measure.MissingArtifactError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "CONTCAR", missing.Artifact)
}

func TestAppFetchesReferenceData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key123", r.Header.Get("x-api-key"))
		assert.Equal(t, "/materials/Fe2O3/vasp", r.URL.Path)
		fmt.Fprint(w, `{"valid_response": true, "response": [{"final_energy": -13.4}]}`)
	}))
	defer server.Close()

	root := t.TempDir()
	planPath := writePlanFile(t, root, fmt.Sprintf(`
materialsweb {
  api_key   = "key123"
  endpoint  = %q
  materials = ["Fe2O3"]
}
`, server.URL))

	app, cfg, buf := newTestApp(t, planPath, false)
	require.NoError(t, app.Run(context.Background(), cfg))

	out := buf.String()
	assert.Contains(t, out, "Reference data fetched.")
	assert.Contains(t, out, "-13.4")
	assert.Contains(t, out, "nothing to do")
}

func TestAppReferenceDataFailureIsNotFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"valid_response": false, "error": "no api key"}`)
	}))
	defer server.Close()

	root := t.TempDir()
	planPath := writePlanFile(t, root, fmt.Sprintf(`
materialsweb {
  api_key   = "bogus"
  endpoint  = %q
  materials = ["Fe2O3"]
}
`, server.URL))

	app, cfg, buf := newTestApp(t, planPath, false)
	require.NoError(t, app.Run(context.Background(), cfg))
	assert.Contains(t, buf.String(), "Reference data fetch failed.")
}

func TestHealthHandler(t *testing.T) {
	root := t.TempDir()
	planPath := writePlanFile(t, root, `
workspace {
  root = "unused"
}
`)

	app, _, _ := newTestApp(t, planPath, false)

	rec := httptest.NewRecorder()
	app.healthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK\n", rec.Body.String())
}

func TestNewConfigRequiresPlanPath(t *testing.T) {
	_, err := NewConfig(Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PlanPath")
}
