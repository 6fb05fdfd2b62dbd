package calib

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matstage/matstage/internal/identity"
	"github.com/matstage/matstage/internal/measure"
	"github.com/matstage/matstage/internal/params"
)

const testStructure = `relaxed slab
1.0
  3.0 0.0 0.0
  0.0 3.0 0.0
  0.0 0.0 20.0
 Pt
 2
Direct
  0.0 0.0 0.1
  0.5 0.5 0.2
`

func TestArchiveJobs(t *testing.T) {
	done := []measure.JobRef{{Name: "relax", Dir: "/runs/relax"}}
	c := New(Config{Name: "slab100", Jobs: done})

	assert.Equal(t, done, c.CurrentJobs())
	assert.Empty(t, c.PriorJobs())

	c.ArchiveJobs()
	assert.Equal(t, done, c.PriorJobs())
	assert.Empty(t, c.CurrentJobs())
}

func TestAddJobWritesEngineInputs(t *testing.T) {
	root := t.TempDir()
	contcar := filepath.Join(root, "CONTCAR")
	require.NoError(t, os.WriteFile(contcar, []byte(testStructure), 0o644))

	c := New(Config{
		Name:   "slab100",
		Role:   identity.RoleSlab,
		Params: params.FromMap(map[string]any{"relax_ions": false, "encut": 450.0}),
	})
	require.NoError(t, c.LoadStructure(contcar))

	jobDir := filepath.Join(root, "slab_relax", "STATIC")
	require.NoError(t, c.AddJob(context.Background(), jobDir))

	incar, err := os.ReadFile(filepath.Join(jobDir, "INCAR"))
	require.NoError(t, err)
	assert.Equal(t, "ENCUT = 450\nNSW = 0\n", string(incar))

	kpoints, err := os.ReadFile(filepath.Join(jobDir, "KPOINTS"))
	require.NoError(t, err)
	assert.Contains(t, string(kpoints), "Monkhorst-Pack")

	poscar, err := os.ReadFile(filepath.Join(jobDir, "POSCAR"))
	require.NoError(t, err)
	assert.Contains(t, string(poscar), "relaxed slab")

	require.Len(t, c.CurrentJobs(), 1)
	assert.Equal(t, measure.JobRef{Name: "slab_relax/STATIC", Dir: jobDir}, c.CurrentJobs()[0])
}

func TestAddJobWithoutStructure(t *testing.T) {
	jobDir := filepath.Join(t.TempDir(), "relax", "SOL")
	c := New(Config{Name: "slab100", Params: params.FromMap(map[string]any{"implicit_solvent": true})})

	require.NoError(t, c.AddJob(context.Background(), jobDir))

	_, err := os.Stat(filepath.Join(jobDir, "POSCAR"))
	assert.True(t, os.IsNotExist(err), "restart jobs carry no structure")
	incar, err := os.ReadFile(filepath.Join(jobDir, "INCAR"))
	require.NoError(t, err)
	assert.Equal(t, "LSOL = .TRUE.\n", string(incar))
}

func TestLoadStructureMissing(t *testing.T) {
	c := New(Config{Name: "slab100"})
	err := c.LoadStructure(filepath.Join(t.TempDir(), "CONTCAR"))
	assert.Error(t, err)
}

func TestRunExecutesPerJobDirectory(t *testing.T) {
	root := t.TempDir()
	dir1 := filepath.Join(root, "a")
	dir2 := filepath.Join(root, "b")
	c := New(Config{
		Name:   "bulk",
		JobCmd: []string{"sh", "-c", "pwd > ran.txt"},
	})
	require.NoError(t, c.AddJob(context.Background(), dir1))
	require.NoError(t, c.AddJob(context.Background(), dir2))

	require.NoError(t, c.Run(context.Background()))

	for _, dir := range []string{dir1, dir2} {
		ran, err := os.ReadFile(filepath.Join(dir, "ran.txt"))
		require.NoError(t, err)
		assert.Contains(t, string(ran), filepath.Base(dir),
			"the command must run with the job directory as working dir")
	}
}

func TestRunWithoutCommand(t *testing.T) {
	c := New(Config{Name: "bulk"})
	require.NoError(t, c.AddJob(context.Background(), filepath.Join(t.TempDir(), "a")))

	err := c.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no job command")
}

func TestRunCommandFailure(t *testing.T) {
	c := New(Config{
		Name:   "bulk",
		JobCmd: []string{"sh", "-c", "echo broken input >&2; exit 3"},
	})
	require.NoError(t, c.AddJob(context.Background(), filepath.Join(t.TempDir(), "a")))

	err := c.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken input")
}

func TestRunWaitsForArtifact(t *testing.T) {
	c := New(Config{
		Name: "bulk",
		// The command backgrounds the real work, like a queue submission.
		// Redirecting keeps the detached child from holding the pipes open.
		JobCmd:      []string{"sh", "-c", "(sleep 0.1 && echo done > OUTCAR) > /dev/null 2>&1 &"},
		WaitFor:     "OUTCAR",
		WaitTimeout: 5 * time.Second,
	})
	dir := filepath.Join(t.TempDir(), "a")
	require.NoError(t, c.AddJob(context.Background(), dir))

	require.NoError(t, c.Run(context.Background()))
	_, err := os.Stat(filepath.Join(dir, "OUTCAR"))
	assert.NoError(t, err, "Run must not return before the artifact exists")
}

func TestRunWaitTimeout(t *testing.T) {
	c := New(Config{
		Name:        "bulk",
		JobCmd:      []string{"true"},
		WaitFor:     "OUTCAR",
		WaitTimeout: 100 * time.Millisecond,
	})
	require.NoError(t, c.AddJob(context.Background(), filepath.Join(t.TempDir(), "a")))

	err := c.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OUTCAR")
}

func TestAwaitFileAlreadyPresent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "OUTCAR")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	assert.NoError(t, awaitFile(context.Background(), path, time.Second))
}

func TestAwaitFileCreatedLate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "OUTCAR")
	go func() {
		time.Sleep(50 * time.Millisecond)
		os.WriteFile(path, []byte("x"), 0o644)
	}()

	assert.NoError(t, awaitFile(context.Background(), path, 5*time.Second))
}

func TestAwaitFileContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	err := awaitFile(ctx, filepath.Join(t.TempDir(), "OUTCAR"), 5*time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestJobName(t *testing.T) {
	testCases := []struct {
		dir      string
		expected string
	}{
		{dir: "/out/encut_400_0/STATIC", expected: "encut_400_0/STATIC"},
		{dir: "/out/encut_500_0/STATIC", expected: "encut_500_0/STATIC"},
		{dir: "relax", expected: "relax"},
	}

	for _, tc := range testCases {
		t.Run(tc.dir, func(t *testing.T) {
			assert.Equal(t, tc.expected, jobName(tc.dir))
		})
	}
}
