package vasp

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/matstage/matstage/internal/params"
)

// defaultKGrid is the Monkhorst-Pack mesh used when a job does not
// choose its own sampling density.
var defaultKGrid = [3]int{4, 4, 4}

// RenderKpoints writes an automatic Monkhorst-Pack KPOINTS file. The
// grid comes from the kpoints parameter when present (a sequence of
// three numbers), otherwise defaultKGrid.
func RenderKpoints(p params.Map, w io.Writer) error {
	grid := defaultKGrid
	if v, ok := p.Get("kpoints"); ok {
		g, err := gridFromValue(v)
		if err != nil {
			return err
		}
		grid = g
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "Automatic mesh")
	fmt.Fprintln(bw, "0")
	fmt.Fprintln(bw, "Monkhorst-Pack")
	fmt.Fprintf(bw, "%d %d %d\n", grid[0], grid[1], grid[2])
	fmt.Fprintln(bw, "0 0 0")
	return bw.Flush()
}

// WriteKpoints renders the sampling grid to the KPOINTS file in dir.
func WriteKpoints(dir string, p params.Map) error {
	f, err := os.Create(dir + "/KPOINTS")
	if err != nil {
		return err
	}
	if err := RenderKpoints(p, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func gridFromValue(v any) ([3]int, error) {
	var grid [3]int
	switch seq := v.(type) {
	case []int:
		if len(seq) != 3 {
			return grid, fmt.Errorf("kpoints wants 3 values, got %d", len(seq))
		}
		copy(grid[:], seq)
	case []any:
		if len(seq) != 3 {
			return grid, fmt.Errorf("kpoints wants 3 values, got %d", len(seq))
		}
		for i, e := range seq {
			switch n := e.(type) {
			case int:
				grid[i] = n
			case int64:
				grid[i] = int(n)
			case float64:
				grid[i] = int(n)
			default:
				return grid, fmt.Errorf("kpoints element %v is not a number", e)
			}
		}
	case []float64:
		if len(seq) != 3 {
			return grid, fmt.Errorf("kpoints wants 3 values, got %d", len(seq))
		}
		for i, n := range seq {
			grid[i] = int(n)
		}
	default:
		return grid, fmt.Errorf("kpoints value %v is not a sequence", v)
	}
	return grid, nil
}
