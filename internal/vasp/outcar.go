package vasp

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ErrEnergyNotFound reports an output file with no total-energy line,
// which usually means the run died before the first electronic step
// converged.
var ErrEnergyNotFound = errors.New("no total energy in output")

// FinalEnergy scans engine output for the total free energy (TOTEN) and
// returns the last occurrence, the value after the final ionic step.
func FinalEnergy(r io.Reader) (float64, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var energy float64
	found := false
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(line, "TOTEN") {
			continue
		}
		eq := strings.Index(line, "=")
		if eq < 0 {
			continue
		}
		fields := strings.Fields(line[eq+1:])
		if len(fields) == 0 {
			continue
		}
		v, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			continue
		}
		energy = v
		found = true
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	if !found {
		return 0, ErrEnergyNotFound
	}
	return energy, nil
}

// ReadFinalEnergy extracts the final total energy from the output file
// at path.
func ReadFinalEnergy(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	e, err := FinalEnergy(f)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	return e, nil
}
