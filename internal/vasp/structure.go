package vasp

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// SpeciesCount pairs an element symbol with how many of its atoms the
// structure holds, in POSCAR block order.
type SpeciesCount struct {
	Symbol string
	Count  int
}

// Structure is a crystal structure as found in a POSCAR or CONTCAR file.
// Selective-dynamics flags are carried through verbatim so a relaxed
// structure re-enters the next generation with its constraints intact.
type Structure struct {
	Comment   string
	Scale     float64
	Lattice   [3][3]float64
	Species   []SpeciesCount
	Selective bool
	Direct    bool
	Coords    [][3]float64
	Flags     [][]string
}

// NAtoms reports the total atom count declared by the species block.
func (s *Structure) NAtoms() int {
	n := 0
	for _, sc := range s.Species {
		n += sc.Count
	}
	return n
}

// ReadStructureFile parses the structure file at path.
func ReadStructureFile(path string) (*Structure, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	s, err := ParseStructure(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ParseStructure reads a VASP 5 format structure.
func ParseStructure(r io.Reader) (*Structure, error) {
	scanner := bufio.NewScanner(r)
	lines := make([]string, 0, 16)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(lines) < 8 {
		return nil, fmt.Errorf("structure file truncated: %d lines", len(lines))
	}

	s := &Structure{Comment: strings.TrimSpace(lines[0])}

	scale, err := strconv.ParseFloat(strings.TrimSpace(lines[1]), 64)
	if err != nil {
		return nil, fmt.Errorf("bad scale line %q: %w", lines[1], err)
	}
	s.Scale = scale

	for i := 0; i < 3; i++ {
		vec, err := parseVec3(lines[2+i])
		if err != nil {
			return nil, fmt.Errorf("bad lattice vector on line %d: %w", 3+i, err)
		}
		s.Lattice[i] = vec
	}

	symbols := strings.Fields(lines[5])
	counts := strings.Fields(lines[6])
	if len(symbols) == 0 || len(symbols) != len(counts) {
		return nil, fmt.Errorf("species line %q does not match counts line %q", lines[5], lines[6])
	}
	for i, sym := range symbols {
		n, err := strconv.Atoi(counts[i])
		if err != nil {
			return nil, fmt.Errorf("bad species count %q: %w", counts[i], err)
		}
		s.Species = append(s.Species, SpeciesCount{Symbol: sym, Count: n})
	}

	next := 7
	mode := strings.TrimSpace(lines[next])
	if len(mode) > 0 && (mode[0] == 'S' || mode[0] == 's') {
		s.Selective = true
		next++
		if next >= len(lines) {
			return nil, fmt.Errorf("structure file ends after selective dynamics line")
		}
		mode = strings.TrimSpace(lines[next])
	}
	if len(mode) == 0 {
		return nil, fmt.Errorf("missing coordinate mode line")
	}
	s.Direct = mode[0] == 'D' || mode[0] == 'd'
	next++

	want := s.NAtoms()
	if len(lines) < next+want {
		return nil, fmt.Errorf("expected %d coordinate lines, file has %d", want, len(lines)-next)
	}
	for i := 0; i < want; i++ {
		fields := strings.Fields(lines[next+i])
		if len(fields) < 3 {
			return nil, fmt.Errorf("bad coordinate line %q", lines[next+i])
		}
		var c [3]float64
		for j := 0; j < 3; j++ {
			v, err := strconv.ParseFloat(fields[j], 64)
			if err != nil {
				return nil, fmt.Errorf("bad coordinate %q: %w", fields[j], err)
			}
			c[j] = v
		}
		s.Coords = append(s.Coords, c)
		if s.Selective {
			s.Flags = append(s.Flags, fields[3:])
		}
	}
	return s, nil
}

// WriteFile renders the structure to path in VASP 5 format.
func (s *Structure) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := s.Write(f); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}

// Write renders the structure in VASP 5 format.
func (s *Structure) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	comment := s.Comment
	if comment == "" {
		comment = "matstage"
	}
	fmt.Fprintln(bw, comment)
	fmt.Fprintf(bw, "%.14f\n", s.Scale)
	for _, vec := range s.Lattice {
		fmt.Fprintf(bw, "  %20.16f %20.16f %20.16f\n", vec[0], vec[1], vec[2])
	}
	syms := make([]string, len(s.Species))
	counts := make([]string, len(s.Species))
	for i, sc := range s.Species {
		syms[i] = fmt.Sprintf("%4s", sc.Symbol)
		counts[i] = fmt.Sprintf("%4d", sc.Count)
	}
	fmt.Fprintln(bw, strings.Join(syms, " "))
	fmt.Fprintln(bw, strings.Join(counts, " "))
	if s.Selective {
		fmt.Fprintln(bw, "Selective dynamics")
	}
	if s.Direct {
		fmt.Fprintln(bw, "Direct")
	} else {
		fmt.Fprintln(bw, "Cartesian")
	}
	for i, c := range s.Coords {
		fmt.Fprintf(bw, "  %18.16f %18.16f %18.16f", c[0], c[1], c[2])
		if s.Selective && i < len(s.Flags) && len(s.Flags[i]) > 0 {
			fmt.Fprintf(bw, " %s", strings.Join(s.Flags[i], " "))
		}
		fmt.Fprintln(bw)
	}
	return bw.Flush()
}

func parseVec3(line string) ([3]float64, error) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return [3]float64{}, fmt.Errorf("want 3 components, got %q", line)
	}
	var vec [3]float64
	for i := 0; i < 3; i++ {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return [3]float64{}, err
		}
		vec[i] = v
	}
	return vec, nil
}
