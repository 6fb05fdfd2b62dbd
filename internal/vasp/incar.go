package vasp

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/matstage/matstage/internal/params"
)

// defaultIonicSteps is the NSW value used when ionic relaxation is
// requested without an explicit step count.
const defaultIonicSteps = 50

var canonicalTags = map[string]string{
	"encut":  "ENCUT",
	"ediff":  "EDIFF",
	"ediffg": "EDIFFG",
	"sigma":  "SIGMA",
	"ismear": "ISMEAR",
	"ibrion": "IBRION",
	"isif":   "ISIF",
	"system": "SYSTEM",
	"prec":   "PREC",
	"algo":   "ALGO",
	"lwave":  "LWAVE",
	"lcharg": "LCHARG",
	"npar":   "NPAR",
	"kpar":   "KPAR",
}

// RenderIncar translates an input parameter map into INCAR text.
// relax_ions and implicit_solvent are behavioral switches: they decide
// NSW and LSOL rather than appearing under their own names. All other
// lowercase keys map through canonicalTags or are uppercased as-is, and
// uppercase keys are treated as literal engine tags.
func RenderIncar(p params.Map, w io.Writer) error {
	tags := map[string]string{}

	relax, hasRelax := p.Bool(params.KeyRelaxIons)
	if hasRelax {
		if relax {
			steps := defaultIonicSteps
			if v, ok := p.Float(params.KeyIonicSteps); ok {
				steps = int(v)
			}
			tags["NSW"] = fmt.Sprintf("%d", steps)
		} else {
			tags["NSW"] = "0"
		}
	}
	if sol, ok := p.Bool(params.KeyImplicitSolvent); ok {
		tags["LSOL"] = formatIncarValue(sol)
	}

	for _, key := range p.Keys() {
		if key == params.KeyRelaxIons || key == params.KeyImplicitSolvent || key == params.KeyIonicSteps {
			continue
		}
		v, _ := p.Get(key)
		tags[incarTag(key)] = formatIncarValue(v)
	}

	names := make([]string, 0, len(tags))
	for name := range tags {
		if name == "SYSTEM" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	if _, ok := tags["SYSTEM"]; ok {
		names = append([]string{"SYSTEM"}, names...)
	}

	bw := bufio.NewWriter(w)
	for _, name := range names {
		fmt.Fprintf(bw, "%s = %s\n", name, tags[name])
	}
	return bw.Flush()
}

// WriteIncar renders the parameter map to the INCAR file in dir.
func WriteIncar(dir string, p params.Map) error {
	f, err := os.Create(dir + "/INCAR")
	if err != nil {
		return err
	}
	if err := RenderIncar(p, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func incarTag(key string) string {
	if tag, ok := canonicalTags[key]; ok {
		return tag
	}
	return strings.ToUpper(key)
}

func formatIncarValue(v any) string {
	switch t := v.(type) {
	case bool:
		if t {
			return ".TRUE."
		}
		return ".FALSE."
	case float64:
		return trimFloat(t)
	case float32:
		return trimFloat(float64(t))
	case int:
		return fmt.Sprintf("%d", t)
	case int64:
		return fmt.Sprintf("%d", t)
	case string:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}

// trimFloat renders whole-valued floats without a trailing .0 so that
// integer-like tags read the way hand-written input decks do.
func trimFloat(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}
