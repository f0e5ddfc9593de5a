package aviary

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	kitlog "github.com/go-kit/kit/log"
)

/* Propeller performance map ingestion. The map is a delimited text file with a
commented preamble, a header row and one row per operating point. Headers are
matched against a fixed alias table; unrecognized columns are skipped with a
warning. The loaded map is consumed as a function (mach, power coefficient,
advance ratio) -> thrust coefficient. */

// PropVar enumerates the recognized propeller map variables.
type PropVar uint8

const (
	// PropMach is the flight (or helical) Mach number.
	PropMach PropVar = iota
	// PropCP is the power coefficient.
	PropCP
	// PropCT is the thrust coefficient.
	PropCT
	// PropJ is the advance ratio.
	PropJ
	numPropVars
)

func (v PropVar) String() string {
	switch v {
	case PropMach:
		return "MACH"
	case PropCP:
		return "CP"
	case PropCT:
		return "CT"
	case PropJ:
		return "J"
	}
	panic("cannot stringify unknown propeller variable")
}

// Whitespace is replaced with underscores and headers lowercased before
// comparison against these aliases.
var propAliases = map[PropVar][]string{
	PropMach: {"m", "mn", "mach", "mach_number"},
	PropCP:   {"cp", "power_coefficient"},
	PropCT:   {"ct", "thrust_coefficient"},
	PropJ:    {"j", "advance_ratio"},
}

// All map variables are expected dimensionless.
var defaultPropUnits = map[PropVar]string{
	PropMach: Unitless,
	PropCP:   Unitless,
	PropCT:   Unitless,
	PropJ:    Unitless,
}

// PropellerMap holds the ingested performance table.
type PropellerMap struct {
	MachType string // "mach" or "helical_mach", from the file preamble
	// Variables maps every recognized column present in the file to the
	// canonical units its data is stored in.
	Variables map[PropVar]string
	// Data holds one column per variable; missing columns stay empty.
	Data map[PropVar][]float64
}

// LoadPropellerMap reads a propeller map file. Unknown columns are logged and
// skipped; a file with no recognized column at all fails with
// NoValidColumnsError.
func LoadPropellerMap(path string, logger kitlog.Logger) (*PropellerMap, error) {
	if logger == nil {
		logger = kitlog.NewNopLogger()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readPropellerMap(path, bufio.NewScanner(f), logger)
}

func readPropellerMap(path string, scanner *bufio.Scanner, logger kitlog.Logger) (*PropellerMap, error) {
	pm := &PropellerMap{
		MachType:  "mach",
		Variables: make(map[PropVar]string),
		Data:      make(map[PropVar][]float64),
	}
	for v := PropVar(0); v < numPropVars; v++ {
		pm.Data[v] = []float64{}
	}

	var header []string
	colVar := make(map[int]PropVar)
	colKnown := make(map[int]bool)
	colUnits := make(map[int]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			// Preamble; the mach_type token identifies helical-Mach maps.
			if fields := strings.Fields(strings.TrimPrefix(line, "#")); len(fields) >= 3 && fields[0] == "mach_type" {
				pm.MachType = fields[2]
			}
			continue
		}
		cells := strings.Split(line, ",")
		if header == nil {
			header = cells
			for idx, cell := range cells {
				name, units := splitHeaderCell(cell)
				v, recognized := matchPropAlias(name)
				if !recognized {
					logger.Log("level", "warning", "subsys", "propmap", "file", path,
						"message", fmt.Sprintf("header <%s> was not recognized, and will be skipped", name))
					continue
				}
				if units != "" && units != defaultPropUnits[v] {
					if _, err := ConvertUnits(0, units, defaultPropUnits[v]); err != nil {
						return nil, fmt.Errorf("<%s>: units of %q provided for <%s> are not compatible with expected units of %s: %w",
							path, units, v, defaultPropUnits[v], err)
					}
				}
				colVar[idx] = v
				colKnown[idx] = true
				if units == "" {
					units = defaultPropUnits[v]
				}
				colUnits[idx] = units
				pm.Variables[v] = defaultPropUnits[v]
			}
			if len(pm.Variables) == 0 {
				return nil, NoValidColumnsError{File: path}
			}
			continue
		}
		for idx, cell := range cells {
			if !colKnown[idx] {
				continue
			}
			val, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, fmt.Errorf("<%s>: bad value %q for <%s>: %w", path, strings.TrimSpace(cell), colVar[idx], err)
			}
			v := colVar[idx]
			if units := colUnits[idx]; units != defaultPropUnits[v] {
				val, _ = ConvertUnits(val, units, defaultPropUnits[v])
			}
			pm.Data[v] = append(pm.Data[v], val)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if header == nil {
		return nil, NoValidColumnsError{File: path}
	}
	return pm, nil
}

// DefaultPropellerMap returns a coarse constant-speed propeller table, usable
// when no map file is supplied. Efficiency peaks near an advance ratio of one
// and falls off at high power loading, which is enough to exercise the full
// balance machinery.
func DefaultPropellerMap() *PropellerMap {
	pm := &PropellerMap{
		MachType: "mach",
		Variables: map[PropVar]string{
			PropMach: Unitless, PropCP: Unitless, PropCT: Unitless, PropJ: Unitless,
		},
		Data: make(map[PropVar][]float64),
	}
	machs := []float64{0.0, 0.25, 0.5, 0.75}
	cps := []float64{0.1, 0.5, 1.0, 2.0, 4.0}
	js := []float64{0.5, 1.0, 2.0, 3.0, 4.0}
	for _, m := range machs {
		for _, cp := range cps {
			for _, j := range js {
				eta := 0.88 - 0.10*math.Abs(j-1.5) - 0.2*math.Max(0, m-0.6)
				if eta < 0.3 {
					eta = 0.3
				}
				// CT saturates for heavily loaded props near the static point.
				ct := math.Min(eta*cp/j, 1.0)
				pm.Data[PropMach] = append(pm.Data[PropMach], m)
				pm.Data[PropCP] = append(pm.Data[PropCP], cp)
				pm.Data[PropJ] = append(pm.Data[PropJ], j)
				pm.Data[PropCT] = append(pm.Data[PropCT], ct)
			}
		}
	}
	return pm
}

// splitHeaderCell separates "name (units)" into its parts.
func splitHeaderCell(cell string) (name, units string) {
	cell = strings.TrimSpace(cell)
	if open := strings.Index(cell, "("); open >= 0 {
		if end := strings.Index(cell[open:], ")"); end > 0 {
			units = strings.TrimSpace(cell[open+1 : open+end])
			cell = strings.TrimSpace(cell[:open])
		}
	}
	name = strings.ToLower(strings.ReplaceAll(cell, " ", "_"))
	return name, units
}

func matchPropAlias(name string) (PropVar, bool) {
	for v, aliases := range propAliases {
		for _, a := range aliases {
			if a == name {
				return v, true
			}
		}
	}
	return 0, false
}

// ThrustCoefficient interpolates the map at an operating point with inverse
// distance weighting over the table rows; dimensions absent from the file are
// ignored. Distances are normalized per dimension by the table span and
// weighted with the fourth power, so the interpolant stays local around the
// table rows. An exact table point is returned as is.
func (pm *PropellerMap) ThrustCoefficient(mach, cp, j float64) float64 {
	ct := pm.Data[PropCT]
	if len(ct) == 0 {
		return 0
	}
	query := []struct {
		v     PropVar
		want  float64
		scale float64
	}{
		{PropMach, mach, 1},
		{PropCP, cp, 1},
		{PropJ, j, 1},
	}
	for qi := range query {
		col := pm.Data[query[qi].v]
		if len(col) != len(ct) {
			continue
		}
		lo, hi := col[0], col[0]
		for _, v := range col {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		if hi > lo {
			query[qi].scale = hi - lo
		}
	}
	var wsum, vsum float64
	for i := range ct {
		d2 := 0.0
		for _, q := range query {
			col := pm.Data[q.v]
			if len(col) != len(ct) {
				continue
			}
			d := (col[i] - q.want) / q.scale
			d2 += d * d
		}
		if d2 == 0 {
			return ct[i]
		}
		w := 1 / (d2 * d2)
		wsum += w
		vsum += w * ct[i]
	}
	return vsum / wsum
}

// interpolator adapts the map to the (mach, cp, j) -> ct contract the
// propulsion builder consumes.
func (pm *PropellerMap) interpolator() func(mach, cp, j float64) float64 {
	return pm.ThrustCoefficient
}
