package aviary

/* Unit handling. The toolkit works off a fixed conversion table rather than a
full dimensional analysis engine: every unit string a variable or data file may
carry is listed here with its dimension and its factor to the SI base of that
dimension. Conversions across dimensions fail. */

// Unitless marks a dimensionless quantity.
const Unitless = "unitless"

type unitDef struct {
	dim    string
	factor float64 // multiplier to the SI base unit of dim
}

var unitTable = map[string]unitDef{
	Unitless: {"1", 1},

	// length (base: m)
	"m":    {"length", 1},
	"km":   {"length", 1000},
	"ft":   {"length", 0.3048},
	"inch": {"length", 0.0254},
	"NM":   {"length", 1852},

	// speed (base: m/s)
	"m/s":  {"speed", 1},
	"ft/s": {"speed", 0.3048},
	"kn":   {"speed", 1852.0 / 3600},
	"km/h": {"speed", 1.0 / 3.6},

	// acceleration (base: m/s**2)
	"m/s**2":  {"accel", 1},
	"ft/s**2": {"accel", 0.3048},
	"kn/s":    {"accel", 1852.0 / 3600},

	// area (base: m**2)
	"m**2":  {"area", 1},
	"ft**2": {"area", 0.09290304},

	// mass (base: kg)
	"kg":   {"mass", 1},
	"lbm":  {"mass", 0.45359237},
	"slug": {"mass", 14.5939},

	// force (base: N)
	"N":   {"force", 1},
	"lbf": {"force", 4.4482216},

	// angle (base: rad)
	"rad": {"angle", 1},
	"deg": {"angle", 0.017453292519943295},

	// angular rate (base: rad/s)
	"rad/s": {"anglerate", 1},
	"deg/s": {"anglerate", 0.017453292519943295},

	// time (base: s)
	"s":   {"time", 1},
	"min": {"time", 60},
	"h":   {"time", 3600},

	// density (base: kg/m**3)
	"kg/m**3":    {"density", 1},
	"slug/ft**3": {"density", 515.379},

	// mass flow (base: kg/s)
	"kg/s":  {"massflow", 1},
	"lbm/s": {"massflow", 0.45359237},
	"lbm/h": {"massflow", 0.45359237 / 3600},

	// mass per distance (base: kg/m)
	"kg/m":   {"massperdist", 1},
	"lbm/NM": {"massperdist", 0.45359237 / 1852},

	// time per distance (base: s/m)
	"s/m":  {"timeperdist", 1},
	"s/NM": {"timeperdist", 1.0 / 1852},

	// time per speed gained (base: s/(m/s))
	"s/(ft/s)": {"timeperspeed", 1 / 0.3048},
	"s/kn":     {"timeperspeed", 3600 / 1852.0},

	// temperature (base: K); Rankine is a pure scale factor so the table works
	"K":    {"temperature", 1},
	"degR": {"temperature", 1.0 / 1.8},

	// pressure (base: Pa)
	"Pa":        {"pressure", 1},
	"lbf/ft**2": {"pressure", 47.880259},

	// characteristic impedance (base: kg/(m**2*s))
	"kg/(m**2*s)": {"impedance", 1},

	// lift-curve slope (base: 1/rad)
	"1/rad": {"perangle", 1},
	"1/deg": {"perangle", 1 / 0.017453292519943295},

	// shaft power and specific fuel consumption
	"hp":       {"power", 745.699872},
	"lbm/h/hp": {"sfc", 1},

	// electrical & thermal, used by the battery subsystem
	"V":        {"voltage", 1},
	"V/s":      {"voltagerate", 1},
	"A":        {"current", 1},
	"A*s":      {"charge", 1},
	"A*h":      {"charge", 3600},
	"W":        {"power", 1},
	"kW":       {"power", 1000},
	"kW*h":     {"energy", 3.6e6},
	"J/(kg*K)": {"specificheat", 1},
	"1/s":      {"rate", 1},
}

// ConvertUnits converts a value between two units of the conversion table.
// Fails with UnitIncompatibilityError if either unit is unknown or the
// dimensions differ.
func ConvertUnits(v float64, from, to string) (float64, error) {
	if from == to {
		return v, nil
	}
	f, fok := unitTable[from]
	t, tok := unitTable[to]
	if !fok || !tok || f.dim != t.dim {
		return 0, UnitIncompatibilityError{From: from, To: to}
	}
	return v * f.factor / t.factor, nil
}

// ConvertSlice converts every element of a slice between two units.
func ConvertSlice(vals []float64, from, to string) ([]float64, error) {
	if from == to {
		out := make([]float64, len(vals))
		copy(out, vals)
		return out, nil
	}
	if _, err := ConvertUnits(0, from, to); err != nil {
		return nil, err
	}
	out := make([]float64, len(vals))
	for i, v := range vals {
		out[i], _ = ConvertUnits(v, from, to)
	}
	return out, nil
}
