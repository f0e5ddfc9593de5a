package aviary

/* Subsystem plugin boundary. External physics models conform to
SubsystemBuilder; the phase assembler only ever sees the built instances and
their declared variable names. Routing into solver sub-scopes is decided by the
capability tag, never by inspecting the concrete type. */

// SubsystemType tags the capability of a subsystem for solver-scope routing.
type SubsystemType uint8

const (
	// SubsystemOther goes into the top-level phase scope.
	SubsystemOther SubsystemType = iota
	// SubsystemAerodynamics goes into the control-iteration scope.
	SubsystemAerodynamics
	// SubsystemPropulsion goes into the throttle-balance scope.
	SubsystemPropulsion
	// SubsystemBattery is routed like Other but identifies energy-storage models.
	SubsystemBattery
)

func (st SubsystemType) String() string {
	switch st {
	case SubsystemAerodynamics:
		return "aerodynamics"
	case SubsystemPropulsion:
		return "propulsion"
	case SubsystemBattery:
		return "battery"
	case SubsystemOther:
		return "other"
	}
	panic("cannot stringify unknown subsystem type")
}

// MissionMethod selects the fidelity regime a subsystem is built for.
type MissionMethod uint8

const (
	// MethodLowSpeed is for takeoff, climb-out and approach phases.
	MethodLowSpeed MissionMethod = iota + 1
	// MethodCruise is for clean high-speed phases (no flaps, no gear).
	MethodCruise
)

func (m MissionMethod) String() string {
	switch m {
	case MethodLowSpeed:
		return "low_speed"
	case MethodCruise:
		return "cruise"
	}
	panic("cannot stringify unknown mission method")
}

// ParseMissionMethod converts the configuration string of a method.
func ParseMissionMethod(s string) (MissionMethod, error) {
	switch s {
	case "low_speed":
		return MethodLowSpeed, nil
	case "cruise":
		return MethodCruise, nil
	}
	return 0, ConfigurationError{Detail: "unknown mission method " + s}
}

// VarRef names a variable a subsystem consumes, optionally aliased when the
// subsystem's internal name differs from the registered one (e.g. a legacy
// aero code reading angle of attack as "alpha").
type VarRef struct {
	Name  string // registered name, as wired in the phase
	Alias string // internal name; empty means same as Name
}

// Internal returns the name the subsystem uses internally.
func (v VarRef) Internal() string {
	if v.Alias != "" {
		return v.Alias
	}
	return v.Name
}

// SubsystemInstance is a physics component built for one phase: declared
// inputs and outputs plus a pure evaluation over the node state.
type SubsystemInstance struct {
	Name    string
	Type    SubsystemType
	Inputs  []VarRef
	Outputs []string
	// Evaluate reads the declared inputs from st and writes the declared
	// outputs. It must not keep state across calls.
	Evaluate func(st *NodeState) error
}

// SubsystemBuilder is the contract every pluggable physics subsystem satisfies.
type SubsystemBuilder interface {
	Name() string
	Type() SubsystemType
	// BuildMission returns the instance bound to (numNodes, inputs, method),
	// or nil if the subsystem contributes nothing for this combination.
	// Overrides not declared by the subsystem fail with
	// IncompatibleOptionsError; methods it does not implement fail with
	// UnsupportedMethodError.
	BuildMission(numNodes int, inputs *AircraftInputs, method MissionMethod, overrides map[string]float64) (*SubsystemInstance, error)
	// MissionInputs lists the variables the built instance will consume.
	MissionInputs(method MissionMethod) []VarRef
	// MissionOutputs lists the variables the built instance will produce.
	MissionOutputs(method MissionMethod) []string
}

// AircraftInputs carries the aircraft-wide scalar parameters, keyed by
// registered variable name and stored in that variable's canonical units.
type AircraftInputs struct {
	reg  *VarRegistry
	vals map[string]float64
}

// NewAircraftInputs returns an input set backed by the given registry.
func NewAircraftInputs(reg *VarRegistry) *AircraftInputs {
	return &AircraftInputs{reg: reg, vals: make(map[string]float64)}
}

// Registry exposes the backing variable catalog.
func (ai *AircraftInputs) Registry() *VarRegistry {
	return ai.reg
}

// Set stores a value, converting from the provided units to the registered
// canonical units of the variable.
func (ai *AircraftInputs) Set(name string, v float64, units string) error {
	meta, err := ai.reg.Lookup(name)
	if err != nil {
		return err
	}
	conv, err := ConvertUnits(v, units, meta.Units)
	if err != nil {
		return err
	}
	ai.vals[name] = conv
	return nil
}

// Get returns a value in the registered canonical units, falling back to the
// registry default when unset.
func (ai *AircraftInputs) Get(name string) (float64, error) {
	meta, err := ai.reg.Lookup(name)
	if err != nil {
		return 0, err
	}
	if v, found := ai.vals[name]; found {
		return v, nil
	}
	return meta.Default, nil
}

// GetIn returns a value converted to the requested units.
func (ai *AircraftInputs) GetIn(name, units string) (float64, error) {
	meta, err := ai.reg.Lookup(name)
	if err != nil {
		return 0, err
	}
	v, found := ai.vals[name]
	if !found {
		v = meta.Default
	}
	return ConvertUnits(v, meta.Units, units)
}

// checkOverrides validates override keys against the declared option set.
func checkOverrides(subsystem string, declared []string, overrides map[string]float64) error {
	for key := range overrides {
		known := false
		for _, d := range declared {
			if d == key {
				known = true
				break
			}
		}
		if !known {
			return IncompatibleOptionsError{Subsystem: subsystem, Option: key}
		}
	}
	return nil
}
