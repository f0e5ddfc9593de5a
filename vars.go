package aviary

import "sort"

/* Variable metadata. Every quantity flowing between subsystems is declared
here by its hierarchical name, canonical units, default value and whether it
varies along the trajectory (multivalue) or is one scalar for the whole
aircraft. The registry is filled before any subsystem is built and is
append-only afterwards. */

// Canonical trajectory (multivalue) variable names.
const (
	VarAltitude        = "Dynamic.Mission.ALTITUDE"
	VarVelocity        = "Dynamic.Mission.VELOCITY"
	VarMass            = "Dynamic.Mission.MASS"
	VarFlightPathAngle = "Dynamic.Mission.FLIGHT_PATH_ANGLE"
	VarAngleOfAttack   = "Dynamic.Mission.ANGLE_OF_ATTACK"
	VarThrottle        = "Dynamic.Mission.THROTTLE"
	VarThrustTotal     = "Dynamic.Mission.THRUST_TOTAL"
	VarFuelFlowTotal   = "Dynamic.Mission.FUEL_FLOW_RATE_NEGATIVE_TOTAL"
	VarDensity         = "Dynamic.Mission.DENSITY"
	VarSpeedOfSound    = "Dynamic.Mission.SPEED_OF_SOUND"
	VarTemperature     = "Dynamic.Mission.TEMPERATURE"
	VarStaticPressure  = "Dynamic.Mission.STATIC_PRESSURE"
	VarMach            = "Dynamic.Mission.MACH"
	VarLift            = "Dynamic.Mission.LIFT"
	VarDrag            = "Dynamic.Mission.DRAG"
	VarTime            = "Dynamic.Mission.TIME"
	VarDistance        = "Dynamic.Mission.DISTANCE"
)

// Aircraft-level scalar variable names.
const (
	VarWingArea       = "Aircraft.Wing.AREA"
	VarWingIncidence  = "Aircraft.Wing.INCIDENCE"
	VarWingAspect     = "Aircraft.Wing.ASPECT_RATIO"
	VarCLAlpha        = "Aircraft.Design.LIFT_CURVE_SLOPE"
	VarCDZero         = "Aircraft.Design.ZERO_LIFT_DRAG_COEFF"
	VarOswald         = "Aircraft.Design.OSWALD_FACTOR"
	VarGrossMass      = "Aircraft.Design.GROSS_MASS"
	VarNumEngines     = "Aircraft.Engine.NUM_ENGINES"
	VarPropDiameter   = "Aircraft.Engine.PROPELLER_DIAMETER"
	VarPropRPM        = "Aircraft.Engine.PROPELLER_RPM"
	VarEnginePowerMax = "Aircraft.Engine.POWER_MAX"
	VarEngineSFC      = "Aircraft.Engine.SFC"
)

// Battery variable names, following the battery external subsystem example.
const (
	VarBatteryVoltage      = "Aircraft.Battery.VOLTAGE"
	VarBatteryNSeries      = "Aircraft.Battery.N_SERIES"
	VarBatteryNParallel    = "Aircraft.Battery.N_PARALLEL"
	VarBatteryCellCapacity = "Aircraft.Battery.Cell.ENERGY_CAPACITY_MAX"
	VarBatteryCellMass     = "Aircraft.Battery.Cell.MASS"
	VarBatteryCellHeatCap  = "Aircraft.Battery.Cell.HEAT_CAPACITY"

	VarBatteryCurrent     = "Dynamic.Battery.CURRENT"
	VarBatterySOC         = "Dynamic.Battery.STATE_OF_CHARGE"
	VarBatterySOCRate     = "Dynamic.Battery.STATE_OF_CHARGE_RATE"
	VarBatteryHeatOut     = "Dynamic.Battery.HEAT_OUT"
	VarBatteryPackVoltage = "Dynamic.Battery.VOLTAGE"
	VarBatteryThevVoltage = "Dynamic.Battery.VOLTAGE_THEVENIN"
	VarBatteryThevRate    = "Dynamic.Battery.VOLTAGE_THEVENIN_RATE"
)

// VarMeta is the registered description of one variable.
type VarMeta struct {
	Units      string
	Default    float64
	Multivalue bool
}

// VarRegistry is the typed catalog of physical quantities. It is built once at
// startup and passed to whatever needs it; it is not ambient global state.
type VarRegistry struct {
	meta map[string]VarMeta
}

// NewVarRegistry returns an empty registry.
func NewVarRegistry() *VarRegistry {
	return &VarRegistry{meta: make(map[string]VarMeta)}
}

// Register adds a variable to the catalog. The units must be listed in the
// conversion table and the name must not already be registered.
func (r *VarRegistry) Register(name, units string, def float64, multivalue bool) error {
	if _, found := r.meta[name]; found {
		return DuplicateVariableError{Name: name}
	}
	if _, err := ConvertUnits(0, units, units); err != nil {
		return err
	}
	r.meta[name] = VarMeta{Units: units, Default: def, Multivalue: multivalue}
	return nil
}

// Lookup returns the metadata of a registered variable.
func (r *VarRegistry) Lookup(name string) (VarMeta, error) {
	m, found := r.meta[name]
	if !found {
		return VarMeta{}, UnknownVariableError{Name: name}
	}
	return m, nil
}

// Names returns all registered names, sorted.
func (r *VarRegistry) Names() []string {
	names := make([]string, 0, len(r.meta))
	for n := range r.meta {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NewCoreRegistry returns a registry pre-loaded with the variables the
// built-in subsystems exchange.
func NewCoreRegistry() *VarRegistry {
	r := NewVarRegistry()
	core := []struct {
		name, units string
		def         float64
		multi       bool
	}{
		{VarAltitude, "ft", 0, true},
		{VarVelocity, "kn", 250, true},
		{VarMass, "lbm", 150000, true},
		{VarFlightPathAngle, "rad", 0, true},
		{VarAngleOfAttack, "rad", 0, true},
		{VarThrottle, Unitless, 0.5, true},
		{VarThrustTotal, "lbf", 0, true},
		{VarFuelFlowTotal, "lbm/s", 0, true},
		{VarDensity, "slug/ft**3", 2.3769e-3, true},
		{VarSpeedOfSound, "ft/s", 1116.4, true},
		{VarTemperature, "degR", 518.67, true},
		{VarStaticPressure, "lbf/ft**2", 2116.22, true},
		{VarMach, Unitless, 0, true},
		{VarLift, "lbf", 0, true},
		{VarDrag, "lbf", 0, true},
		{VarTime, "s", 0, true},
		{VarDistance, "NM", 0, true},

		{VarWingArea, "ft**2", 1370, false},
		{VarWingIncidence, "deg", 0, false},
		{VarWingAspect, Unitless, 10.13, false},
		{VarCLAlpha, "1/rad", 5.7, false},
		{VarCDZero, Unitless, 0.025, false},
		{VarOswald, Unitless, 0.8, false},
		{VarGrossMass, "lbm", 175400, false},
		{VarNumEngines, Unitless, 4, false},
		{VarPropDiameter, "ft", 10.5, false},
		{VarPropRPM, "1/s", 20.0, false},
		{VarEnginePowerMax, "hp", 4600, false},
		{VarEngineSFC, "lbm/h/hp", 0.4, false},

		{VarBatteryVoltage, "V", 600, false},
		{VarBatteryNSeries, Unitless, 128, false},
		{VarBatteryNParallel, Unitless, 40, false},
		{VarBatteryCellCapacity, "A*h", 5, false},
		{VarBatteryCellMass, "kg", 0.045, false},
		{VarBatteryCellHeatCap, "J/(kg*K)", 1020, false},

		{VarBatteryCurrent, "A", 0, true},
		{VarBatterySOC, Unitless, 1, true},
		{VarBatterySOCRate, "1/s", 0, true},
		{VarBatteryHeatOut, "W", 0, true},
		{VarBatteryPackVoltage, "V", 0, true},
		{VarBatteryThevVoltage, "V", 0, true},
		{VarBatteryThevRate, "V/s", 0, true},
	}
	for _, v := range core {
		if err := r.Register(v.name, v.units, v.def, v.multi); err != nil {
			panic(err) // static table, cannot fail at runtime
		}
	}
	return r
}
