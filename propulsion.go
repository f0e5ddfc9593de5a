package aviary

/* Turboprop propulsion builder backed by a propeller performance map. Thrust
and fuel flow follow classic propeller similarity relations: shaft power is
throttle times rated power, the map returns the thrust coefficient for the
operating point, and thrust scales with rho * n^2 * D^4. */

// TurbopropBuilder builds the core propulsion subsystem.
type TurbopropBuilder struct {
	SubsystemName string
	Map           *PropellerMap
}

// NewTurbopropBuilder returns a propulsion builder around a loaded map.
func NewTurbopropBuilder(pm *PropellerMap) *TurbopropBuilder {
	return &TurbopropBuilder{SubsystemName: "core_propulsion", Map: pm}
}

// Name implements SubsystemBuilder.
func (b *TurbopropBuilder) Name() string {
	return b.SubsystemName
}

// Type implements SubsystemBuilder.
func (b *TurbopropBuilder) Type() SubsystemType {
	return SubsystemPropulsion
}

var propulsionOptions = []string{"power_max", "sfc", "propeller_rpm"}

// MissionInputs implements SubsystemBuilder.
func (b *TurbopropBuilder) MissionInputs(method MissionMethod) []VarRef {
	return []VarRef{
		{Name: VarThrottle},
		{Name: VarMach},
		{Name: VarDensity},
		{Name: varTAS},
	}
}

// MissionOutputs implements SubsystemBuilder.
func (b *TurbopropBuilder) MissionOutputs(method MissionMethod) []string {
	return []string{VarThrustTotal, VarFuelFlowTotal}
}

// BuildMission implements SubsystemBuilder.
func (b *TurbopropBuilder) BuildMission(numNodes int, inputs *AircraftInputs, method MissionMethod, overrides map[string]float64) (*SubsystemInstance, error) {
	if method != MethodLowSpeed && method != MethodCruise {
		return nil, UnsupportedMethodError{Subsystem: b.Name(), Method: method}
	}
	if err := checkOverrides(b.Name(), propulsionOptions, overrides); err != nil {
		return nil, err
	}

	numEngines, err := inputs.Get(VarNumEngines)
	if err != nil {
		return nil, err
	}
	diam, err := inputs.Get(VarPropDiameter) // ft
	if err != nil {
		return nil, err
	}
	rpsRated, err := inputs.Get(VarPropRPM) // rev/s
	if err != nil {
		return nil, err
	}
	powerMaxHP, err := inputs.Get(VarEnginePowerMax) // hp, per engine
	if err != nil {
		return nil, err
	}
	sfc, err := inputs.Get(VarEngineSFC) // lbm/h/hp
	if err != nil {
		return nil, err
	}
	if v, found := overrides["power_max"]; found {
		powerMaxHP = v
	}
	if v, found := overrides["sfc"]; found {
		sfc = v
	}
	if v, found := overrides["propeller_rpm"]; found {
		rpsRated = v
	}

	ctOf := b.Map.interpolator()
	return &SubsystemInstance{
		Name:    b.Name(),
		Type:    SubsystemPropulsion,
		Inputs:  b.MissionInputs(method),
		Outputs: b.MissionOutputs(method),
		Evaluate: func(st *NodeState) error {
			throttle := st.Array(VarThrottle)
			mach := st.Array(VarMach)
			rho := st.Array(VarDensity)
			tas := st.Array(varTAS)
			thrust := st.Array(VarThrustTotal)
			fuel := st.Array(VarFuelFlowTotal)
			n := rpsRated
			d2 := diam * diam
			d4 := d2 * d2
			d5 := d4 * diam
			for i := 0; i < numNodes; i++ {
				powerHP := throttle[i] * powerMaxHP
				powerFtLbf := powerHP * 550
				j := tas[i] / (n * diam)
				cp := powerFtLbf / (rho[i] * n * n * n * d5)
				ct := ctOf(mach[i], cp, j)
				// slug*ft/s**2 is lbf, so no gravity factor here
				thrust[i] = numEngines * ct * rho[i] * n * n * d4
				// stored negative: mass rates integrate it directly
				fuel[i] = -numEngines * sfc * powerHP / 3600 // lbm/s
			}
			return nil
		},
	}, nil
}
