package aviary

/* Thevenin-equivalent battery builder, following the battery external
subsystem example: one resistor-capacitor branch over the open-circuit
voltage, state of charge depleting with the drawn current. */

// TheveninBatteryBuilder builds the battery/thermal subsystem.
type TheveninBatteryBuilder struct {
	SubsystemName string
	// Equivalent circuit parameters, per cell.
	ROhmic    float64 // ohm
	RThevenin float64 // ohm
	CThevenin float64 // F
}

// NewTheveninBatteryBuilder returns the default battery builder.
func NewTheveninBatteryBuilder() *TheveninBatteryBuilder {
	return &TheveninBatteryBuilder{
		SubsystemName: "battery",
		ROhmic:        0.025,
		RThevenin:     0.015,
		CThevenin:     2000,
	}
}

// Name implements SubsystemBuilder.
func (b *TheveninBatteryBuilder) Name() string {
	return b.SubsystemName
}

// Type implements SubsystemBuilder.
func (b *TheveninBatteryBuilder) Type() SubsystemType {
	return SubsystemBattery
}

var batteryOptions = []string{"r_ohmic", "r_thevenin", "c_thevenin"}

// MissionInputs implements SubsystemBuilder.
func (b *TheveninBatteryBuilder) MissionInputs(method MissionMethod) []VarRef {
	return []VarRef{
		{Name: VarBatteryCurrent},
		{Name: VarBatterySOC},
		{Name: VarBatteryThevVoltage},
	}
}

// MissionOutputs implements SubsystemBuilder.
func (b *TheveninBatteryBuilder) MissionOutputs(method MissionMethod) []string {
	return []string{
		VarBatterySOCRate, VarBatteryThevRate, VarBatteryHeatOut, VarBatteryPackVoltage,
	}
}

// BuildMission implements SubsystemBuilder. An aircraft with no cells in
// series carries no battery: the subsystem contributes nothing and returns nil.
func (b *TheveninBatteryBuilder) BuildMission(numNodes int, inputs *AircraftInputs, method MissionMethod, overrides map[string]float64) (*SubsystemInstance, error) {
	if method != MethodLowSpeed && method != MethodCruise {
		return nil, UnsupportedMethodError{Subsystem: b.Name(), Method: method}
	}
	if err := checkOverrides(b.Name(), batteryOptions, overrides); err != nil {
		return nil, err
	}

	nSeries, err := inputs.Get(VarBatteryNSeries)
	if err != nil {
		return nil, err
	}
	if nSeries == 0 {
		return nil, nil
	}
	nParallel, err := inputs.Get(VarBatteryNParallel)
	if err != nil {
		return nil, err
	}
	cellCapacity, err := inputs.GetIn(VarBatteryCellCapacity, "A*s")
	if err != nil {
		return nil, err
	}
	packVoltage, err := inputs.Get(VarBatteryVoltage)
	if err != nil {
		return nil, err
	}

	r0 := b.ROhmic
	rTh := b.RThevenin
	cTh := b.CThevenin
	if v, found := overrides["r_ohmic"]; found {
		r0 = v
	}
	if v, found := overrides["r_thevenin"]; found {
		rTh = v
	}
	if v, found := overrides["c_thevenin"]; found {
		cTh = v
	}

	return &SubsystemInstance{
		Name:    b.Name(),
		Type:    SubsystemBattery,
		Inputs:  b.MissionInputs(method),
		Outputs: b.MissionOutputs(method),
		Evaluate: func(st *NodeState) error {
			current := st.Array(VarBatteryCurrent)
			vThev := st.Array(VarBatteryThevVoltage)
			socRate := st.Array(VarBatterySOCRate)
			thevRate := st.Array(VarBatteryThevRate)
			heat := st.Array(VarBatteryHeatOut)
			packV := st.Array(VarBatteryPackVoltage)
			for i := 0; i < numNodes; i++ {
				iCell := current[i] / nParallel
				socRate[i] = -iCell / cellCapacity
				thevRate[i] = iCell/cTh - vThev[i]/(rTh*cTh)
				heat[i] = iCell * iCell * (r0 + rTh) * nSeries * nParallel
				packV[i] = packVoltage - (vThev[i]+iCell*r0)*nSeries
			}
			return nil
		},
	}, nil
}
