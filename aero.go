package aviary

import "math"

/* Polar aerodynamics builder. A deliberately simple lift-curve / parabolic
drag polar model; it exists to exercise the subsystem contract and the
control-iteration scope, not to be a fidelity reference. */

// CodeOrigin identifies the legacy code a subsystem model derives from. FLOPS
// origin aero models read the angle of attack under the internal name "alpha".
type CodeOrigin uint8

const (
	// OriginGASP models use the registered variable names directly.
	OriginGASP CodeOrigin = iota
	// OriginFLOPS models need angle-of-attack aliasing.
	OriginFLOPS
)

func (o CodeOrigin) String() string {
	switch o {
	case OriginGASP:
		return "GASP"
	case OriginFLOPS:
		return "FLOPS"
	}
	panic("cannot stringify unknown code origin")
}

// PolarAeroBuilder builds the core aerodynamics subsystem.
type PolarAeroBuilder struct {
	SubsystemName string
	Origin        CodeOrigin
	// FlapDragDelta is added to the zero-lift drag in low-speed methods.
	FlapDragDelta float64
}

// NewPolarAeroBuilder returns the default core aerodynamics builder.
func NewPolarAeroBuilder() *PolarAeroBuilder {
	return &PolarAeroBuilder{SubsystemName: "core_aerodynamics", Origin: OriginGASP, FlapDragDelta: 0.012}
}

// Name implements SubsystemBuilder.
func (b *PolarAeroBuilder) Name() string {
	return b.SubsystemName
}

// Type implements SubsystemBuilder.
func (b *PolarAeroBuilder) Type() SubsystemType {
	return SubsystemAerodynamics
}

// declared option keys accepted as overrides.
var aeroOptions = []string{"flap_drag_delta", "oswald_factor"}

// MissionInputs implements SubsystemBuilder.
func (b *PolarAeroBuilder) MissionInputs(method MissionMethod) []VarRef {
	alphaRef := VarRef{Name: VarAngleOfAttack}
	if b.Origin == OriginFLOPS {
		alphaRef.Alias = "alpha"
	}
	return []VarRef{
		alphaRef,
		{Name: varDynPressure},
	}
}

// MissionOutputs implements SubsystemBuilder.
func (b *PolarAeroBuilder) MissionOutputs(method MissionMethod) []string {
	return []string{VarLift, VarDrag}
}

// BuildMission implements SubsystemBuilder.
func (b *PolarAeroBuilder) BuildMission(numNodes int, inputs *AircraftInputs, method MissionMethod, overrides map[string]float64) (*SubsystemInstance, error) {
	if method != MethodLowSpeed && method != MethodCruise {
		return nil, UnsupportedMethodError{Subsystem: b.Name(), Method: method}
	}
	if err := checkOverrides(b.Name(), aeroOptions, overrides); err != nil {
		return nil, err
	}

	area, err := inputs.Get(VarWingArea)
	if err != nil {
		return nil, err
	}
	clAlpha, err := inputs.Get(VarCLAlpha)
	if err != nil {
		return nil, err
	}
	cd0, err := inputs.Get(VarCDZero)
	if err != nil {
		return nil, err
	}
	aspect, err := inputs.Get(VarWingAspect)
	if err != nil {
		return nil, err
	}
	incidence, err := inputs.GetIn(VarWingIncidence, "rad")
	if err != nil {
		return nil, err
	}
	oswald, err := inputs.Get(VarOswald)
	if err != nil {
		return nil, err
	}
	if v, found := overrides["oswald_factor"]; found {
		oswald = v
	}
	flapDelta := b.FlapDragDelta
	if v, found := overrides["flap_drag_delta"]; found {
		flapDelta = v
	}
	if method == MethodCruise {
		// Clean configuration: no flaps, no gear.
		flapDelta = 0
	}

	alphaName := b.MissionInputs(method)[0].Internal()
	return &SubsystemInstance{
		Name:    b.Name(),
		Type:    SubsystemAerodynamics,
		Inputs:  b.MissionInputs(method),
		Outputs: b.MissionOutputs(method),
		Evaluate: func(st *NodeState) error {
			alpha := st.Array(alphaName)
			q := st.Array(varDynPressure)
			lift := st.Array(VarLift)
			drag := st.Array(VarDrag)
			for i := 0; i < numNodes; i++ {
				cl := clAlpha * (alpha[i] + incidence)
				cd := cd0 + flapDelta + cl*cl/(math.Pi*oswald*aspect)
				lift[i] = q[i] * area * cl
				drag[i] = q[i] * area * cd
			}
			return nil
		},
	}, nil
}
