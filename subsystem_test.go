package aviary

import (
	"errors"
	"testing"

	"github.com/gonum/floats"
)

func defaultInputs() *AircraftInputs {
	return NewAircraftInputs(NewCoreRegistry())
}

func aeroState(numNodes int) *NodeState {
	st := NewNodeState(numNodes)
	st.Fill(varDynPressure, 200) // lbf/ft**2
	return st
}

func TestPolarAeroCruiseDropsFlapDrag(t *testing.T) {
	b := NewPolarAeroBuilder()
	inputs := defaultInputs()

	cruise, err := b.BuildMission(1, inputs, MethodCruise, nil)
	if err != nil {
		t.Fatal(err)
	}
	lowSpeed, err := b.BuildMission(1, inputs, MethodLowSpeed, nil)
	if err != nil {
		t.Fatal(err)
	}

	stC := aeroState(1)
	stC.Fill(VarAngleOfAttack, 0.02)
	if err = cruise.Evaluate(stC); err != nil {
		t.Fatal(err)
	}
	stL := aeroState(1)
	stL.Fill(VarAngleOfAttack, 0.02)
	if err = lowSpeed.Evaluate(stL); err != nil {
		t.Fatal(err)
	}

	if stC.Array(VarLift)[0] != stL.Array(VarLift)[0] {
		t.Fatal("lift must not depend on the method")
	}
	if stC.Array(VarDrag)[0] >= stL.Array(VarDrag)[0] {
		t.Fatalf("clean drag %v must be below flaps-out drag %v",
			stC.Array(VarDrag)[0], stL.Array(VarDrag)[0])
	}
}

func TestPolarAeroFLOPSAlias(t *testing.T) {
	b := NewPolarAeroBuilder()
	b.Origin = OriginFLOPS
	refs := b.MissionInputs(MethodCruise)
	if refs[0].Name != VarAngleOfAttack || refs[0].Internal() != "alpha" {
		t.Fatalf("FLOPS aero must read angle of attack as alpha, got %v", refs[0])
	}

	inst, err := b.BuildMission(1, defaultInputs(), MethodCruise, nil)
	if err != nil {
		t.Fatal(err)
	}
	st := aeroState(1)
	st.Fill("alpha", 0.02)
	if err = inst.Evaluate(st); err != nil {
		t.Fatal(err)
	}
	if st.Array(VarLift)[0] <= 0 {
		t.Fatalf("lift %v", st.Array(VarLift)[0])
	}
}

func TestPolarAeroUnknownOverride(t *testing.T) {
	b := NewPolarAeroBuilder()
	_, err := b.BuildMission(1, defaultInputs(), MethodCruise, map[string]float64{"wave_drag": 0.001})
	var ioe IncompatibleOptionsError
	if !errors.As(err, &ioe) {
		t.Fatalf("expected IncompatibleOptionsError, got %v", err)
	}
	if ioe.Subsystem != b.Name() || ioe.Option != "wave_drag" {
		t.Fatalf("error details %+v", ioe)
	}
}

func TestPolarAeroOswaldOverride(t *testing.T) {
	b := NewPolarAeroBuilder()
	inputs := defaultInputs()
	base, err := b.BuildMission(1, inputs, MethodCruise, nil)
	if err != nil {
		t.Fatal(err)
	}
	tweaked, err := b.BuildMission(1, inputs, MethodCruise, map[string]float64{"oswald_factor": 0.5})
	if err != nil {
		t.Fatal(err)
	}
	st1, st2 := aeroState(1), aeroState(1)
	st1.Fill(VarAngleOfAttack, 0.05)
	st2.Fill(VarAngleOfAttack, 0.05)
	if err = base.Evaluate(st1); err != nil {
		t.Fatal(err)
	}
	if err = tweaked.Evaluate(st2); err != nil {
		t.Fatal(err)
	}
	if st2.Array(VarDrag)[0] <= st1.Array(VarDrag)[0] {
		t.Fatal("halving the Oswald factor must raise induced drag")
	}
}

func TestTurbopropThrustAndFuelFlow(t *testing.T) {
	b := NewTurbopropBuilder(DefaultPropellerMap())
	inst, err := b.BuildMission(1, defaultInputs(), MethodCruise, nil)
	if err != nil {
		t.Fatal(err)
	}
	st := NewNodeState(1)
	st.Fill(VarThrottle, 0.8)
	st.Fill(VarMach, 0.5)
	st.Fill(VarDensity, 1.2e-3)
	st.Fill(varTAS, 500)
	if err = inst.Evaluate(st); err != nil {
		t.Fatal(err)
	}
	if thrust := st.Array(VarThrustTotal)[0]; thrust <= 0 {
		t.Fatalf("thrust %v", thrust)
	}
	ff := st.Array(VarFuelFlowTotal)[0]
	if ff >= 0 {
		t.Fatalf("fuel flow must be stored negative, got %v", ff)
	}
	// 4 engines at 0.8 * 4600 hp and 0.4 lbm/h/hp.
	if !floats.EqualWithinAbsOrRel(ff, -4*0.4*0.8*4600/3600, 1e-12, 1e-12) {
		t.Fatalf("fuel flow %v", ff)
	}
}

func TestTurbopropThrottleScalesThrust(t *testing.T) {
	b := NewTurbopropBuilder(DefaultPropellerMap())
	inst, err := b.BuildMission(2, defaultInputs(), MethodCruise, nil)
	if err != nil {
		t.Fatal(err)
	}
	st := NewNodeState(2)
	st.SetArray(VarThrottle, []float64{0.3, 0.9})
	st.Fill(VarMach, 0.4)
	st.Fill(VarDensity, 1.5e-3)
	st.Fill(varTAS, 450)
	if err = inst.Evaluate(st); err != nil {
		t.Fatal(err)
	}
	thrust := st.Array(VarThrustTotal)
	if thrust[1] <= thrust[0] {
		t.Fatalf("thrust must grow with throttle: %v", thrust)
	}
}

func TestBatteryAbsentWhenNoCells(t *testing.T) {
	b := NewTheveninBatteryBuilder()
	inputs := defaultInputs()
	if err := inputs.Set(VarBatteryNSeries, 0, Unitless); err != nil {
		t.Fatal(err)
	}
	inst, err := b.BuildMission(1, inputs, MethodCruise, nil)
	if err != nil {
		t.Fatal(err)
	}
	if inst != nil {
		t.Fatal("zero cells in series must build no subsystem")
	}
}

func TestBatteryDischarges(t *testing.T) {
	b := NewTheveninBatteryBuilder()
	inst, err := b.BuildMission(1, defaultInputs(), MethodCruise, nil)
	if err != nil {
		t.Fatal(err)
	}
	if inst == nil {
		t.Fatal("default pack must build")
	}
	st := NewNodeState(1)
	st.Fill(VarBatteryCurrent, 100)
	st.Fill(VarBatterySOC, 1)
	st.Fill(VarBatteryThevVoltage, 0)
	if err = inst.Evaluate(st); err != nil {
		t.Fatal(err)
	}
	if rate := st.Array(VarBatterySOCRate)[0]; rate >= 0 {
		t.Fatalf("drawing current must deplete the charge, rate %v", rate)
	}
	if heat := st.Array(VarBatteryHeatOut)[0]; heat <= 0 {
		t.Fatalf("ohmic losses must heat the pack, got %v", heat)
	}
	if packV := st.Array(VarBatteryPackVoltage)[0]; packV <= 0 {
		t.Fatalf("pack voltage %v", packV)
	}
}

func TestBatterySOCRateValue(t *testing.T) {
	b := NewTheveninBatteryBuilder()
	inputs := defaultInputs()
	inst, err := b.BuildMission(1, inputs, MethodCruise, nil)
	if err != nil {
		t.Fatal(err)
	}
	st := NewNodeState(1)
	st.Fill(VarBatteryCurrent, 80)
	st.Fill(VarBatterySOC, 0.9)
	st.Fill(VarBatteryThevVoltage, 0.01)
	if err = inst.Evaluate(st); err != nil {
		t.Fatal(err)
	}
	// 40 strings in parallel, 5 A*h cells: 2 A per cell over 18000 A*s.
	want := -2.0 / 18000
	if rate := st.Array(VarBatterySOCRate)[0]; !floats.EqualWithinAbsOrRel(rate, want, 1e-15, 1e-12) {
		t.Fatalf("SOC rate %v, want %v", rate, want)
	}
}

func TestBuildersRejectUnknownMethod(t *testing.T) {
	inputs := defaultInputs()
	builders := []SubsystemBuilder{
		NewPolarAeroBuilder(),
		NewTurbopropBuilder(DefaultPropellerMap()),
		NewTheveninBatteryBuilder(),
	}
	var ume UnsupportedMethodError
	for _, b := range builders {
		_, err := b.BuildMission(1, inputs, MissionMethod(99), nil)
		if !errors.As(err, &ume) {
			t.Fatalf("%s: expected UnsupportedMethodError, got %v", b.Name(), err)
		}
	}
}
