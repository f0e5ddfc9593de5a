package aviary

import (
	"errors"
	"math"
	"testing"

	"github.com/gonum/floats"
)

// climbCruiseConfig is a short two-phase sequence sized so the default
// four-engine turboprop flies it with throttle margin.
func climbCruiseConfig() *MissionConfig {
	return &MissionConfig{
		Phases: []PhaseConfig{
			{
				Name: "climb",
				UserOptions: PhaseUserOptions{
					NumSegments:         2,
					Order:               2,
					Clean:               true,
					ThrottleEnforcement: ThrottleBounded,
					FixDuration:         true,
					InitialMach:         0.45,
					FinalMach:           0.55,
					InitialAltitude:     10000,
					FinalAltitude:       20000,
				},
				InitialGuesses: map[string]GuessSpan{
					"distance": {Initial: 0, Span: 150},
					"time":     {Initial: 0, Span: 1700},
				},
			},
			{
				Name: "cruise",
				UserOptions: PhaseUserOptions{
					NumSegments:         2,
					Order:               2,
					Clean:               true,
					ThrottleEnforcement: ThrottleBounded,
					FixInitial:          true,
					ConstrainFinal:      true,
					InitialMach:         0.56,
					FinalMach:           0.55,
					InitialAltitude:     20000,
					FinalAltitude:       20000,
				},
				InitialGuesses: map[string]GuessSpan{
					"distance": {Initial: 150, Span: 300},
				},
			},
		},
		PostMission: PostMissionConfig{
			ConstrainRange: true,
			TargetRange:    Quantity{Val: 500, Units: "NM"},
			IncludeLanding: true,
		},
	}
}

func missionInputs(t *testing.T, massLbm float64) *AircraftInputs {
	t.Helper()
	inputs := defaultInputs()
	if err := inputs.Set(VarMass, massLbm, "lbm"); err != nil {
		t.Fatal(err)
	}
	return inputs
}

func TestMissionRun(t *testing.T) {
	grossMass := 120000.0
	m := NewMission(climbCruiseConfig(), missionInputs(t, grossMass), testBuilders(), ExportConfig{}, nil)
	if err := m.Run(); err != nil {
		t.Fatal(err)
	}

	s := m.Summary
	if len(s.Phases) != 2 {
		t.Fatalf("phase results: %d", len(s.Phases))
	}
	if !floats.EqualWithinAbsOrRel(s.TotalRange, 450, 1e-9, 1e-12) {
		t.Fatalf("total range %v NM", s.TotalRange)
	}
	if s.TotalDuration <= 0 {
		t.Fatalf("total duration %v", s.TotalDuration)
	}
	if s.TotalFuel <= 0 || s.FinalMass >= grossMass {
		t.Fatalf("fuel %v, final mass %v", s.TotalFuel, s.FinalMass)
	}
	if !floats.EqualWithinAbsOrRel(grossMass-s.TotalFuel, s.FinalMass, 1e-6, 1e-9) {
		t.Fatalf("mass bookkeeping: %v burned from %v leaves %v", s.TotalFuel, grossMass, s.FinalMass)
	}

	climb, cruise := s.Phases[0], s.Phases[1]
	if climb.StartTime != 0 || climb.StartRange != 0 {
		t.Fatalf("climb start %v s, %v NM", climb.StartTime, climb.StartRange)
	}
	if climb.ContinuityResiduals != nil {
		t.Fatal("first phase has no upstream state to compare against")
	}
	if !floats.EqualWithinAbsOrRel(cruise.StartTime, climb.Duration, 1e-9, 1e-12) {
		t.Fatalf("cruise starts at %v, climb ends at %v", cruise.StartTime, climb.Duration)
	}
	if !floats.EqualWithinAbsOrRel(cruise.StartRange, 150, 1e-9, 1e-12) {
		t.Fatalf("cruise start range %v", cruise.StartRange)
	}
	if cruise.InitialMass >= climb.InitialMass {
		t.Fatal("climb must burn mass before cruise")
	}

	// The cruise is configured to start 0.01 Mach fast on purpose: the
	// mismatch must be recorded, then pinned away by fix_initial.
	velRes := cruise.ContinuityResiduals[VarVelocity]
	wantTAS := 0.01 * StandardAtmosphere(20000).SpeedOfSound
	wantRes, _ := ConvertUnits(wantTAS, "ft/s", "kn")
	if !floats.EqualWithinAbsOrRel(velRes, wantRes, 1e-6, 1e-9) {
		t.Fatalf("velocity continuity residual %v kn, want %v", velRes, wantRes)
	}
	if altRes := cruise.ContinuityResiduals[VarAltitude]; !floats.EqualWithinAbsOrRel(altRes, 0, 1e-9, 1e-9) {
		t.Fatalf("altitude continuity residual %v", altRes)
	}

	// fix_duration measures the solved climb duration against the time guess.
	durRes, ok := climb.TerminalResiduals[VarTime]
	if !ok {
		t.Fatal("fix_duration must surface a duration residual")
	}
	if !floats.EqualWithinAbsOrRel(durRes, climb.Duration-1700, 1e-9, 1e-12) {
		t.Fatalf("duration residual %v for duration %v", durRes, climb.Duration)
	}
	// constrain_final on a level cruise closes on its own prescription.
	if altRes := cruise.TerminalResiduals[VarAltitude]; !floats.EqualWithinAbsOrRel(altRes, 0, 1e-6, 1e-9) {
		t.Fatalf("terminal altitude residual %v", altRes)
	}
	if machRes := cruise.TerminalResiduals[VarMach]; !floats.EqualWithinAbsOrRel(machRes, 0, 1e-9, 1e-9) {
		t.Fatalf("terminal mach residual %v", machRes)
	}

	if !floats.EqualWithinAbsOrRel(s.RangeResidual, -50, 1e-9, 1e-12) {
		t.Fatalf("range residual %v vs 500 NM target", s.RangeResidual)
	}
	vLand := 0.55 * StandardAtmosphere(20000).SpeedOfSound
	wantRoll := vLand * vLand / (2 * GravityAccel * brakingFriction)
	if !floats.EqualWithinAbsOrRel(s.LandingDistance, wantRoll, 1e-6, 1e-9) {
		t.Fatalf("landing roll %v ft, want %v", s.LandingDistance, wantRoll)
	}

	// The trajectory stream is closed: a second run must be rejected.
	var ce ConfigurationError
	if err := m.Run(); !errors.As(err, &ce) {
		t.Fatalf("second run: expected ConfigurationError, got %v", err)
	}
}

func TestMissionTrajectory(t *testing.T) {
	m := NewMission(climbCruiseConfig(), missionInputs(t, 120000), testBuilders(), ExportConfig{}, nil)
	if err := m.Run(); err != nil {
		t.Fatal(err)
	}

	// Two phases of 5 nodes each, no takeoff node.
	if len(m.Trajectory) != 10 {
		t.Fatalf("trajectory nodes: %d", len(m.Trajectory))
	}
	if m.Trajectory[0].Phase != "climb" || m.Trajectory[9].Phase != "cruise" {
		t.Fatalf("phase order: %s ... %s", m.Trajectory[0].Phase, m.Trajectory[9].Phase)
	}
	// fix_initial welds the cruise entry onto the climb exit.
	if m.Trajectory[5].TAS != m.Trajectory[4].TAS {
		t.Fatalf("junction airspeed: climb exit %v, cruise entry %v",
			m.Trajectory[4].TAS, m.Trajectory[5].TAS)
	}

	prev := m.Trajectory[0]
	for _, ts := range m.Trajectory[1:] {
		if ts.Distance < prev.Distance || ts.Time < prev.Time {
			t.Fatalf("node %s/%d runs backwards: %v NM at %v s after %v NM at %v s",
				ts.Phase, ts.Node, ts.Distance, ts.Time, prev.Distance, prev.Time)
		}
		if ts.Mass > prev.Mass {
			t.Fatalf("node %s/%d gains mass", ts.Phase, ts.Node)
		}
		prev = ts
	}
	for _, ts := range m.Trajectory {
		if ts.Throttle <= 0 || ts.Throttle > 1 {
			t.Fatalf("node %s/%d: throttle %v", ts.Phase, ts.Node, ts.Throttle)
		}
		if ts.FuelFlow >= 0 {
			t.Fatalf("node %s/%d: fuel flow %v", ts.Phase, ts.Node, ts.FuelFlow)
		}
		if ts.Thrust <= 0 {
			t.Fatalf("node %s/%d: thrust %v", ts.Phase, ts.Node, ts.Thrust)
		}
	}
	// Climb gains altitude at a positive flight-path angle.
	if m.Trajectory[2].Gamma <= 0 {
		t.Fatalf("climb gamma %v", m.Trajectory[2].Gamma)
	}
	if math.Abs(m.Trajectory[7].Gamma) > 1e-9 {
		t.Fatalf("level cruise gamma %v", m.Trajectory[7].Gamma)
	}
}

func TestMissionWithTakeoff(t *testing.T) {
	cfg := &MissionConfig{
		PreMission: PreMissionConfig{IncludeTakeoff: true, OptimizeMass: true},
		Phases: []PhaseConfig{
			{
				Name: "climb_out",
				UserOptions: PhaseUserOptions{
					NumSegments:         1,
					Order:               2,
					Clean:               true,
					ThrottleEnforcement: ThrottleBounded,
					InitialMach:         0.3,
					FinalMach:           0.45,
					InitialAltitude:     0,
					FinalAltitude:       10000,
				},
				// No distance guess: the sequencer falls back to its default span.
			},
		},
	}
	m := NewMission(cfg, missionInputs(t, 120000), testBuilders(), ExportConfig{}, nil)
	if err := m.Run(); err != nil {
		t.Fatal(err)
	}

	s := m.Summary
	if s.TakeoffDistance <= 0 || s.TakeoffDistance >= 20000 {
		t.Fatalf("takeoff distance %v ft", s.TakeoffDistance)
	}
	res := s.Phases[0]
	if res.StartTime <= 0 {
		t.Fatal("flight clock must start after the takeoff roll")
	}
	if res.InitialMass >= 120000 {
		t.Fatal("the roll must burn fuel before liftoff")
	}
	if !floats.EqualWithinAbsOrRel(res.RangeFlown, 50, 1e-9, 1e-12) {
		t.Fatalf("default distance span: flew %v NM", res.RangeFlown)
	}
	if m.Trajectory[0].Phase != "takeoff_roll" {
		t.Fatalf("first trajectory node %q", m.Trajectory[0].Phase)
	}
	if m.Trajectory[0].Throttle != 1 {
		t.Fatalf("takeoff throttle %v", m.Trajectory[0].Throttle)
	}
}

func TestPrescribeClampsToBounds(t *testing.T) {
	pc := cruiseConfig("bounded_climb")
	pc.UserOptions.InitialMach = 0.45
	pc.UserOptions.FinalMach = 0.60
	pc.UserOptions.MachBounds = [2]float64{0.48, 0.55}
	pc.UserOptions.InitialAltitude = 8000
	pc.UserOptions.FinalAltitude = 24000
	pc.UserOptions.AltitudeBounds = [2]float64{10000, 20000}
	pc.InitialGuesses = map[string]GuessSpan{"distance": {Initial: 0, Span: 120}}

	inputs := missionInputs(t, 120000)
	m := NewMission(&MissionConfig{Phases: []PhaseConfig{pc}}, inputs, testBuilders(), ExportConfig{}, nil)
	ph, err := AssemblePhase(pc, inputs, m.Builders, nil)
	if err != nil {
		t.Fatal(err)
	}
	alt, vel, _ := m.prescribe(ph, pc, 0)
	last := len(alt) - 1
	if alt[0] != 10000 || alt[last] != 20000 {
		t.Fatalf("altitude profile endpoints %v, %v", alt[0], alt[last])
	}
	for _, h := range alt {
		if h < 10000 || h > 20000 {
			t.Fatalf("altitude %v escaped its bounds", h)
		}
	}
	want, err := ConvertUnits(0.48*StandardAtmosphere(alt[0]).SpeedOfSound, "ft/s", "kn")
	if err != nil {
		t.Fatal(err)
	}
	if !floats.EqualWithinAbsOrRel(vel[0], want, 1e-12, 1e-12) {
		t.Fatalf("initial velocity %v kn, want %v kn", vel[0], want)
	}
	want, err = ConvertUnits(0.55*StandardAtmosphere(alt[last]).SpeedOfSound, "ft/s", "kn")
	if err != nil {
		t.Fatal(err)
	}
	if !floats.EqualWithinAbsOrRel(vel[last], want, 1e-12, 1e-12) {
		t.Fatalf("final velocity %v kn, want %v kn", vel[last], want)
	}
}
