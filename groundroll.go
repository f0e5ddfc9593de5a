package aviary

import (
	"math"

	"github.com/ChristopherRabotin/ode"
	kitlog "github.com/go-kit/kit/log"
)

/* Takeoff ground roll by time marching. Unlike the flight phases, which solve
a prescribed trajectory by collocation, the ground roll shoots forward from
brake release at full throttle until rotation speed, integrating distance,
speed and mass with RK4. */

const (
	groundRollStep      = 0.1 // s
	clMaxTakeoff        = 1.9
	rotationMargin      = 1.15
	groundRollLimit     = 20000 // ft, hard stop for a roll that never rotates
	groundRollTimeLimit = 600   // s
)

// GroundRoll integrates the takeoff roll. It implements the Integrable
// contract of the RK4 propagator.
type GroundRoll struct {
	inputs  *AircraftInputs
	aero    *SubsystemInstance
	prop    *SubsystemInstance
	scratch *NodeState

	vRot      float64 // ft/s
	incidence float64

	// state: airspeed (ft/s), distance (ft), mass (lbm), elapsed time (s)
	v, dist, mass, elapsed float64
	done                   bool
	logger                 kitlog.Logger
}

// NewGroundRoll builds a ground-roll propagation from the subsystem builders.
// Aero and propulsion instances are built for a single node and re-evaluated
// every integration step.
func NewGroundRoll(inputs *AircraftInputs, builders []SubsystemBuilder, mass float64, logger kitlog.Logger) (*GroundRoll, error) {
	if logger == nil {
		logger = kitlog.NewNopLogger()
	}
	g := &GroundRoll{
		inputs:  inputs,
		scratch: NewNodeState(1),
		mass:    mass,
		logger:  kitlog.With(logger, "subsys", "groundroll"),
	}
	for _, b := range builders {
		inst, err := b.BuildMission(1, inputs, MethodLowSpeed, nil)
		if err != nil {
			return nil, err
		}
		if inst == nil {
			continue
		}
		switch b.Type() {
		case SubsystemAerodynamics:
			g.aero = wireAliases(inst)
		case SubsystemPropulsion:
			g.prop = inst
		}
	}
	if g.aero == nil || g.prop == nil {
		return nil, ConfigurationError{Detail: "ground roll needs aerodynamics and propulsion subsystems"}
	}

	incidence, err := inputs.GetIn(VarWingIncidence, "rad")
	if err != nil {
		return nil, err
	}
	g.incidence = incidence

	// Rotation at a margin over the stall speed at brake-release mass.
	area, err := inputs.Get(VarWingArea)
	if err != nil {
		return nil, err
	}
	atm := StandardAtmosphere(0)
	vStall := math.Sqrt(2 * mass / (atm.Density * area * clMaxTakeoff))
	g.vRot = rotationMargin * vStall
	return g, nil
}

// Propagate runs the roll from brake release to rotation.
func (g *GroundRoll) Propagate() error {
	g.logger.Log("level", "info", "status", "started", "mass(lbm)", g.mass, "vrot(ft/s)", g.vRot)
	ode.NewRK4(0, groundRollStep, g).Solve()
	if g.v < g.vRot {
		return ConvergenceError{Phase: "groundroll", Iteration: int(g.elapsed / groundRollStep), Norm: g.vRot - g.v}
	}
	g.logger.Log("level", "info", "status", "rotated", "distance(ft)", g.dist, "duration(s)", g.elapsed, "mass(lbm)", g.mass)
	return nil
}

// Distance returns the ground distance covered, in ft.
func (g *GroundRoll) Distance() float64 { return g.dist }

// Duration returns the elapsed roll time, in s.
func (g *GroundRoll) Duration() float64 { return g.elapsed }

// FinalMass returns the mass at rotation, in lbm.
func (g *GroundRoll) FinalMass() float64 { return g.mass }

// RotationSpeed returns the target rotation speed, in ft/s.
func (g *GroundRoll) RotationSpeed() float64 { return g.vRot }

// GetState implements the integrator contract.
func (g *GroundRoll) GetState() []float64 {
	return []float64{g.v, g.dist, g.mass}
}

// SetState implements the integrator contract.
func (g *GroundRoll) SetState(t float64, s []float64) {
	g.v = s[0]
	g.dist = s[1]
	g.mass = s[2]
	g.elapsed = t
}

// Stop implements the integrator contract.
func (g *GroundRoll) Stop(t float64) bool {
	if g.done {
		return true
	}
	if g.v >= g.vRot || g.dist >= groundRollLimit || t >= groundRollTimeLimit {
		g.done = true
		return true
	}
	return false
}

// Func implements the integrator contract: the roll dynamics at state s.
func (g *GroundRoll) Func(t float64, s []float64) []float64 {
	v, mass := s[0], s[2]
	if v < 0 {
		v = 0
	}
	st := g.scratch
	atm := StandardAtmosphere(0)
	st.Array(VarDensity)[0] = atm.Density
	st.Array(VarSpeedOfSound)[0] = atm.SpeedOfSound
	st.Array(varTAS)[0] = v
	st.Array(VarMach)[0] = v / atm.SpeedOfSound
	st.Array(varDynPressure)[0] = 0.5 * atm.Density * v * v
	st.Array(VarAngleOfAttack)[0] = g.incidence
	st.Array(VarThrottle)[0] = 1 // takeoff power

	fDot := make([]float64, 3)
	if err := g.prop.Evaluate(st); err != nil {
		// A model failure mid-integration leaves the rates at zero; the
		// distance limit then surfaces the problem as a divergence.
		return fDot
	}
	if err := g.aero.Evaluate(st); err != nil {
		return fDot
	}
	thrust := st.Array(VarThrustTotal)[0]
	lift := st.Array(VarLift)[0]
	drag := st.Array(VarDrag)[0]
	fuelFlow := st.Array(VarFuelFlowTotal)[0]

	normal := mass - lift
	if normal < 0 {
		normal = 0
	}
	fDot[0] = GravityAccel * (thrust*math.Cos(g.incidence) - drag - rollingFriction*normal) / mass
	fDot[1] = v
	fDot[2] = fuelFlow // already negative
	return fDot
}
