package aviary

import (
	"fmt"

	kitlog "github.com/go-kit/kit/log"
)

/* Phase ODE assembly. A phase takes the declarative configuration plus the
subsystem builders and wires one evaluable dynamics function over numNodes
trajectory nodes: atmosphere and kinematic primitives first, then the built
subsystems routed by capability into the throttle-balance or control-iteration
scope, then the closure relations. Wiring is an explicit producer table
validated before any solve; a variable with two producers is a configuration
error, not last-registration-wins. */

// ThrottleEnforcement selects where the throttle-vs-thrust balance applies.
type ThrottleEnforcement uint8

const (
	// ThrottleOff adds no throttle closure; the throttle is a free control
	// the caller constrains externally.
	ThrottleOff ThrottleEnforcement = iota
	// ThrottlePath enforces the balance at every node, unconstrained.
	ThrottlePath
	// ThrottleBoundary enforces the balance only at the first and last node.
	ThrottleBoundary
	// ThrottleBounded enforces the balance at every node with the throttle
	// projected into [0, 1].
	ThrottleBounded
)

func (te ThrottleEnforcement) String() string {
	switch te {
	case ThrottleOff:
		return "off"
	case ThrottlePath:
		return "path_constraint"
	case ThrottleBoundary:
		return "boundary_constraint"
	case ThrottleBounded:
		return "bounded"
	}
	panic("cannot stringify unknown throttle enforcement")
}

// ParseThrottleEnforcement converts the configuration string of a policy.
func ParseThrottleEnforcement(s string) (ThrottleEnforcement, error) {
	switch s {
	case "", "off":
		return ThrottleOff, nil
	case "path_constraint":
		return ThrottlePath, nil
	case "boundary_constraint":
		return ThrottleBoundary, nil
	case "bounded":
		return ThrottleBounded, nil
	}
	return 0, ConfigurationError{Detail: "unknown throttle enforcement " + s}
}

// PhaseUserOptions enumerates every recognized per-phase option. Unknown keys
// are rejected at load time, not silently ignored.
type PhaseUserOptions struct {
	NumSegments int
	Order       int
	GroundRoll  bool
	// Clean selects the cruise method: no flaps, no gear.
	Clean               bool
	ThrottleEnforcement ThrottleEnforcement

	InitialMach     float64
	FinalMach       float64
	MachBounds      [2]float64
	InitialAltitude float64 // ft
	FinalAltitude   float64 // ft
	AltitudeBounds  [2]float64

	FixInitial     bool
	ConstrainFinal bool
	FixDuration    bool
	InitialBounds  [2]float64 // s
	DurationBounds [2]float64 // s

	InitialThrottleLapse float64
	FinalThrottleLapse   float64
}

// NumNodes returns the discretization node count of the phase.
func (o PhaseUserOptions) NumNodes() int {
	return o.NumSegments*o.Order + 1
}

// validate rejects option combinations the assembler cannot honor.
func (o PhaseUserOptions) validate(phase string) error {
	if o.NumSegments < 1 {
		return ConfigurationError{Phase: phase, Detail: "num_segments must be at least 1"}
	}
	if o.Order < 1 {
		return ConfigurationError{Phase: phase, Detail: "order must be at least 1"}
	}
	if o.GroundRoll && o.Clean {
		return ConfigurationError{Phase: phase, Detail: "ground_roll and clean are mutually exclusive"}
	}
	return nil
}

// GuessSpan is an initial guess expressed as (initial value, increment).
type GuessSpan struct {
	Initial float64
	Span    float64
}

// PhaseConfig is the declarative description of one mission phase. Immutable
// once handed to AssemblePhase.
type PhaseConfig struct {
	Name        string
	UserOptions PhaseUserOptions
	// SubsystemOptions carries numeric parameter overrides per subsystem name.
	SubsystemOptions map[string]map[string]float64
	// InitialGuesses maps guess names ("time", "distance") to spans in
	// canonical units (s, NM).
	InitialGuesses map[string]GuessSpan
}

// Variables consumed from outside the phase: the prescribed trajectory and
// the integrated states. Everything else a component consumes must have
// exactly one producer or be a solver control.
var phaseBoundaryInputs = map[string]bool{
	VarAltitude:           true,
	VarVelocity:           true,
	VarMass:               true,
	VarTime:               true,
	VarDistance:           true,
	varDhDr:               true,
	varD2hDr2:             true,
	varDTASDr:             true,
	VarBatteryCurrent:     true,
	VarBatterySOC:         true,
	VarBatteryThevVoltage: true,
}

// PhaseODE is one assembled mission phase: the composed dynamics evaluator
// plus its balance relationships and the node state it exclusively owns.
type PhaseODE struct {
	Name        string
	GroundRoll  bool
	Method      MissionMethod
	Enforcement ThrottleEnforcement

	nn             int
	lapse0, lapse1 float64
	pre            []*SubsystemInstance // top-level scope, evaluated first
	throttle       []*SubsystemInstance // throttle-balance scope (propulsion)
	control        []*SubsystemInstance // control-iteration scope (aero + EOM)
	post           []*SubsystemInstance // closure relations
	balances       []*Balance

	producers map[string]string
	state     *NodeState
	logger    kitlog.Logger
}

// AssemblePhase wires a phase from its configuration and the subsystem
// builders, in declaration order.
func AssemblePhase(cfg PhaseConfig, inputs *AircraftInputs, builders []SubsystemBuilder, logger kitlog.Logger) (*PhaseODE, error) {
	if logger == nil {
		logger = kitlog.NewNopLogger()
	}
	if err := cfg.UserOptions.validate(cfg.Name); err != nil {
		return nil, err
	}
	opts := cfg.UserOptions
	nn := opts.NumNodes()
	method := MethodLowSpeed
	if opts.Clean {
		method = MethodCruise
	}

	ph := &PhaseODE{
		Name:        cfg.Name,
		GroundRoll:  opts.GroundRoll,
		Method:      method,
		Enforcement: opts.ThrottleEnforcement,
		nn:          nn,
		lapse0:      opts.InitialThrottleLapse,
		lapse1:      opts.FinalThrottleLapse,
		producers:   make(map[string]string),
		state:       NewNodeState(nn),
		logger:      kitlog.With(logger, "phase", cfg.Name),
	}

	// Atmosphere and kinematic primitives are always present, not pluggable.
	// The airspeed runs before gamma, which consumes it.
	ph.pre = append(ph.pre, atmosphereComponent(nn), airspeedComponent(nn))
	if !opts.GroundRoll {
		ph.pre = append(ph.pre, gammaComponent(nn))
	}
	ph.pre = append(ph.pre, flightConditionsComponent(nn, opts.GroundRoll))
	if opts.GroundRoll {
		ph.pre = append(ph.pre, initAlphaComponent(nn, inputs))
	}

	// Build and route the pluggable subsystems in declaration order.
	for _, builder := range builders {
		overrides := cfg.SubsystemOptions[builder.Name()]
		inst, err := builder.BuildMission(nn, inputs, method, overrides)
		if err != nil {
			return nil, err
		}
		if inst == nil {
			ph.logger.Log("level", "info", "subsys", "phase", "subsystem", builder.Name(), "message", "contributes nothing")
			continue
		}
		wired := wireAliases(inst)
		switch builder.Type() {
		case SubsystemAerodynamics:
			ph.control = append(ph.control, wired)
		case SubsystemPropulsion:
			ph.throttle = append(ph.throttle, wired)
		default:
			ph.pre = append(ph.pre, wired)
		}
	}

	// Equations of motion close the control-iteration scope.
	ph.control = append(ph.control, eomComponent(nn, opts.GroundRoll))

	// Closure relations.
	ph.post = append(ph.post,
		phaseTimeComponent(nn),
		massRateComponent(nn),
		charImpedanceComponent(nn),
		throttleResidualComponent(nn, opts.InitialThrottleLapse, opts.FinalThrottleLapse),
	)
	if opts.GroundRoll {
		ph.post = append(ph.post, groundRollClosureComponent(nn))
	}

	if err := ph.buildWiringTable(); err != nil {
		return nil, err
	}
	ph.buildBalances()
	ph.seedState(inputs)
	return ph, nil
}

// initAlphaComponent pins the ground-roll angle of attack to the wing
// incidence.
func initAlphaComponent(numNodes int, inputs *AircraftInputs) *SubsystemInstance {
	return &SubsystemInstance{
		Name:    "init_alpha",
		Type:    SubsystemOther,
		Outputs: []string{VarAngleOfAttack},
		Evaluate: func(st *NodeState) error {
			incidence, err := inputs.GetIn(VarWingIncidence, "rad")
			if err != nil {
				return err
			}
			alpha := st.Array(VarAngleOfAttack)
			for i := 0; i < numNodes; i++ {
				alpha[i] = incidence
			}
			return nil
		},
	}
}

// wireAliases bridges a subsystem reading inputs under internal names: the
// canonical array is copied to the alias before the subsystem evaluates.
func wireAliases(inst *SubsystemInstance) *SubsystemInstance {
	var aliased []VarRef
	for _, in := range inst.Inputs {
		if in.Alias != "" && in.Alias != in.Name {
			aliased = append(aliased, in)
		}
	}
	if len(aliased) == 0 {
		return inst
	}
	inner := inst.Evaluate
	wired := *inst
	wired.Evaluate = func(st *NodeState) error {
		for _, in := range aliased {
			st.SetArray(in.Alias, st.Array(in.Name))
		}
		return inner(st)
	}
	return &wired
}

// components returns every wired instance in evaluation order.
func (ph *PhaseODE) components() []*SubsystemInstance {
	all := make([]*SubsystemInstance, 0, len(ph.pre)+len(ph.throttle)+len(ph.control)+len(ph.post))
	all = append(all, ph.pre...)
	all = append(all, ph.throttle...)
	all = append(all, ph.control...)
	all = append(all, ph.post...)
	return all
}

// buildWiringTable validates exactly-one-producer-per-variable and that every
// consumed variable is produced, prescribed at the boundary, or a control.
func (ph *PhaseODE) buildWiringTable() error {
	for _, inst := range ph.components() {
		for _, out := range inst.Outputs {
			if first, taken := ph.producers[out]; taken {
				return PromotionConflictError{Variable: out, First: first, Second: inst.Name}
			}
			ph.producers[out] = inst.Name
		}
	}
	controls := map[string]bool{
		varThrustReq:     true,
		VarThrottle:      true,
		VarAngleOfAttack: !ph.GroundRoll,
	}
	for _, inst := range ph.components() {
		for _, in := range inst.Inputs {
			name := in.Name
			if _, produced := ph.producers[name]; produced {
				continue
			}
			if phaseBoundaryInputs[name] || controls[name] {
				continue
			}
			return ConfigurationError{
				Phase:  ph.Name,
				Detail: fmt.Sprintf("input %q of %q has no producer", name, inst.Name),
			}
		}
	}
	return nil
}

// buildBalances appends the closure equations the solver iterates on.
func (ph *PhaseODE) buildBalances() {
	// Thrust required reconciles the prescribed airspeed profile with the
	// accelerations the forces produce.
	ph.balances = append(ph.balances, &Balance{
		Control: varThrustReq,
		LHS:     varDTASDtApprox,
		RHS:     varDTASDt,
		EqUnits: "ft/s**2",
		Guess:   100,
	})
	// On the ground the flight-path angle is identically zero and the
	// angle-of-attack degree of freedom collapses.
	if !ph.GroundRoll {
		ph.balances = append(ph.balances, &Balance{
			Control: VarAngleOfAttack,
			LHS:     varDgamDtApprox,
			RHS:     varDgamDt,
			EqUnits: "rad/s",
			Guess:   0,
		})
	}
	switch ph.Enforcement {
	case ThrottleOff:
		// No closure equation: the throttle is externally constrained.
	case ThrottlePath:
		ph.balances = append(ph.balances, ph.throttleBalance(nil))
	case ThrottleBoundary:
		last := ph.nn - 1
		ph.balances = append(ph.balances, ph.throttleBalance(func(node int) bool {
			return node == 0 || node == last
		}))
	case ThrottleBounded:
		bal := ph.throttleBalance(nil)
		bal.Bounded = true
		bal.Lower = 0
		bal.Upper = 1
		ph.balances = append(ph.balances, bal)
	}
}

func (ph *PhaseODE) throttleBalance(activeAt func(int) bool) *Balance {
	return &Balance{
		Control:  VarThrottle,
		LHS:      VarThrustTotal,
		RHS:      varThrustReq,
		EqUnits:  "lbf",
		Guess:    0.5,
		ActiveAt: activeAt,
	}
}

// seedState fills the prescribed arrays with their registry defaults and the
// throttle with the lapse profile, so a phase is evaluable before the mission
// overwrites the trajectory.
func (ph *PhaseODE) seedState(inputs *AircraftInputs) {
	reg := inputs.Registry()
	for name := range phaseBoundaryInputs {
		if meta, err := reg.Lookup(name); err == nil {
			ph.state.Fill(name, meta.Default)
		} else {
			ph.state.Fill(name, 0)
		}
	}
	if ph.lapse0 == 0 && ph.lapse1 == 0 {
		ph.state.Fill(VarThrottle, 0.5)
	} else {
		// Nodes outside the enforced balance follow the prescribed lapse.
		ph.state.SetArray(VarThrottle, linspace(ph.lapse0, ph.lapse1, ph.nn))
	}
	ph.state.Fill(VarAngleOfAttack, 0)
	ph.state.Fill(varThrustReq, 100)
}

// Label implements BalanceSystem.
func (ph *PhaseODE) Label() string {
	return ph.Name
}

// NumNodes implements BalanceSystem.
func (ph *PhaseODE) NumNodes() int {
	return ph.nn
}

// Balances implements BalanceSystem.
func (ph *PhaseODE) Balances() []*Balance {
	return ph.balances
}

// State implements BalanceSystem: the node state this phase exclusively owns.
func (ph *PhaseODE) State() *NodeState {
	return ph.state
}

// Evaluate implements BalanceSystem. It is a pure function of the node state
// and controls: same state in, same outputs out.
func (ph *PhaseODE) Evaluate() error {
	for _, inst := range ph.components() {
		if err := inst.Evaluate(ph.state); err != nil {
			return fmt.Errorf("phase %q: subsystem %q: %w", ph.Name, inst.Name, err)
		}
	}
	return nil
}

// Solve drives the balance controls to convergence.
func (ph *PhaseODE) Solve() (*NewtonSolver, error) {
	solver := NewNewtonSolver(ph.logger)
	err := solver.Solve(ph)
	return solver, err
}
