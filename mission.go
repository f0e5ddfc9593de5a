package aviary

import (
	"math"
	"sync"

	kitlog "github.com/go-kit/kit/log"
)

var wg sync.WaitGroup

/* Drives the mission: an optional takeoff roll, then every configured phase in
order. Each phase is assembled, given its prescribed altitude and Mach profile,
chained to the previous phase terminal state, and solved. Time and mass are
then recovered by quadrature over range and the phase is solved once more with
the updated mass profile. */

const (
	// The range formulation divides by airspeed; a phase prescribed from rest
	// is floored to this Mach number.
	minPrescribedMach = 0.05
	brakingFriction   = 0.30
	// solver refinement passes after the mass profile update
	massPasses = 1
	// under optimize_mass, keep refining until the fuel estimate settles
	massPassLimit = 5
	massPassTol   = 1e-6 // lbm
)

// PhaseResult records one solved phase.
type PhaseResult struct {
	Name        string
	GroundRoll  bool
	Iterations  int
	StartTime   float64 // s
	Duration    float64 // s
	StartRange  float64 // NM
	RangeFlown  float64 // NM
	InitialMass float64 // lbm
	FuelBurned  float64 // lbm
	// ContinuityResiduals holds the mismatch between this phase's prescribed
	// initial node and the previous phase's terminal node, measured before any
	// pinning. Keyed by canonical variable name.
	ContinuityResiduals map[string]float64
	// TerminalResiduals holds the constrain_final mismatch between the solved
	// terminal node and the configured end point, and the fix_duration
	// mismatch against the time guess. Left for the outer optimizer.
	TerminalResiduals map[string]float64
}

// MissionSummary aggregates the sequence outcome.
type MissionSummary struct {
	TakeoffDistance float64 // ft, zero unless takeoff is included
	Phases          []PhaseResult
	TotalRange      float64 // NM
	TotalDuration   float64 // s
	TotalFuel       float64 // lbm
	FinalMass       float64 // lbm
	// RangeResidual is flown minus target range, NM. Only set when the
	// mission constrains range.
	RangeResidual float64
	// LandingDistance is the braking roll from the terminal airspeed, ft.
	// Only set when landing is included.
	LandingDistance float64
}

// Mission sequences the configured phases over the aircraft model.
type Mission struct {
	Config   *MissionConfig
	Inputs   *AircraftInputs
	Builders []SubsystemBuilder
	Summary  MissionSummary
	// Trajectory holds every solved node in sequence order, regardless of
	// export configuration.
	Trajectory []TrajectoryState

	histChan chan<- TrajectoryState
	logger   kitlog.Logger
	done     bool
}

// NewMission returns a mission ready to run. A non-useless export
// configuration starts the trajectory streamer.
func NewMission(cfg *MissionConfig, inputs *AircraftInputs, builders []SubsystemBuilder, conf ExportConfig, logger kitlog.Logger) *Mission {
	if logger == nil {
		logger = kitlog.NewNopLogger()
	}
	var histChan chan TrajectoryState
	if !conf.IsUseless() {
		histChan = make(chan TrajectoryState, 1000) // a 1k entry buffer
		wg.Add(1)
		go func() {
			defer wg.Done()
			StreamStates(conf, histChan)
		}()
	}
	return &Mission{
		Config:   cfg,
		Inputs:   inputs,
		Builders: builders,
		histChan: histChan,
		logger:   kitlog.With(logger, "subsys", "mission"),
	}
}

// LogStatus reports the running totals of the sequence.
func (m *Mission) LogStatus() {
	m.logger.Log("level", "info", "range(NM)", m.Summary.TotalRange,
		"duration(s)", m.Summary.TotalDuration, "fuel(lbm)", m.Summary.TotalFuel,
		"mass(lbm)", m.Summary.FinalMass)
}

// Run executes the sequence. The summary is valid only when the returned
// error is nil. A mission runs once: the trajectory stream is closed on
// return.
func (m *Mission) Run() error {
	if m.done {
		return ConfigurationError{Detail: "mission already run"}
	}
	defer func() {
		m.done = true
		if m.histChan != nil {
			close(m.histChan)
		}
		wg.Wait() // Don't return until we're done writing all the files.
	}()

	mass, err := m.Inputs.Get(VarMass)
	if err != nil {
		return err
	}
	m.Summary.FinalMass = mass
	clock, rangeNM := 0.0, 0.0

	if m.Config.PreMission.IncludeTakeoff {
		roll, err := NewGroundRoll(m.Inputs, m.Builders, mass, m.logger)
		if err != nil {
			return err
		}
		if err = roll.Propagate(); err != nil {
			return err
		}
		m.Summary.TakeoffDistance = roll.Distance()
		mass = roll.FinalMass()
		clock = roll.Duration()
		if rollNM, cerr := ConvertUnits(roll.Distance(), "ft", "NM"); cerr == nil {
			rangeNM = rollNM
		}
		m.stream(TrajectoryState{
			Phase: "takeoff_roll", Time: clock, Distance: rangeNM,
			TAS: roll.RotationSpeed(), Mass: mass, Throttle: 1,
		})
	}

	// Terminal state of the previous phase, for continuity chaining.
	var prevAlt, prevVel float64
	havePrev := false

	for _, pc := range m.Config.Phases {
		ph, err := AssemblePhase(pc, m.Inputs, m.Builders, m.logger)
		if err != nil {
			return err
		}
		res := PhaseResult{
			Name:        pc.Name,
			GroundRoll:  ph.GroundRoll,
			StartTime:   clock,
			StartRange:  rangeNM,
			InitialMass: mass,
		}

		alt, vel, distNM := m.prescribe(ph, pc, rangeNM)
		if havePrev {
			res.ContinuityResiduals = map[string]float64{
				VarAltitude: alt[0] - prevAlt,
				VarVelocity: vel[0] - prevVel,
			}
			if pc.UserOptions.FixInitial {
				// Pin the junction to the upstream terminal state; the rest of
				// the profile keeps its prescribed shape.
				alt[0] = prevAlt
				vel[0] = prevVel
			}
		}
		ph.State().Fill(VarMass, mass)

		solver, err := ph.Solve()
		if err != nil {
			return err
		}
		res.Iterations = solver.Iterations()

		// Time and mass by quadrature over range, then a refinement solve so
		// the forces see the burned-off mass.
		passes := massPasses
		if m.Config.PreMission.OptimizeMass {
			passes = massPassLimit
		}
		prevBurn := math.Inf(1)
		for pass := 0; pass <= passes; pass++ {
			tEnd, mEnd := m.integrate(ph, distNM, clock, mass)
			res.Duration = tEnd - clock
			res.FuelBurned = mass - mEnd
			if pass == passes || math.Abs(res.FuelBurned-prevBurn) < massPassTol {
				break
			}
			prevBurn = res.FuelBurned
			if solver, err = ph.Solve(); err != nil {
				return err
			}
			res.Iterations += solver.Iterations()
		}

		m.streamPhase(ph)
		st := ph.State()
		last := ph.NumNodes() - 1
		if pc.UserOptions.ConstrainFinal {
			res.TerminalResiduals = map[string]float64{
				VarAltitude: st.Array(VarAltitude)[last] - pc.UserOptions.FinalAltitude,
				VarMach:     st.Array(VarMach)[last] - pc.UserOptions.FinalMach,
			}
		}
		if tg, ok := pc.InitialGuesses["time"]; ok && pc.UserOptions.FixDuration {
			if res.TerminalResiduals == nil {
				res.TerminalResiduals = make(map[string]float64)
			}
			res.TerminalResiduals[VarTime] = res.Duration - tg.Span
		}
		if b := pc.UserOptions.InitialBounds; b[1] > b[0] && (res.StartTime < b[0] || res.StartTime > b[1]) {
			m.logger.Log("level", "warning", "phase", pc.Name, "start(s)", res.StartTime,
				"msg", "start time outside initial_bounds")
		}
		if b := pc.UserOptions.DurationBounds; b[1] > b[0] && (res.Duration < b[0] || res.Duration > b[1]) {
			m.logger.Log("level", "warning", "phase", pc.Name, "duration(s)", res.Duration,
				"msg", "duration outside duration_bounds")
		}
		prevAlt = st.Array(VarAltitude)[last]
		prevVel = st.Array(VarVelocity)[last]
		havePrev = true

		clock += res.Duration
		res.RangeFlown = distNM[last] - rangeNM
		rangeNM = distNM[last]
		mass -= res.FuelBurned

		m.Summary.Phases = append(m.Summary.Phases, res)
		m.Summary.TotalRange = rangeNM
		m.Summary.TotalDuration = clock
		m.Summary.TotalFuel += res.FuelBurned
		m.Summary.FinalMass = mass
		m.logger.Log("level", "info", "phase", pc.Name, "status", "solved",
			"iterations", res.Iterations, "range(NM)", res.RangeFlown,
			"duration(s)", res.Duration, "fuel(lbm)", res.FuelBurned)
	}

	if m.Config.PostMission.ConstrainRange {
		target, err := m.Config.PostMission.TargetRange.In("NM")
		if err != nil {
			return err
		}
		m.Summary.RangeResidual = m.Summary.TotalRange - target
		level := "info"
		if math.Abs(m.Summary.RangeResidual) > 1 {
			level = "warning"
		}
		m.logger.Log("level", level, "range(NM)", m.Summary.TotalRange,
			"target(NM)", target, "residual(NM)", m.Summary.RangeResidual)
	}
	if m.Config.PostMission.IncludeLanding {
		m.Summary.LandingDistance = m.landingRoll()
		m.logger.Log("level", "info", "landing(ft)", m.Summary.LandingDistance)
	}
	m.LogStatus()
	return nil
}

// prescribe lays the configured trajectory into the phase state: linear
// altitude and Mach over the range guess, with the gradients the closure
// relations consume. Returns the altitude (ft), velocity (kn) and distance
// (NM) arrays, which stay live views into the state.
func (m *Mission) prescribe(ph *PhaseODE, pc PhaseConfig, startNM float64) (alt, vel, distNM []float64) {
	opts := pc.UserOptions
	nn := ph.NumNodes()
	st := ph.State()

	span := pc.InitialGuesses["distance"].Span
	if span <= 0 {
		span = 50 // NM, a benign guess when the config stays silent
	}
	distNM = linspace(startNM, startNM+span, nn)
	st.SetArray(VarDistance, distNM)
	distNM = st.Array(VarDistance)
	spanFt, _ := ConvertUnits(span, "NM", "ft")

	alt0, altF := opts.InitialAltitude, opts.FinalAltitude
	if ph.GroundRoll {
		altF = alt0
	}
	profile := linspace(alt0, altF, nn)
	if b := opts.AltitudeBounds; b[1] > b[0] {
		for i := range profile {
			profile[i] = clamp(profile[i], b[0], b[1])
		}
	}
	st.SetArray(VarAltitude, profile)
	alt = st.Array(VarAltitude)

	mach0 := math.Max(opts.InitialMach, minPrescribedMach)
	machF := math.Max(opts.FinalMach, minPrescribedMach)
	machs := linspace(mach0, machF, nn)
	if b := opts.MachBounds; b[1] > b[0] {
		for i := range machs {
			machs[i] = clamp(machs[i], b[0], b[1])
		}
	}
	vel = st.Array(VarVelocity)
	tas := make([]float64, nn)
	for i := 0; i < nn; i++ {
		tas[i] = machs[i] * StandardAtmosphere(alt[i]).SpeedOfSound
		vel[i], _ = ConvertUnits(tas[i], "ft/s", "kn")
	}

	st.Fill(varDhDr, (altF-alt0)/spanFt)
	st.Fill(varD2hDr2, 0)
	st.Fill(varDTASDr, (tas[nn-1]-tas[0])/spanFt)
	if tg, ok := pc.InitialGuesses["time"]; ok && tg.Span > 0 {
		st.SetArray(VarTime, linspace(tg.Initial, tg.Initial+tg.Span, nn))
	}
	return alt, vel, distNM
}

// integrate recovers elapsed time and the mass profile by trapezoidal
// quadrature of dt/dr and dm/dr over the range grid, writing both back into
// the state. Returns the terminal time and mass.
func (m *Mission) integrate(ph *PhaseODE, distNM []float64, t0, m0 float64) (tEnd, mEnd float64) {
	st := ph.State()
	nn := ph.NumNodes()
	distFt, _ := ConvertSlice(distNM, "NM", "ft")
	dtdr := st.Array(varDtDr)
	dmdr := st.Array(varMassRate) // negative
	tm := st.Array(VarTime)
	ms := st.Array(VarMass)
	tm[0], ms[0] = t0, m0
	for i := 1; i < nn; i++ {
		tm[i] = tm[i-1] + trapezoid(distFt[i-1:i+1], dtdr[i-1:i+1])
		ms[i] = ms[i-1] + trapezoid(distFt[i-1:i+1], dmdr[i-1:i+1])
	}
	return tm[nn-1], ms[nn-1]
}

// landingRoll estimates the braking distance from the terminal airspeed of
// the last phase.
func (m *Mission) landingRoll() float64 {
	n := len(m.Summary.Phases)
	if n == 0 {
		return 0
	}
	lastMach := m.Config.Phases[n-1].UserOptions.FinalMach
	lastAlt := m.Config.Phases[n-1].UserOptions.FinalAltitude
	v := lastMach * StandardAtmosphere(lastAlt).SpeedOfSound
	return v * v / (2 * GravityAccel * brakingFriction)
}

func (m *Mission) stream(ts TrajectoryState) {
	m.Trajectory = append(m.Trajectory, ts)
	if m.histChan != nil {
		m.histChan <- ts
	}
}

// streamPhase pushes every node of a solved phase to the exporter.
func (m *Mission) streamPhase(ph *PhaseODE) {
	st := ph.State()
	// Ground-roll phases never allocate a flight-path angle array.
	gamma := func(i int) float64 {
		if !st.Has(VarFlightPathAngle) {
			return 0
		}
		return st.Array(VarFlightPathAngle)[i]
	}
	for i := 0; i < ph.NumNodes(); i++ {
		m.stream(TrajectoryState{
			Phase:    ph.Name,
			Node:     i,
			Time:     st.Array(VarTime)[i],
			Distance: st.Array(VarDistance)[i],
			Altitude: st.Array(VarAltitude)[i],
			TAS:      st.Array(varTAS)[i],
			Mach:     st.Array(VarMach)[i],
			Mass:     st.Array(VarMass)[i],
			Throttle: st.Array(VarThrottle)[i],
			Alpha:    st.Array(VarAngleOfAttack)[i],
			Gamma:    gamma(i),
			Thrust:   st.Array(VarThrustTotal)[i],
			FuelFlow: st.Array(VarFuelFlowTotal)[i],
		})
	}
}
