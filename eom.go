package aviary

import "math"

/* Two-dimensional point-mass equations of motion over range. The trajectory
(altitude and airspeed versus range) is prescribed at the nodes; these
components provide the rates that realize it and the rates the forces actually
produce. The balance solver reconciles the two. */

// Internal promoted names shared between the kinematic components and the
// balance relationships.
const (
	varTAS           = "tas"     // true airspeed, ft/s
	varDhDr          = "dh_dr"   // altitude gradient wrt range, unitless
	varD2hDr2        = "d2h_dr2" // curvature wrt range, 1/ft
	varDTASDr        = "dtas_dr" // airspeed gradient wrt range, (ft/s)/ft
	varDynPressure   = "q"       // dynamic pressure, lbf/ft**2
	varDtDr          = "dt_dr"   // time per unit range, s/ft
	varDTASDtApprox  = "dtas_dt_approx"
	varDTASDt        = "dtas_dt"
	varDgamDtApprox  = "dgam_dt_approx"
	varDgamDt        = "dgam_dt"
	varThrustReq     = "thrust_req" // lbf
	varPhaseTime     = "phase_time"
	varMassRate      = "dmass_dr" // lbm/ft
	varDtDv          = "dt_dv"    // s/kn, ground roll only
	varDmassDv       = "dmass_dv" // lbm/kn, ground roll only
	varCharImpedance = "char_impedance"
	varThrottleRes   = "throttle_residual"
)

const rollingFriction = 0.025

// gammaComponent derives the flight-path angle and its time rate from the
// prescribed altitude profile. Not used for ground roll, where gamma is
// identically zero.
func gammaComponent(numNodes int) *SubsystemInstance {
	return &SubsystemInstance{
		Name:   "flight_path_angle",
		Type:   SubsystemOther,
		Inputs: []VarRef{{Name: varDhDr}, {Name: varD2hDr2}, {Name: varTAS}},
		Outputs: []string{
			VarFlightPathAngle, varDgamDtApprox,
		},
		Evaluate: func(st *NodeState) error {
			dhdr := st.Array(varDhDr)
			d2h := st.Array(varD2hDr2)
			tas := st.Array(varTAS)
			gam := st.Array(VarFlightPathAngle)
			dgamApprox := st.Array(varDgamDtApprox)
			for i := 0; i < numNodes; i++ {
				gam[i] = math.Atan(dhdr[i])
				dgamDr := d2h[i] / (1 + dhdr[i]*dhdr[i])
				dgamApprox[i] = dgamDr * tas[i] * math.Cos(gam[i])
			}
			return nil
		},
	}
}

// airspeedComponent converts the node airspeeds into true airspeed, Mach and
// dynamic pressure. It runs before the flight-path angle is derived, so the
// kinematic chain stays one-directional.
func airspeedComponent(numNodes int) *SubsystemInstance {
	return &SubsystemInstance{
		Name: "airspeed",
		Type: SubsystemOther,
		Inputs: []VarRef{
			{Name: VarVelocity}, {Name: VarDensity}, {Name: VarSpeedOfSound},
		},
		Outputs: []string{varTAS, VarMach, varDynPressure},
		Evaluate: func(st *NodeState) error {
			vel := st.Array(VarVelocity)
			rho := st.Array(VarDensity)
			sos := st.Array(VarSpeedOfSound)
			tas := st.Array(varTAS)
			mach := st.Array(VarMach)
			q := st.Array(varDynPressure)
			for i := 0; i < numNodes; i++ {
				v, err := ConvertUnits(vel[i], "kn", "ft/s")
				if err != nil {
					return err
				}
				tas[i] = v
				mach[i] = v / sos[i]
				q[i] = 0.5 * rho[i] * v * v
			}
			return nil
		},
	}
}

// flightConditionsComponent closes the range kinematics: the time spent per
// unit range and the airspeed rate the prescribed profile implies.
func flightConditionsComponent(numNodes int, groundRoll bool) *SubsystemInstance {
	inputs := []VarRef{{Name: varTAS}, {Name: varDTASDr}}
	if !groundRoll {
		inputs = append(inputs, VarRef{Name: VarFlightPathAngle})
	}
	return &SubsystemInstance{
		Name:    "flight_conditions",
		Type:    SubsystemOther,
		Inputs:  inputs,
		Outputs: []string{varDtDr, varDTASDtApprox},
		Evaluate: func(st *NodeState) error {
			tas := st.Array(varTAS)
			dtasdr := st.Array(varDTASDr)
			dtdr := st.Array(varDtDr)
			approx := st.Array(varDTASDtApprox)
			var gam []float64
			if !groundRoll {
				gam = st.Array(VarFlightPathAngle)
			}
			for i := 0; i < numNodes; i++ {
				cosGam := 1.0
				if !groundRoll {
					cosGam = math.Cos(gam[i])
				}
				// Range is the integration variable: dr/dt = v cos(gamma).
				dtdr[i] = 1 / (tas[i] * cosGam)
				approx[i] = dtasdr[i] * tas[i] * cosGam
			}
			return nil
		},
	}
}

// eomComponent provides the rates the current forces produce. The thrust input
// is the required thrust being solved for, not the propulsion output; the
// discrepancy between the two is closed by the throttle balance.
func eomComponent(numNodes int, groundRoll bool) *SubsystemInstance {
	// The thrust input is wired to the required-thrust control, not to the
	// propulsion output; the throttle balance closes that gap.
	inputs := []VarRef{
		{Name: varThrustReq},
		{Name: varTAS}, {Name: VarMass},
		{Name: VarLift}, {Name: VarDrag},
		{Name: VarAngleOfAttack},
	}
	outputs := []string{varDTASDt}
	if !groundRoll {
		inputs = append(inputs, VarRef{Name: VarFlightPathAngle})
		outputs = append(outputs, varDgamDt)
	}
	return &SubsystemInstance{
		Name:    "eom",
		Type:    SubsystemOther,
		Inputs:  inputs,
		Outputs: outputs,
		Evaluate: func(st *NodeState) error {
			thrust := st.Array(varThrustReq)
			tas := st.Array(varTAS)
			mass := st.Array(VarMass)
			lift := st.Array(VarLift)
			drag := st.Array(VarDrag)
			alpha := st.Array(VarAngleOfAttack)
			dtasdt := st.Array(varDTASDt)
			if groundRoll {
				for i := 0; i < numNodes; i++ {
					normal := mass[i] - lift[i]
					if normal < 0 {
						normal = 0
					}
					accel := thrust[i]*math.Cos(alpha[i]) - drag[i] - rollingFriction*normal
					dtasdt[i] = GravityAccel * accel / mass[i]
				}
				return nil
			}
			gam := st.Array(VarFlightPathAngle)
			dgamdt := st.Array(varDgamDt)
			for i := 0; i < numNodes; i++ {
				sinG, cosG := math.Sincos(gam[i])
				dtasdt[i] = GravityAccel * ((thrust[i]*math.Cos(alpha[i])-drag[i])/mass[i] - sinG)
				dgamdt[i] = GravityAccel / tas[i] * ((thrust[i]*math.Sin(alpha[i])+lift[i])/mass[i] - cosG)
			}
			return nil
		},
	}
}

// phaseTimeComponent computes the elapsed time within the phase.
func phaseTimeComponent(numNodes int) *SubsystemInstance {
	return &SubsystemInstance{
		Name:    "compute_phase_time",
		Type:    SubsystemOther,
		Inputs:  []VarRef{{Name: VarTime}},
		Outputs: []string{varPhaseTime},
		Evaluate: func(st *NodeState) error {
			tm := st.Array(VarTime)
			pt := st.Array(varPhaseTime)
			for i := 0; i < numNodes; i++ {
				pt[i] = tm[i] - tm[0]
			}
			return nil
		},
	}
}

// massRateComponent integrates fuel burn per unit range.
func massRateComponent(numNodes int) *SubsystemInstance {
	return &SubsystemInstance{
		Name:    "mass_rate",
		Type:    SubsystemOther,
		Inputs:  []VarRef{{Name: VarFuelFlowTotal}, {Name: varDtDr}},
		Outputs: []string{varMassRate},
		Evaluate: func(st *NodeState) error {
			ff := st.Array(VarFuelFlowTotal)
			dtdr := st.Array(varDtDr)
			dm := st.Array(varMassRate)
			for i := 0; i < numNodes; i++ {
				dm[i] = ff[i] * dtdr[i]
			}
			return nil
		},
	}
}

// groundRollClosureComponent recasts the roll rates against airspeed, the
// variable that decides the rotation point: the time spent and the fuel burned
// per knot gained.
func groundRollClosureComponent(numNodes int) *SubsystemInstance {
	return &SubsystemInstance{
		Name:    "groundroll_closure",
		Type:    SubsystemOther,
		Inputs:  []VarRef{{Name: varDTASDt}, {Name: VarFuelFlowTotal}},
		Outputs: []string{varDtDv, varDmassDv},
		Evaluate: func(st *NodeState) error {
			dtasdt := st.Array(varDTASDt)
			ff := st.Array(VarFuelFlowTotal)
			dtdv := st.Array(varDtDv)
			dmdv := st.Array(varDmassDv)
			for i := 0; i < numNodes; i++ {
				v, err := ConvertUnits(1/dtasdt[i], "s/(ft/s)", "s/kn")
				if err != nil {
					return err
				}
				dtdv[i] = v
				dmdv[i] = ff[i] * v
			}
			return nil
		},
	}
}

// charImpedanceComponent computes the characteristic acoustic impedance,
// consumed by external acoustics models.
func charImpedanceComponent(numNodes int) *SubsystemInstance {
	return &SubsystemInstance{
		Name:    "char_impedance_comp",
		Type:    SubsystemOther,
		Inputs:  []VarRef{{Name: VarDensity}, {Name: VarSpeedOfSound}},
		Outputs: []string{varCharImpedance},
		Evaluate: func(st *NodeState) error {
			rho := st.Array(VarDensity)
			sos := st.Array(VarSpeedOfSound)
			z := st.Array(varCharImpedance)
			for i := 0; i < numNodes; i++ {
				z[i] = rho[i] * sos[i]
			}
			return nil
		},
	}
}

// throttleResidualComponent reports the gap between the solved throttle and a
// prescribed linear lapse profile across the phase.
func throttleResidualComponent(numNodes int, initialLapse, finalLapse float64) *SubsystemInstance {
	prescribed := linspace(initialLapse, finalLapse, numNodes)
	return &SubsystemInstance{
		Name:    "compute_throttle_residual",
		Type:    SubsystemOther,
		Inputs:  []VarRef{{Name: VarThrottle}},
		Outputs: []string{varThrottleRes},
		Evaluate: func(st *NodeState) error {
			throttle := st.Array(VarThrottle)
			res := st.Array(varThrottleRes)
			for i := 0; i < numNodes; i++ {
				res[i] = throttle[i] - prescribed[i]
			}
			return nil
		},
	}
}
