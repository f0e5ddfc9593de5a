package aviary

import "math"

/* 1976 US standard atmosphere in English engineering units, valid through the
lower stratosphere. Always present in a phase; not a pluggable subsystem. */

const (
	seaLevelTemp     = 518.67    // degR
	seaLevelPressure = 2116.22   // lbf/ft**2
	tropoLapseRate   = 3.5662e-3 // degR/ft
	tropopauseAlt    = 36089.24  // ft
	airGasConstant   = 1716.59   // ft*lbf/(slug*degR)
	airGamma         = 1.4
	// RhoSeaLevel is the sea-level density in slug/ft**3.
	RhoSeaLevel = 2.37689e-3
	// GravityAccel is the standard gravity in ft/s**2.
	GravityAccel = 32.17405
)

// Atmos holds the ambient conditions at one altitude.
type Atmos struct {
	Temperature    float64 // degR
	StaticPressure float64 // lbf/ft**2
	Density        float64 // slug/ft**3
	SpeedOfSound   float64 // ft/s
	DSosDh         float64 // ft/s per ft
	DRhoDh         float64 // slug/ft**3 per ft
}

// StandardAtmosphere evaluates the ambient conditions at a geopotential
// altitude in feet.
func StandardAtmosphere(altFt float64) Atmos {
	var temp, press float64
	tropopauseTemp := seaLevelTemp - tropoLapseRate*tropopauseAlt
	if altFt <= tropopauseAlt {
		temp = seaLevelTemp - tropoLapseRate*altFt
		press = seaLevelPressure * math.Pow(temp/seaLevelTemp, GravityAccel/(tropoLapseRate*airGasConstant))
	} else {
		temp = tropopauseTemp
		pTrop := seaLevelPressure * math.Pow(tropopauseTemp/seaLevelTemp, GravityAccel/(tropoLapseRate*airGasConstant))
		press = pTrop * math.Exp(-GravityAccel*(altFt-tropopauseAlt)/(airGasConstant*tropopauseTemp))
	}
	rho := press / (airGasConstant * temp)
	sos := math.Sqrt(airGamma * airGasConstant * temp)

	// Altitude derivatives, closed form in the troposphere, isothermal above.
	var dSosDh, dRhoDh float64
	if altFt <= tropopauseAlt {
		dTdh := -tropoLapseRate
		dSosDh = 0.5 * sos / temp * dTdh
		dPdh := press * GravityAccel / (tropoLapseRate * airGasConstant) * dTdh / temp
		dRhoDh = (dPdh - press/temp*dTdh) / (airGasConstant * temp)
	} else {
		dPdh := -press * GravityAccel / (airGasConstant * temp)
		dSosDh = 0
		dRhoDh = dPdh / (airGasConstant * temp)
	}

	return Atmos{
		Temperature:    temp,
		StaticPressure: press,
		Density:        rho,
		SpeedOfSound:   sos,
		DSosDh:         dSosDh,
		DRhoDh:         dRhoDh,
	}
}

// atmosphereComponent wires the standard atmosphere into a phase: altitude in,
// ambient conditions out at every node.
func atmosphereComponent(numNodes int) *SubsystemInstance {
	return &SubsystemInstance{
		Name: "atmosphere",
		Type: SubsystemOther,
		Inputs: []VarRef{
			{Name: VarAltitude},
		},
		Outputs: []string{
			VarDensity, VarSpeedOfSound, VarTemperature, VarStaticPressure,
			"dsos_dh", "drho_dh",
		},
		Evaluate: func(st *NodeState) error {
			alt := st.Array(VarAltitude)
			rho := st.Array(VarDensity)
			sos := st.Array(VarSpeedOfSound)
			temp := st.Array(VarTemperature)
			press := st.Array(VarStaticPressure)
			dsos := st.Array("dsos_dh")
			drho := st.Array("drho_dh")
			for i := 0; i < numNodes; i++ {
				at := StandardAtmosphere(alt[i])
				rho[i] = at.Density
				sos[i] = at.SpeedOfSound
				temp[i] = at.Temperature
				press[i] = at.StaticPressure
				dsos[i] = at.DSosDh
				drho[i] = at.DRhoDh
			}
			return nil
		},
	}
}
