package aviary

import (
	"testing"

	"github.com/gonum/floats"
)

func TestStandardAtmosphereSeaLevel(t *testing.T) {
	at := StandardAtmosphere(0)
	if !floats.EqualWithinAbsOrRel(at.Temperature, 518.67, 1e-9, 1e-9) {
		t.Fatalf("sea level temperature %v", at.Temperature)
	}
	if !floats.EqualWithinAbsOrRel(at.StaticPressure, 2116.22, 1e-9, 1e-9) {
		t.Fatalf("sea level pressure %v", at.StaticPressure)
	}
	if !floats.EqualWithinAbsOrRel(at.Density, 2.3769e-3, 0, 1e-3) {
		t.Fatalf("sea level density %v", at.Density)
	}
	if !floats.EqualWithinAbsOrRel(at.SpeedOfSound, 1116.45, 0, 1e-3) {
		t.Fatalf("sea level speed of sound %v", at.SpeedOfSound)
	}
}

func TestStandardAtmosphereTropopauseContinuity(t *testing.T) {
	below := StandardAtmosphere(tropopauseAlt - 1e-6)
	above := StandardAtmosphere(tropopauseAlt + 1e-6)
	if !floats.EqualWithinAbsOrRel(below.StaticPressure, above.StaticPressure, 1e-6, 1e-9) {
		t.Fatalf("pressure discontinuity at the tropopause: %v vs %v", below.StaticPressure, above.StaticPressure)
	}
	if !floats.EqualWithinAbsOrRel(below.Density, above.Density, 1e-9, 1e-9) {
		t.Fatalf("density discontinuity at the tropopause: %v vs %v", below.Density, above.Density)
	}
}

func TestStandardAtmosphereDerivatives(t *testing.T) {
	// Closed-form derivatives against central differences.
	for _, alt := range []float64{5000.0, 20000.0, 45000.0} {
		h := 1.0
		lo := StandardAtmosphere(alt - h)
		hi := StandardAtmosphere(alt + h)
		at := StandardAtmosphere(alt)
		fdSos := (hi.SpeedOfSound - lo.SpeedOfSound) / (2 * h)
		fdRho := (hi.Density - lo.Density) / (2 * h)
		if !floats.EqualWithinAbsOrRel(at.DSosDh, fdSos, 1e-9, 1e-5) {
			t.Fatalf("alt %v: dsos/dh %v vs finite difference %v", alt, at.DSosDh, fdSos)
		}
		if !floats.EqualWithinAbsOrRel(at.DRhoDh, fdRho, 1e-12, 1e-5) {
			t.Fatalf("alt %v: drho/dh %v vs finite difference %v", alt, at.DRhoDh, fdRho)
		}
	}
}

func TestAtmosphereComponent(t *testing.T) {
	comp := atmosphereComponent(2)
	st := NewNodeState(2)
	st.SetArray(VarAltitude, []float64{0, 35000})
	if err := comp.Evaluate(st); err != nil {
		t.Fatal(err)
	}
	rho := st.Array(VarDensity)
	if rho[1] >= rho[0] {
		t.Fatal("density must decrease with altitude")
	}
	sos := st.Array(VarSpeedOfSound)
	if sos[1] >= sos[0] {
		t.Fatal("speed of sound must decrease through the troposphere")
	}
}
