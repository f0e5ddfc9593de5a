package aviary

import (
	"fmt"
	"os"
	"time"
)

// TrajectoryState is one collocation node of a solved phase, as streamed to
// the exporter.
type TrajectoryState struct {
	Phase    string
	Node     int
	Time     float64 // s from phase sequence start
	Distance float64 // NM
	Altitude float64 // ft
	TAS      float64 // ft/s
	Mach     float64
	Mass     float64 // lbm
	Throttle float64
	Alpha    float64 // rad
	Gamma    float64 // rad
	Thrust   float64 // lbf
	FuelFlow float64 // lbm/s, negative
}

// ExportConfig configures the exporting of the solved trajectory.
type ExportConfig struct {
	Filename     string
	AsCSV        bool
	Timestamp    bool
	CSVAppend    func(st TrajectoryState) string // Custom export (do not include leading comma)
	CSVAppendHdr func() string                   // Header for the custom export
}

// IsUseless returns whether this config doesn't actually do anything.
func (c ExportConfig) IsUseless() bool {
	return !c.AsCSV
}

// createTrajectoryCSVFile returns a file which requires a defer close statement!
func createTrajectoryCSVFile(filename string, conf ExportConfig) *os.File {
	config := aviaryConfig()
	if conf.Timestamp {
		t := time.Now()
		filename = fmt.Sprintf("%s/trajectory-%s-%d-%02d-%02dT%02d.%02d.%02d.csv", config.outputDir, filename, t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second())
	} else {
		filename = fmt.Sprintf("%s/trajectory-%s.csv", config.outputDir, filename)
	}
	f, err := os.Create(filename)
	if err != nil {
		panic(err)
	}
	// Header
	f.WriteString(fmt.Sprintf(`# Creation date (UTC): %s
# Distances in NM, altitude in ft, speeds in ft/s, mass in lbm, angles in rad.
phase,node,time,distance,altitude,tas,mach,mass,throttle,alpha,gamma,thrust,fuelflow`, time.Now().UTC()))
	if conf.CSVAppendHdr != nil {
		f.WriteString("," + conf.CSVAppendHdr())
	}
	return f
}

// StreamStates streams the output of the channel to the trajectory file. It
// returns when the channel is closed, so run it in its own goroutine and
// synchronize on mission completion.
func StreamStates(conf ExportConfig, stateChan <-chan TrajectoryState) {
	if conf.IsUseless() {
		for range stateChan {
			// drain so the producer never blocks
		}
		return
	}
	f := createTrajectoryCSVFile(conf.Filename, conf)
	defer f.Close()
	for state := range stateChan {
		asTxt := fmt.Sprintf("%s,%d,%.3f,%.4f,%.1f,%.3f,%.4f,%.2f,%.4f,%.5f,%.5f,%.2f,%.6f",
			state.Phase, state.Node, state.Time, state.Distance, state.Altitude, state.TAS,
			state.Mach, state.Mass, state.Throttle, state.Alpha, state.Gamma, state.Thrust, state.FuelFlow)
		if conf.CSVAppend != nil {
			asTxt += "," + conf.CSVAppend(state)
		}
		if _, err := f.WriteString("\n" + asTxt); err != nil {
			panic(err)
		}
	}
	f.WriteString("\n")
}
