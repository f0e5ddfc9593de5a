package aviary

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

/* Mission file loading. The phase-info file is declarative YAML: a pre-mission
block, an ordered list of phases, a post-mission block. All physical values are
(magnitude, units) pairs; bounds are ((lo, hi), units). Decoding is strict:
unknown keys are configuration errors, not silently ignored options. */

// Quantity is a (magnitude, units) pair.
type Quantity struct {
	Val   float64
	Units string
}

// UnmarshalYAML accepts either a bare number (unitless) or a [value, units]
// sequence.
func (q *Quantity) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		q.Units = Unitless
		return node.Decode(&q.Val)
	}
	var pair []yaml.Node
	if err := node.Decode(&pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("quantity must be [value, units], got %d elements", len(pair))
	}
	if err := pair[0].Decode(&q.Val); err != nil {
		return err
	}
	return pair[1].Decode(&q.Units)
}

// In converts the quantity to the requested units.
func (q Quantity) In(units string) (float64, error) {
	return ConvertUnits(q.Val, q.Units, units)
}

// QuantityPair is a ((lo, hi), units) bounds pair. Also used for initial
// guesses expressed as (initial, increment).
type QuantityPair struct {
	Lo, Hi float64
	Units  string
}

// UnmarshalYAML accepts a [[lo, hi], units] sequence.
func (q *QuantityPair) UnmarshalYAML(node *yaml.Node) error {
	var outer []yaml.Node
	if err := node.Decode(&outer); err != nil {
		return err
	}
	if len(outer) != 2 {
		return fmt.Errorf("bounds must be [[lo, hi], units], got %d elements", len(outer))
	}
	var pair []float64
	if err := outer[0].Decode(&pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("bounds need exactly two values, got %d", len(pair))
	}
	q.Lo, q.Hi = pair[0], pair[1]
	return outer[1].Decode(&q.Units)
}

// In converts both bounds to the requested units.
func (q QuantityPair) In(units string) (float64, float64, error) {
	lo, err := ConvertUnits(q.Lo, q.Units, units)
	if err != nil {
		return 0, 0, err
	}
	hi, err := ConvertUnits(q.Hi, q.Units, units)
	return lo, hi, err
}

// PreMissionConfig gates the sizing steps before the first flight phase.
type PreMissionConfig struct {
	IncludeTakeoff bool `yaml:"include_takeoff"`
	OptimizeMass   bool `yaml:"optimize_mass"`
}

// PostMissionConfig gates the closure steps after the last flight phase.
type PostMissionConfig struct {
	IncludeLanding bool     `yaml:"include_landing"`
	ConstrainRange bool     `yaml:"constrain_range"`
	TargetRange    Quantity `yaml:"target_range"`
}

type yamlUserOptions struct {
	NumSegments          int          `yaml:"num_segments"`
	Order                int          `yaml:"order"`
	GroundRoll           bool         `yaml:"ground_roll"`
	Clean                bool         `yaml:"clean"`
	ThrottleEnforcement  string       `yaml:"throttle_enforcement"`
	InitialMach          Quantity     `yaml:"initial_mach"`
	FinalMach            Quantity     `yaml:"final_mach"`
	MachBounds           QuantityPair `yaml:"mach_bounds"`
	InitialAltitude      Quantity     `yaml:"initial_altitude"`
	FinalAltitude        Quantity     `yaml:"final_altitude"`
	AltitudeBounds       QuantityPair `yaml:"altitude_bounds"`
	FixInitial           bool         `yaml:"fix_initial"`
	ConstrainFinal       bool         `yaml:"constrain_final"`
	FixDuration          bool         `yaml:"fix_duration"`
	InitialBounds        QuantityPair `yaml:"initial_bounds"`
	DurationBounds       QuantityPair `yaml:"duration_bounds"`
	InitialThrottleLapse float64      `yaml:"initial_throttle_lapse"`
	FinalThrottleLapse   float64      `yaml:"final_throttle_lapse"`
}

type yamlPhase struct {
	Name             string                        `yaml:"name"`
	SubsystemOptions map[string]map[string]float64 `yaml:"subsystem_options"`
	UserOptions      yamlUserOptions               `yaml:"user_options"`
	InitialGuesses   map[string]QuantityPair       `yaml:"initial_guesses"`
}

type yamlMission struct {
	PreMission  PreMissionConfig  `yaml:"pre_mission"`
	Phases      []yamlPhase       `yaml:"phases"`
	PostMission PostMissionConfig `yaml:"post_mission"`
}

// MissionConfig is the loaded, validated mission description.
type MissionConfig struct {
	PreMission  PreMissionConfig
	Phases      []PhaseConfig
	PostMission PostMissionConfig
}

// LoadMissionConfig reads and validates a phase-info YAML file.
func LoadMissionConfig(path string) (*MissionConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	var raw yamlMission
	if err := dec.Decode(&raw); err != nil {
		return nil, ConfigurationError{Detail: err.Error()}
	}
	return buildMissionConfig(&raw)
}

// ParseMissionConfig decodes a phase-info document held in memory.
func ParseMissionConfig(data []byte) (*MissionConfig, error) {
	var raw yamlMission
	if err := strictUnmarshal(data, &raw); err != nil {
		return nil, ConfigurationError{Detail: err.Error()}
	}
	return buildMissionConfig(&raw)
}

func strictUnmarshal(data []byte, out interface{}) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(out)
}

func buildMissionConfig(raw *yamlMission) (*MissionConfig, error) {
	if len(raw.Phases) == 0 {
		return nil, ConfigurationError{Detail: "mission has no phases"}
	}
	mc := &MissionConfig{
		PreMission:  raw.PreMission,
		PostMission: raw.PostMission,
	}
	seen := make(map[string]bool)
	for _, yp := range raw.Phases {
		if yp.Name == "" {
			return nil, ConfigurationError{Detail: "phase without a name"}
		}
		if seen[yp.Name] {
			return nil, ConfigurationError{Phase: yp.Name, Detail: "duplicate phase name"}
		}
		seen[yp.Name] = true
		cfg, err := buildPhaseConfig(yp)
		if err != nil {
			return nil, err
		}
		mc.Phases = append(mc.Phases, cfg)
	}
	return mc, nil
}

func buildPhaseConfig(yp yamlPhase) (PhaseConfig, error) {
	uo := yp.UserOptions
	enforcement, err := ParseThrottleEnforcement(uo.ThrottleEnforcement)
	if err != nil {
		return PhaseConfig{}, ConfigurationError{Phase: yp.Name, Detail: err.Error()}
	}
	opts := PhaseUserOptions{
		NumSegments:          uo.NumSegments,
		Order:                uo.Order,
		GroundRoll:           uo.GroundRoll,
		Clean:                uo.Clean,
		ThrottleEnforcement:  enforcement,
		InitialThrottleLapse: uo.InitialThrottleLapse,
		FinalThrottleLapse:   uo.FinalThrottleLapse,
		FixInitial:           uo.FixInitial,
		ConstrainFinal:       uo.ConstrainFinal,
		FixDuration:          uo.FixDuration,
	}
	conv := func(dst *float64, q Quantity, units string) {
		if err != nil || q.Units == "" {
			// Absent from the file: leave the zero value.
			return
		}
		var v float64
		if v, err = q.In(units); err == nil {
			*dst = v
		}
	}
	convPair := func(dst *[2]float64, q QuantityPair, units string) {
		if err != nil || q.Units == "" {
			return
		}
		var lo, hi float64
		if lo, hi, err = q.In(units); err == nil {
			dst[0], dst[1] = lo, hi
		}
	}
	conv(&opts.InitialMach, uo.InitialMach, Unitless)
	conv(&opts.FinalMach, uo.FinalMach, Unitless)
	conv(&opts.InitialAltitude, uo.InitialAltitude, "ft")
	conv(&opts.FinalAltitude, uo.FinalAltitude, "ft")
	convPair(&opts.MachBounds, uo.MachBounds, Unitless)
	convPair(&opts.AltitudeBounds, uo.AltitudeBounds, "ft")
	convPair(&opts.InitialBounds, uo.InitialBounds, "s")
	convPair(&opts.DurationBounds, uo.DurationBounds, "s")
	if err != nil {
		return PhaseConfig{}, ConfigurationError{Phase: yp.Name, Detail: err.Error()}
	}

	guesses := make(map[string]GuessSpan)
	for name, qp := range yp.InitialGuesses {
		var units string
		switch name {
		case "time":
			units = "s"
		case "distance":
			units = "NM"
		default:
			return PhaseConfig{}, ConfigurationError{Phase: yp.Name, Detail: "unknown initial guess " + name}
		}
		lo, hi, cerr := qp.In(units)
		if cerr != nil {
			return PhaseConfig{}, ConfigurationError{Phase: yp.Name, Detail: cerr.Error()}
		}
		guesses[name] = GuessSpan{Initial: lo, Span: hi}
	}

	return PhaseConfig{
		Name:             yp.Name,
		UserOptions:      opts,
		SubsystemOptions: yp.SubsystemOptions,
		InitialGuesses:   guesses,
	}, nil
}
