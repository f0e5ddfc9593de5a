package aviary

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoPhaseMission = `
pre_mission:
  include_takeoff: true
phases:
  - name: climb
    user_options:
      num_segments: 2
      order: 3
      throttle_enforcement: path_constraint
      fix_initial: true
      initial_mach: 0.3
      final_mach: 0.72
      mach_bounds: [[0.25, 0.8], unitless]
      initial_altitude: [0, ft]
      final_altitude: [10.668, km]
      altitude_bounds: [[0, 36000], ft]
      initial_bounds: [[0, 0], min]
      duration_bounds: [[10, 30], min]
    initial_guesses:
      time: [[0, 20], min]
      distance: [[0, 80], NM]
  - name: cruise
    user_options:
      num_segments: 3
      order: 3
      clean: true
      throttle_enforcement: bounded
      initial_mach: 0.72
      final_mach: 0.72
      initial_altitude: [35000, ft]
      final_altitude: [35000, ft]
    initial_guesses:
      distance: [[80, 1800], NM]
post_mission:
  include_landing: true
  constrain_range: true
  target_range: [1915, NM]
`

func TestParseMissionConfig(t *testing.T) {
	mc, err := ParseMissionConfig([]byte(twoPhaseMission))
	require.NoError(t, err)
	require.Len(t, mc.Phases, 2)

	assert.True(t, mc.PreMission.IncludeTakeoff)
	assert.True(t, mc.PostMission.IncludeLanding)
	assert.True(t, mc.PostMission.ConstrainRange)
	rng, err := mc.PostMission.TargetRange.In("NM")
	require.NoError(t, err)
	assert.Equal(t, 1915.0, rng)

	climb := mc.Phases[0]
	assert.Equal(t, "climb", climb.Name)
	assert.Equal(t, 7, climb.UserOptions.NumNodes())
	assert.Equal(t, ThrottlePath, climb.UserOptions.ThrottleEnforcement)
	assert.True(t, climb.UserOptions.FixInitial)
	// Bare scalars are unitless, kilometers convert to feet.
	assert.Equal(t, 0.3, climb.UserOptions.InitialMach)
	assert.InDelta(t, 35000, climb.UserOptions.FinalAltitude, 1e-6)
	assert.Equal(t, [2]float64{0.25, 0.8}, climb.UserOptions.MachBounds)
	assert.InDelta(t, 600, climb.UserOptions.DurationBounds[0], 1e-9)
	assert.InDelta(t, 1800, climb.UserOptions.DurationBounds[1], 1e-9)

	// Guesses arrive in canonical units as (initial, increment).
	assert.Equal(t, GuessSpan{Initial: 0, Span: 1200}, climb.InitialGuesses["time"])
	assert.Equal(t, GuessSpan{Initial: 0, Span: 80}, climb.InitialGuesses["distance"])

	cruise := mc.Phases[1]
	assert.True(t, cruise.UserOptions.Clean)
	assert.Equal(t, ThrottleBounded, cruise.UserOptions.ThrottleEnforcement)
	assert.Equal(t, GuessSpan{Initial: 80, Span: 1800}, cruise.InitialGuesses["distance"])
}

func TestParseMissionConfigRejectsUnknownKeys(t *testing.T) {
	doc := strings.Replace(twoPhaseMission, "fix_initial: true", "fix_initiall: true", 1)
	_, err := ParseMissionConfig([]byte(doc))
	require.Error(t, err)
	var ce ConfigurationError
	assert.ErrorAs(t, err, &ce)
}

func TestParseMissionConfigValidation(t *testing.T) {
	cases := []struct {
		name string
		doc  string
	}{
		{"no phases", "pre_mission:\n  include_takeoff: false\n"},
		{"unnamed phase", "phases:\n  - user_options:\n      num_segments: 1\n      order: 1\n"},
		{"duplicate name", `
phases:
  - name: climb
    user_options: {num_segments: 1, order: 1}
  - name: climb
    user_options: {num_segments: 1, order: 1}
`},
		{"unknown guess", `
phases:
  - name: climb
    user_options: {num_segments: 1, order: 1}
    initial_guesses:
      velocity: [[0, 100], kn]
`},
		{"bad enforcement", `
phases:
  - name: climb
    user_options: {num_segments: 1, order: 1, throttle_enforcement: sometimes}
`},
		{"incompatible units", `
phases:
  - name: climb
    user_options: {num_segments: 1, order: 1, initial_altitude: [3, kg]}
`},
	}
	for _, tc := range cases {
		_, err := ParseMissionConfig([]byte(tc.doc))
		var ce ConfigurationError
		assert.ErrorAs(t, err, &ce, tc.name)
	}
}

func TestQuantityForms(t *testing.T) {
	var q Quantity
	require.NoError(t, strictUnmarshal([]byte("0.72"), &q))
	assert.Equal(t, Quantity{Val: 0.72, Units: Unitless}, q)

	require.NoError(t, strictUnmarshal([]byte("[250, kn]"), &q))
	assert.Equal(t, Quantity{Val: 250, Units: "kn"}, q)

	assert.Error(t, strictUnmarshal([]byte("[250, kn, extra]"), &q))

	v, err := Quantity{Val: 1, Units: "h"}.In("s")
	require.NoError(t, err)
	assert.Equal(t, 3600.0, v)
}

func TestQuantityPairForms(t *testing.T) {
	var qp QuantityPair
	require.NoError(t, strictUnmarshal([]byte("[[10, 30], min]"), &qp))
	assert.Equal(t, QuantityPair{Lo: 10, Hi: 30, Units: "min"}, qp)

	lo, hi, err := qp.In("s")
	require.NoError(t, err)
	assert.Equal(t, 600.0, lo)
	assert.Equal(t, 1800.0, hi)

	assert.Error(t, strictUnmarshal([]byte("[[10, 20, 30], min]"), &qp))
	assert.Error(t, strictUnmarshal([]byte("[10, min]"), &qp))
}
