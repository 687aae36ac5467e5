package exercise

import "errors"

// ErrInvalidExercise is returned (wrapped) when an exercise context cannot drive a take.
var ErrInvalidExercise = errors.New("invalid exercise")

// ErrUnknownPack is returned (wrapped) when a pack set references a pack that cannot be found.
var ErrUnknownPack = errors.New("unknown pack")

// #region meter
// Meter is a time signature, e.g. 4/4 or 6/8.
type Meter struct {
	BeatsPerBar int `json:"beats_per_bar" yaml:"beats_per_bar" toml:"beats_per_bar"`
	BeatUnit    int `json:"beat_unit" yaml:"beat_unit" toml:"beat_unit"`
}

// #endregion meter

// #region pattern
// StrumPattern describes which grid slots of a bar the player is expected to hit.
// Subdivision is the number of slots per beat (1 quarter, 2 eighth, 3 triplet, 4 sixteenth).
type StrumPattern struct {
	Subdivision   int   `json:"subdivision" yaml:"subdivision" toml:"subdivision"`
	ExpectedSlots []int `json:"expected_slots" yaml:"expected_slots" toml:"expected_slots"`
}

// #endregion pattern

// #region context
// Context is the exercise the segmenter and renderer work against.
type Context struct {
	Meter          Meter        `json:"meter" yaml:"meter" toml:"meter"`
	Bars           int          `json:"bars" yaml:"bars" toml:"bars"`
	TempoBPM       float64      `json:"tempo_bpm" yaml:"tempo_bpm" toml:"tempo_bpm"`
	TempoTolerance float64      `json:"tempo_tolerance" yaml:"tempo_tolerance" toml:"tempo_tolerance"` // fraction of the expected interval
	CountInBeats   int          `json:"count_in_beats" yaml:"count_in_beats" toml:"count_in_beats"`
	Pattern        StrumPattern `json:"pattern" yaml:"pattern" toml:"pattern"`
}

// #endregion context

// #region timing
// Timing holds durations derived from a validated Context. All values are milliseconds.
type Timing struct {
	BeatMs                float64
	SlotMs                float64
	BarMs                 float64
	SlotsPerBar           int
	CountInMs             float64
	GridMs                float64
	ExpectedHitIntervalMs float64
}

// #endregion timing
