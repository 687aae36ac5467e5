package objective

import "fmt"

// #region objective
// TeachingObjective is the closed set of things a take can teach next.
type TeachingObjective int

const (
	RecoverTake TeachingObjective = iota
	ReenterOnCountIn
	EnterOnTheOne
	CompleteTheForm
	MatchTargetTempo
	StopAtFormEnd
	AdvanceDifficulty
	ReduceExtraMotion
	AnchorBackbeat
	FixRepeatableSlotErrors
	CenterTimingBias
	TightenSubdivision

	numObjectives
)

var objectiveNames = [...]string{
	RecoverTake:             "recover_take",
	ReenterOnCountIn:        "reenter_on_count_in",
	EnterOnTheOne:           "enter_on_the_one",
	CompleteTheForm:         "complete_the_form",
	MatchTargetTempo:        "match_target_tempo",
	StopAtFormEnd:           "stop_at_form_end",
	AdvanceDifficulty:       "advance_difficulty",
	ReduceExtraMotion:       "reduce_extra_motion",
	AnchorBackbeat:          "anchor_backbeat",
	FixRepeatableSlotErrors: "fix_repeatable_slot_errors",
	CenterTimingBias:        "center_timing_bias",
	TightenSubdivision:      "tighten_subdivision",
}

// fails to compile when an objective is added without a name
var _ = [1]struct{}{}[len(objectiveNames)-int(numObjectives)]

// AllObjectives lists every objective in declaration order.
func AllObjectives() []TeachingObjective {
	out := make([]TeachingObjective, numObjectives)
	for i := range out {
		out[i] = TeachingObjective(i)
	}
	return out
}

func (o TeachingObjective) String() string {
	if o < 0 || o >= numObjectives {
		return fmt.Sprintf("objective(%d)", int(o))
	}
	return objectiveNames[o]
}

func (o TeachingObjective) MarshalText() ([]byte, error) {
	if o < 0 || o >= numObjectives {
		return nil, fmt.Errorf("unknown objective %d", int(o))
	}
	return []byte(objectiveNames[o]), nil
}

func (o *TeachingObjective) UnmarshalText(b []byte) error {
	for i, name := range objectiveNames {
		if name == string(b) {
			*o = TeachingObjective(i)
			return nil
		}
	}
	return fmt.Errorf("unknown objective %q", string(b))
}

// #endregion objective

// #region intent
// CoachIntent is the legacy cue vocabulary the cue binder still speaks.
type CoachIntent int

const (
	IntentResetAndBreathe CoachIntent = iota
	IntentCountInCue
	IntentEnterOnDownbeat
	IntentFinishPhrase
	IntentTempoLock
	IntentStopCleanly
	IntentLevelUp
	IntentEconomyOfMotion
	IntentBackbeatAnchor
	IntentTimingCentering
	IntentSubdivisionSupport

	numIntents
)

var intentNames = [...]string{
	IntentResetAndBreathe:    "reset_and_breathe",
	IntentCountInCue:         "count_in_cue",
	IntentEnterOnDownbeat:    "enter_on_downbeat",
	IntentFinishPhrase:       "finish_phrase",
	IntentTempoLock:          "tempo_lock",
	IntentStopCleanly:        "stop_cleanly",
	IntentLevelUp:            "level_up",
	IntentEconomyOfMotion:    "economy_of_motion",
	IntentBackbeatAnchor:     "backbeat_anchor",
	IntentTimingCentering:    "timing_centering",
	IntentSubdivisionSupport: "subdivision_support",
}

var _ = [1]struct{}{}[len(intentNames)-int(numIntents)]

// AllIntents lists every intent in declaration order.
func AllIntents() []CoachIntent {
	out := make([]CoachIntent, numIntents)
	for i := range out {
		out[i] = CoachIntent(i)
	}
	return out
}

func (i CoachIntent) String() string {
	if i < 0 || i >= numIntents {
		return fmt.Sprintf("intent(%d)", int(i))
	}
	return intentNames[i]
}

func (i CoachIntent) MarshalText() ([]byte, error) {
	if i < 0 || i >= numIntents {
		return nil, fmt.Errorf("unknown intent %d", int(i))
	}
	return []byte(intentNames[i]), nil
}

func (i *CoachIntent) UnmarshalText(b []byte) error {
	for n, name := range intentNames {
		if name == string(b) {
			*i = CoachIntent(n)
			return nil
		}
	}
	return fmt.Errorf("unknown intent %q", string(b))
}

// #endregion intent

// #region hotspot
// HotspotKind classifies a repeatable slot error by where it falls in the bar.
type HotspotKind string

const (
	HotspotNone        HotspotKind = ""
	HotspotDownbeat    HotspotKind = "downbeat"
	HotspotEarlyBar    HotspotKind = "early_bar"
	HotspotBackbeat    HotspotKind = "backbeat"
	HotspotOffbeat     HotspotKind = "offbeat"
	HotspotSubdivision HotspotKind = "subdivision"
)

// AllHotspotKinds lists every detectable kind (HotspotNone excluded).
func AllHotspotKinds() []HotspotKind {
	return []HotspotKind{HotspotDownbeat, HotspotEarlyBar, HotspotBackbeat, HotspotOffbeat, HotspotSubdivision}
}

// routesToTiming reports whether a hotspot is coached as a timing-centering problem.
func (k HotspotKind) routesToTiming() bool {
	return k == HotspotDownbeat || k == HotspotEarlyBar
}

// HotspotDetector inspects an alignment for a slot position that fails repeatedly.
type HotspotDetector interface {
	Detect(alignment Alignment, grid Grid) HotspotKind
}

// HotspotDetectorFunc adapts a function to HotspotDetector.
type HotspotDetectorFunc func(Alignment, Grid) HotspotKind

func (f HotspotDetectorFunc) Detect(a Alignment, g Grid) HotspotKind { return f(a, g) }

// #endregion hotspot

// #region analysis
// Metrics are the per-take scores produced by the external analyzer.
type Metrics struct {
	HitRate        float64 `json:"hit_rate"`
	MissRate       float64 `json:"miss_rate"`
	ExtraRate      float64 `json:"extra_rate"`
	MeanOffsetMs   float64 `json:"mean_offset_ms"`
	P90AbsOffsetMs float64 `json:"p90_abs_offset_ms"`
	DriftMsPerBar  float64 `json:"drift_ms_per_bar"`
	Stability      float64 `json:"stability"`
}

// Alignment lists global slot indices (bar*slotsPerBar + slot) by match outcome.
type Alignment struct {
	Matched []int `json:"matched"`
	Missed  []int `json:"missed"`
	Extra   []int `json:"extra"`
}

// Grid is the slot layout the alignment refers to.
type Grid struct {
	SlotsPerBar  int     `json:"slots_per_bar"`
	SlotsPerBeat int     `json:"slots_per_beat"`
	Bars         int     `json:"bars"`
	SlotMs       float64 `json:"slot_ms"`
}

// TakeAnalysis is the analyzer's view of one finalized take.
type TakeAnalysis struct {
	TakeID    uint64     `json:"take_id"`
	Metrics   Metrics    `json:"metrics"`
	Alignment *Alignment `json:"alignment,omitempty"`
	Grid      *Grid      `json:"grid,omitempty"`
}

// #endregion analysis

// #region resolution
// Resolution is the resolver's output for one take.
type Resolution struct {
	Objective TeachingObjective `json:"objective"`
	Intent    CoachIntent       `json:"intent"`
	Hotspot   HotspotKind       `json:"hotspot,omitempty"`
	Rationale string            `json:"rationale"`
}

// #endregion resolution

// #region config
// Config holds the musical thresholds. Offsets and drift are compared by magnitude.
type Config struct {
	PassHitRate          float64 `json:"pass_hit_rate" yaml:"pass_hit_rate" toml:"pass_hit_rate"`
	PassP90Ms            float64 `json:"pass_p90_ms" yaml:"pass_p90_ms" toml:"pass_p90_ms"`
	PassExtraRate        float64 `json:"pass_extra_rate" yaml:"pass_extra_rate" toml:"pass_extra_rate"`
	PassStability        float64 `json:"pass_stability" yaml:"pass_stability" toml:"pass_stability"`
	CoverageFloor        float64 `json:"coverage_floor" yaml:"coverage_floor" toml:"coverage_floor"`
	ExtraRateCeiling     float64 `json:"extra_rate_ceiling" yaml:"extra_rate_ceiling" toml:"extra_rate_ceiling"`
	DriftCeilingMsPerBar float64 `json:"drift_ceiling_ms_per_bar" yaml:"drift_ceiling_ms_per_bar" toml:"drift_ceiling_ms_per_bar"`
	BiasCeilingMs        float64 `json:"bias_ceiling_ms" yaml:"bias_ceiling_ms" toml:"bias_ceiling_ms"`
	StabilityFloor       float64 `json:"stability_floor" yaml:"stability_floor" toml:"stability_floor"`
	P90CeilingMs         float64 `json:"p90_ceiling_ms" yaml:"p90_ceiling_ms" toml:"p90_ceiling_ms"`
	LowConfidenceStorm   int     `json:"low_confidence_storm" yaml:"low_confidence_storm" toml:"low_confidence_storm"`
}

// DefaultConfig returns the coaching thresholds for strummed rhythm work.
func DefaultConfig() Config {
	return Config{
		PassHitRate:          0.85,
		PassP90Ms:            45,
		PassExtraRate:        0.10,
		PassStability:        0.70,
		CoverageFloor:        0.75,
		ExtraRateCeiling:     0.15,
		DriftCeilingMsPerBar: 30,
		BiasCeilingMs:        20,
		StabilityFloor:       0.70,
		P90CeilingMs:         45,
		LowConfidenceStorm:   10,
	}
}

// #endregion config
