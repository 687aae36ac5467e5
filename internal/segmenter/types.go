package segmenter

import "errors"

// ErrTimeRegression is returned when a call carries a timestamp earlier than the previous call.
var ErrTimeRegression = errors.New("time regression")

// #region onset
// Direction is the strum direction reported by the onset detector.
type Direction string

const (
	DirectionDown    Direction = "down"
	DirectionUp      Direction = "up"
	DirectionUnknown Direction = "unknown"
)

// OnsetEvent is one detected strum. Seq is unique per event; repeats are dropped.
type OnsetEvent struct {
	TimeMs     float64   `json:"time_ms"`
	Confidence float64   `json:"confidence"`
	Direction  Direction `json:"direction,omitempty"`
	Intensity  *float64  `json:"intensity,omitempty"`
	Source     string    `json:"source,omitempty"`
	Seq        uint64    `json:"seq"`
}

// #endregion onset

// #region take-state
// TakeState is the lifecycle position of the current take.
type TakeState string

const (
	StateIdle       TakeState = "idle"
	StateArmed      TakeState = "armed"
	StateCountIn    TakeState = "count_in"
	StatePlaying    TakeState = "playing"
	StateFinalizing TakeState = "finalizing"
)

// FinalizeReason records why a take ended.
type FinalizeReason string

const (
	ReasonGridComplete FinalizeReason = "grid_complete"
	ReasonUserStop     FinalizeReason = "user_stop"
	ReasonRestart      FinalizeReason = "restart"
	ReasonCancelled    FinalizeReason = "cancelled"
)

// #endregion take-state

// #region flags
// Flags are the mechanical edge cases observed during a take.
type Flags struct {
	MissedCountIn      bool `json:"missed_count_in,omitempty"`
	LateStart          bool `json:"late_start,omitempty"`
	RestartDetected    bool `json:"restart_detected,omitempty"`
	EarlyStop          bool `json:"early_stop,omitempty"`
	TempoMismatch      bool `json:"tempo_mismatch,omitempty"`
	ExtraBars          bool `json:"extra_bars,omitempty"`
	PartialTake        bool `json:"partial_take,omitempty"`
	LowConfidenceCount int  `json:"low_confidence_count,omitempty"`
}

// #endregion flags

// #region anchors
// Anchors are the absolute timestamps (ms) a take is measured against.
type Anchors struct {
	TakeStartMs    float64 `json:"take_start_ms"`
	CountInStartMs float64 `json:"count_in_start_ms"`
	GridStartMs    float64 `json:"grid_start_ms"`
	GridEndMs      float64 `json:"grid_end_ms"`
}

// #endregion anchors

// #region outputs
// OutputKind discriminates segmenter outputs.
type OutputKind string

const (
	KindStatus    OutputKind = "take_status"
	KindFinalized OutputKind = "take_finalized"
)

// Output is either a TakeStatus or a TakeFinalized.
type Output interface {
	Kind() OutputKind
}

// TakeStatus is emitted on every state transition.
type TakeStatus struct {
	TakeID uint64    `json:"take_id"`
	State  TakeState `json:"state"`
	AtMs   float64   `json:"at_ms"`
	Flags  Flags     `json:"flags"`
}

func (TakeStatus) Kind() OutputKind { return KindStatus }

// TakeFinalized is emitted exactly once per take.
type TakeFinalized struct {
	TakeID        uint64         `json:"take_id"`
	Reason        FinalizeReason `json:"reason"`
	Flags         Flags          `json:"flags"`
	Anchors       Anchors        `json:"anchors"`
	PreRoll       []OnsetEvent   `json:"pre_roll"`
	InWindow      []OnsetEvent   `json:"in_window"`
	PostRoll      []OnsetEvent   `json:"post_roll"`
	FinalizedAtMs float64        `json:"finalized_at_ms"`
}

func (TakeFinalized) Kind() OutputKind { return KindFinalized }

// TakeSnapshot is a read-only view of the active take.
type TakeSnapshot struct {
	ID            uint64
	State         TakeState
	Anchors       Anchors
	Flags         Flags
	InWindowCount int
}

// #endregion outputs

// #region config
// Config holds the segmenter's timing thresholds.
type Config struct {
	LowConfidenceThreshold float64 `json:"low_confidence_threshold" yaml:"low_confidence_threshold" toml:"low_confidence_threshold"`
	ArmLeadMs              float64 `json:"arm_lead_ms" yaml:"arm_lead_ms" toml:"arm_lead_ms"`
	CountInWindowBeats     float64 `json:"count_in_window_beats" yaml:"count_in_window_beats" toml:"count_in_window_beats"`
	LateStartGraceFraction float64 `json:"late_start_grace_fraction" yaml:"late_start_grace_fraction" toml:"late_start_grace_fraction"` // of one slot
	PostRollMs             float64 `json:"post_roll_ms" yaml:"post_roll_ms" toml:"post_roll_ms"`
	TrailingWindowMs       float64 `json:"trailing_window_ms" yaml:"trailing_window_ms" toml:"trailing_window_ms"`
	RestartPauseMs         float64 `json:"restart_pause_ms" yaml:"restart_pause_ms" toml:"restart_pause_ms"`
	RestartBurstCount      int     `json:"restart_burst_count" yaml:"restart_burst_count" toml:"restart_burst_count"`
	RestartBurstWindowMs   float64 `json:"restart_burst_window_ms" yaml:"restart_burst_window_ms" toml:"restart_burst_window_ms"`
	AbortPauseMs           float64 `json:"abort_pause_ms" yaml:"abort_pause_ms" toml:"abort_pause_ms"`
	TempoMismatchFraction  float64 `json:"tempo_mismatch_fraction" yaml:"tempo_mismatch_fraction" toml:"tempo_mismatch_fraction"`
	TempoMinSamples        int     `json:"tempo_min_samples" yaml:"tempo_min_samples" toml:"tempo_min_samples"`
	HistoryWindowMs        float64 `json:"history_window_ms" yaml:"history_window_ms" toml:"history_window_ms"`
	HistoryCapacity        int     `json:"history_capacity" yaml:"history_capacity" toml:"history_capacity"`
	AutoRepeat             bool    `json:"auto_repeat" yaml:"auto_repeat" toml:"auto_repeat"`
}

// DefaultConfig returns thresholds tuned for strummed eighth-note exercises.
func DefaultConfig() Config {
	return Config{
		LowConfidenceThreshold: 0.5,
		ArmLeadMs:              0,
		CountInWindowBeats:     2,
		LateStartGraceFraction: 0.5,
		PostRollMs:             500,
		TrailingWindowMs:       1000,
		RestartPauseMs:         1200,
		RestartBurstCount:      3,
		RestartBurstWindowMs:   1000,
		AbortPauseMs:           2500,
		TempoMismatchFraction:  0.15,
		TempoMinSamples:        4,
		HistoryWindowMs:        10000,
		HistoryCapacity:        512,
		AutoRepeat:             false,
	}
}

// #endregion config
