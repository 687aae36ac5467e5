package feedback

import (
	"time"

	"github.com/danielpatrickdp/strum-coach/internal/objective"
)

// #region codes

// DiagnosisCode is an engine-agnostic finding about one take.
type DiagnosisCode string

const (
	DiagLateStart            DiagnosisCode = "late_start"
	DiagRushing              DiagnosisCode = "rushing"
	DiagDragging             DiagnosisCode = "dragging"
	DiagGridDrift            DiagnosisCode = "grid_drift"
	DiagDensityOverload      DiagnosisCode = "density_overload"
	DiagSubdivisionConfusion DiagnosisCode = "subdivision_confusion"
	DiagSyncopationMiss      DiagnosisCode = "syncopation_miss"
	DiagBarlineConfusion     DiagnosisCode = "barline_confusion"
	DiagTimingStable         DiagnosisCode = "timing_stable"
	DiagReadyForMore         DiagnosisCode = "ready_for_more"
)

// positive reports whether a code argues for more difficulty rather than less.
func (c DiagnosisCode) positive() bool {
	return c == DiagTimingStable || c == DiagReadyForMore
}

// DifficultyProfile is the coarse direction for the next clip.
type DifficultyProfile string

const (
	ProfileRecover   DifficultyProfile = "recover"
	ProfileStabilize DifficultyProfile = "stabilize"
	ProfileMaintain  DifficultyProfile = "maintain"
	ProfileChallenge DifficultyProfile = "challenge"
)

// #endregion codes

// #region packet

// Adjustments are deltas in [-1, 1]; negative simplifies.
type Adjustments struct {
	TempoDelta       float64 `json:"tempo_delta"`
	DensityDelta     float64 `json:"density_delta"`
	SyncopationDelta float64 `json:"syncopation_delta"`
}

// Packet is the feedback handed to whatever regenerates the next exercise.
type Packet struct {
	SchemaID          string            `json:"schema_id"`
	SchemaVersion     string            `json:"schema_version"`
	FeedbackID        string            `json:"feedback_id"`
	ClipID            string            `json:"clip_id"`
	TakeID            uint64            `json:"take_id"`
	EvaluatedAt       time.Time         `json:"evaluated_at_utc"`
	Metrics           objective.Metrics `json:"metrics"`
	DiagnosisCodes    []DiagnosisCode   `json:"diagnosis_codes"`
	DifficultyProfile DifficultyProfile `json:"difficulty_profile"`
	Adjustments       Adjustments       `json:"recommended_adjustments"`
	Objective         string            `json:"objective"`
	Intent            string            `json:"intent"`
	Evaluator         string            `json:"evaluator"`
}

const (
	schemaID      = "adaptive_feedback"
	schemaVersion = "v1"
	evaluator     = "strum-coach"
)

// #endregion packet
