package feedback

import (
	"math"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/strum-coach/internal/objective"
	"github.com/danielpatrickdp/strum-coach/internal/segmenter"
)

// #region builder

// Builder packages resolved takes into feedback packets, judging metrics against the same
// thresholds the resolver uses.
type Builder struct {
	thresholds objective.Config
	newID      func() string
}

// NewBuilder creates a Builder.
func NewBuilder(thresholds objective.Config) *Builder {
	return &Builder{thresholds: thresholds, newID: uuid.NewString}
}

// Build assembles the packet for one finalized take.
func (b *Builder) Build(take segmenter.TakeFinalized, analysis objective.TakeAnalysis, res objective.Resolution, clipID string, now time.Time) Packet {
	codes := b.diagnose(take, analysis.Metrics, res)
	profile := profileFor(take.Reason, res.Objective, codes, analysis.Metrics.HitRate < b.thresholds.CoverageFloor)
	return Packet{
		SchemaID:          schemaID,
		SchemaVersion:     schemaVersion,
		FeedbackID:        b.newID(),
		ClipID:            clipID,
		TakeID:            take.TakeID,
		EvaluatedAt:       now.UTC(),
		Metrics:           analysis.Metrics,
		DiagnosisCodes:    codes,
		DifficultyProfile: profile,
		Adjustments:       adjust(profile, codes),
		Objective:         res.Objective.String(),
		Intent:            res.Intent.String(),
		Evaluator:         evaluator,
	}
}

// #endregion builder

// #region diagnose

func (b *Builder) diagnose(take segmenter.TakeFinalized, m objective.Metrics, res objective.Resolution) []DiagnosisCode {
	t := b.thresholds
	codes := []DiagnosisCode{}
	if take.Flags.LateStart || take.Flags.MissedCountIn {
		codes = append(codes, DiagLateStart)
	}
	switch {
	case m.MeanOffsetMs < -t.BiasCeilingMs:
		codes = append(codes, DiagRushing)
	case m.MeanOffsetMs > t.BiasCeilingMs:
		codes = append(codes, DiagDragging)
	}
	if math.Abs(m.DriftMsPerBar) > t.DriftCeilingMsPerBar {
		codes = append(codes, DiagGridDrift)
	}
	if m.ExtraRate > t.ExtraRateCeiling {
		codes = append(codes, DiagDensityOverload)
	}
	if m.Stability < t.StabilityFloor {
		codes = append(codes, DiagSubdivisionConfusion)
	}
	if res.Hotspot == objective.HotspotOffbeat || res.Hotspot == objective.HotspotSubdivision {
		codes = append(codes, DiagSyncopationMiss)
	}
	if take.Flags.ExtraBars || take.Flags.PartialTake {
		codes = append(codes, DiagBarlineConfusion)
	}

	if len(codes) == 0 && m.Stability >= t.PassStability && m.P90AbsOffsetMs <= t.PassP90Ms {
		codes = append(codes, DiagTimingStable)
	}
	if res.Objective == objective.AdvanceDifficulty {
		codes = append(codes, DiagReadyForMore)
	}
	return codes
}

// #endregion diagnose

// #region profile

func profileFor(reason segmenter.FinalizeReason, o objective.TeachingObjective, codes []DiagnosisCode, lowCoverage bool) DifficultyProfile {
	if reason == segmenter.ReasonCancelled || reason == segmenter.ReasonRestart || o == objective.RecoverTake || lowCoverage {
		return ProfileRecover
	}
	if slices.Contains(codes, DiagReadyForMore) {
		return ProfileChallenge
	}
	for _, c := range codes {
		if !c.positive() {
			return ProfileStabilize
		}
	}
	return ProfileMaintain
}

func adjust(p DifficultyProfile, codes []DiagnosisCode) Adjustments {
	var a Adjustments
	switch p {
	case ProfileRecover:
		a.TempoDelta = -0.5
		a.DensityDelta = -0.3
	case ProfileStabilize:
		if slices.Contains(codes, DiagRushing) || slices.Contains(codes, DiagDragging) || slices.Contains(codes, DiagGridDrift) {
			a.TempoDelta = -0.2
		}
	case ProfileChallenge:
		a.TempoDelta = 0.25
		a.SyncopationDelta = 0.2
	}
	if slices.Contains(codes, DiagDensityOverload) {
		a.DensityDelta = math.Max(-1, a.DensityDelta-0.3)
	}
	if slices.Contains(codes, DiagSyncopationMiss) {
		a.SyncopationDelta = math.Max(-1, a.SyncopationDelta-0.3)
	}
	return a
}

// #endregion profile
