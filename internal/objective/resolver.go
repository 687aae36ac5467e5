package objective

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/strum-coach/internal/segmenter"
)

// #region resolver
// Resolver maps a finalized take to exactly one teaching objective. It holds no state
// between calls; the detector is the only collaborator.
type Resolver struct {
	config   Config
	detector HotspotDetector
}

// NewResolver creates a resolver. A nil detector disables hotspot resolution.
func NewResolver(config Config, detector HotspotDetector) *Resolver {
	return &Resolver{config: config, detector: detector}
}

// Resolve walks the priority chain: lifecycle, mechanical flags, input quality, then
// musical scores. The first matching rule wins.
func (r *Resolver) Resolve(analysis TakeAnalysis, reason segmenter.FinalizeReason, flags segmenter.Flags) Resolution {
	if res, ok := r.mechanical(reason, flags); ok {
		return res
	}

	// --- Musical ---
	m := analysis.Metrics
	c := r.config
	if m.HitRate >= c.PassHitRate && m.P90AbsOffsetMs <= c.PassP90Ms &&
		m.ExtraRate <= c.PassExtraRate && m.Stability >= c.PassStability {
		return r.resolved(AdvanceDifficulty, HotspotNone, "pass criteria met")
	}
	if m.HitRate < c.CoverageFloor {
		return r.resolved(MatchTargetTempo, HotspotNone,
			fmt.Sprintf("hit rate %.2f below %.2f", m.HitRate, c.CoverageFloor))
	}
	if m.ExtraRate > c.ExtraRateCeiling {
		return r.resolved(ReduceExtraMotion, HotspotNone,
			fmt.Sprintf("extra rate %.2f above %.2f", m.ExtraRate, c.ExtraRateCeiling))
	}
	if math.Abs(m.DriftMsPerBar) > c.DriftCeilingMsPerBar {
		return r.resolved(AnchorBackbeat, HotspotNone,
			fmt.Sprintf("drift %.1fms/bar", m.DriftMsPerBar))
	}
	if h := r.hotspot(analysis); h != HotspotNone {
		return r.resolved(FixRepeatableSlotErrors, h, fmt.Sprintf("repeatable %s errors", h))
	}
	if math.Abs(m.MeanOffsetMs) > c.BiasCeilingMs {
		return r.resolved(CenterTimingBias, HotspotNone,
			fmt.Sprintf("mean offset %.1fms", m.MeanOffsetMs))
	}
	if m.Stability < c.StabilityFloor {
		return r.resolved(TightenSubdivision, HotspotNone,
			fmt.Sprintf("stability %.2f below %.2f", m.Stability, c.StabilityFloor))
	}
	if m.P90AbsOffsetMs > c.P90CeilingMs {
		return r.resolved(TightenSubdivision, HotspotNone,
			fmt.Sprintf("p90 offset %.1fms", m.P90AbsOffsetMs))
	}
	return r.resolved(RecoverTake, HotspotNone, "no rule matched")
}

// ResolveUnanalyzed resolves a take the analyzer produced no metrics for. Only the
// lifecycle, mechanical and input-quality rules apply; anything else is RecoverTake.
func (r *Resolver) ResolveUnanalyzed(reason segmenter.FinalizeReason, flags segmenter.Flags) Resolution {
	if res, ok := r.mechanical(reason, flags); ok {
		return res
	}
	return r.resolved(RecoverTake, HotspotNone, "no analysis")
}

func (r *Resolver) mechanical(reason segmenter.FinalizeReason, flags segmenter.Flags) (Resolution, bool) {
	// --- Lifecycle ---
	if reason == segmenter.ReasonCancelled {
		return r.resolved(RecoverTake, HotspotNone, "take cancelled"), true
	}
	if reason == segmenter.ReasonRestart || flags.RestartDetected {
		return r.resolved(RecoverTake, HotspotNone, "restart detected"), true
	}

	// --- Mechanical flags, fixed order ---
	switch {
	case flags.MissedCountIn:
		return r.resolved(ReenterOnCountIn, HotspotNone, "missed count-in"), true
	case flags.LateStart:
		return r.resolved(EnterOnTheOne, HotspotNone, "late start"), true
	case flags.PartialTake:
		return r.resolved(CompleteTheForm, HotspotNone, "partial take"), true
	case flags.TempoMismatch:
		return r.resolved(MatchTargetTempo, HotspotNone, "tempo mismatch"), true
	case flags.ExtraBars:
		return r.resolved(StopAtFormEnd, HotspotNone, "played past the form"), true
	}

	if flags.LowConfidenceCount >= r.config.LowConfidenceStorm {
		return r.resolved(RecoverTake, HotspotNone,
			fmt.Sprintf("%d low-confidence onsets", flags.LowConfidenceCount)), true
	}

	return Resolution{}, false
}

func (r *Resolver) hotspot(a TakeAnalysis) HotspotKind {
	if r.detector == nil || a.Alignment == nil || a.Grid == nil {
		return HotspotNone
	}
	return r.detector.Detect(*a.Alignment, *a.Grid)
}

func (r *Resolver) resolved(o TeachingObjective, h HotspotKind, rationale string) Resolution {
	return Resolution{
		Objective: o,
		Intent:    IntentFor(o, h),
		Hotspot:   h,
		Rationale: rationale,
	}
}

// #endregion resolver
