package objective

// #region objective-to-intent
// IntentFor maps an objective to the legacy cue intent. The hotspot only matters for
// FixRepeatableSlotErrors: downbeat and early-bar errors are coached as timing centering,
// everything else as subdivision support.
func IntentFor(o TeachingObjective, h HotspotKind) CoachIntent {
	switch o {
	case RecoverTake:
		return IntentResetAndBreathe
	case ReenterOnCountIn:
		return IntentCountInCue
	case EnterOnTheOne:
		return IntentEnterOnDownbeat
	case CompleteTheForm:
		return IntentFinishPhrase
	case MatchTargetTempo:
		return IntentTempoLock
	case StopAtFormEnd:
		return IntentStopCleanly
	case AdvanceDifficulty:
		return IntentLevelUp
	case ReduceExtraMotion:
		return IntentEconomyOfMotion
	case AnchorBackbeat:
		return IntentBackbeatAnchor
	case FixRepeatableSlotErrors:
		if h.routesToTiming() {
			return IntentTimingCentering
		}
		return IntentSubdivisionSupport
	case CenterTimingBias:
		return IntentTimingCentering
	case TightenSubdivision:
		return IntentSubdivisionSupport
	}
	return IntentResetAndBreathe
}

// #endregion objective-to-intent

// #region intent-to-objective
// ObjectiveFor is the inverse of IntentFor. A hotspot that routes to the given intent means
// the intent came from FixRepeatableSlotErrors.
func ObjectiveFor(i CoachIntent, h HotspotKind) TeachingObjective {
	switch i {
	case IntentResetAndBreathe:
		return RecoverTake
	case IntentCountInCue:
		return ReenterOnCountIn
	case IntentEnterOnDownbeat:
		return EnterOnTheOne
	case IntentFinishPhrase:
		return CompleteTheForm
	case IntentTempoLock:
		return MatchTargetTempo
	case IntentStopCleanly:
		return StopAtFormEnd
	case IntentLevelUp:
		return AdvanceDifficulty
	case IntentEconomyOfMotion:
		return ReduceExtraMotion
	case IntentBackbeatAnchor:
		return AnchorBackbeat
	case IntentTimingCentering:
		if h != HotspotNone && h.routesToTiming() {
			return FixRepeatableSlotErrors
		}
		return CenterTimingBias
	case IntentSubdivisionSupport:
		if h != HotspotNone && !h.routesToTiming() {
			return FixRepeatableSlotErrors
		}
		return TightenSubdivision
	}
	return RecoverTake
}

// #endregion intent-to-objective
