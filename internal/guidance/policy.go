package guidance

import (
	"fmt"
	"math"
)

// #region defaults
// backoffScale thins the base budget as backoff escalates.
var backoffScale = [NumBackoffLevels]float64{1.0, 0.6, 0.35, 0.15, 0}

// backoffExtraPauseMs widens the base pause as backoff escalates.
var backoffExtraPauseMs = [NumBackoffLevels]float64{0, 1000, 3000, 6000, 0}

// escalate derives a full backoff row from the L0 cell of a mode.
func escalate(base PolicyCell) PolicyRow {
	var row PolicyRow
	for lvl := range row {
		c := base.Clone()
		c.InterruptBudgetPerMin = base.InterruptBudgetPerMin * backoffScale[lvl]
		c.MinPauseMs = base.MinPauseMs + backoffExtraPauseMs[lvl]
		if lvl >= int(BackoffL2) {
			c.BetweenPhraseOnly = true
			c.MaxCues = 1
			c.Tone = c.Tone.soften()
		}
		if lvl >= int(BackoffL3) {
			c.RealtimeEnabled = false
		}
		if lvl == int(BackoffL4) {
			c.Granularity = GranularityNone
			c.MaxCues = 0
			c.Tone = ToneSilent
			c.ModalityWeights = ModalityWeights{}
		}
		row[lvl] = c
	}
	return row
}

// DefaultPolicyConfig returns the built-in 4x5 matrix and gate settings.
func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		Matrix: map[Mode]PolicyRow{
			ModeGuided: escalate(PolicyCell{
				InterruptBudgetPerMin: 6,
				MinPauseMs:            1500,
				RealtimeEnabled:       true,
				Granularity:           GranularityBeat,
				MaxCues:               3,
				ModalityWeights:       ModalityWeights{ModalityHaptic: 0.3, ModalityVisual: 0.3, ModalityAudio: 0.3, ModalityText: 0.1},
				Tone:                  ToneInstructive,
				Assist:                AssistFlags{CountInClick: true, VisualGrid: true, TempoRamp: true},
			}),
			ModePractice: escalate(PolicyCell{
				InterruptBudgetPerMin: 4,
				MinPauseMs:            2500,
				RealtimeEnabled:       true,
				Granularity:           GranularityPhrase,
				MaxCues:               2,
				ModalityWeights:       ModalityWeights{ModalityHaptic: 0.4, ModalityVisual: 0.4, ModalityAudio: 0.1, ModalityText: 0.1},
				Tone:                  ToneEncouraging,
				Assist:                AssistFlags{CountInClick: true, VisualGrid: true},
			}),
			ModeJam: escalate(PolicyCell{
				InterruptBudgetPerMin: 2,
				MinPauseMs:            4000,
				BetweenPhraseOnly:     true,
				RealtimeEnabled:       true,
				Granularity:           GranularityPhrase,
				MaxCues:               1,
				ModalityWeights:       ModalityWeights{ModalityHaptic: 0.6, ModalityVisual: 0.4},
				Tone:                  ToneNeutral,
			}),
			ModePerformance: escalate(PolicyCell{
				InterruptBudgetPerMin: 0.5,
				MinPauseMs:            6000,
				BetweenPhraseOnly:     true,
				RealtimeEnabled:       true,
				Granularity:           GranularityPhrase,
				MaxCues:               1,
				ModalityWeights:       ModalityWeights{ModalityHaptic: 1.0},
				Tone:                  ToneNeutral,
			}),
		},
		Bucket: BucketConfig{
			MaxTokens:          2,
			CooldownMs:         10000,
			StochasticRounding: true,
		},
		SafeWindow: SafeWindowConfig{
			BackoffPauseMs:       []float64{0, 2000, 4000, 8000, 15000},
			PhraseOnlyFrom:       BackoffL2,
			RealtimeOffFrom:      BackoffL3,
			PerformanceSilenceMs: 2000,
		},
		Overrides: OverrideConfig{
			IgnoreStreakThreshold:   3,
			IgnoreStreakBudgetScale: 0.5,
			IgnoreStreakPauseMs:     5000,
			SilenceSevere:           0.7,
			SilenceSevereScale:      0.25,
			SilenceModerate:         0.4,
			SilenceModerateScale:    0.6,
			ModeConfidenceFloor:     0.7,
			ModeConfidencePauseMs:   4000,
			PerformanceBudgetCap:    0.5,
		},
	}
}

// #endregion defaults

// #region validate
// Validate checks that every mode has a full row and that the numbers are usable.
func (c PolicyConfig) Validate() error {
	for _, m := range AllModes() {
		row, ok := c.Matrix[m]
		if !ok {
			return fmt.Errorf("%w: matrix missing mode %s", ErrInvalidPolicy, m)
		}
		for lvl, cell := range row {
			if err := cell.validate(); err != nil {
				return fmt.Errorf("%w: %s/%s: %v", ErrInvalidPolicy, m, Backoff(lvl), err)
			}
		}
	}
	if c.Bucket.MaxTokens < 1 {
		return fmt.Errorf("%w: bucket max_tokens must be at least 1", ErrInvalidPolicy)
	}
	if c.Bucket.CooldownMs < 0 {
		return fmt.Errorf("%w: bucket cooldown_ms must not be negative", ErrInvalidPolicy)
	}
	if len(c.SafeWindow.BackoffPauseMs) != NumBackoffLevels {
		return fmt.Errorf("%w: backoff_pause_ms needs %d entries, got %d",
			ErrInvalidPolicy, NumBackoffLevels, len(c.SafeWindow.BackoffPauseMs))
	}
	if c.Overrides.ModeConfidenceFloor < 0 || c.Overrides.ModeConfidenceFloor > 1 {
		return fmt.Errorf("%w: mode_confidence_floor must be in [0,1]", ErrInvalidPolicy)
	}
	return nil
}

func (c PolicyCell) validate() error {
	if c.InterruptBudgetPerMin < 0 || c.MinPauseMs < 0 || c.MaxCues < 0 {
		return fmt.Errorf("negative budget, pause or cue count")
	}
	for m, w := range c.ModalityWeights {
		if w < 0 || math.IsNaN(w) {
			return fmt.Errorf("modality %s weight %v", m, w)
		}
	}
	switch c.Granularity {
	case GranularityNone, GranularityPhrase, GranularityBeat, GranularityMicro:
	default:
		return fmt.Errorf("granularity %q", c.Granularity)
	}
	switch c.Tone {
	case ToneSilent, ToneNeutral, ToneEncouraging, ToneInstructive:
	default:
		return fmt.Errorf("tone %q", c.Tone)
	}
	return nil
}

// #endregion validate

// #region effective-policy
// effectivePolicy derives the cell actually enforced for this call. The base matrix is
// never written; every clamp applies to a clone, in a fixed order.
func (e *Engine) effectivePolicy(mode Mode, backoff Backoff, sig SessionSignals) PolicyCell {
	row, ok := e.cfg.Matrix[mode]
	if !ok {
		return PolicyCell{Granularity: GranularityNone, Tone: ToneSilent, ModalityWeights: ModalityWeights{}}
	}
	p := row[backoff].Clone()
	o := e.cfg.Overrides

	// 1. modality availability
	p.ModalityWeights = renormalize(p.ModalityWeights, e.cfg.ModalityAvailability)

	// 2. phrase-only at high backoff
	if backoff >= e.cfg.SafeWindow.PhraseOnlyFrom {
		p.BetweenPhraseOnly = true
	}

	// 3. ignored prompts
	if o.IgnoreStreakThreshold > 0 && sig.ConsecutiveIgnoredPrompts >= o.IgnoreStreakThreshold {
		p.InterruptBudgetPerMin *= o.IgnoreStreakBudgetScale
		p.MinPauseMs += o.IgnoreStreakPauseMs
	}

	// 4. silence preference tiers
	switch {
	case sig.SilencePreference > o.SilenceSevere:
		p.InterruptBudgetPerMin *= o.SilenceSevereScale
		p.Tone = p.Tone.soften()
	case sig.SilencePreference > o.SilenceModerate:
		p.InterruptBudgetPerMin *= o.SilenceModerateScale
	}

	// 5. uncertain mode inference
	if sig.ModeConfidence != nil && *sig.ModeConfidence < o.ModeConfidenceFloor && o.ModeConfidenceFloor > 0 {
		scale := math.Max(0, math.Min(1, *sig.ModeConfidence/o.ModeConfidenceFloor))
		p.InterruptBudgetPerMin *= scale
		p.MinPauseMs += (1 - scale) * o.ModeConfidencePauseMs
	}

	// 6. performance ceiling
	if mode == ModePerformance {
		if p.Tone == ToneInstructive {
			p.Tone = ToneNeutral
		}
		if p.Granularity == GranularityMicro {
			p.Granularity = GranularityPhrase
		}
		p.InterruptBudgetPerMin = math.Min(p.InterruptBudgetPerMin, o.PerformanceBudgetCap)
	}

	// 7. high backoff
	if backoff >= e.cfg.SafeWindow.RealtimeOffFrom {
		p.RealtimeEnabled = false
	}
	if backoff == BackoffL4 {
		p.InterruptBudgetPerMin = 0
		p.Tone = ToneSilent
		p.MaxCues = 0
		for m := range p.ModalityWeights {
			p.ModalityWeights[m] = 0
		}
	}
	return p
}

// renormalize zeroes unavailable modalities and rescales the rest to sum to 1.
// All-zero weights stay zero.
func renormalize(w ModalityWeights, available map[Modality]bool) ModalityWeights {
	out := make(ModalityWeights, len(w))
	total := 0.0
	for _, m := range AllModalities() {
		v, ok := w[m]
		if !ok {
			continue
		}
		if up, listed := available[m]; listed && !up {
			v = 0
		}
		out[m] = v
		total += v
	}
	if total <= 0 {
		return out
	}
	for m, v := range out {
		out[m] = v / total
	}
	return out
}

// #endregion effective-policy
