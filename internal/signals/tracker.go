package signals

import (
	"github.com/danielpatrickdp/strum-coach/internal/guidance"
	"github.com/danielpatrickdp/strum-coach/internal/segmenter"
)

// #region tracker

// Tracker turns the onset stream and prompt acknowledgements into the SessionSignals snapshot
// the guidance engine expects on every decision.
type Tracker struct {
	config Config

	startMs      float64
	lastNoteOnMs float64
	heardNote    bool

	promptAtMs     float64
	promptPending  bool
	ignoredStreak  int
	silencePref    float64
	quiet          bool
	modeConfidence *float64
}

// NewTracker creates a Tracker for a session starting at startMs.
func NewTracker(config Config, startMs float64) *Tracker {
	return &Tracker{config: config, startMs: startMs}
}

// #endregion tracker

// #region observe

// ObserveOnsets records note-on activity. Events may arrive out of order.
func (t *Tracker) ObserveOnsets(events []segmenter.OnsetEvent) {
	for _, e := range events {
		if !t.heardNote || e.TimeMs > t.lastNoteOnMs {
			t.lastNoteOnMs = e.TimeMs
			t.heardNote = true
		}
	}
}

// PromptDelivered records that a cue reached the player. An older prompt still awaiting
// acknowledgement counts as ignored.
func (t *Tracker) PromptDelivered(atMs float64) {
	if t.promptPending {
		t.markIgnored()
	}
	t.promptAtMs = atMs
	t.promptPending = true
}

// Acknowledge records that the player responded to the last prompt.
func (t *Tracker) Acknowledge(atMs float64) {
	t.expire(atMs)
	t.promptPending = false
	t.ignoredStreak = 0
	t.silencePref = clamp(t.silencePref - t.config.PreferenceStep)
}

// SetQuiet toggles the player's explicit request for silence.
func (t *Tracker) SetQuiet(quiet bool) { t.quiet = quiet }

// SetSilencePreference overrides the learned silence preference.
func (t *Tracker) SetSilencePreference(v float64) { t.silencePref = clamp(v) }

// SetModeConfidence records the mode classifier's confidence; nil means unknown.
func (t *Tracker) SetModeConfidence(c *float64) {
	if c == nil {
		t.modeConfidence = nil
		return
	}
	v := clamp(*c)
	t.modeConfidence = &v
}

// IgnoredStreak reports consecutive ignored prompts.
func (t *Tracker) IgnoredStreak() int { return t.ignoredStreak }

// #endregion observe

// #region snapshot

// Snapshot builds the signals for a decision at nowMs.
func (t *Tracker) Snapshot(nowMs float64) guidance.SessionSignals {
	t.expire(nowMs)

	since := nowMs - t.startMs
	if t.heardNote {
		since = nowMs - t.lastNoteOnMs
	}
	if since < 0 {
		since = 0
	}

	sig := guidance.SessionSignals{
		TimeSinceLastNoteOnMs:     since,
		PhraseDebounceMs:          t.config.PhraseDebounceMs,
		ConsecutiveIgnoredPrompts: t.ignoredStreak,
		SilencePreference:         t.silencePref,
		ExplicitQuiet:             t.quiet,
	}
	if t.heardNote && since >= t.config.PhraseGapMs {
		sig.PhraseBoundary = true
		sig.PhraseBoundaryElapsedMs = since - t.config.PhraseGapMs
	}
	if t.modeConfidence != nil {
		c := *t.modeConfidence
		sig.ModeConfidence = &c
	}
	return sig
}

// #endregion snapshot

// #region helpers

func (t *Tracker) expire(nowMs float64) {
	if t.promptPending && nowMs-t.promptAtMs >= t.config.IgnoreAfterMs {
		t.promptPending = false
		t.markIgnored()
	}
}

func (t *Tracker) markIgnored() {
	t.ignoredStreak++
	t.silencePref = clamp(t.silencePref + t.config.PreferenceStep)
}

// clamp restricts v to [0, 1].
func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// #endregion helpers
