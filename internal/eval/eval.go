package eval

import (
	"fmt"

	"github.com/danielpatrickdp/strum-coach/internal/guidance"
	"github.com/danielpatrickdp/strum-coach/internal/renderer"
)

// #region harness
// Harness re-checks engine and scheduler outputs against their invariants at runtime.
type Harness struct{}

// NewHarness creates a harness.
func NewHarness() *Harness {
	return &Harness{}
}

type runner struct {
	checks   []Check
	failures []string
}

func (r *runner) check(name string, pass bool, format string, args ...any) {
	c := Check{Name: name, Pass: pass}
	if !pass {
		c.Detail = fmt.Sprintf(format, args...)
		r.failures = append(r.failures, name+": "+c.Detail)
	}
	r.checks = append(r.checks, c)
}

func (r *runner) result() Result {
	reason := "all checks passed"
	if len(r.failures) == 1 {
		reason = fmt.Sprintf("eval failed: %s", r.failures[0])
	} else if len(r.failures) > 1 {
		reason = fmt.Sprintf("eval failed: %d checks: %s", len(r.failures), r.failures[0])
	}
	return Result{Passed: len(r.failures) == 0, Checks: r.checks, Reason: reason}
}

// #endregion harness

// #region decision
// CheckDecision validates one decision against the signals it was made from and the bucket
// state after the call.
func (h *Harness) CheckDecision(d guidance.InterventionDecision, sig guidance.SessionSignals, bucket guidance.TokenBucket) Result {
	var r runner

	r.check("modality_iff_initiate", d.ShouldInitiate == (d.Modality != ""),
		"initiate=%t modality=%q", d.ShouldInitiate, d.Modality)
	r.check("reason_matches_outcome", d.ShouldInitiate == (d.Reason == guidance.ReasonApproved),
		"initiate=%t reason=%q", d.ShouldInitiate, d.Reason)
	r.check("quiet_respected", !(sig.ExplicitQuiet && d.ShouldInitiate),
		"approved under explicit quiet")
	r.check("pause_respected", !d.ShouldInitiate || sig.TimeSinceLastNoteOnMs >= d.RequiredPauseMs,
		"%.0fms since last note, %.0fms required", sig.TimeSinceLastNoteOnMs, d.RequiredPauseMs)
	r.check("phrase_respected", !d.ShouldInitiate || !d.EffectivePolicy.BetweenPhraseOnly || sig.PhraseBoundary,
		"approved mid-phrase")
	r.check("bucket_bounds", bucket.Tokens >= 0 && bucket.Tokens <= bucket.MaxTokens,
		"tokens %.3f outside [0, %.3f]", bucket.Tokens, bucket.MaxTokens)

	return r.result()
}

// #endregion decision

// #region envelope
// CheckEnvelope validates a scheduled envelope against the payload and grid it came from.
func (h *Harness) CheckEnvelope(env renderer.Envelope, p renderer.PulsePayload, mc renderer.MusicalContext) Result {
	var r runner

	r.check("start_not_early", env.QuantizedStartMs >= p.StartMs-p.MaxSnapMs,
		"quantized %.3f before requested %.3f beyond snap %.3f", env.QuantizedStartMs, p.StartMs, p.MaxSnapMs)

	suppressed := make(map[int]bool, len(p.SuppressedSlots))
	for _, s := range p.SuppressedSlots {
		suppressed[s] = true
	}

	ordered, inWindow, gains, slots, absent := true, true, true, true, true
	for i, ev := range env.Events {
		if i > 0 && ev.TimeMs <= env.Events[i-1].TimeMs {
			ordered = false
		}
		if ev.TimeMs < env.QuantizedStartMs || ev.TimeMs >= p.EndMs {
			inWindow = false
		}
		if ev.Gain < 0 || ev.Gain > 1 {
			gains = false
		}
		if ev.SlotInBar < 0 || ev.SlotInBar >= mc.SlotsPerBar() {
			slots = false
		}
		if suppressed[ev.SlotInBar] {
			absent = false
		}
	}
	r.check("events_ordered", ordered, "event times not strictly increasing")
	r.check("events_in_window", inWindow, "event outside [%.3f, %.3f)", env.QuantizedStartMs, p.EndMs)
	r.check("gain_range", gains, "gain outside [0, 1]")
	r.check("slot_range", slots, "slot index outside [0, %d)", mc.SlotsPerBar())
	r.check("suppressed_absent", absent, "suppressed slot scheduled")

	return r.result()
}

// #endregion envelope
