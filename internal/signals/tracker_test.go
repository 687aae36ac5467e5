package signals

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/strum-coach/internal/guidance"
	"github.com/danielpatrickdp/strum-coach/internal/segmenter"
)

func onsets(times ...float64) []segmenter.OnsetEvent {
	out := make([]segmenter.OnsetEvent, len(times))
	for i, ts := range times {
		out[i] = segmenter.OnsetEvent{TimeMs: ts, Confidence: 0.9, Seq: uint64(i + 1)}
	}
	return out
}

func TestSnapshotBeforeAnyNote(t *testing.T) {
	tr := NewTracker(DefaultConfig(), 1000)
	sig := tr.Snapshot(4000)

	assert.Equal(t, 3000.0, sig.TimeSinceLastNoteOnMs)
	assert.False(t, sig.PhraseBoundary, "no phrase before any playing")
	assert.Equal(t, 500.0, sig.PhraseDebounceMs)
	assert.Nil(t, sig.ModeConfidence)
}

func TestSnapshotTracksLatestNote(t *testing.T) {
	tr := NewTracker(DefaultConfig(), 0)
	tr.ObserveOnsets(onsets(2000, 2600, 2300))

	sig := tr.Snapshot(3000)
	assert.Equal(t, 400.0, sig.TimeSinceLastNoteOnMs)
	assert.False(t, sig.PhraseBoundary)
}

func TestPhraseBoundaryAfterGap(t *testing.T) {
	tr := NewTracker(DefaultConfig(), 0)
	tr.ObserveOnsets(onsets(1000))

	sig := tr.Snapshot(2500)
	assert.True(t, sig.PhraseBoundary)
	assert.Equal(t, 0.0, sig.PhraseBoundaryElapsedMs)

	sig = tr.Snapshot(3200)
	assert.True(t, sig.PhraseBoundary)
	assert.Equal(t, 700.0, sig.PhraseBoundaryElapsedMs)

	tr.ObserveOnsets(onsets(3300))
	assert.False(t, tr.Snapshot(3400).PhraseBoundary)
}

func TestIgnoredPromptsAccumulate(t *testing.T) {
	tr := NewTracker(DefaultConfig(), 0)

	tr.PromptDelivered(1000)
	assert.Equal(t, 0, tr.Snapshot(5000).ConsecutiveIgnoredPrompts)
	assert.Equal(t, 1, tr.Snapshot(9000).ConsecutiveIgnoredPrompts)

	tr.PromptDelivered(10000)
	tr.PromptDelivered(11000)
	sig := tr.Snapshot(11500)
	assert.Equal(t, 2, sig.ConsecutiveIgnoredPrompts)
	assert.InDelta(t, 0.2, sig.SilencePreference, 1e-9)
}

func TestAcknowledgeResetsStreak(t *testing.T) {
	tr := NewTracker(DefaultConfig(), 0)
	tr.PromptDelivered(0)
	tr.PromptDelivered(1000)
	tr.PromptDelivered(2000)
	require.Equal(t, 2, tr.IgnoredStreak())

	tr.Acknowledge(2500)
	sig := tr.Snapshot(20000)
	assert.Equal(t, 0, sig.ConsecutiveIgnoredPrompts, "acknowledged prompt never expires")
	assert.InDelta(t, 0.1, sig.SilencePreference, 1e-9)
}

func TestOverridesFlowIntoSnapshot(t *testing.T) {
	tr := NewTracker(DefaultConfig(), 0)
	tr.SetQuiet(true)
	tr.SetSilencePreference(1.7)
	c := 0.4
	tr.SetModeConfidence(&c)
	c = 0.9

	sig := tr.Snapshot(100)
	assert.True(t, sig.ExplicitQuiet)
	assert.Equal(t, 1.0, sig.SilencePreference)
	require.NotNil(t, sig.ModeConfidence)
	assert.Equal(t, 0.4, *sig.ModeConfidence)

	tr.SetModeConfidence(nil)
	assert.Nil(t, tr.Snapshot(200).ModeConfidence)
}

func TestTrackerDrivesEngine(t *testing.T) {
	e, err := guidance.NewEngine(guidance.DefaultPolicyConfig(), guidance.WithSeed(7))
	require.NoError(t, err)
	e.StartSession(0)

	tr := NewTracker(DefaultConfig(), 0)
	tr.ObserveOnsets(onsets(1000, 1400))

	d := e.Decide(1500, guidance.ModeGuided, guidance.BackoffL0, tr.Snapshot(1500))
	assert.False(t, d.ShouldInitiate)
	assert.Equal(t, guidance.ReasonInsufficientPause, d.Reason)

	tr.SetQuiet(true)
	d = e.Decide(9000, guidance.ModeGuided, guidance.BackoffL0, tr.Snapshot(9000))
	assert.Equal(t, guidance.ReasonExplicitQuiet, d.Reason)
}
