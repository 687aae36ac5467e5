package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/strum-coach/internal/exercise"
	"github.com/danielpatrickdp/strum-coach/internal/feedback"
	"github.com/danielpatrickdp/strum-coach/internal/guidance"
	"github.com/danielpatrickdp/strum-coach/internal/objective"
	"github.com/danielpatrickdp/strum-coach/internal/renderer"
	"github.com/danielpatrickdp/strum-coach/internal/segmenter"
)

type fixedRand float64

func (f fixedRand) Float64() float64 { return float64(f) }

// mapAnalyzer returns canned metrics by take id.
type mapAnalyzer map[uint64]objective.Metrics

func (m mapAnalyzer) Analyze(t segmenter.TakeFinalized) (objective.TakeAnalysis, bool) {
	metrics, ok := m[t.TakeID]
	if !ok {
		return objective.TakeAnalysis{}, false
	}
	return objective.TakeAnalysis{TakeID: t.TakeID, Metrics: metrics}, true
}

// 80 BPM, 4/4, eighths, two bars: grid 3000..9000 when started at 0.
func eighths() exercise.Context {
	return exercise.Context{
		Meter:          exercise.Meter{BeatsPerBar: 4, BeatUnit: 4},
		Bars:           2,
		TempoBPM:       80,
		TempoTolerance: 0.15,
		CountInBeats:   4,
		Pattern:        exercise.StrumPattern{Subdivision: 2, ExpectedSlots: exercise.AllSlots(8)},
	}
}

func strums(startMs float64, n int) []segmenter.OnsetEvent {
	out := make([]segmenter.OnsetEvent, n)
	for i := range out {
		out[i] = segmenter.OnsetEvent{TimeMs: startMs + float64(i)*375, Confidence: 0.9, Seq: uint64(i + 1)}
	}
	return out
}

func newSession(t *testing.T, analyzer Analyzer) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(DefaultConfig(), guidance.DefaultPolicyConfig(), analyzer,
		WithRand(fixedRand(0)),
		WithClock(func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }))
	require.NoError(t, err)
	return o
}

// countIn strums the last two count-in beats.
func countIn() []segmenter.OnsetEvent {
	return []segmenter.OnsetEvent{
		{TimeMs: 1500, Confidence: 0.9, Seq: 901},
		{TimeMs: 2250, Confidence: 0.9, Seq: 902},
	}
}

// playTake runs one complete take and returns its outcome.
func playTake(t *testing.T, o *Orchestrator) TakeOutcome {
	t.Helper()
	_, err := o.Start(0, eighths())
	require.NoError(t, err)
	_, err = o.Ingest(9000, append(countIn(), strums(3000, 16)...))
	require.NoError(t, err)
	res, err := o.Tick(10500)
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 1)
	return res.Outcomes[0]
}

func TestCompleteTakeResolvesWithAnalysis(t *testing.T) {
	o := newSession(t, mapAnalyzer{1: {
		HitRate: 0.95, MissRate: 0.05, ExtraRate: 0.02,
		MeanOffsetMs: 4, P90AbsOffsetMs: 25, DriftMsPerBar: 3, Stability: 0.9,
	}})
	oc := playTake(t, o)

	assert.True(t, oc.Analyzed)
	assert.Equal(t, segmenter.ReasonGridComplete, oc.Finalized.Reason)
	assert.Equal(t, objective.AdvanceDifficulty, oc.Resolution.Objective)
	assert.Equal(t, objective.IntentLevelUp, oc.Resolution.Intent)
	require.NotNil(t, oc.Feedback)
	assert.Equal(t, feedback.ProfileChallenge, oc.Feedback.DifficultyProfile)
	assert.Equal(t, "practice", oc.Feedback.ClipID)
	assert.NotEmpty(t, o.SessionID())
	assert.Equal(t, segmenter.StateIdle, o.State())
}

func TestUnanalyzedTakeFallsBackToRecover(t *testing.T) {
	o := newSession(t, nil)
	oc := playTake(t, o)

	assert.False(t, oc.Analyzed)
	assert.Nil(t, oc.Feedback)
	assert.Equal(t, uint64(1), oc.Analysis.TakeID)
	assert.Equal(t, objective.RecoverTake, oc.Resolution.Objective)
	assert.Equal(t, "no analysis", oc.Resolution.Rationale)
}

func TestCancelResolvesToRecover(t *testing.T) {
	o := newSession(t, mapAnalyzer{})
	_, err := o.Start(0, eighths())
	require.NoError(t, err)

	res, err := o.Cancel(1000)
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, segmenter.ReasonCancelled, res.Outcomes[0].Finalized.Reason)
	assert.Equal(t, objective.RecoverTake, res.Outcomes[0].Resolution.Objective)
}

func TestInterveneBeforeStartIsDenied(t *testing.T) {
	o := newSession(t, nil)
	iv, err := o.Intervene(500, guidance.ModeGuided, guidance.BackoffL0)
	require.NoError(t, err)

	assert.False(t, iv.Decision.ShouldInitiate)
	assert.Equal(t, guidance.ReasonSessionNotStarted, iv.Decision.Reason)
	assert.Nil(t, iv.Envelope)
	assert.True(t, iv.DecisionCheck.Passed, iv.DecisionCheck.Reason)
}

func TestInterveneSchedulesOnTheTakeGrid(t *testing.T) {
	o := newSession(t, nil)
	playTake(t, o)

	iv, err := o.Intervene(11000, guidance.ModeGuided, guidance.BackoffL0)
	require.NoError(t, err)
	require.True(t, iv.Decision.ShouldInitiate, iv.Decision.Reason)
	assert.Equal(t, guidance.ModalityHaptic, iv.Decision.Modality)
	assert.Equal(t, 2375.0, iv.Signals.TimeSinceLastNoteOnMs)

	require.NotNil(t, iv.Envelope)
	env := iv.Envelope
	assert.Equal(t, 11250.0, env.QuantizedStartMs)
	assert.Equal(t, renderer.SnapAdvance, env.Snap)
	require.Len(t, env.Events, 24)
	assert.Equal(t, 2, env.Events[0].BarIndex)
	assert.Equal(t, 6, env.Events[0].SlotInBar)
	assert.Equal(t, 3, env.Events[2].BarIndex)
	assert.True(t, env.Events[2].Accented)
	require.NotNil(t, iv.EnvelopeCheck)
	assert.True(t, iv.EnvelopeCheck.Passed, iv.EnvelopeCheck.Reason)

	again, err := o.Intervene(12000, guidance.ModeGuided, guidance.BackoffL0)
	require.NoError(t, err)
	assert.Equal(t, guidance.ReasonCooldown, again.Decision.Reason)
	assert.Nil(t, again.Envelope)
}

func TestLowConfidenceOnsetKeepsSilenceGap(t *testing.T) {
	o := newSession(t, nil)
	playTake(t, o)

	noise := segmenter.OnsetEvent{TimeMs: 10800, Confidence: 0.1, Seq: 500}
	_, err := o.Ingest(10900, []segmenter.OnsetEvent{noise})
	require.NoError(t, err)

	iv, err := o.Intervene(11000, guidance.ModeGuided, guidance.BackoffL0)
	require.NoError(t, err)
	assert.Equal(t, 2375.0, iv.Signals.TimeSinceLastNoteOnMs)
}

func TestInterveneRespectsQuiet(t *testing.T) {
	o := newSession(t, nil)
	playTake(t, o)
	o.Signals().SetQuiet(true)

	iv, err := o.Intervene(20000, guidance.ModeGuided, guidance.BackoffL0)
	require.NoError(t, err)
	assert.Equal(t, guidance.ReasonExplicitQuiet, iv.Decision.Reason)
}

func TestIgnoredCueFeedsNextSnapshot(t *testing.T) {
	o := newSession(t, nil)
	playTake(t, o)

	_, err := o.Intervene(11000, guidance.ModeGuided, guidance.BackoffL0)
	require.NoError(t, err)
	iv, err := o.Intervene(30000, guidance.ModeGuided, guidance.BackoffL0)
	require.NoError(t, err)
	assert.Equal(t, 1, iv.Signals.ConsecutiveIgnoredPrompts)

	o.Acknowledge(30500)
	iv, err = o.Intervene(31000, guidance.ModeGuided, guidance.BackoffL0)
	require.NoError(t, err)
	assert.Equal(t, 0, iv.Signals.ConsecutiveIgnoredPrompts)
}

func TestWithAccentsOverridesDefaults(t *testing.T) {
	accents := make([]float64, 8)
	accents[4] = 0.5
	o, err := NewOrchestrator(DefaultConfig(), guidance.DefaultPolicyConfig(), nil,
		WithRand(fixedRand(0)), WithAccents(accents))
	require.NoError(t, err)
	playTake(t, o)

	iv, err := o.Intervene(11000, guidance.ModeGuided, guidance.BackoffL0)
	require.NoError(t, err)
	require.NotNil(t, iv.Envelope)
	for _, ev := range iv.Envelope.Events {
		assert.Equal(t, ev.SlotInBar == 4, ev.Accented)
	}
}

func TestTimeRegressionSurfaces(t *testing.T) {
	o := newSession(t, nil)
	_, err := o.Start(5000, eighths())
	require.NoError(t, err)
	_, err = o.Tick(4000)
	assert.ErrorIs(t, err, segmenter.ErrTimeRegression)
}

func TestInvalidPolicyRejected(t *testing.T) {
	cfg := guidance.DefaultPolicyConfig()
	cfg.Bucket.MaxTokens = 0
	_, err := NewOrchestrator(DefaultConfig(), cfg, nil)
	assert.ErrorIs(t, err, guidance.ErrInvalidPolicy)
}
