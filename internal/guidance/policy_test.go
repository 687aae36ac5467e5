package guidance

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func effective(t *testing.T, cfg PolicyConfig, mode Mode, b Backoff, sig SessionSignals) PolicyCell {
	t.Helper()
	e, err := NewEngine(cfg)
	require.NoError(t, err)
	return e.effectivePolicy(mode, b, sig)
}

func TestEffectivePolicyIgnoreStreak(t *testing.T) {
	p := effective(t, DefaultPolicyConfig(), ModePractice, BackoffL0, SessionSignals{ConsecutiveIgnoredPrompts: 3})
	assert.InDelta(t, 2.0, p.InterruptBudgetPerMin, 1e-9)
	assert.InDelta(t, 7500.0, p.MinPauseMs, 1e-9)
}

func TestEffectivePolicySilenceTiers(t *testing.T) {
	severe := effective(t, DefaultPolicyConfig(), ModePractice, BackoffL0, SessionSignals{SilencePreference: 0.8})
	assert.InDelta(t, 1.0, severe.InterruptBudgetPerMin, 1e-9)
	assert.Equal(t, ToneNeutral, severe.Tone)

	moderate := effective(t, DefaultPolicyConfig(), ModePractice, BackoffL0, SessionSignals{SilencePreference: 0.5})
	assert.InDelta(t, 2.4, moderate.InterruptBudgetPerMin, 1e-9)
	assert.Equal(t, ToneEncouraging, moderate.Tone)

	none := effective(t, DefaultPolicyConfig(), ModePractice, BackoffL0, SessionSignals{SilencePreference: 0.4})
	assert.InDelta(t, 4.0, none.InterruptBudgetPerMin, 1e-9)
}

func TestEffectivePolicyModeConfidence(t *testing.T) {
	c := 0.35
	p := effective(t, DefaultPolicyConfig(), ModePractice, BackoffL0, SessionSignals{ModeConfidence: &c})
	assert.InDelta(t, 2.0, p.InterruptBudgetPerMin, 1e-9)
	assert.InDelta(t, 4500.0, p.MinPauseMs, 1e-9)

	high := 0.9
	p = effective(t, DefaultPolicyConfig(), ModePractice, BackoffL0, SessionSignals{ModeConfidence: &high})
	assert.InDelta(t, 4.0, p.InterruptBudgetPerMin, 1e-9)
}

func TestEffectivePolicyPerformanceCeiling(t *testing.T) {
	cfg := DefaultPolicyConfig()
	row := cfg.Matrix[ModePerformance]
	row[BackoffL0].Tone = ToneInstructive
	row[BackoffL0].Granularity = GranularityMicro
	row[BackoffL0].InterruptBudgetPerMin = 5
	cfg.Matrix[ModePerformance] = row

	p := effective(t, cfg, ModePerformance, BackoffL0, SessionSignals{})
	assert.Equal(t, ToneNeutral, p.Tone)
	assert.Equal(t, GranularityPhrase, p.Granularity)
	assert.Equal(t, 0.5, p.InterruptBudgetPerMin)
}

func TestEffectivePolicyRenormalizesModalities(t *testing.T) {
	cfg := DefaultPolicyConfig()
	cfg.ModalityAvailability = map[Modality]bool{ModalityAudio: false, ModalityHaptic: true}
	p := effective(t, cfg, ModeGuided, BackoffL0, SessionSignals{})

	assert.Equal(t, 0.0, p.ModalityWeights[ModalityAudio])
	assert.InDelta(t, 0.3/0.7, p.ModalityWeights[ModalityHaptic], 1e-9)
	assert.InDelta(t, 0.1/0.7, p.ModalityWeights[ModalityText], 1e-9)
	sum := 0.0
	for _, w := range p.ModalityWeights {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestEffectivePolicyL4IsSilent(t *testing.T) {
	cfg := DefaultPolicyConfig()
	row := cfg.Matrix[ModeGuided]
	row[BackoffL4] = row[BackoffL0].Clone()
	cfg.Matrix[ModeGuided] = row

	p := effective(t, cfg, ModeGuided, BackoffL4, SessionSignals{})
	assert.False(t, p.RealtimeEnabled)
	assert.Equal(t, 0.0, p.InterruptBudgetPerMin)
	assert.Equal(t, ToneSilent, p.Tone)
	assert.Equal(t, 0, p.MaxCues)
	for m, w := range p.ModalityWeights {
		assert.Equal(t, 0.0, w, "modality %s", m)
	}
}

func TestBaseMatrixNeverMutated(t *testing.T) {
	cfg := DefaultPolicyConfig()
	e, err := NewEngine(cfg)
	require.NoError(t, err)
	e.StartSession(0)

	c := 0.2
	sig := open()
	sig.ConsecutiveIgnoredPrompts = 5
	sig.SilencePreference = 0.9
	sig.ModeConfidence = &c
	for _, m := range AllModes() {
		for b := BackoffL0; b <= BackoffL4; b++ {
			e.Decide(1000, m, b, sig)
		}
	}
	assert.Equal(t, DefaultPolicyConfig().Matrix, e.Policy().Matrix)
}

func TestBackoffText(t *testing.T) {
	for b := BackoffL0; b <= BackoffL4; b++ {
		text, err := b.MarshalText()
		require.NoError(t, err)
		var back Backoff
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, b, back)
	}
	_, err := ParseBackoff("L5")
	assert.ErrorIs(t, err, ErrInvalidPolicy)
}

const policyDoc = `
bucket:
  max_tokens: 1
  cooldown_ms: 30000
safe_window:
  phrase_only_from: L1
modality_availability:
  audio: false
matrix:
  jam:
    L0:
      interrupt_budget_per_min: 1
      min_pause_ms: 8000
      between_phrase_only: true
      realtime_enabled: true
      granularity: phrase
      max_cues: 1
      tone: neutral
      modality_weights:
        visual: 1
`

func TestParsePolicyConfigLayersOverDefaults(t *testing.T) {
	cfg, err := ParsePolicyConfig([]byte(policyDoc))
	require.NoError(t, err)

	def := DefaultPolicyConfig()
	assert.Equal(t, 1.0, cfg.Bucket.MaxTokens)
	assert.Equal(t, 30000.0, cfg.Bucket.CooldownMs)
	assert.True(t, cfg.Bucket.StochasticRounding)
	assert.Equal(t, BackoffL1, cfg.SafeWindow.PhraseOnlyFrom)
	assert.Equal(t, def.SafeWindow.BackoffPauseMs, cfg.SafeWindow.BackoffPauseMs)
	assert.Equal(t, def.Overrides, cfg.Overrides)
	assert.Equal(t, map[Modality]bool{ModalityAudio: false}, cfg.ModalityAvailability)

	jam := cfg.Matrix[ModeJam][BackoffL0]
	assert.Equal(t, 8000.0, jam.MinPauseMs)
	assert.Equal(t, ModalityWeights{ModalityVisual: 1}, jam.ModalityWeights)
	assert.Equal(t, def.Matrix[ModeJam][BackoffL1], cfg.Matrix[ModeJam][BackoffL1])
	assert.Equal(t, def.Matrix[ModeGuided], cfg.Matrix[ModeGuided])
}

func TestLoadPolicyConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(policyDoc), 0o644))

	cfg, err := LoadPolicyConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 1.0, cfg.Bucket.MaxTokens)

	_, err = LoadPolicyConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParsePolicyConfigRejectsBadInput(t *testing.T) {
	bad := []string{
		"matrix: {karaoke: {L0: {granularity: phrase, tone: neutral}}}",
		"matrix: {jam: {L7: {granularity: phrase, tone: neutral}}}",
		"matrix: {jam: {L0: {granularity: sometimes, tone: neutral}}}",
		"bucket: {max_tokens: 0}",
		"safe_window: {backoff_pause_ms: [1, 2]}",
	}
	for _, doc := range bad {
		_, err := ParsePolicyConfig([]byte(doc))
		assert.ErrorIs(t, err, ErrInvalidPolicy, doc)
	}
}
