package guidance

import (
	"errors"
	"fmt"
)

// ErrInvalidPolicy is returned (wrapped) when a policy configuration is incomplete or inconsistent.
var ErrInvalidPolicy = errors.New("invalid policy")

// #region mode
// Mode is the inferred practice mode of the session.
type Mode string

const (
	ModeGuided      Mode = "guided"
	ModePractice    Mode = "practice"
	ModeJam         Mode = "jam"
	ModePerformance Mode = "performance"
)

// AllModes lists the modes every policy matrix must cover.
func AllModes() []Mode {
	return []Mode{ModeGuided, ModePractice, ModeJam, ModePerformance}
}

// #endregion mode

// #region backoff
// Backoff is the escalation level, L0 (most permissive) to L4 (silent).
type Backoff int

const (
	BackoffL0 Backoff = iota
	BackoffL1
	BackoffL2
	BackoffL3
	BackoffL4

	NumBackoffLevels = 5
)

func (b Backoff) String() string { return fmt.Sprintf("L%d", int(b)) }

func (b Backoff) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

func (b *Backoff) UnmarshalText(text []byte) error {
	v, err := ParseBackoff(string(text))
	if err != nil {
		return err
	}
	*b = v
	return nil
}

// ParseBackoff parses "L0".."L4".
func ParseBackoff(s string) (Backoff, error) {
	if len(s) == 2 && (s[0] == 'L' || s[0] == 'l') && s[1] >= '0' && s[1] <= '4' {
		return Backoff(s[1] - '0'), nil
	}
	return 0, fmt.Errorf("%w: backoff level %q", ErrInvalidPolicy, s)
}

// clamp pins out-of-range levels to the nearest valid one.
func (b Backoff) clamp() Backoff {
	if b < BackoffL0 {
		return BackoffL0
	}
	if b > BackoffL4 {
		return BackoffL4
	}
	return b
}

// #endregion backoff

// #region modality
// Modality is a cue delivery channel.
type Modality string

const (
	ModalityNone   Modality = ""
	ModalityHaptic Modality = "haptic"
	ModalityVisual Modality = "visual"
	ModalityAudio  Modality = "audio"
	ModalityText   Modality = "text"
)

// AllModalities is the canonical draw order.
func AllModalities() []Modality {
	return []Modality{ModalityHaptic, ModalityVisual, ModalityAudio, ModalityText}
}

// ModalityWeights are relative draw weights per modality.
type ModalityWeights map[Modality]float64

// #endregion modality

// #region granularity-tone
// Granularity bounds how fine-grained a cue may be.
type Granularity string

const (
	GranularityNone   Granularity = "none"
	GranularityPhrase Granularity = "phrase"
	GranularityBeat   Granularity = "beat"
	GranularityMicro  Granularity = "micro"
)

// Tone is the register of delivered cues.
type Tone string

const (
	ToneSilent      Tone = "silent"
	ToneNeutral     Tone = "neutral"
	ToneEncouraging Tone = "encouraging"
	ToneInstructive Tone = "instructive"
)

// soften steps the tone one register toward neutral.
func (t Tone) soften() Tone {
	switch t {
	case ToneInstructive:
		return ToneEncouraging
	case ToneEncouraging:
		return ToneNeutral
	}
	return t
}

// #endregion granularity-tone

// #region policy-cell
// AssistFlags toggle passive practice aids.
type AssistFlags struct {
	CountInClick bool `json:"count_in_click" yaml:"count_in_click"`
	VisualGrid   bool `json:"visual_grid" yaml:"visual_grid"`
	TempoRamp    bool `json:"tempo_ramp" yaml:"tempo_ramp"`
}

// PolicyCell is the intervention policy for one (mode, backoff) pair.
type PolicyCell struct {
	InterruptBudgetPerMin float64         `json:"interrupt_budget_per_min" yaml:"interrupt_budget_per_min"`
	MinPauseMs            float64         `json:"min_pause_ms" yaml:"min_pause_ms"`
	BetweenPhraseOnly     bool            `json:"between_phrase_only" yaml:"between_phrase_only"`
	RealtimeEnabled       bool            `json:"realtime_enabled" yaml:"realtime_enabled"`
	Granularity           Granularity     `json:"granularity" yaml:"granularity"`
	MaxCues               int             `json:"max_cues" yaml:"max_cues"`
	ModalityWeights       ModalityWeights `json:"modality_weights" yaml:"modality_weights"`
	Tone                  Tone            `json:"tone" yaml:"tone"`
	Assist                AssistFlags     `json:"assist" yaml:"assist"`
}

// Clone deep-copies the cell so derived policies never alias the base matrix.
func (c PolicyCell) Clone() PolicyCell {
	out := c
	out.ModalityWeights = make(ModalityWeights, len(c.ModalityWeights))
	for m, w := range c.ModalityWeights {
		out.ModalityWeights[m] = w
	}
	return out
}

// PolicyRow holds one cell per backoff level.
type PolicyRow [NumBackoffLevels]PolicyCell

// #endregion policy-cell

// #region policy-config
// BucketConfig shapes the interruption token bucket.
type BucketConfig struct {
	MaxTokens          float64 `json:"max_tokens" yaml:"max_tokens"`
	CooldownMs         float64 `json:"cooldown_ms" yaml:"cooldown_ms"`
	StochasticRounding bool    `json:"stochastic_rounding" yaml:"stochastic_rounding"`
}

// SafeWindowConfig gates when the player can be interrupted at all.
type SafeWindowConfig struct {
	BackoffPauseMs       []float64 `json:"backoff_pause_ms" yaml:"backoff_pause_ms"` // one per backoff level
	PhraseOnlyFrom       Backoff   `json:"phrase_only_from" yaml:"phrase_only_from"`
	RealtimeOffFrom      Backoff   `json:"realtime_off_from" yaml:"realtime_off_from"`
	PerformanceSilenceMs float64   `json:"performance_silence_ms" yaml:"performance_silence_ms"`
}

// OverrideConfig holds the signal-driven clamps applied on top of a base cell.
type OverrideConfig struct {
	IgnoreStreakThreshold   int     `json:"ignore_streak_threshold" yaml:"ignore_streak_threshold"`
	IgnoreStreakBudgetScale float64 `json:"ignore_streak_budget_scale" yaml:"ignore_streak_budget_scale"`
	IgnoreStreakPauseMs     float64 `json:"ignore_streak_pause_ms" yaml:"ignore_streak_pause_ms"`
	SilenceSevere           float64 `json:"silence_severe" yaml:"silence_severe"`
	SilenceSevereScale      float64 `json:"silence_severe_scale" yaml:"silence_severe_scale"`
	SilenceModerate         float64 `json:"silence_moderate" yaml:"silence_moderate"`
	SilenceModerateScale    float64 `json:"silence_moderate_scale" yaml:"silence_moderate_scale"`
	ModeConfidenceFloor     float64 `json:"mode_confidence_floor" yaml:"mode_confidence_floor"`
	ModeConfidencePauseMs   float64 `json:"mode_confidence_pause_ms" yaml:"mode_confidence_pause_ms"`
	PerformanceBudgetCap    float64 `json:"performance_budget_cap" yaml:"performance_budget_cap"`
}

// PolicyConfig is loaded once per session and treated as read-only.
type PolicyConfig struct {
	Matrix               map[Mode]PolicyRow `json:"matrix"`
	Bucket               BucketConfig       `json:"bucket"`
	SafeWindow           SafeWindowConfig   `json:"safe_window"`
	Overrides            OverrideConfig     `json:"overrides"`
	ModalityAvailability map[Modality]bool  `json:"modality_availability,omitempty"` // missing means available
}

// #endregion policy-config

// #region signals
// SessionSignals is the caller's snapshot for one decision.
type SessionSignals struct {
	TimeSinceLastNoteOnMs     float64  `json:"time_since_last_note_on_ms"`
	PhraseBoundary            bool     `json:"phrase_boundary"`
	PhraseBoundaryElapsedMs   float64  `json:"phrase_boundary_elapsed_ms"`
	PhraseDebounceMs          float64  `json:"phrase_debounce_ms"`
	ConsecutiveIgnoredPrompts int      `json:"consecutive_ignored_prompts"`
	SilencePreference         float64  `json:"silence_preference"`
	ExplicitQuiet             bool     `json:"explicit_quiet"`
	ModeConfidence            *float64 `json:"mode_confidence,omitempty"`
}

// #endregion signals

// #region decision
// Reason is the stable identifier of a decision outcome.
type Reason string

const (
	ReasonApproved               Reason = "approved"
	ReasonExplicitQuiet          Reason = "explicit_quiet"
	ReasonSessionNotStarted      Reason = "session_not_started"
	ReasonRealtimeDisabled       Reason = "realtime_disabled"
	ReasonGranularityNone        Reason = "granularity_none"
	ReasonPerformanceGuard       Reason = "performance_guard"
	ReasonInsufficientPause      Reason = "insufficient_pause"
	ReasonAwaitingPhraseBoundary Reason = "awaiting_phrase_boundary"
	ReasonPhraseDebounce         Reason = "phrase_debounce"
	ReasonPerformanceSilence     Reason = "performance_silence"
	ReasonCooldown               Reason = "cooldown"
	ReasonRateLimited            Reason = "rate_limited"
	ReasonNoModality             Reason = "no modality available"
)

// AllReasons lists every reason a decision can carry.
func AllReasons() []Reason {
	return []Reason{
		ReasonApproved, ReasonExplicitQuiet, ReasonSessionNotStarted, ReasonRealtimeDisabled,
		ReasonGranularityNone, ReasonPerformanceGuard, ReasonInsufficientPause,
		ReasonAwaitingPhraseBoundary, ReasonPhraseDebounce, ReasonPerformanceSilence,
		ReasonCooldown, ReasonRateLimited, ReasonNoModality,
	}
}

// InterventionDecision is the engine's answer for one call. Modality is set iff ShouldInitiate.
type InterventionDecision struct {
	ShouldInitiate  bool       `json:"should_initiate"`
	Reason          Reason     `json:"reason"`
	Mode            Mode       `json:"mode"`
	Backoff         Backoff    `json:"backoff"`
	EffectivePolicy PolicyCell `json:"effective_policy"`
	Modality        Modality   `json:"modality,omitempty"`
	MaxCues         int        `json:"max_cues"`
	RequiredPauseMs float64    `json:"required_pause_ms"`
}

// #endregion decision

// #region rand
// RandSource supplies uniform draws in [0, 1). *math/rand/v2.Rand satisfies it.
type RandSource interface {
	Float64() float64
}

// #endregion rand
