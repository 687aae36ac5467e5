package signals

// #region config

// Config holds the tuning knobs for deriving session signals.
type Config struct {
	PhraseGapMs      float64 `json:"phrase_gap_ms" yaml:"phrase_gap_ms" toml:"phrase_gap_ms"`                // silence after playing that closes a phrase
	PhraseDebounceMs float64 `json:"phrase_debounce_ms" yaml:"phrase_debounce_ms" toml:"phrase_debounce_ms"` // reported to the engine as-is
	IgnoreAfterMs    float64 `json:"ignore_after_ms" yaml:"ignore_after_ms" toml:"ignore_after_ms"`          // unacknowledged prompts older than this count as ignored
	PreferenceStep   float64 `json:"preference_step" yaml:"preference_step" toml:"preference_step"`          // silence preference nudge per ignored or acknowledged prompt
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		PhraseGapMs:      1500,
		PhraseDebounceMs: 500,
		IgnoreAfterMs:    8000,
		PreferenceStep:   0.1,
	}
}

// #endregion config
