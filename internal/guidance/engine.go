package guidance

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"

	"github.com/google/uuid"
)

// #region engine
// Engine gates interventions for one session: policy lookup, signal clamps, the safe
// window, then the token bucket. It is single-writer; callers serialize Decide.
type Engine struct {
	cfg  PolicyConfig
	rand RandSource
	log  *slog.Logger

	sessionID string
	started   bool
	bucket    TokenBucket
}

// Option configures an Engine.
type Option func(*Engine)

// WithRand injects the random source used for stochastic rounding and modality draws.
func WithRand(r RandSource) Option {
	return func(e *Engine) {
		if r != nil {
			e.rand = r
		}
	}
}

// WithSeed seeds a PCG source for the engine.
func WithSeed(seed uint64) Option {
	return func(e *Engine) {
		e.rand = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// WithLogger sets the logger for denial tracing.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// NewEngine validates the policy and creates an engine. Without WithRand or WithSeed the
// engine draws from a fixed-seed source, so sessions are reproducible by default.
func NewEngine(cfg PolicyConfig, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("new engine: %w", err)
	}
	e := &Engine{
		cfg:  cfg,
		rand: rand.New(rand.NewPCG(1, 2)),
		log:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// StartSession fills the bucket and mints a session id.
func (e *Engine) StartSession(nowMs float64) string {
	e.sessionID = uuid.NewString()
	e.started = true
	e.bucket = newTokenBucket(nowMs, e.cfg.Bucket.MaxTokens)
	return e.sessionID
}

// SessionID returns the id minted by StartSession, or "" before it.
func (e *Engine) SessionID() string { return e.sessionID }

// Bucket returns a copy of the token bucket.
func (e *Engine) Bucket() TokenBucket { return e.bucket }

// Policy returns the loaded policy configuration.
func (e *Engine) Policy() PolicyConfig { return e.cfg }

// #endregion engine

// #region decide
// Decide answers whether to intervene now. It never fails: every path returns a
// well-formed decision, and denials carry a stable reason.
func (e *Engine) Decide(nowMs float64, mode Mode, backoff Backoff, sig SessionSignals) InterventionDecision {
	backoff = backoff.clamp()
	d := InterventionDecision{Mode: mode, Backoff: backoff}

	// --- Hard vetoes ---
	if sig.ExplicitQuiet {
		d.Backoff = BackoffL4
		d.EffectivePolicy = e.effectivePolicy(mode, BackoffL4, sig)
		return e.deny(d, ReasonExplicitQuiet)
	}

	p := e.effectivePolicy(mode, backoff, sig)
	d.EffectivePolicy = p
	if !e.started {
		return e.deny(d, ReasonSessionNotStarted)
	}
	if !p.RealtimeEnabled {
		return e.deny(d, ReasonRealtimeDisabled)
	}
	if p.Granularity == GranularityNone {
		return e.deny(d, ReasonGranularityNone)
	}
	if mode == ModePerformance && (p.Tone == ToneInstructive || p.Granularity == GranularityMicro ||
		p.InterruptBudgetPerMin > e.cfg.Overrides.PerformanceBudgetCap) {
		return e.deny(d, ReasonPerformanceGuard)
	}

	// --- Safe window ---
	d.RequiredPauseMs = math.Max(p.MinPauseMs, e.cfg.SafeWindow.BackoffPauseMs[backoff])
	if sig.TimeSinceLastNoteOnMs < d.RequiredPauseMs {
		return e.deny(d, ReasonInsufficientPause)
	}
	if p.BetweenPhraseOnly {
		if !sig.PhraseBoundary {
			return e.deny(d, ReasonAwaitingPhraseBoundary)
		}
		if sig.PhraseBoundaryElapsedMs < sig.PhraseDebounceMs {
			return e.deny(d, ReasonPhraseDebounce)
		}
	}
	if mode == ModePerformance && sig.TimeSinceLastNoteOnMs < e.cfg.SafeWindow.PerformanceSilenceMs {
		return e.deny(d, ReasonPerformanceSilence)
	}

	// --- Rate limit ---
	e.bucket.refill(nowMs, p.InterruptBudgetPerMin)
	fractional, denied := e.bucket.admit(nowMs, e.cfg.Bucket, e.rand)
	if denied != "" {
		return e.deny(d, denied)
	}

	// --- Modality ---
	m, ok := drawModality(p.ModalityWeights, e.rand)
	if !ok {
		return e.deny(d, ReasonNoModality)
	}

	e.bucket.spend(nowMs, fractional)
	d.ShouldInitiate = true
	d.Reason = ReasonApproved
	d.Modality = m
	d.MaxCues = p.MaxCues
	e.log.Debug("intervention approved", "mode", mode, "backoff", backoff, "modality", m, "tokens", e.bucket.Tokens)
	return d
}

func (e *Engine) deny(d InterventionDecision, reason Reason) InterventionDecision {
	d.ShouldInitiate = false
	d.Reason = reason
	d.Modality = ModalityNone
	d.MaxCues = 0
	e.log.Debug("intervention denied", "mode", d.Mode, "backoff", d.Backoff, "reason", reason)
	return d
}

// drawModality picks a modality proportionally to its weight in canonical order.
func drawModality(w ModalityWeights, r RandSource) (Modality, bool) {
	total := 0.0
	for _, m := range AllModalities() {
		if v := w[m]; v > 0 {
			total += v
		}
	}
	if total <= 0 {
		return ModalityNone, false
	}
	u := r.Float64() * total
	var last Modality
	cum := 0.0
	for _, m := range AllModalities() {
		v := w[m]
		if v <= 0 {
			continue
		}
		cum += v
		last = m
		if u < cum {
			return m, true
		}
	}
	return last, true
}

// #endregion decide
