package orchestrator

// #region imports
import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/danielpatrickdp/strum-coach/internal/eval"
	"github.com/danielpatrickdp/strum-coach/internal/exercise"
	"github.com/danielpatrickdp/strum-coach/internal/feedback"
	"github.com/danielpatrickdp/strum-coach/internal/guidance"
	"github.com/danielpatrickdp/strum-coach/internal/objective"
	"github.com/danielpatrickdp/strum-coach/internal/renderer"
	"github.com/danielpatrickdp/strum-coach/internal/segmenter"
	"github.com/danielpatrickdp/strum-coach/internal/signals"
)

// #endregion

// #region orchestrator-struct

// Orchestrator runs one practice session: segmenter, resolver, guidance engine and renderer
// behind a single sequential call surface.
type Orchestrator struct {
	cfg      Config
	log      *slog.Logger
	clock    func() time.Time
	detector objective.HotspotDetector
	rand     guidance.RandSource
	accents  []float64

	seg      *segmenter.Segmenter
	resolver *objective.Resolver
	engine   *guidance.Engine
	tracker  *signals.Tracker
	feedback *feedback.Builder
	harness  *eval.Harness
	analyzer Analyzer

	exercise    exercise.Context
	gridStartMs float64
	started     bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the session logger; components log at debug through it.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

// WithClock sets the wall clock stamped on feedback packets.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.clock = now }
}

// WithDetector replaces the reference slot-error hotspot detector.
func WithDetector(d objective.HotspotDetector) Option {
	return func(o *Orchestrator) { o.detector = d }
}

// WithRand replaces the engine's seeded random source.
func WithRand(r guidance.RandSource) Option {
	return func(o *Orchestrator) { o.rand = r }
}

// WithAccents sets per-slot accent gains for scheduled cues, e.g. from a groove pack.
func WithAccents(accents []float64) Option {
	return func(o *Orchestrator) { o.accents = append([]float64(nil), accents...) }
}

// #endregion

// #region constructor

// NewOrchestrator creates a fully wired session. analyzer may be nil, in which case every
// take is resolved without metrics.
func NewOrchestrator(cfg Config, policy guidance.PolicyConfig, analyzer Analyzer, opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{
		cfg:      cfg,
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		clock:    time.Now,
		detector: objective.DefaultSlotErrorDetector(),
		analyzer: analyzer,
		harness:  eval.NewHarness(),
	}
	for _, opt := range opts {
		opt(o)
	}

	engineOpts := []guidance.Option{guidance.WithSeed(cfg.Seed), guidance.WithLogger(o.log)}
	if o.rand != nil {
		engineOpts = append(engineOpts, guidance.WithRand(o.rand))
	}
	engine, err := guidance.NewEngine(policy, engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("new orchestrator: %w", err)
	}

	o.engine = engine
	o.seg = segmenter.New(cfg.Segmenter, segmenter.WithLogger(o.log))
	o.resolver = objective.NewResolver(cfg.Resolver, o.detector)
	o.feedback = feedback.NewBuilder(cfg.Resolver)
	return o, nil
}

// SessionID returns the engine session id, empty before Start.
func (o *Orchestrator) SessionID() string { return o.engine.SessionID() }

// State returns the segmenter state.
func (o *Orchestrator) State() segmenter.TakeState { return o.seg.State() }

// Signals exposes the session signal tracker for quiet, preference and mode-confidence input.
func (o *Orchestrator) Signals() *signals.Tracker { return o.tracker }

// #endregion

// #region take-lifecycle

// Start begins an exercise. The first call also starts the guidance session.
func (o *Orchestrator) Start(nowMs float64, ex exercise.Context) (StepResult, error) {
	out, err := o.seg.Start(nowMs, ex)
	if err != nil {
		return StepResult{}, err
	}
	o.exercise = ex
	if !o.started {
		id := o.engine.StartSession(nowMs)
		o.tracker = signals.NewTracker(o.cfg.Signals, nowMs)
		o.started = true
		o.log.Info("session started", "session", id, "tempo", ex.TempoBPM, "bars", ex.Bars)
	}
	return o.collect(out), nil
}

// Ingest feeds onsets observed up to nowMs.
func (o *Orchestrator) Ingest(nowMs float64, events []segmenter.OnsetEvent) (StepResult, error) {
	out, err := o.seg.Ingest(nowMs, events)
	if err != nil {
		return StepResult{}, err
	}
	if o.tracker != nil {
		o.tracker.ObserveOnsets(o.confident(events))
	}
	return o.collect(out), nil
}

// confident drops onsets the segmenter would count as low confidence. A repeated
// sequence number carries the same onset, so it cannot move the last note-on forward.
func (o *Orchestrator) confident(events []segmenter.OnsetEvent) []segmenter.OnsetEvent {
	kept := make([]segmenter.OnsetEvent, 0, len(events))
	for _, e := range events {
		if e.Confidence >= o.cfg.Segmenter.LowConfidenceThreshold {
			kept = append(kept, e)
		}
	}
	return kept
}

// Tick advances time without onsets.
func (o *Orchestrator) Tick(nowMs float64) (StepResult, error) {
	out, err := o.seg.Tick(nowMs)
	if err != nil {
		return StepResult{}, err
	}
	return o.collect(out), nil
}

// Stop ends the active take as a user stop.
func (o *Orchestrator) Stop(nowMs float64) (StepResult, error) {
	out, err := o.seg.Stop(nowMs)
	if err != nil {
		return StepResult{}, err
	}
	return o.collect(out), nil
}

// Cancel abandons the active take.
func (o *Orchestrator) Cancel(nowMs float64) (StepResult, error) {
	out, err := o.seg.Cancel(nowMs)
	if err != nil {
		return StepResult{}, err
	}
	return o.collect(out), nil
}

// Acknowledge records that the player responded to the last cue.
func (o *Orchestrator) Acknowledge(nowMs float64) {
	if o.tracker != nil {
		o.tracker.Acknowledge(nowMs)
	}
}

// collect tracks the grid anchor and resolves every finalized take in out.
func (o *Orchestrator) collect(out []segmenter.Output) StepResult {
	res := StepResult{Outputs: out}
	for _, e := range out {
		switch v := e.(type) {
		case segmenter.TakeStatus:
			if snap := o.seg.ActiveTake(); snap != nil && snap.ID == v.TakeID {
				o.gridStartMs = snap.Anchors.GridStartMs
			}
		case segmenter.TakeFinalized:
			o.gridStartMs = v.Anchors.GridStartMs
			res.Outcomes = append(res.Outcomes, o.resolve(v))
		}
	}
	return res
}

func (o *Orchestrator) resolve(take segmenter.TakeFinalized) TakeOutcome {
	oc := TakeOutcome{Finalized: take, Analysis: objective.TakeAnalysis{TakeID: take.TakeID}}
	if o.analyzer != nil {
		if a, ok := o.analyzer.Analyze(take); ok {
			oc.Analysis, oc.Analyzed = a, true
		}
	}
	if oc.Analyzed {
		oc.Resolution = o.resolver.Resolve(oc.Analysis, take.Reason, take.Flags)
		pkt := o.feedback.Build(take, oc.Analysis, oc.Resolution, o.cfg.ClipID, o.clock())
		oc.Feedback = &pkt
	} else {
		oc.Resolution = o.resolver.ResolveUnanalyzed(take.Reason, take.Flags)
	}

	o.log.Info("take finalized",
		"take", take.TakeID,
		"reason", take.Reason,
		"objective", oc.Resolution.Objective,
		"intent", oc.Resolution.Intent,
		"rationale", oc.Resolution.Rationale,
		"analyzed", oc.Analyzed)
	return oc
}

// #endregion

// #region intervene

// Intervene asks the guidance engine whether a cue may fire now and, if so, schedules it
// onto the exercise grid. It never fails for a denial; errors mean the grid is unusable.
func (o *Orchestrator) Intervene(nowMs float64, mode guidance.Mode, backoff guidance.Backoff) (Intervention, error) {
	var sig guidance.SessionSignals
	if o.tracker != nil {
		sig = o.tracker.Snapshot(nowMs)
	}
	d := o.engine.Decide(nowMs, mode, backoff, sig)
	iv := Intervention{
		AtMs:          nowMs,
		Signals:       sig,
		Decision:      d,
		DecisionCheck: o.harness.CheckDecision(d, sig, o.engine.Bucket()),
	}
	if !iv.DecisionCheck.Passed {
		o.log.Warn("decision invariant violated", "reason", iv.DecisionCheck.Reason)
	}
	if !d.ShouldInitiate {
		o.log.Debug("intervention denied", "mode", mode, "backoff", d.Backoff, "reason", d.Reason)
		return iv, nil
	}

	mc := renderer.ContextFromExercise(o.exercise, o.gridStartMs)
	cues := max(d.MaxCues, 1)
	p := renderer.PulsePayload{
		Modality:      d.Modality,
		StartMs:       nowMs,
		EndMs:         nowMs + float64(cues*mc.SlotsPerBar())*mc.SlotMs(),
		PhaseAnchorMs: o.gridStartMs,
		MaxSnapMs:     o.cfg.MaxSnapMs,
		BaseGain:      o.cfg.BaseGain,
		AccentGains:   o.accentGains(mc),
	}
	env, err := renderer.Schedule(p, mc)
	if err != nil {
		return iv, fmt.Errorf("schedule cue: %w", err)
	}
	check := o.harness.CheckEnvelope(env, p, mc)
	if !check.Passed {
		o.log.Warn("envelope invariant violated", "reason", check.Reason)
	}
	iv.Payload, iv.Envelope, iv.EnvelopeCheck = &p, &env, &check
	o.tracker.PromptDelivered(nowMs)

	o.log.Info("intervention scheduled",
		"mode", mode,
		"backoff", d.Backoff,
		"modality", d.Modality,
		"pulses", len(env.Events),
		"start", env.QuantizedStartMs,
		"snap", env.Snap)
	return iv, nil
}

// accentGains returns the configured accents, or downbeat and beat accents by default.
func (o *Orchestrator) accentGains(mc renderer.MusicalContext) []float64 {
	if o.accents != nil {
		return o.accents
	}
	out := make([]float64, mc.SlotsPerBar())
	for i := 0; i < len(out); i += mc.SlotsPerBeat {
		out[i] = 0.25
	}
	if len(out) > 0 {
		out[0] = 0.5
	}
	return out
}

// #endregion
