package segmenter

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"sort"

	"github.com/danielpatrickdp/strum-coach/internal/exercise"
)

// #region segmenter
// Segmenter turns a timestamped onset stream into bounded takes. It is driven entirely
// by Start, Ingest, Tick, Stop and Cancel; it owns no timers.
type Segmenter struct {
	cfg    Config
	log    *slog.Logger
	ex     exercise.Context
	timing exercise.Timing

	state  TakeState
	take   *take
	nextID uint64

	clock    float64
	hasClock bool

	history *eventRing
	seen    *seqFilter
}

type take struct {
	id       uint64
	anchors  Anchors
	flags    Flags
	preRoll  []OnsetEvent
	inWindow []OnsetEvent
	postRoll []OnsetEvent

	lastInWindowMs float64
	countInChecked bool
	watch          restartWatch
}

// restartWatch is armed by a silence gap and trips when a burst follows it.
type restartWatch struct {
	active  bool
	startMs float64
}

// Option configures a Segmenter.
type Option func(*Segmenter)

// WithLogger sets the logger for transition tracing.
func WithLogger(l *slog.Logger) Option {
	return func(s *Segmenter) {
		if l != nil {
			s.log = l
		}
	}
}

// New creates an idle segmenter.
func New(cfg Config, opts ...Option) *Segmenter {
	s := &Segmenter{
		cfg:     cfg,
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		state:   StateIdle,
		nextID:  1,
		history: newEventRing(cfg.HistoryCapacity, cfg.HistoryWindowMs),
		seen:    newSeqFilter(cfg.HistoryCapacity*4, cfg.HistoryWindowMs),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// State returns the current lifecycle state.
func (s *Segmenter) State() TakeState { return s.state }

// ActiveTake returns a snapshot of the current take, or nil when idle.
func (s *Segmenter) ActiveTake() *TakeSnapshot {
	if s.take == nil {
		return nil
	}
	return &TakeSnapshot{
		ID:            s.take.id,
		State:         s.state,
		Anchors:       s.take.anchors,
		Flags:         s.take.flags,
		InWindowCount: len(s.take.inWindow),
	}
}

// Timing returns the derived timing of the current exercise.
func (s *Segmenter) Timing() exercise.Timing { return s.timing }

// #endregion segmenter

// #region operations
// Start validates the exercise and arms a new take. An active take is cancelled first.
func (s *Segmenter) Start(nowMs float64, ex exercise.Context) ([]Output, error) {
	if err := ex.Validate(); err != nil {
		return nil, fmt.Errorf("start take: %w", err)
	}
	if err := s.advanceClock(nowMs); err != nil {
		return nil, err
	}
	var out []Output
	if s.take != nil {
		out = append(out, s.finalize(ReasonCancelled, nowMs)...)
	}
	s.ex = ex
	s.timing = ex.Timing()
	out = append(out, s.arm(nowMs)...)
	return out, nil
}

// Ingest processes a batch of onsets observed up to nowMs.
func (s *Segmenter) Ingest(nowMs float64, events []OnsetEvent) ([]Output, error) {
	if err := s.advanceClock(nowMs); err != nil {
		return nil, err
	}
	batch := append([]OnsetEvent(nil), events...)
	sort.SliceStable(batch, func(i, j int) bool { return batch[i].TimeMs < batch[j].TimeMs })

	var out []Output
	for _, e := range batch {
		if s.seen.contains(e.Source, e.Seq) {
			continue
		}
		s.seen.add(e.Source, e.Seq, e.TimeMs)
		out = append(out, s.step(math.Min(e.TimeMs, nowMs))...)
		out = append(out, s.accept(e)...)
	}
	out = append(out, s.step(nowMs)...)
	return out, nil
}

// Tick advances the state machine without new onsets.
func (s *Segmenter) Tick(nowMs float64) ([]Output, error) {
	if err := s.advanceClock(nowMs); err != nil {
		return nil, err
	}
	return s.step(nowMs), nil
}

// Stop ends the active take as a user stop. It is a no-op when idle.
func (s *Segmenter) Stop(nowMs float64) ([]Output, error) {
	if err := s.advanceClock(nowMs); err != nil {
		return nil, err
	}
	out := s.step(nowMs)
	if s.take == nil {
		return out, nil
	}
	return append(out, s.finalize(ReasonUserStop, nowMs)...), nil
}

// Cancel finalizes the active take as cancelled and returns to Idle.
func (s *Segmenter) Cancel(nowMs float64) ([]Output, error) {
	if err := s.advanceClock(nowMs); err != nil {
		return nil, err
	}
	if s.take == nil {
		return nil, nil
	}
	return s.finalize(ReasonCancelled, nowMs), nil
}

func (s *Segmenter) advanceClock(nowMs float64) error {
	if s.hasClock && nowMs < s.clock {
		return fmt.Errorf("%w: %.1fms after %.1fms", ErrTimeRegression, nowMs, s.clock)
	}
	s.clock = nowMs
	s.hasClock = true
	return nil
}

// #endregion operations

// #region step
// step applies every timed transition due at or before nowMs.
func (s *Segmenter) step(nowMs float64) []Output {
	var out []Output
	for {
		t := s.take
		switch s.state {
		case StateArmed:
			if nowMs < t.anchors.CountInStartMs {
				return out
			}
			out = append(out, s.transition(StateCountIn, t.anchors.CountInStartMs))

		case StateCountIn:
			if nowMs < t.anchors.GridStartMs {
				return out
			}
			out = append(out, s.transition(StatePlaying, t.anchors.GridStartMs))

		case StatePlaying:
			s.checkCountIn(nowMs)
			if at, stopped := s.earlyStopAt(nowMs); stopped {
				t.flags.EarlyStop = true
				out = append(out, s.finalize(ReasonUserStop, at)...)
				continue
			}
			end := t.anchors.GridEndMs + s.cfg.PostRollMs
			if nowMs < end {
				return out
			}
			out = append(out, s.transition(StateFinalizing, end))

		case StateFinalizing:
			done := t.anchors.GridEndMs + s.cfg.PostRollMs + s.cfg.TrailingWindowMs
			if nowMs < done {
				return out
			}
			out = append(out, s.finalize(ReasonGridComplete, nowMs)...)

		default:
			return out
		}
	}
}

func (s *Segmenter) transition(to TakeState, atMs float64) TakeStatus {
	s.log.Debug("take transition", "take", s.take.id, "from", s.state, "to", to, "at_ms", atMs)
	s.state = to
	return TakeStatus{TakeID: s.take.id, State: to, AtMs: atMs, Flags: s.take.flags}
}

func (s *Segmenter) arm(atMs float64) []Output {
	countIn := atMs + s.cfg.ArmLeadMs
	gridStart := countIn + s.timing.CountInMs
	s.take = &take{
		id: s.nextID,
		anchors: Anchors{
			TakeStartMs:    atMs,
			CountInStartMs: countIn,
			GridStartMs:    gridStart,
			GridEndMs:      gridStart + s.timing.GridMs,
		},
	}
	s.nextID++
	return []Output{s.transition(StateArmed, atMs)}
}

// #endregion step

// #region accept
// accept routes one deduplicated onset into the active take.
func (s *Segmenter) accept(e OnsetEvent) []Output {
	t := s.take
	if t == nil {
		return nil
	}
	if e.Confidence < s.cfg.LowConfidenceThreshold {
		t.flags.LowConfidenceCount++
		return nil
	}
	s.history.push(e)

	a := t.anchors
	switch {
	case e.TimeMs < a.GridStartMs:
		t.preRoll = append(t.preRoll, e)
	case e.TimeMs < a.GridEndMs:
		first := len(t.inWindow) == 0
		t.inWindow = append(t.inWindow, e)
		if first && e.TimeMs > a.GridStartMs+s.cfg.LateStartGraceFraction*s.timing.SlotMs {
			t.flags.LateStart = true
		}
		restart := s.state == StatePlaying && s.restartSignature(e, first)
		t.lastInWindowMs = e.TimeMs
		if restart {
			t.flags.RestartDetected = true
			return s.finalize(ReasonRestart, e.TimeMs)
		}
	default:
		t.postRoll = append(t.postRoll, e)
	}
	return nil
}

// #endregion accept

// #region finalize
// finalize emits the single TakeFinalized for the active take, then re-arms or goes idle.
func (s *Segmenter) finalize(reason FinalizeReason, atMs float64) []Output {
	t := s.take
	var out []Output
	if s.state != StateFinalizing {
		out = append(out, s.transition(StateFinalizing, atMs))
	}

	s.checkCountIn(atMs)
	t.flags.TempoMismatch = s.tempoMismatch(t.inWindow)
	t.flags.ExtraBars = s.history.countSince(t.anchors.GridEndMs+s.cfg.PostRollMs) > 0
	if reason == ReasonUserStop && atMs < t.anchors.GridEndMs {
		t.flags.PartialTake = true
	}

	s.log.Debug("take finalized", "take", t.id, "reason", reason, "in_window", len(t.inWindow))
	out = append(out, TakeFinalized{
		TakeID:        t.id,
		Reason:        reason,
		Flags:         t.flags,
		Anchors:       t.anchors,
		PreRoll:       t.preRoll,
		InWindow:      t.inWindow,
		PostRoll:      t.postRoll,
		FinalizedAtMs: atMs,
	})

	if s.cfg.AutoRepeat && reason != ReasonCancelled {
		return append(out, s.arm(atMs)...)
	}
	out = append(out, TakeStatus{TakeID: t.id, State: StateIdle, AtMs: atMs, Flags: t.flags})
	s.state = StateIdle
	s.take = nil
	return out
}

// #endregion finalize
