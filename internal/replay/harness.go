package replay

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/danielpatrickdp/strum-coach/internal/guidance"
	"github.com/danielpatrickdp/strum-coach/internal/orchestrator"
)

// #region types

// Options tune a replay run. A zero Options replays with the default policy.
type Options struct {
	Policy *guidance.PolicyConfig
	Logger *slog.Logger
	Rand   guidance.RandSource // overrides the fixture seed
}

// StepResult captures what one fixture step produced.
type StepResult struct {
	Index        int                        `json:"index"`
	Op           Op                         `json:"op"`
	AtMs         float64                    `json:"at_ms"`
	Outcomes     []orchestrator.TakeOutcome `json:"outcomes,omitempty"`
	Intervention *orchestrator.Intervention `json:"intervention,omitempty"`
	Err          string                     `json:"error,omitempty"`
}

// Run is the full record of a replay.
type Run struct {
	Description string       `json:"description"`
	SessionID   string       `json:"session_id"`
	Steps       []StepResult `json:"steps"`
}

// Summary provides aggregate stats from a replay run.
type Summary struct {
	Steps         int `json:"steps"`
	Takes         int `json:"takes"`
	Analyzed      int `json:"analyzed"`
	Decisions     int `json:"decisions"`
	Approved      int `json:"approved"`
	Denied        int `json:"denied"`
	CheckFailures int `json:"check_failures"`
	Errors        int `json:"errors"`
}

// Divergence is one mismatch between a run and the fixture's expectations.
type Divergence struct {
	Step   int    `json:"step"`              // -1 when not tied to a step
	TakeID uint64 `json:"take_id,omitempty"` // 0 when not tied to a take
	Field  string `json:"field"`
	Want   string `json:"want"`
	Got    string `json:"got"`
}

func (d Divergence) String() string {
	switch {
	case d.TakeID != 0:
		return fmt.Sprintf("take %d: %s: want %s, got %s", d.TakeID, d.Field, d.Want, d.Got)
	case d.Step >= 0:
		return fmt.Sprintf("step %d: %s: want %s, got %s", d.Step, d.Field, d.Want, d.Got)
	}
	return fmt.Sprintf("%s: want %s, got %s", d.Field, d.Want, d.Got)
}

// #endregion types

// #region replay

// Replay drives a fresh orchestrator through every fixture step in order. Step errors are
// recorded on the step and the run continues; only a session that cannot be built fails.
func Replay(f *Fixture, opts Options) (*Run, error) {
	policy := guidance.DefaultPolicyConfig()
	if opts.Policy != nil {
		policy = *opts.Policy
	}
	var oo []orchestrator.Option
	if opts.Logger != nil {
		oo = append(oo, orchestrator.WithLogger(opts.Logger))
	}
	if opts.Rand != nil {
		oo = append(oo, orchestrator.WithRand(opts.Rand))
	}
	if f.Accents != nil {
		oo = append(oo, orchestrator.WithAccents(f.Accents))
	}
	o, err := orchestrator.NewOrchestrator(f.Session, policy, f.Analyzer(), oo...)
	if err != nil {
		return nil, fmt.Errorf("replay %q: %w", f.Description, err)
	}

	run := &Run{Description: f.Description, Steps: make([]StepResult, 0, len(f.Steps))}
	for i, st := range f.Steps {
		sr := StepResult{Index: i, Op: st.Op, AtMs: st.AtMs}
		var res orchestrator.StepResult
		var err error

		switch st.Op {
		case OpStart:
			res, err = o.Start(st.AtMs, f.Exercise)
		case OpIngest:
			res, err = o.Ingest(st.AtMs, st.Onsets)
		case OpTick:
			res, err = o.Tick(st.AtMs)
		case OpStop:
			res, err = o.Stop(st.AtMs)
		case OpCancel:
			res, err = o.Cancel(st.AtMs)
		case OpAck:
			o.Acknowledge(st.AtMs)
		case OpQuiet:
			if o.Signals() == nil {
				err = errors.New("quiet before start")
			} else {
				o.Signals().SetQuiet(st.Quiet)
			}
		case OpDecide:
			mode := st.Mode
			if mode == "" {
				mode = f.Mode
			}
			var iv orchestrator.Intervention
			iv, err = o.Intervene(st.AtMs, mode, st.Backoff)
			sr.Intervention = &iv
		default:
			err = fmt.Errorf("unknown op %q", st.Op)
		}

		sr.Outcomes = res.Outcomes
		if err != nil {
			sr.Err = err.Error()
		}
		run.Steps = append(run.Steps, sr)
	}
	run.SessionID = o.SessionID()
	return run, nil
}

// Summarize computes aggregate stats from a run.
func Summarize(run *Run) Summary {
	s := Summary{Steps: len(run.Steps)}
	for _, st := range run.Steps {
		if st.Err != "" {
			s.Errors++
		}
		for _, oc := range st.Outcomes {
			s.Takes++
			if oc.Analyzed {
				s.Analyzed++
			}
		}
		if iv := st.Intervention; iv != nil {
			s.Decisions++
			if iv.Decision.ShouldInitiate {
				s.Approved++
			} else {
				s.Denied++
			}
			if !iv.DecisionCheck.Passed || (iv.EnvelopeCheck != nil && !iv.EnvelopeCheck.Passed) {
				s.CheckFailures++
			}
		}
	}
	return s
}

// #endregion replay

// #region compare

// Compare checks a run against the fixture's expectations. Runtime invariant failures and
// step errors are always divergences.
func Compare(f *Fixture, run *Run) []Divergence {
	var out []Divergence

	resolved := make(map[uint64]orchestrator.TakeOutcome)
	for _, st := range run.Steps {
		if st.Err != "" {
			out = append(out, Divergence{Step: st.Index, Field: "error", Want: "none", Got: st.Err})
		}
		for _, oc := range st.Outcomes {
			resolved[oc.Finalized.TakeID] = oc
		}
		if iv := st.Intervention; iv != nil {
			if !iv.DecisionCheck.Passed {
				out = append(out, Divergence{Step: st.Index, Field: "decision_check", Want: "pass", Got: iv.DecisionCheck.Reason})
			}
			if iv.EnvelopeCheck != nil && !iv.EnvelopeCheck.Passed {
				out = append(out, Divergence{Step: st.Index, Field: "envelope_check", Want: "pass", Got: iv.EnvelopeCheck.Reason})
			}
		}
	}

	for _, want := range f.ExpectedObjectives {
		oc, ok := resolved[want.TakeID]
		if !ok {
			out = append(out, Divergence{Step: -1, TakeID: want.TakeID, Field: "objective", Want: want.Objective.String(), Got: "not finalized"})
			continue
		}
		if oc.Resolution.Objective != want.Objective {
			out = append(out, Divergence{Step: -1, TakeID: want.TakeID, Field: "objective",
				Want: want.Objective.String(), Got: oc.Resolution.Objective.String()})
		}
		if want.Intent != nil && oc.Resolution.Intent != *want.Intent {
			out = append(out, Divergence{Step: -1, TakeID: want.TakeID, Field: "intent",
				Want: want.Intent.String(), Got: oc.Resolution.Intent.String()})
		}
	}

	for _, want := range f.ExpectedDecisions {
		if want.Step >= len(run.Steps) || run.Steps[want.Step].Intervention == nil {
			out = append(out, Divergence{Step: want.Step, Field: "decision", Want: string(want.Reason), Got: "no decision"})
			continue
		}
		d := run.Steps[want.Step].Intervention.Decision
		if d.ShouldInitiate != want.ShouldInitiate {
			out = append(out, Divergence{Step: want.Step, Field: "should_initiate",
				Want: fmt.Sprint(want.ShouldInitiate), Got: fmt.Sprint(d.ShouldInitiate)})
		}
		if d.Reason != want.Reason {
			out = append(out, Divergence{Step: want.Step, Field: "reason", Want: string(want.Reason), Got: string(d.Reason)})
		}
		if want.Modality != "" && d.Modality != want.Modality {
			out = append(out, Divergence{Step: want.Step, Field: "modality", Want: string(want.Modality), Got: string(d.Modality)})
		}
	}
	return out
}

// #endregion compare
