package orchestrator

// #region imports
import (
	"github.com/danielpatrickdp/strum-coach/internal/eval"
	"github.com/danielpatrickdp/strum-coach/internal/feedback"
	"github.com/danielpatrickdp/strum-coach/internal/guidance"
	"github.com/danielpatrickdp/strum-coach/internal/objective"
	"github.com/danielpatrickdp/strum-coach/internal/renderer"
	"github.com/danielpatrickdp/strum-coach/internal/segmenter"
	"github.com/danielpatrickdp/strum-coach/internal/signals"
)

// #endregion

// #region analyzer

// Analyzer scores a finalized take. It returns false when no metrics are available.
type Analyzer interface {
	Analyze(take segmenter.TakeFinalized) (objective.TakeAnalysis, bool)
}

// AnalyzerFunc adapts a function to Analyzer.
type AnalyzerFunc func(segmenter.TakeFinalized) (objective.TakeAnalysis, bool)

func (f AnalyzerFunc) Analyze(t segmenter.TakeFinalized) (objective.TakeAnalysis, bool) { return f(t) }

// #endregion

// #region config

// Config wires the per-component settings of one session.
type Config struct {
	Segmenter segmenter.Config `json:"segmenter" yaml:"segmenter" toml:"segmenter"`
	Resolver  objective.Config `json:"resolver" yaml:"resolver" toml:"resolver"`
	Signals   signals.Config   `json:"signals" yaml:"signals" toml:"signals"`
	ClipID    string           `json:"clip_id" yaml:"clip_id" toml:"clip_id"`
	MaxSnapMs float64          `json:"max_snap_ms" yaml:"max_snap_ms" toml:"max_snap_ms"` // cue start snapping tolerance
	BaseGain  float64          `json:"base_gain" yaml:"base_gain" toml:"base_gain"`
	Seed      uint64           `json:"seed" yaml:"seed" toml:"seed"`
}

// DefaultConfig returns the defaults of every component.
func DefaultConfig() Config {
	return Config{
		Segmenter: segmenter.DefaultConfig(),
		Resolver:  objective.DefaultConfig(),
		Signals:   signals.DefaultConfig(),
		ClipID:    "practice",
		MaxSnapMs: 80,
		BaseGain:  0.8,
		Seed:      1,
	}
}

// #endregion

// #region results

// TakeOutcome is everything derived from one finalized take.
type TakeOutcome struct {
	Finalized  segmenter.TakeFinalized `json:"finalized"`
	Analysis   objective.TakeAnalysis  `json:"analysis"`
	Analyzed   bool                    `json:"analyzed"`
	Resolution objective.Resolution    `json:"resolution"`
	Feedback   *feedback.Packet        `json:"feedback,omitempty"` // nil when not analyzed
}

// StepResult is the output of one segmenter-driving call.
type StepResult struct {
	Outputs  []segmenter.Output `json:"-"`
	Outcomes []TakeOutcome      `json:"outcomes,omitempty"`
}

// Intervention is one gate decision and, when approved, its scheduled envelope.
type Intervention struct {
	AtMs          float64                       `json:"at_ms"`
	Signals       guidance.SessionSignals       `json:"signals"`
	Decision      guidance.InterventionDecision `json:"decision"`
	DecisionCheck eval.Result                   `json:"decision_check"`
	Payload       *renderer.PulsePayload        `json:"payload,omitempty"`
	Envelope      *renderer.Envelope            `json:"envelope,omitempty"`
	EnvelopeCheck *eval.Result                  `json:"envelope_check,omitempty"`
}

// #endregion
