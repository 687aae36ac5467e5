package replay

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/danielpatrickdp/strum-coach/internal/exercise"
	"github.com/danielpatrickdp/strum-coach/internal/guidance"
	"github.com/danielpatrickdp/strum-coach/internal/objective"
	"github.com/danielpatrickdp/strum-coach/internal/orchestrator"
	"github.com/danielpatrickdp/strum-coach/internal/segmenter"
)

// ErrInvalidFixture is returned (wrapped) when a fixture fails schema or semantic validation.
var ErrInvalidFixture = errors.New("invalid fixture")

//go:embed fixture.schema.json
var schemaJSON []byte

const schemaURL = "fixture.schema.json"

var compileSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	return c.Compile(schemaURL)
})

// #region fixture-types

// Op is a replay step kind.
type Op string

const (
	OpStart  Op = "start"
	OpIngest Op = "ingest"
	OpTick   Op = "tick"
	OpStop   Op = "stop"
	OpCancel Op = "cancel"
	OpDecide Op = "decide"
	OpAck    Op = "ack"
	OpQuiet  Op = "quiet"
)

// Fixture is the top-level JSON structure for a replay fixture. Session overlays
// orchestrator.DefaultConfig(); only the fields present in the file change.
type Fixture struct {
	Description        string                            `json:"description"`
	Exercise           exercise.Context                  `json:"exercise"`
	Mode               guidance.Mode                     `json:"mode"`
	Seed               *uint64                           `json:"seed,omitempty"`
	Session            orchestrator.Config               `json:"session"`
	Accents            []float64                         `json:"accents,omitempty"`
	Analyses           map[uint64]objective.TakeAnalysis `json:"analyses,omitempty"`
	Steps              []Step                            `json:"steps"`
	ExpectedObjectives []ExpectedObjective               `json:"expected_objectives,omitempty"`
	ExpectedDecisions  []ExpectedDecision                `json:"expected_decisions,omitempty"`
}

// Step is one recorded call against the session. Mode falls back to the fixture mode.
type Step struct {
	Op      Op                     `json:"op"`
	AtMs    float64                `json:"at_ms"`
	Onsets  []segmenter.OnsetEvent `json:"onsets,omitempty"`
	Mode    guidance.Mode          `json:"mode,omitempty"`
	Backoff guidance.Backoff       `json:"backoff"`
	Quiet   bool                   `json:"quiet,omitempty"`
}

// ExpectedObjective pins the resolution of one take. A nil Intent is not checked.
type ExpectedObjective struct {
	TakeID    uint64                      `json:"take_id"`
	Objective objective.TeachingObjective `json:"objective"`
	Intent    *objective.CoachIntent      `json:"intent,omitempty"`
}

// ExpectedDecision pins the gate outcome of one decide step. An empty Modality is not checked.
type ExpectedDecision struct {
	Step           int               `json:"step"`
	ShouldInitiate bool              `json:"should_initiate"`
	Reason         guidance.Reason   `json:"reason"`
	Modality       guidance.Modality `json:"modality,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads, validates and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	f, err := ParseFixture(data)
	if err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return f, nil
}

// ParseFixture validates data against the embedded schema, then decodes it over defaults.
func ParseFixture(data []byte) (*Fixture, error) {
	sch, err := compileSchema()
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFixture, err)
	}
	if err := sch.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFixture, err)
	}

	f := Fixture{Mode: guidance.ModeGuided, Session: orchestrator.DefaultConfig()}
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFixture, err)
	}
	if f.Seed != nil {
		f.Session.Seed = *f.Seed
	}
	if err := f.check(); err != nil {
		return nil, err
	}
	return &f, nil
}

// check covers what the schema cannot: references between sections.
func (f *Fixture) check() error {
	if err := f.Exercise.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFixture, err)
	}
	for _, e := range f.ExpectedDecisions {
		if e.Step >= len(f.Steps) {
			return fmt.Errorf("%w: expected decision for step %d of %d", ErrInvalidFixture, e.Step, len(f.Steps))
		}
		if f.Steps[e.Step].Op != OpDecide {
			return fmt.Errorf("%w: step %d is %q, not decide", ErrInvalidFixture, e.Step, f.Steps[e.Step].Op)
		}
	}
	return nil
}

// Analyzer serves the fixture's canned analyses by take id.
func (f *Fixture) Analyzer() orchestrator.Analyzer {
	return orchestrator.AnalyzerFunc(func(t segmenter.TakeFinalized) (objective.TakeAnalysis, bool) {
		a, ok := f.Analyses[t.TakeID]
		if !ok {
			return objective.TakeAnalysis{}, false
		}
		a.TakeID = t.TakeID
		return a, true
	})
}

// #endregion fixture-loader
