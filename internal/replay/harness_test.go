package replay

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/strum-coach/internal/guidance"
	"github.com/danielpatrickdp/strum-coach/internal/objective"
)

type fixedRand float64

func (f fixedRand) Float64() float64 { return float64(f) }

func loadTwoTakes(t *testing.T) *Fixture {
	t.Helper()
	f, err := LoadFixture(filepath.Join("testdata", "two_takes.json"))
	require.NoError(t, err)
	return f
}

// Regression baseline: if segmenter, resolver or gate parameters change, this catches drift.
func TestReplayTwoTakesMatchesExpectations(t *testing.T) {
	f := loadTwoTakes(t)
	run, err := Replay(f, Options{})
	require.NoError(t, err)

	assert.Empty(t, Compare(f, run))
	assert.NotEmpty(t, run.SessionID)

	s := Summarize(run)
	assert.Equal(t, Summary{Steps: 10, Takes: 2, Analyzed: 1, Decisions: 4, Approved: 2, Denied: 2}, s)

	approved := run.Steps[4].Intervention
	require.NotNil(t, approved.Envelope)
	assert.Equal(t, 11250.0, approved.Envelope.QuantizedStartMs)
	require.Len(t, run.Steps[3].Outcomes, 1)
	require.NotNil(t, run.Steps[3].Outcomes[0].Feedback)
}

func TestReplayIsDeterministic(t *testing.T) {
	f := loadTwoTakes(t)
	a, err := Replay(f, Options{})
	require.NoError(t, err)
	b, err := Replay(f, Options{})
	require.NoError(t, err)

	for i := range a.Steps {
		if a.Steps[i].Intervention == nil {
			continue
		}
		assert.Equal(t, a.Steps[i].Intervention.Decision, b.Steps[i].Intervention.Decision, "step %d", i)
		assert.Equal(t, a.Steps[i].Intervention.Envelope, b.Steps[i].Intervention.Envelope, "step %d", i)
	}
}

func TestReplayWithInjectedRand(t *testing.T) {
	f := loadTwoTakes(t)
	f.ExpectedDecisions[1].Modality = guidance.ModalityHaptic

	run, err := Replay(f, Options{Rand: fixedRand(0)})
	require.NoError(t, err)
	assert.Empty(t, Compare(f, run))
}

func TestCompareReportsDivergences(t *testing.T) {
	f := loadTwoTakes(t)
	f.ExpectedObjectives[0].Objective = objective.CenterTimingBias
	f.ExpectedObjectives = append(f.ExpectedObjectives, ExpectedObjective{TakeID: 9, Objective: objective.RecoverTake})
	f.ExpectedDecisions[2].Reason = guidance.ReasonRateLimited

	run, err := Replay(f, Options{})
	require.NoError(t, err)

	divs := Compare(f, run)
	require.Len(t, divs, 3)
	assert.Equal(t, uint64(1), divs[0].TakeID)
	assert.Equal(t, "objective", divs[0].Field)
	assert.Equal(t, "advance_difficulty", divs[0].Got)
	assert.Equal(t, "not finalized", divs[1].Got)
	assert.Equal(t, 5, divs[2].Step)
	assert.Equal(t, "reason", divs[2].Field)
	assert.Equal(t, "step 5: reason: want rate_limited, got cooldown", divs[2].String())
}

func TestReplayRecordsStepErrors(t *testing.T) {
	f := loadTwoTakes(t)
	f.Steps = append(f.Steps, Step{Op: OpTick, AtMs: 100})
	f.ExpectedDecisions = nil
	f.ExpectedObjectives = nil

	run, err := Replay(f, Options{})
	require.NoError(t, err)

	last := run.Steps[len(run.Steps)-1]
	assert.NotEmpty(t, last.Err)
	divs := Compare(f, run)
	require.Len(t, divs, 1)
	assert.Equal(t, "error", divs[0].Field)
	assert.Equal(t, 1, Summarize(run).Errors)
}

func TestReplayRejectsInvalidPolicy(t *testing.T) {
	f := loadTwoTakes(t)
	_, err := Replay(f, Options{Policy: &guidance.PolicyConfig{}})
	assert.ErrorIs(t, err, guidance.ErrInvalidPolicy)
}
