package replay

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/strum-coach/internal/guidance"
	"github.com/danielpatrickdp/strum-coach/internal/objective"
	"github.com/danielpatrickdp/strum-coach/internal/orchestrator"
)

// #region fixture-tests

func TestLoadFixtureTwoTakes(t *testing.T) {
	f, err := LoadFixture(filepath.Join("testdata", "two_takes.json"))
	require.NoError(t, err)

	assert.Equal(t, guidance.ModeGuided, f.Mode)
	assert.Equal(t, uint64(7), f.Session.Seed)
	assert.Equal(t, 80.0, f.Exercise.TempoBPM)
	require.Len(t, f.Steps, 10)
	assert.Equal(t, OpIngest, f.Steps[2].Op)
	assert.Len(t, f.Steps[2].Onsets, 18)
	assert.Equal(t, guidance.BackoffL0, f.Steps[4].Backoff)

	require.Contains(t, f.Analyses, uint64(1))
	assert.Equal(t, 0.95, f.Analyses[1].Metrics.HitRate)

	require.Len(t, f.ExpectedObjectives, 2)
	assert.Equal(t, objective.AdvanceDifficulty, f.ExpectedObjectives[0].Objective)
	require.NotNil(t, f.ExpectedObjectives[0].Intent)
	assert.Equal(t, objective.IntentLevelUp, *f.ExpectedObjectives[0].Intent)
	assert.Nil(t, f.ExpectedObjectives[1].Intent)
}

func TestParseFixtureKeepsSessionDefaults(t *testing.T) {
	f, err := ParseFixture([]byte(`{
		"description": "overrides",
		"exercise": {"meter": {"beats_per_bar": 3, "beat_unit": 4}, "bars": 1, "tempo_bpm": 90,
			"pattern": {"subdivision": 1, "expected_slots": [0, 1, 2]}},
		"session": {"max_snap_ms": 20},
		"steps": [{"op": "start", "at_ms": 0}]
	}`))
	require.NoError(t, err)

	def := orchestrator.DefaultConfig()
	assert.Equal(t, 20.0, f.Session.MaxSnapMs)
	assert.Equal(t, def.BaseGain, f.Session.BaseGain)
	assert.Equal(t, def.Segmenter, f.Session.Segmenter)
	assert.Equal(t, def.Seed, f.Session.Seed)
}

func TestParseFixtureRejectsSchemaViolations(t *testing.T) {
	cases := map[string]string{
		"not json":       `{`,
		"missing steps":  `{"description": "x", "exercise": {"meter": {"beats_per_bar": 4, "beat_unit": 4}, "bars": 1, "tempo_bpm": 80, "pattern": {"subdivision": 1, "expected_slots": [0]}}}`,
		"unknown op":     `{"description": "x", "exercise": {"meter": {"beats_per_bar": 4, "beat_unit": 4}, "bars": 1, "tempo_bpm": 80, "pattern": {"subdivision": 1, "expected_slots": [0]}}, "steps": [{"op": "jump", "at_ms": 0}]}`,
		"bad backoff":    `{"description": "x", "exercise": {"meter": {"beats_per_bar": 4, "beat_unit": 4}, "bars": 1, "tempo_bpm": 80, "pattern": {"subdivision": 1, "expected_slots": [0]}}, "steps": [{"op": "decide", "at_ms": 0, "backoff": "L9"}]}`,
		"zero tempo":     `{"description": "x", "exercise": {"meter": {"beats_per_bar": 4, "beat_unit": 4}, "bars": 1, "tempo_bpm": 0, "pattern": {"subdivision": 1, "expected_slots": [0]}}, "steps": [{"op": "start", "at_ms": 0}]}`,
		"decision index": `{"description": "x", "exercise": {"meter": {"beats_per_bar": 4, "beat_unit": 4}, "bars": 1, "tempo_bpm": 80, "pattern": {"subdivision": 1, "expected_slots": [0]}}, "steps": [{"op": "start", "at_ms": 0}], "expected_decisions": [{"step": 0, "should_initiate": false, "reason": "cooldown"}]}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseFixture([]byte(doc))
			assert.ErrorIs(t, err, ErrInvalidFixture)
		})
	}
}

func TestLoadFixtureMissingFile(t *testing.T) {
	_, err := LoadFixture(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

// #endregion fixture-tests
