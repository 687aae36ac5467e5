package exercise

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eighths(tempo float64, bars int) Context {
	return Context{
		Meter:          Meter{BeatsPerBar: 4, BeatUnit: 4},
		Bars:           bars,
		TempoBPM:       tempo,
		TempoTolerance: 0.15,
		CountInBeats:   4,
		Pattern:        StrumPattern{Subdivision: 2, ExpectedSlots: AllSlots(8)},
	}
}

func TestTimingAt80BPMEighths(t *testing.T) {
	c := eighths(80, 2)
	require.NoError(t, c.Validate())

	tm := c.Timing()
	assert.InDelta(t, 750.0, tm.BeatMs, 1e-9)
	assert.InDelta(t, 375.0, tm.SlotMs, 1e-9)
	assert.InDelta(t, 3000.0, tm.BarMs, 1e-9)
	assert.Equal(t, 8, tm.SlotsPerBar)
	assert.InDelta(t, 3000.0, tm.CountInMs, 1e-9)
	assert.InDelta(t, 6000.0, tm.GridMs, 1e-9)
	assert.InDelta(t, 375.0, tm.ExpectedHitIntervalMs, 1e-9)
}

func TestExpectedIntervalFollowsPattern(t *testing.T) {
	c := eighths(80, 1)
	c.Pattern.ExpectedSlots = []int{0, 2, 4, 6}
	assert.InDelta(t, 750.0, c.Timing().ExpectedHitIntervalMs, 1e-9)

	c.Pattern.ExpectedSlots = []int{0}
	assert.InDelta(t, 3000.0, c.Timing().ExpectedHitIntervalMs, 1e-9)
}

func TestValidateFailsFast(t *testing.T) {
	cases := map[string]func(*Context){
		"zero tempo":      func(c *Context) { c.TempoBPM = 0 },
		"negative tempo":  func(c *Context) { c.TempoBPM = -90 },
		"zero bars":       func(c *Context) { c.Bars = 0 },
		"bad meter":       func(c *Context) { c.Meter.BeatsPerBar = 0 },
		"empty pattern":   func(c *Context) { c.Pattern.ExpectedSlots = nil },
		"slot past bar":   func(c *Context) { c.Pattern.ExpectedSlots = []int{8} },
		"no subdivision":  func(c *Context) { c.Pattern.Subdivision = 0 },
		"negative count":  func(c *Context) { c.CountInBeats = -1 },
		"negative window": func(c *Context) { c.TempoTolerance = -0.1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := eighths(90, 2)
			mutate(&c)
			err := c.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidExercise), "expected ErrInvalidExercise, got %v", err)
		})
	}
}

const sambaPack = `
metadata:
  id: samba_traditional_v1
  display_name: Samba Traditional
  dance_family: afro_brazilian
groove:
  meter: "2/4"
  cycle_bars: 4
  subdivision: binary
  tempo_range_bpm: [80, 120]
  accent_grid:
    strong_beats: [2]
    secondary_beats: [1]
practice_mapping:
  difficulty_rating: medium
`

func TestGroovePackDefaults(t *testing.T) {
	p, err := ParseGroovePack([]byte(sambaPack))
	require.NoError(t, err)

	d := p.Defaults()
	assert.Equal(t, 80.0, d.TempoStartBPM)
	assert.Equal(t, 100.0, d.TempoTargetBPM)
	assert.Equal(t, 120.0, d.TempoCeilingBPM)
	assert.Equal(t, 35.0, d.StrictWindowMs)
	assert.Equal(t, 4, d.BarsPerLoop)
	assert.Equal(t, Meter{BeatsPerBar: 2, BeatUnit: 4}, d.Meter)

	c := p.Context(0)
	require.NoError(t, c.Validate())
	assert.Equal(t, 80.0, c.TempoBPM)
	assert.Equal(t, []int{0, 1, 2, 3}, c.Pattern.ExpectedSlots)

	assert.Equal(t, []float64{0.25, 0, 0.5, 0}, p.Accents())
}

func TestGroovePackStrictWindowBySubdivision(t *testing.T) {
	cases := []struct {
		sub    string
		window float64
		slots  int
	}{
		{"binary", 35, 2},
		{"compound", 45, 3},
		{"ternary", 50, 3},
	}
	for _, tc := range cases {
		p := GroovePack{
			Metadata: PackMetadata{ID: "x"},
			Groove: GrooveDefinition{
				Meter: "4/4", CycleBars: 2, Subdivision: tc.sub, TempoRangeBPM: []float64{60, 90},
			},
		}
		require.NoError(t, p.Validate())
		d := p.Defaults()
		assert.Equal(t, tc.window, d.StrictWindowMs, tc.sub)
		assert.Equal(t, tc.slots, d.SlotsPerBeat, tc.sub)
	}
}

func TestGroovePackRejectsBadDocuments(t *testing.T) {
	bad := []string{
		"metadata: {id: a}\ngroove: {meter: 'x', cycle_bars: 1, subdivision: binary, tempo_range_bpm: [60, 80]}",
		"metadata: {id: a}\ngroove: {meter: '4/4', cycle_bars: 0, subdivision: binary, tempo_range_bpm: [60, 80]}",
		"metadata: {id: a}\ngroove: {meter: '4/4', cycle_bars: 1, subdivision: swung, tempo_range_bpm: [60, 80]}",
		"metadata: {id: a}\ngroove: {meter: '4/4', cycle_bars: 1, subdivision: binary, tempo_range_bpm: [90, 80]}",
		"metadata: {id: a}\ngroove: {meter: '4/4', cycle_bars: 1, subdivision: binary, tempo_range_bpm: [60, 80], accent_grid: {strong_beats: [5]}}",
		"groove: {meter: '4/4', cycle_bars: 1, subdivision: binary, tempo_range_bpm: [60, 80]}",
	}
	for _, doc := range bad {
		_, err := ParseGroovePack([]byte(doc))
		assert.ErrorIs(t, err, ErrInvalidExercise, doc)
	}
}
