package exercise

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// #region pack-types
// GroovePack is the subset of a dance-pack document the coach uses to derive exercises.
type GroovePack struct {
	Metadata PackMetadata     `yaml:"metadata"`
	Groove   GrooveDefinition `yaml:"groove"`
	Practice PracticeMapping  `yaml:"practice_mapping"`
}

type PackMetadata struct {
	ID          string   `yaml:"id"`
	DisplayName string   `yaml:"display_name"`
	DanceFamily string   `yaml:"dance_family"`
	Tags        []string `yaml:"tags"`
}

// GrooveDefinition mirrors the groove block of a pack. Beats in the accent grid are 1-based.
type GrooveDefinition struct {
	Meter         string     `yaml:"meter"`
	CycleBars     int        `yaml:"cycle_bars"`
	Subdivision   string     `yaml:"subdivision"` // binary | ternary | compound
	TempoRangeBPM []float64  `yaml:"tempo_range_bpm"`
	SwingRatio    float64    `yaml:"swing_ratio"`
	AccentGrid    AccentGrid `yaml:"accent_grid"`
}

type AccentGrid struct {
	StrongBeats     []int   `yaml:"strong_beats"`
	SecondaryBeats  []int   `yaml:"secondary_beats"`
	OffbeatEmphasis float64 `yaml:"offbeat_emphasis"`
}

type PracticeMapping struct {
	PrimaryFocus     []string `yaml:"primary_focus"`
	CommonErrors     []string `yaml:"common_errors"`
	DifficultyRating string   `yaml:"difficulty_rating"`
}

// AssignmentDefaults are the tempo and tolerance starting points a pack implies.
type AssignmentDefaults struct {
	TempoStartBPM   float64 `json:"tempo_start_bpm"`
	TempoTargetBPM  float64 `json:"tempo_target_bpm"`
	TempoCeilingBPM float64 `json:"tempo_ceiling_bpm"`
	BarsPerLoop     int     `json:"bars_per_loop"`
	StrictWindowMs  float64 `json:"strict_window_ms"`
	Meter           Meter   `json:"meter"`
	SlotsPerBeat    int     `json:"slots_per_beat"`
}

// #endregion pack-types

const (
	strongAccent    = 0.5
	secondaryAccent = 0.25
	packCountIn     = 4
)

// #region load
// LoadGroovePack reads and validates a pack from a YAML file.
func LoadGroovePack(path string) (GroovePack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return GroovePack{}, fmt.Errorf("read pack: %w", err)
	}
	return ParseGroovePack(data)
}

// ParseGroovePack decodes and validates a pack document.
func ParseGroovePack(data []byte) (GroovePack, error) {
	var p GroovePack
	if err := yaml.Unmarshal(data, &p); err != nil {
		return GroovePack{}, fmt.Errorf("parse pack: %w", err)
	}
	if err := p.Validate(); err != nil {
		return GroovePack{}, err
	}
	return p, nil
}

// #endregion load

// #region validate
func (p GroovePack) Validate() error {
	if p.Metadata.ID == "" {
		return fmt.Errorf("%w: pack id is required", ErrInvalidExercise)
	}
	m, err := ParseMeter(p.Groove.Meter)
	if err != nil {
		return err
	}
	if p.Groove.CycleBars <= 0 {
		return fmt.Errorf("%w: pack %s cycle_bars must be positive", ErrInvalidExercise, p.Metadata.ID)
	}
	if _, err := slotsPerBeat(p.Groove.Subdivision); err != nil {
		return err
	}
	r := p.Groove.TempoRangeBPM
	if len(r) != 2 || r[0] <= 0 || r[1] < r[0] {
		return fmt.Errorf("%w: pack %s tempo_range_bpm must be [min, max]", ErrInvalidExercise, p.Metadata.ID)
	}
	for _, b := range append(append([]int{}, p.Groove.AccentGrid.StrongBeats...), p.Groove.AccentGrid.SecondaryBeats...) {
		if b < 1 || b > m.BeatsPerBar {
			return fmt.Errorf("%w: pack %s accent beat %d outside %s", ErrInvalidExercise, p.Metadata.ID, b, p.Groove.Meter)
		}
	}
	return nil
}

// ParseMeter parses "4/4" style signatures.
func ParseMeter(s string) (Meter, error) {
	num, den, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return Meter{}, fmt.Errorf("%w: meter %q", ErrInvalidExercise, s)
	}
	beats, err1 := strconv.Atoi(num)
	unit, err2 := strconv.Atoi(den)
	if err1 != nil || err2 != nil || beats <= 0 || unit <= 0 {
		return Meter{}, fmt.Errorf("%w: meter %q", ErrInvalidExercise, s)
	}
	return Meter{BeatsPerBar: beats, BeatUnit: unit}, nil
}

func slotsPerBeat(subdivision string) (int, error) {
	switch subdivision {
	case "binary":
		return 2, nil
	case "ternary", "compound":
		return 3, nil
	}
	return 0, fmt.Errorf("%w: subdivision %q", ErrInvalidExercise, subdivision)
}

// #endregion validate

// #region defaults
// Defaults derives assignment defaults: start at the bottom of the tempo range, aim for the
// midpoint, and tighten the strict window for straight feels.
func (p GroovePack) Defaults() AssignmentDefaults {
	m, _ := ParseMeter(p.Groove.Meter)
	spb, _ := slotsPerBeat(p.Groove.Subdivision)
	lo, hi := p.Groove.TempoRangeBPM[0], p.Groove.TempoRangeBPM[1]

	window := 45.0
	switch p.Groove.Subdivision {
	case "binary":
		window = 35
	case "ternary":
		window = 50
	}

	return AssignmentDefaults{
		TempoStartBPM:   lo,
		TempoTargetBPM:  (lo + hi) / 2,
		TempoCeilingBPM: hi,
		BarsPerLoop:     p.Groove.CycleBars,
		StrictWindowMs:  window,
		Meter:           m,
		SlotsPerBeat:    spb,
	}
}

// Context builds an exercise at the given tempo (the pack start tempo when tempo <= 0)
// expecting a strum on every slot of the groove's subdivision.
func (p GroovePack) Context(tempo float64) Context {
	d := p.Defaults()
	if tempo <= 0 {
		tempo = d.TempoStartBPM
	}
	slots := d.Meter.BeatsPerBar * d.SlotsPerBeat
	slotMs := 60000.0 / tempo / float64(d.SlotsPerBeat)
	return Context{
		Meter:          d.Meter,
		Bars:           d.BarsPerLoop,
		TempoBPM:       tempo,
		TempoTolerance: d.StrictWindowMs / slotMs,
		CountInBeats:   packCountIn,
		Pattern: StrumPattern{
			Subdivision:   d.SlotsPerBeat,
			ExpectedSlots: AllSlots(slots),
		},
	}
}

// Accents returns a per-slot accent gain for one bar. Secondary beats never override strong ones.
func (p GroovePack) Accents() []float64 {
	d := p.Defaults()
	out := make([]float64, d.Meter.BeatsPerBar*d.SlotsPerBeat)
	for _, b := range p.Groove.AccentGrid.SecondaryBeats {
		out[(b-1)*d.SlotsPerBeat] = secondaryAccent
	}
	for _, b := range p.Groove.AccentGrid.StrongBeats {
		out[(b-1)*d.SlotsPerBeat] = strongAccent
	}
	if e := p.Groove.AccentGrid.OffbeatEmphasis; e > 0 {
		for i := range out {
			if i%d.SlotsPerBeat != 0 {
				out[i] = e
			}
		}
	}
	return out
}

// #endregion defaults
