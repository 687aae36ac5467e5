package renderer

import (
	"errors"

	"github.com/danielpatrickdp/strum-coach/internal/exercise"
	"github.com/danielpatrickdp/strum-coach/internal/guidance"
)

// ErrInvalidContext is returned when a musical context cannot define a grid.
var ErrInvalidContext = errors.New("invalid musical context")

// maxEvents bounds a single envelope; a longer window is a caller bug.
const maxEvents = 4096

// #region context
// MusicalContext is the grid pulses are quantized to and indexed against.
type MusicalContext struct {
	TempoBPM     float64        `json:"tempo_bpm"`
	Meter        exercise.Meter `json:"meter"`
	SlotsPerBeat int            `json:"slots_per_beat"`
	GridStartMs  float64        `json:"grid_start_ms"` // bar 0, slot 0
}

// SlotMs is the duration of one grid slot.
func (c MusicalContext) SlotMs() float64 {
	return 60000.0 / c.TempoBPM / float64(c.SlotsPerBeat)
}

// SlotsPerBar is beats per bar times slots per beat.
func (c MusicalContext) SlotsPerBar() int {
	return c.Meter.BeatsPerBar * c.SlotsPerBeat
}

// #endregion context

// #region payload
// PulsePayload is an approved cue to expand into timed pulses.
type PulsePayload struct {
	Modality        guidance.Modality `json:"modality"`
	StartMs         float64           `json:"start_ms"`
	EndMs           float64           `json:"end_ms"` // exclusive
	PhaseAnchorMs   float64           `json:"phase_anchor_ms"`
	MaxSnapMs       float64           `json:"max_snap_ms"`
	BaseGain        float64           `json:"base_gain"`
	AccentGains     []float64         `json:"accent_gains,omitempty"`     // per slot in bar
	SuppressedSlots []int             `json:"suppressed_slots,omitempty"` // slots in bar
}

// #endregion payload

// #region envelope
// SnapKind records how the requested start was placed on the grid.
type SnapKind string

const (
	SnapExact   SnapKind = "exact"
	SnapNearest SnapKind = "nearest"
	SnapAdvance SnapKind = "advance"
)

// PulseEvent is one device pulse.
type PulseEvent struct {
	TimeMs    float64 `json:"time_ms"`
	BarIndex  int     `json:"bar_index"`
	SlotInBar int     `json:"slot_in_bar"`
	Gain      float64 `json:"gain"`
	Accented  bool    `json:"accented"`
}

// Envelope is the finite, ordered output for one payload.
type Envelope struct {
	Modality         guidance.Modality `json:"modality"`
	RequestedStartMs float64           `json:"requested_start_ms"`
	QuantizedStartMs float64           `json:"quantized_start_ms"`
	Snap             SnapKind          `json:"snap"`
	SlotMs           float64           `json:"slot_ms"`
	Events           []PulseEvent      `json:"events"`
}

// #endregion envelope
