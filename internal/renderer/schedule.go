package renderer

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/strum-coach/internal/exercise"
)

// #region quantize
// Quantize places a requested time on the grid anchored at anchorMs. The nearest boundary
// wins when it is within maxSnapMs; otherwise the time advances to the next boundary at or
// after the request, never earlier.
func Quantize(requestedMs, anchorMs, slotMs, maxSnapMs float64) (float64, SnapKind) {
	k := (requestedMs - anchorMs) / slotMs
	nearest := anchorMs + math.Round(k)*slotMs
	if d := math.Abs(nearest - requestedMs); d <= maxSnapMs {
		if d == 0 {
			return nearest, SnapExact
		}
		return nearest, SnapNearest
	}
	return anchorMs + math.Ceil(k-1e-9)*slotMs, SnapAdvance
}

// #endregion quantize

// #region schedule
// Schedule expands a payload into pulses on every grid slot from the quantized start up to
// EndMs. Identical inputs always produce identical envelopes.
func Schedule(p PulsePayload, mc MusicalContext) (Envelope, error) {
	if mc.TempoBPM <= 0 || mc.SlotsPerBeat <= 0 || mc.Meter.BeatsPerBar <= 0 {
		return Envelope{}, fmt.Errorf("%w: tempo %.2f, %d slots per beat, %d beats per bar",
			ErrInvalidContext, mc.TempoBPM, mc.SlotsPerBeat, mc.Meter.BeatsPerBar)
	}
	if math.IsNaN(p.StartMs) || math.IsInf(p.StartMs, 0) || math.IsNaN(p.EndMs) || math.IsInf(p.EndMs, 0) {
		return Envelope{}, fmt.Errorf("%w: window [%v, %v)", ErrInvalidContext, p.StartMs, p.EndMs)
	}
	slot := mc.SlotMs()
	spb := mc.SlotsPerBar()
	if (p.EndMs-p.StartMs)/slot > maxEvents {
		return Envelope{}, fmt.Errorf("%w: window spans more than %d slots", ErrInvalidContext, maxEvents)
	}

	start, snap := Quantize(p.StartMs, p.PhaseAnchorMs, slot, p.MaxSnapMs)
	env := Envelope{
		Modality:         p.Modality,
		RequestedStartMs: p.StartMs,
		QuantizedStartMs: start,
		Snap:             snap,
		SlotMs:           slot,
	}

	suppressed := make(map[int]struct{}, len(p.SuppressedSlots))
	for _, s := range p.SuppressedSlots {
		suppressed[s] = struct{}{}
	}

	for i := 0; ; i++ {
		t := start + float64(i)*slot
		if t >= p.EndMs {
			break
		}
		n := int(math.Round((t - mc.GridStartMs) / slot))
		bar := floorDiv(n, spb)
		pos := n - bar*spb
		if _, skip := suppressed[pos]; skip {
			continue
		}
		accent := 0.0
		if pos < len(p.AccentGains) {
			accent = p.AccentGains[pos]
		}
		env.Events = append(env.Events, PulseEvent{
			TimeMs:    t,
			BarIndex:  bar,
			SlotInBar: pos,
			Gain:      clamp01(p.BaseGain * (1 + accent)),
			Accented:  accent > 0,
		})
	}
	return env, nil
}

// ContextFromExercise builds the grid of an exercise whose bar 0 starts at gridStartMs.
func ContextFromExercise(ex exercise.Context, gridStartMs float64) MusicalContext {
	return MusicalContext{
		TempoBPM:     ex.TempoBPM,
		Meter:        ex.Meter,
		SlotsPerBeat: ex.Pattern.Subdivision,
		GridStartMs:  gridStartMs,
	}
}

// AccentsFromPack returns the per-slot accent gains of a groove pack's bar.
func AccentsFromPack(p exercise.GroovePack) []float64 {
	return p.Accents()
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// #endregion schedule
