package exercise

import (
	"fmt"
	"sort"
)

// #region validate
// Validate checks that the context can drive a take. Every failure wraps ErrInvalidExercise.
func (c Context) Validate() error {
	if c.TempoBPM <= 0 {
		return fmt.Errorf("%w: tempo must be positive, got %.2f", ErrInvalidExercise, c.TempoBPM)
	}
	if c.Bars <= 0 {
		return fmt.Errorf("%w: bars must be positive, got %d", ErrInvalidExercise, c.Bars)
	}
	if c.Meter.BeatsPerBar <= 0 || c.Meter.BeatUnit <= 0 {
		return fmt.Errorf("%w: meter %d/%d", ErrInvalidExercise, c.Meter.BeatsPerBar, c.Meter.BeatUnit)
	}
	if c.CountInBeats < 0 {
		return fmt.Errorf("%w: count-in beats must not be negative", ErrInvalidExercise)
	}
	if c.TempoTolerance < 0 {
		return fmt.Errorf("%w: tempo tolerance must not be negative", ErrInvalidExercise)
	}
	if c.Pattern.Subdivision <= 0 {
		return fmt.Errorf("%w: subdivision must be positive, got %d", ErrInvalidExercise, c.Pattern.Subdivision)
	}
	if len(c.Pattern.ExpectedSlots) == 0 {
		return fmt.Errorf("%w: empty strum pattern", ErrInvalidExercise)
	}
	slots := c.SlotsPerBar()
	for _, s := range c.Pattern.ExpectedSlots {
		if s < 0 || s >= slots {
			return fmt.Errorf("%w: expected slot %d outside bar of %d slots", ErrInvalidExercise, s, slots)
		}
	}
	return nil
}

// #endregion validate

// #region timing
// SlotsPerBar is beats per bar times the pattern subdivision.
func (c Context) SlotsPerBar() int {
	return c.Meter.BeatsPerBar * c.Pattern.Subdivision
}

// Timing derives grid durations. Call Validate first; the result is meaningless otherwise.
func (c Context) Timing() Timing {
	beat := 60000.0 / c.TempoBPM
	slot := beat / float64(c.Pattern.Subdivision)
	spb := c.SlotsPerBar()
	bar := slot * float64(spb)
	return Timing{
		BeatMs:                beat,
		SlotMs:                slot,
		BarMs:                 bar,
		SlotsPerBar:           spb,
		CountInMs:             beat * float64(c.CountInBeats),
		GridMs:                bar * float64(c.Bars),
		ExpectedHitIntervalMs: float64(medianSlotGap(c.Pattern.ExpectedSlots, spb)) * slot,
	}
}

// medianSlotGap is the median distance, in slots, between consecutive expected hits
// with the pattern wrapping around the bar line.
func medianSlotGap(expected []int, slotsPerBar int) int {
	uniq := make(map[int]struct{}, len(expected))
	for _, s := range expected {
		uniq[s] = struct{}{}
	}
	sorted := make([]int, 0, len(uniq))
	for s := range uniq {
		sorted = append(sorted, s)
	}
	sort.Ints(sorted)
	if len(sorted) == 1 {
		return slotsPerBar
	}

	gaps := make([]int, 0, len(sorted))
	for i := 1; i < len(sorted); i++ {
		gaps = append(gaps, sorted[i]-sorted[i-1])
	}
	gaps = append(gaps, sorted[0]+slotsPerBar-sorted[len(sorted)-1])
	sort.Ints(gaps)
	return gaps[len(gaps)/2]
}

// #endregion timing

// #region all-slots
// AllSlots returns a pattern slice hitting every slot of a bar.
func AllSlots(slotsPerBar int) []int {
	out := make([]int, slotsPerBar)
	for i := range out {
		out[i] = i
	}
	return out
}

// #endregion all-slots
