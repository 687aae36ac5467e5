package segmenter

import (
	"math"
	"sort"
)

// #region count-in
// checkCountIn evaluates the count-in window once the grid starts. The window covers the
// last CountInWindowBeats beats before GridStartMs and needs two accepted pre-roll onsets.
// Exercises without a count-in are never flagged.
func (s *Segmenter) checkCountIn(nowMs float64) {
	t := s.take
	if t.countInChecked || nowMs < t.anchors.GridStartMs {
		return
	}
	t.countInChecked = true
	if s.ex.CountInBeats == 0 {
		return
	}
	from := math.Max(t.anchors.GridStartMs-s.cfg.CountInWindowBeats*s.timing.BeatMs, t.anchors.CountInStartMs)
	if countBetween(t.preRoll, from, t.anchors.GridStartMs) < 2 {
		t.flags.MissedCountIn = true
	}
}

func countBetween(events []OnsetEvent, from, to float64) int {
	n := 0
	for _, e := range events {
		if e.TimeMs >= from && e.TimeMs < to {
			n++
		}
	}
	return n
}

// #endregion count-in

// #region early-stop
// earlyStopAt reports the moment the player went silent for AbortPauseMs inside the grid.
func (s *Segmenter) earlyStopAt(nowMs float64) (float64, bool) {
	t := s.take
	ref := t.anchors.GridStartMs
	if len(t.inWindow) > 0 {
		ref = t.lastInWindowMs
	}
	at := ref + s.cfg.AbortPauseMs
	if at < t.anchors.GridEndMs && nowMs >= at {
		return at, true
	}
	return 0, false
}

// #endregion early-stop

// #region restart
// restartSignature runs the two-phase watch: a silence gap of RestartPauseMs arms it, and
// RestartBurstCount onsets within RestartBurstWindowMs of the gap trip it.
func (s *Segmenter) restartSignature(e OnsetEvent, first bool) bool {
	if first {
		return false
	}
	t := s.take
	w := &t.watch
	if w.active && e.TimeMs-w.startMs > s.cfg.RestartBurstWindowMs {
		w.active = false
	}
	if !w.active {
		if e.TimeMs-t.lastInWindowMs < s.cfg.RestartPauseMs {
			return false
		}
		w.active = true
		w.startMs = e.TimeMs
	}
	return s.history.countSince(w.startMs) >= s.cfg.RestartBurstCount
}

// #endregion restart

// #region tempo
// tempoMismatch compares the median inter-onset interval with the pattern's expected interval.
func (s *Segmenter) tempoMismatch(events []OnsetEvent) bool {
	expected := s.timing.ExpectedHitIntervalMs
	if len(events) < s.cfg.TempoMinSamples+1 || expected <= 0 {
		return false
	}
	times := make([]float64, len(events))
	for i, e := range events {
		times[i] = e.TimeMs
	}
	sort.Float64s(times)

	intervals := make([]float64, 0, len(times)-1)
	for i := 1; i < len(times); i++ {
		intervals = append(intervals, times[i]-times[i-1])
	}
	sort.Float64s(intervals)
	median := intervals[len(intervals)/2]
	if len(intervals)%2 == 0 {
		median = (intervals[len(intervals)/2-1] + median) / 2
	}

	tol := s.ex.TempoTolerance
	if tol <= 0 {
		tol = s.cfg.TempoMismatchFraction
	}
	return math.Abs(median-expected)/expected > tol
}

// #endregion tempo
