package objective

// #region slot-error-detector
// SlotErrorDetector flags a slot position that is missed in enough bars to count as a
// habit rather than noise.
type SlotErrorDetector struct {
	MinBars  int     // distinct bars the position must fail in
	MinRatio float64 // fraction of the take's bars
}

// DefaultSlotErrorDetector requires a miss in at least two bars and half the take.
func DefaultSlotErrorDetector() SlotErrorDetector {
	return SlotErrorDetector{MinBars: 2, MinRatio: 0.5}
}

// Detect returns the kind of the worst repeating position, or HotspotNone. Ties go to the
// earliest position in the bar.
func (d SlotErrorDetector) Detect(a Alignment, g Grid) HotspotKind {
	if g.SlotsPerBar <= 0 || g.Bars <= 0 || len(a.Missed) == 0 {
		return HotspotNone
	}

	barsByPos := make([]map[int]struct{}, g.SlotsPerBar)
	for _, idx := range a.Missed {
		if idx < 0 {
			continue
		}
		pos, bar := idx%g.SlotsPerBar, idx/g.SlotsPerBar
		if barsByPos[pos] == nil {
			barsByPos[pos] = make(map[int]struct{})
		}
		barsByPos[pos][bar] = struct{}{}
	}

	worst, count := -1, 0
	for pos, bars := range barsByPos {
		if len(bars) > count {
			worst, count = pos, len(bars)
		}
	}
	if worst < 0 || count < d.MinBars || float64(count)/float64(g.Bars) < d.MinRatio {
		return HotspotNone
	}
	return classifySlot(worst, g.SlotsPerBeat)
}

// classifySlot names a position within the bar.
func classifySlot(pos, slotsPerBeat int) HotspotKind {
	if slotsPerBeat <= 0 {
		slotsPerBeat = 1
	}
	switch {
	case pos == 0:
		return HotspotDownbeat
	case pos < slotsPerBeat:
		return HotspotEarlyBar
	case pos%slotsPerBeat == 0:
		return HotspotBackbeat
	case slotsPerBeat%2 == 0 && pos%slotsPerBeat == slotsPerBeat/2:
		return HotspotOffbeat
	}
	return HotspotSubdivision
}

// #endregion slot-error-detector
