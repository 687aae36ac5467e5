package segmenter

// #region ring
// eventRing is a fixed-capacity history of accepted onsets. Pushing onto a full ring
// evicts the oldest entry; entries older than window behind the newest push are dropped.
type eventRing struct {
	buf    []OnsetEvent
	head   int
	size   int
	window float64
}

func newEventRing(capacity int, windowMs float64) *eventRing {
	if capacity < 1 {
		capacity = 1
	}
	return &eventRing{buf: make([]OnsetEvent, capacity), window: windowMs}
}

func (r *eventRing) push(e OnsetEvent) {
	if r.size == len(r.buf) {
		r.head = (r.head + 1) % len(r.buf)
		r.size--
	}
	r.buf[(r.head+r.size)%len(r.buf)] = e
	r.size++
	if r.window > 0 {
		r.evictBefore(e.TimeMs - r.window)
	}
}

func (r *eventRing) evictBefore(t float64) {
	for r.size > 0 && r.buf[r.head].TimeMs < t {
		r.head = (r.head + 1) % len(r.buf)
		r.size--
	}
}

func (r *eventRing) len() int { return r.size }

func (r *eventRing) at(i int) OnsetEvent {
	return r.buf[(r.head+i)%len(r.buf)]
}

// countSince counts retained events at or after t.
func (r *eventRing) countSince(t float64) int {
	n := 0
	for i := 0; i < r.size; i++ {
		if r.at(i).TimeMs >= t {
			n++
		}
	}
	return n
}

// #endregion ring

// #region seq-filter
// seqFilter remembers recently seen sequence numbers. Entries older than the window are
// folded into a floor for the source that produced them: anything at or below a source's
// floor counts as seen from that source. Each source numbers its onsets monotonically, so
// a late number below its own floor is stale. Another source keeps its own floor.
type seqFilter struct {
	seen   map[uint64]seenSeq
	floors map[string]uint64
	window float64
	limit  int
}

type seenSeq struct {
	source string
	atMs   float64
}

func newSeqFilter(limit int, windowMs float64) *seqFilter {
	return &seqFilter{
		seen:   make(map[uint64]seenSeq),
		floors: make(map[string]uint64),
		window: windowMs,
		limit:  limit,
	}
}

func (f *seqFilter) contains(source string, seq uint64) bool {
	if floor, ok := f.floors[source]; ok && seq <= floor {
		return true
	}
	_, ok := f.seen[seq]
	return ok
}

func (f *seqFilter) add(source string, seq uint64, atMs float64) {
	f.seen[seq] = seenSeq{source: source, atMs: atMs}
	if len(f.seen) > f.limit {
		f.prune(atMs - f.window)
	}
}

func (f *seqFilter) prune(cutoff float64) {
	for seq, e := range f.seen {
		if e.atMs >= cutoff {
			continue
		}
		delete(f.seen, seq)
		if floor, ok := f.floors[e.source]; !ok || seq > floor {
			f.floors[e.source] = seq
		}
	}
}

// #endregion seq-filter
