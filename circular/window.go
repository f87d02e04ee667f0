package circular

import (
	"fmt"
	"math/bits"

	"github.com/grailbio/base/log"
)

// NextExp2 returns the smallest power of two greater than x, for x > 0.
func NextExp2(x int) int {
	return 1 << uint(bits.Len64(uint64(x)))
}

// Window is a dense array of per-position counters over the sliding span
// [Start(), End()).  Each position holds Lanes() independent int64 values.
// Positions are added at or after Start and flushed from the front, so the
// backing ring only needs to cover the live span; it doubles when a range would
// overflow it.
type Window struct {
	lanes int
	// vals[i*lanes:(i+1)*lanes] holds the counters of every position p with
	// p & (nCirc-1) == i.
	vals       []int64
	nCirc      int
	start, end int
}

// NewWindow creates an empty window with the given number of lanes and an
// initial capacity of nCirc positions, rounded up to a power of two.
func NewWindow(lanes, nCirc int) *Window {
	if lanes <= 0 {
		log.Panicf("circular.NewWindow: lanes must be positive, got %d", lanes)
	}
	if nCirc < 1 {
		nCirc = 1
	}
	if nCirc&(nCirc-1) != 0 {
		nCirc = NextExp2(nCirc)
	}
	return &Window{
		lanes: lanes,
		vals:  make([]int64, lanes*nCirc),
		nCirc: nCirc,
	}
}

// Lanes returns the number of counters per position.
func (w *Window) Lanes() int { return w.lanes }

// Start returns the first live position.
func (w *Window) Start() int { return w.start }

// End returns one past the last position touched since the last flush.
func (w *Window) End() int { return w.end }

// Empty reports whether no position is live.
func (w *Window) Empty() bool { return w.start == w.end }

// Reset discards every counter and moves the window to pos.
func (w *Window) Reset(pos int) {
	for i := range w.vals {
		w.vals[i] = 0
	}
	w.start, w.end = pos, pos
}

func (w *Window) grow(span int) {
	nCirc := NextExp2(span - 1)
	vals := make([]int64, w.lanes*nCirc)
	oldMask, newMask := w.nCirc-1, nCirc-1
	for pos := w.start; pos < w.end; pos++ {
		o, n := (pos&oldMask)*w.lanes, (pos&newMask)*w.lanes
		copy(vals[n:n+w.lanes], w.vals[o:o+w.lanes])
	}
	log.Debug.Printf("circular.Window: grew from %d to %d positions", w.nCirc, nCirc)
	w.vals, w.nCirc = vals, nCirc
}

// Add adds v to the given lane of every position in [start, end).  start must
// not precede Start(), unless the window is empty, in which case the window
// moves to start.
func (w *Window) Add(lane, start, end int, v int64) {
	if end <= start {
		return
	}
	if w.start == w.end {
		w.start, w.end = start, start
	}
	if start < w.start {
		panic(fmt.Sprintf("circular.Window.Add: [%d, %d) precedes window start %d", start, end, w.start))
	}
	if end-w.start > w.nCirc {
		w.grow(end - w.start)
	}
	mask := w.nCirc - 1
	for pos := start; pos < end; pos++ {
		w.vals[(pos&mask)*w.lanes+lane] += v
	}
	if end > w.end {
		w.end = end
	}
}

// Flush calls fn on every live position before limit, in order, and then
// clears those positions.  vals is valid only for the duration of the call.
// Positions whose lanes are all zero are skipped.  If limit is at or past
// End(), the window becomes empty and moves to limit.
func (w *Window) Flush(limit int, fn func(pos int, vals []int64)) {
	stop := limit
	if stop > w.end {
		stop = w.end
	}
	mask := w.nCirc - 1
	for pos := w.start; pos < stop; pos++ {
		i := (pos & mask) * w.lanes
		vals := w.vals[i : i+w.lanes]
		nonzero := false
		for _, v := range vals {
			if v != 0 {
				nonzero = true
				break
			}
		}
		if nonzero {
			fn(pos, vals)
			for j := range vals {
				vals[j] = 0
			}
		}
	}
	if limit >= w.end {
		w.start, w.end = limit, limit
	} else if stop > w.start {
		w.start = stop
	}
}
