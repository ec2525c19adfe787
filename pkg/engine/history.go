package engine

import (
	"github.com/denizumutdereli/stdpcore/pkg/core"
	"github.com/denizumutdereli/stdpcore/pkg/timing"
)

// MaxPostEvents is the depth of each post-synaptic event history.
const MaxPostEvents = 4

// PostHistory is the short list of recent post-synaptic spikes of one neuron.
// Entry 0 starts as a sentinel at time 0 carrying the rule's initial post
// trace; once full, the oldest entry is shifted out.
type PostHistory struct {
	times  [MaxPostEvents]core.Time
	traces [MaxPostEvents]timing.Trace
	count  int
}

// NewPostHistory returns a history holding only the sentinel entry.
func NewPostHistory(initial timing.Trace) PostHistory {
	h := PostHistory{count: 1}
	h.traces[0] = initial
	return h
}

// Len returns the number of entries including the sentinel.
func (h *PostHistory) Len() int { return h.count }

// Last returns the most recent entry.
func (h *PostHistory) Last() timing.Spike {
	i := h.count - 1
	return timing.Spike{Time: h.times[i], Trace: h.traces[i]}
}

// At returns entry i, oldest first.
func (h *PostHistory) At(i int) timing.Spike {
	return timing.Spike{Time: h.times[i], Trace: h.traces[i]}
}

// Add appends a post-spike, dropping the oldest entry when full.
func (h *PostHistory) Add(time core.Time, trace timing.Trace) {
	if h.count < MaxPostEvents {
		h.times[h.count] = time
		h.traces[h.count] = trace
		h.count++
		return
	}
	copy(h.times[:], h.times[1:])
	copy(h.traces[:], h.traces[1:])
	h.times[MaxPostEvents-1] = time
	h.traces[MaxPostEvents-1] = trace
}

// PostWindow walks the events a row pass replays: those after begin up to
// and including end. Prev is the event before the next one returned.
type PostWindow struct {
	Prev timing.Spike

	h         *PostHistory
	next, end int
}

// Remaining returns how many events Next will still return.
func (w *PostWindow) Remaining() int { return w.end - w.next }

// Next returns the next event to replay. Prev is left alone until Advance.
func (w *PostWindow) Next() (timing.Spike, bool) {
	if w.next >= w.end {
		return timing.Spike{}, false
	}
	ev := w.h.At(w.next)
	w.next++
	return ev, true
}

// Advance moves Prev onto ev once ev has been applied.
func (w *PostWindow) Advance(ev timing.Spike) { w.Prev = ev }

// Window selects the events with begin < time <= end. Prev starts at the
// newest entry at or before begin, or at the oldest entry if every entry is
// after begin.
func (h *PostHistory) Window(begin, end core.Time) PostWindow {
	first := h.count - 1
	for first > 0 && h.times[first] > begin {
		first--
	}
	last := first + 1
	for last < h.count && h.times[last] <= end {
		last++
	}
	return PostWindow{Prev: h.At(first), h: h, next: first + 1, end: last}
}

// Entries copies the history out for snapshots.
func (h *PostHistory) Entries() []timing.Spike {
	out := make([]timing.Spike, h.count)
	for i := range out {
		out[i] = h.At(i)
	}
	return out
}

// RestorePostHistory rebuilds a history from Entries output. At most the
// newest MaxPostEvents entries are kept.
func RestorePostHistory(entries []timing.Spike, initial timing.Trace) PostHistory {
	if len(entries) == 0 {
		return NewPostHistory(initial)
	}
	if len(entries) > MaxPostEvents {
		entries = entries[len(entries)-MaxPostEvents:]
	}
	var h PostHistory
	for i, e := range entries {
		h.times[i] = e.Time
		h.traces[i] = e.Trace
	}
	h.count = len(entries)
	return h
}
