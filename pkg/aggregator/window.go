package aggregator

import "github.com/srodi/netpulse-bpf/pkg/types"

// Window is a bounded, time-ordered buffer of rate samples. The oldest sample
// is evicted when a push would exceed capacity. Window is not safe for
// concurrent use; Aggregator guards it.
type Window struct {
	items []types.RateSample
	size  int
}

// NewWindow returns an empty window holding at most size samples.
func NewWindow(size int) *Window {
	if size < 1 {
		size = 1
	}
	return &Window{items: make([]types.RateSample, 0, size), size: size}
}

// Push appends s, evicting the oldest entry on overflow.
func (w *Window) Push(s types.RateSample) {
	if len(w.items) == w.size {
		copy(w.items, w.items[1:])
		w.items[len(w.items)-1] = s
		return
	}
	w.items = append(w.items, s)
}

// Resize changes the capacity, keeping the newest min(len, size) entries.
func (w *Window) Resize(size int) {
	if size < 1 {
		size = 1
	}
	keep := w.items
	if len(keep) > size {
		keep = keep[len(keep)-size:]
	}
	items := make([]types.RateSample, len(keep), size)
	copy(items, keep)
	w.items = items
	w.size = size
}

// Len reports the number of samples held.
func (w *Window) Len() int { return len(w.items) }

// Cap reports the configured capacity.
func (w *Window) Cap() int { return w.size }

// Last returns the newest sample.
func (w *Window) Last() (types.RateSample, bool) {
	if len(w.items) == 0 {
		return types.RateSample{}, false
	}
	return w.items[len(w.items)-1], true
}

// Items returns a copy of the samples, oldest first.
func (w *Window) Items() []types.RateSample {
	out := make([]types.RateSample, len(w.items))
	copy(out, w.items)
	return out
}
