package coinbase

// Tick is a single trade print from the reference feed.
type Tick struct {
	TimeMs int64   `json:"t_ms"`
	Price  float64 `json:"price"`
}

// Window keeps the ticks observed within a trailing time span and exposes
// the percent move across them.
//
// Not safe for concurrent use; the feed owns it from a single goroutine.
type Window struct {
	spanMs int64
	ticks  []Tick
}

// NewWindow returns a window spanning spanMs milliseconds.
func NewWindow(spanMs int64) *Window {
	if spanMs <= 0 {
		spanMs = 500
	}
	return &Window{spanMs: spanMs}
}

// Add appends a tick and evicts everything strictly older than the span
// measured from the newest tick.
func (w *Window) Add(timeMs int64, price float64) {
	w.ticks = append(w.ticks, Tick{TimeMs: timeMs, Price: price})

	newest := w.ticks[len(w.ticks)-1].TimeMs
	cutoff := newest - w.spanMs
	i := 0
	for i < len(w.ticks) && w.ticks[i].TimeMs < cutoff {
		i++
	}
	if i > 0 {
		w.ticks = append(w.ticks[:0], w.ticks[i:]...)
	}
}

// PctChange returns (last-first)/first across the window. ok is false when
// fewer than two ticks are present or the oldest price is not positive.
func (w *Window) PctChange() (float64, bool) {
	if len(w.ticks) < 2 {
		return 0, false
	}
	first := w.ticks[0].Price
	last := w.ticks[len(w.ticks)-1].Price
	if first <= 0 {
		return 0, false
	}
	return (last - first) / first, true
}

// Len returns the number of ticks currently held.
func (w *Window) Len() int { return len(w.ticks) }

// Clear drops all ticks.
func (w *Window) Clear() { w.ticks = w.ticks[:0] }

// Ticks returns a copy of the current contents, oldest first.
func (w *Window) Ticks() []Tick {
	return append([]Tick(nil), w.ticks...)
}
