package threat

import (
	"sync"
	"time"
)

// slidingWindow counts events inside a trailing time window. Each window
// carries its own lock so concurrent subjects never contend with each
// other.
type slidingWindow struct {
	mu     sync.Mutex
	span   time.Duration
	events []time.Time
}

func newSlidingWindow(span time.Duration) *slidingWindow {
	return &slidingWindow{span: span}
}

// Add records one event at the given instant and returns the count of
// events still inside the window, the new one included.
func (w *slidingWindow) Add(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.trim(now)
	w.events = append(w.events, now)
	return len(w.events)
}

// Count returns the number of events inside the window at the given instant.
func (w *slidingWindow) Count(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.trim(now)
	return len(w.events)
}

// Drain returns the count of events inside the window and clears it in
// one step.
func (w *slidingWindow) Drain(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.trim(now)
	n := len(w.events)
	w.events = w.events[:0]
	return n
}

// Reset drops all recorded events.
func (w *slidingWindow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.events = w.events[:0]
}

// trim is called with the lock held.
func (w *slidingWindow) trim(now time.Time) {
	cutoff := now.Add(-w.span)
	idx := 0
	for idx < len(w.events) && !w.events[idx].After(cutoff) {
		idx++
	}
	if idx > 0 {
		w.events = append(w.events[:0], w.events[idx:]...)
	}
}
