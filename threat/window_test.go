package threat

import (
	"testing"
	"time"
)

func TestSlidingWindowCounts(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	w := newSlidingWindow(5 * time.Minute)

	if got := w.Add(base); got != 1 {
		t.Errorf("expected count 1, got %d", got)
	}
	if got := w.Add(base.Add(time.Minute)); got != 2 {
		t.Errorf("expected count 2, got %d", got)
	}
	if got := w.Count(base.Add(2 * time.Minute)); got != 2 {
		t.Errorf("expected count 2, got %d", got)
	}
}

func TestSlidingWindowExpiry(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	w := newSlidingWindow(5 * time.Minute)

	w.Add(base)
	w.Add(base.Add(time.Minute))
	w.Add(base.Add(4 * time.Minute))

	// At +6m the first two events have left the window.
	if got := w.Count(base.Add(6 * time.Minute)); got != 1 {
		t.Errorf("expected 1 surviving event, got %d", got)
	}
	// At +10m everything has expired.
	if got := w.Count(base.Add(10 * time.Minute)); got != 0 {
		t.Errorf("expected empty window, got %d", got)
	}
}

func TestSlidingWindowBoundary(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	w := newSlidingWindow(5 * time.Minute)

	w.Add(base)
	// An event exactly window-span old is no longer counted.
	if got := w.Count(base.Add(5 * time.Minute)); got != 0 {
		t.Errorf("expected event at exact boundary to be expired, got %d", got)
	}
}

func TestSlidingWindowDrain(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	w := newSlidingWindow(5 * time.Minute)

	w.Add(base)
	w.Add(base.Add(time.Minute))
	w.Add(base.Add(7 * time.Minute))

	// Drain reports only events still inside the window and clears it.
	if got := w.Drain(base.Add(8 * time.Minute)); got != 1 {
		t.Errorf("expected drain count 1, got %d", got)
	}
	if got := w.Count(base.Add(8 * time.Minute)); got != 0 {
		t.Errorf("expected empty window after drain, got %d", got)
	}
}

func TestSlidingWindowReset(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	w := newSlidingWindow(5 * time.Minute)

	w.Add(base)
	w.Add(base.Add(time.Second))
	w.Reset()
	if got := w.Count(base.Add(2 * time.Second)); got != 0 {
		t.Errorf("expected empty window after reset, got %d", got)
	}
}
