package coinbase

import "testing"

func TestWindowPctChangeNeedsTwoTicks(t *testing.T) {
	w := NewWindow(500)
	if _, ok := w.PctChange(); ok {
		t.Fatalf("empty window should not report a change")
	}
	w.Add(1000, 50000)
	if _, ok := w.PctChange(); ok {
		t.Fatalf("single tick should not report a change")
	}
	w.Add(1100, 50010)
	pct, ok := w.PctChange()
	if !ok {
		t.Fatalf("expected a change with two ticks")
	}
	want := (50010.0 - 50000.0) / 50000.0
	if pct != want {
		t.Fatalf("pct=%v want %v", pct, want)
	}
}

func TestWindowEvictsOldTicks(t *testing.T) {
	w := NewWindow(500)
	w.Add(1000, 50000)
	w.Add(1200, 50005)
	w.Add(1501, 50010) // cutoff 1001: first tick falls out

	if w.Len() != 2 {
		t.Fatalf("len=%d want 2", w.Len())
	}
	pct, ok := w.PctChange()
	if !ok {
		t.Fatalf("expected change")
	}
	want := (50010.0 - 50005.0) / 50005.0
	if pct != want {
		t.Fatalf("pct=%v want %v", pct, want)
	}
}

func TestWindowKeepsTickExactlyAtSpan(t *testing.T) {
	w := NewWindow(500)
	w.Add(1000, 50000)
	w.Add(1500, 50010) // cutoff 1000: boundary tick retained

	if w.Len() != 2 {
		t.Fatalf("len=%d want 2", w.Len())
	}
}

func TestWindowClear(t *testing.T) {
	w := NewWindow(500)
	w.Add(1000, 50000)
	w.Add(1100, 50010)
	w.Clear()
	if w.Len() != 0 {
		t.Fatalf("len=%d want 0", w.Len())
	}
	if _, ok := w.PctChange(); ok {
		t.Fatalf("cleared window should not report a change")
	}
}

func TestWindowZeroFirstPrice(t *testing.T) {
	w := NewWindow(500)
	w.Add(1000, 0)
	w.Add(1100, 50010)
	if _, ok := w.PctChange(); ok {
		t.Fatalf("non-positive base price should not report a change")
	}
}
