package usage

import (
	"testing"
	"time"
)

func TestTrackerOnOff(t *testing.T) {
	var tr Tracker
	start := time.Date(2026, 3, 7, 12, 0, 0, 0, time.Local)

	if got := tr.Observe(true, start); got != 0 {
		t.Fatalf("rising edge should not flush, got %d", got)
	}
	if got := tr.Observe(true, start.Add(2*time.Minute)); got != 0 {
		t.Fatalf("repeated on should not flush, got %d", got)
	}
	if !tr.Since().Equal(start) {
		t.Fatalf("repeated on must keep the original start")
	}
	if got := tr.Observe(false, start.Add(5*time.Minute)); got != 5 {
		t.Fatalf("expected 5 minutes, got %d", got)
	}
	if tr.Active() {
		t.Fatalf("tracker should be cleared after off")
	}
	if got := tr.Observe(false, start.Add(10*time.Minute)); got != 0 {
		t.Fatalf("off without on should not flush, got %d", got)
	}
}

func TestTrackerFlushRounds(t *testing.T) {
	var tr Tracker
	start := time.Date(2026, 3, 7, 12, 0, 0, 0, time.Local)
	tr.Observe(true, start)
	if got := tr.Flush(start.Add(20 * time.Second)); got != 0 {
		t.Fatalf("expected short period to round to 0, got %d", got)
	}
	if tr.Active() {
		t.Fatalf("flush must clear the tracker")
	}
	tr.Observe(true, start)
	if got := tr.Flush(start.Add(90 * time.Second)); got != 2 {
		t.Fatalf("expected 90s to round to 2, got %d", got)
	}
}
