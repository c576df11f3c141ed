package usage

import (
	"math"
	"time"
)

// Tracker remembers when the current on-period started.
// It is not safe for concurrent use; the owner serializes calls.
type Tracker struct {
	since time.Time
}

// Observe records a power-state reading. It returns the minutes to add to
// history when an on-period ends, or 0.
func (t *Tracker) Observe(on bool, now time.Time) int {
	if on {
		if t.since.IsZero() {
			t.since = now
		}
		return 0
	}
	return t.Flush(now)
}

// Flush ends any on-period in progress and returns its length in rounded minutes.
func (t *Tracker) Flush(now time.Time) int {
	if t.since.IsZero() {
		return 0
	}
	elapsed := now.Sub(t.since)
	t.since = time.Time{}
	if elapsed <= 0 {
		return 0
	}
	return int(math.Round(elapsed.Minutes()))
}

// Active reports whether an on-period is in progress.
func (t *Tracker) Active() bool {
	return !t.since.IsZero()
}

// Since returns when the current on-period started.
func (t *Tracker) Since() time.Time {
	return t.since
}
