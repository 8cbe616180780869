package interview

// Timer is the session countdown: a pure data holder with no clock and no
// I/O. The controller feeds it one Tick per second of wall time and reacts
// to the warnings and expiry it reports.
//
// Warning thresholds latch. Each fires at most once per session, and a
// threshold at or above the starting value is latched immediately without
// firing — resuming a session at exactly five minutes left must not replay
// the five-minute warning.
//
// Timer is not safe for concurrent use; the controller serialises access.
type Timer struct {
	remaining int
	warnAt    []int
	fired     map[int]bool
}

// NewTimer creates a countdown starting at remaining seconds with the given
// warning thresholds (seconds remaining, descending order not required).
func NewTimer(remaining int, warnAt []int) *Timer {
	if remaining < 0 {
		remaining = 0
	}
	t := &Timer{
		remaining: remaining,
		warnAt:    append([]int(nil), warnAt...),
		fired:     make(map[int]bool, len(warnAt)),
	}
	for _, w := range t.warnAt {
		if w >= remaining {
			t.fired[w] = true
		}
	}
	return t
}

// Tick consumes one second. It returns the warning threshold crossed by this
// tick (0 when none) and whether the countdown reached zero. Once expired,
// further ticks are no-ops that keep reporting expiry; the controller stops
// the cadence on the first true.
func (t *Timer) Tick() (warn int, expired bool) {
	if t.remaining <= 0 {
		return 0, true
	}
	t.remaining--
	for _, w := range t.warnAt {
		if t.remaining == w && !t.fired[w] {
			t.fired[w] = true
			warn = w
		}
	}
	return warn, t.remaining == 0
}

// Remaining returns the seconds left, never negative.
func (t *Timer) Remaining() int { return t.remaining }

// Expired reports whether the countdown reached zero.
func (t *Timer) Expired() bool { return t.remaining <= 0 }
