package engine

import (
	"time"

	"github.com/Robertsaedal/RS-Audiobook-sub001/internal/media"
)

// SleepMode selects the sleep timer's stopping condition.
type SleepMode int

const (
	SleepOff SleepMode = iota
	// SleepMinutes pauses at a wall-clock deadline, counted from when
	// the timer was set regardless of play/pause. This asymmetry with
	// heartbeat accrual (which counts listening time only) is
	// deliberate.
	SleepMinutes
	// SleepChapters pauses at the Nth chapter boundary ahead of where
	// playback was when the timer was set. There is no counter ticking
	// down: the stop point is a fixed book-global time, and re-setting
	// N at any time re-anchors it to wherever playback currently is.
	SleepChapters
)

// String returns the mode name.
func (m SleepMode) String() string {
	switch m {
	case SleepOff:
		return "Off"
	case SleepMinutes:
		return "Minutes"
	case SleepChapters:
		return "Chapters"
	default:
		return "Unknown"
	}
}

// sleepTimer is the stopping-condition policy. It holds no reference to
// playback; the driver feeds it time and asks whether to stop.
type sleepTimer struct {
	mode      SleepMode
	deadline  time.Time
	remaining int
	boundary  float64 // chapters mode: book-global stop time
}

func (t *sleepTimer) setMinutes(d time.Duration, now time.Time) {
	t.mode = SleepMinutes
	t.deadline = now.Add(d)
	t.remaining = 0
	t.boundary = 0
}

// setChapters anchors the stop point at the Nth boundary after global.
func (t *sleepTimer) setChapters(n int, global float64, chapters media.Chapters) {
	if n < 1 {
		n = 1
	}
	boundary, ok := chapters.BoundaryAfter(global, n)
	if !ok {
		return
	}
	t.mode = SleepChapters
	t.remaining = n
	t.boundary = boundary
	t.deadline = time.Time{}
}

func (t *sleepTimer) clear() {
	t.mode = SleepOff
	t.remaining = 0
	t.boundary = 0
	t.deadline = time.Time{}
}

// minutesDue is checked on the low-frequency tick.
func (t *sleepTimer) minutesDue(now time.Time) bool {
	return t.mode == SleepMinutes && !now.Before(t.deadline)
}

// chapterDue is checked on every position update. guard keeps the stop
// at-or-before the boundary so tick granularity can never overshoot
// into the next chapter.
func (t *sleepTimer) chapterDue(global float64, guard float64) bool {
	if t.mode != SleepChapters {
		return false
	}
	return global >= t.boundary-guard
}
