package engine

import "time"

// StateChange is emitted on every driver state transition.
type StateChange struct {
	Previous State
	Current  State
}

// PositionChange is emitted on every audio-time tick and after seeks.
type PositionChange struct {
	Time     float64 // book-global seconds
	Duration float64
}

// BufferChange is emitted when the buffered extent moves.
type BufferChange struct {
	Buffered float64 // book-global seconds
}

// TrackChange is emitted when the active segment switches, either by a
// cross-segment seek or by end-of-segment advance. Not emitted for
// local seeks inside the active segment.
type TrackChange struct {
	Index int
}

// SessionChange is emitted when the remote session opens or closes.
type SessionChange struct {
	SessionID string
	Opened    bool
}

// SleepChange is emitted when the sleep timer is set, fires or clears.
type SleepChange struct {
	Mode      SleepMode
	Remaining int
	Deadline  time.Time
}

// Ended is emitted when the last segment finishes naturally.
type Ended struct{}

// ErrorEvent is emitted when an operation stalls playback or a
// best-effort sync fails.
type ErrorEvent struct {
	Op    string // e.g. "load", "seek", "sync"
	Err   error
	Fatal bool // fatal errors stall playback until the next Load
}
