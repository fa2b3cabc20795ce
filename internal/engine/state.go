package engine

import "time"

// State represents the playback driver's state machine.
//
// The driver has six primary states plus a Seeking sub-state:
//
//	┌──────┐  Load   ┌─────────┐ source ┌───────┐ autoplay ┌─────────┐
//	│ Idle │────────▶│ Loading │───────▶│ Ready │─────────▶│ Playing │
//	└──────┘         └─────────┘ ready  └───────┘          └─────────┘
//	                                                        ▲   │ │
//	                                                  play  │   │ │ last
//	                                                        │   │ │ segment
//	                                                 pause  │   ▼ │ ends
//	                                                      ┌────────┐
//	                                                      │ Paused │──▶ Ended
//	                                                      └────────┘
//
// Seeking is entered from Playing or Paused while a seek target is in
// flight and returns to the originating state once the target position
// is audible. Ended returns to Loading via a fresh Load. Errors leave
// the state where it was; the error field on Status marks the stall.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StatePlaying
	StatePaused
	StateSeeking
	StateEnded
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateLoading:
		return "Loading"
	case StateReady:
		return "Ready"
	case StatePlaying:
		return "Playing"
	case StatePaused:
		return "Paused"
	case StateSeeking:
		return "Seeking"
	case StateEnded:
		return "Ended"
	default:
		return "Unknown"
	}
}

// IsActive returns true if a source is attached and positioned.
func (s State) IsActive() bool {
	switch s {
	case StateReady, StatePlaying, StatePaused, StateSeeking:
		return true
	default:
		return false
	}
}

// Status is the externally observable player state. Snapshots are
// returned by value and published synchronously with the event that
// changed them; no component ever reads a stale copy.
type Status struct {
	State       State
	IsPlaying   bool
	IsLoading   bool
	CurrentTime float64 // book-global seconds
	Duration    float64
	Buffered    float64 // book-global buffered extent
	Rate        float64
	Streaming   bool   // continuous delivery vs discrete files
	SessionID   string // empty iff no remote session is open
	TrackIndex  int    // active segment in discrete mode, 0 otherwise

	SleepMode       SleepMode
	SleepRemaining  int       // chapters mode: boundaries still to cross
	SleepDeadline   time.Time // minutes mode: wall-clock stop time
	Err             error     // non-nil means playback is stalled
	ItemID          string
	DisplayTitle    string
	DisplayAuthor   string
	CurrentChapter  string // title of the chapter containing CurrentTime
}
