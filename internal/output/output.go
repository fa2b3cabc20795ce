// Package output owns the single platform audio output. It deals in
// local time only: one loaded source at a time, positions measured from
// that source's start. Book-global translation is the engine's job.
package output

import (
	"errors"
	"io"
	"time"
)

// ErrUnsupportedFormat is returned by Load for mime types the decoder
// cannot handle directly; callers fall back to the server transcode.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// ErrNotSeekable is returned by SeekTo when the loaded source cannot
// seek (a live transcoded stream); callers reload at an offset instead.
var ErrNotSeekable = errors.New("source is not seekable")

// State represents the output state machine.
//
// Valid transitions:
//   - Stopped → Paused  (via Load; the source is attached but silent)
//   - Paused  → Playing (via Play)
//   - Playing → Paused  (via Pause)
//   - Playing → Stopped (via Stop, or natural end)
//   - Paused  → Stopped (via Stop)
//
// Invalid transitions are no-ops.
type State int

const (
	Stopped State = iota
	Playing
	Paused
)

// String returns the state name for debugging.
func (s State) String() string {
	switch s {
	case Stopped:
		return "Stopped"
	case Playing:
		return "Playing"
	case Paused:
		return "Paused"
	default:
		return "Unknown"
	}
}

// IsActive returns true if a source is attached (Playing or Paused).
func (s State) IsActive() bool {
	return s == Playing || s == Paused
}

// Source describes one playable byte stream. Open is called once per
// Load; when Seekable is true the returned reader must also implement
// io.Seeker.
type Source struct {
	Open     func() (io.ReadCloser, error)
	MimeType string
	Seekable bool
}

// Interface defines the output contract for dependency injection and
// testing. Exactly one component, the engine's driver, calls it.
type Interface interface {
	// Load attaches a source paused at startAt. Any previously loaded
	// source is stopped and released first.
	Load(src Source, startAt time.Duration) error
	Play()
	Pause()
	Stop()
	State() State
	Position() time.Duration
	Duration() time.Duration
	// Buffered reports how far ahead of the start the source is known
	// to be immediately playable.
	Buffered() time.Duration
	// SeekTo requests an absolute local seek. The request is processed
	// asynchronously; Position converges after the seek settles.
	SeekTo(pos time.Duration) error
	SetRate(r float64)
	// FinishedChan signals the natural end of the loaded source.
	FinishedChan() <-chan struct{}
	// ErrChan surfaces decode or stream failures during playback.
	ErrChan() <-chan error
}

// SupportedMimeTypes lists the formats the built-in decoder plays
// without server-side transcoding.
func SupportedMimeTypes() []string {
	return []string{"audio/mpeg", "audio/mp3", "audio/flac", "audio/x-flac"}
}
