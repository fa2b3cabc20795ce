package output

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
)

// Verify Output implements Interface at compile time.
var _ Interface = (*Output)(nil)

var (
	speakerOnce sync.Once
	speakerRate beep.SampleRate
	speakerErr  error
)

// Output is the beep-backed audio output. The speaker is initialized
// once at the first load's sample rate; later sources at other rates
// are resampled to it.
type Output struct {
	mu sync.Mutex

	state    State
	ctrl     *beep.Ctrl
	resamp   *beep.Resampler
	streamer beep.StreamSeekCloser
	closer   io.Closer
	format   beep.Format
	seekable bool
	rate     float64
	baseRate float64 // format rate / speaker rate

	seekCh     chan time.Duration
	finishedCh chan struct{}
	errCh      chan error
}

// New creates a stopped output at normal playback rate.
func New() *Output {
	o := &Output{
		state:      Stopped,
		rate:       1.0,
		seekCh:     make(chan time.Duration, 1),
		finishedCh: make(chan struct{}, 1),
		errCh:      make(chan error, 1),
	}
	go o.seekLoop()
	return o
}

// Load attaches a source paused at startAt.
func (o *Output) Load(src Source, startAt time.Duration) error {
	o.Stop()

	rc, err := src.Open()
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}

	var streamer beep.StreamSeekCloser
	var format beep.Format
	switch src.MimeType {
	case "audio/mpeg", "audio/mp3":
		streamer, format, err = mp3.Decode(rc)
	case "audio/flac", "audio/x-flac":
		streamer, format, err = flac.Decode(rc)
	default:
		rc.Close()
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, src.MimeType)
	}
	if err != nil {
		rc.Close()
		return fmt.Errorf("decode %s: %w", src.MimeType, err)
	}

	speakerOnce.Do(func() {
		speakerRate = format.SampleRate
		speakerErr = speaker.Init(speakerRate, speakerRate.N(time.Second/10))
	})
	if speakerErr != nil {
		streamer.Close()
		rc.Close()
		return fmt.Errorf("init speaker: %w", speakerErr)
	}

	if startAt > 0 && src.Seekable {
		if err := streamer.Seek(format.SampleRate.N(startAt)); err != nil {
			streamer.Close()
			rc.Close()
			return fmt.Errorf("seek to %s: %w", startAt, err)
		}
	}

	o.mu.Lock()
	o.streamer = streamer
	o.closer = rc
	o.format = format
	o.seekable = src.Seekable
	o.baseRate = float64(format.SampleRate) / float64(speakerRate)
	o.resamp = beep.ResampleRatio(4, o.baseRate*o.rate, streamer)
	o.ctrl = &beep.Ctrl{Streamer: o.resamp, Paused: true}
	o.state = Paused
	ctrl := o.ctrl
	o.mu.Unlock()

	speaker.Play(beep.Seq(ctrl, beep.Callback(func() {
		o.onStreamEnd(ctrl)
	})))
	return nil
}

// onStreamEnd runs when the attached sequence drains. Distinguishes a
// natural end from a mid-stream decode failure, and ignores callbacks
// from sources that were already replaced.
func (o *Output) onStreamEnd(ctrl *beep.Ctrl) {
	o.mu.Lock()
	stale := o.ctrl != ctrl
	var streamErr error
	if !stale && o.streamer != nil {
		streamErr = o.streamer.Err()
	}
	o.mu.Unlock()
	if stale {
		return
	}

	if streamErr != nil {
		select {
		case o.errCh <- streamErr:
		default:
		}
		return
	}
	select {
	case o.finishedCh <- struct{}{}:
	default:
	}
}

// Play starts or resumes playback.
func (o *Output) Play() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != Paused || o.ctrl == nil {
		return
	}
	speaker.Lock()
	o.ctrl.Paused = false
	speaker.Unlock()
	o.state = Playing
}

// Pause pauses playback.
func (o *Output) Pause() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != Playing || o.ctrl == nil {
		return
	}
	speaker.Lock()
	o.ctrl.Paused = true
	speaker.Unlock()
	o.state = Paused
}

// Stop stops playback and releases the source.
func (o *Output) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == Stopped {
		return
	}
	speaker.Clear()
	if o.streamer != nil {
		o.streamer.Close()
		o.streamer = nil
	}
	if o.closer != nil {
		o.closer.Close()
		o.closer = nil
	}
	o.ctrl = nil
	o.resamp = nil
	o.state = Stopped
}

// State returns the current output state.
func (o *Output) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Position returns the local playback position of the loaded source.
func (o *Output) Position() time.Duration {
	o.mu.Lock()
	streamer, format := o.streamer, o.format
	o.mu.Unlock()
	if streamer == nil {
		return 0
	}
	speaker.Lock()
	pos := format.SampleRate.D(streamer.Position())
	speaker.Unlock()
	return pos
}

// Duration returns the loaded source's length, 0 when unknown (live
// transcoded streams).
func (o *Output) Duration() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.streamer == nil || !o.seekable {
		return 0
	}
	return o.format.SampleRate.D(o.streamer.Len())
}

// Buffered reports the immediately playable extent: the whole file for
// random-access sources, the decoded-so-far position for streams.
func (o *Output) Buffered() time.Duration {
	if o.seekableNow() {
		return o.Duration()
	}
	return o.Position()
}

func (o *Output) seekableNow() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.streamer != nil && o.seekable
}

// SeekTo requests an absolute local seek. Requests are coalesced: only
// the most recent pending target is applied.
func (o *Output) SeekTo(pos time.Duration) error {
	o.mu.Lock()
	loaded := o.streamer != nil
	seekable := o.seekable
	o.mu.Unlock()
	if !loaded {
		return nil
	}
	if !seekable {
		return ErrNotSeekable
	}

	select {
	case o.seekCh <- pos:
	default:
		select {
		case <-o.seekCh:
		default:
		}
		select {
		case o.seekCh <- pos:
		default:
		}
	}
	return nil
}

// seekLoop processes seek requests sequentially off the caller's
// goroutine, so the event loop never blocks on the speaker.
func (o *Output) seekLoop() {
	for pos := range o.seekCh {
		o.doSeek(pos)
	}
}

func (o *Output) doSeek(pos time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.streamer == nil || o.state == Stopped {
		return
	}

	target := o.format.SampleRate.N(pos)
	speaker.Lock()
	maxPos := o.streamer.Len()
	if target >= maxPos {
		target = maxPos - 1
	}
	target = max(target, 0)
	_ = o.streamer.Seek(target)
	speaker.Unlock()
}

// SetRate changes the playback speed multiplier.
func (o *Output) SetRate(r float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rate = r
	if o.resamp == nil {
		return
	}
	speaker.Lock()
	o.resamp.SetRatio(o.baseRate * r)
	speaker.Unlock()
}

// FinishedChan signals natural end of the loaded source.
func (o *Output) FinishedChan() <-chan struct{} {
	return o.finishedCh
}

// ErrChan surfaces decode failures during playback.
func (o *Output) ErrChan() <-chan error {
	return o.errCh
}
