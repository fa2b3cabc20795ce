package engine

import (
	"time"

	"github.com/Robertsaedal/RS-Audiobook-sub001/internal/media"
)

// strategy hides the two timing models behind one translation surface.
// The driver's state machine calls only this interface and never
// branches on delivery mode.
type strategy interface {
	// global translates an output-local position within segment seg to
	// book-global seconds.
	global(seg int, local time.Duration) float64
	// locate translates a book-global target to the segment containing
	// it and the local position inside that segment.
	locate(global float64) (seg int, local time.Duration)
	// advance returns the segment following seg, false when seg is the
	// last one.
	advance(seg int) (int, bool)
	// track returns the playable descriptor for a segment.
	track(seg int) media.AudioTrack
	// streaming reports continuous delivery.
	streaming() bool
}

// segmented is the discrete-file timing model: N contiguous tracks,
// each with its own local time origin.
type segmented struct {
	tracks []media.AudioTrack
}

func newSegmented(tracks []media.AudioTrack) *segmented {
	return &segmented{tracks: tracks}
}

func (s *segmented) global(seg int, local time.Duration) float64 {
	return s.tracks[seg].StartOffset + local.Seconds()
}

func (s *segmented) locate(global float64) (int, time.Duration) {
	seg := media.TrackFor(s.tracks, global)
	local := global - s.tracks[seg].StartOffset
	if local < 0 {
		local = 0
	}
	return seg, time.Duration(local * float64(time.Second))
}

func (s *segmented) advance(seg int) (int, bool) {
	if seg+1 < len(s.tracks) {
		return seg + 1, true
	}
	return seg, false
}

func (s *segmented) track(seg int) media.AudioTrack { return s.tracks[seg] }

func (s *segmented) streaming() bool { return false }

// continuous is the single-stream timing model. The conceptual track
// offset is always zero; base shifts the local origin when the stream
// has been restarted mid-book after a coarse seek.
type continuous struct {
	t    media.AudioTrack
	base float64
}

func newContinuous(t media.AudioTrack, base float64) *continuous {
	return &continuous{t: t, base: base}
}

func (c *continuous) global(_ int, local time.Duration) float64 {
	return c.base + local.Seconds()
}

func (c *continuous) locate(global float64) (int, time.Duration) {
	local := global - c.base
	if local < 0 {
		local = 0
	}
	return 0, time.Duration(local * float64(time.Second))
}

func (c *continuous) advance(int) (int, bool) { return 0, false }

func (c *continuous) track(int) media.AudioTrack { return c.t }

func (c *continuous) streaming() bool { return true }
