package engine

import (
	"testing"
	"time"

	"github.com/Robertsaedal/RS-Audiobook-sub001/internal/media"
)

func twoTracks() []media.AudioTrack {
	return []media.AudioTrack{
		{Index: 0, StartOffset: 0, Duration: 600, ContentURL: "/t0.mp3", MimeType: "audio/mpeg"},
		{Index: 1, StartOffset: 600, Duration: 600, ContentURL: "/t1.mp3", MimeType: "audio/mpeg"},
	}
}

func TestSegmentedTranslation(t *testing.T) {
	s := newSegmented(twoTracks())

	if got := s.global(0, 590*time.Second); got != 590 {
		t.Errorf("global(0, 590) = %f, want 590", got)
	}
	if got := s.global(1, 50*time.Second); got != 650 {
		t.Errorf("global(1, 50) = %f, want 650", got)
	}

	seg, local := s.locate(650)
	if seg != 1 || local != 50*time.Second {
		t.Errorf("locate(650) = (%d, %v), want (1, 50s)", seg, local)
	}
	seg, local = s.locate(600)
	if seg != 1 || local != 0 {
		t.Errorf("locate(600) = (%d, %v), want (1, 0)", seg, local)
	}
}

func TestSegmentedAdvance(t *testing.T) {
	s := newSegmented(twoTracks())
	if next, ok := s.advance(0); !ok || next != 1 {
		t.Errorf("advance(0) = (%d, %v), want (1, true)", next, ok)
	}
	if _, ok := s.advance(1); ok {
		t.Error("advance past the last segment must report end")
	}
	if s.streaming() {
		t.Error("segmented strategy reports streaming")
	}
}

func TestContinuousTranslation(t *testing.T) {
	c := newContinuous(media.AudioTrack{Duration: 1200, ContentURL: "/hls/out.m3u8"}, 498)

	if got := c.global(0, 2*time.Second); got != 500 {
		t.Errorf("global with base 498 = %f, want 500", got)
	}
	seg, local := c.locate(510)
	if seg != 0 || local != 12*time.Second {
		t.Errorf("locate(510) = (%d, %v), want (0, 12s)", seg, local)
	}
	if _, ok := c.advance(0); ok {
		t.Error("a continuous stream has nothing to advance to")
	}
	if !c.streaming() {
		t.Error("continuous strategy must report streaming")
	}
}
