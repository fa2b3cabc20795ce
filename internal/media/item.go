// Package media holds the data model shared between the server client
// and the playback engine: library items, chapters, audio tracks and
// listening progress. All times are book-global seconds unless a field
// says otherwise.
package media

import (
	"fmt"
	"math"
	"time"
)

// timeEpsilon absorbs rounding drift between a file's probed duration
// and the server's reported offsets.
const timeEpsilon = 0.1

// LibraryItem is an immutable snapshot of a book as served by the
// library. The engine copies it and never mutates the original.
type LibraryItem struct {
	ID         string
	Title      string
	Author     string
	Duration   float64 // total length in seconds
	Chapters   Chapters
	AudioFiles []AudioTrack
	Progress   *Progress // last known progress, nil if never played
}

// WithProgress returns a copy of the item carrying updated progress.
func (i *LibraryItem) WithProgress(p Progress) *LibraryItem {
	c := *i
	c.Progress = &p
	return &c
}

// ResumeTime returns the position playback should resume from.
func (i *LibraryItem) ResumeTime() float64 {
	if i.Progress == nil || i.Progress.IsFinished {
		return 0
	}
	return i.Progress.CurrentTime
}

// AudioTrack is one contiguous playable unit. In discrete delivery each
// track is one original audio file; in continuous delivery there is a
// single track with StartOffset 0 spanning the whole item.
type AudioTrack struct {
	Index       int
	StartOffset float64 // book-global seconds where this file begins
	Duration    float64
	ContentURL  string // server path, credential appended at load time
	MimeType    string
}

// EndOffset returns the book-global second where this track ends.
func (t AudioTrack) EndOffset() float64 {
	return t.StartOffset + t.Duration
}

// Contains reports whether global time tt falls inside this track's
// offset window [StartOffset, EndOffset).
func (t AudioTrack) Contains(tt float64) bool {
	return tt >= t.StartOffset && tt < t.EndOffset()
}

// ValidateTracks checks the discrete-mode contiguity invariant:
// tracks sorted by offset, first at 0, no gaps or overlaps between
// adjacent tracks.
func ValidateTracks(tracks []AudioTrack) error {
	if len(tracks) == 0 {
		return fmt.Errorf("empty track list")
	}
	if math.Abs(tracks[0].StartOffset) > timeEpsilon {
		return fmt.Errorf("track 0 starts at %.2fs, want 0", tracks[0].StartOffset)
	}
	for n := 0; n+1 < len(tracks); n++ {
		gap := tracks[n+1].StartOffset - tracks[n].EndOffset()
		if math.Abs(gap) > timeEpsilon {
			return fmt.Errorf("track %d ends at %.2fs but track %d starts at %.2fs",
				tracks[n].Index, tracks[n].EndOffset(), tracks[n+1].Index, tracks[n+1].StartOffset)
		}
	}
	return nil
}

// TrackFor returns the index of the track whose offset window contains
// global time tt. Times at or past the end of the last track map to the
// last track so that seeks to the exact total duration stay valid.
func TrackFor(tracks []AudioTrack, tt float64) int {
	if len(tracks) == 0 {
		return -1
	}
	for n := range tracks {
		if tracks[n].Contains(tt) {
			return n
		}
	}
	if tt < tracks[0].StartOffset {
		return 0
	}
	return len(tracks) - 1
}

// Progress is the remote listening-progress record for one item.
type Progress struct {
	ItemID      string
	CurrentTime float64
	Duration    float64
	Progress    float64 // 0..1 fraction
	IsFinished  bool
	LastUpdate  time.Time
}
