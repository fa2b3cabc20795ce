package media

import (
	"fmt"
	"math"
	"sort"
)

// Chapter is one entry of an item's chapter map, in book-global seconds.
type Chapter struct {
	ID    int
	Start float64
	End   float64
	Title string
}

// Chapters is a sorted, immutable view of an item's chapter boundaries.
// It is recomputed only when the active item changes; the engine treats
// it as a pure lookup structure.
type Chapters []Chapter

// Locate returns the index of the chapter containing global time t.
// Intervals are half-open [start, next.start); the final chapter's
// interval is closed at its end. Returns false when t falls outside
// [0, last.End].
func (c Chapters) Locate(t float64) (int, bool) {
	if len(c) == 0 || t < c[0].Start {
		return 0, false
	}
	last := len(c) - 1
	if t > c[last].End {
		return 0, false
	}
	if t >= c[last].Start {
		return last, true
	}
	// First chapter whose successor starts after t.
	n := sort.Search(last, func(n int) bool { return c[n+1].Start > t })
	return n, true
}

// BoundaryAfter returns the end time of the chapter n-1 chapters ahead
// of the one containing t, clamped to the last chapter when n
// overshoots. n counts boundaries still to cross: BoundaryAfter(t, 1)
// is the end of the current chapter.
func (c Chapters) BoundaryAfter(t float64, n int) (float64, bool) {
	if n < 1 {
		n = 1
	}
	cur, ok := c.Locate(t)
	if !ok {
		return 0, false
	}
	target := cur + n - 1
	if target >= len(c) {
		target = len(c) - 1
	}
	return c[target].End, true
}

// Validate checks the chapter-map invariants: ascending, contiguous,
// non-overlapping, and ending at the item duration within epsilon.
func (c Chapters) Validate(duration float64) error {
	if len(c) == 0 {
		return nil
	}
	if math.Abs(c[0].Start) > timeEpsilon {
		return fmt.Errorf("chapter 0 starts at %.2fs, want 0", c[0].Start)
	}
	for n, ch := range c {
		if ch.End <= ch.Start {
			return fmt.Errorf("chapter %d has non-positive span %.2f..%.2f", n, ch.Start, ch.End)
		}
		if n+1 < len(c) && math.Abs(c[n+1].Start-ch.End) > timeEpsilon {
			return fmt.Errorf("chapter %d ends at %.2fs but chapter %d starts at %.2fs",
				n, ch.End, n+1, c[n+1].Start)
		}
	}
	if duration > 0 && math.Abs(c[len(c)-1].End-duration) > timeEpsilon {
		return fmt.Errorf("last chapter ends at %.2fs, item duration is %.2fs",
			c[len(c)-1].End, duration)
	}
	return nil
}
