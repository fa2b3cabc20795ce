package media

import "testing"

func twoTracks() []AudioTrack {
	return []AudioTrack{
		{Index: 0, StartOffset: 0, Duration: 600, ContentURL: "/hls/a/file1.mp3", MimeType: "audio/mpeg"},
		{Index: 1, StartOffset: 600, Duration: 600, ContentURL: "/hls/a/file2.mp3", MimeType: "audio/mpeg"},
	}
}

func TestValidateTracks(t *testing.T) {
	if err := ValidateTracks(twoTracks()); err != nil {
		t.Errorf("contiguous tracks rejected: %v", err)
	}

	if err := ValidateTracks(nil); err == nil {
		t.Error("empty track list should be rejected")
	}

	gapped := twoTracks()
	gapped[1].StartOffset = 601
	if err := ValidateTracks(gapped); err == nil {
		t.Error("gap between tracks not detected")
	}

	late := twoTracks()
	late[0].StartOffset = 5
	late[1].StartOffset = 605
	if err := ValidateTracks(late); err == nil {
		t.Error("nonzero first offset not detected")
	}
}

func TestValidateTracks_EpsilonDrift(t *testing.T) {
	tracks := twoTracks()
	tracks[1].StartOffset = 600.05 // probe rounding
	if err := ValidateTracks(tracks); err != nil {
		t.Errorf("sub-epsilon drift rejected: %v", err)
	}
}

func TestTrackFor(t *testing.T) {
	tracks := twoTracks()

	tests := []struct {
		t    float64
		want int
	}{
		{0, 0},
		{599.9, 0},
		{600, 1},
		{1199, 1},
		{1200, 1}, // exact end maps to last track
		{-3, 0},
	}
	for _, tt := range tests {
		if got := TrackFor(tracks, tt.t); got != tt.want {
			t.Errorf("TrackFor(%v) = %d, want %d", tt.t, got, tt.want)
		}
	}

	if got := TrackFor(nil, 0); got != -1 {
		t.Errorf("TrackFor(nil) = %d, want -1", got)
	}
}

func TestLibraryItem_ResumeTime(t *testing.T) {
	item := &LibraryItem{ID: "li_1", Duration: 1200}
	if got := item.ResumeTime(); got != 0 {
		t.Errorf("ResumeTime with no progress = %v, want 0", got)
	}

	with := item.WithProgress(Progress{ItemID: "li_1", CurrentTime: 451.5})
	if got := with.ResumeTime(); got != 451.5 {
		t.Errorf("ResumeTime = %v, want 451.5", got)
	}
	if item.Progress != nil {
		t.Error("WithProgress mutated the original item")
	}

	finished := item.WithProgress(Progress{ItemID: "li_1", CurrentTime: 1200, IsFinished: true})
	if got := finished.ResumeTime(); got != 0 {
		t.Errorf("ResumeTime on finished item = %v, want 0", got)
	}
}
