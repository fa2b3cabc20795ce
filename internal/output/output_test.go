package output

import (
	"errors"
	"testing"
	"time"
)

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{Stopped, "Stopped"},
		{Playing, "Playing"},
		{Paused, "Paused"},
		{State(42), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestState_IsActive(t *testing.T) {
	if Stopped.IsActive() {
		t.Error("Stopped should not be active")
	}
	if !Playing.IsActive() || !Paused.IsActive() {
		t.Error("Playing and Paused should be active")
	}
}

func TestMock_LoadLeavesPaused(t *testing.T) {
	m := NewMock()
	if err := m.Load(Source{MimeType: "audio/mpeg"}, 30*time.Second); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.State() != Paused {
		t.Errorf("state after Load = %v, want Paused", m.State())
	}
	if m.Position() != 30*time.Second {
		t.Errorf("position after Load = %v, want 30s", m.Position())
	}
}

func TestMock_PlayPause(t *testing.T) {
	m := NewMock()
	_ = m.Load(Source{}, 0)

	m.Play()
	if m.State() != Playing {
		t.Fatalf("state = %v, want Playing", m.State())
	}
	m.Pause()
	if m.State() != Paused {
		t.Fatalf("state = %v, want Paused", m.State())
	}

	// Play from Stopped is a no-op.
	m.Stop()
	m.Play()
	if m.State() != Stopped {
		t.Errorf("Play from Stopped moved state to %v", m.State())
	}
}

func TestMock_SeekToNonSeekable(t *testing.T) {
	m := NewMock()
	_ = m.Load(Source{}, 0)
	m.SetSeekable(false)

	err := m.SeekTo(time.Minute)
	if !errors.Is(err, ErrNotSeekable) {
		t.Errorf("SeekTo on non-seekable = %v, want ErrNotSeekable", err)
	}
}

func TestMock_SimulateFinished(t *testing.T) {
	m := NewMock()
	m.SimulateFinished()
	select {
	case <-m.FinishedChan():
	default:
		t.Error("FinishedChan should have a pending signal")
	}
}

func TestSupportedMimeTypes(t *testing.T) {
	types := SupportedMimeTypes()
	if len(types) == 0 {
		t.Fatal("no supported mime types")
	}
	found := false
	for _, mt := range types {
		if mt == "audio/mpeg" {
			found = true
		}
	}
	if !found {
		t.Error("audio/mpeg missing from supported types")
	}
}
