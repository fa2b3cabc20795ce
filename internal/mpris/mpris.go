//go:build linux

package mpris

import (
	"fmt"
	"hash/fnv"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/quarckster/go-mpris-server/pkg/server"
	"github.com/quarckster/go-mpris-server/pkg/types"

	"github.com/Robertsaedal/RS-Audiobook-sub001/internal/engine"
	"github.com/Robertsaedal/RS-Audiobook-sub001/internal/output"
)

// Adapter exposes the playback engine to the desktop's media controls
// over D-Bus.
type Adapter struct {
	engine *engine.Engine
	server *server.Server
	done   chan struct{}
}

// New creates and starts a new MPRIS adapter.
func New(eng *engine.Engine) (*Adapter, error) {
	a := &Adapter{
		engine: eng,
		done:   make(chan struct{}),
	}

	rootAdapter := &rootAdapter{}
	playerAdapter := &playerAdapter{engine: eng}

	a.server = server.NewServer("hark", rootAdapter, playerAdapter)

	// Start the server in background
	go func() {
		_ = a.server.Listen()
	}()

	return a, nil
}

// Close stops the adapter and releases D-Bus resources.
func (a *Adapter) Close() error {
	close(a.done)
	return a.server.Stop()
}

// rootAdapter implements OrgMprisMediaPlayer2Adapter.
type rootAdapter struct{}

func (r *rootAdapter) Raise() error {
	return nil // Not supported
}

func (r *rootAdapter) Quit() error {
	return nil // Not supported - app manages its own lifecycle
}

func (r *rootAdapter) CanQuit() (bool, error) {
	return false, nil
}

func (r *rootAdapter) CanRaise() (bool, error) {
	return false, nil
}

func (r *rootAdapter) HasTrackList() (bool, error) {
	return false, nil // Track list interface not implemented
}

func (r *rootAdapter) Identity() (string, error) {
	return "Hark", nil
}

//nolint:revive // Method name required by interface.
func (r *rootAdapter) SupportedUriSchemes() ([]string, error) {
	return []string{"http", "https"}, nil
}

func (r *rootAdapter) SupportedMimeTypes() ([]string, error) {
	return output.SupportedMimeTypes(), nil
}

// playerAdapter implements OrgMprisMediaPlayer2PlayerAdapter. Next and
// Previous navigate chapters, which is what desktop skip buttons should
// mean for an audiobook.
type playerAdapter struct {
	engine *engine.Engine
}

func (p *playerAdapter) Next() error {
	p.engine.NextChapter()
	return nil
}

func (p *playerAdapter) Previous() error {
	p.engine.PreviousChapter()
	return nil
}

func (p *playerAdapter) Pause() error {
	p.engine.Pause()
	return nil
}

func (p *playerAdapter) PlayPause() error {
	p.engine.Toggle()
	return nil
}

func (p *playerAdapter) Stop() error {
	p.engine.Pause()
	return nil
}

func (p *playerAdapter) Play() error {
	p.engine.Play()
	return nil
}

func (p *playerAdapter) Seek(offset types.Microseconds) error {
	p.engine.Seek((time.Duration(offset) * time.Microsecond).Seconds())
	return nil
}

func (p *playerAdapter) SetPosition(_ string, position types.Microseconds) error {
	p.engine.SeekTo((time.Duration(position) * time.Microsecond).Seconds())
	return nil
}

//nolint:revive // Method name required by interface.
func (p *playerAdapter) OpenUri(_ string) error {
	return nil // Not supported
}

func (p *playerAdapter) PlaybackStatus() (types.PlaybackStatus, error) {
	switch p.engine.Status().State {
	case engine.StatePlaying:
		return types.PlaybackStatusPlaying, nil
	case engine.StatePaused, engine.StateReady, engine.StateSeeking:
		return types.PlaybackStatusPaused, nil
	default:
		return types.PlaybackStatusStopped, nil
	}
}

func (p *playerAdapter) Rate() (float64, error) {
	return p.engine.Status().Rate, nil
}

func (p *playerAdapter) SetRate(r float64) error {
	p.engine.SetRate(r)
	return nil
}

func (p *playerAdapter) Metadata() (types.Metadata, error) {
	st := p.engine.Status()
	if st.ItemID == "" {
		return types.Metadata{}, nil
	}

	meta := types.Metadata{
		TrackId: dbus.ObjectPath(formatTrackID(st.ItemID)),
		Length:  types.Microseconds(int64(st.Duration * 1e6)),
		Title:   st.DisplayTitle,
		Artist:  []string{st.DisplayAuthor},
	}
	if st.CurrentChapter != "" {
		meta.Album = st.CurrentChapter
	}
	return meta, nil
}

func (p *playerAdapter) Volume() (float64, error) {
	return 1.0, nil // Volume control not exposed via engine
}

func (p *playerAdapter) SetVolume(_ float64) error {
	return nil // Not supported
}

func (p *playerAdapter) Position() (int64, error) {
	return int64(p.engine.Status().CurrentTime * 1e6), nil
}

func (p *playerAdapter) MinimumRate() (float64, error) {
	return 0.5, nil
}

func (p *playerAdapter) MaximumRate() (float64, error) {
	return 3.0, nil
}

func (p *playerAdapter) CanGoNext() (bool, error) {
	return p.engine.Status().CurrentChapter != "", nil
}

func (p *playerAdapter) CanGoPrevious() (bool, error) {
	return p.engine.Status().CurrentChapter != "", nil
}

func (p *playerAdapter) CanPlay() (bool, error) {
	return p.engine.Status().State.IsActive(), nil
}

func (p *playerAdapter) CanPause() (bool, error) {
	return true, nil
}

func (p *playerAdapter) CanSeek() (bool, error) {
	return true, nil
}

func (p *playerAdapter) CanControl() (bool, error) {
	return true, nil
}

func formatTrackID(itemID string) string {
	h := fnv.New64a()
	h.Write([]byte(itemID))
	return fmt.Sprintf("/org/mpris/MediaPlayer2/Track/%x", h.Sum64())
}
