// Package hls attaches the engine to a server-transcoded continuous
// stream: manifest fetch and a sequential segment reader that presents
// the stream as one byte source.
package hls

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/grafov/m3u8"
)

// Segment is one entry of a media playlist, resolved to an absolute URL.
type Segment struct {
	URL      string
	Duration float64 // seconds
	Start    float64 // stream time where this segment begins
}

// Playlist is a fetched, resolved media playlist.
type Playlist struct {
	Segments []Segment
	Target   float64 // advertised target segment duration
	Total    float64 // summed duration of all segments
}

// FetchPlaylist downloads and parses an HLS media playlist. Master
// playlists are rejected: the server hands the client a single-rendition
// transcode, so there is nothing to pick between.
func FetchPlaylist(ctx context.Context, client *http.Client, manifestURL string) (*Playlist, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, manifestURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch manifest: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch manifest: status %d", resp.StatusCode)
	}

	parsed, listType, err := m3u8.DecodeFrom(resp.Body, true)
	if err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if listType != m3u8.MEDIA {
		return nil, fmt.Errorf("manifest is not a media playlist")
	}
	mediaPl := parsed.(*m3u8.MediaPlaylist)

	base, err := url.Parse(manifestURL)
	if err != nil {
		return nil, fmt.Errorf("parse manifest url: %w", err)
	}

	pl := &Playlist{Target: mediaPl.TargetDuration}
	var at float64
	for _, seg := range mediaPl.Segments {
		if seg == nil {
			continue
		}
		ref, err := url.Parse(seg.URI)
		if err != nil {
			return nil, fmt.Errorf("parse segment uri %q: %w", seg.URI, err)
		}
		pl.Segments = append(pl.Segments, Segment{
			URL:      base.ResolveReference(ref).String(),
			Duration: seg.Duration,
			Start:    at,
		})
		at += seg.Duration
	}
	pl.Total = at

	if len(pl.Segments) == 0 {
		return nil, fmt.Errorf("manifest has no segments")
	}
	return pl, nil
}

// SegmentAt returns the index of the segment containing stream time t,
// clamped into the playlist's range.
func (p *Playlist) SegmentAt(t float64) int {
	if t <= 0 {
		return 0
	}
	for n := len(p.Segments) - 1; n >= 0; n-- {
		if t >= p.Segments[n].Start {
			return n
		}
	}
	return 0
}
