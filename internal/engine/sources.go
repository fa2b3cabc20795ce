package engine

import (
	"context"
	"fmt"
	"io"

	"github.com/Robertsaedal/RS-Audiobook-sub001/internal/hls"
	"github.com/Robertsaedal/RS-Audiobook-sub001/internal/media"
	"github.com/Robertsaedal/RS-Audiobook-sub001/internal/output"
	"github.com/Robertsaedal/RS-Audiobook-sub001/internal/server"
)

// fileSourceFunc builds an output source for one discrete audio file.
type fileSourceFunc func(api SessionAPI, t media.AudioTrack) output.Source

// streamSourceFunc builds an output source for the continuous stream,
// positioned at (or just before) startGlobal. The returned base is the
// book-global time at which the stream's local clock starts.
type streamSourceFunc func(ctx context.Context, api SessionAPI, t media.AudioTrack, startGlobal float64) (output.Source, float64, error)

// defaultFileSource streams a single audio file over HTTP with range
// requests, which is what makes local seeking inside a segment work.
// ContentURL is resolved inside Open so a rotated token takes effect on
// the next segment load.
func defaultFileSource(api SessionAPI, t media.AudioTrack) output.Source {
	return output.Source{
		Open: func() (io.ReadCloser, error) {
			return server.OpenRange(api.MediaClient(), api.ContentURL(t.ContentURL))
		},
		MimeType: t.MimeType,
		Seekable: true,
	}
}

// defaultStreamSource fetches the transcode manifest and opens the
// stream at the segment containing startGlobal. The stream itself is
// not seekable; coarse positioning happens by picking the first
// segment, which is why base can land slightly before startGlobal.
func defaultStreamSource(ctx context.Context, api SessionAPI, t media.AudioTrack, startGlobal float64) (output.Source, float64, error) {
	pl, err := hls.FetchPlaylist(ctx, api.MediaClient(), api.ContentURL(t.ContentURL))
	if err != nil {
		return output.Source{}, 0, fmt.Errorf("fetch stream manifest: %w", err)
	}
	if len(pl.Segments) == 0 {
		return output.Source{}, 0, fmt.Errorf("stream manifest has no segments")
	}
	first := pl.SegmentAt(startGlobal)
	base := pl.Segments[first].Start
	mime := t.MimeType
	if mime == "" {
		mime = "audio/mpeg"
	}
	src := output.Source{
		Open: func() (io.ReadCloser, error) {
			return hls.NewStream(api.MediaClient(), pl, first), nil
		},
		MimeType: mime,
		Seekable: false,
	}
	return src, base, nil
}
