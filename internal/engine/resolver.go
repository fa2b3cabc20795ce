package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/samber/lo"

	"github.com/Robertsaedal/RS-Audiobook-sub001/internal/media"
	"github.com/Robertsaedal/RS-Audiobook-sub001/internal/server"
)

// Error categories. Status.Err wraps exactly one of these, so observers
// can match with errors.Is without knowing the cause chain.
var (
	// ErrResolution means no playable source could be determined.
	ErrResolution = errors.New("could not resolve a playable source")
	// ErrSession means the server refused to open or continue a session.
	ErrSession = errors.New("server declined the playback session")
	// ErrPlayback means the decoder or stream failed mid-playback.
	ErrPlayback = errors.New("playback failed")
)

// SessionAPI is the remote protocol surface the engine consumes. It is
// satisfied by *server.Client; tests substitute a fake.
type SessionAPI interface {
	GetItem(ctx context.Context, itemID string) (*media.LibraryItem, error)
	OpenSession(ctx context.Context, itemID string, req server.PlaySessionRequest) (*server.PlaySessionResponse, error)
	SyncSession(ctx context.Context, sessionID string, p server.SyncPayload) error
	CloseSession(ctx context.Context, sessionID string, p server.SyncPayload) error
	ContentURL(path string) string
	MediaClient() *http.Client
}

// plan is the resolved playback session descriptor: delivery mode plus
// the validated segment list.
type plan struct {
	sessionID     string
	streaming     bool
	tracks        []media.AudioTrack
	resumeTime    float64
	displayTitle  string
	displayAuthor string
}

// resolve opens a remote session for the item and turns the response
// into a playable plan. The request advertises whatever the platform
// decoder plays directly; the server falls back to its transcoded
// continuous stream when the originals are not in that set.
func resolve(ctx context.Context, api SessionAPI, item *media.LibraryItem, device server.DeviceInfo, decodable []string) (*plan, error) {
	itemTypes := lo.Uniq(lo.Map(item.AudioFiles, func(t media.AudioTrack, _ int) string {
		return t.MimeType
	}))
	directPlayable := len(itemTypes) > 0 && lo.Every(decodable, itemTypes)

	resp, err := api.OpenSession(ctx, item.ID, server.PlaySessionRequest{
		DeviceInfo:         device,
		SupportedMimeTypes: decodable,
		MediaPlayer:        "beep",
		ForceDirectPlay:    directPlayable,
		ForceTranscode:     !directPlayable,
	})
	if err != nil {
		if errors.Is(err, server.ErrNotFound) || errors.Is(err, server.ErrUnauthorized) {
			return nil, fmt.Errorf("%w: %v", ErrSession, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrResolution, err)
	}

	p := &plan{
		sessionID:     resp.ID,
		streaming:     resp.PlayMethod == server.PlayMethodTranscode,
		tracks:        resp.Tracks(),
		resumeTime:    resp.CurrentTime,
		displayTitle:  resp.DisplayTitle,
		displayAuthor: resp.DisplayAuthor,
	}
	if len(p.tracks) == 0 {
		closeUnusable(api, resp.ID)
		return nil, fmt.Errorf("%w: session %s has no audio tracks", ErrSession, resp.ID)
	}
	if !p.streaming {
		if err := media.ValidateTracks(p.tracks); err != nil {
			closeUnusable(api, resp.ID)
			return nil, fmt.Errorf("%w: %v", ErrSession, err)
		}
	}
	return p, nil
}

// closeUnusable best-effort closes a session whose response could not
// be turned into a plan, so it never leaks on the server.
func closeUnusable(api SessionAPI, sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = api.CloseSession(ctx, sessionID, server.SyncPayload{})
}
