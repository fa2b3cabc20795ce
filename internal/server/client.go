// Package server is the HTTP client for the media server: playback
// session lifecycle (open/sync/close), item snapshots, the listening
// progress feed and playable URL construction.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Robertsaedal/RS-Audiobook-sub001/internal/media"
)

// ErrUnauthorized is returned when the server rejects the credential.
var ErrUnauthorized = errors.New("server rejected credentials")

// ErrNotFound is returned when the requested item or session is unknown
// to the server.
var ErrNotFound = errors.New("not found on server")

// Client talks to one media server on behalf of one user. API calls
// and media fetches ride separate http.Clients: JSON round-trips get an
// overall deadline, media bodies must not, because http.Client.Timeout
// keeps running while the body is read and a decoder drains an audio
// body at playback speed for minutes.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	mediaClient *http.Client
	log         *logrus.Entry

	mu    sync.RWMutex
	token string
}

// New creates a client for the given server address and API token.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		mediaClient: &http.Client{
			// No overall Timeout here; only the phases before the body
			// starts are bounded.
			Transport: &http.Transport{
				DialContext:           (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 30 * time.Second,
			},
		},
		log: logrus.WithField("component", "server"),
	}
}

// SetToken replaces the credential. Subsequent requests and content
// URLs pick it up immediately, so mid-session rotation needs no reload.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) currentToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// ContentURL builds the playable URL for a server content path. The
// shape base+path?token=... is a wire contract: any deviation fails on
// the server side, not here. The token is read fresh on every call.
func (c *Client) ContentURL(path string) string {
	if strings.Contains(path, "://") {
		return path // already absolute
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return c.baseURL + path + sep + "token=" + url.QueryEscape(c.currentToken())
}

// MediaClient exposes the deadline-free client for media byte fetches:
// range reads of audio files and transcode segments, which stay open
// for as long as the decoder takes to drain them.
func (c *Client) MediaClient() *http.Client {
	return c.mediaClient
}

// GetItem fetches the expanded item snapshot, including chapters, audio
// files and the caller's progress.
func (c *Client) GetItem(ctx context.Context, itemID string) (*media.LibraryItem, error) {
	var raw itemJSON
	endpoint := fmt.Sprintf("/api/items/%s?expanded=1&include=progress", url.PathEscape(itemID))
	if err := c.get(ctx, endpoint, &raw); err != nil {
		return nil, fmt.Errorf("get item %s: %w", itemID, err)
	}

	item := &media.LibraryItem{
		ID:         raw.ID,
		Title:      raw.Media.Metadata.Title,
		Author:     raw.Media.Metadata.AuthorName,
		Duration:   raw.Media.Duration,
		Chapters:   toChapters(raw.Media.Chapters),
		AudioFiles: toTracks(raw.Media.AudioFiles),
	}
	if raw.UserMediaProgress != nil {
		p := toProgress(*raw.UserMediaProgress)
		item.Progress = &p
	}
	return item, nil
}

// OpenSession starts a playback session for an item. The response
// carries the chosen delivery mode, the resolved track list and the
// authoritative resume position.
func (c *Client) OpenSession(ctx context.Context, itemID string, req PlaySessionRequest) (*PlaySessionResponse, error) {
	var resp PlaySessionResponse
	endpoint := fmt.Sprintf("/api/items/%s/play", url.PathEscape(itemID))
	if err := c.post(ctx, endpoint, req, &resp); err != nil {
		return nil, fmt.Errorf("open session for %s: %w", itemID, err)
	}
	c.log.WithFields(logrus.Fields{
		"session":     resp.ID,
		"play_method": resp.PlayMethod,
		"resume":      resp.CurrentTime,
		"tracks":      len(resp.AudioTracks),
	}).Debug("session opened")
	return &resp, nil
}

// SyncSession reports listened time and position for an open session.
// Best-effort: callers treat failures as non-fatal.
func (c *Client) SyncSession(ctx context.Context, sessionID string, p SyncPayload) error {
	endpoint := fmt.Sprintf("/api/session/%s/sync", url.PathEscape(sessionID))
	if err := c.post(ctx, endpoint, p, nil); err != nil {
		return fmt.Errorf("sync session %s: %w", sessionID, err)
	}
	return nil
}

// CloseSession closes a session, carrying the final listened time and
// position in the same call.
func (c *Client) CloseSession(ctx context.Context, sessionID string, p SyncPayload) error {
	endpoint := fmt.Sprintf("/api/session/%s/close", url.PathEscape(sessionID))
	if err := c.post(ctx, endpoint, p, nil); err != nil {
		return fmt.Errorf("close session %s: %w", sessionID, err)
	}
	c.log.WithField("session", sessionID).Debug("session closed")
	return nil
}

// MediaProgress fetches the caller's progress records for all items.
func (c *Client) MediaProgress(ctx context.Context) ([]media.Progress, error) {
	var raw meJSON
	if err := c.get(ctx, "/api/me", &raw); err != nil {
		return nil, fmt.Errorf("get progress: %w", err)
	}
	out := make([]media.Progress, len(raw.MediaProgress))
	for n, p := range raw.MediaProgress {
		out[n] = toProgress(p)
	}
	return out, nil
}

// Tracks converts the session's wire track list to media tracks.
func (r *PlaySessionResponse) Tracks() []media.AudioTrack {
	return toTracks(r.AudioTracks)
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, endpoint string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.currentToken())
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= 400:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("server status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func toChapters(in []chapterJSON) media.Chapters {
	out := make(media.Chapters, len(in))
	for n, ch := range in {
		out[n] = media.Chapter{ID: ch.ID, Start: ch.Start, End: ch.End, Title: ch.Title}
	}
	return out
}

func toTracks(in []audioTrackJSON) []media.AudioTrack {
	out := make([]media.AudioTrack, len(in))
	for n, t := range in {
		out[n] = media.AudioTrack{
			Index:       t.Index,
			StartOffset: t.StartOffset,
			Duration:    t.Duration,
			ContentURL:  t.ContentURL,
			MimeType:    t.MimeType,
		}
	}
	return out
}

func toProgress(p progressJSON) media.Progress {
	return media.Progress{
		ItemID:      p.LibraryItemID,
		CurrentTime: p.CurrentTime,
		Duration:    p.Duration,
		Progress:    p.Progress,
		IsFinished:  p.IsFinished,
		LastUpdate:  time.UnixMilli(p.LastUpdate),
	}
}
