package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_ContentURL(t *testing.T) {
	c := New("http://srv:1337/", "tok123")

	tests := []struct {
		name string
		path string
		want string
	}{
		{"plain path", "/hls/abc/file.mp3", "http://srv:1337/hls/abc/file.mp3?token=tok123"},
		{"path with query", "/stream?f=1", "http://srv:1337/stream?f=1&token=tok123"},
		{"absolute passthrough", "https://cdn/x.mp3", "https://cdn/x.mp3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.ContentURL(tt.path))
		})
	}
}

func TestClient_ContentURL_TokenRotation(t *testing.T) {
	c := New("http://srv", "old")
	first := c.ContentURL("/f.mp3")
	c.SetToken("new")
	second := c.ContentURL("/f.mp3")

	assert.Contains(t, first, "token=old")
	assert.Contains(t, second, "token=new")
}

func TestClient_MediaFetchesCarryNoOverallDeadline(t *testing.T) {
	c := New("http://srv", "tok")

	// http.Client.Timeout keeps running while a response body is read,
	// and a decoder drains an audio body at playback speed for minutes.
	// Media fetches therefore ride a client without one; only the API
	// client gets an overall deadline.
	assert.NotZero(t, c.httpClient.Timeout)
	assert.Zero(t, c.MediaClient().Timeout)
	assert.NotSame(t, c.httpClient, c.MediaClient())
}

func TestClient_MediaClientReadsPacedBody(t *testing.T) {
	// Dribble a body out across many write/flush cycles, the shape of a
	// decoder draining audio in real time.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fl := w.(http.Flusher)
		for i := 0; i < 16; i++ {
			_, _ = w.Write(make([]byte, 256))
			fl.Flush()
			time.Sleep(10 * time.Millisecond)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	resp, err := c.MediaClient().Get(srv.URL + "/media.mp3")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Len(t, body, 16*256)
}

func TestClient_OpenSession(t *testing.T) {
	var gotAuth string
	var gotReq PlaySessionRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/items/li_1/play", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		_ = json.NewEncoder(w).Encode(PlaySessionResponse{
			ID:            "sess_9",
			LibraryItemID: "li_1",
			PlayMethod:    PlayMethodDirect,
			CurrentTime:   42.5,
			AudioTracks: []audioTrackJSON{
				{Index: 0, StartOffset: 0, Duration: 600, ContentURL: "/f1.mp3", MimeType: "audio/mpeg"},
				{Index: 1, StartOffset: 600, Duration: 600, ContentURL: "/f2.mp3", MimeType: "audio/mpeg"},
			},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	resp, err := c.OpenSession(context.Background(), "li_1", PlaySessionRequest{
		DeviceInfo:         DeviceInfo{DeviceID: "dev1", ClientName: "audiobook-client"},
		SupportedMimeTypes: []string{"audio/mpeg", "audio/flac"},
		MediaPlayer:        "beep",
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, []string{"audio/mpeg", "audio/flac"}, gotReq.SupportedMimeTypes)
	assert.Equal(t, "sess_9", resp.ID)
	assert.Equal(t, 42.5, resp.CurrentTime)

	tracks := resp.Tracks()
	require.Len(t, tracks, 2)
	assert.Equal(t, 600.0, tracks[1].StartOffset)
}

func TestClient_SyncAndClose(t *testing.T) {
	var paths []string
	var payloads []SyncPayload

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p SyncPayload
		_ = json.NewDecoder(r.Body).Decode(&p)
		paths = append(paths, r.URL.Path)
		payloads = append(payloads, p)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	require.NoError(t, c.SyncSession(context.Background(), "s1", SyncPayload{TimeListened: 10, CurrentTime: 99}))
	require.NoError(t, c.CloseSession(context.Background(), "s1", SyncPayload{TimeListened: 3, CurrentTime: 105}))

	require.Equal(t, []string{"/api/session/s1/sync", "/api/session/s1/close"}, paths)
	assert.Equal(t, 10.0, payloads[0].TimeListened)
	assert.Equal(t, 105.0, payloads[1].CurrentTime)
}

func TestClient_GetItem(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/items/li_2", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"id": "li_2",
			"media": {
				"duration": 1200,
				"metadata": {"title": "A Book", "authorName": "Someone"},
				"chapters": [
					{"id": 0, "start": 0, "end": 600, "title": "One"},
					{"id": 1, "start": 600, "end": 1200, "title": "Two"}
				],
				"audioFiles": [
					{"index": 0, "startOffset": 0, "duration": 1200, "contentUrl": "/f.m4b", "mimeType": "audio/mp4"}
				]
			},
			"userMediaProgress": {"libraryItemId": "li_2", "currentTime": 300, "duration": 1200, "progress": 0.25}
		}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	item, err := c.GetItem(context.Background(), "li_2")
	require.NoError(t, err)

	assert.Equal(t, "A Book", item.Title)
	assert.Equal(t, 1200.0, item.Duration)
	require.Len(t, item.Chapters, 2)
	assert.Equal(t, 600.0, item.Chapters[1].Start)
	require.NotNil(t, item.Progress)
	assert.Equal(t, 300.0, item.ResumeTime())
	require.NoError(t, item.Chapters.Validate(item.Duration))
}

func TestClient_ErrorMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/items/gone":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "bad")

	_, err := c.GetItem(context.Background(), "gone")
	assert.True(t, errors.Is(err, ErrNotFound), "want ErrNotFound, got %v", err)

	_, err = c.GetItem(context.Background(), "any")
	assert.True(t, errors.Is(err, ErrUnauthorized), "want ErrUnauthorized, got %v", err)
}

func TestFeed_DeliversAndCloses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"u1","mediaProgress":[{"libraryItemId":"li_1","currentTime":12}]}`))
	}))
	defer srv.Close()

	feed := NewFeed(New(srv.URL, "tok"), time.Second)
	defer feed.Close()

	select {
	case batch := <-feed.Updates():
		require.Len(t, batch, 1)
		assert.Equal(t, "li_1", batch[0].ItemID)
		assert.Equal(t, 12.0, batch[0].CurrentTime)
	case <-time.After(3 * time.Second):
		t.Fatal("no progress batch arrived")
	}

	feed.Close()
	feed.Close() // idempotent

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, open := <-feed.Updates():
			if !open {
				return // channel closed as expected
			}
		case <-deadline:
			t.Fatal("updates channel never closed")
		}
	}
}
