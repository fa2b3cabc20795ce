package hls

import (
	"fmt"
	"io"
	"net/http"
	"sync"
)

// Stream reads a playlist's segments in order and presents them as one
// continuous byte stream. One segment is fetched ahead of the one being
// read; lookahead never grows beyond that, so a paused listener does
// not pull the whole transcode down.
type Stream struct {
	client *http.Client

	mu      sync.Mutex
	pending []Segment
	cur     io.ReadCloser
	ahead   *prefetched
	closed  bool
}

type prefetched struct {
	body io.ReadCloser
	err  error
}

// NewStream starts reading the playlist at segment index first.
func NewStream(client *http.Client, pl *Playlist, first int) *Stream {
	if first < 0 {
		first = 0
	}
	if first > len(pl.Segments) {
		first = len(pl.Segments)
	}
	return &Stream{
		client:  client,
		pending: append([]Segment(nil), pl.Segments[first:]...),
	}
}

func (s *Stream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		if s.closed {
			return 0, io.ErrClosedPipe
		}
		if s.cur == nil {
			if err := s.nextLocked(); err != nil {
				return 0, err
			}
		}
		n, err := s.cur.Read(p)
		if err == io.EOF {
			s.cur.Close()
			s.cur = nil
			if n > 0 {
				return n, nil
			}
			continue // roll into the next segment
		}
		return n, err
	}
}

// nextLocked promotes the prefetched segment (or fetches the head of
// the queue) and kicks off the next prefetch.
func (s *Stream) nextLocked() error {
	if s.ahead != nil {
		pf := s.ahead
		s.ahead = nil
		if pf.err != nil {
			return pf.err
		}
		s.cur = pf.body
	} else {
		if len(s.pending) == 0 {
			return io.EOF
		}
		seg := s.pending[0]
		s.pending = s.pending[1:]
		body, err := s.fetch(seg)
		if err != nil {
			return err
		}
		s.cur = body
	}

	if len(s.pending) > 0 {
		seg := s.pending[0]
		s.pending = s.pending[1:]
		body, err := s.fetch(seg)
		s.ahead = &prefetched{body: body, err: err}
	}
	return nil
}

func (s *Stream) fetch(seg Segment) (io.ReadCloser, error) {
	resp, err := s.client.Get(seg.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch segment: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch segment: status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// Close releases the open and prefetched segment bodies.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.cur != nil {
		s.cur.Close()
		s.cur = nil
	}
	if s.ahead != nil && s.ahead.body != nil {
		s.ahead.body.Close()
		s.ahead = nil
	}
	s.pending = nil
	return nil
}
