package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// rangeReader adapts a remote file that supports HTTP range requests
// into an io.ReadSeekCloser, the shape the audio decoders want. Each
// seek drops the open body and the next read issues a fresh ranged GET,
// so sparse access stays cheap.
type rangeReader struct {
	client *http.Client
	url    string
	size   int64
	offset int64
	body   io.ReadCloser
}

// OpenRange probes the URL and returns a seekable reader over it.
// Fails when the server does not accept range requests, since seeking
// would then silently restart from zero.
func OpenRange(client *http.Client, rawURL string) (io.ReadSeekCloser, error) {
	resp, err := client.Head(rawURL)
	if err != nil {
		return nil, fmt.Errorf("probe media url: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("probe media url: status %d", resp.StatusCode)
	}
	if !strings.Contains(resp.Header.Get("Accept-Ranges"), "bytes") {
		return nil, errors.New("server does not support range requests")
	}
	return &rangeReader{client: client, url: rawURL, size: resp.ContentLength}, nil
}

func (r *rangeReader) Read(p []byte) (int, error) {
	if r.body == nil {
		if r.size >= 0 && r.offset >= r.size {
			return 0, io.EOF
		}
		req, err := http.NewRequest(http.MethodGet, r.url, http.NoBody)
		if err != nil {
			return 0, err
		}
		req.Header.Set("Range", "bytes="+strconv.FormatInt(r.offset, 10)+"-")
		resp, err := r.client.Do(req)
		if err != nil {
			return 0, fmt.Errorf("ranged get: %w", err)
		}
		if resp.StatusCode != http.StatusPartialContent && resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return 0, fmt.Errorf("ranged get: status %d", resp.StatusCode)
		}
		r.body = resp.Body
	}
	n, err := r.body.Read(p)
	r.offset += int64(n)
	return n, err
}

func (r *rangeReader) Seek(offset int64, whence int) (int64, error) {
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = r.offset + offset
	case io.SeekEnd:
		if r.size < 0 {
			return 0, errors.New("size unknown, cannot seek from end")
		}
		target = r.size + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if target < 0 {
		return 0, errors.New("negative seek position")
	}
	if target != r.offset && r.body != nil {
		r.body.Close()
		r.body = nil
	}
	r.offset = target
	return target, nil
}

func (r *rangeReader) Close() error {
	if r.body != nil {
		err := r.body.Close()
		r.body = nil
		return err
	}
	return nil
}
