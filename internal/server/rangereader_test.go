package server

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serveRange implements just enough byte-range semantics for the test.
func serveRange(w http.ResponseWriter, r *http.Request, content []byte) {
	w.Header().Set("Accept-Ranges", "bytes")
	if r.Method == http.MethodHead {
		w.Header().Set("Content-Length", fmt.Sprint(len(content)))
		return
	}
	rng := r.Header.Get("Range")
	if rng == "" {
		_, _ = w.Write(content)
		return
	}
	var start int64
	if _, err := fmt.Sscanf(rng, "bytes=%d-", &start); err != nil || start >= int64(len(content)) {
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return
	}
	w.WriteHeader(http.StatusPartialContent)
	_, _ = w.Write(content[start:])
}

func TestOpenRange_ReadAndSeek(t *testing.T) {
	content := []byte("0123456789abcdef")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		serveRange(w, r, content)
	}))
	defer srv.Close()

	rs, err := OpenRange(srv.Client(), srv.URL)
	require.NoError(t, err)
	defer rs.Close()

	buf := make([]byte, 4)
	_, err = io.ReadFull(rs, buf)
	require.NoError(t, err)
	assert.Equal(t, "0123", string(buf))

	pos, err := rs.Seek(10, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, int64(10), pos)

	_, err = io.ReadFull(rs, buf)
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(buf))

	pos, err = rs.Seek(-2, io.SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(14), pos)

	rest, err := io.ReadAll(rs)
	require.NoError(t, err)
	assert.Equal(t, "ef", string(rest))
}

func TestOpenRange_SeekPastEndReadsEOF(t *testing.T) {
	content := []byte("0123456789")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		serveRange(w, r, content)
	}))
	defer srv.Close()

	rs, err := OpenRange(srv.Client(), srv.URL)
	require.NoError(t, err)
	defer rs.Close()

	_, err = rs.Seek(100, io.SeekStart)
	require.NoError(t, err)

	_, err = rs.Read(make([]byte, 4))
	assert.Equal(t, io.EOF, err)
}

func TestOpenRange_RejectsNonRangeServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, err := OpenRange(srv.Client(), srv.URL)
	require.Error(t, err)
}
