package transfer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testBody = []byte("0123456789abcdefghijklmnopqrstuvwxyz")

func fastOpts() Options {
	return Options{RetryLimit: 3, BackoffUnit: time.Millisecond}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func TestFetch(t *testing.T) {
	assert := assert.New(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(testBody)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "0.mp4")
	var last, lastTotal int64
	opts := fastOpts()
	opts.Progress = func(current, total int64) {
		last, lastTotal = current, total
	}
	res, err := Fetch(context.Background(), srv.URL, dest, opts)
	require.NoError(t, err)
	assert.Equal(dest, res.Path)
	assert.Equal(int64(len(testBody)), res.Written)
	assert.Equal(int64(len(testBody)), last)
	assert.Equal(int64(len(testBody)), lastTotal)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(testBody, data)
}

func TestFetchResume(t *testing.T) {
	assert := assert.New(t)
	var gotRange string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRange = r.Header.Get("Range")
		if gotRange == "" {
			w.Write(testBody)
			return
		}
		var start int64
		fmt.Sscanf(gotRange, "bytes=%d-", &start)
		w.Header().Set("Content-Length", strconv.Itoa(len(testBody)-int(start)))
		w.WriteHeader(http.StatusPartialContent)
		w.Write(testBody[start:])
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "0.mp4")
	require.NoError(t, os.WriteFile(dest, testBody[:8], 0o644))

	var first int64 = -1
	opts := fastOpts()
	opts.Progress = func(current, total int64) {
		if first < 0 {
			first = current
		}
	}
	res, err := Fetch(context.Background(), srv.URL, dest, opts)
	require.NoError(t, err)
	assert.Equal("bytes=8-", gotRange)
	assert.Equal(int64(len(testBody)), res.Written)
	// Progress starts from the resumed position, not from zero.
	assert.GreaterOrEqual(first, int64(8))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(testBody, data)
}

func TestFetchRestartWhenRangeIgnored(t *testing.T) {
	assert := assert.New(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// A server that doesn't support ranges answers 200 with the full body.
		w.Write(testBody)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "0.mp4")
	require.NoError(t, os.WriteFile(dest, []byte("stale partial"), 0o644))

	res, err := Fetch(context.Background(), srv.URL, dest, fastOpts())
	require.NoError(t, err)
	assert.Equal(int64(len(testBody)), res.Written)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(testBody, data)
}

func TestFetchRetriesTransientErrors(t *testing.T) {
	assert := assert.New(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(testBody)
	}))
	defer srv.Close()

	var calls int32
	client := &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			return nil, errors.New("connection reset")
		}
		return http.DefaultTransport.RoundTrip(req)
	})}

	dest := filepath.Join(t.TempDir(), "0.mp4")
	opts := fastOpts()
	opts.Client = client
	res, err := Fetch(context.Background(), srv.URL, dest, opts)
	require.NoError(t, err)
	assert.Equal(int64(len(testBody)), res.Written)
	assert.Equal(int32(3), atomic.LoadInt32(&calls))
}

func TestFetchRetriesExhausted(t *testing.T) {
	assert := assert.New(t)
	var calls int32
	client := &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("connection reset")
	})}

	dest := filepath.Join(t.TempDir(), "0.mp4")
	opts := Options{Client: client, RetryLimit: 2, BackoffUnit: time.Millisecond}
	_, err := Fetch(context.Background(), "http://unreachable.invalid/v.mp4", dest, opts)
	require.Error(t, err)
	assert.Contains(err.Error(), "retries exhausted")
	// Initial attempt plus two retries.
	assert.Equal(int32(3), atomic.LoadInt32(&calls))
}

func TestFetchStatusErrorIsFatal(t *testing.T) {
	assert := assert.New(t)
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "0.mp4")
	_, err := Fetch(context.Background(), srv.URL, dest, fastOpts())
	require.Error(t, err)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(http.StatusNotFound, statusErr.Code)
	assert.Equal(int32(1), atomic.LoadInt32(&calls))
}

func TestFetchStaleRange(t *testing.T) {
	assert := assert.New(t)
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.Header.Get("Range") != "" {
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return
		}
		w.Write(testBody)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "0.mp4")
	require.NoError(t, os.WriteFile(dest, []byte("partial from an older remote file"), 0o644))

	res, err := Fetch(context.Background(), srv.URL, dest, fastOpts())
	require.NoError(t, err)
	assert.Equal(int64(len(testBody)), res.Written)
	// One 416, then one clean restart from zero.
	assert.Equal(int32(2), atomic.LoadInt32(&calls))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(testBody, data)
}

func TestFetchIncompleteBody(t *testing.T) {
	assert := assert.New(t)
	client := &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode:    http.StatusOK,
			ContentLength: 1000,
			Header:        http.Header{},
			Body:          io.NopCloser(bytes.NewReader(make([]byte, 900))),
			Request:       req,
		}, nil
	})}

	dest := filepath.Join(t.TempDir(), "0.mp4")
	opts := fastOpts()
	opts.Client = client
	_, err := Fetch(context.Background(), "http://example.com/v.mp4", dest, opts)
	require.Error(t, err)
	var integrityErr *IntegrityError
	require.True(t, errors.As(err, &integrityErr))
	assert.Equal(int64(1000), integrityErr.Expected)
	assert.Equal(int64(900), integrityErr.Written)

	// The partial stays on disk as a resume point.
	info, statErr := os.Stat(dest)
	require.NoError(t, statErr)
	assert.Equal(int64(900), info.Size())
}

func TestFetchCancelKeepsPartial(t *testing.T) {
	assert := assert.New(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000")
		w.Write([]byte("head"))
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dest := filepath.Join(t.TempDir(), "0.mp4")
	opts := fastOpts()
	opts.Progress = func(current, total int64) {
		cancel()
	}
	_, err := Fetch(ctx, srv.URL, dest, opts)
	require.ErrorIs(t, err, context.Canceled)

	info, statErr := os.Stat(dest)
	require.NoError(t, statErr)
	assert.Greater(info.Size(), int64(0))
}

func TestFetchContentDispositionRename(t *testing.T) {
	assert := assert.New(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="concert final.mp4"`)
		w.Write(testBody)
	}))
	defer srv.Close()

	dir := t.TempDir()
	res, err := Fetch(context.Background(), srv.URL, filepath.Join(dir, "0.mp4"), fastOpts())
	require.NoError(t, err)
	assert.Equal(filepath.Join(dir, "concert final.mp4"), res.Path)

	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(testBody, data)
}

func TestFetchContentDispositionCollision(t *testing.T) {
	assert := assert.New(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="photo.jpg"`)
		w.Write([]byte("body of " + r.URL.Path))
	}))
	defer srv.Close()

	dir := t.TempDir()
	first, err := Fetch(context.Background(), srv.URL+"/a", filepath.Join(dir, "0.jpg"), fastOpts())
	require.NoError(t, err)
	second, err := Fetch(context.Background(), srv.URL+"/b", filepath.Join(dir, "1.jpg"), fastOpts())
	require.NoError(t, err)

	// The first item wins the disposition name; the second keeps its
	// positional name instead of clobbering it.
	assert.Equal(filepath.Join(dir, "photo.jpg"), first.Path)
	assert.Equal(filepath.Join(dir, "1.jpg"), second.Path)

	data, err := os.ReadFile(first.Path)
	require.NoError(t, err)
	assert.Equal([]byte("body of /a"), data)
	data, err = os.ReadFile(second.Path)
	require.NoError(t, err)
	assert.Equal([]byte("body of /b"), data)
}

func TestFilenameFromResponse(t *testing.T) {
	assert := assert.New(t)
	for _, c := range []struct {
		header   string
		expected string
	}{
		{``, ""},
		{`attachment`, ""},
		{`attachment; filename="clip.mp4"`, "clip.mp4"},
		{`attachment; filename=clip.mp4`, "clip.mp4"},
		{`attachment; filename*=UTF-8''v%C3%ADdeo.mp4`, "vídeo.mp4"},
		// The encoded form wins over a plain one.
		{`attachment; filename="fallback.mp4"; filename*=UTF-8''real.mp4`, "real.mp4"},
		{`attachment; filename="../../etc/passwd"`, "_.._etc_passwd"},
	} {
		resp := &http.Response{Header: http.Header{}}
		if c.header != "" {
			resp.Header.Set("Content-Disposition", c.header)
		}
		assert.Equal(c.expected, filenameFromResponse(resp), c.header)
	}
}

func TestSanitizeFilename(t *testing.T) {
	assert := assert.New(t)
	assert.Equal("a_b_c", SanitizeFilename(`a/b\c`))
	assert.Equal("clip", SanitizeFilename("  clip. "))
	assert.Equal("what_now", SanitizeFilename(`what?now`))
	long := strings.Repeat("x", 300)
	assert.Len(SanitizeFilename(long), 255)
}
