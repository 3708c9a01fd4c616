package stream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
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

type delivery struct {
	data  []byte
	total int64
}

func record(t *testing.T, src Source) ([]delivery, error) {
	t.Helper()
	var got []delivery
	err := src.Stream(context.Background(), func(chunk []byte, total int64) error {
		got = append(got, delivery{data: append([]byte(nil), chunk...), total: total})
		return nil
	})
	return got, err
}

func joined(ds []delivery) []byte {
	var buf bytes.Buffer
	for _, d := range ds {
		buf.Write(d.data)
	}
	return buf.Bytes()
}

func payload(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i * 7)
	}
	return b
}

func serveContent(data []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "cloud.bin", time.Time{}, bytes.NewReader(data))
	}
}

func TestReaderSource(t *testing.T) {
	data := payload(1000)
	got, err := record(t, NewReaderSource(bytes.NewReader(data), int64(len(data)), 300))
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, data, joined(got))
	for _, d := range got {
		assert.Equal(t, int64(1000), d.total)
		assert.LessOrEqual(t, len(d.data), 300)
	}
}

func TestReaderSourceCallbackError(t *testing.T) {
	stop := errors.New("stop")
	calls := 0
	err := NewReaderSource(bytes.NewReader(payload(100)), UnknownSize, 10).Stream(context.Background(),
		func([]byte, int64) error {
			calls++
			return stop
		})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestReaderSourceCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	calls := 0
	err := NewReaderSource(bytes.NewReader(payload(100)), UnknownSize, 10).Stream(ctx,
		func([]byte, int64) error {
			calls++
			cancel()
			return nil
		})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestFileSource(t *testing.T) {
	data := payload(5000)
	path := filepath.Join(t.TempDir(), "cloud.bin")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	got, err := record(t, NewFileSource(path, 1024))
	require.NoError(t, err)
	assert.Equal(t, data, joined(got))
	assert.Equal(t, int64(5000), got[0].total)

	_, err = record(t, NewFileSource(filepath.Join(t.TempDir(), "missing.bin"), 1024))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestHTTPSource(t *testing.T) {
	data := payload(4096)
	srv := httptest.NewServer(serveContent(data))
	defer srv.Close()

	got, err := record(t, NewHTTPSource(srv.URL, 1000, srv.Client()))
	require.NoError(t, err)
	assert.Equal(t, data, joined(got))
	for _, d := range got {
		assert.Equal(t, int64(4096), d.total)
	}
}

func TestHTTPSourceUnknownLength(t *testing.T) {
	data := payload(3000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for off := 0; off < len(data); off += 1000 {
			w.Write(data[off : off+1000])
			w.(http.Flusher).Flush()
		}
	}))
	defer srv.Close()

	got, err := record(t, NewHTTPSource(srv.URL, 512, srv.Client()))
	require.NoError(t, err)
	assert.Equal(t, data, joined(got))
	assert.Equal(t, UnknownSize, got[0].total)
}

func TestHTTPSourceStatus(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	got, err := record(t, NewHTTPSource(srv.URL, 512, srv.Client()))
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
	assert.Empty(t, got)
}

func TestRangeSource(t *testing.T) {
	data := payload(2500)
	var inflight, maxInflight, requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&inflight, 1)
		defer atomic.AddInt32(&inflight, -1)
		if n > atomic.LoadInt32(&maxInflight) {
			atomic.StoreInt32(&maxInflight, n)
		}
		atomic.AddInt32(&requests, 1)
		serveContent(data)(w, r)
	}))
	defer srv.Close()

	got, err := record(t, NewRangeSource(srv.URL, 1000, srv.Client()))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, data, joined(got))
	assert.Equal(t, []int{1000, 1000, 500}, []int{len(got[0].data), len(got[1].data), len(got[2].data)})
	for _, d := range got {
		assert.Equal(t, int64(2500), d.total)
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&requests))
	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInflight))
}

func TestRangeSourceExactMultiple(t *testing.T) {
	data := payload(2000)
	srv := httptest.NewServer(serveContent(data))
	defer srv.Close()

	got, err := record(t, NewRangeSource(srv.URL, 1000, srv.Client()))
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, data, joined(got))
}

func TestRangeSourceUnknownLength(t *testing.T) {
	data := payload(2300)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var first, last int
		if _, err := fmt.Sscanf(r.Header.Get("Range"), "bytes=%d-%d", &first, &last); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if first >= len(data) {
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return
		}
		if last >= len(data) {
			last = len(data) - 1
		}
		w.Header().Set("Content-Range", "bytes "+strconv.Itoa(first)+"-"+strconv.Itoa(last)+"/*")
		w.WriteHeader(http.StatusPartialContent)
		w.Write(data[first : last+1])
	}))
	defer srv.Close()

	got, err := record(t, NewRangeSource(srv.URL, 1000, srv.Client()))
	require.NoError(t, err)
	assert.Equal(t, data, joined(got))
	for _, d := range got {
		assert.Equal(t, UnknownSize, d.total)
	}
}

func TestRangeSourceIgnoredRange(t *testing.T) {
	data := payload(1500)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(data)
	}))
	defer srv.Close()

	got, err := record(t, NewRangeSource(srv.URL, 1000, srv.Client()))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, data, got[0].data)
	assert.Equal(t, int64(1500), got[0].total)
}

func TestRangeSourceWrongRange(t *testing.T) {
	data := payload(3000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Range", "bytes 0-999/3000")
		w.WriteHeader(http.StatusPartialContent)
		w.Write(data[:1000])
	}))
	defer srv.Close()

	got, err := record(t, NewRangeSource(srv.URL, 1000, srv.Client()))
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
	require.Len(t, got, 1)
	assert.Equal(t, data[:1000], got[0].data)
}

func TestRangeSourceFailureMidStream(t *testing.T) {
	data := payload(3000)
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requests, 1) == 2 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		serveContent(data)(w, r)
	}))
	defer srv.Close()

	got, err := record(t, NewRangeSource(srv.URL, 1000, srv.Client()))
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
	assert.Len(t, got, 1)
}

func TestParseContentRange(t *testing.T) {
	tests := []struct {
		in   string
		want *ContentRange
	}{
		{"bytes 0-99/1000", &ContentRange{Unit: "bytes", First: 0, Last: 99, Length: 1000}},
		{"bytes 100-199/*", &ContentRange{Unit: "bytes", First: 100, Last: 199, Length: -1}},
		{"bytes */1000", &ContentRange{Unit: "bytes", First: -1, Last: -1, Length: 1000}},
		{"bytes */*", &ContentRange{Unit: "bytes", First: -1, Last: -1, Length: -1}},
		{"", nil},
		{"garbage", nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseContentRange(tt.in)
			assert.Equal(t, tt.want != nil, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpen(t *testing.T) {
	tests := []struct {
		uri    string
		ranged bool
		want   Source
	}{
		{"/tmp/cloud.bin", false, &FileSource{}},
		{"cloud.pcd", false, &FileSource{}},
		{"file:///tmp/cloud.pcd", false, &FileSource{}},
		{"http://example.com/cloud.pcd", false, &HTTPSource{}},
		{"https://example.com/cloud.pcd", true, &RangeSource{}},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			src, err := Open(tt.uri, Options{Ranged: tt.ranged})
			require.NoError(t, err)
			assert.IsType(t, tt.want, src)
		})
	}

	src, err := Open("file:///tmp/cloud.pcd", Options{})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/cloud.pcd", src.(*FileSource).path)
	assert.Equal(t, DefaultChunkSize, src.(*FileSource).chunk)

	_, err = Open("ftp://example.com/cloud.pcd", Options{})
	assert.ErrorIs(t, err, ErrUnsupportedScheme)
	assert.True(t, strings.Contains(err.Error(), "ftp"))
}
