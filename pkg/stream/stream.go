// Package stream delivers a remote or local resource as an ordered sequence
// of byte chunks, hiding how the bytes are fetched.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("stream")

// DefaultChunkSize is 150 KiB, ten thousand .bin points.
const DefaultChunkSize = 150 * 1024

// UnknownSize is passed as total while the resource size is not known.
const UnknownSize int64 = -1

var (
	ErrUnexpectedStatus  = errors.New("unexpected http status")
	ErrUnsupportedScheme = errors.New("unsupported uri scheme")
)

// DataFunc receives one chunk in offset order. The chunk is only valid for
// the duration of the call. Returning an error aborts the stream.
type DataFunc func(chunk []byte, total int64) error

// Source produces the chunks of one resource. Stream returns nil once the
// whole resource was delivered; that is the only completion signal. Any
// error means the sequence ended early.
type Source interface {
	Stream(ctx context.Context, fn DataFunc) error
}

type Options struct {
	ChunkSize int
	// Ranged fetches http resources with sequential Range requests instead
	// of a single streamed response.
	Ranged bool
	Client *http.Client
}

func (o Options) chunkSize() int {
	if o.ChunkSize <= 0 {
		return DefaultChunkSize
	}
	return o.ChunkSize
}

func (o Options) client() *http.Client {
	if o.Client == nil {
		return http.DefaultClient
	}
	return o.Client
}

// Open picks a source for uri: http(s) URLs are fetched over the network,
// file:// URLs and plain paths are read from disk.
func Open(uri string, opts Options) (Source, error) {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// plain path, possibly with a windows drive letter
		return NewFileSource(uri, opts.chunkSize()), nil
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		if opts.Ranged {
			return NewRangeSource(uri, opts.chunkSize(), opts.client()), nil
		}
		return NewHTTPSource(uri, opts.chunkSize(), opts.client()), nil
	case "file":
		return NewFileSource(u.Path, opts.chunkSize()), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)
}

// ReaderSource reads chunks from an io.Reader.
type ReaderSource struct {
	r     io.Reader
	total int64
	chunk int
}

// NewReaderSource wraps r; total may be UnknownSize.
func NewReaderSource(r io.Reader, total int64, chunkSize int) *ReaderSource {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &ReaderSource{r: r, total: total, chunk: chunkSize}
}

func (s *ReaderSource) Stream(ctx context.Context, fn DataFunc) error {
	return pump(ctx, s.r, s.total, s.chunk, fn)
}

// pump reads r in chunkSize pieces. Short reads are delivered as they come so
// slow transports still report progress.
func pump(ctx context.Context, r io.Reader, total int64, chunkSize int, fn DataFunc) error {
	buf := make([]byte, chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Read(buf)
		if n > 0 {
			if ferr := fn(buf[:n], total); ferr != nil {
				return ferr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// FileSource streams a file from disk; its size is known up front.
type FileSource struct {
	path  string
	chunk int
}

func NewFileSource(path string, chunkSize int) *FileSource {
	return &FileSource{path: path, chunk: chunkSize}
}

func (s *FileSource) Stream(ctx context.Context, fn DataFunc) error {
	f, err := os.Open(s.path)
	if err != nil {
		return err
	}
	defer f.Close()
	total := UnknownSize
	if fi, err := f.Stat(); err == nil && fi.Mode().IsRegular() {
		total = fi.Size()
	}
	return NewReaderSource(f, total, s.chunk).Stream(ctx, fn)
}
