// Package load runs one point cloud load: it streams a resource, feeds the
// chunks to the decoder matching its format and reports progress per chunk.
package load

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"pcstream/pkg/cloud"
	"pcstream/pkg/pcd"
	"pcstream/pkg/stream"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("load")

type Format int

const (
	FormatAuto Format = iota
	FormatBin
	FormatPCD
)

func (f Format) String() string {
	switch f {
	case FormatBin:
		return "bin"
	case FormatPCD:
		return "pcd"
	}
	return "auto"
}

var ErrUnknownFormat = errors.New("unknown point cloud format")

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return FormatAuto, nil
	case "bin":
		return FormatBin, nil
	case "pcd":
		return FormatPCD, nil
	}
	return FormatAuto, fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// FormatOf guesses the format from the resource name: .pcd files are PCD,
// everything else is the fixed .bin layout.
func FormatOf(uri string) Format {
	p := uri
	if u, err := url.Parse(uri); err == nil && u.Path != "" {
		p = u.Path
	}
	if strings.EqualFold(path.Ext(p), ".pcd") {
		return FormatPCD
	}
	return FormatBin
}

// ProgressFunc is called once per chunk with a snapshot of the stats (dirty
// flags describe that chunk) and the number of points decoded so far.
type ProgressFunc func(stats cloud.Stats, n int)

type Options struct {
	Format    Format
	Transform cloud.Transform
	Stream    stream.Options
	// Sink receives the points; a new one is created when nil.
	Sink *cloud.Sink

	Progress ProgressFunc
	// Complete fires once after the whole stream was decoded. It never fires
	// when the load fails.
	Complete func()
}

type Result struct {
	Sink  *cloud.Sink
	Stats cloud.Stats
	// Header is set for PCD loads.
	Header *pcd.Header
	Bytes  int64
	Chunks int
}

// Open loads the resource at uri.
func Open(ctx context.Context, uri string, opts Options) (*Result, error) {
	src, err := stream.Open(uri, opts.Stream)
	if err != nil {
		return nil, err
	}
	if opts.Format == FormatAuto {
		opts.Format = FormatOf(uri)
	}
	log.Debugf("loading %s as %s", uri, opts.Format)
	return Run(ctx, src, opts)
}

// NewDecoder returns the decoder for format writing into t.
func NewDecoder(format Format, t *pcd.Target) pcd.ChunkDecoder {
	if format == FormatPCD {
		return pcd.NewDecoder(t)
	}
	return pcd.NewBinDecoder(t)
}

// errDone stops the source once the decoder wants no more bytes.
var errDone = errors.New("decoder done")

// Run decodes everything src delivers. Chunks are decoded strictly in
// order on the calling goroutine.
func Run(ctx context.Context, src stream.Source, opts Options) (*Result, error) {
	target := pcd.NewTarget(opts.Sink, nil, opts.Transform)
	dec := NewDecoder(opts.Format, target)
	pdec, _ := dec.(*pcd.Decoder)

	res := &Result{Sink: target.Sink}
	err := src.Stream(ctx, func(chunk []byte, total int64) error {
		target.Stats.ResetDirty()
		if err := dec.Decode(chunk, total); err != nil {
			return err
		}
		res.Bytes += int64(len(chunk))
		res.Chunks++
		if opts.Progress != nil {
			opts.Progress(target.Stats.Snapshot(), dec.Count())
		}
		if pdec != nil && pdec.Done() {
			return errDone
		}
		return nil
	})
	if err != nil && !errors.Is(err, errDone) {
		return nil, fmt.Errorf("load failed after %d bytes: %w", res.Bytes, err)
	}

	n := dec.Count()
	target.Stats.ResetDirty()
	if err := dec.Finish(); err != nil {
		return nil, fmt.Errorf("load failed after %d bytes: %w", res.Bytes, err)
	}
	if dec.Count() != n && opts.Progress != nil {
		opts.Progress(target.Stats.Snapshot(), dec.Count())
	}

	res.Stats = target.Stats.Snapshot()
	if pdec != nil {
		res.Header = pdec.Header()
	}
	log.Debugf("decoded %d points from %d bytes in %d chunks", dec.Count(), res.Bytes, res.Chunks)
	if opts.Complete != nil {
		opts.Complete()
	}
	return res, nil
}
