// Package pcd decodes point cloud files incrementally: the 15-byte fixed
// binary layout (.bin) and PCD with ascii, binary or binary_compressed bodies.
// Decoders are fed arbitrary chunks of the stream and write into a shared
// Target.
package pcd

import (
	"errors"

	"pcstream/pkg/cloud"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("pcd")

var (
	ErrInvalidDataFormat = errors.New("invalid data")
)

// ChunkDecoder consumes a stream chunk by chunk. Chunks are not record
// aligned.
type ChunkDecoder interface {
	// Decode consumes the next chunk. total is the size of the whole stream
	// in bytes, or negative when unknown.
	Decode(chunk []byte, total int64) error
	// Finish is called once after the last chunk.
	Finish() error
	// Count is the number of points decoded so far.
	Count() int
	Reset()
}

// Target receives decoded points. Every point is transformed before it is
// stored and before the stats see it.
type Target struct {
	Sink      *cloud.Sink
	Stats     *cloud.Stats
	Transform cloud.Transform
}

// NewTarget fills in a fresh sink and stats where nil is given.
func NewTarget(sink *cloud.Sink, stats *cloud.Stats, tr cloud.Transform) *Target {
	if sink == nil {
		sink = cloud.NewSink(0)
	}
	if stats == nil {
		stats = cloud.NewStats()
	}
	return &Target{Sink: sink, Stats: stats, Transform: tr}
}

func (t *Target) emit(p cloud.Point, c cloud.Color) {
	p = t.Transform.Apply(p)
	t.Stats.Update(p)
	t.Sink.Add(p, c)
}

func (t *Target) reset() {
	t.Sink.Reset()
	*t.Stats = *cloud.NewStats()
}

var (
	_ ChunkDecoder = (*BinDecoder)(nil)
	_ ChunkDecoder = (*Decoder)(nil)
)
