package pcd

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"

	"pcstream/pkg/cloud"
)

// BinPointDataLen is the size of one .bin record: x, y, z as little-endian
// float32 followed by r, g, b bytes.
const BinPointDataLen = 3*4 + 3

// BinDecoder streams the headerless fixed-layout .bin format.
type BinDecoder struct {
	target *Target
	rec    *Leftover
}

func NewBinDecoder(t *Target) *BinDecoder {
	return &BinDecoder{target: t, rec: NewLeftover(BinPointDataLen)}
}

func (d *BinDecoder) Decode(chunk []byte, total int64) error {
	// Pre-extend so no record in this chunk has to grow the sink.
	n := len(chunk) / BinPointDataLen
	if d.rec.Len() > 0 && d.rec.Len()+len(chunk) >= BinPointDataLen {
		n++
	}
	size := d.target.Sink.Len() + n
	if total > 0 {
		if est := int(total / BinPointDataLen); est > size {
			size = est
		}
	}
	d.target.Sink.Grow(size)

	d.rec.Split(chunk, func(rec []byte) bool {
		d.decodeRecord(rec, 0)
		return true
	})
	return nil
}

func (d *BinDecoder) decodeRecord(buf []byte, off int) {
	if off+BinPointDataLen > len(buf) {
		log.Warnf("invalid point offset %d", off)
		return
	}
	b := buf[off:]
	p := cloud.Point{
		X: math.Float32frombits(binary.LittleEndian.Uint32(b[0:])),
		Y: math.Float32frombits(binary.LittleEndian.Uint32(b[4:])),
		Z: math.Float32frombits(binary.LittleEndian.Uint32(b[8:])),
	}
	d.target.emit(p, cloud.ColorFromBytes(b[12], b[13], b[14]))
}

func (d *BinDecoder) Finish() error {
	if d.rec.Len() > 0 {
		log.Warnf("dropping %d trailing bytes", d.rec.Len())
	}
	return nil
}

func (d *BinDecoder) Count() int {
	return d.target.Sink.Len()
}

// Leftover is the number of bytes waiting for the rest of their record.
func (d *BinDecoder) Leftover() int {
	return d.rec.Len()
}

func (d *BinDecoder) Reset() {
	d.rec.Reset()
	d.target.reset()
}

// WriteBin writes points in the fixed .bin layout.
func WriteBin(w io.Writer, points []cloud.Point, colors []cloud.Color) error {
	if len(colors) < len(points) {
		return ErrInvalidDataFormat
	}
	bw := bufio.NewWriter(w)
	var rec [BinPointDataLen]byte
	for i, p := range points {
		binary.LittleEndian.PutUint32(rec[0:], math.Float32bits(p.X))
		binary.LittleEndian.PutUint32(rec[4:], math.Float32bits(p.Y))
		binary.LittleEndian.PutUint32(rec[8:], math.Float32bits(p.Z))
		rec[12], rec[13], rec[14] = colors[i].Bytes()
		if _, err := bw.Write(rec[:]); err != nil {
			return err
		}
	}
	return bw.Flush()
}
