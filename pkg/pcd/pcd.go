package pcd

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"pcstream/pkg/cloud"

	lzf "github.com/zhuyie/golzf"
)

var (
	ErrUnsupportPcdFieldSize = errors.New("unsupport pcd field size")
	ErrUnsupportPcdFieldType = errors.New("unsupport pcd field type")
	ErrUnsupportPcdDataType  = errors.New("unsupport pcd data type")
	ErrInvalidPcdFormat      = errors.New("invalid pcd format")
)

// State is the phase of a PCD decode. It only moves forward.
type State int

const (
	StateHeader State = iota
	StateBodyBinary
	StateBodyASCII
	StateBodyCompressed
)

func (s State) String() string {
	switch s {
	case StateHeader:
		return "header"
	case StateBodyBinary:
		return "binary"
	case StateBodyASCII:
		return "ascii"
	case StateBodyCompressed:
		return "binary_compressed"
	}
	return "state(" + strconv.Itoa(int(s)) + ")"
}

const BinaryCompressedSize = 8

// Decoder streams a PCD file. The header is read as newline terminated lines,
// then the body is decoded according to the DATA directive.
type Decoder struct {
	target *Target
	header *Header
	state  State

	// line accumulates a header or ascii body line across chunks
	line []byte
	rec  *Leftover
	// compressed accumulates a binary_compressed body until it is complete
	compressed []byte

	done bool
	err  error
}

func NewDecoder(t *Target) *Decoder {
	return &Decoder{target: t, header: &Header{}, rec: NewLeftover(0)}
}

// Header returns the header parsed so far.
func (d *Decoder) Header() *Header {
	return d.header
}

func (d *Decoder) State() State {
	return d.state
}

// Done reports whether WIDTH*HEIGHT points were decoded; later bytes are
// ignored.
func (d *Decoder) Done() bool {
	return d.done
}

func (d *Decoder) Count() int {
	return d.target.Sink.Len()
}

// Leftover is the number of bytes waiting for the rest of their record.
func (d *Decoder) Leftover() int {
	return d.rec.Len()
}

func (d *Decoder) Reset() {
	d.header = &Header{}
	d.state = StateHeader
	d.line = d.line[:0]
	d.rec = NewLeftover(0)
	d.compressed = nil
	d.done = false
	d.err = nil
	d.target.reset()
}

func (d *Decoder) Decode(chunk []byte, total int64) error {
	if d.err != nil {
		return d.err
	}
	off := 0
	for off < len(chunk) && !d.done {
		switch d.state {
		case StateHeader:
			n, err := d.readHeaderLine(chunk[off:])
			if err != nil {
				d.err = err
				return err
			}
			off += n
		case StateBodyBinary:
			d.decodeBinary(chunk[off:])
			off = len(chunk)
		case StateBodyASCII:
			d.decodeASCII(chunk[off:])
			off = len(chunk)
		case StateBodyCompressed:
			if err := d.decodeCompressed(chunk[off:]); err != nil {
				d.err = err
				return err
			}
			off = len(chunk)
		}
	}
	return nil
}

// Finish flushes an unterminated last ascii line and reports truncated
// compressed bodies.
func (d *Decoder) Finish() error {
	if d.err != nil {
		return d.err
	}
	switch d.state {
	case StateHeader:
		return fmt.Errorf("%w: stream ended in header", ErrInvalidPcdFormat)
	case StateBodyASCII:
		if len(d.line) > 0 {
			d.handleASCIILine(string(d.line))
			d.line = d.line[:0]
		}
	case StateBodyBinary:
		if d.rec.Len() > 0 && !d.done {
			log.Warnf("dropping %d trailing bytes", d.rec.Len())
		}
	case StateBodyCompressed:
		if !d.done {
			return fmt.Errorf("%w: truncated compressed body", ErrInvalidPcdFormat)
		}
	}
	return nil
}

// readHeaderLine consumes bytes up to and including the next newline and
// returns how many were taken.
func (d *Decoder) readHeaderLine(b []byte) (int, error) {
	i := bytes.IndexByte(b, '\n')
	if i < 0 {
		d.line = append(d.line, b...)
		return len(b), nil
	}
	d.line = append(d.line, b[:i]...)
	line := string(d.line)
	d.line = d.line[:0]
	done, err := d.header.ParseLine(line)
	if err != nil {
		return 0, err
	}
	if done {
		d.startBody()
	}
	return i + 1, nil
}

func (d *Decoder) startBody() {
	h := d.header
	d.target.Sink.Grow(h.Total())
	switch h.Data {
	case DataASCII:
		d.state = StateBodyASCII
	case DataBinary:
		d.state = StateBodyBinary
		d.rec = NewLeftover(h.PointSize())
	case DataBinaryCompressed:
		d.state = StateBodyCompressed
	}
	if d.limitReached() && d.state != StateBodyASCII {
		d.done = true
	}
}

func (d *Decoder) limitReached() bool {
	total := d.header.Total()
	return total > 0 && d.target.Sink.Len() >= total
}

func (d *Decoder) decodeBinary(b []byte) {
	d.rec.Split(b, func(rec []byte) bool {
		if d.limitReached() {
			return false
		}
		d.decodeRecord(rec, 0)
		return true
	})
	if d.limitReached() {
		d.done = true
	}
}

// decodeRecord decodes one row-major record at buf[off:].
func (d *Decoder) decodeRecord(buf []byte, off int) {
	if off+d.header.PointSize() > len(buf) {
		log.Warnf("invalid point offset %d", off)
		return
	}
	var p cloud.Point
	c := cloud.Black
	for _, f := range d.header.Fields {
		for j := 0; j < f.Count; j++ {
			switch f.Name {
			case "x":
				p.X = float32(decodeValue(f.Kind, buf, off))
			case "y":
				p.Y = float32(decodeValue(f.Kind, buf, off))
			case "z":
				p.Z = float32(decodeValue(f.Kind, buf, off))
			case "rgb":
				c = decodeColor(f.Kind, buf, off)
			}
			off += f.Size
		}
	}
	d.target.emit(p, c)
}

func (d *Decoder) decodeASCII(b []byte) {
	for len(b) > 0 {
		i := bytes.IndexByte(b, '\n')
		if i < 0 {
			d.line = append(d.line, b...)
			return
		}
		d.line = append(d.line, b[:i]...)
		d.handleASCIILine(string(d.line))
		d.line = d.line[:0]
		b = b[i+1:]
	}
}

// handleASCIILine reads x, y and z from the first three space separated
// tokens. Further tokens are not interpreted.
func (d *Decoder) handleASCIILine(line string) {
	items := strings.Split(line, " ")
	if len(items) < 3 {
		if strings.TrimSpace(line) != "" {
			log.Warnf("skipping short ascii point line %q", line)
		}
		return
	}
	var v [3]float32
	for i := range v {
		f, err := strconv.ParseFloat(strings.TrimSpace(items[i]), 32)
		if err != nil {
			log.Warnf("skipping ascii point line %q: %s", line, err)
			return
		}
		v[i] = float32(f)
	}
	d.target.emit(cloud.Point{X: v[0], Y: v[1], Z: v[2]}, cloud.Gray)
}

func (d *Decoder) decodeCompressed(b []byte) error {
	d.compressed = append(d.compressed, b...)
	if len(d.compressed) < BinaryCompressedSize {
		return nil
	}
	compressedSize := int(binary.LittleEndian.Uint32(d.compressed[:4]))
	uncompressedSize := int(binary.LittleEndian.Uint32(d.compressed[4:8]))
	if uncompressedSize != d.header.Total()*d.header.PointSize() {
		return fmt.Errorf("%w: uncompressed size %d, want %d", ErrInvalidPcdFormat,
			uncompressedSize, d.header.Total()*d.header.PointSize())
	}
	if len(d.compressed) < BinaryCompressedSize+compressedSize {
		return nil
	}
	raw := d.compressed[BinaryCompressedSize : BinaryCompressedSize+compressedSize]
	uncompressed := make([]byte, uncompressedSize)
	if uncompressedSize > 0 {
		n, err := lzf.Decompress(raw, uncompressed)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidPcdFormat, err)
		}
		if n != uncompressedSize {
			return fmt.Errorf("%w: decompressed %d bytes, want %d", ErrInvalidPcdFormat, n, uncompressedSize)
		}
	}
	d.compressed = nil
	d.decodeFieldMajor(uncompressed)
	d.done = true
	return nil
}

// decodeFieldMajor decodes a body where each field's values for all points
// are stored contiguously, as binary_compressed does.
func (d *Decoder) decodeFieldMajor(buf []byte) {
	h := d.header
	n := h.Total()
	base := make([]int, len(h.Fields))
	var off int
	for i, f := range h.Fields {
		base[i] = off
		off += n * f.Size * f.Count
	}
	for k := 0; k < n; k++ {
		var p cloud.Point
		c := cloud.Black
		for i, f := range h.Fields {
			if f.Count == 0 {
				continue
			}
			// repeated values: the last one wins, as in row-major records
			at := base[i] + (k*f.Count+f.Count-1)*f.Size
			switch f.Name {
			case "x":
				p.X = float32(decodeValue(f.Kind, buf, at))
			case "y":
				p.Y = float32(decodeValue(f.Kind, buf, at))
			case "z":
				p.Z = float32(decodeValue(f.Kind, buf, at))
			case "rgb":
				c = decodeColor(f.Kind, buf, at)
			}
		}
		d.target.emit(p, c)
	}
}
