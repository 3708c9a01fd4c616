package pcd

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

const (
	DataASCII            = "ascii"
	DataBinary           = "binary"
	DataBinaryCompressed = "binary_compressed"
)

// FieldSpec describes one named attribute of a record.
type FieldSpec struct {
	Name  string
	Size  int
	Type  string
	Count int
	Kind  Kind
}

// Header is built line by line. FIELDS, SIZE, TYPE and COUNT arrive on
// separate lines and are only matched up when DATA is seen.
type Header struct {
	Version   string
	Fields    []FieldSpec
	Width     int
	Height    int
	Viewpoint []float64
	Data      string

	names  []string
	sizes  []int
	types  []string
	counts []int
}

// ParseLine handles one header line without its terminating newline. done is
// true once the DATA directive has been processed.
func (h *Header) ParseLine(line string) (done bool, err error) {
	if len(line) == 0 || line[0] == '#' {
		return false, nil
	}
	items := strings.Split(strings.TrimSpace(line), " ")
	if len(items) < 2 {
		return false, nil
	}
	args := items[1:]
	switch items[0] {
	case "VERSION":
		h.Version = args[0]
	case "FIELDS":
		h.names = append(h.names, args...)
	case "SIZE":
		sizes, err := atoiAll("SIZE", args)
		if err != nil {
			return false, err
		}
		h.sizes = append(h.sizes, sizes...)
	case "TYPE":
		h.types = append(h.types, args...)
	case "COUNT":
		counts, err := atoiAll("COUNT", args)
		if err != nil {
			return false, err
		}
		h.counts = append(h.counts, counts...)
	case "WIDTH":
		if h.Width, err = atoi("WIDTH", args[0]); err != nil {
			return false, err
		}
	case "HEIGHT":
		if h.Height, err = atoi("HEIGHT", args[0]); err != nil {
			return false, err
		}
	case "VIEWPOINT":
		h.Viewpoint = h.Viewpoint[:0]
		for _, a := range args {
			v, err := strconv.ParseFloat(a, 64)
			if err != nil {
				log.Debugf("ignoring viewpoint value %q", a)
				continue
			}
			h.Viewpoint = append(h.Viewpoint, v)
		}
	case "POINTS":
		// redundant to WIDTH * HEIGHT
	case "DATA":
		if err = h.finalize(args[0]); err != nil {
			return false, err
		}
		return true, nil
	default:
		log.Warnf("unknown PCD header field: %s", items[0])
	}
	return false, nil
}

// finalize binds the field schema and the body encoding.
func (h *Header) finalize(data string) error {
	switch data {
	case DataASCII, DataBinary, DataBinaryCompressed:
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportPcdDataType, data)
	}
	n := len(h.names)
	counts := h.counts
	if len(counts) == 0 {
		counts = make([]int, n)
		for i := range counts {
			counts[i] = 1
		}
	}
	if len(h.sizes) != n || len(h.types) != n || len(counts) != n {
		return fmt.Errorf("%w: %d fields, %d sizes, %d types, %d counts",
			ErrInvalidPcdFormat, n, len(h.sizes), len(h.types), len(counts))
	}
	fields := make([]FieldSpec, n)
	for i, name := range h.names {
		if counts[i] < 0 {
			return fmt.Errorf("%w: negative count for field %s", ErrInvalidPcdFormat, name)
		}
		kind, err := KindOf(name, h.types[i], h.sizes[i])
		if err != nil {
			return err
		}
		fields[i] = FieldSpec{Name: name, Size: h.sizes[i], Type: h.types[i], Count: counts[i], Kind: kind}
	}
	h.Fields = fields
	h.Data = data
	if h.Width < 0 || h.Height < 0 {
		return fmt.Errorf("%w: negative size %dx%d", ErrInvalidPcdFormat, h.Width, h.Height)
	}
	if h.Height != 0 && h.Width > math.MaxInt/h.Height {
		return fmt.Errorf("%w: %dx%d points overflow", ErrInvalidPcdFormat, h.Width, h.Height)
	}
	// ascii bodies always read x y z from the first tokens
	if data != DataASCII && h.PointSize() == 0 {
		return fmt.Errorf("%w: empty point record", ErrInvalidPcdFormat)
	}
	log.Debugf("PCD point size: %d", h.PointSize())
	return nil
}

// PointSize is the size of one binary record in bytes.
func (h *Header) PointSize() int {
	var n int
	for _, f := range h.Fields {
		n += f.Size * f.Count
	}
	return n
}

// Total is WIDTH * HEIGHT, the number of points the body holds.
func (h *Header) Total() int {
	return h.Width * h.Height
}

// Field returns the field with the given name.
func (h *Header) Field(name string) (FieldSpec, bool) {
	for _, f := range h.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// ReadHeader parses a header from r, stopping right after the DATA line.
func ReadHeader(r *bufio.Reader) (*Header, error) {
	h := &Header{}
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return nil, fmt.Errorf("%w: missing DATA line", ErrInvalidPcdFormat)
			}
			return nil, err
		}
		done, err := h.ParseLine(strings.TrimSuffix(line, "\n"))
		if err != nil {
			return nil, err
		}
		if done {
			return h, nil
		}
	}
}

func atoi(field, v string) (int, error) {
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid int field %s: %q", ErrInvalidPcdFormat, field, v)
	}
	return i, nil
}

func atoiAll(field string, vs []string) ([]int, error) {
	vals := make([]int, 0, len(vs))
	for _, v := range vs {
		i, err := atoi(field, v)
		if err != nil {
			return nil, err
		}
		vals = append(vals, i)
	}
	return vals, nil
}
