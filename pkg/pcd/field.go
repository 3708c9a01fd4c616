package pcd

import (
	"encoding/binary"
	"fmt"
	"math"

	"pcstream/pkg/cloud"
)

// Kind is the decode rule bound to a field once its size and type are known.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindFloat32
	KindFloat64
	KindInt8
	KindInt16
	KindInt32
	KindUint8
	KindUint16
	KindUint32
	// KindPackedColor is an F/4 field named rgb whose first three bytes are
	// r, g, b rather than an IEEE-754 float.
	KindPackedColor
)

var kindNames = [...]string{
	KindInvalid:     "invalid",
	KindFloat32:     "float32",
	KindFloat64:     "float64",
	KindInt8:        "int8",
	KindInt16:       "int16",
	KindInt32:       "int32",
	KindUint8:       "uint8",
	KindUint16:      "uint16",
	KindUint32:      "uint32",
	KindPackedColor: "packed-color",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// KindOf resolves the decode rule for a field.
func KindOf(name, typ string, size int) (Kind, error) {
	switch typ {
	case "F":
		switch size {
		case 4:
			if name == "rgb" {
				return KindPackedColor, nil
			}
			return KindFloat32, nil
		case 8:
			return KindFloat64, nil
		}
	case "I":
		switch size {
		case 1:
			return KindInt8, nil
		case 2:
			return KindInt16, nil
		case 4:
			return KindInt32, nil
		}
	case "U":
		switch size {
		case 1:
			return KindUint8, nil
		case 2:
			return KindUint16, nil
		case 4:
			return KindUint32, nil
		}
	default:
		return KindInvalid, fmt.Errorf("%w: %q for field %s", ErrUnsupportPcdFieldType, typ, name)
	}
	return KindInvalid, fmt.Errorf("%w: %s%d for field %s", ErrUnsupportPcdFieldSize, typ, size, name)
}

// decodeValue reads one little-endian value of kind k at buf[off:].
func decodeValue(k Kind, buf []byte, off int) float64 {
	b := buf[off:]
	switch k {
	case KindFloat32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	case KindFloat64:
		return math.Float64frombits(binary.LittleEndian.Uint64(b))
	case KindInt8:
		return float64(int8(b[0]))
	case KindInt16:
		return float64(int16(binary.LittleEndian.Uint16(b)))
	case KindInt32:
		return float64(int32(binary.LittleEndian.Uint32(b)))
	case KindUint8:
		return float64(b[0])
	case KindUint16:
		return float64(binary.LittleEndian.Uint16(b))
	case KindUint32, KindPackedColor:
		return float64(binary.LittleEndian.Uint32(b))
	}
	return math.NaN()
}

// decodeColor reads an rgb field. Packed fields carry the channels in their
// first three bytes; numeric fields are taken as 0xRRGGBB.
func decodeColor(k Kind, buf []byte, off int) cloud.Color {
	if k == KindPackedColor {
		return cloud.ColorFromBytes(buf[off], buf[off+1], buf[off+2])
	}
	v := uint32(decodeValue(k, buf, off))
	return cloud.ColorFromBytes(byte(v>>16), byte(v>>8), byte(v))
}
