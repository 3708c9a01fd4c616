package pcd

import (
	"encoding/binary"
	"io"
	"math"

	"pcstream/pkg/cloud"

	"github.com/seqsense/pcgol/pc"
)

const encodePointSize = 4 * 4

// Encode writes points as a binary PCD with fields x y z rgb, the color
// packed into the rgb float the way ROS producers do.
func Encode(w io.Writer, points []cloud.Point, colors []cloud.Color) error {
	if len(colors) < len(points) {
		return ErrInvalidDataFormat
	}
	pp := &pc.PointCloud{
		PointCloudHeader: pc.PointCloudHeader{
			Version: 0.7,
			Fields:  []string{"x", "y", "z", "rgb"},
			Size:    []int{4, 4, 4, 4},
			Type:    []string{"F", "F", "F", "F"},
			Count:   []int{1, 1, 1, 1},
			Width:   len(points),
			Height:  1,
		},
		Points: len(points),
		Data:   make([]byte, encodePointSize*len(points)),
	}
	for i, p := range points {
		rec := pp.Data[i*encodePointSize:]
		binary.LittleEndian.PutUint32(rec[0:], math.Float32bits(p.X))
		binary.LittleEndian.PutUint32(rec[4:], math.Float32bits(p.Y))
		binary.LittleEndian.PutUint32(rec[8:], math.Float32bits(p.Z))
		rec[12], rec[13], rec[14] = colors[i].Bytes()
	}
	return pc.Marshal(pp, w)
}
