package cloud

import "math"

// XYArea estimates the area covered in the XY plane by counting occupied
// cells of side 1/precision. Larger precision means finer cells.
func XYArea(points []Point, precision float32) float32 {
	areas := make(map[int]map[int]bool)
	var x, y, sum int
	for _, p := range points {
		x = int(p.X * precision)
		y = int(p.Y * precision)
		l, ok := areas[x]
		if !ok {
			l = make(map[int]bool)
			areas[x] = l
		}
		l[y] = true
	}
	for _, l := range areas {
		sum += len(l)
	}
	return float32(sum) / precision / precision
}

// Box is an oriented box whose footprint is rotated by Rz around the Z axis.
// Width runs along the heading, Height across it.
type Box struct {
	CX, CY, CZ           float32
	Height, Width, Depth float32
	Rz                   float32
}

// BoxFromLabel builds a Box from a 7 value label
// (cx, cy, cz, height, width, depth, rz).
func BoxFromLabel(v []float32) (Box, bool) {
	if len(v) != 7 {
		return Box{}, false
	}
	return Box{CX: v[0], CY: v[1], CZ: v[2], Height: v[3], Width: v[4], Depth: v[5], Rz: v[6]}, true
}

// XYAreaPointCount counts the points inside b.
func XYAreaPointCount(points []Point, b Box) int {
	var count int
	cx, cy := float64(b.CX), float64(b.CY)
	h, w := float64(b.Height), float64(b.Width)
	sin1, cos1 := math.Sincos(float64(b.Rz))
	sin2, cos2 := math.Sincos(float64(b.Rz) + math.Pi/2)
	for _, p := range points {
		if p.Z > b.CZ+b.Depth/2 || p.Z < b.CZ-b.Depth/2 {
			continue
		}
		x, y := float64(p.X), float64(p.Y)
		// distances to the two center lines of the box
		d1 := math.Abs(-sin1*x + cos1*y + (sin1*cx - cos1*cy))
		d2 := math.Abs(-sin2*x + cos2*y + (sin2*cx - cos2*cy))
		if d1 > h/2 || d2 > w/2 {
			continue
		}
		count++
	}
	return count
}
