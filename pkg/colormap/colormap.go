// Package colormap derives point colors from one coordinate axis, following
// the bounds collected while loading.
package colormap

import (
	"fmt"
	"math"

	"pcstream/pkg/cloud"
)

// Build maps t in [0,1] onto a cyclic rainbow.
func Build(t float64) cloud.Color {
	return cloud.Color{
		R: float32(math.Cos(t*2*math.Pi+0)*0.5 + 0.5),
		G: float32(math.Cos(t*2*math.Pi+2)*0.5 + 0.5),
		B: float32(math.Cos(t*2*math.Pi+4)*0.5 + 0.5),
	}
}

// Channel holds colors derived from one axis. Colors[:Valid] are up to date.
type Channel struct {
	Axis   string
	Colors []cloud.Color
	Valid  int
}

func New(axis string) (*Channel, error) {
	switch axis {
	case "x", "y", "z":
		return &Channel{Axis: axis}, nil
	}
	return nil, fmt.Errorf("unknown color axis %q", axis)
}

// Recompute refreshes the channel after a progress notification and returns
// how many colors were derived. When the axis bounds moved every point is
// recolored, otherwise only the points added since the last call. Entries past
// the decoded points are gray.
func (c *Channel) Recompute(stats cloud.Stats, sink *cloud.Sink) int {
	axis, _ := stats.Axis(c.Axis)
	if len(c.Colors) < sink.Cap() {
		c.Colors = append(c.Colors, make([]cloud.Color, sink.Cap()-len(c.Colors))...)
	}
	n := sink.Len()
	if axis.Min >= axis.Max {
		for i := c.Valid; i < len(c.Colors); i++ {
			c.Colors[i] = cloud.Gray
		}
		return 0
	}

	start := c.Valid
	if axis.Dirty || start > n {
		start = 0
	}
	span := axis.Max - axis.Min
	for i := start; i < n; i++ {
		t := (cloud.Coord(sink.Positions[i], c.Axis) - axis.Min) / span
		if math.IsNaN(t) {
			c.Colors[i] = cloud.Black
			continue
		}
		c.Colors[i] = Build(t)
	}
	for i := n; i < len(c.Colors); i++ {
		c.Colors[i] = cloud.Gray
	}
	c.Valid = n
	return n - start
}
