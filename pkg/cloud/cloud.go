// Package cloud holds the in-memory side of a point cloud load: the growable
// position/color buffers, the running axis statistics and the rigid transform
// applied to every decoded point.
package cloud

type Point struct {
	X, Y, Z float32
}

// Color channels are normalized to [0,1].
type Color struct {
	R, G, B float32
}

var (
	Black = Color{}
	Gray  = Color{R: 0.87, G: 0.87, B: 0.87}
)

// ColorFromBytes normalizes 8-bit channels.
func ColorFromBytes(r, g, b byte) Color {
	return Color{
		R: float32(r) / 255.0,
		G: float32(g) / 255.0,
		B: float32(b) / 255.0,
	}
}

// Bytes converts back to 8-bit channels, clamping out of range values.
func (c Color) Bytes() (r, g, b byte) {
	return channelByte(c.R), channelByte(c.G), channelByte(c.B)
}

func channelByte(v float32) byte {
	if !(v > 0) {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return byte(v*255.0 + 0.5)
}

// Sink is the output of a load: two parallel sequences that are pre-extended
// ahead of decoding and never shrunk. Positions and Colors may be longer than
// Len(); entries past Len() are zero placeholders.
type Sink struct {
	Positions []Point
	Colors    []Color
	n         int
}

func NewSink(capacity int) *Sink {
	s := &Sink{}
	s.Grow(capacity)
	return s
}

// Grow extends both sequences to at least n entries.
func (s *Sink) Grow(n int) {
	if n <= len(s.Positions) {
		return
	}
	if n <= cap(s.Positions) {
		s.Positions = s.Positions[:n]
	} else {
		pos := make([]Point, n, n+n/4)
		copy(pos, s.Positions)
		s.Positions = pos
	}
	if n <= cap(s.Colors) {
		s.Colors = s.Colors[:n]
	} else {
		col := make([]Color, n, n+n/4)
		copy(col, s.Colors)
		s.Colors = col
	}
}

// Add writes the next point at index Len(), growing if the pre-extension fell
// short, and returns the index written.
func (s *Sink) Add(p Point, c Color) int {
	i := s.n
	if i >= len(s.Positions) {
		s.Grow(i + 1)
	}
	s.Positions[i] = p
	s.Colors[i] = c
	s.n++
	return i
}

// Len is the number of points decoded so far.
func (s *Sink) Len() int {
	return s.n
}

// Cap is the pre-extended length of the buffers.
func (s *Sink) Cap() int {
	return len(s.Positions)
}

// Points returns the decoded prefix of Positions.
func (s *Sink) Points() []Point {
	return s.Positions[:s.n]
}

// PointColors returns the decoded prefix of Colors.
func (s *Sink) PointColors() []Color {
	return s.Colors[:s.n]
}

// Reset drops the logical content but keeps the buffers.
func (s *Sink) Reset() {
	s.n = 0
}
