package cloud

import (
	"fmt"
	"math"
)

// Padding is the slack added beyond any observed extreme.
const Padding = 0.3

// Axis tracks the padded bounds of one coordinate. Dirty is set whenever Min
// or Max changed since the last ResetDirty.
type Axis struct {
	Min, Max float64
	Dirty    bool

	lo, hi float64
}

func newAxis() Axis {
	return Axis{
		Min: math.Inf(1),
		Max: math.Inf(-1),
		lo:  math.Inf(1),
		hi:  math.Inf(-1),
	}
}

// Update folds one value into the axis. Comparisons are made against the raw
// observed extremes so the final bounds are exactly the extremes ±Padding.
func (a *Axis) Update(v float64) {
	if v < a.lo {
		a.lo = v
		a.Min = v - Padding
		a.Dirty = true
	}
	if v > a.hi {
		a.hi = v
		a.Max = v + Padding
		a.Dirty = true
	}
}

// Valid reports whether at least one value was observed.
func (a Axis) Valid() bool {
	return a.Min < a.Max
}

func (a Axis) String() string {
	return fmt.Sprintf("[%.3f, %.3f]", a.Min, a.Max)
}

// Stats is the running bounding box of a load, in transformed coordinates.
type Stats struct {
	X, Y, Z Axis
}

func NewStats() *Stats {
	return &Stats{X: newAxis(), Y: newAxis(), Z: newAxis()}
}

func (s *Stats) Update(p Point) {
	s.X.Update(float64(p.X))
	s.Y.Update(float64(p.Y))
	s.Z.Update(float64(p.Z))
}

// ResetDirty clears the dirty flags; called at the start of every chunk.
func (s *Stats) ResetDirty() {
	s.X.Dirty = false
	s.Y.Dirty = false
	s.Z.Dirty = false
}

// Dirty reports whether any axis changed in the current chunk.
func (s *Stats) Dirty() bool {
	return s.X.Dirty || s.Y.Dirty || s.Z.Dirty
}

// Snapshot returns a copy safe to hand to callbacks.
func (s *Stats) Snapshot() Stats {
	return *s
}

// Axis returns the named axis ("x", "y" or "z").
func (s *Stats) Axis(name string) (*Axis, bool) {
	switch name {
	case "x":
		return &s.X, true
	case "y":
		return &s.Y, true
	case "z":
		return &s.Z, true
	}
	return nil, false
}

// Coord returns the named coordinate of p.
func Coord(p Point, name string) float64 {
	switch name {
	case "x":
		return float64(p.X)
	case "y":
		return float64(p.Y)
	case "z":
		return float64(p.Z)
	}
	return math.NaN()
}
