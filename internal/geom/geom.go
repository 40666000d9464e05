// Package geom holds the planar geometry shared by the graph adapter,
// the renderers and the hit-tester.
package geom

import "math"

// Point is a position in network (world) coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Bounds is an axis-aligned rectangle. The zero value is empty.
type Bounds struct {
	Min, Max Point
	set      bool
}

// Extend grows b to include p.
func (b Bounds) Extend(p Point) Bounds {
	if !b.set {
		return Bounds{Min: p, Max: p, set: true}
	}
	b.Min.X = math.Min(b.Min.X, p.X)
	b.Min.Y = math.Min(b.Min.Y, p.Y)
	b.Max.X = math.Max(b.Max.X, p.X)
	b.Max.Y = math.Max(b.Max.Y, p.Y)
	return b
}

// Empty reports whether no point has been added.
func (b Bounds) Empty() bool { return !b.set }

// Width returns the horizontal span.
func (b Bounds) Width() float64 { return b.Max.X - b.Min.X }

// Height returns the vertical span.
func (b Bounds) Height() float64 { return b.Max.Y - b.Min.Y }

// Span returns the larger of Width and Height.
func (b Bounds) Span() float64 { return math.Max(b.Width(), b.Height()) }

// Center returns the midpoint of the rectangle.
func (b Bounds) Center() Point {
	return Midpoint(b.Min, b.Max)
}

// Square returns bounds with equal width and height centred on b, padded
// by pad (a fraction of the span) on every side. A degenerate rectangle
// is expanded to a unit square so callers never divide by zero.
func (b Bounds) Square(pad float64) Bounds {
	span := b.Span()
	if span == 0 {
		span = 1
	}
	half := span/2 + span*pad
	c := b.Center()
	return Bounds{
		Min: Point{X: c.X - half, Y: c.Y - half},
		Max: Point{X: c.X + half, Y: c.Y + half},
		set: true,
	}
}

// Distance returns the Euclidean distance between a and b.
func Distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// Midpoint returns the point halfway between a and b.
func Midpoint(a, b Point) Point {
	return Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
}

// SegmentDistance returns the distance from p to the segment a-b, and the
// closest point on the segment. The projection parameter is clamped to
// [0, 1]. ok is false for a zero-length segment.
func SegmentDistance(p, a, b Point) (dist float64, closest Point, ok bool) {
	dx := b.X - a.X
	dy := b.Y - a.Y
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return 0, Point{}, false
	}

	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / lenSq
	switch {
	case t < 0:
		closest = a
	case t > 1:
		closest = b
	default:
		closest = Point{X: a.X + t*dx, Y: a.Y + t*dy}
	}
	return Distance(p, closest), closest, true
}
