package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Point is a position in world (pixel) coordinates.
type Point = r2.Vec

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Distance returns the euclidean distance between a and b.
func Distance(a, b Point) float64 {
	return r2.Norm(r2.Sub(a, b))
}

// orient returns >0 if a→b→c turns counter-clockwise, <0 if clockwise, 0 if collinear.
func orient(a, b, c Point) float64 {
	return r2.Cross(r2.Sub(b, a), r2.Sub(c, a))
}

// onSegment reports whether the collinear point p lies within the box of ab.
func onSegment(a, b, p Point) bool {
	return p.X <= math.Max(a.X, b.X) && p.X >= math.Min(a.X, b.X) &&
		p.Y <= math.Max(a.Y, b.Y) && p.Y >= math.Min(a.Y, b.Y)
}

// segmentsIntersect reports whether segment p1p2 touches or crosses q1q2.
func segmentsIntersect(p1, p2, q1, q2 Point) bool {
	d1 := orient(q1, q2, p1)
	d2 := orient(q1, q2, p2)
	d3 := orient(p1, p2, q1)
	d4 := orient(p1, p2, q2)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	switch {
	case d1 == 0 && onSegment(q1, q2, p1):
		return true
	case d2 == 0 && onSegment(q1, q2, p2):
		return true
	case d3 == 0 && onSegment(p1, p2, q1):
		return true
	case d4 == 0 && onSegment(p1, p2, q2):
		return true
	}
	return false
}
