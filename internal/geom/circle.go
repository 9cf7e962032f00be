package geom

import "math"

// Circle is a disc.
type Circle struct {
	Center Point
	Radius float64
}

// NewCircle validates a circle shape.
func NewCircle(c Point, r float64) (Circle, error) {
	if !(r > 0) || math.IsInf(r, 0) || math.IsNaN(c.X) || math.IsNaN(c.Y) {
		return Circle{}, &InvalidShapeError{Kind: "circle", Points: 1, Reason: ErrDegenerate}
	}
	return Circle{Center: c, Radius: r}, nil
}

func (c Circle) Contains(p Point) bool {
	return Distance(c.Center, p) <= c.Radius
}

func (c Circle) Bounds() Rect {
	return Rect{
		Min: Pt(c.Center.X-c.Radius, c.Center.Y-c.Radius),
		Max: Pt(c.Center.X+c.Radius, c.Center.Y+c.Radius),
	}
}

func (c Circle) DistanceToEdge(p Point) float64 {
	return math.Abs(c.Radius - Distance(c.Center, p))
}

// Outline approximates the circle with a regular polygon whose segment
// length stays around 8 px.
func (c Circle) Outline() []Point {
	n := int(math.Ceil(2 * math.Pi * c.Radius / 8))
	n = max(16, min(n, 256))
	return CircleRing(c.Center, c.Radius, n)
}

func (c Circle) Equal(o Shape) bool {
	oc, ok := o.(Circle)
	return ok && oc == c
}

// CircleRing returns n vertices evenly spaced on the circle.
func CircleRing(center Point, radius float64, n int) []Point {
	ring := make([]Point, n)
	for i := range ring {
		a := 2 * math.Pi * float64(i) / float64(n)
		ring[i] = Pt(center.X+radius*math.Cos(a), center.Y+radius*math.Sin(a))
	}
	return ring
}
