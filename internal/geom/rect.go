package geom

import "math"

// Rect is an axis-aligned rectangle, Min inclusive and Max inclusive.
type Rect struct {
	Min, Max Point
}

// R builds a rectangle from an origin and a size.
func R(x, y, w, h float64) Rect {
	return Rect{Min: Pt(x, y), Max: Pt(x+w, y+h)}
}

func (r Rect) Width() float64  { return r.Max.X - r.Min.X }
func (r Rect) Height() float64 { return r.Max.Y - r.Min.Y }

// Empty reports whether r has no area.
func (r Rect) Empty() bool {
	return !(r.Max.X > r.Min.X && r.Max.Y > r.Min.Y)
}

// Finite reports whether every edge of r is a finite number.
func (r Rect) Finite() bool {
	return !math.IsInf(r.Min.X, 0) && !math.IsInf(r.Min.Y, 0) &&
		!math.IsInf(r.Max.X, 0) && !math.IsInf(r.Max.Y, 0)
}

func (r Rect) Center() Point {
	return Pt((r.Min.X+r.Max.X)/2, (r.Min.Y+r.Max.Y)/2)
}

func (r Rect) Contains(p Point) bool {
	return p.X >= r.Min.X && p.X <= r.Max.X && p.Y >= r.Min.Y && p.Y <= r.Max.Y
}

func (r Rect) Bounds() Rect { return r }

// DistanceToEdge returns the distance from p to the nearest side of r.
func (r Rect) DistanceToEdge(p Point) float64 {
	if r.Contains(p) {
		return math.Min(
			math.Min(p.X-r.Min.X, r.Max.X-p.X),
			math.Min(p.Y-r.Min.Y, r.Max.Y-p.Y),
		)
	}
	dx := math.Max(math.Max(r.Min.X-p.X, 0), p.X-r.Max.X)
	dy := math.Max(math.Max(r.Min.Y-p.Y, 0), p.Y-r.Max.Y)
	return math.Hypot(dx, dy)
}

// Pad grows r by d on every side (shrinks for negative d).
func (r Rect) Pad(d float64) Rect {
	return Rect{Min: Pt(r.Min.X-d, r.Min.Y-d), Max: Pt(r.Max.X+d, r.Max.Y+d)}
}

// Intersects reports whether r and o overlap (inclusive edges).
func (r Rect) Intersects(o Rect) bool {
	return r.Min.X <= o.Max.X && r.Max.X >= o.Min.X &&
		r.Min.Y <= o.Max.Y && r.Max.Y >= o.Min.Y
}

// Intersect returns the overlap of r and o; the result may be Empty.
func (r Rect) Intersect(o Rect) Rect {
	return Rect{
		Min: Pt(math.Max(r.Min.X, o.Min.X), math.Max(r.Min.Y, o.Min.Y)),
		Max: Pt(math.Min(r.Max.X, o.Max.X), math.Min(r.Max.Y, o.Max.Y)),
	}
}

// Union returns the smallest rectangle containing r and o.
func (r Rect) Union(o Rect) Rect {
	return Rect{
		Min: Pt(math.Min(r.Min.X, o.Min.X), math.Min(r.Min.Y, o.Min.Y)),
		Max: Pt(math.Max(r.Max.X, o.Max.X), math.Max(r.Max.Y, o.Max.Y)),
	}
}

// Outline returns the corners in counter-clockwise order (y down).
func (r Rect) Outline() []Point {
	return []Point{r.Min, Pt(r.Max.X, r.Min.Y), r.Max, Pt(r.Min.X, r.Max.Y)}
}

func (r Rect) Equal(o Shape) bool {
	or, ok := o.(Rect)
	return ok && or == r
}

// NewRect validates a rectangle shape.
func NewRect(x, y, w, h float64) (Rect, error) {
	r := R(x, y, w, h)
	if r.Empty() || !r.Finite() {
		return Rect{}, &InvalidShapeError{Kind: "rect", Points: 4, Reason: ErrDegenerate}
	}
	return r, nil
}
