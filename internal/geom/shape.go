package geom

import "math"

// Shape is anything that supports point containment. Regions, FOV and LOS
// polygons all go through this interface.
type Shape interface {
	Contains(p Point) bool
	Bounds() Rect
	// DistanceToEdge returns the distance from p to the nearest boundary point.
	DistanceToEdge(p Point) float64
}

// Outliner is implemented by shapes that can be turned into a closed ring of
// vertices (used when rasterizing).
type Outliner interface {
	Outline() []Point
}

// ContainsInset reports whether p lies inside s after shrinking the boundary
// inward by inset.
func ContainsInset(s Shape, p Point, inset float64) bool {
	if s == nil || !s.Contains(p) {
		return false
	}
	if inset <= 0 {
		return true
	}
	return s.DistanceToEdge(p) >= inset
}

// Unbounded covers the whole plane.
type Unbounded struct{}

func (Unbounded) Contains(Point) bool { return true }

func (Unbounded) Bounds() Rect {
	return Rect{
		Min: Pt(math.Inf(-1), math.Inf(-1)),
		Max: Pt(math.Inf(1), math.Inf(1)),
	}
}

func (Unbounded) DistanceToEdge(Point) float64 { return math.Inf(1) }

// Equal lets go-cmp compare shapes semantically.
func (Unbounded) Equal(o Shape) bool {
	_, ok := o.(Unbounded)
	return ok
}

// Validate applies the construction checks of NewRect, NewCircle and
// NewPolygon to a shape built as a literal.
func Validate(s Shape) error {
	switch v := s.(type) {
	case nil:
		return &InvalidShapeError{Kind: "shape", Reason: ErrDegenerate}
	case Rect:
		if v.Empty() || !v.Finite() {
			return &InvalidShapeError{Kind: "rect", Points: 4, Reason: ErrDegenerate}
		}
	case Circle:
		_, err := NewCircle(v.Center, v.Radius)
		return err
	case *Polygon:
		if v == nil || len(v.points) < 3 {
			return &InvalidShapeError{Kind: "polygon", Reason: ErrDegenerate}
		}
	}
	return nil
}
