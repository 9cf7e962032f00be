package geom

import (
	"github.com/paulmach/orb/clip"
	"github.com/paulmach/orb/planar"
)

// ClipToRect returns the part of a shape's outline that falls inside r, or nil
// when nothing remains. Shapes without an outline (Unbounded) clip to r itself.
func ClipToRect(s Shape, r Rect) []Point {
	o, ok := s.(Outliner)
	if !ok {
		if _, unbounded := s.(Unbounded); unbounded {
			return r.Outline()
		}
		return nil
	}
	if !s.Bounds().Intersects(r) {
		return nil
	}
	return clipRing(o.Outline(), r)
}

func clipRing(ring []Point, r Rect) []Point {
	if len(ring) < 3 {
		return nil
	}
	out := clip.Ring(r.bound(), closedRing(ring))
	if len(out) == 0 {
		return nil
	}
	pts := openRing(out)
	if len(pts) < 3 || planar.Area(closedRing(pts)) <= edgeEpsilon {
		return nil
	}
	return pts
}

// Fit clips a polygon to a rectangle and validates the result.
func Fit(p *Polygon, r Rect) (*Polygon, error) {
	ring := clipRing(p.points, r)
	if ring == nil {
		return nil, &InvalidShapeError{Kind: "polygon", Points: p.Len(), Reason: ErrDegenerate}
	}
	return NewPolygon(ring)
}
