package geom

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"gonum.org/v1/gonum/spatial/r2"
)

// edgeEpsilon is the area under which a ring counts as degenerate.
const edgeEpsilon = 1e-9

// Polygon is a simple (non self-intersecting) closed ring.
// Polygons are immutable once built.
type Polygon struct {
	points []Point
	ring   orb.Ring // closed copy of points
	bounds Rect
}

// NewPolygon validates points and builds a polygon. A closing vertex equal to
// the first one and consecutive duplicates are dropped.
func NewPolygon(points []Point) (*Polygon, error) {
	ring := normalizeRing(points)
	fail := func(reason error) (*Polygon, error) {
		return nil, &InvalidShapeError{Kind: "polygon", Points: len(points), Reason: reason}
	}

	for _, p := range ring {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return fail(ErrNonFiniteVertices)
		}
	}
	if len(ring) < 3 {
		return fail(ErrDegenerate)
	}
	p := newPolygon(ring)
	if p.Area() <= edgeEpsilon {
		return fail(ErrDegenerate)
	}
	if selfIntersects(ring) {
		return fail(ErrSelfIntersecting)
	}
	return p, nil
}

// PolygonFromRing builds a polygon without validation. Intended for FOV/LOS
// rings produced by a raycaster, which are simple by construction.
func PolygonFromRing(points []Point) *Polygon {
	return newPolygon(normalizeRing(points))
}

func newPolygon(ring []Point) *Polygon {
	closed := closedRing(ring)
	return &Polygon{points: ring, ring: closed, bounds: rectOf(closed.Bound())}
}

func normalizeRing(points []Point) []Point {
	ring := make([]Point, 0, len(points))
	for _, p := range points {
		if len(ring) > 0 && ring[len(ring)-1] == p {
			continue
		}
		ring = append(ring, p)
	}
	for len(ring) > 1 && ring[0] == ring[len(ring)-1] {
		ring = ring[:len(ring)-1]
	}
	return ring
}

// selfIntersects checks every pair of non-adjacent edges, plus adjacent edges
// that fold back over each other.
func selfIntersects(ring []Point) bool {
	n := len(ring)
	for i := 0; i < n; i++ {
		a, b := ring[i], ring[(i+1)%n]

		c := ring[(i+2)%n]
		if orient(a, b, c) == 0 && r2.Dot(r2.Sub(b, a), r2.Sub(c, b)) < 0 {
			return true
		}

		for j := i + 2; j < n; j++ {
			if i == 0 && j == n-1 {
				continue // shares vertex 0
			}
			if segmentsIntersect(a, b, ring[j], ring[(j+1)%n]) {
				return true
			}
		}
	}
	return false
}

// Len returns the number of vertices.
func (p *Polygon) Len() int { return len(p.points) }

// Area returns the unsigned area.
func (p *Polygon) Area() float64 { return planar.Area(p.ring) }

func (p *Polygon) Bounds() Rect { return p.bounds }

// Outline returns a copy of the vertex ring.
func (p *Polygon) Outline() []Point {
	out := make([]Point, len(p.points))
	copy(out, p.points)
	return out
}

// Contains reports whether pt is inside the ring. Points on the boundary are
// inside.
func (p *Polygon) Contains(pt Point) bool {
	if len(p.points) < 3 {
		return false
	}
	return planar.RingContains(p.ring, toOrb(pt))
}

func (p *Polygon) DistanceToEdge(pt Point) float64 {
	if len(p.ring) < 2 {
		return math.Inf(1)
	}
	return planar.DistanceFrom(orb.LineString(p.ring), toOrb(pt))
}

func (p *Polygon) Equal(o Shape) bool {
	op, ok := o.(*Polygon)
	if !ok || len(op.points) != len(p.points) {
		return false
	}
	for i := range p.points {
		if p.points[i] != op.points[i] {
			return false
		}
	}
	return true
}
