package geom

import "github.com/paulmach/orb"

func toOrb(p Point) orb.Point { return orb.Point{p.X, p.Y} }

func fromOrb(p orb.Point) Point { return Pt(p[0], p[1]) }

// closedRing converts an open vertex ring to an orb ring whose last point
// repeats the first.
func closedRing(points []Point) orb.Ring {
	ring := make(orb.Ring, 0, len(points)+1)
	for _, p := range points {
		ring = append(ring, toOrb(p))
	}
	if len(ring) > 0 {
		ring = append(ring, ring[0])
	}
	return ring
}

// openRing drops the closing point of an orb ring.
func openRing(r orb.Ring) []Point {
	out := make([]Point, 0, len(r))
	for _, p := range r {
		out = append(out, fromOrb(p))
	}
	return normalizeRing(out)
}

func (r Rect) bound() orb.Bound {
	return orb.Bound{Min: toOrb(r.Min), Max: toOrb(r.Max)}
}

func rectOf(b orb.Bound) Rect {
	return Rect{Min: fromOrb(b.Min), Max: fromOrb(b.Max)}
}
