package region

import (
	"math"

	"github.com/l1jgo/vision/internal/geom"
)

// SceneID names the catch-all region every set carries.
const SceneID = "Scene"

// Range is a closed interval over the set's scalar level (darkness for
// lighting regions).
type Range struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Always is the range that never gates anything out.
func Always() Range {
	return Range{Min: math.Inf(-1), Max: math.Inf(1)}
}

func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Definition is what callers hand to Set.Add.
type Definition[P any] struct {
	Shape       geom.Shape
	Z           float64
	Inset       float64
	ActiveRange *Range // nil means Always
	Occluded    bool
	Payload     P
}

// Region is an immutable snapshot. A Set never mutates a Region it has
// handed out; updates swap in a fresh copy.
type Region[P any] struct {
	ID          string
	Shape       geom.Shape
	Z           float64
	Inset       float64
	ActiveRange Range
	Occluded    bool
	Payload     P

	// Version is the set's version counter at this region's last change.
	Version uint64

	seq uint64 // insertion order, breaks z ties
}

// Contains reports whether p lies inside the region's inset shape.
func (r *Region[P]) Contains(p geom.Point) bool {
	return geom.ContainsInset(r.Shape, p, r.Inset)
}

// ActiveAt reports whether the region participates at the given level.
func (r *Region[P]) ActiveAt(level float64) bool {
	return !r.Occluded && r.ActiveRange.Contains(level)
}

// IsScene reports whether r is the catch-all scene region.
func (r *Region[P]) IsScene() bool { return r.ID == SceneID }

// above reports whether r wins over o when both apply at a point.
func (r *Region[P]) above(o *Region[P]) bool {
	if r.Z != o.Z {
		return r.Z > o.Z
	}
	return r.seq > o.seq
}

// Patch merges into an existing region. Nil fields are left unchanged.
type Patch[P any] struct {
	Shape       geom.Shape
	Z           *float64
	Inset       *float64
	ActiveRange *Range
	Occluded    *bool
	// Payload edits a copy of the current payload.
	Payload func(*P)
}

// touchesEnvelope reports whether the patch changes anything besides the
// payload.
func (p Patch[P]) touchesEnvelope() bool {
	return p.Shape != nil || p.Z != nil || p.Inset != nil || p.ActiveRange != nil || p.Occluded != nil
}

// Replace builds a patch that overwrites every field with def.
func Replace[P any](def Definition[P]) Patch[P] {
	rng := Always()
	if def.ActiveRange != nil {
		rng = *def.ActiveRange
	}
	return Patch[P]{
		Shape:       def.Shape,
		Z:           &def.Z,
		Inset:       &def.Inset,
		ActiveRange: &rng,
		Occluded:    &def.Occluded,
		Payload:     func(p *P) { *p = def.Payload },
	}
}
