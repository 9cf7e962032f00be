package sight

import (
	"github.com/l1jgo/vision/internal/geom"
	"github.com/l1jgo/vision/internal/lighting"
)

// Kind separates viewers from pure light emitters.
type Kind int8

const (
	Vision Kind = iota
	Light
)

func (k Kind) String() string {
	if k == Light {
		return "light"
	}
	return "vision"
}

// Source is a vision or light source as seen by the perception core. FOV and
// LOS polygons are produced by the renderer and are opaque here.
type Source struct {
	ID       string
	Kind     Kind
	Position geom.Point
	// Radius is the effective radius; 0 disables emission but a viewer still
	// gates visibility through its LOS.
	Radius float64
	// Limited is set when Radius was clipped below the natural radius.
	Limited bool

	// FOV is the area the source can actually see or light. Nil falls back
	// to a circle of Radius.
	FOV geom.Shape
	// LOS is the raw occlusion-aware reach. Nil means nothing occludes.
	LOS geom.Shape

	// Track caches the source's lighting region and activity.
	Track lighting.Tracker
}

// Active reports whether the source currently emits.
func (s *Source) Active() bool {
	return s.Radius > 0 && s.Track.Active()
}

// FieldOfView returns the FOV shape, or nil when the source emits nothing.
func (s *Source) FieldOfView() geom.Shape {
	if s.FOV != nil {
		return s.FOV
	}
	if s.Radius > 0 {
		return geom.Circle{Center: s.Position, Radius: s.Radius}
	}
	return nil
}

// LineOfSight returns the LOS shape.
func (s *Source) LineOfSight() geom.Shape {
	if s.LOS != nil {
		return s.LOS
	}
	return geom.Unbounded{}
}

// Region resolves the lighting region the source stands in.
func (s *Source) Region(e *lighting.Engine) lighting.Resolved {
	return s.Track.Resolve(e, s.Position)
}
