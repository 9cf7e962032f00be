package sight

import (
	"github.com/l1jgo/vision/internal/geom"
	"github.com/l1jgo/vision/internal/lighting"
	"github.com/l1jgo/vision/internal/region"
)

// Environment is the slice of the lighting engine visibility needs.
type Environment interface {
	At(p geom.Point) lighting.Resolved
	ActiveRegions() []*region.Region[lighting.Light]
	StateOf(r *region.Region[lighting.Light]) lighting.State
}

// Tester answers point visibility for the current observer.
type Tester struct {
	Env Environment
	// Unrestricted is the privileged observer flag used when there are no
	// viewers.
	Unrestricted bool
}

// Samples returns p, plus eight points at ±tol on the axes and diagonals
// when tol > 0.
func Samples(p geom.Point, tol float64) []geom.Point {
	if !(tol > 0) {
		return []geom.Point{p}
	}
	return []geom.Point{
		p,
		geom.Pt(p.X-tol, p.Y-tol), geom.Pt(p.X, p.Y-tol), geom.Pt(p.X+tol, p.Y-tol),
		geom.Pt(p.X-tol, p.Y), geom.Pt(p.X+tol, p.Y),
		geom.Pt(p.X-tol, p.Y+tol), geom.Pt(p.X, p.Y+tol), geom.Pt(p.X+tol, p.Y+tol),
	}
}

type verdict int8

const (
	undecided verdict = iota
	granted
	denied
)

// Test reports whether p is visible to viewers, with lights sharing their
// illumination.
func (t Tester) Test(p geom.Point, tol float64, viewers, lights []*Source) bool {
	if len(viewers) == 0 && t.Unrestricted {
		return true
	}
	samples := Samples(p, tol)

	switch t.overrides(samples) {
	case granted:
		return true
	case denied:
		return false
	}

	if len(viewers) == 0 {
		for _, s := range samples {
			if t.Env.At(s).State.GlobalLight {
				return true
			}
		}
		return false
	}

	for _, s := range samples {
		if !inAnyLOS(s, viewers) {
			continue
		}
		if t.Env.At(s).State.GlobalLight {
			return true
		}
		if inAnyFOV(s, viewers) || inAnyFOV(s, lights) {
			return true
		}
	}
	return false
}

// overrides walks active regions bottom-up; the highest region with a
// decisive override wins. Forced-on needs one sample inside, forced-off
// needs all of them.
func (t Tester) overrides(samples []geom.Point) verdict {
	v := undecided
	for _, r := range t.Env.ActiveRegions() {
		switch t.Env.StateOf(r).Vision {
		case lighting.VisionForceOn:
			for _, s := range samples {
				if r.Contains(s) {
					v = granted
					break
				}
			}
		case lighting.VisionForceOff:
			all := true
			for _, s := range samples {
				if !r.Contains(s) {
					all = false
					break
				}
			}
			if all {
				v = denied
			}
		}
	}
	return v
}

func inAnyLOS(p geom.Point, sources []*Source) bool {
	for _, src := range sources {
		if src.LineOfSight().Contains(p) {
			return true
		}
	}
	return false
}

func inAnyFOV(p geom.Point, sources []*Source) bool {
	for _, src := range sources {
		if !src.Active() {
			continue
		}
		if fov := src.FieldOfView(); fov != nil && fov.Contains(p) {
			return true
		}
	}
	return false
}
