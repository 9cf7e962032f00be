package lighting

import (
	"github.com/l1jgo/vision/internal/geom"
	"github.com/l1jgo/vision/internal/region"
)

// Tracker caches the resolved region of one source. The cache is dropped
// when the source moves or when the engine's version or darkness changes.
type Tracker struct {
	// Activity gates the source on its region's darkness. The zero value
	// means always active.
	Activity *region.Range

	pos      geom.Point
	version  uint64
	level    float64
	scene    *region.Region[Light]
	resolved Resolved
	valid    bool
	active   bool
	seen     bool
}

// Resolve returns the region at p, reusing the cached result when nothing
// relevant changed.
func (t *Tracker) Resolve(e *Engine, p geom.Point) Resolved {
	scene := e.set.Scene()
	if t.valid && t.pos == p && t.version == e.Version() && t.level == e.Darkness() && t.scene == scene {
		return t.resolved
	}
	t.resolved = e.At(p)
	t.pos = p
	t.version = e.Version()
	t.level = e.Darkness()
	t.scene = scene
	t.valid = true
	return t.resolved
}

// Invalidate drops the cached region.
func (t *Tracker) Invalidate() { t.valid = false }

// Update re-evaluates activity at p and reports whether it flipped since the
// last call. The first call never reports a flip.
func (t *Tracker) Update(e *Engine, p geom.Point) (active, flipped bool) {
	res := t.Resolve(e, p)
	active = t.Activity == nil || t.Activity.Contains(res.State.Darkness)
	flipped = t.seen && active != t.active
	t.active = active
	t.seen = true
	return active, flipped
}

// Active returns the activity computed by the last Update.
func (t *Tracker) Active() bool { return !t.seen || t.active }
