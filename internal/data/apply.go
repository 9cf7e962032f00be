package data

import (
	"errors"
	"fmt"

	"github.com/l1jgo/vision/internal/lighting"
	"github.com/l1jgo/vision/internal/limit"
	"github.com/l1jgo/vision/internal/region"
	"github.com/l1jgo/vision/internal/world"
)

// Diff counts what an apply changed.
type Diff struct {
	Added   int
	Updated int
	Removed int
}

func (d Diff) Changed() bool { return d.Added+d.Updated+d.Removed > 0 }

func (d Diff) add(o Diff) Diff {
	return Diff{Added: d.Added + o.Added, Updated: d.Updated + o.Updated, Removed: d.Removed + o.Removed}
}

// regionStore is the engine surface apply needs. Both *lighting.Engine and
// *limit.Engine satisfy it.
type regionStore[P any] interface {
	Add(id string, def region.Definition[P]) (*region.Region[P], error)
	Update(id string, patch region.Patch[P]) (bool, error)
	Remove(id string) error
	Regions() []*region.Region[P]
}

// applyRegions brings a store in line with specs: new ids are added, known
// ids replaced in place, missing ids removed. The scene region is untouched.
func applyRegions[P any](st regionStore[P], specs []Spec[P]) (Diff, error) {
	var diff Diff
	want := make(map[string]bool, len(specs))
	for _, sp := range specs {
		want[sp.ID] = true
	}
	for _, r := range st.Regions() {
		if r.IsScene() || want[r.ID] {
			continue
		}
		if err := st.Remove(r.ID); err != nil {
			return diff, fmt.Errorf("remove %s: %w", r.ID, err)
		}
		diff.Removed++
	}
	for _, sp := range specs {
		changed, err := st.Update(sp.ID, region.Replace(sp.Def))
		var unknown *region.UnknownRegionError
		switch {
		case errors.As(err, &unknown):
			if _, err := st.Add(sp.ID, sp.Def); err != nil {
				return diff, fmt.Errorf("add %s: %w", sp.ID, err)
			}
			diff.Added++
		case err != nil:
			return diff, fmt.Errorf("update %s: %w", sp.ID, err)
		case changed:
			diff.Updated++
		}
	}
	return diff, nil
}

// ApplyLights syncs the lighting engine with the scene document, including
// the scene region's own payload.
func ApplyLights(e *lighting.Engine, sc *Scene) (Diff, error) {
	var diff Diff
	changed, err := e.Update(region.SceneID, region.Patch[lighting.Light]{
		Payload: func(l *lighting.Light) { *l = sc.Light },
	})
	if err != nil {
		return diff, fmt.Errorf("scene light: %w", err)
	}
	if changed {
		diff.Updated++
	}
	d, err := applyRegions[lighting.Light](e, sc.Lights)
	return diff.add(d), err
}

// ApplyLimits syncs the limit engine with the scene document.
func ApplyLimits(e *limit.Engine, sc *Scene) (Diff, error) {
	return applyRegions[limit.Limit](e, sc.Limits)
}

// ApplySources syncs the source registry: new sources are added, existing
// ones reconfigured and marked dirty, missing ones removed.
func ApplySources(st *world.State, sc *Scene) (Diff, error) {
	var diff Diff
	want := make(map[string]bool, len(sc.Sources))
	for _, sp := range sc.Sources {
		want[sp.ID] = true
	}
	var stale []string
	for _, src := range st.Sources() {
		if !want[src.ID] {
			stale = append(stale, src.ID)
		}
	}
	for _, id := range stale {
		st.RemoveSource(id)
		diff.Removed++
	}
	for _, sp := range sc.Sources {
		cur := st.GetSource(sp.ID)
		if cur == nil {
			if err := st.AddSource(sp.Info()); err != nil {
				return diff, err
			}
			diff.Added++
			continue
		}
		if sp.sameAs(cur) {
			continue
		}
		sp.configure(cur)
		cur.Dirty = true
		diff.Updated++
	}
	return diff, nil
}

// Info builds a registry entry for the source.
func (sp SourceSpec) Info() *world.SourceInfo {
	info := &world.SourceInfo{}
	info.ID = sp.ID
	sp.configure(info)
	return info
}

func (sp SourceSpec) configure(info *world.SourceInfo) {
	info.Kind = sp.Kind
	info.Position = sp.Position
	info.NaturalRadius = sp.Radius
	info.Radius = sp.Radius
	info.Limited = false
	info.Explores = sp.Explores
	info.Channel = sp.Channel
	info.Track = lighting.Tracker{}
	if sp.Activity != nil {
		rng := *sp.Activity
		info.Track.Activity = &rng
	}
}

func (sp SourceSpec) sameAs(info *world.SourceInfo) bool {
	if info.Kind != sp.Kind || info.Position != sp.Position || info.NaturalRadius != sp.Radius ||
		info.Explores != sp.Explores || info.Channel != sp.Channel {
		return false
	}
	a, b := sp.Activity, info.Track.Activity
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Apply syncs all three stores with the scene document.
func Apply(le *lighting.Engine, me *limit.Engine, st *world.State, sc *Scene) (Diff, error) {
	lights, err := ApplyLights(le, sc)
	if err != nil {
		return lights, fmt.Errorf("apply lights: %w", err)
	}
	limits, err := ApplyLimits(me, sc)
	if err != nil {
		return lights.add(limits), fmt.Errorf("apply limits: %w", err)
	}
	sources, err := ApplySources(st, sc)
	if err != nil {
		return lights.add(limits).add(sources), fmt.Errorf("apply sources: %w", err)
	}
	return lights.add(limits).add(sources), nil
}
