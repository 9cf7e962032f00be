package perception

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l1jgo/vision/internal/core/event"
	"github.com/l1jgo/vision/internal/data"
	"github.com/l1jgo/vision/internal/fog"
	"github.com/l1jgo/vision/internal/geom"
	"github.com/l1jgo/vision/internal/lighting"
	"github.com/l1jgo/vision/internal/limit"
	"github.com/l1jgo/vision/internal/region"
	"github.com/l1jgo/vision/internal/world"
)

const vaultYAML = `
scene:
  id: vault
  width: 1000
  height: 1000
  grid: { size: 100 }
  darkness: 0.8
lights:
  - id: blackout
    shape: { type: rect, x: 800, y: 800, width: 200, height: 200 }
    z: 1
    vision: force_off
  - id: shrine
    shape: { type: rect, x: 0, y: 800, width: 100, height: 100 }
    fog_revealed: true
  - id: crypt
    shape: { type: rect, x: 0, y: 0, width: 200, height: 200 }
    fog_exploration: false
    sight_limit: 50
limits:
  - id: mist
    shape: { type: rect, x: 400, y: 0, width: 200, height: 200 }
    sight: 40
sources:
  - { id: hero, x: 500, y: 500, radius: 100 }
  - { id: torch, kind: light, x: 900, y: 100, radius: 50 }
`

func parse(t *testing.T, doc string) *data.Scene {
	t.Helper()
	sc, err := data.ParseScene([]byte(doc))
	require.NoError(t, err)
	return sc
}

func newScene(t *testing.T, store fog.Store, mutate ...func(*Options)) *Scene {
	t.Helper()
	opts := Options{FogExploration: true, Resolution: 1000}
	for _, fn := range mutate {
		fn(&opts)
	}
	s, err := New(parse(t, vaultYAML), store, nil, opts, nil)
	require.NoError(t, err)
	for _, src := range s.Sources.Sources() {
		s.UpdateSource(src)
	}
	return s
}

func moveTo(s *Scene, id string, p geom.Point) *world.SourceInfo {
	s.Sources.UpdatePosition(id, p)
	src := s.Sources.GetSource(id)
	s.UpdateSource(src)
	return src
}

func TestIsVisible(t *testing.T) {
	s := newScene(t, nil)

	assert.True(t, s.IsVisible(geom.Pt(550, 500), 0), "inside the hero's field of view")
	assert.False(t, s.IsVisible(geom.Pt(700, 500), 0))
	assert.True(t, s.IsVisible(geom.Pt(900, 120), 0), "lit by the torch")

	moveTo(s, "hero", geom.Pt(900, 900))
	assert.False(t, s.IsVisible(geom.Pt(900, 900), 0), "forced-off region")
	assert.False(t, s.IsVisible(geom.Pt(905, 795), 0))
	assert.True(t, s.IsVisible(geom.Pt(905, 795), 30), "one sample reaches the field of view")
}

func TestIsVisibleWithoutViewers(t *testing.T) {
	doc := "scene: { width: 100, height: 100 }\n"
	s, err := New(parse(t, doc), nil, nil, Options{Unrestricted: true}, nil)
	require.NoError(t, err)
	assert.True(t, s.IsVisible(geom.Pt(50, 50), 0))

	s, err = New(parse(t, doc), nil, nil, Options{}, nil)
	require.NoError(t, err)
	assert.False(t, s.IsVisible(geom.Pt(50, 50), 0))
}

func TestUpdateSourceClipsRadius(t *testing.T) {
	s := newScene(t, nil)
	hero := s.Sources.GetSource("hero")
	assert.Equal(t, 100.0, hero.Radius)
	assert.False(t, hero.Limited)
	assert.False(t, hero.Dirty)

	moveTo(s, "hero", geom.Pt(500, 100))
	assert.Equal(t, 40.0, hero.Radius, "limit region")
	assert.True(t, hero.Limited)
	assert.Equal(t, 40.0, s.ClipRange(geom.Pt(500, 100), limit.Sight))

	moveTo(s, "hero", geom.Pt(100, 100))
	assert.Equal(t, 50.0, hero.Radius, "region sight limit")
	assert.True(t, hero.Limited)

	moveTo(s, "hero", geom.Pt(500, 500))
	assert.Equal(t, 100.0, hero.Radius)
	assert.False(t, hero.Limited)

	torch := moveTo(s, "torch", geom.Pt(100, 100))
	assert.Equal(t, 50.0, torch.Radius, "sight limits only clip vision")
}

func TestExploreFromSource(t *testing.T) {
	s := newScene(t, nil)
	hero := s.Sources.GetSource("hero")
	base := s.PendingCommits()

	assert.True(t, s.ExploreFromSource(hero, false))
	assert.False(t, s.ExploreFromSource(hero, false), "already explored")
	assert.True(t, s.ExploreFromSource(hero, true), "forced")
	assert.Equal(t, base+2, s.PendingCommits())
	assert.True(t, s.NeedsSave())

	moveTo(s, "hero", geom.Pt(100, 100))
	assert.False(t, s.ExploreFromSource(hero, false), "region disables exploration")
	assert.False(t, s.ExploreFromSource(s.Sources.GetSource("torch"), false), "lights never explore")

	off := newScene(t, nil, func(o *Options) { o.FogExploration = false })
	assert.False(t, off.ExploreFromSource(off.Sources.GetSource("hero"), false))

	vetoed := newScene(t, nil, func(o *Options) {
		o.ExploreFilter = func(id string, _ geom.Point) bool { return id != "hero" }
	})
	assert.False(t, vetoed.ExploreFromSource(vetoed.Sources.GetSource("hero"), false))
}

func TestCommitEmitsEvent(t *testing.T) {
	s := newScene(t, nil)
	var committed []int
	event.Subscribe(s.Bus, func(e event.FogCommitted) { committed = append(committed, e.Positions) })

	require.True(t, s.ExploreFromSource(s.Sources.GetSource("hero"), false))
	n := s.PendingCommits()
	assert.True(t, s.CommitFog())
	assert.False(t, s.CommitFog())
	assert.Zero(t, s.PendingCommits())

	s.Bus.SwapBuffers()
	s.Bus.DispatchAll()
	assert.Equal(t, []int{n}, committed)
	assert.True(t, s.Fog.Explored(geom.Pt(500, 500)))
	assert.True(t, s.Fog.Explored(geom.Pt(50, 850)), "revealed region baked at commit")
}

func drain(t *testing.T, s *Scene) []fog.Outcome {
	t.Helper()
	var outs []fog.Outcome
	require.Eventually(t, func() bool {
		outs = append(outs, s.DrainSaves()...)
		return len(outs) > 0
	}, 5*time.Second, 10*time.Millisecond)
	return outs
}

func TestFogSurvivesReload(t *testing.T) {
	store := fog.NewMemoryStore()
	s := newScene(t, store)
	require.True(t, s.ExploreFromSource(s.Sources.GetSource("hero"), false))
	require.True(t, s.CommitFog())
	require.True(t, s.SaveFog())
	assert.False(t, s.SaveFog(), "nothing changed since the last snapshot")

	outs := drain(t, s)
	require.NoError(t, outs[0].Err)
	require.NoError(t, s.Close(context.Background()))
	assert.Equal(t, 1, store.Saves())

	again := newScene(t, store)
	require.NoError(t, again.Load(context.Background()))
	assert.Equal(t, 1, again.Fog.Len())
	e, ok := again.Fog.Lookup(geom.Pt(500, 500))
	require.True(t, ok)
	assert.Equal(t, fog.Entry{Radius: 100}, e)
	assert.True(t, again.Fog.Explored(geom.Pt(500, 500)))
	assert.True(t, again.Fog.Explored(geom.Pt(50, 850)))
	require.NoError(t, again.Close(context.Background()))
}

func TestFailedSaveRetries(t *testing.T) {
	store := fog.NewMemoryStore()
	store.SetFail(errors.New("disk full"))
	s := newScene(t, store)
	require.True(t, s.ExploreFromSource(s.Sources.GetSource("hero"), false))
	require.True(t, s.SaveFog())
	assert.False(t, s.NeedsSave())

	outs := drain(t, s)
	assert.Error(t, outs[0].Err)
	assert.True(t, s.NeedsSave(), "failed saves leave the ledger dirty")

	store.SetFail(nil)
	require.True(t, s.SaveFog())
	require.Eventually(t, func() bool { return store.Saves() == 1 }, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, s.Close(context.Background()))
}

func TestCloseCommitsAndSaves(t *testing.T) {
	store := fog.NewMemoryStore()
	s := newScene(t, store)
	require.True(t, s.ExploreFromSource(s.Sources.GetSource("hero"), false))
	require.NoError(t, s.Close(context.Background()))
	assert.Equal(t, 1, store.Saves())
	assert.Zero(t, s.PendingCommits())

	rec, err := store.Load(context.Background(), "vault")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Contains(t, rec.Positions, "550_550")
}

func TestResetFog(t *testing.T) {
	store := fog.NewMemoryStore()
	s := newScene(t, store)
	require.True(t, s.ExploreFromSource(s.Sources.GetSource("hero"), false))
	require.True(t, s.CommitFog())

	s.ResetFog()
	assert.Zero(t, s.Fog.Len())
	assert.False(t, s.Fog.Explored(geom.Pt(500, 500)))
	require.Eventually(t, func() bool { return store.Saves() == 1 }, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, s.Close(context.Background()))
	assert.True(t, s.Fog.Explored(geom.Pt(50, 850)), "revealed regions stay explored")
}

func TestRefreshRegionsInvalidatesSources(t *testing.T) {
	s := newScene(t, nil)
	s.Bus.SwapBuffers() // discard construction events
	hero := s.Sources.GetSource("hero")
	require.False(t, hero.Dirty)

	d := 0.2
	res := s.RefreshRegions(lighting.RefreshOptions{Darkness: &d})
	assert.True(t, res.DarknessChanged)
	assert.True(t, hero.Dirty)
	assert.Equal(t, 1, event.Pending[event.DarknessChanged](s.Bus))

	s.UpdateSource(hero)
	res = s.RefreshRegions(lighting.RefreshOptions{})
	assert.False(t, res.RefreshVision)
	assert.False(t, hero.Dirty)

	_, err := s.Limits.Add("bog", data.Spec[limit.Limit]{}.Def)
	assert.Error(t, err, "regions need a shape")
	_, err = s.Limits.Add("bog", s.Document().Limits[0].Def)
	require.NoError(t, err)
	res = s.RefreshRegions(lighting.RefreshOptions{})
	assert.True(t, res.RefreshVision, "limit changes re-run vision")
	assert.True(t, hero.Dirty)
}

func TestApplyScene(t *testing.T) {
	s := newScene(t, nil)
	s.Bus.SwapBuffers()

	_, err := s.ApplyScene(parse(t, "scene: { id: vault, width: 500, height: 500 }"))
	assert.ErrorIs(t, err, ErrGeometryChanged)

	edited := vaultYAML + `
  - { id: scout, x: 200, y: 500, radius: 80 }
`
	diff, err := s.ApplyScene(parse(t, edited))
	require.NoError(t, err)
	assert.Equal(t, data.Diff{Added: 1}, diff)
	require.NotNil(t, s.Sources.GetSource("scout"))
	assert.True(t, s.Sources.GetSource("scout").Dirty)

	diff, err = s.ApplyScene(parse(t, edited))
	require.NoError(t, err)
	assert.False(t, diff.Changed())
}

func TestApplySceneFailurePartway(t *testing.T) {
	s := newScene(t, nil)
	s.Bus.SwapBuffers()
	hero := s.Sources.GetSource("hero")
	require.False(t, hero.Dirty)

	doc := parse(t, vaultYAML+`
  - { id: scout, x: 200, y: 500, radius: 80 }
`)
	doc.Lights = append(doc.Lights, data.Spec[lighting.Light]{
		ID:  "annex",
		Def: region.Definition[lighting.Light]{Shape: geom.R(600, 600, 100, 100), Z: 3},
	})
	doc.Limits = append(doc.Limits, data.Spec[limit.Limit]{ID: "broken"})

	_, err := s.ApplyScene(doc)
	var shapeErr *geom.InvalidShapeError
	require.ErrorAs(t, err, &shapeErr)

	_, ok := s.Lighting.Get("annex")
	assert.True(t, ok, "lights applied before the failure stay")
	assert.Nil(t, s.Sources.GetSource("scout"), "sources after the failure are untouched")
	assert.NotSame(t, doc, s.Document())
	assert.True(t, hero.Dirty, "regions were refreshed")
	assert.Equal(t, 1, event.Pending[event.VisionInvalidated](s.Bus))
}

func TestCheckVersion(t *testing.T) {
	s := newScene(t, nil)
	v := s.Lighting.Version()
	assert.NoError(t, s.CheckVersion(v))
	require.NoError(t, s.Lighting.Remove("shrine"))
	assert.Error(t, s.CheckVersion(v))
	assert.Len(t, s.Regions(), 3)
}
