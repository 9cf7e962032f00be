package system

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/l1jgo/vision/internal/core/event"
	coresys "github.com/l1jgo/vision/internal/core/system"
	"github.com/l1jgo/vision/internal/data"
	"github.com/l1jgo/vision/internal/fog"
	"github.com/l1jgo/vision/internal/geom"
	"github.com/l1jgo/vision/internal/lighting"
	"github.com/l1jgo/vision/internal/perception"
	"github.com/l1jgo/vision/internal/region"
)

const hallYAML = `
scene:
  id: hall
  width: 800
  height: 400
  grid: { size: 50 }
  darkness: 0.5
lights:
  - id: pit
    shape: { type: rect, x: 600, y: 0, width: 200, height: 400 }
    darkness: 1
sources:
  - { id: hero, x: 100, y: 100, radius: 60 }
  - { id: lantern, kind: light, x: 700, y: 200, radius: 40, activity: { min: 0.8, max: 1 } }
`

const tick = 100 * time.Millisecond

type harness struct {
	scene    *perception.Scene
	store    *fog.MemoryStore
	runner   *coresys.Runner
	lighting *LightingSystem
	persist  *PersistenceSystem
}

func newHarness(t *testing.T, doc string) *harness {
	t.Helper()
	sc, err := data.ParseScene([]byte(doc))
	require.NoError(t, err)
	store := fog.NewMemoryStore()
	scene, err := perception.New(sc, store, nil, perception.Options{FogExploration: true}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { scene.Close(context.Background()) })

	log := zap.NewNop()
	h := &harness{
		scene:    scene,
		store:    store,
		runner:   coresys.NewRunner(),
		lighting: NewLightingSystem(scene, log),
		persist:  NewPersistenceSystem(scene, 2*tick, log),
	}
	h.runner.Register(h.persist)
	h.runner.Register(NewFogSystem(scene, 1, log))
	h.runner.Register(NewVisionSystem(scene, log))
	h.runner.Register(h.lighting)
	h.runner.Register(NewEventDispatchSystem(scene.Bus))
	return h
}

func (h *harness) tick(n int) {
	for i := 0; i < n; i++ {
		h.runner.Tick(tick)
	}
}

func TestTickLoopExploresCommitsAndSaves(t *testing.T) {
	h := newHarness(t, hallYAML)

	h.tick(1)
	hero := h.scene.Sources.GetSource("hero")
	assert.False(t, hero.Dirty)
	_, ok := h.scene.Fog.Lookup(geom.Pt(100, 100))
	assert.True(t, ok, "explored on the first vision pass")
	assert.Zero(t, h.scene.PendingCommits(), "threshold 1 commits immediately")
	assert.True(t, h.scene.Fog.Explored(geom.Pt(100, 100)))
	assert.False(t, h.persist.Pending(), "commit events arrive next tick")

	h.tick(1)
	assert.True(t, h.persist.Pending())
	assert.Zero(t, h.store.Saves())

	h.tick(1)
	assert.False(t, h.persist.Pending())
	require.Eventually(t, func() bool { return h.store.Saves() == 1 }, 5*time.Second, 10*time.Millisecond)

	// Nothing new explored: no further saves.
	h.tick(5)
	assert.Equal(t, 1, h.store.Saves())
}

func TestMovementDebouncesSaves(t *testing.T) {
	h := newHarness(t, hallYAML)
	h.tick(3)
	require.Eventually(t, func() bool { return h.store.Saves() == 1 }, 5*time.Second, 10*time.Millisecond)

	// Moving every tick keeps committing, which keeps postponing the save.
	for i := 0; i < 4; i++ {
		h.scene.Sources.UpdatePosition("hero", geom.Pt(float64(150+50*i), 100))
		h.tick(1)
	}
	assert.Equal(t, 1, h.store.Saves())
	h.tick(3)
	require.Eventually(t, func() bool { return h.store.Saves() == 2 }, 5*time.Second, 10*time.Millisecond)
}

func TestDarknessAnimationTogglesActivity(t *testing.T) {
	h := newHarness(t, hallYAML)
	h.tick(1)
	lantern := h.scene.Sources.GetSource("lantern")
	assert.True(t, lantern.Active(), "the pit region is dark enough")

	var flips []string
	event.Subscribe(h.scene.Bus, func(e event.VisionInvalidated) { flips = append(flips, e.Reason) })

	// Lower the pit's darkness below the lantern's activity range.
	_, err := h.scene.Lighting.Update("pit", pitDarkness(0.2))
	require.NoError(t, err)
	h.tick(1)
	assert.False(t, lantern.Active())

	h.tick(1)
	assert.Contains(t, flips, "source lantern")
}

func TestAnimateDarkness(t *testing.T) {
	h := newHarness(t, hallYAML)
	var changes []float64
	event.Subscribe(h.scene.Bus, func(e event.DarknessChanged) { changes = append(changes, e.To) })

	h.lighting.AnimateDarkness(1, 2*tick)
	h.tick(1)
	assert.InDelta(t, 0.75, h.scene.Lighting.Darkness(), 1e-9)
	assert.True(t, h.lighting.Animating())
	h.tick(1)
	assert.Equal(t, 1.0, h.scene.Lighting.Darkness())
	assert.False(t, h.lighting.Animating())
	h.tick(1)
	assert.Equal(t, []float64{0.75, 1}, changes)

	h.lighting.ForceVision(true)
	h.tick(1)
	assert.True(t, h.scene.Lighting.ForceVision())
}

func TestReloadSystemAppliesEdits(t *testing.T) {
	h := newHarness(t, hallYAML)
	dir := t.TempDir()
	path := filepath.Join(dir, "scene.yaml")
	changes := make(chan struct{}, 1)
	reload := NewReloadSystem(h.scene, path, changes, zap.NewNop())
	h.runner.Register(reload)

	var reloaded []event.SceneReloaded
	event.Subscribe(h.scene.Bus, func(e event.SceneReloaded) { reloaded = append(reloaded, e) })

	require.NoError(t, os.WriteFile(path, []byte(hallYAML+"  - { id: scout, x: 300, y: 300, radius: 30 }\n"), 0o644))
	changes <- struct{}{}
	h.tick(2)
	require.NotNil(t, h.scene.Sources.GetSource("scout"))
	require.Len(t, reloaded, 1)
	assert.Equal(t, 1, reloaded[0].Added)

	// A broken document is ignored.
	require.NoError(t, os.WriteFile(path, []byte("scene: ["), 0o644))
	changes <- struct{}{}
	h.tick(2)
	assert.NotNil(t, h.scene.Sources.GetSource("scout"))
	assert.Len(t, reloaded, 1)

	// So is a different scene.
	require.NoError(t, os.WriteFile(path, []byte("scene: { id: other, width: 800, height: 400 }"), 0o644))
	changes <- struct{}{}
	h.tick(2)
	assert.NotNil(t, h.scene.Sources.GetSource("scout"))
}

func TestReloadSystemKeepsOverriddenID(t *testing.T) {
	h := newHarness(t, hallYAML)
	path := filepath.Join(t.TempDir(), "scene.yaml")
	changes := make(chan struct{}, 1)
	h.runner.Register(NewReloadSystem(h.scene, path, changes, zap.NewNop()).OverrideID("hall"))

	edited := strings.Replace(hallYAML, "id: hall", "id: hall-draft", 1) +
		"  - { id: scout, x: 300, y: 300, radius: 30 }\n"
	require.NoError(t, os.WriteFile(path, []byte(edited), 0o644))
	changes <- struct{}{}
	h.tick(1)
	assert.NotNil(t, h.scene.Sources.GetSource("scout"))
	assert.Equal(t, "hall", h.scene.ID())
}

func pitDarkness(d float64) region.Patch[lighting.Light] {
	return region.Patch[lighting.Light]{Payload: func(l *lighting.Light) { l.Darkness = &d }}
}
