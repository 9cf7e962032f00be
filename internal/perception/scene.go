package perception

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"

	"go.uber.org/zap"

	"github.com/l1jgo/vision/internal/core/event"
	"github.com/l1jgo/vision/internal/data"
	"github.com/l1jgo/vision/internal/fog"
	"github.com/l1jgo/vision/internal/geom"
	"github.com/l1jgo/vision/internal/lighting"
	"github.com/l1jgo/vision/internal/limit"
	"github.com/l1jgo/vision/internal/sight"
	"github.com/l1jgo/vision/internal/world"
)

// ErrGeometryChanged is returned by ApplyScene when the new document moves
// the scene rectangle or grid. The fog texture is sized for the old one, so
// the scene has to be rebuilt.
var ErrGeometryChanged = errors.New("scene geometry changed")

// Options tunes a Scene.
type Options struct {
	// Tolerance is the default sampling offset for IsVisible.
	Tolerance float64
	// Unrestricted lets the observer see everything when no viewer exists.
	Unrestricted bool
	// FogExploration switches exploration on for the whole scene.
	FogExploration bool
	// MaxImageSize caps the saved fog image side.
	MaxImageSize int
	// Resolution caps the in-memory fog texture side.
	Resolution int
	// Curve replaces the built-in light weight curve.
	Curve lighting.Curve
	// ExploreFilter can veto exploration by a source.
	ExploreFilter func(sourceID string, p geom.Point) bool
}

// Scene is the perception core of one loaded scene: lighting and limit
// engines, source registry, fog ledger and its saver. Everything except the
// saver runs on the scene goroutine.
type Scene struct {
	doc  *data.Scene
	opts Options
	log  *zap.Logger

	Lighting *lighting.Engine
	Limits   *limit.Engine
	Sources  *world.State
	Fog      *fog.Ledger
	Bus      *event.Bus

	store  fog.Store
	saver  *fog.Saver
	tester sight.Tester

	revealed []revealKey
}

type revealKey struct {
	id      string
	version uint64
}

// New builds a scene from a parsed document. store may be nil, in which
// case fog is never persisted.
func New(doc *data.Scene, store fog.Store, bus *event.Bus, opts Options, log *zap.Logger) (*Scene, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if bus == nil {
		bus = event.NewBus()
	}
	log = log.With(zap.String("scene", doc.ID))

	lopts := []lighting.Option{lighting.WithLogger(log), lighting.WithDarkness(doc.Darkness)}
	if opts.Curve != nil {
		lopts = append(lopts, lighting.WithCurve(opts.Curve))
	}
	s := &Scene{
		doc:      doc,
		opts:     opts,
		log:      log,
		Lighting: lighting.New(doc.Light, lopts...),
		Limits:   limit.New(doc.Limit, log),
		Sources:  world.NewState(),
		Bus:      bus,
		store:    store,
	}
	s.tester = sight.Tester{Env: s.Lighting, Unrestricted: opts.Unrestricted}

	if _, err := data.Apply(s.Lighting, s.Limits, s.Sources, doc); err != nil {
		return nil, fmt.Errorf("build scene %s: %w", doc.ID, err)
	}
	s.Fog = fog.NewLedger(doc.FogConfig(opts.Resolution), s.Lighting, log)
	if store != nil {
		s.saver = fog.NewSaver(store, doc.ID, opts.MaxImageSize, log)
	}

	s.RefreshRegions(s.docRefresh())
	return s, nil
}

func (s *Scene) ID() string { return s.doc.ID }

// Document returns the scene document currently applied.
func (s *Scene) Document() *data.Scene { return s.doc }

func (s *Scene) docRefresh() lighting.RefreshOptions {
	d := s.doc.Darkness
	force := !s.doc.TokenVision
	return lighting.RefreshOptions{Darkness: &d, ForceVision: &force}
}

// Load restores the persisted fog, if any.
func (s *Scene) Load(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	rec, err := s.store.Load(ctx, s.doc.ID)
	if err != nil {
		return fmt.Errorf("load fog %s: %w", s.doc.ID, err)
	}
	if rec == nil {
		s.log.Info("no stored fog")
		return nil
	}
	img, positions, err := rec.Decode()
	if err != nil {
		return fmt.Errorf("load fog %s: %w", s.doc.ID, err)
	}
	s.Fog.Restore(img, positions)
	return nil
}

// ── Regions ──

// ResolveRegion returns the authoritative lighting region at p and its state.
func (s *Scene) ResolveRegion(p geom.Point) lighting.Resolved {
	return s.Lighting.At(p)
}

// RefreshRegions applies scalar inputs and publishes what changed. Any
// vision invalidation marks every source for recomputation.
func (s *Scene) RefreshRegions(opts lighting.RefreshOptions) lighting.Result {
	prevDark := s.Lighting.Darkness()
	prevVersion := s.Lighting.Version()
	res := s.Lighting.Refresh(opts)

	if res.DarknessChanged {
		event.Emit(s.Bus, event.DarknessChanged{From: prevDark, To: s.Lighting.Darkness()})
	}
	if s.Lighting.Version() != prevVersion || res.RefreshVision {
		s.syncRevealed()
	}
	if s.Limits.Sync() {
		event.Emit(s.Bus, event.RegionsChanged{Engine: "limit", Version: s.Limits.Version()})
		res.RefreshVision = true
	}
	if res.RefreshVision {
		event.Emit(s.Bus, event.RegionsChanged{Engine: "lighting", Version: s.Lighting.Version()})
		event.Emit(s.Bus, event.VisionInvalidated{Reason: "refresh"})
	}
	if res.RefreshVision || res.DarknessChanged {
		s.Sources.MarkAllDirty()
	}
	return res
}

// syncRevealed hands the ledger the shapes of always-explored regions when
// that set changed.
func (s *Scene) syncRevealed() {
	var keys []revealKey
	var shapes []geom.Shape
	for _, r := range s.Lighting.Regions() {
		if r.IsScene() || !r.Payload.FogRevealed {
			continue
		}
		keys = append(keys, revealKey{id: r.ID, version: r.Version})
		shapes = append(shapes, r.Shape)
	}
	if slices.Equal(keys, s.revealed) {
		return
	}
	s.revealed = keys
	s.Fog.SetRevealed(shapes)
}

// ClipRange returns the limit distance for ch at p (+Inf when unlimited).
func (s *Scene) ClipRange(p geom.Point, ch limit.Channel) float64 {
	return s.Limits.Clip(p, ch)
}

// ── Sources ──

// UpdateSource re-resolves a source's region, activity and effective
// radius. It reports whether the source's activity flipped.
func (s *Scene) UpdateSource(src *world.SourceInfo) (flipped bool) {
	_, flipped = src.Track.Update(s.Lighting, src.Position)
	res := src.Region(s.Lighting)

	r := s.Limits.EffectiveRadius(src.Position, src.Channel, src.NaturalRadius)
	if src.Kind == sight.Vision {
		r = math.Min(r, res.State.SightLimit)
	}
	src.Radius = math.Max(0, r)
	src.Limited = src.Radius < src.NaturalRadius
	src.Dirty = false

	if flipped {
		event.Emit(s.Bus, event.VisionInvalidated{Reason: "source " + src.ID})
	}
	return flipped
}

// SetPolygons installs renderer-computed FOV and LOS shapes on a source.
// Nil shapes fall back to the radius circle and the unbounded plane.
func (s *Scene) SetPolygons(id string, fov, los geom.Shape) bool {
	src := s.Sources.GetSource(id)
	if src == nil {
		return false
	}
	src.FOV, src.LOS = fov, los
	src.Dirty = true
	return true
}

// IsVisible tests p against every viewer and light in the scene. A negative
// tolerance uses the configured default.
func (s *Scene) IsVisible(p geom.Point, tolerance float64) bool {
	if tolerance < 0 {
		tolerance = s.opts.Tolerance
	}
	return s.tester.Test(p, tolerance, s.Sources.Viewers(), s.Sources.Lights())
}

// ── Fog ──

// ExploreFromSource records what a vision source currently sees. It returns
// false when exploration is off for the scene, the source or its region, or
// when the position was already explored.
func (s *Scene) ExploreFromSource(src *world.SourceInfo, force bool) bool {
	if !s.opts.FogExploration || src.Kind != sight.Vision || !src.Explores {
		return false
	}
	if !src.Region(s.Lighting).State.FogExploration {
		return false
	}
	if s.opts.ExploreFilter != nil && !s.opts.ExploreFilter(src.ID, src.Position) {
		return false
	}
	return s.Fog.Explore(fog.Observation{
		Position: src.Position,
		Radius:   src.Radius,
		Limited:  src.Limited,
		FOV:      src.FieldOfView(),
	}, force)
}

func (s *Scene) PendingCommits() int { return s.Fog.PendingCommits() }

func (s *Scene) NeedsSave() bool { return s.Fog.NeedsSave() }

// CommitFog bakes pending exploration into the coverage image.
func (s *Scene) CommitFog() bool {
	n := s.Fog.PendingCommits()
	if !s.Fog.Commit() {
		return false
	}
	event.Emit(s.Bus, event.FogCommitted{Positions: n})
	return true
}

// SaveFog snapshots the ledger and hands it to the saver. It returns false
// when there is no store or nothing changed.
func (s *Scene) SaveFog() bool {
	if s.saver == nil {
		return false
	}
	snap := s.Fog.Snapshot()
	if snap == nil {
		return false
	}
	s.saver.Submit(snap)
	return true
}

// DrainSaves collects finished saves. A failed save leaves the ledger dirty
// so the next save retries it.
func (s *Scene) DrainSaves() []fog.Outcome {
	if s.saver == nil {
		return nil
	}
	var outs []fog.Outcome
	for {
		select {
		case out := <-s.saver.Outcomes():
			if out.Err != nil {
				s.Fog.MarkDirty()
			}
			event.Emit(s.Bus, event.FogSaved{Bytes: out.Bytes, Duration: out.Duration, Err: out.Err})
			outs = append(outs, out)
		default:
			return outs
		}
	}
}

// ResetFog forgets all exploration and queues the empty ledger for saving.
func (s *Scene) ResetFog() {
	s.Fog.Reset()
	s.revealed = nil
	s.syncRevealed()
	s.SaveFog()
}

// ── Lifecycle ──

// ApplyScene brings the engines and sources in line with a new document of
// the same scene.
//
// Apply stops at the first failing region and keeps what it already changed.
// Regions are refreshed either way so derived state matches the engines, but
// the previous document stays current and the next apply diffs against it.
func (s *Scene) ApplyScene(doc *data.Scene) (data.Diff, error) {
	if doc.Rect != s.doc.Rect || doc.Grid != s.doc.Grid {
		return data.Diff{}, ErrGeometryChanged
	}
	diff, err := data.Apply(s.Lighting, s.Limits, s.Sources, doc)
	if err == nil {
		s.doc = doc
	}
	s.RefreshRegions(s.docRefresh())
	return diff, err
}

// Regions lists the lighting regions with their resolved state, lowest first.
func (s *Scene) Regions() []lighting.Resolved {
	rs := s.Lighting.Regions()
	out := make([]lighting.Resolved, 0, len(rs))
	for _, r := range rs {
		out = append(out, lighting.Resolved{Region: r, State: s.Lighting.StateOf(r)})
	}
	return out
}

// CheckVersion reports whether a caller's cached lighting version is stale.
func (s *Scene) CheckVersion(v uint64) error {
	return s.Lighting.CheckVersion(v)
}

// Close commits pending exploration, writes the final save and stops the
// saver.
func (s *Scene) Close(ctx context.Context) error {
	if s.Fog.PendingCommits() > 0 {
		s.CommitFog()
	}
	if s.saver == nil {
		return nil
	}
	if s.Fog.NeedsSave() {
		s.SaveFog()
	}
	err := s.saver.Close(ctx)
	for _, out := range s.DrainSaves() {
		if out.Err != nil {
			s.log.Warn("final fog save failed", zap.Error(out.Err))
		}
	}
	return err
}
