package region

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l1jgo/vision/internal/geom"
)

type tag struct {
	Label string
	Tags  []string
}

func newSet(t *testing.T) *Set[tag] {
	t.Helper()
	return New("test", tag{Label: "scene"}, WithCellSize(50))
}

func TestAtPointFallsBackToScene(t *testing.T) {
	s := newSet(t)
	_, err := s.Add("room", Definition[tag]{Shape: geom.R(0, 0, 100, 100), Z: 1})
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		p := geom.Pt(rng.Float64()*1000-500, rng.Float64()*1000-500)
		r := s.AtPoint(p)
		require.NotNil(t, r)
		assert.Same(t, r, s.AtPoint(p), "deterministic")
		if geom.R(0, 0, 100, 100).Contains(p) {
			assert.Equal(t, "room", r.ID)
		} else {
			assert.Equal(t, SceneID, r.ID)
		}
	}
}

func TestAtPointZOrder(t *testing.T) {
	s := newSet(t)
	_, err := s.Add("A", Definition[tag]{Shape: geom.R(0, 0, 100, 100), Z: 1})
	require.NoError(t, err)
	_, err = s.Add("B", Definition[tag]{Shape: geom.R(40, 40, 100, 100), Z: 2})
	require.NoError(t, err)

	assert.Equal(t, "B", s.AtPoint(geom.Pt(50, 50)).ID)
	assert.Equal(t, "A", s.AtPoint(geom.Pt(10, 10)).ID)

	// Lowering B below A flips the winner.
	z := 0.5
	changed, err := s.Update("B", Patch[tag]{Z: &z})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "A", s.AtPoint(geom.Pt(50, 50)).ID)
}

func TestAtPointEqualZLaterWins(t *testing.T) {
	s := newSet(t)
	_, _ = s.Add("first", Definition[tag]{Shape: geom.R(0, 0, 10, 10), Z: 1})
	_, _ = s.Add("second", Definition[tag]{Shape: geom.R(0, 0, 10, 10), Z: 1})
	assert.Equal(t, "second", s.AtPoint(geom.Pt(5, 5)).ID)

	ids := []string{}
	for _, r := range s.Active() {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{SceneID, "first", "second"}, ids)
}

func TestAtPointGating(t *testing.T) {
	s := newSet(t)
	_, _ = s.Add("dusk", Definition[tag]{
		Shape:       geom.R(0, 0, 10, 10),
		Z:           1,
		ActiveRange: &Range{Min: 0.5, Max: 1},
	})
	_, _ = s.Add("inset", Definition[tag]{Shape: geom.R(20, 0, 10, 10), Z: 1, Inset: 3})
	_, _ = s.Add("hidden", Definition[tag]{Shape: geom.R(40, 0, 10, 10), Z: 1, Occluded: true})

	assert.Equal(t, SceneID, s.AtPoint(geom.Pt(5, 5)).ID, "range excludes level 0")
	assert.True(t, s.SetLevel(0.7))
	assert.Equal(t, "dusk", s.AtPoint(geom.Pt(5, 5)).ID)
	assert.False(t, s.SetLevel(0.8), "no boundary crossed")

	assert.Equal(t, "inset", s.AtPoint(geom.Pt(25, 5)).ID)
	assert.Equal(t, SceneID, s.AtPoint(geom.Pt(21, 5)).ID, "inside the inset margin")
	assert.Equal(t, SceneID, s.AtPoint(geom.Pt(45, 5)).ID)
}

func TestAddDuplicate(t *testing.T) {
	s := newSet(t)
	_, err := s.Add("a", Definition[tag]{Shape: geom.R(0, 0, 1, 1)})
	require.NoError(t, err)

	_, err = s.Add("a", Definition[tag]{Shape: geom.R(0, 0, 1, 1)})
	var dup *DuplicateRegionError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "a", dup.ID)

	_, err = s.Add(SceneID, Definition[tag]{Shape: geom.R(0, 0, 1, 1)})
	assert.True(t, errors.As(err, &dup))

	_, err = s.Add("b", Definition[tag]{})
	var shapeErr *geom.InvalidShapeError
	assert.True(t, errors.As(err, &shapeErr))
}

func TestUpdateIdempotent(t *testing.T) {
	s := newSet(t)
	_, err := s.Add("a", Definition[tag]{Shape: geom.R(0, 0, 10, 10), Payload: tag{Label: "x"}})
	require.NoError(t, err)
	before, _ := s.Get("a")
	v := s.Version()

	changed, err := s.Update("a", Patch[tag]{Payload: func(p *tag) { p.Label = "x"; p.Tags = []string{} }})
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, v, s.Version())
	after, _ := s.Get("a")
	assert.Same(t, before, after)

	shape, err := geom.NewPolygon(geom.R(0, 0, 10, 10).Outline())
	require.NoError(t, err)
	changed, err = s.Update("a", Patch[tag]{Shape: shape})
	require.NoError(t, err)
	assert.True(t, changed, "rect and polygon are different shapes")

	same, err := geom.NewPolygon(geom.R(0, 0, 10, 10).Outline())
	require.NoError(t, err)
	changed, err = s.Update("a", Patch[tag]{Shape: same})
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = s.Update("a", Patch[tag]{Payload: func(p *tag) { p.Label = "y" }})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Greater(t, s.Version(), v)

	updated, _ := s.Get("a")
	assert.Equal(t, s.Version(), updated.Version)
	assert.Equal(t, "x", before.Payload.Label, "old snapshot untouched")
}

func TestUpdateUnknownAndScene(t *testing.T) {
	s := newSet(t)
	_, err := s.Update("nope", Patch[tag]{})
	var unknown *UnknownRegionError
	assert.True(t, errors.As(err, &unknown))

	z := 5.0
	_, err = s.Update(SceneID, Patch[tag]{Z: &z})
	assert.ErrorIs(t, err, ErrSceneRegion)

	changed, err := s.Update(SceneID, Patch[tag]{Payload: func(p *tag) { p.Label = "night" }})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "night", s.Scene().Payload.Label)
}

func TestRemove(t *testing.T) {
	s := newSet(t)
	_, _ = s.Add("a", Definition[tag]{Shape: geom.R(0, 0, 10, 10), Z: 1})
	v := s.Version()

	require.NoError(t, s.Remove("a"))
	assert.Greater(t, s.Version(), v)
	assert.Equal(t, SceneID, s.AtPoint(geom.Pt(5, 5)).ID)
	assert.False(t, s.Has("a"))

	var unknown *UnknownRegionError
	assert.True(t, errors.As(s.Remove("a"), &unknown))
	assert.ErrorIs(t, s.Remove(SceneID), ErrSceneRegion)
}

func TestCheckVersion(t *testing.T) {
	s := newSet(t)
	v := s.Version()
	require.NoError(t, s.CheckVersion(v))

	_, _ = s.Add("a", Definition[tag]{Shape: geom.R(0, 0, 10, 10)})
	err := s.CheckVersion(v)
	var stale *StaleVersionError
	require.True(t, errors.As(err, &stale))
	assert.Equal(t, v, stale.Have)
	assert.Equal(t, s.Version(), stale.Current)
}

func TestReset(t *testing.T) {
	s := newSet(t)
	_, _ = s.Add("a", Definition[tag]{Shape: geom.R(0, 0, 10, 10)})
	v := s.Version()

	s.Reset(tag{Label: "fresh"})
	assert.Equal(t, 1, s.Len())
	assert.Greater(t, s.Version(), v)
	assert.Equal(t, "fresh", s.Scene().Payload.Label)
	assert.Equal(t, SceneID, s.AtPoint(geom.Pt(5, 5)).ID)
}

func TestRegionIDsAreNormalized(t *testing.T) {
	s := newSet(t)
	_, err := s.Add("caf\u00e9", Definition[tag]{Shape: geom.R(0, 0, 1, 1)})
	require.NoError(t, err)
	assert.True(t, s.Has("cafe\u0301"), "decomposed form resolves to the same id")
}

func TestCellIndexWideAndMove(t *testing.T) {
	ix := newCellIndex(10)
	ix.Add("small", geom.R(0, 0, 5, 5))
	ix.Add("huge", geom.R(0, 0, 1e6, 1e6))
	ix.Add("inf", geom.Unbounded{}.Bounds())

	collect := func(p geom.Point) map[string]bool {
		got := map[string]bool{}
		ix.Candidates(p, func(id string) { got[id] = true })
		return got
	}
	assert.Equal(t, map[string]bool{"small": true, "huge": true, "inf": true}, collect(geom.Pt(1, 1)))
	assert.Equal(t, map[string]bool{"huge": true, "inf": true}, collect(geom.Pt(-15, 1)))

	ix.Move("small", geom.R(-20, 0, 5, 5))
	assert.True(t, collect(geom.Pt(-15, 1))["small"])
	assert.False(t, collect(geom.Pt(1, 1))["small"])

	ix.Remove("small")
	assert.Empty(t, ix.keys["small"])
	assert.False(t, collect(geom.Pt(-15, 1))["small"])
}

func TestAtPointRegionBeyondCellRange(t *testing.T) {
	s := newSet(t)
	_, err := s.Add("huge", Definition[tag]{Shape: geom.R(-1e12, -1e12, 2e12, 2e12), Z: 1})
	require.NoError(t, err)
	_, err = s.Add("room", Definition[tag]{Shape: geom.R(0, 0, 10, 10), Z: 2})
	require.NoError(t, err)

	assert.Equal(t, "room", s.AtPoint(geom.Pt(5, 5)).ID)
	assert.Equal(t, "huge", s.AtPoint(geom.Pt(50, 50)).ID)
	assert.Equal(t, "huge", s.AtPoint(geom.Pt(-9e11, 9e11)).ID)
	assert.Equal(t, SceneID, s.AtPoint(geom.Pt(2e12, 0)).ID)

	ix := newCellIndex(1)
	ix.Add("far", geom.R(3e9, 3e9, 1, 1))
	assert.Contains(t, ix.wide, "far")
	got := 0
	ix.Candidates(geom.Pt(5e9, 0), func(string) { got++ })
	assert.Equal(t, 1, got, "only the wide list is scanned outside the cell range")
}

func TestAddRejectsInvalidLiteralShapes(t *testing.T) {
	s := newSet(t)
	for name, shape := range map[string]geom.Shape{
		"flat rect":       geom.R(0, 0, 0, 5),
		"negative circle": geom.Circle{Center: geom.Pt(5, 5), Radius: -1},
		"zero circle":     geom.Circle{Center: geom.Pt(5, 5)},
		"nil polygon":     (*geom.Polygon)(nil),
	} {
		_, err := s.Add(name, Definition[tag]{Shape: shape})
		var shapeErr *geom.InvalidShapeError
		assert.True(t, errors.As(err, &shapeErr), name)
		assert.ErrorIs(t, err, geom.ErrDegenerate, name)
		assert.False(t, s.Has(name), name)
	}

	_, err := s.Add("ok", Definition[tag]{Shape: geom.R(0, 0, 5, 5)})
	require.NoError(t, err)
	v := s.Version()
	changed, err := s.Update("ok", Patch[tag]{Shape: geom.R(0, 0, 5, 0)})
	assert.ErrorIs(t, err, geom.ErrDegenerate)
	assert.False(t, changed)
	assert.Equal(t, v, s.Version())
	assert.Equal(t, geom.R(0, 0, 5, 5), s.AtPoint(geom.Pt(1, 1)).Shape)
}
