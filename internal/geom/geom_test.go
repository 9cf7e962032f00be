package geom

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square(x, y, s float64) []Point {
	return []Point{Pt(x, y), Pt(x+s, y), Pt(x+s, y+s), Pt(x, y+s)}
}

func TestNewPolygonRejectsBadInput(t *testing.T) {
	cases := []struct {
		name   string
		points []Point
		reason error
	}{
		{"too few", []Point{Pt(0, 0), Pt(1, 1)}, ErrDegenerate},
		{"collinear", []Point{Pt(0, 0), Pt(1, 1), Pt(2, 2)}, ErrDegenerate},
		{"bowtie", []Point{Pt(0, 0), Pt(10, 10), Pt(10, 0), Pt(0, 5)}, ErrSelfIntersecting},
		{"nan", []Point{Pt(0, 0), Pt(math.NaN(), 1), Pt(2, 0)}, ErrNonFiniteVertices},
		{"inf", []Point{Pt(0, 0), Pt(math.Inf(1), 1), Pt(2, 0)}, ErrNonFiniteVertices},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewPolygon(tc.points)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.reason)

			var shapeErr *InvalidShapeError
			require.True(t, errors.As(err, &shapeErr))
			assert.Equal(t, "polygon", shapeErr.Kind)
		})
	}
}

func TestNewPolygonDropsClosingVertex(t *testing.T) {
	pts := append(square(0, 0, 10), Pt(0, 0))
	p, err := NewPolygon(pts)
	require.NoError(t, err)
	assert.Equal(t, 4, p.Len())
	assert.InDelta(t, 100, p.Area(), 1e-9)
	assert.Equal(t, R(0, 0, 10, 10), p.Bounds())
}

func TestPolygonContains(t *testing.T) {
	// L-shaped concave polygon.
	p, err := NewPolygon([]Point{
		Pt(0, 0), Pt(20, 0), Pt(20, 10), Pt(10, 10), Pt(10, 20), Pt(0, 20),
	})
	require.NoError(t, err)

	assert.True(t, p.Contains(Pt(5, 5)))
	assert.True(t, p.Contains(Pt(15, 5)))
	assert.True(t, p.Contains(Pt(5, 15)))
	assert.False(t, p.Contains(Pt(15, 15)), "notch is outside")
	assert.False(t, p.Contains(Pt(-1, 5)))
	assert.True(t, p.Contains(Pt(0, 5)), "boundary counts as inside")
	assert.True(t, p.Contains(Pt(20, 0)), "vertex counts as inside")
}

func TestContainsInset(t *testing.T) {
	r := R(0, 0, 10, 10)
	assert.True(t, ContainsInset(r, Pt(5, 5), 2))
	assert.False(t, ContainsInset(r, Pt(1, 5), 2))
	assert.True(t, ContainsInset(r, Pt(1, 5), 0))
	assert.False(t, ContainsInset(nil, Pt(1, 5), 0))

	p, err := NewPolygon(square(0, 0, 10))
	require.NoError(t, err)
	assert.True(t, ContainsInset(p, Pt(5, 5), 4.9))
	assert.False(t, ContainsInset(p, Pt(5, 5), 5.1))

	assert.True(t, ContainsInset(Unbounded{}, Pt(1e9, -1e9), 100))
}

func TestCircle(t *testing.T) {
	c, err := NewCircle(Pt(0, 0), 10)
	require.NoError(t, err)
	assert.True(t, c.Contains(Pt(6, 8)))
	assert.False(t, c.Contains(Pt(8, 8)))
	assert.InDelta(t, 5, c.DistanceToEdge(Pt(3, 4)), 1e-9)
	assert.Equal(t, R(-10, -10, 20, 20), c.Bounds())

	_, err = NewCircle(Pt(0, 0), 0)
	assert.ErrorIs(t, err, ErrDegenerate)

	ring := c.Outline()
	assert.GreaterOrEqual(t, len(ring), 16)
	for _, v := range ring {
		assert.InDelta(t, 10, Distance(v, c.Center), 1e-9)
	}
}

func TestRect(t *testing.T) {
	_, err := NewRect(0, 0, 0, 5)
	assert.ErrorIs(t, err, ErrDegenerate)

	r := R(0, 0, 10, 10)
	assert.Equal(t, Pt(5, 5), r.Center())
	assert.InDelta(t, 1, r.DistanceToEdge(Pt(9, 5)), 1e-9)
	assert.InDelta(t, 5, r.DistanceToEdge(Pt(13, 14)), 1e-9)
	assert.True(t, r.Intersects(R(10, 10, 5, 5)))
	assert.False(t, r.Intersects(R(11, 0, 5, 5)))
	assert.Equal(t, R(5, 5, 5, 5), r.Intersect(R(5, 5, 10, 10)))
	assert.Equal(t, R(0, 0, 15, 15), r.Union(R(5, 5, 10, 10)))
}

func TestClipToRectPolygon(t *testing.T) {
	scene := R(0, 0, 10, 10)

	p, err := NewPolygon(square(5, 5, 10))
	require.NoError(t, err)
	ring := ClipToRect(p, scene)
	require.NotNil(t, ring)
	clipped := PolygonFromRing(ring)
	assert.InDelta(t, 25, clipped.Area(), 1e-9)
	assert.Equal(t, R(5, 5, 5, 5), clipped.Bounds())

	// Winding of the subject does not matter.
	cw := square(5, 5, 10)
	cw[1], cw[3] = cw[3], cw[1]
	q, err := NewPolygon(cw)
	require.NoError(t, err)
	assert.InDelta(t, 25, PolygonFromRing(ClipToRect(q, scene)).Area(), 1e-9)

	far, err := NewPolygon(square(20, 20, 5))
	require.NoError(t, err)
	assert.Nil(t, ClipToRect(far, scene))
}

func TestPolygonDistanceToEdge(t *testing.T) {
	p, err := NewPolygon([]Point{
		Pt(0, 0), Pt(20, 0), Pt(20, 10), Pt(10, 10), Pt(10, 20), Pt(0, 20),
	})
	require.NoError(t, err)
	assert.InDelta(t, 2, p.DistanceToEdge(Pt(2, 15)), 1e-9)
	assert.InDelta(t, 3, p.DistanceToEdge(Pt(5, 3)), 1e-9)
	assert.InDelta(t, 2, p.DistanceToEdge(Pt(-2, 5)), 1e-9, "closing edge counts")
	assert.InDelta(t, 5, p.DistanceToEdge(Pt(15, 15)), 1e-9, "outside the notch")
}

func TestFit(t *testing.T) {
	p, err := NewPolygon(square(-5, -5, 10))
	require.NoError(t, err)

	fitted, err := Fit(p, R(0, 0, 100, 100))
	require.NoError(t, err)
	assert.InDelta(t, 25, fitted.Area(), 1e-9)

	_, err = Fit(p, R(50, 50, 10, 10))
	assert.ErrorIs(t, err, ErrDegenerate)
}

func TestClipToRect(t *testing.T) {
	scene := R(0, 0, 100, 50)
	assert.Equal(t, scene.Outline(), ClipToRect(Unbounded{}, scene))
	assert.Nil(t, ClipToRect(R(200, 200, 5, 5), scene))

	ring := ClipToRect(R(90, 40, 20, 20), scene)
	assert.InDelta(t, 100, PolygonFromRing(ring).Area(), 1e-9)
}

func TestShapeEqual(t *testing.T) {
	a, _ := NewPolygon(square(0, 0, 10))
	b, _ := NewPolygon(square(0, 0, 10))
	c, _ := NewPolygon(square(0, 0, 11))
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(R(0, 0, 10, 10)))
	assert.True(t, Unbounded{}.Equal(Unbounded{}))
	assert.True(t, Circle{Radius: 1}.Equal(Circle{Radius: 1}))
}
