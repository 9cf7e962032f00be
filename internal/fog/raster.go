package fog

import (
	"image"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/vector"

	"github.com/l1jgo/vision/internal/geom"
)

// maxResolution caps the coverage image side in texels.
const maxResolution = 4096

// coverage is the exploration image: one alpha texel per scaled scene pixel,
// 0 unexplored, 255 explored.
type coverage struct {
	scene geom.Rect
	scale float64 // texels per world unit
	img   *image.Alpha
	rast  vector.Rasterizer
}

func newCoverage(scene geom.Rect, resolution int) *coverage {
	if resolution <= 0 || resolution > maxResolution {
		resolution = maxResolution
	}
	side := math.Max(scene.Width(), scene.Height())
	scale := 1.0
	if side > float64(resolution) {
		scale = float64(resolution) / side
	}
	w := max(1, int(math.Ceil(scene.Width()*scale-1e-9)))
	h := max(1, int(math.Ceil(scene.Height()*scale-1e-9)))
	return &coverage{
		scene: scene,
		scale: scale,
		img:   image.NewAlpha(image.Rect(0, 0, w, h)),
	}
}

func (c *coverage) toTexel(p geom.Point) (float64, float64) {
	return (p.X - c.scene.Min.X) * c.scale, (p.Y - c.scene.Min.Y) * c.scale
}

// fill rasterizes the part of s inside the scene and ORs it into the image.
func (c *coverage) fill(s geom.Shape) bool {
	ring := geom.ClipToRect(s, c.scene)
	if len(ring) < 3 {
		return false
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	pts := make([][2]float64, len(ring))
	for i, p := range ring {
		x, y := c.toTexel(p)
		pts[i] = [2]float64{x, y}
		minX, minY = math.Min(minX, x), math.Min(minY, y)
		maxX, maxY = math.Max(maxX, x), math.Max(maxY, y)
	}
	b := image.Rect(
		int(math.Floor(minX)), int(math.Floor(minY)),
		int(math.Ceil(maxX)), int(math.Ceil(maxY)),
	).Intersect(c.img.Bounds())
	if b.Empty() {
		return false
	}

	ox, oy := float64(b.Min.X), float64(b.Min.Y)
	c.rast.Reset(b.Dx(), b.Dy())
	c.rast.DrawOp = draw.Over
	c.rast.MoveTo(float32(pts[0][0]-ox), float32(pts[0][1]-oy))
	for _, p := range pts[1:] {
		c.rast.LineTo(float32(p[0]-ox), float32(p[1]-oy))
	}
	c.rast.ClosePath()
	c.rast.Draw(c.img, b, image.Opaque, image.Point{})
	return true
}

// at returns the coverage at a world point.
func (c *coverage) at(p geom.Point) uint8 {
	x, y := c.toTexel(p)
	ix, iy := int(math.Floor(x)), int(math.Floor(y))
	if !(image.Point{X: ix, Y: iy}).In(c.img.Bounds()) {
		return 0
	}
	return c.img.AlphaAt(ix, iy).A
}

func (c *coverage) clear() {
	clear(c.img.Pix)
}

func (c *coverage) clone() *image.Alpha {
	out := image.NewAlpha(c.img.Bounds())
	copy(out.Pix, c.img.Pix)
	return out
}

// load replaces the image with src, rescaled to the coverage size.
func (c *coverage) load(src *image.Alpha) {
	if src.Bounds().Size() == c.img.Bounds().Size() {
		draw.Copy(c.img, image.Point{}, src, src.Bounds(), draw.Src, nil)
		return
	}
	draw.ApproxBiLinear.Scale(alphaAsGray(c.img), c.img.Bounds(), alphaAsGray(src), src.Bounds(), draw.Src, nil)
}

// alphaAsGray views an alpha image's texels as gray levels, sharing Pix.
// Scalers treat alpha sources as colors with full alpha, so coverage is moved
// through gray views instead.
func alphaAsGray(a *image.Alpha) *image.Gray {
	return &image.Gray{Pix: a.Pix, Stride: a.Stride, Rect: a.Rect}
}
