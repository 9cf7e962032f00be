package fog

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"math"

	"golang.org/x/image/draw"
)

// DefaultMaxImageSize caps the saved image side.
const DefaultMaxImageSize = 2048

// EncodePNG writes the coverage as an 8-bit grayscale PNG, downscaled so
// neither side exceeds maxSize.
func EncodePNG(cov *image.Alpha, maxSize int) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxImageSize
	}
	src := alphaAsGray(cov)
	out := src

	w, h := cov.Bounds().Dx(), cov.Bounds().Dy()
	if side := max(w, h); side > maxSize {
		k := float64(maxSize) / float64(side)
		dw := max(1, int(math.Round(float64(w)*k)))
		dh := max(1, int(math.Round(float64(h)*k)))
		out = image.NewGray(image.Rect(0, 0, dw, dh))
		draw.ApproxBiLinear.Scale(out, out.Bounds(), src, src.Bounds(), draw.Src, nil)
	}

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("encode fog: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodePNG reads a saved coverage image at its stored size.
func DecodePNG(data []byte) (*image.Alpha, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode fog: %w", err)
	}
	b := img.Bounds()
	gray, ok := img.(*image.Gray)
	if !ok {
		gray = image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Copy(gray, image.Point{}, img, b, draw.Src, nil)
	}
	out := image.NewAlpha(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		copy(out.Pix[y*out.Stride:y*out.Stride+b.Dx()], gray.Pix[y*gray.Stride:y*gray.Stride+b.Dx()])
	}
	return out, nil
}
