package lighting

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Color is a linear RGB triple with components in [0,1].
type Color struct {
	R, G, B float64
}

// ParseHex reads "#rrggbb" or "rrggbb".
func ParseHex(s string) (Color, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) != 6 {
		return Color{}, fmt.Errorf("parse color %q: want 6 hex digits", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("parse color %q: %w", s, err)
	}
	return Color{
		R: float64(v>>16&0xff) / 255,
		G: float64(v>>8&0xff) / 255,
		B: float64(v&0xff) / 255,
	}, nil
}

// MustHex is ParseHex for constants.
func MustHex(s string) Color {
	c, err := ParseHex(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Color) Hex() string {
	to := func(v float64) uint8 { return uint8(math.Round(math.Max(0, math.Min(1, v)) * 255)) }
	return fmt.Sprintf("#%02x%02x%02x", to(c.R), to(c.G), to(c.B))
}

func (c Color) String() string { return c.Hex() }

// UnmarshalText lets TOML and YAML documents carry colors as hex strings.
func (c *Color) UnmarshalText(text []byte) error {
	v, err := ParseHex(string(text))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.Hex()), nil
}

func (c Color) Scale(k float64) Color {
	return Color{c.R * k, c.G * k, c.B * k}
}

func (c Color) Add(o Color) Color {
	return Color{c.R + o.R, c.G + o.G, c.B + o.B}
}

// Mix interpolates from c (t=0) to o (t=1).
func (c Color) Mix(o Color, t float64) Color {
	return c.Scale(1 - t).Add(o.Scale(t))
}

// Maximize takes the component-wise maximum.
func (c Color) Maximize(o Color) Color {
	return Color{math.Max(c.R, o.R), math.Max(c.G, o.G), math.Max(c.B, o.B)}
}

// Floor raises every component to at least v.
func (c Color) Floor(v float64) Color {
	return c.Maximize(Color{v, v, v})
}

// Luminance is the Rec. 709 relative luminance.
func (c Color) Luminance() float64 {
	return 0.2126*c.R + 0.7152*c.G + 0.0722*c.B
}
