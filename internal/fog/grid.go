package fog

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/l1jgo/vision/internal/geom"
)

// Grid quantizes world positions to grid-cell centers. Size <= 0 is a
// gridless scene where positions are only rounded.
type Grid struct {
	Size float64
	// Origin is where cell (0,0) starts, normally the scene padding offset.
	Origin geom.Point
}

// Center returns the center of the cell containing p.
func (g Grid) Center(p geom.Point) geom.Point {
	if !(g.Size > 0) {
		return p
	}
	cx := math.Floor((p.X-g.Origin.X)/g.Size)*g.Size + g.Origin.X + g.Size/2
	cy := math.Floor((p.Y-g.Origin.Y)/g.Size)*g.Size + g.Origin.Y + g.Size/2
	return geom.Pt(cx, cy)
}

// Key returns the ledger key of p.
func (g Grid) Key(p geom.Point) Key {
	c := g.Center(p)
	return Key{X: int(math.Round(c.X)), Y: int(math.Round(c.Y))}
}

// Key is a quantized cell center.
type Key struct {
	X, Y int
}

// String renders the key as "x_y", the persisted form.
func (k Key) String() string {
	return strconv.Itoa(k.X) + "_" + strconv.Itoa(k.Y)
}

// ParseKey reads the "x_y" form.
func ParseKey(s string) (Key, error) {
	xs, ys, ok := strings.Cut(s, "_")
	if !ok {
		return Key{}, fmt.Errorf("parse key %q: missing separator", s)
	}
	x, err := strconv.Atoi(xs)
	if err != nil {
		return Key{}, fmt.Errorf("parse key %q: %w", s, err)
	}
	y, err := strconv.Atoi(ys)
	if err != nil {
		return Key{}, fmt.Errorf("parse key %q: %w", s, err)
	}
	return Key{X: x, Y: y}, nil
}

// Entry is what the ledger remembers about one explored cell.
type Entry struct {
	Radius  float64 `json:"radius"`
	Limited bool    `json:"limited"`
}
