package region

import (
	"math"

	"github.com/l1jgo/vision/internal/geom"
)

// cellIndex buckets region ids by the grid cells their bounds overlap, so a
// point lookup only tests regions sharing the point's cell. Regions whose
// bounds are unbounded or span too many cells go into the wide list, which is
// checked for every lookup.
// Accessed only from the owning scene goroutine, no locks.

const (
	defaultCellSize = 256.0
	maxCellsPerItem = 1024
)

type cellKey struct {
	cx int32
	cy int32
}

type cellIndex struct {
	size  float64
	cells map[cellKey]map[string]struct{}
	wide  map[string]struct{}
	keys  map[string][]cellKey // id → cells it was put in
}

func newCellIndex(size float64) *cellIndex {
	if size <= 0 {
		size = defaultCellSize
	}
	return &cellIndex{
		size:  size,
		cells: make(map[cellKey]map[string]struct{}),
		wide:  make(map[string]struct{}),
		keys:  make(map[string][]cellKey),
	}
}

// toCellCoord reports false when v falls outside the int32 cell range.
func (ix *cellIndex) toCellCoord(v float64) (int32, bool) {
	c := math.Floor(v / ix.size)
	if !(c >= math.MinInt32 && c <= math.MaxInt32) {
		return 0, false
	}
	return int32(c), true
}

// Add places id into every cell overlapped by b.
func (ix *cellIndex) Add(id string, b geom.Rect) {
	x0, okX0 := ix.toCellCoord(b.Min.X)
	y0, okY0 := ix.toCellCoord(b.Min.Y)
	x1, okX1 := ix.toCellCoord(b.Max.X)
	y1, okY1 := ix.toCellCoord(b.Max.Y)
	if !(okX0 && okY0 && okX1 && okY1) {
		ix.wide[id] = struct{}{}
		return
	}
	if (int64(x1)-int64(x0)+1)*(int64(y1)-int64(y0)+1) > maxCellsPerItem {
		ix.wide[id] = struct{}{}
		return
	}

	keys := make([]cellKey, 0, (int(x1)-int(x0)+1)*(int(y1)-int(y0)+1))
	for cx := x0; cx <= x1; cx++ {
		for cy := y0; cy <= y1; cy++ {
			k := cellKey{cx: cx, cy: cy}
			cell := ix.cells[k]
			if cell == nil {
				cell = make(map[string]struct{})
				ix.cells[k] = cell
			}
			cell[id] = struct{}{}
			keys = append(keys, k)
		}
	}
	ix.keys[id] = keys
}

// Remove takes id out of the index.
func (ix *cellIndex) Remove(id string) {
	delete(ix.wide, id)
	for _, k := range ix.keys[id] {
		cell := ix.cells[k]
		if cell != nil {
			delete(cell, id)
			if len(cell) == 0 {
				delete(ix.cells, k)
			}
		}
	}
	delete(ix.keys, id)
}

// Move re-buckets id under new bounds.
func (ix *cellIndex) Move(id string, b geom.Rect) {
	ix.Remove(id)
	ix.Add(id, b)
}

// Candidates calls fn for every id that may contain p. Caller does the exact
// containment test.
func (ix *cellIndex) Candidates(p geom.Point, fn func(id string)) {
	for id := range ix.wide {
		fn(id)
	}
	cx, okX := ix.toCellCoord(p.X)
	cy, okY := ix.toCellCoord(p.Y)
	if !okX || !okY {
		return
	}
	for id := range ix.cells[cellKey{cx: cx, cy: cy}] {
		fn(id)
	}
}

func (ix *cellIndex) Reset() {
	clear(ix.cells)
	clear(ix.wide)
	clear(ix.keys)
}
