package fog

import (
	"image"
	"maps"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/l1jgo/vision/internal/geom"
)

// GlobalLighter reports whether global light currently reaches anywhere in
// the scene. *lighting.Engine satisfies it.
type GlobalLighter interface {
	AnyGlobalLight() bool
}

// Observation is one exploration attempt.
type Observation struct {
	Position geom.Point
	Radius   float64
	Limited  bool
	// FOV is what gets baked into the coverage image at the next commit.
	// Nil records the position without painting anything.
	FOV geom.Shape
}

// Config describes the scene a ledger covers.
type Config struct {
	Scene geom.Rect
	Grid  Grid
	// MaxRadius replaces the source radius while global light is on.
	// Zero means the scene diagonal.
	MaxRadius float64
	// Resolution caps the coverage image side; clamped to 4096.
	Resolution int
}

// Ledger records explored positions and the coverage image. It is owned by
// one scene and mutated only from that scene's goroutine.
type Ledger struct {
	cfg   Config
	log   *zap.Logger
	light GlobalLighter

	positions map[Key]Entry
	pending   []geom.Shape
	revealed  []geom.Shape
	cov       *coverage

	updates int
	dirty   bool
}

func NewLedger(cfg Config, light GlobalLighter, log *zap.Logger) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.MaxRadius <= 0 {
		cfg.MaxRadius = math.Hypot(cfg.Scene.Width(), cfg.Scene.Height())
	}
	return &Ledger{
		cfg:       cfg,
		log:       log.Named("fog"),
		light:     light,
		positions: make(map[Key]Entry),
		cov:       newCoverage(cfg.Scene, cfg.Resolution),
	}
}

// Explore records an observation. It returns false when the cell is already
// explored to at least the required radius and force is not set.
//
// The stored entry carries the observation's own radius and limited flag,
// not the global-light radius used for the comparison, so a later pass
// without global light can still refine it.
func (l *Ledger) Explore(o Observation, force bool) bool {
	r := o.Radius
	if l.light != nil && l.light.AnyGlobalLight() {
		r = l.cfg.MaxRadius
	}
	if r < 0 {
		return false
	}

	key := l.cfg.Grid.Key(o.Position)
	e, ok := l.positions[key]
	explored := ok && !e.Limited && e.Radius >= r
	if explored && !force {
		return false
	}

	l.positions[key] = Entry{Radius: o.Radius, Limited: o.Limited}
	if o.FOV != nil {
		l.pending = append(l.pending, o.FOV)
	}
	l.updates++
	return true
}

// PendingCommits is the number of explorations since the last commit.
func (l *Ledger) PendingCommits() int { return l.updates }

// ShouldCommit reports whether the pending count reached threshold.
func (l *Ledger) ShouldCommit(threshold int) bool {
	return l.updates > 0 && l.updates >= threshold
}

// NeedsSave reports whether there is anything a save would write.
func (l *Ledger) NeedsSave() bool { return l.dirty || l.updates > 0 }

// Commit bakes pending shapes into the coverage image and resets the
// counter. It returns false when there was nothing to commit.
func (l *Ledger) Commit() bool {
	if l.updates == 0 {
		return false
	}
	painted := 0
	for _, s := range l.revealed {
		if l.cov.fill(s) {
			painted++
		}
	}
	for _, s := range l.pending {
		if l.cov.fill(s) {
			painted++
		}
	}
	n := l.updates
	clear(l.pending)
	l.pending = l.pending[:0]
	l.updates = 0
	l.dirty = true

	l.log.Debug("fog committed", zap.Int("updates", n), zap.Int("painted", painted))
	return true
}

// MarkDirty flags the ledger for another save, e.g. after a failed one.
func (l *Ledger) MarkDirty() { l.dirty = true }

// SetRevealed replaces the always-explored shapes. They are painted at the
// next commit.
func (l *Ledger) SetRevealed(shapes []geom.Shape) {
	l.revealed = shapes
	if len(shapes) > 0 {
		l.updates++
	}
}

// Lookup returns the entry for the cell containing p.
func (l *Ledger) Lookup(p geom.Point) (Entry, bool) {
	e, ok := l.positions[l.cfg.Grid.Key(p)]
	return e, ok
}

// Explored reports whether the committed coverage image includes p.
func (l *Ledger) Explored(p geom.Point) bool {
	return l.cov.at(p) > 0
}

// Len is the number of explored cells.
func (l *Ledger) Len() int { return len(l.positions) }

// Bounds returns the coverage image size in texels.
func (l *Ledger) Bounds() image.Rectangle { return l.cov.img.Bounds() }

// Reset forgets everything. The cleared state is dirty so it gets saved.
func (l *Ledger) Reset() {
	clear(l.positions)
	clear(l.pending)
	l.pending = l.pending[:0]
	l.cov.clear()
	l.updates = 0
	l.dirty = true
	l.log.Info("fog reset")
}

// Snapshot is a self-contained copy of the ledger for saving.
type Snapshot struct {
	Coverage  *image.Alpha
	Positions map[Key]Entry
	Taken     time.Time
}

// Snapshot commits anything pending and returns a copy for the saver, or
// nil when nothing changed since the last snapshot. Taking a snapshot
// clears the dirty flag; state explored afterwards lands in the next one.
func (l *Ledger) Snapshot() *Snapshot {
	if l.updates > 0 {
		l.Commit()
	}
	if !l.dirty {
		return nil
	}
	l.dirty = false
	return &Snapshot{
		Coverage:  l.cov.clone(),
		Positions: maps.Clone(l.positions),
		Taken:     time.Now(),
	}
}

// Restore loads persisted state. The image is rescaled to the coverage size.
// Restored state is clean.
func (l *Ledger) Restore(img *image.Alpha, positions map[Key]Entry) {
	clear(l.positions)
	maps.Copy(l.positions, positions)
	if img != nil {
		l.cov.load(img)
	} else {
		l.cov.clear()
	}
	clear(l.pending)
	l.pending = l.pending[:0]
	l.updates = 0
	l.dirty = false
	l.log.Info("fog restored", zap.Int("positions", len(positions)))
}
