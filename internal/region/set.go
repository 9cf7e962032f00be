package region

import (
	"math"
	"slices"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/l1jgo/vision/internal/geom"
)

// Set is a named collection of z-ordered regions over one payload kind.
// It always holds the scene region, so resolution never comes back empty.
// Not safe for concurrent use.
type Set[P any] struct {
	name    string
	log     *zap.Logger
	regions map[string]*Region[P]
	index   *cellIndex

	level   float64
	version uint64
	seq     uint64

	active      []*Region[P] // ascending (z, seq)
	activeValid bool
}

type options struct {
	log      *zap.Logger
	cellSize float64
	level    float64
}

type Option func(*options)

func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithCellSize sets the spatial index cell edge in world units.
func WithCellSize(size float64) Option {
	return func(o *options) { o.cellSize = size }
}

// WithLevel sets the initial scalar level.
func WithLevel(level float64) Option {
	return func(o *options) { o.level = level }
}

// New creates a set whose scene region carries scene as payload.
func New[P any](name string, scene P, opts ...Option) *Set[P] {
	o := options{cellSize: defaultCellSize}
	for _, fn := range opts {
		fn(&o)
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}

	s := &Set[P]{
		name:    name,
		log:     o.log.With(zap.String("set", name)),
		regions: make(map[string]*Region[P]),
		index:   newCellIndex(o.cellSize),
		level:   o.level,
	}
	s.putScene(scene)
	return s
}

func (s *Set[P]) putScene(payload P) {
	s.regions[SceneID] = &Region[P]{
		ID:          SceneID,
		Shape:       geom.Unbounded{},
		Z:           math.Inf(-1),
		ActiveRange: Always(),
		Payload:     payload,
		Version:     s.version,
	}
	s.index.Add(SceneID, geom.Unbounded{}.Bounds())
}

// Name returns the set's name as used in errors and logs.
func (s *Set[P]) Name() string { return s.name }

// Version returns the aggregate version. It only ever grows.
func (s *Set[P]) Version() uint64 { return s.version }

// CheckVersion returns a *StaleVersionError when v is not current.
func (s *Set[P]) CheckVersion(v uint64) error {
	if v != s.version {
		return &StaleVersionError{Set: s.name, Have: v, Current: s.version}
	}
	return nil
}

// Len counts regions, the scene region included.
func (s *Set[P]) Len() int { return len(s.regions) }

// Add inserts a new region.
func (s *Set[P]) Add(id string, def Definition[P]) (*Region[P], error) {
	id = norm.NFC.String(id)
	if _, ok := s.regions[id]; ok {
		return nil, &DuplicateRegionError{Set: s.name, ID: id}
	}
	if err := geom.Validate(def.Shape); err != nil {
		return nil, err
	}

	rng := Always()
	if def.ActiveRange != nil {
		rng = *def.ActiveRange
	}
	s.seq++
	s.version++
	r := &Region[P]{
		ID:          id,
		Shape:       def.Shape,
		Z:           def.Z,
		Inset:       def.Inset,
		ActiveRange: rng,
		Occluded:    def.Occluded,
		Payload:     def.Payload,
		Version:     s.version,
		seq:         s.seq,
	}
	s.regions[id] = r
	s.index.Add(id, r.Shape.Bounds())
	s.activeValid = false

	s.log.Debug("region added", zap.String("region", id), zap.Float64("z", r.Z), zap.Uint64("version", s.version))
	return r, nil
}

// Update merges patch into the region. It reports whether anything
// semantically changed; the version only moves when it did.
func (s *Set[P]) Update(id string, patch Patch[P]) (bool, error) {
	id = norm.NFC.String(id)
	cur, ok := s.regions[id]
	if !ok {
		return false, &UnknownRegionError{Set: s.name, ID: id}
	}
	if cur.IsScene() && patch.touchesEnvelope() {
		return false, ErrSceneRegion
	}

	next := *cur
	if patch.Shape != nil {
		if err := geom.Validate(patch.Shape); err != nil {
			return false, err
		}
		next.Shape = patch.Shape
	}
	if patch.Z != nil {
		next.Z = *patch.Z
	}
	if patch.Inset != nil {
		next.Inset = *patch.Inset
	}
	if patch.ActiveRange != nil {
		next.ActiveRange = *patch.ActiveRange
	}
	if patch.Occluded != nil {
		next.Occluded = *patch.Occluded
	}
	if patch.Payload != nil {
		patch.Payload(&next.Payload)
	}

	if sameRegion(cur, &next) {
		return false, nil
	}

	s.version++
	next.Version = s.version
	s.regions[id] = &next
	if cur.Shape.Bounds() != next.Shape.Bounds() {
		s.index.Move(id, next.Shape.Bounds())
	}
	s.activeValid = false

	s.log.Debug("region updated", zap.String("region", id), zap.Uint64("version", s.version))
	return true, nil
}

func sameRegion[P any](a, b *Region[P]) bool {
	return a.Z == b.Z &&
		a.Inset == b.Inset &&
		a.ActiveRange == b.ActiveRange &&
		a.Occluded == b.Occluded &&
		cmp.Equal(a.Shape, b.Shape) &&
		cmp.Equal(a.Payload, b.Payload, cmpopts.EquateEmpty())
}

// Remove deletes a region. The scene region cannot be removed.
func (s *Set[P]) Remove(id string) error {
	id = norm.NFC.String(id)
	if id == SceneID {
		return ErrSceneRegion
	}
	if _, ok := s.regions[id]; !ok {
		return &UnknownRegionError{Set: s.name, ID: id}
	}
	delete(s.regions, id)
	s.index.Remove(id)
	s.version++
	s.activeValid = false

	s.log.Debug("region removed", zap.String("region", id), zap.Uint64("version", s.version))
	return nil
}

// Get returns the region snapshot for id.
func (s *Set[P]) Get(id string) (*Region[P], bool) {
	r, ok := s.regions[norm.NFC.String(id)]
	return r, ok
}

func (s *Set[P]) Has(id string) bool {
	_, ok := s.Get(id)
	return ok
}

// Scene returns the catch-all region.
func (s *Set[P]) Scene() *Region[P] { return s.regions[SceneID] }

// Level returns the scalar that gates active ranges.
func (s *Set[P]) Level() float64 { return s.level }

// SetLevel moves the gating scalar and reports whether any region's
// activity flipped as a result.
func (s *Set[P]) SetLevel(level float64) bool {
	if level == s.level {
		return false
	}
	prev := s.level
	s.level = level

	crossed := false
	for _, r := range s.regions {
		if r.ActiveRange.Contains(prev) != r.ActiveRange.Contains(level) {
			crossed = true
			break
		}
	}
	if crossed {
		s.activeValid = false
	}
	return crossed
}

// AtPoint resolves the single authoritative region at p: the highest
// (z, insertion) active region whose inset shape contains p, falling back to
// the scene region.
func (s *Set[P]) AtPoint(p geom.Point) *Region[P] {
	best := s.regions[SceneID]
	s.index.Candidates(p, func(id string) {
		r := s.regions[id]
		if r == nil || r == best || !r.ActiveAt(s.level) {
			return
		}
		if r.above(best) && r.Contains(p) {
			best = r
		}
	})
	return best
}

// Active returns the active regions in ascending (z, insertion) order, the
// scene region first. The slice is cached until the next change; do not
// modify it.
func (s *Set[P]) Active() []*Region[P] {
	if s.activeValid {
		return s.active
	}
	active := make([]*Region[P], 0, len(s.regions))
	for _, r := range s.regions {
		if r.ActiveAt(s.level) {
			active = append(active, r)
		}
	}
	sortAscending(active)
	s.active = active
	s.activeValid = true
	return active
}

// Regions returns every region, active or not, in ascending order.
func (s *Set[P]) Regions() []*Region[P] {
	out := make([]*Region[P], 0, len(s.regions))
	for _, r := range s.regions {
		out = append(out, r)
	}
	sortAscending(out)
	return out
}

func sortAscending[P any](rs []*Region[P]) {
	slices.SortFunc(rs, func(a, b *Region[P]) int {
		switch {
		case a == b:
			return 0
		case b.above(a):
			return -1
		default:
			return 1
		}
	})
}

// Reset drops every region except the scene region and restores its payload.
// The version keeps counting up.
func (s *Set[P]) Reset(scene P) {
	clear(s.regions)
	s.index.Reset()
	s.version++
	s.putScene(scene)
	s.activeValid = false
	s.log.Debug("region set reset", zap.Uint64("version", s.version))
}
