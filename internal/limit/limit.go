package limit

import (
	"math"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/l1jgo/vision/internal/geom"
	"github.com/l1jgo/vision/internal/region"
)

// Channel names a sense range a region can clip.
type Channel string

const (
	Sight Channel = "sight"
	Sound Channel = "sound"
	Move  Channel = "move"
	Other Channel = "other"
)

// Detection builds the channel of a named detection mode ("seeInvisibility",
// "senseAll", ...).
func Detection(mode string) Channel {
	return Channel("detection:" + canonicalMode(mode))
}

func canonicalMode(mode string) string {
	return norm.NFC.String(strings.TrimSpace(mode))
}

// Limit is the payload of a range-limitation region. Nil distances are
// unset; a disabled limit clips nothing.
type Limit struct {
	Enabled   bool
	Sight     *float64
	Sound     *float64
	Move      *float64
	Other     *float64
	Detection map[string]float64
}

// distance returns the clip for ch, or +Inf.
func (l Limit) distance(ch Channel) float64 {
	if !l.Enabled {
		return math.Inf(1)
	}
	var v *float64
	switch ch {
	case Sight:
		v = l.Sight
	case Sound:
		v = l.Sound
	case Move:
		v = l.Move
	case Other:
		v = l.Other
	default:
		mode, ok := strings.CutPrefix(string(ch), "detection:")
		if !ok {
			return math.Inf(1)
		}
		if d, ok := l.Detection[mode]; ok {
			return sanitize(d)
		}
		// Detection modes without their own entry fall back to "other".
		v = l.Other
	}
	if v == nil {
		return math.Inf(1)
	}
	return sanitize(*v)
}

func sanitize(d float64) float64 {
	if math.IsNaN(d) || d < 0 {
		return math.Inf(1)
	}
	return d
}

// Engine is the range-limitation region set of one scene.
type Engine struct {
	set    *region.Set[Limit]
	log    *zap.Logger
	synced uint64
	primed bool
}

func New(scene Limit, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		set: region.New("limits", normalize(scene), region.WithLogger(log)),
		log: log.Named("limits"),
	}
}

// normalize canonicalizes detection-mode keys.
func normalize(l Limit) Limit {
	if len(l.Detection) == 0 {
		return l
	}
	modes := make(map[string]float64, len(l.Detection))
	for k, v := range l.Detection {
		modes[canonicalMode(k)] = v
	}
	l.Detection = modes
	return l
}

func (e *Engine) Add(id string, def region.Definition[Limit]) (*region.Region[Limit], error) {
	def.Payload = normalize(def.Payload)
	return e.set.Add(id, def)
}

func (e *Engine) Update(id string, patch region.Patch[Limit]) (bool, error) {
	if patch.Payload != nil {
		edit := patch.Payload
		patch.Payload = func(l *Limit) {
			edit(l)
			*l = normalize(*l)
		}
	}
	return e.set.Update(id, patch)
}

func (e *Engine) Remove(id string) error { return e.set.Remove(id) }

func (e *Engine) Get(id string) (*region.Region[Limit], bool) { return e.set.Get(id) }

func (e *Engine) Regions() []*region.Region[Limit] { return e.set.Regions() }

func (e *Engine) Reset(scene Limit) { e.set.Reset(normalize(scene)) }

func (e *Engine) Version() uint64 { return e.set.Version() }

func (e *Engine) CheckVersion(v uint64) error { return e.set.CheckVersion(v) }

// At resolves the limit region at p.
func (e *Engine) At(p geom.Point) *region.Region[Limit] {
	return e.set.AtPoint(p)
}

// Clip returns the resolved region's distance for ch at p, or +Inf.
func (e *Engine) Clip(p geom.Point, ch Channel) float64 {
	return e.set.AtPoint(p).Payload.distance(ch)
}

// EffectiveRadius combines a natural radius with the clip at p.
func (e *Engine) EffectiveRadius(p geom.Point, ch Channel, natural float64) float64 {
	return math.Min(natural, e.Clip(p, ch))
}

// Sync reports whether any limit region changed since the previous Sync.
// The first call reports true.
func (e *Engine) Sync() bool {
	v := e.set.Version()
	if e.primed && v == e.synced {
		return false
	}
	e.synced = v
	e.primed = true
	e.log.Debug("limits synced", zap.Uint64("version", v))
	return true
}
