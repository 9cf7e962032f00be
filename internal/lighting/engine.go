package lighting

import (
	"math"
	"slices"

	"go.uber.org/zap"

	"github.com/l1jgo/vision/internal/geom"
	"github.com/l1jgo/vision/internal/region"
)

// Engine resolves lighting regions for a scene. The region set's level is
// the scene darkness. One engine per loaded scene; not safe for concurrent
// use.
type Engine struct {
	set      *region.Set[Light]
	log      *zap.Logger
	curve    Curve
	defaults Light

	forceVision bool

	// state cache, valid for one (scene snapshot, level) pair
	cache      map[*region.Region[Light]]State
	cacheScene *region.Region[Light]
	cacheLevel float64

	refreshed    bool
	lastDarkness float64
	lastVersion  uint64
	lastGlobal   []string
	lastScene    VisionMode
}

type engineOptions struct {
	log      *zap.Logger
	curve    Curve
	darkness float64
	cellSize float64
	defaults *Light
}

type Option func(*engineOptions)

func WithLogger(log *zap.Logger) Option {
	return func(o *engineOptions) { o.log = log }
}

// WithCurve replaces DefaultCurve, e.g. with a scripted one.
func WithCurve(c Curve) Option {
	return func(o *engineOptions) { o.curve = c }
}

// WithDarkness sets the initial scene darkness.
func WithDarkness(d float64) Option {
	return func(o *engineOptions) { o.darkness = clamp01(d) }
}

func WithCellSize(size float64) Option {
	return func(o *engineOptions) { o.cellSize = size }
}

// WithDefaults overrides the engine fallback payload. Nil fields keep
// the built-in Defaults.
func WithDefaults(l Light) Option {
	return func(o *engineOptions) { o.defaults = &l }
}

// New builds an engine whose scene region carries scene.
func New(scene Light, opts ...Option) *Engine {
	o := engineOptions{curve: DefaultCurve}
	for _, fn := range opts {
		fn(&o)
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	defaults := Defaults()
	if o.defaults != nil {
		defaults = o.defaults.inherit(defaults)
	}

	setOpts := []region.Option{region.WithLogger(o.log), region.WithLevel(o.darkness)}
	if o.cellSize > 0 {
		setOpts = append(setOpts, region.WithCellSize(o.cellSize))
	}
	return &Engine{
		set:          region.New("lighting", scene, setOpts...),
		log:          o.log.Named("lighting"),
		curve:        o.curve,
		defaults:     defaults,
		lastDarkness: o.darkness,
	}
}

// ── Region management ──

func (e *Engine) Add(id string, def region.Definition[Light]) (*region.Region[Light], error) {
	return e.set.Add(id, def)
}

func (e *Engine) Update(id string, patch region.Patch[Light]) (bool, error) {
	return e.set.Update(id, patch)
}

func (e *Engine) Remove(id string) error { return e.set.Remove(id) }

func (e *Engine) Get(id string) (*region.Region[Light], bool) { return e.set.Get(id) }

func (e *Engine) Regions() []*region.Region[Light] { return e.set.Regions() }

// Reset drops every region and installs a new scene payload.
func (e *Engine) Reset(scene Light) {
	e.set.Reset(scene)
	e.cache = nil
}

func (e *Engine) Version() uint64 { return e.set.Version() }

func (e *Engine) CheckVersion(v uint64) error { return e.set.CheckVersion(v) }

// Darkness returns the scene darkness level.
func (e *Engine) Darkness() float64 { return e.set.Level() }

// ForceVision reports whether the scene baseline is forced to vision on.
func (e *Engine) ForceVision() bool { return e.forceVision }

// ── Resolution ──

// At resolves the authoritative region at p.
func (e *Engine) At(p geom.Point) Resolved {
	r := e.set.AtPoint(p)
	return Resolved{Region: r, State: e.StateOf(r)}
}

// ActiveRegions returns the active regions in ascending z order, scene first.
func (e *Engine) ActiveRegions() []*region.Region[Light] {
	return e.set.Active()
}

// StateOf returns the resolved environment of one region.
func (e *Engine) StateOf(r *region.Region[Light]) State {
	scene := e.set.Scene()
	if e.cache == nil || e.cacheScene != scene || e.cacheLevel != e.set.Level() {
		e.cache = make(map[*region.Region[Light]]State)
		e.cacheScene = scene
		e.cacheLevel = e.set.Level()
	}
	if st, ok := e.cache[r]; ok {
		return st
	}
	st := e.compute(r, scene)
	e.cache[r] = st
	return st
}

// AnyGlobalLight reports whether some active region has global light on.
func (e *Engine) AnyGlobalLight() bool {
	for _, r := range e.set.Active() {
		if e.StateOf(r).GlobalLight {
			return true
		}
	}
	return false
}

// SceneVision returns the scene region's effective vision mode.
func (e *Engine) SceneVision() VisionMode {
	return e.StateOf(e.set.Scene()).Vision
}

func (e *Engine) compute(r *region.Region[Light], scene *region.Region[Light]) State {
	l := r.Payload
	if !r.IsScene() {
		l = l.inherit(scene.Payload)
	}
	l = l.inherit(e.defaults)

	d := e.set.Level()
	if !r.IsScene() && l.Darkness != nil {
		d = clamp01(*l.Darkness)
	}

	st := State{
		Darkness:       d,
		Vision:         l.Vision,
		SightLimit:     *l.SightLimit,
		FogExploration: *l.FogExploration,
		FogRevealed:    l.FogRevealed,
	}
	if math.IsNaN(st.SightLimit) || st.SightLimit < 0 {
		st.SightLimit = math.Inf(1)
	}
	if r.IsScene() && e.forceVision {
		st.Vision = VisionForceOn
	}

	gl := l.GlobalLight
	st.GlobalLight = gl.Enabled && gl.Darkness.Contains(d)

	if l.Saturation != nil {
		st.Saturation = clamp01(*l.Saturation)
	} else {
		st.Saturation = 1 - d
	}

	st.Channels = e.blend(d, *l.DaylightColor, *l.DarknessColor, *l.BrightestColor)
	return st
}

func (e *Engine) blend(d float64, daylight, darkness, brightest Color) Channels {
	daylight = daylight.Floor(colorFloor)
	darkness = darkness.Floor(colorFloor)

	w, ok := e.curve.Weights(d).normalize()
	if !ok {
		w, _ = DefaultCurve.Weights(d).normalize()
	}
	mid := daylight.Mix(darkness, 0.5)
	bg := daylight.Scale(w.Bright).Add(mid.Scale(w.Dim)).Add(darkness.Scale(w.Dark))
	bright := brightest.Maximize(bg)
	return Channels{
		Background: bg,
		Bright:     bright,
		Dim:        bg.Mix(bright, 0.5),
		Darkness:   darkness,
	}
}

// ── Refresh ──

// RefreshOptions carries the scalar inputs of a refresh. Nil fields keep the
// current value.
type RefreshOptions struct {
	Darkness       *float64
	ForceVision    *bool
	ForceUpdateLOS bool
}

// Result tells the caller what the refresh invalidated.
type Result struct {
	RefreshVision   bool
	DarknessChanged bool
}

// Refresh applies scalar inputs, recomputes every region's channels and
// reports whether vision must be re-tested.
func (e *Engine) Refresh(opts RefreshOptions) Result {
	var res Result

	crossed := false
	if opts.Darkness != nil {
		crossed = e.set.SetLevel(clamp01(*opts.Darkness))
	}
	d := e.set.Level()
	if d != e.lastDarkness {
		res.DarknessChanged = true
		e.lastDarkness = d
	}

	forceFlipped := false
	if opts.ForceVision != nil && *opts.ForceVision != e.forceVision {
		e.forceVision = *opts.ForceVision
		forceFlipped = true
	}

	e.cache = nil
	var global []string
	for _, r := range e.set.Regions() {
		if st := e.StateOf(r); st.GlobalLight && r.ActiveAt(d) {
			global = append(global, r.ID)
		}
	}
	slices.Sort(global)
	sceneVision := e.SceneVision()

	version := e.set.Version()
	res.RefreshVision = !e.refreshed ||
		opts.ForceUpdateLOS ||
		crossed ||
		forceFlipped ||
		version != e.lastVersion ||
		sceneVision != e.lastScene ||
		!slices.Equal(global, e.lastGlobal)

	e.refreshed = true
	e.lastVersion = version
	e.lastGlobal = global
	e.lastScene = sceneVision

	if res.RefreshVision || res.DarknessChanged {
		e.log.Debug("regions refreshed",
			zap.Float64("darkness", d),
			zap.Uint64("version", version),
			zap.Int("global_light", len(global)),
			zap.Bool("refresh_vision", res.RefreshVision),
			zap.Bool("darkness_changed", res.DarknessChanged),
		)
	}
	return res
}
