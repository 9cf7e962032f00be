package data

import (
	"fmt"
	"math"
	"os"
	"strings"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/l1jgo/vision/internal/fog"
	"github.com/l1jgo/vision/internal/geom"
	"github.com/l1jgo/vision/internal/lighting"
	"github.com/l1jgo/vision/internal/limit"
	"github.com/l1jgo/vision/internal/region"
	"github.com/l1jgo/vision/internal/sight"
)

// ── YAML documents ──

type sceneFile struct {
	Scene   sceneDoc    `yaml:"scene"`
	Lights  []lightDoc  `yaml:"lights"`
	Limits  []limitDoc  `yaml:"limits"`
	Sources []sourceDoc `yaml:"sources"`
}

type sceneDoc struct {
	ID      string  `yaml:"id"`
	Width   float64 `yaml:"width"`
	Height  float64 `yaml:"height"`
	Padding float64 `yaml:"padding"`
	Grid    gridDoc `yaml:"grid"`

	Darkness             float64   `yaml:"darkness"`
	GlobalLight          bool      `yaml:"global_light"`
	GlobalLightThreshold *float64  `yaml:"global_light_threshold"`
	TokenVision          *bool     `yaml:"token_vision"`
	SightLimit           *float64  `yaml:"sight_limit"` // grid units
	Saturation           *float64  `yaml:"saturation"`
	FogExploration       *bool     `yaml:"fog_exploration"`
	Colors               colorsDoc `yaml:"colors"`
}

type gridDoc struct {
	Size     float64 `yaml:"size"`     // pixels per cell
	Distance float64 `yaml:"distance"` // units per cell
	Units    string  `yaml:"units"`
}

type colorsDoc struct {
	Daylight  string `yaml:"daylight"`
	Darkness  string `yaml:"darkness"`
	Brightest string `yaml:"brightest"`
}

type shapeDoc struct {
	Type   string       `yaml:"type"` // rect | polygon | circle
	X      float64      `yaml:"x"`
	Y      float64      `yaml:"y"`
	Width  float64      `yaml:"width"`
	Height float64      `yaml:"height"`
	Radius float64      `yaml:"radius"`
	Points [][2]float64 `yaml:"points"`
}

type envelopeDoc struct {
	ID       string        `yaml:"id"`
	Shape    shapeDoc      `yaml:"shape"`
	Z        float64       `yaml:"z"`
	Inset    float64       `yaml:"inset"`
	Active   *region.Range `yaml:"active"`
	Fit      bool          `yaml:"fit"`
	Occluded bool          `yaml:"occluded"`
}

type globalLightDoc struct {
	Enabled  bool          `yaml:"enabled"`
	Darkness *region.Range `yaml:"darkness"`
}

type lightDoc struct {
	envelopeDoc `yaml:",inline"`

	Darkness       *float64        `yaml:"darkness"`
	GlobalLight    *globalLightDoc `yaml:"global_light"`
	Vision         string          `yaml:"vision"` // default | force_on | force_off
	SightLimit     *float64        `yaml:"sight_limit"`
	Saturation     *float64        `yaml:"saturation"`
	Colors         colorsDoc       `yaml:"colors"`
	FogExploration *bool           `yaml:"fog_exploration"`
	FogRevealed    bool            `yaml:"fog_revealed"`
}

type limitDoc struct {
	envelopeDoc `yaml:",inline"`

	Enabled   *bool              `yaml:"enabled"`
	Sight     *float64           `yaml:"sight"`
	Sound     *float64           `yaml:"sound"`
	Move      *float64           `yaml:"move"`
	Other     *float64           `yaml:"other"`
	Detection map[string]float64 `yaml:"detection"`
}

type sourceDoc struct {
	ID        string        `yaml:"id"`
	Kind      string        `yaml:"kind"` // vision | light
	X         float64       `yaml:"x"`
	Y         float64       `yaml:"y"`
	Radius    float64       `yaml:"radius"` // grid units
	Activity  *region.Range `yaml:"activity"`
	Explores  *bool         `yaml:"explores"`
	Detection string        `yaml:"detection"`
}

// ── Parsed scene ──

// Spec is a region ready to be added to an engine.
type Spec[P any] struct {
	ID  string
	Def region.Definition[P]
}

// SourceSpec describes one vision or light source, in pixels.
type SourceSpec struct {
	ID       string
	Kind     sight.Kind
	Position geom.Point
	Radius   float64
	Activity *region.Range
	Explores bool
	Channel  limit.Channel
}

// Scene is a loaded scene document. All distances are in pixels.
type Scene struct {
	ID     string
	Rect   geom.Rect // playable area
	Canvas geom.Rect // Rect plus padding
	Grid   fog.Grid
	// Distance is grid units per cell, Units their name.
	Distance float64
	Units    string

	Darkness    float64
	TokenVision bool
	Light       lighting.Light
	Limit       limit.Limit

	Lights  []Spec[lighting.Light]
	Limits  []Spec[limit.Limit]
	Sources []SourceSpec

	// Warnings lists recoverable problems (bad colors, clamped values).
	Warnings []string
}

// Pixels converts grid units to pixels.
func (s *Scene) Pixels(units float64) float64 {
	if !(s.Distance > 0) || !(s.Grid.Size > 0) {
		return units
	}
	return units * s.Grid.Size / s.Distance
}

// UnitsOf converts pixels to grid units.
func (s *Scene) UnitsOf(pixels float64) float64 {
	if !(s.Distance > 0) || !(s.Grid.Size > 0) {
		return pixels
	}
	return pixels * s.Distance / s.Grid.Size
}

// FogConfig returns the ledger configuration for this scene.
func (s *Scene) FogConfig(resolution int) fog.Config {
	return fog.Config{Scene: s.Rect, Grid: s.Grid, Resolution: resolution}
}

func (s *Scene) warnf(format string, args ...any) {
	s.Warnings = append(s.Warnings, fmt.Sprintf(format, args...))
}

// LoadScene reads a scene YAML file.
func LoadScene(path string) (*Scene, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scene %s: %w", path, err)
	}
	sc, err := ParseScene(raw)
	if err != nil {
		return nil, fmt.Errorf("load scene %s: %w", path, err)
	}
	return sc, nil
}

// ParseScene decodes a scene document.
func ParseScene(raw []byte) (*Scene, error) {
	var file sceneFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse scene: %w", err)
	}
	doc := file.Scene
	if !(doc.Width > 0) || !(doc.Height > 0) {
		return nil, fmt.Errorf("scene dimensions %gx%g must be positive", doc.Width, doc.Height)
	}

	sc := &Scene{
		ID:       canonicalID(doc.ID),
		Distance: doc.Grid.Distance,
		Units:    doc.Grid.Units,
	}
	if sc.ID == "" {
		sc.ID = "default"
	}

	// Padding is rounded up to whole grid cells on each side.
	padX, padY := doc.Width*doc.Padding, doc.Height*doc.Padding
	if size := doc.Grid.Size; size > 0 {
		padX = math.Ceil(padX/size) * size
		padY = math.Ceil(padY/size) * size
	}
	sc.Rect = geom.R(padX, padY, doc.Width, doc.Height)
	sc.Canvas = geom.R(0, 0, doc.Width+2*padX, doc.Height+2*padY)
	sc.Grid = fog.Grid{Size: doc.Grid.Size, Origin: sc.Rect.Min}

	sc.Darkness = clampUnit(sc, "scene darkness", doc.Darkness)
	sc.TokenVision = doc.TokenVision == nil || *doc.TokenVision
	sc.Light = sc.sceneLight(doc)
	sc.Limit = limit.Limit{}

	seen := make(map[string]bool)
	for i, d := range file.Lights {
		id, err := sc.claim(seen, "light", i, d.ID)
		if err != nil {
			return nil, err
		}
		def, err := sc.envelope(d.envelopeDoc)
		if err != nil {
			return nil, fmt.Errorf("light %s: %w", id, err)
		}
		sc.Lights = append(sc.Lights, Spec[lighting.Light]{ID: id, Def: region.Definition[lighting.Light]{
			Shape: def.Shape, Z: def.Z, Inset: def.Inset, ActiveRange: def.ActiveRange, Occluded: def.Occluded,
			Payload: sc.regionLight(id, d),
		}})
	}

	clear(seen)
	for i, d := range file.Limits {
		id, err := sc.claim(seen, "limit", i, d.ID)
		if err != nil {
			return nil, err
		}
		def, err := sc.envelope(d.envelopeDoc)
		if err != nil {
			return nil, fmt.Errorf("limit %s: %w", id, err)
		}
		sc.Limits = append(sc.Limits, Spec[limit.Limit]{ID: id, Def: region.Definition[limit.Limit]{
			Shape: def.Shape, Z: def.Z, Inset: def.Inset, ActiveRange: def.ActiveRange, Occluded: def.Occluded,
			Payload: sc.regionLimit(d),
		}})
	}

	clear(seen)
	for i, d := range file.Sources {
		id, err := sc.claim(seen, "source", i, d.ID)
		if err != nil {
			return nil, err
		}
		src, err := sc.source(id, d)
		if err != nil {
			return nil, err
		}
		sc.Sources = append(sc.Sources, src)
	}
	return sc, nil
}

func canonicalID(id string) string {
	return norm.NFC.String(strings.TrimSpace(id))
}

func (s *Scene) claim(seen map[string]bool, kind string, i int, raw string) (string, error) {
	id := canonicalID(raw)
	if id == "" {
		return "", fmt.Errorf("%s #%d: missing id", kind, i)
	}
	if id == region.SceneID {
		return "", fmt.Errorf("%s #%d: id %q is reserved", kind, i, id)
	}
	if seen[id] {
		return "", fmt.Errorf("%s #%d: duplicate id %q", kind, i, id)
	}
	seen[id] = true
	return id, nil
}

// ── Conversions ──

func (s *Scene) sceneLight(doc sceneDoc) lighting.Light {
	threshold := 1.0
	if doc.GlobalLightThreshold != nil {
		threshold = clampUnit(s, "global light threshold", *doc.GlobalLightThreshold)
	}
	l := lighting.Light{
		GlobalLight: &lighting.GlobalLight{
			Enabled:  doc.GlobalLight,
			Darkness: region.Range{Min: 0, Max: threshold},
		},
		Saturation:     s.unitPtr("scene saturation", doc.Saturation),
		FogExploration: doc.FogExploration,
	}
	if doc.SightLimit != nil {
		v := s.Pixels(*doc.SightLimit)
		l.SightLimit = &v
	}
	l.DaylightColor, l.DarknessColor, l.BrightestColor = s.colors("scene", doc.Colors)
	return l
}

func (s *Scene) regionLight(id string, d lightDoc) lighting.Light {
	l := lighting.Light{
		Darkness:       s.unitPtr("light "+id+" darkness", d.Darkness),
		Saturation:     s.unitPtr("light "+id+" saturation", d.Saturation),
		FogExploration: d.FogExploration,
		FogRevealed:    d.FogRevealed,
	}
	if d.GlobalLight != nil {
		rng := region.Range{Min: 0, Max: 1}
		if d.GlobalLight.Darkness != nil {
			rng = *d.GlobalLight.Darkness
		}
		l.GlobalLight = &lighting.GlobalLight{Enabled: d.GlobalLight.Enabled, Darkness: rng}
	}
	if d.SightLimit != nil {
		v := s.Pixels(*d.SightLimit)
		l.SightLimit = &v
	}
	switch strings.ToLower(strings.TrimSpace(d.Vision)) {
	case "", "default":
	case "force_on", "on":
		l.Vision = lighting.VisionForceOn
	case "force_off", "off":
		l.Vision = lighting.VisionForceOff
	default:
		s.warnf("light %s: unknown vision mode %q, using default", id, d.Vision)
	}
	l.DaylightColor, l.DarknessColor, l.BrightestColor = s.colors("light "+id, d.Colors)
	return l
}

func (s *Scene) regionLimit(d limitDoc) limit.Limit {
	l := limit.Limit{Enabled: d.Enabled == nil || *d.Enabled}
	px := func(v *float64) *float64 {
		if v == nil {
			return nil
		}
		p := s.Pixels(*v)
		return &p
	}
	l.Sight, l.Sound, l.Move, l.Other = px(d.Sight), px(d.Sound), px(d.Move), px(d.Other)
	if len(d.Detection) > 0 {
		l.Detection = make(map[string]float64, len(d.Detection))
		for mode, v := range d.Detection {
			l.Detection[mode] = s.Pixels(v)
		}
	}
	return l
}

func (s *Scene) source(id string, d sourceDoc) (SourceSpec, error) {
	src := SourceSpec{
		ID:       id,
		Position: geom.Pt(d.X, d.Y),
		Radius:   math.Max(0, s.Pixels(d.Radius)),
		Activity: d.Activity,
		Channel:  limit.Sight,
	}
	switch strings.ToLower(strings.TrimSpace(d.Kind)) {
	case "", "vision":
		src.Kind = sight.Vision
		src.Explores = d.Explores == nil || *d.Explores
	case "light":
		src.Kind = sight.Light
	default:
		return SourceSpec{}, fmt.Errorf("source %s: unknown kind %q", id, d.Kind)
	}
	if d.Detection != "" {
		src.Channel = limit.Detection(d.Detection)
	}
	return src, nil
}

// colors parses a color block. Invalid entries are dropped so the region
// inherits instead.
func (s *Scene) colors(owner string, doc colorsDoc) (day, dark, bright *lighting.Color) {
	parse := func(name, v string) *lighting.Color {
		if v == "" {
			return nil
		}
		c, err := lighting.ParseHex(v)
		if err != nil {
			s.warnf("%s: %s color: %v", owner, name, err)
			return nil
		}
		return &c
	}
	return parse("daylight", doc.Daylight), parse("darkness", doc.Darkness), parse("brightest", doc.Brightest)
}

func (s *Scene) unitPtr(what string, v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := clampUnit(s, what, *v)
	return &c
}

func clampUnit(s *Scene, what string, v float64) float64 {
	if math.IsNaN(v) {
		s.warnf("%s is NaN, using 0", what)
		return 0
	}
	if v < 0 || v > 1 {
		c := math.Max(0, math.Min(1, v))
		s.warnf("%s %g clamped to %g", what, v, c)
		return c
	}
	return v
}

func (s *Scene) envelope(d envelopeDoc) (region.Definition[struct{}], error) {
	shape, err := buildShape(d.Shape)
	if err != nil {
		return region.Definition[struct{}]{}, err
	}
	if d.Fit {
		if shape, err = fitShape(shape, s.Rect); err != nil {
			return region.Definition[struct{}]{}, err
		}
	}
	return region.Definition[struct{}]{
		Shape:       shape,
		Z:           d.Z,
		Inset:       math.Max(0, d.Inset),
		ActiveRange: d.Active,
		Occluded:    d.Occluded,
	}, nil
}

func buildShape(d shapeDoc) (geom.Shape, error) {
	switch strings.ToLower(d.Type) {
	case "rect", "rectangle":
		return geom.NewRect(d.X, d.Y, d.Width, d.Height)
	case "circle", "ellipse":
		return geom.NewCircle(geom.Pt(d.X, d.Y), d.Radius)
	case "polygon", "poly":
		pts := make([]geom.Point, len(d.Points))
		for i, p := range d.Points {
			pts[i] = geom.Pt(p[0], p[1])
		}
		return geom.NewPolygon(pts)
	case "":
		return nil, fmt.Errorf("shape: missing type")
	}
	return nil, fmt.Errorf("shape: unknown type %q", d.Type)
}

// fitShape clips a shape to the scene rectangle.
func fitShape(shape geom.Shape, r geom.Rect) (geom.Shape, error) {
	switch sh := shape.(type) {
	case geom.Rect:
		out := sh.Intersect(r)
		if out.Empty() {
			return nil, &geom.InvalidShapeError{Kind: "rect", Points: 4, Reason: geom.ErrDegenerate}
		}
		return out, nil
	case *geom.Polygon:
		return geom.Fit(sh, r)
	}
	if r.Union(shape.Bounds()) == r {
		return shape, nil
	}
	return geom.NewPolygon(geom.ClipToRect(shape, r))
}
