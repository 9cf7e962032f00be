package lighting

import (
	"math"

	"github.com/l1jgo/vision/internal/region"
)

// VisionMode is a region's override on point visibility.
type VisionMode int8

const (
	VisionDefault VisionMode = iota
	VisionForceOn
	VisionForceOff
)

func (m VisionMode) String() string {
	switch m {
	case VisionForceOn:
		return "on"
	case VisionForceOff:
		return "off"
	default:
		return "default"
	}
}

// GlobalLight makes line of sight sufficient for visibility while the
// region's darkness lies inside Darkness.
type GlobalLight struct {
	Enabled  bool
	Darkness region.Range
}

// Light is the payload of a lighting region. Nil fields inherit from the
// scene region, and from the engine defaults after that.
type Light struct {
	// Darkness overrides the scene darkness inside this region. Ignored on
	// the scene region itself, which follows the engine level.
	Darkness    *float64
	GlobalLight *GlobalLight
	Vision      VisionMode
	SightLimit  *float64

	DaylightColor  *Color
	DarknessColor  *Color
	BrightestColor *Color
	Saturation     *float64

	FogExploration *bool
	// FogRevealed regions count as explored without anyone visiting them.
	FogRevealed bool
}

// Channels are the composited colors of a region.
type Channels struct {
	Background Color
	Bright     Color
	Dim        Color
	Darkness   Color
}

// State is a region's resolved environment after inheritance and blending.
type State struct {
	Darkness       float64
	Saturation     float64
	Channels       Channels
	GlobalLight    bool
	Vision         VisionMode
	SightLimit     float64
	FogExploration bool
	FogRevealed    bool
}

// Resolved pairs a region with its state.
type Resolved struct {
	Region *region.Region[Light]
	State  State
}

// colorFloor keeps the configured daylight and darkness colors off pure
// black.
const colorFloor = 0.05

var (
	DefaultDaylight  = MustHex("#eeeeee")
	DefaultDarkness  = MustHex("#242448")
	DefaultBrightest = MustHex("#ffffff")
)

// Defaults is the fully specified payload engines fall back to.
func Defaults() Light {
	inf := math.Inf(1)
	yes := true
	day, dark, brightest := DefaultDaylight, DefaultDarkness, DefaultBrightest
	return Light{
		GlobalLight:    &GlobalLight{Darkness: region.Range{Min: 0, Max: 1}},
		SightLimit:     &inf,
		DaylightColor:  &day,
		DarknessColor:  &dark,
		BrightestColor: &brightest,
		FogExploration: &yes,
	}
}

// inherit fills nil fields of l from base.
func (l Light) inherit(base Light) Light {
	if l.GlobalLight == nil {
		l.GlobalLight = base.GlobalLight
	}
	if l.SightLimit == nil {
		l.SightLimit = base.SightLimit
	}
	if l.DaylightColor == nil {
		l.DaylightColor = base.DaylightColor
	}
	if l.DarknessColor == nil {
		l.DarknessColor = base.DarknessColor
	}
	if l.BrightestColor == nil {
		l.BrightestColor = base.BrightestColor
	}
	if l.Saturation == nil {
		l.Saturation = base.Saturation
	}
	if l.FogExploration == nil {
		l.FogExploration = base.FogExploration
	}
	return l
}
