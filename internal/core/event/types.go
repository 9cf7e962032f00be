package event

import "time"

// RegionsChanged fires when the lighting or limit region set changed version.
type RegionsChanged struct {
	Engine  string // "lighting" or "limit"
	Version uint64
}

// DarknessChanged fires when the scene darkness level moved.
type DarknessChanged struct {
	From, To float64
}

// VisionInvalidated asks every source to recompute its field of view.
type VisionInvalidated struct {
	Reason string
}

// FogCommitted fires after pending exploration was baked into the texture.
type FogCommitted struct {
	Positions int
}

type FogSaved struct {
	Bytes    int
	Duration time.Duration
	Err      error
}

// SceneReloaded fires after a scene file was applied.
type SceneReloaded struct {
	Path    string
	Added   int
	Updated int
	Removed int
}
