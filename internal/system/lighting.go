package system

import (
	"time"

	"go.uber.org/zap"

	coresys "github.com/l1jgo/vision/internal/core/system"
	"github.com/l1jgo/vision/internal/lighting"
	"github.com/l1jgo/vision/internal/metrics"
	"github.com/l1jgo/vision/internal/perception"
)

// LightingSystem 每個 tick 刷新區域引擎，並處理黑暗度漸變。
// Phase 2（Lighting）。
type LightingSystem struct {
	scene *perception.Scene
	log   *zap.Logger

	// 黑暗度漸變
	from, to  float64
	elapsed   time.Duration
	duration  time.Duration
	animating bool

	forceVision *bool
}

func NewLightingSystem(scene *perception.Scene, log *zap.Logger) *LightingSystem {
	return &LightingSystem{scene: scene, log: log}
}

func (s *LightingSystem) Phase() coresys.Phase { return coresys.PhaseLighting }

// AnimateDarkness 在 d 時間內把場景黑暗度線性移到 target。
// d 為 0 時於下一個 tick 直接套用。
func (s *LightingSystem) AnimateDarkness(target float64, d time.Duration) {
	s.from = s.scene.Lighting.Darkness()
	s.to = target
	s.elapsed = 0
	s.duration = d
	s.animating = true
}

// ForceVision 於下一個 tick 切換場景的強制視野基準。
func (s *LightingSystem) ForceVision(on bool) {
	s.forceVision = &on
}

func (s *LightingSystem) Update(dt time.Duration) {
	var opts lighting.RefreshOptions
	if s.animating {
		s.elapsed += dt
		d := s.to
		if s.duration > 0 && s.elapsed < s.duration {
			k := float64(s.elapsed) / float64(s.duration)
			d = s.from + (s.to-s.from)*k
		} else {
			s.animating = false
		}
		opts.Darkness = &d
	}
	if s.forceVision != nil {
		opts.ForceVision = s.forceVision
		s.forceVision = nil
	}

	res := s.scene.RefreshRegions(opts)
	if res.RefreshVision {
		metrics.RegionRefreshes.WithLabelValues("refresh").Inc()
	} else {
		metrics.RegionRefreshes.WithLabelValues("none").Inc()
	}
	if res.DarknessChanged && !s.animating {
		s.log.Debug("darkness settled", zap.Float64("darkness", s.scene.Lighting.Darkness()))
	}
	metrics.Darkness.Set(s.scene.Lighting.Darkness())
	metrics.RegionVersion.WithLabelValues("lighting").Set(float64(s.scene.Lighting.Version()))
	metrics.RegionVersion.WithLabelValues("limit").Set(float64(s.scene.Limits.Version()))
}

// Animating 回報是否仍在漸變中。
func (s *LightingSystem) Animating() bool { return s.animating }
