package system

import (
	"time"

	"go.uber.org/zap"

	coresys "github.com/l1jgo/vision/internal/core/system"
	"github.com/l1jgo/vision/internal/metrics"
	"github.com/l1jgo/vision/internal/perception"
	"github.com/l1jgo/vision/internal/sight"
)

// VisionSystem 重算所有 dirty 的光源與視野來源：所在區域、啟用狀態、
// 有效半徑，視野來源再進行迷霧探索。Phase 3（Vision）。
type VisionSystem struct {
	scene *perception.Scene
	log   *zap.Logger
}

func NewVisionSystem(scene *perception.Scene, log *zap.Logger) *VisionSystem {
	return &VisionSystem{scene: scene, log: log}
}

func (s *VisionSystem) Phase() coresys.Phase { return coresys.PhaseVision }

func (s *VisionSystem) Update(_ time.Duration) {
	var vision, light float64
	for _, src := range s.scene.Sources.Sources() {
		if src.Dirty {
			if s.scene.UpdateSource(src) {
				s.log.Debug("source activity flipped",
					zap.String("source", src.ID), zap.Bool("active", src.Active()))
			}
			metrics.VisionPasses.Inc()
			if src.Kind == sight.Vision {
				if s.scene.ExploreFromSource(src, false) {
					metrics.FogExplores.WithLabelValues("explored").Inc()
				} else {
					metrics.FogExplores.WithLabelValues("skipped").Inc()
				}
			}
		}
		if !src.Active() {
			continue
		}
		if src.Kind == sight.Vision {
			vision++
		} else {
			light++
		}
	}
	metrics.SourcesActive.WithLabelValues("vision").Set(vision)
	metrics.SourcesActive.WithLabelValues("light").Set(light)
	metrics.FogPending.Set(float64(s.scene.PendingCommits()))
}
