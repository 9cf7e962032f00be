package system

import (
	"time"

	"go.uber.org/zap"

	coresys "github.com/l1jgo/vision/internal/core/system"
	"github.com/l1jgo/vision/internal/metrics"
	"github.com/l1jgo/vision/internal/perception"
)

// FogSystem 在探索計數達到門檻時把待處理的探索烘進迷霧貼圖。
// Phase 4（Fog）。
type FogSystem struct {
	scene     *perception.Scene
	threshold int
	log       *zap.Logger
}

func NewFogSystem(scene *perception.Scene, threshold int, log *zap.Logger) *FogSystem {
	if threshold < 1 {
		threshold = 1
	}
	return &FogSystem{scene: scene, threshold: threshold, log: log}
}

func (s *FogSystem) Phase() coresys.Phase { return coresys.PhaseFog }

func (s *FogSystem) Update(_ time.Duration) {
	if !s.scene.Fog.ShouldCommit(s.threshold) {
		return
	}
	n := s.scene.PendingCommits()
	if s.scene.CommitFog() {
		metrics.FogCommits.Inc()
		metrics.FogPending.Set(0)
		s.log.Debug("fog commit", zap.Int("updates", n))
	}
}
