package system

import (
	"time"

	"go.uber.org/zap"

	"github.com/l1jgo/vision/internal/core/event"
	coresys "github.com/l1jgo/vision/internal/core/system"
	"github.com/l1jgo/vision/internal/metrics"
	"github.com/l1jgo/vision/internal/perception"
)

// PersistenceSystem 負責迷霧存檔（防抖）：最後一次 FogCommitted 之後
// 靜置滿 debounce 才存。存檔失敗會重新標記 dirty，等下一次提交再重試。
// 同時收集背景寫入的結果。Phase 5（Persist）。
type PersistenceSystem struct {
	scene    *perception.Scene
	debounce time.Duration
	log      *zap.Logger

	pending bool
	quiet   time.Duration
}

func NewPersistenceSystem(scene *perception.Scene, debounce time.Duration, log *zap.Logger) *PersistenceSystem {
	s := &PersistenceSystem{scene: scene, debounce: debounce, log: log}
	event.Subscribe(scene.Bus, func(event.FogCommitted) {
		s.pending = true
		s.quiet = 0
	})
	return s
}

func (s *PersistenceSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *PersistenceSystem) Update(dt time.Duration) {
	for _, out := range s.scene.DrainSaves() {
		metrics.ObserveSave(out.Bytes, out.Duration, out.Err)
		if out.Err != nil {
			s.log.Warn("fog save failed, will retry after the next commit", zap.Error(out.Err))
		}
	}

	if !s.pending {
		return
	}
	s.quiet += dt
	if s.quiet < s.debounce {
		return
	}
	s.pending = false
	s.quiet = 0
	if s.scene.SaveFog() {
		s.log.Debug("fog save queued")
	}
}

// Pending 回報是否有等待中的存檔。
func (s *PersistenceSystem) Pending() bool { return s.pending }
