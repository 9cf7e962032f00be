package system

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/l1jgo/vision/internal/core/event"
	coresys "github.com/l1jgo/vision/internal/core/system"
	"github.com/l1jgo/vision/internal/data"
	"github.com/l1jgo/vision/internal/perception"
)

// ReloadSystem 在 watcher 回報場景檔變更時重新套用。
// 解析失敗的檔案直接忽略；套用到一半失敗時保留已套用的部分，
// 但不發出 SceneReloaded。Phase 0（Input）。
type ReloadSystem struct {
	scene   *perception.Scene
	path    string
	changes <-chan struct{}
	sceneID string // 非空時取代檔案內的 id
	log     *zap.Logger
}

func NewReloadSystem(scene *perception.Scene, path string, changes <-chan struct{}, log *zap.Logger) *ReloadSystem {
	return &ReloadSystem{scene: scene, path: path, changes: changes, log: log}
}

// OverrideID 讓重載的文件沿用啟動時的場景 id（對應 server.scene_id）。
func (s *ReloadSystem) OverrideID(id string) *ReloadSystem {
	s.sceneID = id
	return s
}

func (s *ReloadSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *ReloadSystem) Update(_ time.Duration) {
	select {
	case <-s.changes:
	default:
		return
	}

	doc, err := data.LoadScene(s.path)
	if err != nil {
		s.log.Warn("scene reload rejected", zap.Error(err))
		return
	}
	for _, w := range doc.Warnings {
		s.log.Warn("scene", zap.String("warning", w))
	}
	if s.sceneID != "" {
		doc.ID = s.sceneID
	}
	if doc.ID != s.scene.ID() {
		s.log.Warn("scene reload rejected: id changed",
			zap.String("from", s.scene.ID()), zap.String("to", doc.ID))
		return
	}

	diff, err := s.scene.ApplyScene(doc)
	if errors.Is(err, perception.ErrGeometryChanged) {
		s.log.Warn("scene reload rejected: dimensions or grid changed, restart required")
		return
	}
	if err != nil {
		s.log.Error("scene reload partially applied",
			zap.Int("added", diff.Added),
			zap.Int("updated", diff.Updated),
			zap.Int("removed", diff.Removed),
			zap.Error(err),
		)
		return
	}

	event.Emit(s.scene.Bus, event.SceneReloaded{
		Path:    s.path,
		Added:   diff.Added,
		Updated: diff.Updated,
		Removed: diff.Removed,
	})
	s.log.Info("scene reloaded",
		zap.Int("added", diff.Added),
		zap.Int("updated", diff.Updated),
		zap.Int("removed", diff.Removed),
	)
}
