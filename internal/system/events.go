package system

import (
	"time"

	"github.com/l1jgo/vision/internal/core/event"
	coresys "github.com/l1jgo/vision/internal/core/system"
)

// EventDispatchSystem 交換事件緩衝並派送上一個 tick 發出的事件。
// Phase 1（Events）。
type EventDispatchSystem struct {
	bus *event.Bus
}

func NewEventDispatchSystem(bus *event.Bus) *EventDispatchSystem {
	return &EventDispatchSystem{bus: bus}
}

func (s *EventDispatchSystem) Phase() coresys.Phase { return coresys.PhaseEvents }

func (s *EventDispatchSystem) Update(_ time.Duration) {
	s.bus.SwapBuffers()
	s.bus.DispatchAll()
}
