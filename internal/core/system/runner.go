package system

import (
	"sort"
	"time"
)

// Runner 依 Phase 順序在每個 tick 執行所有 System。
// 同一 Phase 內依註冊順序執行。
type Runner struct {
	systems []System
	bounds  map[Phase][2]int // phase → systems[lo:hi]
	sorted  bool

	// OnPhase 在每個 Phase 跑完後回報耗時（可為 nil）。
	OnPhase func(phase Phase, took time.Duration)
}

func NewRunner() *Runner {
	return &Runner{
		systems: make([]System, 0, 8),
		bounds:  make(map[Phase][2]int),
	}
}

func (r *Runner) Register(s System) {
	r.systems = append(r.systems, s)
	r.sorted = false
}

func (r *Runner) Tick(dt time.Duration) {
	r.ensureSorted()
	for lo := 0; lo < len(r.systems); {
		phase := r.systems[lo].Phase()
		hi := r.bounds[phase][1]
		r.run(phase, lo, hi, dt)
		lo = hi
	}
}

// TickPhase 只執行指定 Phase 的 System。
// 用於在兩次完整 tick 之間單獨輪詢 Phase 0（場景檔重載）。
func (r *Runner) TickPhase(phase Phase, dt time.Duration) {
	r.ensureSorted()
	b, ok := r.bounds[phase]
	if !ok {
		return
	}
	r.run(phase, b[0], b[1], dt)
}

func (r *Runner) run(phase Phase, lo, hi int, dt time.Duration) {
	var start time.Time
	if r.OnPhase != nil {
		start = time.Now()
	}
	for _, s := range r.systems[lo:hi] {
		s.Update(dt)
	}
	if r.OnPhase != nil {
		r.OnPhase(phase, time.Since(start))
	}
}

func (r *Runner) ensureSorted() {
	if r.sorted {
		return
	}
	sort.SliceStable(r.systems, func(i, j int) bool {
		return r.systems[i].Phase() < r.systems[j].Phase()
	})
	clear(r.bounds)
	for i, s := range r.systems {
		b, ok := r.bounds[s.Phase()]
		if !ok {
			b[0] = i
		}
		b[1] = i + 1
		r.bounds[s.Phase()] = b
	}
	r.sorted = true
}
