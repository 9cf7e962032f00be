package system

import "time"

// Phase 定義單一 tick 內的執行順序。
type Phase int

const (
	PhaseInput    Phase = iota // 0: 場景重載、來源移動
	PhaseEvents                // 1: 處理上一個 tick 的事件
	PhaseLighting              // 2: 黑暗度、區域刷新
	PhaseVision                // 3: 視野與探索
	PhaseFog                   // 4: 提交待處理探索
	PhasePersist               // 5: 迷霧存檔（防抖）
)

func (p Phase) String() string {
	switch p {
	case PhaseInput:
		return "input"
	case PhaseEvents:
		return "events"
	case PhaseLighting:
		return "lighting"
	case PhaseVision:
		return "vision"
	case PhaseFog:
		return "fog"
	case PhasePersist:
		return "persist"
	}
	return "unknown"
}

// System is the interface every tick system implements.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
