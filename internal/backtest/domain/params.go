package domain

// PriorityMode 信号优先级模式
type PriorityMode string

const (
	PriorityPhaseFirst PriorityMode = "phase_first" // 阶段评分优先
	PriorityMomentum   PriorityMode = "momentum"    // 趋势评分优先
	PriorityQuality    PriorityMode = "quality"     // 质量评分优先（默认）
)

// SimParams 回测参数集
type SimParams struct {
	MaxSymbols         int          `json:"max_symbols"`
	EntryEvents        []string     `json:"entry_events"`
	ExitEvents         []string     `json:"exit_events"`
	MaxHoldDays        int          `json:"max_hold_days"`
	StopLoss           float64      `json:"stop_loss"`   // 比例，如 0.08
	TakeProfit         float64      `json:"take_profit"` // 比例，如 0.20
	PositionPct        float64      `json:"position_pct"`
	MaxPositions       int          `json:"max_positions"`
	FeeBps             float64      `json:"fee_bps"`
	EnforceT1          bool         `json:"enforce_t1"`
	PrioritizeSignals  bool         `json:"prioritize_signals"`
	PriorityMode       PriorityMode `json:"priority_mode"`
	PriorityTopKPerDay int          `json:"priority_topk_per_day"`
	MinScore           float64      `json:"min_score"` // 质量评分下限，0 表示不过滤
}

// DefaultSimParams 默认回测参数
func DefaultSimParams() SimParams {
	return SimParams{
		MaxSymbols:        50,
		MaxHoldDays:       20,
		StopLoss:          0.08,
		TakeProfit:        0.20,
		PositionPct:       0.2,
		MaxPositions:      5,
		FeeBps:            15,
		EnforceT1:         true,
		PrioritizeSignals: true,
		PriorityMode:      PriorityQuality,
	}
}
