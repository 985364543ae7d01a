package domain

import (
	"fmt"
	"math"
	"sort"
)

// SkipReason 候选被跳过的原因码
type SkipReason string

const (
	SkipMaxPositions     SkipReason = "max_positions"
	SkipInsufficientCash SkipReason = "insufficient_cash"
	SkipInvalidPrice     SkipReason = "invalid_price"
)

// BacktestTrade 回测产生的一笔模拟交易
type BacktestTrade struct {
	Symbol      string  `json:"symbol"`
	SignalDate  string  `json:"signal_date"`
	EntryDate   string  `json:"entry_date"`
	ExitDate    string  `json:"exit_date"`
	EntrySignal string  `json:"entry_signal"`
	ExitReason  string  `json:"exit_reason"`
	Quantity    int64   `json:"quantity"`
	EntryPrice  float64 `json:"entry_price"`
	ExitPrice   float64 `json:"exit_price"`
	HoldingDays int     `json:"holding_days"`
	PnlAmount   float64 `json:"pnl_amount"`
	PnlRatio    float64 `json:"pnl_ratio"`
}

// SimResult 一次回测的输出
type SimResult struct {
	Trades                 []BacktestTrade
	CandidateCount         int
	SkippedCount           int
	SkipBreakdown          map[SkipReason]int
	FillRate               float64
	MaxConcurrentPositions int
	Notes                  []string
	InitialCapital         float64
	FinalEquity            float64
}

// Simulator 信号回放回测引擎。
// 单次 Run 是输入的纯函数，没有共享可变状态，可被多个 goroutine
// 各自独立调用。
type Simulator struct {
	lotSize int64
}

// NewSimulator 创建回测引擎
func NewSimulator() *Simulator {
	return &Simulator{lotSize: 100}
}

// tradePlan 候选信号推导出的入场/出场计划
type tradePlan struct {
	signal      CandidateSignal
	entryDate   string
	exitDate    string
	entrySignal string
	exitTag     string
}

// Run 在 [from, to] 内回放候选信号并做组合约束模拟。
// 止损/止盈通过对收益率软夹断近似（上限 95% 阈值），不模拟日内触价，
// 这是对原始口径的有意保留。
func (s *Simulator) Run(signals []CandidateSignal, prices PriceBook, from, to string, initialCapital float64, p SimParams) *SimResult {
	result := &SimResult{
		SkipBreakdown:  make(map[SkipReason]int),
		InitialCapital: initialCapital,
	}

	plans, dropped := s.buildPlans(signals, from, to, p)
	result.CandidateCount = len(plans) + dropped
	if dropped > 0 {
		result.Notes = append(result.Notes, fmt.Sprintf("%d candidates dropped: entry/exit outside range", dropped))
	}

	if p.PrioritizeSignals {
		if len(plans) == 0 {
			result.Notes = append(result.Notes, "no candidates available for prioritization")
		}
		s.sortByPriority(plans, p.PriorityMode)
		if p.PriorityTopKPerDay > 0 {
			var topKDropped int
			plans, topKDropped = topKPerDay(plans, p.PriorityTopKPerDay)
			if topKDropped > 0 {
				result.Notes = append(result.Notes, fmt.Sprintf("top-%d per day filter dropped %d candidates", p.PriorityTopKPerDay, topKDropped))
				result.CandidateCount -= topKDropped
			}
		}
	} else {
		sort.SliceStable(plans, func(i, j int) bool {
			if plans[i].entryDate != plans[j].entryDate {
				return plans[i].entryDate < plans[j].entryDate
			}
			return plans[i].signal.Symbol < plans[j].signal.Symbol
		})
	}

	s.runPortfolio(plans, prices, result, p)

	if result.CandidateCount > 0 {
		result.FillRate = float64(len(result.Trades)) / float64(result.CandidateCount)
	}
	return result
}

// buildPlans 推导入场/出场日期，越界候选被丢弃并计数
func (s *Simulator) buildPlans(signals []CandidateSignal, from, to string, p SimParams) ([]*tradePlan, int) {
	var plans []*tradePlan
	dropped := 0
	taken := 0
	for _, signal := range signals {
		if p.MaxSymbols > 0 && taken >= p.MaxSymbols {
			break
		}
		if p.MinScore > 0 && signal.QualityScore < p.MinScore {
			continue
		}
		taken++

		entryDate := AddDays(signal.TriggerDate, 1)
		if entryDate < from {
			entryDate = from
		}
		if entryDate > to {
			dropped++
			continue
		}

		// 持有期启发式：命中离场事件标签时折半，整体受 MaxHoldDays 约束
		holdDays := p.MaxHoldDays
		if holdDays <= 0 {
			holdDays = 1
		}
		exitTag := signal.FirstTag(p.ExitEvents)
		if exitTag != "" && holdDays > 1 {
			holdDays = holdDays / 2
			if holdDays < 1 {
				holdDays = 1
			}
		}
		exitDate := AddDays(entryDate, holdDays)
		if exitDate > to {
			exitDate = to
		}
		if p.EnforceT1 && exitDate <= entryDate {
			exitDate = AddDays(entryDate, 1)
			if exitDate > to {
				dropped++
				continue
			}
		}

		entrySignal := signal.FirstTag(p.EntryEvents)
		if entrySignal == "" {
			entrySignal = "score"
		}

		plans = append(plans, &tradePlan{
			signal:      signal,
			entryDate:   entryDate,
			exitDate:    exitDate,
			entrySignal: entrySignal,
			exitTag:     exitTag,
		})
	}
	return plans, dropped
}

// sortByPriority 入场日升序，再按优先级键降序，事件权重、代码决胜
func (s *Simulator) sortByPriority(plans []*tradePlan, mode PriorityMode) {
	key := func(sig CandidateSignal) float64 {
		switch mode {
		case PriorityPhaseFirst:
			return sig.Phase
		case PriorityMomentum:
			return sig.TrendScore
		default:
			return sig.QualityScore
		}
	}
	sort.SliceStable(plans, func(i, j int) bool {
		if plans[i].entryDate != plans[j].entryDate {
			return plans[i].entryDate < plans[j].entryDate
		}
		ki, kj := key(plans[i].signal), key(plans[j].signal)
		if ki != kj {
			return ki > kj
		}
		if plans[i].signal.EventWeight != plans[j].signal.EventWeight {
			return plans[i].signal.EventWeight > plans[j].signal.EventWeight
		}
		return plans[i].signal.Symbol < plans[j].signal.Symbol
	})
}

// topKPerDay 排序后每个信号日只保留前 K 个，返回保留集与丢弃数
func topKPerDay(plans []*tradePlan, k int) ([]*tradePlan, int) {
	perDay := make(map[string]int)
	kept := plans[:0]
	dropped := 0
	for _, plan := range plans {
		if perDay[plan.signal.TriggerDate] >= k {
			dropped++
			continue
		}
		perDay[plan.signal.TriggerDate]++
		kept = append(kept, plan)
	}
	return kept, dropped
}

// openPosition 组合模拟中的在场仓位
type openPosition struct {
	exitDate   string
	exitAmount float64
	pnl        float64
}

// runPortfolio 资金/仓位数约束下的顺序模拟
func (s *Simulator) runPortfolio(plans []*tradePlan, prices PriceBook, result *SimResult, p SimParams) {
	cash := result.InitialCapital
	equity := result.InitialCapital
	feeRate := p.FeeBps / 10000
	var open []openPosition

	release := func(before string) {
		sort.SliceStable(open, func(i, j int) bool { return open[i].exitDate < open[j].exitDate })
		remaining := open[:0]
		for _, pos := range open {
			if before == "" || pos.exitDate < before {
				cash += pos.exitAmount
				equity += pos.pnl
				continue
			}
			remaining = append(remaining, pos)
		}
		open = remaining
	}

	skip := func(reason SkipReason) {
		result.SkippedCount++
		result.SkipBreakdown[reason]++
	}

	for _, plan := range plans {
		release(plan.entryDate)

		if p.MaxPositions > 0 && len(open) >= p.MaxPositions {
			skip(SkipMaxPositions)
			continue
		}

		entryPrice, okEntry := prices[plan.signal.Symbol].CloseAt(plan.entryDate)
		exitPrice, okExit := prices[plan.signal.Symbol].CloseAt(plan.exitDate)
		if !okEntry || !okExit || !validPrice(entryPrice) || !validPrice(exitPrice) {
			skip(SkipInvalidPrice)
			continue
		}

		entryWithFee := entryPrice * (1 + feeRate)
		budget := math.Min(cash, equity*p.PositionPct)
		quantity := int64(budget/entryWithFee) / s.lotSize * s.lotSize
		if quantity <= 0 {
			skip(SkipInsufficientCash)
			continue
		}
		invested := float64(quantity) * entryWithFee

		rawRatio := exitPrice*(1-feeRate)/entryWithFee - 1
		ratio, exitReason := clampRatio(rawRatio, p, plan.exitTag)

		pnl := invested * ratio
		cash -= invested
		open = append(open, openPosition{
			exitDate:   plan.exitDate,
			exitAmount: invested + pnl,
			pnl:        pnl,
		})
		if len(open) > result.MaxConcurrentPositions {
			result.MaxConcurrentPositions = len(open)
		}

		result.Trades = append(result.Trades, BacktestTrade{
			Symbol:      plan.signal.Symbol,
			SignalDate:  plan.signal.TriggerDate,
			EntryDate:   plan.entryDate,
			ExitDate:    plan.exitDate,
			EntrySignal: plan.entrySignal,
			ExitReason:  exitReason,
			Quantity:    quantity,
			EntryPrice:  entryPrice,
			ExitPrice:   exitPrice,
			HoldingDays: daysBetween(plan.entryDate, plan.exitDate),
			PnlAmount:   pnl,
			PnlRatio:    ratio,
		})
	}

	release("")
	result.FinalEquity = equity
}

// clampRatio 收益率软夹断并给出描述性离场原因。
// 原因仅作标注，不改变已夹断的收益率。
func clampRatio(raw float64, p SimParams, exitTag string) (float64, string) {
	lo := -p.StopLoss * 0.95
	hi := p.TakeProfit * 0.95
	switch {
	case p.StopLoss > 0 && raw <= lo:
		return lo, "stop_loss"
	case p.TakeProfit > 0 && raw >= hi:
		return hi, "take_profit"
	case exitTag != "":
		return raw, "event_exit:" + exitTag
	default:
		return raw, "time_exit"
	}
}

func validPrice(price float64) bool {
	return !math.IsNaN(price) && !math.IsInf(price, 0) && price > 0
}
