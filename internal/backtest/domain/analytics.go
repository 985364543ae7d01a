package domain

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"
)

// TradeAxis 曲线/分桶使用的交易日期轴
type TradeAxis string

const (
	AxisEntryDate TradeAxis = "entry_date"
	AxisExitDate  TradeAxis = "exit_date"
)

// ProfitFactorCap 无亏损且有盈利时的盈亏比哨兵值
const ProfitFactorCap = 999.0

// EquityPoint 权益曲线点
type EquityPoint struct {
	Date        string  `json:"date"`
	Equity      float64 `json:"equity"`
	RealizedPnl float64 `json:"realized_pnl"`
}

// DrawdownPoint 回撤曲线点，Drawdown 恒 ≤ 0
type DrawdownPoint struct {
	Date     string  `json:"date"`
	Drawdown float64 `json:"drawdown"`
}

// MonthlyReturn 月度收益分桶
type MonthlyReturn struct {
	Month       string  `json:"month"` // YYYY-MM
	ReturnRatio float64 `json:"return_ratio"`
	PnlAmount   float64 `json:"pnl_amount"`
	TradeCount  int     `json:"trade_count"`
}

// PerfStats 绩效统计
type PerfStats struct {
	TotalTrades      int     `json:"total_trades"`
	WinningTrades    int     `json:"winning_trades"`
	LosingTrades     int     `json:"losing_trades"`
	WinRate          float64 `json:"win_rate"`
	TotalPnl         float64 `json:"total_pnl"`
	TotalReturn      float64 `json:"total_return"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	ProfitFactor     float64 `json:"profit_factor"`
	ReturnVolatility float64 `json:"return_volatility"` // 单笔收益率标准差
}

func tradeDate(t BacktestTrade, axis TradeAxis) string {
	if axis == AxisExitDate {
		return t.ExitDate
	}
	return t.EntryDate
}

// EquityCurve 权益曲线：起点为区间首日的初始资金，每个交易日一个点
// （累计已实现盈亏），区间末日若无交易则补一个收尾点。
// 日期严格递增：恰落在区间首日的盈亏并入起点而不是追加重复日期。
func EquityCurve(trades []BacktestTrade, axis TradeAxis, from, to string, initialCapital float64) []EquityPoint {
	pnlByDate := make(map[string]float64)
	var dates []string
	for _, t := range trades {
		d := tradeDate(t, axis)
		if _, seen := pnlByDate[d]; !seen {
			dates = append(dates, d)
		}
		pnlByDate[d] += t.PnlAmount
	}
	sort.Strings(dates)

	curve := []EquityPoint{{Date: from, Equity: initialCapital, RealizedPnl: 0}}
	cumulative := 0.0
	for _, d := range dates {
		cumulative += pnlByDate[d]
		if d == from {
			curve[0].Equity = initialCapital + cumulative
			curve[0].RealizedPnl = cumulative
			continue
		}
		curve = append(curve, EquityPoint{Date: d, Equity: initialCapital + cumulative, RealizedPnl: cumulative})
	}
	if curve[len(curve)-1].Date != to {
		curve = append(curve, EquityPoint{Date: to, Equity: initialCapital + cumulative, RealizedPnl: cumulative})
	}
	return curve
}

// DrawdownCurve 相对滚动峰值的回撤曲线
func DrawdownCurve(equity []EquityPoint) []DrawdownPoint {
	curve := make([]DrawdownPoint, 0, len(equity))
	peak := 0.0
	for _, point := range equity {
		if point.Equity > peak {
			peak = point.Equity
		}
		drawdown := 0.0
		if peak > 0 {
			drawdown = (point.Equity - peak) / peak
		}
		curve = append(curve, DrawdownPoint{Date: point.Date, Drawdown: drawdown})
	}
	return curve
}

// ComputeStats 胜率、总收益、最大回撤、盈亏比与收益率波动
func ComputeStats(trades []BacktestTrade, initialCapital float64, drawdowns []DrawdownPoint) PerfStats {
	s := PerfStats{TotalTrades: len(trades)}

	grossProfit, grossLoss := 0.0, 0.0
	ratios := make([]float64, 0, len(trades))
	for _, t := range trades {
		s.TotalPnl += t.PnlAmount
		ratios = append(ratios, t.PnlRatio)
		if t.PnlAmount > 0 {
			s.WinningTrades++
			grossProfit += t.PnlAmount
		} else if t.PnlAmount < 0 {
			s.LosingTrades++
			grossLoss += t.PnlAmount
		}
	}

	if s.TotalTrades > 0 {
		s.WinRate = float64(s.WinningTrades) / float64(s.TotalTrades)
	}
	if initialCapital > 0 {
		s.TotalReturn = s.TotalPnl / initialCapital
	}
	for _, d := range drawdowns {
		if abs := math.Abs(d.Drawdown); abs > s.MaxDrawdown {
			s.MaxDrawdown = abs
		}
	}

	switch {
	case grossLoss == 0 && grossProfit > 0:
		s.ProfitFactor = ProfitFactorCap
	case grossLoss == 0:
		s.ProfitFactor = 0
	default:
		s.ProfitFactor = grossProfit / math.Abs(grossLoss)
	}

	if len(ratios) > 1 {
		if sd, err := stats.StandardDeviation(ratios); err == nil {
			s.ReturnVolatility = sd
		}
	}
	return s
}

// MonthlyReturns 按交易日期年月分桶
func MonthlyReturns(trades []BacktestTrade, axis TradeAxis, initialCapital float64) []MonthlyReturn {
	byMonth := make(map[string]*MonthlyReturn)
	var months []string
	for _, t := range trades {
		month := MonthKey(tradeDate(t, axis))
		bucket, ok := byMonth[month]
		if !ok {
			bucket = &MonthlyReturn{Month: month}
			byMonth[month] = bucket
			months = append(months, month)
		}
		bucket.PnlAmount += t.PnlAmount
		bucket.TradeCount++
	}
	sort.Strings(months)

	result := make([]MonthlyReturn, 0, len(months))
	for _, month := range months {
		bucket := byMonth[month]
		if initialCapital > 0 {
			bucket.ReturnRatio = bucket.PnlAmount / initialCapital
		}
		result = append(result, *bucket)
	}
	return result
}

// TopBottomTrades 按盈亏额排序的前/后 n 笔，bottom 以最差在前
func TopBottomTrades(trades []BacktestTrade, n int) (top, bottom []BacktestTrade) {
	sorted := make([]BacktestTrade, len(trades))
	copy(sorted, trades)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].PnlAmount > sorted[j].PnlAmount })

	if len(sorted) < n {
		n = len(sorted)
	}
	top = append(top, sorted[:n]...)
	for i := len(sorted) - 1; i >= len(sorted)-n; i-- {
		bottom = append(bottom, sorted[i])
	}
	return top, bottom
}
