package domain

import (
	"math"
	"strings"
	"testing"
)

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// flatSeries 构造 [from, to] 区间内每日同价的行情序列
func flatSeries(from string, days int, close float64) PriceSeries {
	var series PriceSeries
	date := from
	for i := 0; i < days; i++ {
		series = append(series, Candle{Date: date, Open: close, High: close, Low: close, Close: close, Volume: 1000})
		date = AddDays(date, 1)
	}
	return series
}

// rampSeries 每日递增 step 的行情序列
func rampSeries(from string, days int, start, step float64) PriceSeries {
	var series PriceSeries
	date := from
	price := start
	for i := 0; i < days; i++ {
		series = append(series, Candle{Date: date, Open: price, High: price, Low: price, Close: price, Volume: 1000})
		date = AddDays(date, 1)
		price += step
	}
	return series
}

func baseParams() SimParams {
	p := DefaultSimParams()
	p.MaxHoldDays = 5
	p.PositionPct = 1.0
	p.FeeBps = 0
	p.StopLoss = 0.5
	p.TakeProfit = 0.5
	p.PrioritizeSignals = false
	return p
}

func TestCloseAt(t *testing.T) {
	series := PriceSeries{
		{Date: "2025-01-02", Close: 10},
		{Date: "2025-01-03", Close: 11},
		{Date: "2025-01-06", Close: 12},
	}
	tests := []struct {
		date string
		want float64
		ok   bool
	}{
		{"2025-01-01", 0, false},
		{"2025-01-02", 10, true},
		{"2025-01-04", 11, true}, // 周末取最后已知收盘
		{"2025-01-06", 12, true},
		{"2025-01-09", 12, true},
	}
	for _, tt := range tests {
		got, ok := series.CloseAt(tt.date)
		if ok != tt.ok || got != tt.want {
			t.Errorf("CloseAt(%s) = (%v, %v), want (%v, %v)", tt.date, got, ok, tt.want, tt.ok)
		}
	}
}

func TestRunSingleTrade(t *testing.T) {
	signals := []CandidateSignal{{Symbol: "600519", TriggerDate: "2025-01-01", QualityScore: 80}}
	prices := PriceBook{"600519": rampSeries("2025-01-01", 30, 10, 0.2)}

	sim := NewSimulator()
	result := sim.Run(signals, prices, "2025-01-01", "2025-01-30", 100000, baseParams())

	if len(result.Trades) != 1 {
		t.Fatalf("trades = %d, want 1", len(result.Trades))
	}
	trade := result.Trades[0]
	if trade.EntryDate != "2025-01-02" {
		t.Errorf("entry date = %s, want T+1 2025-01-02", trade.EntryDate)
	}
	if trade.ExitDate != "2025-01-07" {
		t.Errorf("exit date = %s, want 2025-01-07", trade.ExitDate)
	}
	if trade.Quantity%100 != 0 || trade.Quantity <= 0 {
		t.Errorf("quantity = %d, want positive whole lots", trade.Quantity)
	}
	if trade.ExitReason != "time_exit" {
		t.Errorf("exit reason = %s, want time_exit", trade.ExitReason)
	}
	if result.FillRate != 1.0 {
		t.Errorf("fill rate = %v, want 1.0", result.FillRate)
	}
	if result.FinalEquity <= result.InitialCapital {
		t.Errorf("final equity = %v, want gain on rising prices", result.FinalEquity)
	}
}

func TestRunEnforceT1DropsLateEntries(t *testing.T) {
	// 信号在区间末尾触发，T+1 离场会越界，候选被丢弃
	signals := []CandidateSignal{{Symbol: "600519", TriggerDate: "2025-01-09", QualityScore: 80}}
	prices := PriceBook{"600519": flatSeries("2025-01-01", 10, 10)}

	p := baseParams()
	p.MaxHoldDays = 1
	sim := NewSimulator()
	result := sim.Run(signals, prices, "2025-01-01", "2025-01-10", 100000, p)

	if len(result.Trades) != 0 {
		t.Fatalf("trades = %d, want 0", len(result.Trades))
	}
	if len(result.Notes) == 0 {
		t.Error("expected a note about dropped candidates")
	}
}

func TestRunMaxPositionsOverlap(t *testing.T) {
	signals := []CandidateSignal{
		{Symbol: "600519", TriggerDate: "2025-01-01", QualityScore: 90},
		{Symbol: "000001", TriggerDate: "2025-01-02", QualityScore: 80},
	}
	prices := PriceBook{
		"600519": flatSeries("2025-01-01", 30, 10),
		"000001": flatSeries("2025-01-01", 30, 20),
	}

	p := baseParams()
	p.MaxPositions = 1
	p.PositionPct = 0.5
	sim := NewSimulator()
	result := sim.Run(signals, prices, "2025-01-01", "2025-01-30", 100000, p)

	if len(result.Trades) != 1 {
		t.Fatalf("trades = %d, want 1", len(result.Trades))
	}
	if result.SkipBreakdown[SkipMaxPositions] != 1 {
		t.Errorf("max_positions skips = %d, want 1", result.SkipBreakdown[SkipMaxPositions])
	}
	if result.MaxConcurrentPositions != 1 {
		t.Errorf("max concurrent = %d, want 1", result.MaxConcurrentPositions)
	}
}

func TestRunReleasesClosedPositions(t *testing.T) {
	// 第二个候选的入场日在第一个仓位离场之后，不应触发 max_positions
	signals := []CandidateSignal{
		{Symbol: "600519", TriggerDate: "2025-01-01", QualityScore: 90},
		{Symbol: "000001", TriggerDate: "2025-01-10", QualityScore: 80},
	}
	prices := PriceBook{
		"600519": flatSeries("2025-01-01", 30, 10),
		"000001": flatSeries("2025-01-01", 30, 20),
	}

	p := baseParams()
	p.MaxPositions = 1
	p.MaxHoldDays = 3
	sim := NewSimulator()
	result := sim.Run(signals, prices, "2025-01-01", "2025-01-30", 100000, p)

	if len(result.Trades) != 2 {
		t.Fatalf("trades = %d, want 2", len(result.Trades))
	}
	if result.SkippedCount != 0 {
		t.Errorf("skipped = %d, want 0", result.SkippedCount)
	}
}

func TestRunInsufficientCash(t *testing.T) {
	signals := []CandidateSignal{{Symbol: "600519", TriggerDate: "2025-01-01", QualityScore: 90}}
	prices := PriceBook{"600519": flatSeries("2025-01-01", 30, 500)}

	p := baseParams()
	// 资金不足一手
	sim := NewSimulator()
	result := sim.Run(signals, prices, "2025-01-01", "2025-01-30", 10000, p)

	if len(result.Trades) != 0 {
		t.Fatalf("trades = %d, want 0", len(result.Trades))
	}
	if result.SkipBreakdown[SkipInsufficientCash] != 1 {
		t.Errorf("insufficient_cash skips = %d, want 1", result.SkipBreakdown[SkipInsufficientCash])
	}
}

func TestRunInvalidPrice(t *testing.T) {
	signals := []CandidateSignal{{Symbol: "NOPRICE", TriggerDate: "2025-01-01", QualityScore: 90}}
	prices := PriceBook{}

	sim := NewSimulator()
	result := sim.Run(signals, prices, "2025-01-01", "2025-01-30", 100000, baseParams())

	if result.SkipBreakdown[SkipInvalidPrice] != 1 {
		t.Errorf("invalid_price skips = %d, want 1", result.SkipBreakdown[SkipInvalidPrice])
	}
}

func TestRunPriorityOrderingAndTopK(t *testing.T) {
	signals := []CandidateSignal{
		{Symbol: "000002", TriggerDate: "2025-01-01", QualityScore: 70, TrendScore: 95},
		{Symbol: "000001", TriggerDate: "2025-01-01", QualityScore: 90, TrendScore: 60},
		{Symbol: "000003", TriggerDate: "2025-01-01", QualityScore: 80, TrendScore: 80},
	}
	prices := PriceBook{
		"000001": flatSeries("2025-01-01", 30, 10),
		"000002": flatSeries("2025-01-01", 30, 10),
		"000003": flatSeries("2025-01-01", 30, 10),
	}

	p := baseParams()
	p.PrioritizeSignals = true
	p.PriorityMode = PriorityQuality
	p.PriorityTopKPerDay = 2
	p.MaxPositions = 10
	p.PositionPct = 0.3
	sim := NewSimulator()
	result := sim.Run(signals, prices, "2025-01-01", "2025-01-30", 100000, p)

	if len(result.Trades) != 2 {
		t.Fatalf("trades = %d, want 2 after top-k", len(result.Trades))
	}
	// 质量评分降序：000001(90), 000003(80)
	if result.Trades[0].Symbol != "000001" || result.Trades[1].Symbol != "000003" {
		t.Errorf("priority order = %s, %s; want 000001, 000003", result.Trades[0].Symbol, result.Trades[1].Symbol)
	}
	foundNote := false
	for _, note := range result.Notes {
		if strings.Contains(note, "top-2") {
			foundNote = true
		}
	}
	if !foundNote {
		t.Errorf("expected top-k note, got %v", result.Notes)
	}

	// momentum 模式按趋势评分排序
	p.PriorityTopKPerDay = 0
	p.PriorityMode = PriorityMomentum
	result = sim.Run(signals, prices, "2025-01-01", "2025-01-30", 100000, p)
	if result.Trades[0].Symbol != "000002" {
		t.Errorf("momentum first = %s, want 000002", result.Trades[0].Symbol)
	}
}

func TestClampRatio(t *testing.T) {
	p := SimParams{StopLoss: 0.10, TakeProfit: 0.20}
	tests := []struct {
		name       string
		raw        float64
		exitTag    string
		wantRatio  float64
		wantReason string
	}{
		{"大幅下跌夹断到止损", -0.30, "", -0.095, "stop_loss"},
		{"大幅上涨夹断到止盈", 0.50, "", 0.19, "take_profit"},
		{"事件离场", 0.05, "break_ma20", 0.05, "event_exit:break_ma20"},
		{"时间离场", 0.05, "", 0.05, "time_exit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ratio, reason := clampRatio(tt.raw, p, tt.exitTag)
			if !approxEqual(ratio, tt.wantRatio) {
				t.Errorf("ratio = %v, want %v", ratio, tt.wantRatio)
			}
			if reason != tt.wantReason {
				t.Errorf("reason = %s, want %s", reason, tt.wantReason)
			}
		})
	}
}

func TestRunStopLossClamp(t *testing.T) {
	// 价格腰斩，收益率被夹断在 -stop*0.95 而非真实跌幅
	signals := []CandidateSignal{{Symbol: "600519", TriggerDate: "2025-01-01", QualityScore: 90}}
	prices := PriceBook{"600519": rampSeries("2025-01-01", 30, 100, -10)}

	p := baseParams()
	p.StopLoss = 0.10
	sim := NewSimulator()
	result := sim.Run(signals, prices, "2025-01-01", "2025-01-30", 100000, p)

	if len(result.Trades) != 1 {
		t.Fatalf("trades = %d, want 1", len(result.Trades))
	}
	if got := result.Trades[0].PnlRatio; !approxEqual(got, -0.095) {
		t.Errorf("clamped ratio = %v, want -0.095", got)
	}
	if result.Trades[0].ExitReason != "stop_loss" {
		t.Errorf("exit reason = %s, want stop_loss", result.Trades[0].ExitReason)
	}
}

func TestRunMinScoreFilter(t *testing.T) {
	signals := []CandidateSignal{
		{Symbol: "000001", TriggerDate: "2025-01-01", QualityScore: 40},
		{Symbol: "000002", TriggerDate: "2025-01-01", QualityScore: 90},
	}
	prices := PriceBook{
		"000001": flatSeries("2025-01-01", 30, 10),
		"000002": flatSeries("2025-01-01", 30, 10),
	}

	p := baseParams()
	p.MinScore = 60
	sim := NewSimulator()
	result := sim.Run(signals, prices, "2025-01-01", "2025-01-30", 100000, p)

	if len(result.Trades) != 1 || result.Trades[0].Symbol != "000002" {
		t.Fatalf("trades = %+v, want only 000002", result.Trades)
	}
}
