package domain

// Evaluation 单个参数点回测后的聚合表现
type Evaluation struct {
	TotalReturn  float64 `json:"total_return"`
	MaxDrawdown  float64 `json:"max_drawdown"`
	WinRate      float64 `json:"win_rate"`
	ProfitFactor float64 `json:"profit_factor"`
	TradeCount   int     `json:"trade_count"`
	FillRate     float64 `json:"fill_rate"`
}

// ScoreWeights 综合评分策略：收益按权重计入，回撤按惩罚系数扣减。
// 权重可调，评分本身是可独立测试的具名函数。
type ScoreWeights struct {
	ReturnWeight    float64 `json:"return_weight"`
	DrawdownPenalty float64 `json:"drawdown_penalty"`
}

// DefaultScoreWeights 默认评分权重
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{ReturnWeight: 1.0, DrawdownPenalty: 0.5}
}

// Score 收益减去回撤惩罚的综合评分
func (w ScoreWeights) Score(e *Evaluation) float64 {
	if e == nil {
		return 0
	}
	return w.ReturnWeight*e.TotalReturn - w.DrawdownPenalty*e.MaxDrawdown
}
