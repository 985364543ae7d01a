// Package domain 信号回放回测引擎与绩效分析的领域模型。
// 输入（候选信号、行情序列）由调用方预先解析，引擎内部不做任何 IO。
package domain

// CandidateSignal 筛选漏斗输出的候选信号，对引擎只读
type CandidateSignal struct {
	Symbol       string   `json:"symbol"`
	TriggerDate  string   `json:"trigger_date"` // YYYY-MM-DD
	Phase        float64  `json:"phase"`
	QualityScore float64  `json:"quality_score"`
	TrendScore   float64  `json:"trend_score"`
	EventTags    []string `json:"event_tags"`
	EventWeight  float64  `json:"event_weight"`
}

// HasTag 是否带有指定事件标签
func (s CandidateSignal) HasTag(tag string) bool {
	for _, t := range s.EventTags {
		if t == tag {
			return true
		}
	}
	return false
}

// FirstTag 返回 tags 中第一个命中的标签，无命中返回空串
func (s CandidateSignal) FirstTag(tags []string) string {
	for _, tag := range tags {
		if s.HasTag(tag) {
			return tag
		}
	}
	return ""
}
