package domain

import (
	"sort"
	"time"
)

const dayLayout = "2006-01-02"

// Candle 单日 OHLC 行情
type Candle struct {
	Date   string  `json:"date"` // YYYY-MM-DD
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// PriceSeries 按日期升序排列的行情序列
type PriceSeries []Candle

// CloseAt 目标日或之前最后一个已知收盘价
func (p PriceSeries) CloseAt(date string) (float64, bool) {
	idx := sort.Search(len(p), func(i int) bool { return p[i].Date > date })
	if idx == 0 {
		return 0, false
	}
	return p[idx-1].Close, true
}

// PriceBook 按标的索引的行情集合
type PriceBook map[string]PriceSeries

// AddDays 日期偏移若干自然日
func AddDays(date string, days int) string {
	t, err := time.Parse(dayLayout, date)
	if err != nil {
		return date
	}
	return t.AddDate(0, 0, days).Format(dayLayout)
}

// MonthKey 日期所属的年月（YYYY-MM）
func MonthKey(date string) string {
	if len(date) >= 7 {
		return date[:7]
	}
	return date
}

// daysBetween 自然日差，from > to 时为 0
func daysBetween(from, to string) int {
	a, errA := time.Parse(dayLayout, from)
	b, errB := time.Parse(dayLayout, to)
	if errA != nil || errB != nil {
		return 0
	}
	days := int(b.Sub(a).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}
