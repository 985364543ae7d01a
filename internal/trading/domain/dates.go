package domain

import "time"

const dayLayout = "2006-01-02"

// NextDay 下一自然日（T+1 预期成交日的近似）
func NextDay(date string) string {
	t, err := time.Parse(dayLayout, date)
	if err != nil {
		return date
	}
	return t.AddDate(0, 0, 1).Format(dayLayout)
}

// DaysBetween from 到 to 的自然日数，from > to 时为 0
func DaysBetween(from, to string) int {
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
