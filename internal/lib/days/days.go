// Package days содержит вычисления календарных сроков в целых сутках.
package days

import (
	"time"
)

// Day длительность суток, используемая во всех расчётах сроков.
const Day = 24 * time.Hour

// Until возвращает ceil((target-now)/сутки). Для прошедших дат результат
// может быть отрицательным или нулевым.
func Until(target, now time.Time) int {
	diff := target.Sub(now)
	n := int(diff / Day)
	// Округление вверх только для положительного остатка
	if diff%Day > 0 {
		n++
	}
	return n
}

// UntilNonNegative работает как Until, но не опускается ниже нуля.
func UntilNonNegative(target, now time.Time) int {
	return max(0, Until(target, now))
}

// MonthsAgo возвращает момент, отстоящий от now на months календарных месяцев назад.
func MonthsAgo(now time.Time, months int) time.Time {
	return now.AddDate(0, -months, 0)
}
