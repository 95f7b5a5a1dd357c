package valueobject

import "fmt"

// Statistic какая статистика сводки сравнивается с порогом
type Statistic string

const (
	StatMean Statistic = "mean"
	StatMin  Statistic = "min"
	StatMax  Statistic = "max"
	StatP95  Statistic = "p95"
)

// ParseStatistic пустая строка означает среднее
func ParseStatistic(raw string) (Statistic, error) {
	switch s := Statistic(raw); s {
	case "":
		return StatMean, nil
	case StatMean, StatMin, StatMax, StatP95:
		return s, nil
	default:
		return "", fmt.Errorf("unknown statistic %q", raw)
	}
}
