package entity

import "github.com/dreschagin/dlp-kpi-monitor/internal/domain/valueobject"

// Stats статистики по успешным наблюдениям
type Stats struct {
	Mean float64
	Min  float64
	Max  float64
	P95  float64
}

// Summary свертка последовательности наблюдений (Value Object)
// stats == nil означает явное отсутствие данных
type Summary struct {
	successCount int
	failureCount int
	stats        *Stats
}

// NewSummary создает сводку. При successCount == 0 статистики отбрасываются.
func NewSummary(successCount, failureCount int, stats *Stats) Summary {
	s := Summary{successCount: successCount, failureCount: failureCount}
	if successCount > 0 && stats != nil {
		cp := *stats
		s.stats = &cp
	}
	return s
}

func (s Summary) Count() int {
	return s.successCount + s.failureCount
}

func (s Summary) SuccessCount() int {
	return s.successCount
}

func (s Summary) FailureCount() int {
	return s.failureCount
}

// HasData есть ли хотя бы одно успешное наблюдение
func (s Summary) HasData() bool {
	return s.stats != nil
}

// Stats возвращает копию статистик и признак их наличия
func (s Summary) Stats() (Stats, bool) {
	if s.stats == nil {
		return Stats{}, false
	}
	return *s.stats, true
}

// Statistic выбирает одну статистику сводки
func (s Summary) Statistic(stat valueobject.Statistic) (float64, bool) {
	if s.stats == nil {
		return 0, false
	}
	switch stat {
	case valueobject.StatMin:
		return s.stats.Min, true
	case valueobject.StatMax:
		return s.stats.Max, true
	case valueobject.StatP95:
		return s.stats.P95, true
	default:
		return s.stats.Mean, true
	}
}
