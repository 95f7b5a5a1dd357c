package valueobject

import (
	"errors"
	"time"
)

// TimeRange временное окно поиска в журнале аудита и истории прогонов (Value Object)
type TimeRange struct {
	start time.Time
	end   time.Time
}

// NewTimeRange создает новый TimeRange с валидацией
func NewTimeRange(start, end time.Time) (TimeRange, error) {
	if start.IsZero() || end.IsZero() {
		return TimeRange{}, errors.New("start and end times cannot be zero")
	}
	if start.After(end) {
		return TimeRange{}, errors.New("start time must be before end time")
	}

	return TimeRange{start: start, end: end}, nil
}

// LastWindow окно длительностью d, заканчивающееся в now
func LastWindow(now time.Time, d time.Duration) (TimeRange, error) {
	if d <= 0 {
		return TimeRange{}, errors.New("duration must be positive")
	}
	return NewTimeRange(now.Add(-d), now)
}

func (tr TimeRange) Start() time.Time {
	return tr.start
}

func (tr TimeRange) End() time.Time {
	return tr.end
}

// Duration возвращает длительность диапазона
func (tr TimeRange) Duration() time.Duration {
	return tr.end.Sub(tr.start)
}

// Contains проверяет, попадает ли время в диапазон (границы включены)
func (tr TimeRange) Contains(t time.Time) bool {
	return !t.Before(tr.start) && !t.After(tr.end)
}

// Split режет окно на последовательные части не длиннее span.
// Поиск в журнале аудита ограничен по размеру окна, поэтому длинные диапазоны опрашиваются частями.
func (tr TimeRange) Split(span time.Duration) []TimeRange {
	if span <= 0 || tr.Duration() <= span {
		return []TimeRange{tr}
	}

	var parts []TimeRange
	for cur := tr.start; cur.Before(tr.end); cur = cur.Add(span) {
		end := cur.Add(span)
		if end.After(tr.end) {
			end = tr.end
		}
		parts = append(parts, TimeRange{start: cur, end: end})
	}
	return parts
}
