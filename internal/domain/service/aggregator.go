package service

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/entity"
)

// Aggregator сворачивает наблюдения в Summary (Domain Service)
// Статистики считаются только по успешным наблюдениям
type Aggregator struct{}

// NewAggregator создает новый Aggregator
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Aggregate вычисляет сводку. Пустая последовательность это ошибка ErrInvalidInput.
func (a *Aggregator) Aggregate(observations []entity.Observation) (entity.Summary, error) {
	if len(observations) == 0 {
		return entity.Summary{}, fmt.Errorf("%w: no observations to aggregate", ErrInvalidInput)
	}

	values := make([]float64, 0, len(observations))
	failures := 0
	for _, o := range observations {
		if v, ok := o.Value(); ok {
			values = append(values, v)
			continue
		}
		failures++
	}

	if len(values) == 0 {
		return entity.NewSummary(0, failures, nil), nil
	}

	// ошибки ниже невозможны для непустого values
	mean, _ := a.CalculateAverage(values)
	minV, _ := a.CalculateMin(values)
	maxV, _ := a.CalculateMax(values)
	p95, _ := a.CalculatePercentile(values, 95)

	return entity.NewSummary(len(values), failures, &entity.Stats{
		Mean: mean,
		Min:  minV,
		Max:  maxV,
		P95:  p95,
	}), nil
}

// CalculateAverage вычисляет среднее значение
func (a *Aggregator) CalculateAverage(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, errors.New("no values to aggregate")
	}

	var sum float64
	for _, v := range values {
		sum += v
	}

	return sum / float64(len(values)), nil
}

// CalculateMin находит минимальное значение
func (a *Aggregator) CalculateMin(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, errors.New("no values to aggregate")
	}

	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m, nil
}

// CalculateMax находит максимальное значение
func (a *Aggregator) CalculateMax(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, errors.New("no values to aggregate")
	}

	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m, nil
}

// CalculatePercentile процентиль по позиции в отсортированной выборке, без интерполяции
func (a *Aggregator) CalculatePercentile(values []float64, percentile float64) (float64, error) {
	if len(values) == 0 {
		return 0, errors.New("no values to aggregate")
	}
	if percentile < 0 || percentile > 100 {
		return 0, errors.New("percentile must be between 0 and 100")
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	index := int(float64(len(sorted)-1) * (percentile / 100.0))
	return sorted[index], nil
}
