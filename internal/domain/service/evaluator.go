package service

import (
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/entity"
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/valueobject"
)

// ThresholdEvaluator классифицирует значение относительно порога (Domain Service)
// Чистая функция: одинаковый вход всегда дает одинаковый статус
type ThresholdEvaluator struct{}

// NewThresholdEvaluator создает новый ThresholdEvaluator
func NewThresholdEvaluator() *ThresholdEvaluator {
	return &ThresholdEvaluator{}
}

// Evaluate сравнение строгое в обоих направлениях: значение, равное limit, не считается выполненным
func (e *ThresholdEvaluator) Evaluate(observed float64, threshold valueobject.Threshold) valueobject.Status {
	limit := threshold.Limit()
	warning := threshold.WarningBoundary()

	if threshold.Direction() == valueobject.GreaterThanIsGood {
		switch {
		case observed > limit:
			return valueobject.StatusMet
		case observed > warning:
			return valueobject.StatusWarning
		default:
			return valueobject.StatusCritical
		}
	}

	switch {
	case observed < limit:
		return valueobject.StatusMet
	case observed < warning:
		return valueobject.StatusWarning
	default:
		return valueobject.StatusCritical
	}
}

// EvaluateSummary оценивает выбранную статистику сводки.
// Без успешных наблюдений возвращает NoData и nil вместо значения.
func (e *ThresholdEvaluator) EvaluateSummary(
	summary entity.Summary,
	threshold valueobject.Threshold,
	stat valueobject.Statistic,
) (valueobject.Status, *float64) {
	v, ok := summary.Statistic(stat)
	if !ok {
		return valueobject.StatusNoData, nil
	}
	return e.Evaluate(v, threshold), &v
}
