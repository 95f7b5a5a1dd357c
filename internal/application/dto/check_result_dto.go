package dto

import (
	"time"

	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/entity"
)

// SummaryDTO сводка наблюдений. Статистики отсутствуют, если нет успешных наблюдений.
type SummaryDTO struct {
	Count        int      `json:"count"`
	SuccessCount int      `json:"success_count"`
	FailureCount int      `json:"failure_count"`
	HasData      bool     `json:"has_data"`
	Mean         *float64 `json:"mean,omitempty"`
	Min          *float64 `json:"min,omitempty"`
	Max          *float64 `json:"max,omitempty"`
	P95          *float64 `json:"p95,omitempty"`
}

// CheckResultDTO представляет результат проверки для передачи между слоями
type CheckResultDTO struct {
	ID            string     `json:"id"`
	CheckName     string     `json:"check_name"`
	ThresholdName string     `json:"threshold_name"`
	Dimension     string     `json:"dimension,omitempty"`
	Unit          string     `json:"unit,omitempty"`
	Limit         float64    `json:"limit,omitempty"`
	Summary       SummaryDTO `json:"summary"`
	Observed      *float64   `json:"observed,omitempty"`
	Status        string     `json:"status"`
	Error         string     `json:"error,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    time.Time  `json:"finished_at"`
	DurationMS    int64      `json:"duration_ms"`
}

// FromSummary конвертирует Summary в DTO
func FromSummary(s entity.Summary) SummaryDTO {
	out := SummaryDTO{
		Count:        s.Count(),
		SuccessCount: s.SuccessCount(),
		FailureCount: s.FailureCount(),
		HasData:      s.HasData(),
	}
	if stats, ok := s.Stats(); ok {
		out.Mean = floatPtr(stats.Mean)
		out.Min = floatPtr(stats.Min)
		out.Max = floatPtr(stats.Max)
		out.P95 = floatPtr(stats.P95)
	}
	return out
}

// FromCheckResult конвертирует Domain Entity в DTO
func FromCheckResult(r *entity.CheckResult) *CheckResultDTO {
	out := &CheckResultDTO{
		ID:            r.ID(),
		CheckName:     r.CheckName(),
		ThresholdName: r.ThresholdName(),
		Dimension:     r.Dimension().String(),
		Unit:          string(r.Unit()),
		Limit:         r.Limit(),
		Summary:       FromSummary(r.Summary()),
		Status:        r.Status().String(),
		Error:         r.Err(),
		StartedAt:     r.StartedAt(),
		FinishedAt:    r.FinishedAt(),
		DurationMS:    r.Duration().Milliseconds(),
	}
	if v, ok := r.Observed(); ok {
		out.Observed = floatPtr(v)
	}
	return out
}

// ToCheckResultDTOs конвертирует слайс Entity в слайс DTO
func ToCheckResultDTOs(results []*entity.CheckResult) []*CheckResultDTO {
	dtos := make([]*CheckResultDTO, len(results))
	for i, r := range results {
		dtos[i] = FromCheckResult(r)
	}
	return dtos
}

func floatPtr(v float64) *float64 {
	return &v
}
