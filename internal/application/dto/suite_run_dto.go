package dto

import (
	"fmt"
	"time"

	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/entity"
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/valueobject"
)

// SuiteRunDTO представляет прогон набора проверок
// Используется для HTTP API, WebSocket и JSON вывода CLI
type SuiteRunDTO struct {
	ID            string            `json:"id"`
	Mode          string            `json:"mode"`
	Host          string            `json:"host,omitempty"`
	StartedAt     time.Time         `json:"started_at"`
	FinishedAt    time.Time         `json:"finished_at"`
	DurationMS    int64             `json:"duration_ms"`
	OverallStatus string            `json:"overall_status"` // "healthy", "warning", "critical"
	MetPercent    float64           `json:"met_percent"`
	Counts        SuiteCountsDTO    `json:"counts"`
	Results       []*CheckResultDTO `json:"results"`
}

// SuiteCountsDTO распределение результатов по статусам
type SuiteCountsDTO struct {
	Total    int `json:"total"`
	Met      int `json:"met"`
	Warning  int `json:"warning"`
	Critical int `json:"critical"`
	NoData   int `json:"no_data"`
	Errored  int `json:"errored"`
}

// FromSuiteRun конвертирует прогон в DTO
func FromSuiteRun(run *entity.SuiteRun) *SuiteRunDTO {
	counts := run.CountByStatus()
	results := run.Results()

	return &SuiteRunDTO{
		ID:            run.ID(),
		Mode:          run.Mode().String(),
		StartedAt:     run.StartedAt(),
		FinishedAt:    run.FinishedAt(),
		DurationMS:    run.Duration().Milliseconds(),
		OverallStatus: run.OverallStatus().String(),
		MetPercent:    run.MetPercent(),
		Counts: SuiteCountsDTO{
			Total:    len(results),
			Met:      counts[valueobject.StatusMet],
			Warning:  counts[valueobject.StatusWarning],
			Critical: counts[valueobject.StatusCritical],
			NoData:   counts[valueobject.StatusNoData],
			Errored:  counts[valueobject.StatusErrored],
		},
		Results: ToCheckResultDTOs(results),
	}
}

// AlertDTO представляет alert для отправки клиентам и в брокер
type AlertDTO struct {
	Timestamp time.Time       `json:"timestamp"`
	Level     string          `json:"level"` // "warning", "critical", "errored"
	Check     *CheckResultDTO `json:"check"`
	Message   string          `json:"message"`
}

// NewAlertDTO создает alert для невыполненного KPI. Для выполненных и NoData возвращает nil.
func NewAlertDTO(r *entity.CheckResult) *AlertDTO {
	var message string
	switch r.Status() {
	case valueobject.StatusWarning, valueobject.StatusCritical:
		v, _ := r.Observed()
		message = fmt.Sprintf("%s is %s: %s (limit %s)",
			r.CheckName(), r.Status(), r.Unit().Format(v), r.Unit().Format(r.Limit()))
	case valueobject.StatusErrored:
		message = fmt.Sprintf("%s failed: %s", r.CheckName(), r.Err())
	default:
		return nil
	}

	return &AlertDTO{
		Timestamp: r.FinishedAt(),
		Level:     r.Status().String(),
		Check:     FromCheckResult(r),
		Message:   message,
	}
}

// SuiteHistoryDTO история прогонов с агрегатами по доле выполненных проверок
type SuiteHistoryDTO struct {
	Runs              []*SuiteRunDTO `json:"runs"`
	AverageMetPercent float64        `json:"average_met_percent"`
	MinMetPercent     float64        `json:"min_met_percent"`
	MaxMetPercent     float64        `json:"max_met_percent"`
	CriticalCount     int            `json:"critical_count"`
	WarningCount      int            `json:"warning_count"`
}
