package postgres

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/entity"
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/valueobject"
)

// SuiteRunDBModel представляет прогон в БД
type SuiteRunDBModel struct {
	ID            string
	Host          string
	Mode          string
	OverallStatus string
	MetPercent    float64
	StartedAt     time.Time
	FinishedAt    time.Time
}

// CheckResultDBModel представляет результат проверки в БД
type CheckResultDBModel struct {
	ID            string
	RunID         string
	Position      int
	CheckName     string
	ThresholdName string
	Dimension     string
	Unit          string
	LimitValue    float64
	Status        string
	Observed      sql.NullFloat64
	SuccessCount  int
	FailureCount  int
	StatMean      sql.NullFloat64
	StatMin       sql.NullFloat64
	StatMax       sql.NullFloat64
	StatP95       sql.NullFloat64
	ErrorMessage  string
	StartedAt     time.Time
	FinishedAt    time.Time
}

// ToRunDBModel конвертирует прогон в DB Model
func ToRunDBModel(run *entity.SuiteRun, host string) *SuiteRunDBModel {
	return &SuiteRunDBModel{
		ID:            run.ID(),
		Host:          host,
		Mode:          run.Mode().String(),
		OverallStatus: run.OverallStatus().String(),
		MetPercent:    run.MetPercent(),
		StartedAt:     run.StartedAt(),
		FinishedAt:    run.FinishedAt(),
	}
}

// ToResultDBModel конвертирует результат проверки в DB Model
func ToResultDBModel(runID string, position int, r *entity.CheckResult) *CheckResultDBModel {
	m := &CheckResultDBModel{
		ID:            r.ID(),
		RunID:         runID,
		Position:      position,
		CheckName:     r.CheckName(),
		ThresholdName: r.ThresholdName(),
		Dimension:     r.Dimension().String(),
		Unit:          string(r.Unit()),
		LimitValue:    r.Limit(),
		Status:        r.Status().String(),
		SuccessCount:  r.Summary().SuccessCount(),
		FailureCount:  r.Summary().FailureCount(),
		ErrorMessage:  r.Err(),
		StartedAt:     r.StartedAt(),
		FinishedAt:    r.FinishedAt(),
	}

	if v, ok := r.Observed(); ok {
		m.Observed = sql.NullFloat64{Float64: v, Valid: true}
	}
	if st, ok := r.Summary().Stats(); ok {
		m.StatMean = sql.NullFloat64{Float64: st.Mean, Valid: true}
		m.StatMin = sql.NullFloat64{Float64: st.Min, Valid: true}
		m.StatMax = sql.NullFloat64{Float64: st.Max, Valid: true}
		m.StatP95 = sql.NullFloat64{Float64: st.P95, Valid: true}
	}

	return m
}

// ToResultEntity восстанавливает результат проверки
func ToResultEntity(m *CheckResultDBModel) (*entity.CheckResult, error) {
	status, err := valueobject.ParseStatus(m.Status)
	if err != nil {
		return nil, err
	}

	var stats *entity.Stats
	if m.StatMean.Valid {
		stats = &entity.Stats{
			Mean: m.StatMean.Float64,
			Min:  m.StatMin.Float64,
			Max:  m.StatMax.Float64,
			P95:  m.StatP95.Float64,
		}
	}

	var observed *float64
	if m.Observed.Valid {
		v := m.Observed.Float64
		observed = &v
	}

	return entity.ReconstructCheckResult(
		m.ID,
		m.CheckName,
		m.ThresholdName,
		valueobject.Dimension(m.Dimension),
		valueobject.Unit(m.Unit),
		m.LimitValue,
		entity.NewSummary(m.SuccessCount, m.FailureCount, stats),
		observed,
		status,
		m.ErrorMessage,
		m.StartedAt,
		m.FinishedAt,
	), nil
}

// ToRunEntity восстанавливает прогон вместе с результатами
func ToRunEntity(m *SuiteRunDBModel, results []*entity.CheckResult) (*entity.SuiteRun, error) {
	mode, err := valueobject.ParseMonitoringMode(m.Mode)
	if err != nil {
		return nil, err
	}
	overall, err := valueobject.ParseOverallStatus(m.OverallStatus)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", m.ID, err)
	}

	return entity.ReconstructSuiteRun(m.ID, mode, results, m.StartedAt, m.FinishedAt, overall, m.MetPercent), nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// ScanRunRow сканирует строку suite_runs
func ScanRunRow(row scanner) (*SuiteRunDBModel, error) {
	var m SuiteRunDBModel
	err := row.Scan(
		&m.ID,
		&m.Host,
		&m.Mode,
		&m.OverallStatus,
		&m.MetPercent,
		&m.StartedAt,
		&m.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ScanResultRow сканирует строку check_results
func ScanResultRow(row scanner) (*CheckResultDBModel, error) {
	var m CheckResultDBModel
	var errMsg sql.NullString

	err := row.Scan(
		&m.ID,
		&m.RunID,
		&m.Position,
		&m.CheckName,
		&m.ThresholdName,
		&m.Dimension,
		&m.Unit,
		&m.LimitValue,
		&m.Status,
		&m.Observed,
		&m.SuccessCount,
		&m.FailureCount,
		&m.StatMean,
		&m.StatMin,
		&m.StatMax,
		&m.StatP95,
		&errMsg,
		&m.StartedAt,
		&m.FinishedAt,
	)
	if err != nil {
		return nil, err
	}

	if errMsg.Valid {
		m.ErrorMessage = errMsg.String
	}
	return &m, nil
}
