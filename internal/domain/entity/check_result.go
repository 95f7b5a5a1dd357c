package entity

import (
	"time"

	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/valueobject"
	"github.com/google/uuid"
)

// CheckResult результат одной проверки Sampler+Aggregator+ThresholdEvaluator
type CheckResult struct {
	id            string
	checkName     string
	thresholdName string
	dimension     valueobject.Dimension
	unit          valueobject.Unit
	limit         float64
	summary       Summary
	observed      *float64
	status        valueobject.Status
	errMessage    string
	startedAt     time.Time
	finishedAt    time.Time
}

// CheckResultParams параметры для создания результата
type CheckResultParams struct {
	CheckName  string
	Threshold  valueobject.Threshold
	Dimension  valueobject.Dimension
	Summary    Summary
	Observed   *float64
	Status     valueobject.Status
	Err        string
	StartedAt  time.Time
	FinishedAt time.Time
}

// NewCheckResult создает результат проверки (Factory Method)
func NewCheckResult(p CheckResultParams) *CheckResult {
	r := &CheckResult{
		id:            uuid.New().String(),
		checkName:     p.CheckName,
		thresholdName: p.Threshold.Name(),
		dimension:     p.Dimension,
		unit:          p.Threshold.Unit(),
		limit:         p.Threshold.Limit(),
		summary:       p.Summary,
		status:        p.Status,
		errMessage:    p.Err,
		startedAt:     p.StartedAt,
		finishedAt:    p.FinishedAt,
	}
	if p.Observed != nil {
		v := *p.Observed
		r.observed = &v
	}
	return r
}

// NewErroredCheckResult синтетический результат для проверки, которая упала целиком
func NewErroredCheckResult(checkName, thresholdName string, err error, startedAt, finishedAt time.Time) *CheckResult {
	r := &CheckResult{
		id:            uuid.New().String(),
		checkName:     checkName,
		thresholdName: thresholdName,
		status:        valueobject.StatusErrored,
		startedAt:     startedAt,
		finishedAt:    finishedAt,
	}
	if err != nil {
		r.errMessage = err.Error()
	}
	return r
}

// ReconstructCheckResult восстанавливает результат из хранилища (для Repository)
func ReconstructCheckResult(
	id, checkName, thresholdName string,
	dimension valueobject.Dimension,
	unit valueobject.Unit,
	limit float64,
	summary Summary,
	observed *float64,
	status valueobject.Status,
	errMessage string,
	startedAt, finishedAt time.Time,
) *CheckResult {
	return &CheckResult{
		id:            id,
		checkName:     checkName,
		thresholdName: thresholdName,
		dimension:     dimension,
		unit:          unit,
		limit:         limit,
		summary:       summary,
		observed:      observed,
		status:        status,
		errMessage:    errMessage,
		startedAt:     startedAt,
		finishedAt:    finishedAt,
	}
}

func (r *CheckResult) ID() string {
	return r.id
}

func (r *CheckResult) CheckName() string {
	return r.checkName
}

func (r *CheckResult) ThresholdName() string {
	return r.thresholdName
}

func (r *CheckResult) Dimension() valueobject.Dimension {
	return r.dimension
}

func (r *CheckResult) Unit() valueobject.Unit {
	return r.unit
}

// Limit значение порога на момент проверки
func (r *CheckResult) Limit() float64 {
	return r.limit
}

func (r *CheckResult) Summary() Summary {
	return r.summary
}

// Observed значение, сравненное с порогом, если оно есть
func (r *CheckResult) Observed() (float64, bool) {
	if r.observed == nil {
		return 0, false
	}
	return *r.observed, true
}

func (r *CheckResult) Status() valueobject.Status {
	return r.status
}

// Err текст ошибки для Errored результатов
func (r *CheckResult) Err() string {
	return r.errMessage
}

func (r *CheckResult) StartedAt() time.Time {
	return r.startedAt
}

func (r *CheckResult) FinishedAt() time.Time {
	return r.finishedAt
}

// Duration длительность проверки
func (r *CheckResult) Duration() time.Duration {
	return r.finishedAt.Sub(r.startedAt)
}

// IsMet выполнен ли KPI
func (r *CheckResult) IsMet() bool {
	return r.status.IsMet()
}
