package entity

import (
	"errors"
	"time"

	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/valueobject"
	"github.com/google/uuid"
)

// ErrSuiteFinalized результат нельзя добавить после завершения прогона
var ErrSuiteFinalized = errors.New("suite run is already finalized")

// SuiteRun прогон набора проверок (Aggregate Root)
// Результаты хранятся в порядке входного списка проверок
type SuiteRun struct {
	id            string
	mode          valueobject.MonitoringMode
	results       []*CheckResult
	startedAt     time.Time
	finishedAt    time.Time
	overallStatus valueobject.OverallStatus
	metPercent    float64
	finalized     bool
}

// StartSuiteRun создает новый прогон (Factory Method)
func StartSuiteRun(mode valueobject.MonitoringMode, startedAt time.Time) *SuiteRun {
	return &SuiteRun{
		id:        uuid.New().String(),
		mode:      mode,
		startedAt: startedAt,
	}
}

// ReconstructSuiteRun восстанавливает прогон из хранилища (для Repository)
func ReconstructSuiteRun(
	id string,
	mode valueobject.MonitoringMode,
	results []*CheckResult,
	startedAt, finishedAt time.Time,
	overall valueobject.OverallStatus,
	metPercent float64,
) *SuiteRun {
	return &SuiteRun{
		id:            id,
		mode:          mode,
		results:       results,
		startedAt:     startedAt,
		finishedAt:    finishedAt,
		overallStatus: overall,
		metPercent:    metPercent,
		finalized:     true,
	}
}

func (s *SuiteRun) ID() string {
	return s.id
}

func (s *SuiteRun) Mode() valueobject.MonitoringMode {
	return s.mode
}

// Results возвращает копию списка результатов
func (s *SuiteRun) Results() []*CheckResult {
	out := make([]*CheckResult, len(s.results))
	copy(out, s.results)
	return out
}

func (s *SuiteRun) StartedAt() time.Time {
	return s.startedAt
}

func (s *SuiteRun) FinishedAt() time.Time {
	return s.finishedAt
}

func (s *SuiteRun) OverallStatus() valueobject.OverallStatus {
	return s.overallStatus
}

// MetPercent доля выполненных проверок в процентах
func (s *SuiteRun) MetPercent() float64 {
	return s.metPercent
}

func (s *SuiteRun) IsFinalized() bool {
	return s.finalized
}

// Duration длительность прогона
func (s *SuiteRun) Duration() time.Duration {
	return s.finishedAt.Sub(s.startedAt)
}

// Domain Methods (бизнес-логика)

// Append добавляет результат очередной проверки
func (s *SuiteRun) Append(r *CheckResult) error {
	if s.finalized {
		return ErrSuiteFinalized
	}
	if r == nil {
		return errors.New("check result cannot be nil")
	}
	s.results = append(s.results, r)
	return nil
}

// Finalize фиксирует время окончания и вычисляет итоговое состояние
func (s *SuiteRun) Finalize(finishedAt time.Time) {
	if s.finalized {
		return
	}
	s.finishedAt = finishedAt
	if len(s.results) > 0 {
		s.metPercent = float64(s.MetCount()) / float64(len(s.results)) * 100
	}
	s.overallStatus = valueobject.OverallFromMetPercent(s.metPercent)
	s.finalized = true
}

// MetCount количество выполненных проверок
func (s *SuiteRun) MetCount() int {
	n := 0
	for _, r := range s.results {
		if r.IsMet() {
			n++
		}
	}
	return n
}

// CountByStatus распределение результатов по статусам
func (s *SuiteRun) CountByStatus() map[valueobject.Status]int {
	counts := make(map[valueobject.Status]int)
	for _, r := range s.results {
		counts[r.Status()]++
	}
	return counts
}
