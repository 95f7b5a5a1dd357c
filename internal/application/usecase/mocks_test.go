package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dreschagin/dlp-kpi-monitor/internal/application/dto"
	"github.com/dreschagin/dlp-kpi-monitor/internal/application/port"
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/entity"
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/repository"
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/service"
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/valueobject"
	"github.com/dreschagin/dlp-kpi-monitor/pkg/logger"
)

// seqProbe returns values in order; errAt injects failures by call index.
type seqProbe struct {
	name   string
	values []float64
	errAt  map[int]error
	calls  int
}

func (p *seqProbe) Name() string { return p.name }

func (p *seqProbe) Measure(_ context.Context) (float64, error) {
	i := p.calls
	p.calls++
	if err, ok := p.errAt[i]; ok {
		return 0, err
	}
	if i < len(p.values) {
		return p.values[i], nil
	}
	return p.values[len(p.values)-1], nil
}

type preflightProbe struct {
	seqProbe
	err error
}

func (p *preflightProbe) Preflight(_ context.Context) error { return p.err }

type mockRepository struct {
	mu      sync.Mutex
	saved   []*entity.SuiteRun
	saveErr error
	latest  *entity.SuiteRun
	history []*entity.SuiteRun
	lastTR  valueobject.TimeRange
	deleted int64
	before  time.Time
}

func (m *mockRepository) Save(_ context.Context, run *entity.SuiteRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, run)
	return nil
}

func (m *mockRepository) FindByID(_ context.Context, id string) (*entity.SuiteRun, error) {
	for _, r := range m.saved {
		if r.ID() == id {
			return r, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *mockRepository) FindLatest(_ context.Context) (*entity.SuiteRun, error) {
	if m.latest == nil {
		return nil, repository.ErrNotFound
	}
	return m.latest, nil
}

func (m *mockRepository) FindByTimeRange(_ context.Context, tr valueobject.TimeRange, _ int) ([]*entity.SuiteRun, error) {
	m.lastTR = tr
	return m.history, nil
}

func (m *mockRepository) DeleteOlderThan(_ context.Context, before time.Time) (int64, error) {
	m.before = before
	return m.deleted, nil
}

type mockNotifier struct {
	mu     sync.Mutex
	checks []*dto.CheckResultDTO
	suites []*dto.SuiteRunDTO
}

func (m *mockNotifier) BroadcastCheckResult(r *dto.CheckResultDTO) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks = append(m.checks, r)
}

func (m *mockNotifier) BroadcastSuiteRun(r *dto.SuiteRunDTO) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suites = append(m.suites, r)
}

func (m *mockNotifier) ClientCount() int { return 1 }

type mockEvents struct {
	mu       sync.Mutex
	subjects []string
}

func (m *mockEvents) PublishEvent(_ context.Context, subject string, _ interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subjects = append(m.subjects, subject)
	return nil
}

func (m *mockEvents) Close() error { return nil }

func (m *mockEvents) count(subject string) int {
	n := 0
	for _, s := range m.subjects {
		if s == subject {
			n++
		}
	}
	return n
}

type failingSink struct{ calls int }

func (s *failingSink) Name() string { return "failing" }

func (s *failingSink) Write(_ context.Context, _ *entity.SuiteRun) error {
	s.calls++
	return errors.New("disk full")
}

func testLogger() *logger.Logger {
	return logger.New("error")
}

func newTestRunCheck() *RunCheckUseCase {
	sampler := service.NewSampler()
	return NewRunCheckUseCase(sampler, service.NewAggregator(), service.NewThresholdEvaluator(),
		RunCheckConfig{MaxTicks: 30}, testLogger())
}

func fileOpenDefinition(probe port.Probe) CheckDefinition {
	return CheckDefinition{
		Name:      "file-open-latency",
		Dimension: valueobject.FileLatency,
		Threshold: valueobject.MustThreshold("FileOpenDelay", 500, valueobject.LessThanIsGood, valueobject.Milliseconds),
		Ticks:     3,
		Interval:  time.Millisecond,
		Probe:     probe,
	}
}
