package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/dreschagin/dlp-kpi-monitor/internal/application/port"
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/service"
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/valueobject"
)

type panickingProbe struct{}

func (panickingProbe) Name() string { return "panicking" }

func (panickingProbe) Measure(_ context.Context) (float64, error) { return 0, nil }

func (panickingProbe) Preflight(_ context.Context) error { panic("driver crashed") }

func newSuiteCatalog(t *testing.T) *CheckCatalog {
	t.Helper()

	catalog := NewCheckCatalog()
	defs := []CheckDefinition{
		fileOpenDefinition(&seqProbe{name: "file-open", values: []float64{100, 120, 110}}),
		{
			Name:      "agent-cpu",
			Dimension: valueobject.CPU,
			Threshold: valueobject.MustThreshold("AgentCPU", 5, valueobject.LessThanIsGood, valueobject.Percent),
			Ticks:     2,
			Interval:  1,
			Probe:     panickingProbe{},
		},
		{
			Name:      "system-memory",
			Dimension: valueobject.Memory,
			Threshold: valueobject.MustThreshold("SystemMemory", 40, valueobject.LessThanIsGood, valueobject.Percent),
			Ticks:     2,
			Interval:  1,
			Probe:     &seqProbe{name: "system-memory", values: []float64{95, 99}},
		},
	}
	for _, def := range defs {
		if err := catalog.Register(def); err != nil {
			t.Fatalf("Register() error = %v", err)
		}
	}
	if err := catalog.SetMode(valueobject.ModeQuick, []string{"file-open-latency", "agent-cpu", "system-memory"}); err != nil {
		t.Fatalf("SetMode() error = %v", err)
	}
	return catalog
}

func TestRunSuiteContinuesAfterFailingCheck(t *testing.T) {
	repo := &mockRepository{}
	notifier := &mockNotifier{}
	events := &mockEvents{}
	sink := &failingSink{}

	uc := NewRunSuiteUseCase(newSuiteCatalog(t), newTestRunCheck(), RunSuiteDeps{
		Repository: repo,
		Notifier:   notifier,
		Events:     events,
		Sinks:      []port.ReportSink{sink},
	}, RunSuiteConfig{Host: "ws-01"}, testLogger())

	run, err := uc.Execute(context.Background(), RunSuiteCommand{Mode: "quick"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	results := run.Results()
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	wantStatus := []valueobject.Status{valueobject.StatusMet, valueobject.StatusErrored, valueobject.StatusCritical}
	for i, want := range wantStatus {
		if results[i].Status() != want {
			t.Fatalf("result %d: expected %s, got %s", i, want, results[i].Status())
		}
	}
	if results[1].Err() == "" {
		t.Fatalf("expected errored result to carry the failure message")
	}
	if run.OverallStatus() != valueobject.OverallCritical {
		t.Fatalf("expected critical overall, got %s", run.OverallStatus())
	}

	if len(repo.saved) != 1 {
		t.Fatalf("expected run to be saved once, got %d", len(repo.saved))
	}
	if sink.calls != 1 {
		t.Fatalf("expected sink to be called despite its failure")
	}
	if len(notifier.checks) != 3 || len(notifier.suites) != 1 {
		t.Fatalf("unexpected broadcasts: %d checks, %d suites", len(notifier.checks), len(notifier.suites))
	}
	if notifier.suites[0].Host != "ws-01" {
		t.Fatalf("expected host in suite DTO, got %q", notifier.suites[0].Host)
	}
	if events.count(port.SubjectCheckCompleted) != 3 || events.count(port.SubjectSuiteCompleted) != 1 {
		t.Fatalf("unexpected events: %v", events.subjects)
	}
	if events.count(port.SubjectKPIAlert) != 2 {
		t.Fatalf("expected alerts for errored and critical checks, got %d", events.count(port.SubjectKPIAlert))
	}
}

func TestRunSuiteRejectsUnknownCheck(t *testing.T) {
	repo := &mockRepository{}
	uc := NewRunSuiteUseCase(newSuiteCatalog(t), newTestRunCheck(), RunSuiteDeps{Repository: repo},
		RunSuiteConfig{}, testLogger())

	_, err := uc.Execute(context.Background(), RunSuiteCommand{Checks: []string{"file-open-latency", "gpu"}})
	if !service.IsOrchestrationFailure(err) || !errors.Is(err, service.ErrUnknownCheck) {
		t.Fatalf("expected unknown check orchestration failure, got %v", err)
	}
	if len(repo.saved) != 0 {
		t.Fatalf("nothing must be persisted on orchestration failure")
	}
}

func TestRunSuiteParallelKeepsOrder(t *testing.T) {
	uc := NewRunSuiteUseCase(newSuiteCatalog(t), newTestRunCheck(), RunSuiteDeps{},
		RunSuiteConfig{}, testLogger())

	run, err := uc.Execute(context.Background(), RunSuiteCommand{Mode: "quick", Parallelism: 3})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	want := []string{"file-open-latency", "agent-cpu", "system-memory"}
	for i, r := range run.Results() {
		if r.CheckName() != want[i] {
			t.Fatalf("result %d: expected %s, got %s", i, want[i], r.CheckName())
		}
	}
}

func TestRunSuiteCancelledStillPublishes(t *testing.T) {
	repo := &mockRepository{}
	uc := NewRunSuiteUseCase(newSuiteCatalog(t), newTestRunCheck(), RunSuiteDeps{Repository: repo},
		RunSuiteConfig{}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run, err := uc.Execute(ctx, RunSuiteCommand{Mode: "quick"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	for _, r := range run.Results() {
		if r.Status() != valueobject.StatusErrored {
			t.Fatalf("expected errored results for cancelled suite, got %s", r.Status())
		}
	}
	if len(repo.saved) != 1 {
		t.Fatalf("expected cancelled run to be persisted")
	}
	if !repo.saved[0].IsFinalized() {
		t.Fatalf("expected finalized run")
	}
}
