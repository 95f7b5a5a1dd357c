package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/entity"
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/valueobject"
)

func staticCheck(name string, status valueobject.Status) NamedCheck {
	th := valueobject.MustThreshold(name+"Threshold", 1, valueobject.LessThanIsGood, valueobject.Milliseconds)
	return NamedCheck{
		Name:          name,
		ThresholdName: th.Name(),
		Run: func(ctx context.Context) (*entity.CheckResult, error) {
			return entity.NewCheckResult(entity.CheckResultParams{
				CheckName: name,
				Threshold: th,
				Status:    status,
			}), nil
		},
	}
}

func failingCheck(name string) NamedCheck {
	return NamedCheck{
		Name:          name,
		ThresholdName: name + "Threshold",
		Run: func(ctx context.Context) (*entity.CheckResult, error) {
			return nil, errors.New("compliance API permission denied")
		},
	}
}

func TestOrchestratorNoChecksIsFatal(t *testing.T) {
	_, err := NewOrchestrator().Run(context.Background(), valueobject.ModeQuick, nil)
	if !errors.Is(err, ErrNoChecks) {
		t.Fatalf("expected ErrNoChecks, got %v", err)
	}
	if !IsOrchestrationFailure(err) {
		t.Fatalf("expected orchestration failure")
	}
}

func TestOrchestratorMissingImplementationIsFatal(t *testing.T) {
	_, err := NewOrchestrator().Run(context.Background(), valueobject.ModeCustom, []NamedCheck{{Name: "agent-cpu"}})
	if !errors.Is(err, ErrMissingParameter) {
		t.Fatalf("expected ErrMissingParameter, got %v", err)
	}
}

func TestOrchestratorIsolatesFailingCheck(t *testing.T) {
	checks := []NamedCheck{
		staticCheck("file-open-latency", valueobject.StatusMet),
		failingCheck("policy-match-rate"),
		staticCheck("agent-memory", valueobject.StatusMet),
	}

	run, err := NewOrchestrator().Run(context.Background(), valueobject.ModeCustom, checks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	results := run.Results()
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[1].Status() != valueobject.StatusErrored {
		t.Fatalf("failed check status = %s, want errored", results[1].Status())
	}
	if results[1].Err() == "" {
		t.Fatalf("errored result must keep the error text")
	}
	if results[1].ThresholdName() != "policy-match-rateThreshold" {
		t.Fatalf("errored result threshold = %s", results[1].ThresholdName())
	}
	if run.OverallStatus() != valueobject.OverallWarning {
		t.Fatalf("overall = %s, want warning (2 of 3 met)", run.OverallStatus())
	}
	if !run.IsFinalized() || run.FinishedAt().Before(run.StartedAt()) {
		t.Fatalf("suite run must be finalized with ordered timestamps")
	}
}

func TestOrchestratorFaultIsolationAnyIndex(t *testing.T) {
	const n = 5
	for k := 0; k < n; k++ {
		checks := make([]NamedCheck, 0, n)
		for i := 0; i < n; i++ {
			name := string(rune('a' + i))
			if i == k {
				checks = append(checks, NamedCheck{
					Name: name,
					Run: func(ctx context.Context) (*entity.CheckResult, error) {
						panic("unhandled")
					},
				})
				continue
			}
			checks = append(checks, staticCheck(name, valueobject.StatusMet))
		}

		run, err := NewOrchestrator().Run(context.Background(), valueobject.ModeCustom, checks)
		if err != nil {
			t.Fatalf("k=%d: unexpected error: %v", k, err)
		}
		results := run.Results()
		if len(results) != n {
			t.Fatalf("k=%d: expected %d results, got %d", k, n, len(results))
		}
		for i, r := range results {
			if i == k && r.Status() != valueobject.StatusErrored {
				t.Fatalf("k=%d: result %d must be errored", k, i)
			}
			if r.CheckName() != string(rune('a'+i)) {
				t.Fatalf("k=%d: result order broken at %d", k, i)
			}
		}
		// 4 из 5 = 80%, граница строгая
		if run.OverallStatus() != valueobject.OverallWarning {
			t.Fatalf("k=%d: overall = %s", k, run.OverallStatus())
		}
	}
}

func TestOrchestratorParallelKeepsInputOrder(t *testing.T) {
	var running, peak int32
	checks := make([]NamedCheck, 0, 6)
	for i := 0; i < 6; i++ {
		name := string(rune('a' + i))
		delay := time.Duration(6-i) * time.Millisecond
		inner := staticCheck(name, valueobject.StatusMet)
		checks = append(checks, NamedCheck{
			Name: name,
			Run: func(ctx context.Context) (*entity.CheckResult, error) {
				cur := atomic.AddInt32(&running, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if cur <= p || atomic.CompareAndSwapInt32(&peak, p, cur) {
						break
					}
				}
				time.Sleep(delay)
				atomic.AddInt32(&running, -1)
				return inner.Run(ctx)
			},
		})
	}

	var hooked int32
	run, err := NewOrchestrator(
		WithParallelism(2),
		WithResultHook(func(int, *entity.CheckResult) { atomic.AddInt32(&hooked, 1) }),
	).Run(context.Background(), valueobject.ModeFull, checks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, r := range run.Results() {
		if r.CheckName() != string(rune('a'+i)) {
			t.Fatalf("result %d is %s, input order must be preserved", i, r.CheckName())
		}
	}
	if peak > 2 {
		t.Fatalf("parallelism limit exceeded: %d", peak)
	}
	if hooked != 6 {
		t.Fatalf("hook called %d times", hooked)
	}
	if run.OverallStatus() != valueobject.Healthy {
		t.Fatalf("overall = %s", run.OverallStatus())
	}
}

func TestOrchestratorCancelledSuiteStillProducesRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	checks := []NamedCheck{
		{
			Name: "first",
			Run: func(ctx context.Context) (*entity.CheckResult, error) {
				cancel()
				return staticCheck("first", valueobject.StatusMet).Run(ctx)
			},
		},
		staticCheck("second", valueobject.StatusMet),
	}

	run, err := NewOrchestrator().Run(ctx, valueobject.ModeCustom, checks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	results := run.Results()
	if results[0].Status() != valueobject.StatusMet || results[1].Status() != valueobject.StatusErrored {
		t.Fatalf("unexpected statuses: %s, %s", results[0].Status(), results[1].Status())
	}
}
