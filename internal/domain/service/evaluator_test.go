package service

import (
	"testing"

	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/entity"
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/valueobject"
)

const eps = 1e-9

func TestEvaluateLessThanIsGoodBoundaries(t *testing.T) {
	th := valueobject.MustThreshold("FileOpenDelay", 500, valueobject.LessThanIsGood, valueobject.Milliseconds)
	e := NewThresholdEvaluator()

	tests := []struct {
		name     string
		observed float64
		want     valueobject.Status
	}{
		{name: "equal to limit", observed: 500, want: valueobject.StatusWarning},
		{name: "just below limit", observed: 500 - eps, want: valueobject.StatusMet},
		{name: "equal to warning boundary", observed: 1000, want: valueobject.StatusCritical},
		{name: "just below warning boundary", observed: 1000 - eps, want: valueobject.StatusWarning},
		{name: "zero is a real measurement", observed: 0, want: valueobject.StatusMet},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.Evaluate(tt.observed, th); got != tt.want {
				t.Fatalf("Evaluate(%v) = %s, want %s", tt.observed, got, tt.want)
			}
		})
	}
}

func TestEvaluateGreaterThanIsGoodBoundaries(t *testing.T) {
	th := valueobject.MustThreshold("PolicyCoverage", 80, valueobject.GreaterThanIsGood, valueobject.Percent)
	e := NewThresholdEvaluator()
	boundary := th.WarningBoundary()

	tests := []struct {
		name     string
		observed float64
		want     valueobject.Status
	}{
		{name: "equal to limit", observed: 80, want: valueobject.StatusWarning},
		{name: "just above limit", observed: 80 + eps, want: valueobject.StatusMet},
		{name: "equal to eighty percent of limit", observed: boundary, want: valueobject.StatusCritical},
		{name: "just above eighty percent of limit", observed: boundary + eps, want: valueobject.StatusWarning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.Evaluate(tt.observed, th); got != tt.want {
				t.Fatalf("Evaluate(%v) = %s, want %s", tt.observed, got, tt.want)
			}
		})
	}
}

func TestEvaluateIsIdempotent(t *testing.T) {
	th := valueobject.MustThreshold("AgentCPU", 5, valueobject.LessThanIsGood, valueobject.Percent)
	e := NewThresholdEvaluator()

	for _, v := range []float64{0, 4.99, 5, 7.5, 10, 1e6} {
		first := e.Evaluate(v, th)
		for i := 0; i < 100; i++ {
			if got := e.Evaluate(v, th); got != first {
				t.Fatalf("Evaluate(%v) changed from %s to %s", v, first, got)
			}
		}
	}
}

func TestFileOpenDelayScenarios(t *testing.T) {
	th := valueobject.MustThreshold("FileOpenDelay", 500, valueobject.LessThanIsGood, valueobject.Milliseconds)
	a := NewAggregator()
	e := NewThresholdEvaluator()

	fifteen := []float64{100, 120, 110, 115, 115, 115, 115, 115, 115, 115, 115, 115, 115, 115, 130}

	tests := []struct {
		name     string
		obs      []entity.Observation
		wantMean float64
		want     valueobject.Status
	}{
		{name: "steady low latency is met", obs: successes(fifteen...), wantMean: 115, want: valueobject.StatusMet},
		{name: "slow but under double limit is warning", obs: successes(850, 900, 950), wantMean: 900, want: valueobject.StatusWarning},
		{name: "above double limit is critical", obs: successes(1100, 1200, 1300), wantMean: 1200, want: valueobject.StatusCritical},
		{name: "only successful ticks are evaluated", obs: append(successes(10, 20, 30, 40), failures(5, 6)...), wantMean: 25, want: valueobject.StatusMet},
		{name: "all ticks failed is no data", obs: failures(1, 4), want: valueobject.StatusNoData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summary, err := a.Aggregate(tt.obs)
			if err != nil {
				t.Fatalf("aggregate: %v", err)
			}
			status, observed := e.EvaluateSummary(summary, th, valueobject.StatMean)
			if status != tt.want {
				t.Fatalf("status = %s, want %s", status, tt.want)
			}
			if tt.want == valueobject.StatusNoData {
				if observed != nil {
					t.Fatalf("no data must not carry an observed value")
				}
				return
			}
			if observed == nil || *observed != tt.wantMean {
				t.Fatalf("observed = %v, want %v", observed, tt.wantMean)
			}
		})
	}
}
