package service

import (
	"errors"
	"testing"
	"time"

	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/entity"
)

func successes(values ...float64) []entity.Observation {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]entity.Observation, 0, len(values))
	for i, v := range values {
		out = append(out, entity.NewSuccessObservation(i+1, ts.Add(time.Duration(i)*time.Second), v))
	}
	return out
}

func failures(start, n int) []entity.Observation {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]entity.Observation, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, entity.NewFailureObservation(start+i, ts.Add(time.Duration(start+i)*time.Second), errors.New("timeout")))
	}
	return out
}

func TestAggregateEmptyIsInvalidInput(t *testing.T) {
	_, err := NewAggregator().Aggregate(nil)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestAggregateAllFailuresHasNoData(t *testing.T) {
	summary, err := NewAggregator().Aggregate(failures(1, 5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.SuccessCount() != 0 || summary.FailureCount() != 5 || summary.Count() != 5 {
		t.Fatalf("unexpected counts: %d/%d/%d", summary.SuccessCount(), summary.FailureCount(), summary.Count())
	}
	if summary.HasData() {
		t.Fatalf("statistics must be absent")
	}
	if _, ok := summary.Stats(); ok {
		t.Fatalf("Stats() must report absence")
	}
}

func TestAggregateMixedOutcomes(t *testing.T) {
	obs := append(successes(10, 20, 30, 40), failures(5, 6)...)

	summary, err := NewAggregator().Aggregate(obs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stats, ok := summary.Stats()
	if !ok {
		t.Fatalf("expected stats")
	}
	if stats.Mean != 25 || stats.Min != 10 || stats.Max != 40 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if summary.SuccessCount() != 4 || summary.FailureCount() != 6 {
		t.Fatalf("unexpected counts: %d/%d", summary.SuccessCount(), summary.FailureCount())
	}
}

func TestCalculatePercentileByPosition(t *testing.T) {
	a := NewAggregator()
	values := []float64{50, 10, 40, 20, 30}

	tests := []struct {
		p    float64
		want float64
	}{
		{0, 10},
		{50, 30},
		{95, 40},
		{100, 50},
	}
	for _, tt := range tests {
		got, err := a.CalculatePercentile(values, tt.p)
		if err != nil {
			t.Fatalf("p%v: %v", tt.p, err)
		}
		if got != tt.want {
			t.Fatalf("p%v = %v, want %v", tt.p, got, tt.want)
		}
	}

	if _, err := a.CalculatePercentile(values, 101); err == nil {
		t.Fatalf("expected error for percentile above 100")
	}
	if values[0] != 50 {
		t.Fatalf("input slice must not be reordered")
	}
}
