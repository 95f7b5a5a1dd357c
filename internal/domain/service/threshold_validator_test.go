package service

import (
	"testing"

	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/valueobject"
)

func TestThresholdValidatorBatch(t *testing.T) {
	v := NewThresholdValidator()
	bindings := []ThresholdBinding{
		{Dimension: valueobject.FileLatency, Threshold: valueobject.MustThreshold("FileOpenDelay", 500, valueobject.LessThanIsGood, valueobject.Milliseconds)},
		{Dimension: valueobject.CPU, Threshold: valueobject.MustThreshold("AgentCPU", 5, valueobject.LessThanIsGood, valueobject.Megabytes)},
		{Dimension: valueobject.Policy, Threshold: valueobject.MustThreshold("PolicyCoverage", 180, valueobject.GreaterThanIsGood, valueobject.Percent)},
		{Dimension: valueobject.FileLatency, Threshold: valueobject.MustThreshold("FileOpenDelay", 400, valueobject.LessThanIsGood, valueobject.Milliseconds)},
	}

	errs := v.ValidateBatch(bindings)
	if len(errs) != 3 {
		t.Fatalf("expected 3 errors (unit, percent, duplicate), got %d: %v", len(errs), errs)
	}
}
