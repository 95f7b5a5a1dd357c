package compliance

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreschagin/dlp-kpi-monitor/internal/application/port"
	"github.com/dreschagin/dlp-kpi-monitor/internal/application/usecase"
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/entity"
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/service"
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/valueobject"
	"github.com/dreschagin/dlp-kpi-monitor/pkg/logger"
)

func policyDefinition(name string, probe port.Probe, threshold valueobject.Threshold) usecase.CheckDefinition {
	return usecase.CheckDefinition{
		Name:      name,
		Dimension: valueobject.Policy,
		Threshold: threshold,
		Ticks:     2,
		Interval:  time.Millisecond,
		Probe:     probe,
	}
}

func runPolicyCheck(t *testing.T, def usecase.CheckDefinition) *entity.SuiteRun {
	t.Helper()
	runCheck := usecase.NewRunCheckUseCase(service.NewSampler(), service.NewAggregator(),
		service.NewThresholdEvaluator(), usecase.RunCheckConfig{MaxTicks: 30}, logger.NewNop())

	run, err := service.NewOrchestrator().Run(context.Background(), valueobject.ModeCompliance, []service.NamedCheck{{
		Name:          def.Name,
		ThresholdName: def.Threshold.Name(),
		Run: func(ctx context.Context) (*entity.CheckResult, error) {
			return runCheck.Execute(ctx, usecase.RunCheckCommand{Definition: def})
		},
	}})
	require.NoError(t, err)
	require.Len(t, run.Results(), 1)
	return run
}

func TestPolicyCoverageForbiddenIsErrored(t *testing.T) {
	var calls int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	probe := NewPolicyCoverageProbe(c)

	err := probe.Preflight(context.Background())
	assert.True(t, errors.Is(err, service.ErrAccessDenied), "got %v", err)
	assert.True(t, errors.Is(err, port.ErrComplianceForbidden), "got %v", err)

	run := runPolicyCheck(t, policyDefinition("policy-coverage", probe,
		valueobject.MustThreshold("PolicyCoverage", 80, valueobject.GreaterThanIsGood, valueobject.Percent)))

	res := run.Results()[0]
	assert.Equal(t, valueobject.StatusErrored, res.Status())
	assert.Contains(t, res.Err(), "access denied")
	assert.Equal(t, 0, res.Summary().Count())
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "preflight per call, no sampling after denial")
}

func TestPolicyMatchRateAuditForbiddenStopsSampling(t *testing.T) {
	var searches int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/dlp/policies" {
			writeJSON(w, map[string]interface{}{"value": []map[string]interface{}{
				{"name": "PCI", "mode": "Enable", "enabled": true},
			}})
			return
		}
		atomic.AddInt32(&searches, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	probe := NewPolicyMatchRateProbe(c, time.Hour, "DLPRuleMatch", 100)

	require.NoError(t, probe.Preflight(context.Background()))

	run := runPolicyCheck(t, policyDefinition("policy-match-rate", probe,
		valueobject.MustThreshold("PolicyMatchRate", 5, valueobject.LessThanIsGood, valueobject.Percent)))

	res := run.Results()[0]
	assert.Equal(t, valueobject.StatusErrored, res.Status())
	assert.Equal(t, int32(1), atomic.LoadInt32(&searches), "second tick must not run")
}

func TestPolicyCoverageTransientErrorStaysProbeFailure(t *testing.T) {
	_, err := NewPolicyCoverageProbe(fakeAPI{err: errors.New("connection reset")}).Measure(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, service.ErrAccessDenied))
}

type fakeAPI struct {
	port.ComplianceAPI
	err error
}

func (f fakeAPI) ListPolicies(context.Context) ([]entity.DLPPolicy, error) {
	return nil, f.err
}
