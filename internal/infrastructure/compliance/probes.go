package compliance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dreschagin/dlp-kpi-monitor/internal/application/port"
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/service"
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/valueobject"
)

// preflight delegates to the API when it can verify access up front.
func preflight(ctx context.Context, api port.ComplianceAPI) error {
	if pf, ok := api.(port.Preflighter); ok {
		return denied(pf.Preflight(ctx))
	}
	return nil
}

// denied marks a permission error as fatal for the whole check.
func denied(err error) error {
	if errors.Is(err, port.ErrComplianceForbidden) {
		return fmt.Errorf("%w: %w", service.ErrAccessDenied, err)
	}
	return err
}

// PolicyCoverageProbe returns the percentage of DLP policies that are active.
type PolicyCoverageProbe struct {
	api port.ComplianceAPI
}

func NewPolicyCoverageProbe(api port.ComplianceAPI) *PolicyCoverageProbe {
	return &PolicyCoverageProbe{api: api}
}

func (p *PolicyCoverageProbe) Name() string {
	return "policy-coverage"
}

func (p *PolicyCoverageProbe) Preflight(ctx context.Context) error {
	return preflight(ctx, p.api)
}

func (p *PolicyCoverageProbe) Measure(ctx context.Context) (float64, error) {
	policies, err := p.api.ListPolicies(ctx)
	if err != nil {
		return 0, denied(err)
	}
	if len(policies) == 0 {
		return 0, fmt.Errorf("no DLP policies configured")
	}

	active := 0
	for _, policy := range policies {
		if policy.IsActive() {
			active++
		}
	}
	return float64(active) / float64(len(policies)) * 100, nil
}

// PolicyMatchRateProbe returns DLP rule matches as a percentage of audited
// operations over the trailing window.
type PolicyMatchRateProbe struct {
	api            port.ComplianceAPI
	window         time.Duration
	matchOperation string
	resultSize     int
	now            func() time.Time
}

func NewPolicyMatchRateProbe(api port.ComplianceAPI, window time.Duration, matchOperation string, resultSize int) *PolicyMatchRateProbe {
	return &PolicyMatchRateProbe{
		api:            api,
		window:         window,
		matchOperation: matchOperation,
		resultSize:     resultSize,
		now:            time.Now,
	}
}

func (p *PolicyMatchRateProbe) Name() string {
	return "policy-match-rate"
}

// Preflight verifies policy access only; audit search permission surfaces on the first tick.
func (p *PolicyMatchRateProbe) Preflight(ctx context.Context) error {
	return preflight(ctx, p.api)
}

func (p *PolicyMatchRateProbe) Measure(ctx context.Context) (float64, error) {
	window, err := valueobject.LastWindow(p.now(), p.window)
	if err != nil {
		return 0, err
	}

	total, err := p.api.SearchAuditLog(ctx, port.AuditQuery{Window: window, ResultSize: p.resultSize})
	if err != nil {
		return 0, denied(err)
	}
	if len(total) == 0 {
		return 0, fmt.Errorf("no audited operations in the last %s", p.window)
	}

	matches := 0
	for _, r := range total {
		if r.Operation == p.matchOperation {
			matches++
		}
	}
	return float64(matches) / float64(len(total)) * 100, nil
}
