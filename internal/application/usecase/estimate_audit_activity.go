package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dreschagin/dlp-kpi-monitor/internal/application/port"
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/service"
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/valueobject"
	"github.com/dreschagin/dlp-kpi-monitor/pkg/logger"
)

// EstimateAuditActivityConfig параметры поиска в журнале аудита
type EstimateAuditActivityConfig struct {
	UserCount      int
	Window         time.Duration
	MatchOperation string
	ResultSize     int
}

// EstimateAuditActivityCommand UserCount переопределяет значение из конфигурации
type EstimateAuditActivityCommand struct {
	UserCount int
}

// AuditActivityReport измеренная или оцененная активность аудита.
// Measured=false означает, что значения получены эвристикой.
type AuditActivityReport struct {
	Measured       bool                   `json:"measured"`
	Window         string                 `json:"window"`
	Policies       int                    `json:"policies"`
	ActivePolicies int                    `json:"active_policies"`
	DailyMatches   float64                `json:"daily_matches"`
	Estimate       *service.AuditEstimate `json:"estimate,omitempty"`
	Reason         string                 `json:"reason,omitempty"`
}

// EstimateAuditActivityUseCase сначала пробует журнал аудита, затем оценку по правилам
type EstimateAuditActivityUseCase struct {
	compliance port.ComplianceAPI
	estimator  *service.AuditActivityEstimator
	config     EstimateAuditActivityConfig
	now        func() time.Time
	logger     *logger.Logger
}

// NewEstimateAuditActivityUseCase создает новый use case
func NewEstimateAuditActivityUseCase(
	compliance port.ComplianceAPI,
	estimator *service.AuditActivityEstimator,
	config EstimateAuditActivityConfig,
	logger *logger.Logger,
) *EstimateAuditActivityUseCase {
	if config.Window <= 0 {
		config.Window = 24 * time.Hour
	}
	if config.MatchOperation == "" {
		config.MatchOperation = "DLPRuleMatch"
	}
	return &EstimateAuditActivityUseCase{
		compliance: compliance,
		estimator:  estimator,
		config:     config,
		now:        time.Now,
		logger:     logger,
	}
}

// Execute возвращает измерение либо явно помеченную оценку
func (uc *EstimateAuditActivityUseCase) Execute(ctx context.Context, cmd EstimateAuditActivityCommand) (*AuditActivityReport, error) {
	if uc.compliance == nil {
		return nil, fmt.Errorf("compliance API is not configured")
	}

	policies, err := uc.compliance.ListPolicies(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list DLP policies: %w", err)
	}
	rules, err := uc.compliance.ListRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list DLP rules: %w", err)
	}

	report := &AuditActivityReport{
		Window:   uc.config.Window.String(),
		Policies: len(policies),
	}
	for _, p := range policies {
		if p.IsActive() {
			report.ActivePolicies++
		}
	}

	// 1. Измерение по журналу аудита
	window, err := valueobject.LastWindow(uc.now(), uc.config.Window)
	if err != nil {
		return nil, fmt.Errorf("invalid audit window: %w", err)
	}
	records, err := uc.compliance.SearchAuditLog(ctx, port.AuditQuery{
		Operations: []string{uc.config.MatchOperation},
		Window:     window,
		ResultSize: uc.config.ResultSize,
	})
	if err == nil {
		report.Measured = true
		report.DailyMatches = float64(len(records)) * (24 * time.Hour).Hours() / uc.config.Window.Hours()
		return report, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	if errors.Is(err, port.ErrComplianceForbidden) {
		report.Reason = "audit log access denied"
	} else {
		report.Reason = "audit log search failed: " + err.Error()
	}
	uc.logger.Warn("Audit log unavailable, falling back to estimate", "error", err.Error())

	// 2. Оценка по конфигурации правил
	users := cmd.UserCount
	if users <= 0 {
		users = uc.config.UserCount
	}
	estimate, err := uc.estimator.Estimate(service.AuditEstimateInput{
		Policies:  policies,
		Rules:     rules,
		UserCount: users,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to estimate audit activity: %w", err)
	}

	report.DailyMatches = estimate.DailyMatches
	report.Estimate = &estimate
	return report, nil
}
