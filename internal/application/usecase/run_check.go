package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/dreschagin/dlp-kpi-monitor/internal/application/port"
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/entity"
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/service"
	"github.com/dreschagin/dlp-kpi-monitor/pkg/logger"
)

// RunCheckCommand параметры одной проверки. Нулевые Ticks/Interval берутся из описания.
type RunCheckCommand struct {
	Definition CheckDefinition
	Ticks      int
	Interval   time.Duration
}

// RunCheckConfig ограничения выборки
type RunCheckConfig struct {
	MaxTicks int
}

// RunCheckUseCase выполняет цепочку Sampler -> Aggregator -> ThresholdEvaluator
type RunCheckUseCase struct {
	sampler    *service.Sampler
	aggregator *service.Aggregator
	evaluator  *service.ThresholdEvaluator
	config     RunCheckConfig
	now        func() time.Time
	logger     *logger.Logger
}

// NewRunCheckUseCase создает новый use case
func NewRunCheckUseCase(
	sampler *service.Sampler,
	aggregator *service.Aggregator,
	evaluator *service.ThresholdEvaluator,
	config RunCheckConfig,
	logger *logger.Logger,
) *RunCheckUseCase {
	if config.MaxTicks <= 0 {
		config.MaxTicks = 30
	}
	return &RunCheckUseCase{
		sampler:    sampler,
		aggregator: aggregator,
		evaluator:  evaluator,
		config:     config,
		now:        time.Now,
		logger:     logger,
	}
}

// Execute выполняет проверку.
// Ошибка означает CheckFailure: оркестратор превратит ее в результат Errored.
func (uc *RunCheckUseCase) Execute(ctx context.Context, cmd RunCheckCommand) (*entity.CheckResult, error) {
	def := cmd.Definition
	if def.Probe == nil {
		return nil, fmt.Errorf("check %s has no probe", def.Name)
	}

	started := uc.now()

	// 1. Проверяем доступность источника до начала выборки
	if pf, ok := def.Probe.(port.Preflighter); ok {
		if err := pf.Preflight(ctx); err != nil {
			return nil, fmt.Errorf("preflight %s: %w", def.Probe.Name(), err)
		}
	}

	// 2. Число тиков ограничено сверху
	ticks := def.Ticks
	if cmd.Ticks > 0 {
		ticks = cmd.Ticks
	}
	if ticks > uc.config.MaxTicks {
		uc.logger.Debug("Tick count capped", "check", def.Name, "requested", ticks, "max", uc.config.MaxTicks)
		ticks = uc.config.MaxTicks
	}
	interval := def.Interval
	if cmd.Interval > 0 {
		interval = cmd.Interval
	}

	// 3. Выборка
	observations, err := uc.sampler.Sample(ctx, def.Probe.Measure, ticks, interval)
	if err != nil {
		return nil, fmt.Errorf("sample %s: %w", def.Name, err)
	}
	for _, o := range observations {
		if !o.IsSuccess() {
			uc.logger.Warn("Probe failed",
				"check", def.Name,
				"tick", o.Tick(),
				"threshold", def.Threshold.Name(),
				"probe", def.Probe.Name(),
				"error", o.Err(),
			)
		}
	}
	if len(observations) == 0 {
		return nil, fmt.Errorf("no observations collected for %s", def.Name)
	}

	// 4. Агрегация и оценка
	summary, err := uc.aggregator.Aggregate(observations)
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", def.Name, err)
	}

	status, observed := uc.evaluator.EvaluateSummary(summary, def.Threshold, def.Statistic)

	var errMessage string
	if !summary.HasData() {
		errMessage = service.ErrInsufficientData.Error()
		uc.logger.Warn("No successful observations",
			"check", def.Name,
			"threshold", def.Threshold.Name(),
			"failures", summary.FailureCount(),
			"error", errMessage,
		)
	}

	result := entity.NewCheckResult(entity.CheckResultParams{
		CheckName:  def.Name,
		Threshold:  def.Threshold,
		Dimension:  def.Dimension,
		Summary:    summary,
		Observed:   observed,
		Status:     status,
		Err:        errMessage,
		StartedAt:  started,
		FinishedAt: uc.now(),
	})

	uc.logger.Debug("Check evaluated",
		"check", def.Name,
		"status", status.String(),
		"samples", summary.Count(),
		"failures", summary.FailureCount(),
	)

	return result, nil
}
