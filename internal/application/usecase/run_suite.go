package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/dreschagin/dlp-kpi-monitor/internal/application/dto"
	"github.com/dreschagin/dlp-kpi-monitor/internal/application/port"
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/entity"
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/repository"
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/service"
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/valueobject"
	"github.com/dreschagin/dlp-kpi-monitor/pkg/logger"
)

// RunSuiteCommand параметры прогона. Checks имеет приоритет над Mode.
type RunSuiteCommand struct {
	Mode        string
	Checks      []string
	Ticks       int
	Interval    time.Duration
	Parallelism int
}

// RunSuiteConfig настройки прогона
type RunSuiteConfig struct {
	Host               string
	DefaultParallelism int
	// PublishTimeout ограничивает запись в приемники после завершения прогона
	PublishTimeout time.Duration
}

// RunSuiteDeps необязательные приемники результатов; nil означает "не настроено"
type RunSuiteDeps struct {
	Repository repository.SuiteRunRepository
	Notifier   port.NotificationService
	Events     port.EventPublisher
	KPI        []port.KPIPublisher
	Cache      port.Cache
	Sinks      []port.ReportSink
}

// RunSuiteUseCase выполняет набор проверок и рассылает результаты
type RunSuiteUseCase struct {
	catalog  *CheckCatalog
	runCheck *RunCheckUseCase
	deps     RunSuiteDeps
	config   RunSuiteConfig
	logger   *logger.Logger
}

// NewRunSuiteUseCase создает новый use case
func NewRunSuiteUseCase(
	catalog *CheckCatalog,
	runCheck *RunCheckUseCase,
	deps RunSuiteDeps,
	config RunSuiteConfig,
	logger *logger.Logger,
) *RunSuiteUseCase {
	if config.DefaultParallelism <= 0 {
		config.DefaultParallelism = 1
	}
	if config.PublishTimeout <= 0 {
		config.PublishTimeout = 30 * time.Second
	}
	return &RunSuiteUseCase{
		catalog:  catalog,
		runCheck: runCheck,
		deps:     deps,
		config:   config,
		logger:   logger,
	}
}

// Execute выполняет прогон.
// Ошибка возвращается только при OrchestrationFailure; сбои приемников лишь логируются.
func (uc *RunSuiteUseCase) Execute(ctx context.Context, cmd RunSuiteCommand) (*entity.SuiteRun, error) {
	// 1. Разрешаем режим или список проверок
	mode, defs, err := uc.catalog.Resolve(cmd.Mode, cmd.Checks)
	if err != nil {
		uc.logger.Error("Suite configuration rejected", err, "mode", cmd.Mode, "checks", cmd.Checks)
		return nil, err
	}

	checks := make([]service.NamedCheck, len(defs))
	for i, def := range defs {
		checks[i] = service.NamedCheck{
			Name:          def.Name,
			ThresholdName: def.Threshold.Name(),
			Run: func(ctx context.Context) (*entity.CheckResult, error) {
				return uc.runCheck.Execute(ctx, RunCheckCommand{
					Definition: def,
					Ticks:      cmd.Ticks,
					Interval:   cmd.Interval,
				})
			},
		}
	}

	parallelism := cmd.Parallelism
	if parallelism <= 0 {
		parallelism = uc.config.DefaultParallelism
	}

	uc.logger.Info("Suite started", "mode", mode.String(), "checks", len(checks), "parallelism", parallelism)

	// 2. Выполняем проверки; результаты рассылаются по мере готовности
	publishCtx := context.WithoutCancel(ctx)
	orchestrator := service.NewOrchestrator(
		service.WithParallelism(parallelism),
		service.WithResultHook(func(_ int, r *entity.CheckResult) {
			uc.onCheckCompleted(publishCtx, r)
		}),
	)

	run, err := orchestrator.Run(ctx, mode, checks)
	if err != nil {
		uc.logger.Error("Suite aborted", err, "mode", mode.String())
		return nil, err
	}

	uc.logger.Info("Suite finished",
		"run_id", run.ID(),
		"mode", mode.String(),
		"overall", run.OverallStatus().String(),
		"met_percent", run.MetPercent(),
		"duration", run.Duration().String(),
	)

	// 3. Приемники получают результат даже при отмене прогона
	pctx, cancel := context.WithTimeout(publishCtx, uc.config.PublishTimeout)
	defer cancel()
	uc.publish(pctx, run)

	return run, nil
}

// ToDTO конвертирует прогон с указанием хоста
func (uc *RunSuiteUseCase) ToDTO(run *entity.SuiteRun) *dto.SuiteRunDTO {
	out := dto.FromSuiteRun(run)
	out.Host = uc.config.Host
	return out
}

func (uc *RunSuiteUseCase) onCheckCompleted(ctx context.Context, r *entity.CheckResult) {
	if r.Status() == valueobject.StatusErrored {
		uc.logger.Error("Check failed", errors.New(r.Err()),
			"check", r.CheckName(),
			"threshold", r.ThresholdName(),
		)
	} else {
		uc.logger.Info("Check completed",
			"check", r.CheckName(),
			"threshold", r.ThresholdName(),
			"status", r.Status().String(),
		)
	}

	checkDTO := dto.FromCheckResult(r)

	if uc.deps.Notifier != nil {
		uc.deps.Notifier.BroadcastCheckResult(checkDTO)
	}
	if uc.deps.Events != nil {
		if err := uc.deps.Events.PublishEvent(ctx, port.SubjectCheckCompleted, checkDTO); err != nil {
			uc.logger.Warn("Failed to publish check event", "check", r.CheckName(), "error", err.Error())
		}
	}
	for _, kpi := range uc.deps.KPI {
		if err := kpi.PublishResult(ctx, r); err != nil {
			uc.logger.Warn("Failed to publish check datapoints", "check", r.CheckName(), "error", err.Error())
		}
	}
}

func (uc *RunSuiteUseCase) publish(ctx context.Context, run *entity.SuiteRun) {
	runDTO := uc.ToDTO(run)

	if uc.deps.Repository != nil {
		if err := uc.deps.Repository.Save(ctx, run); err != nil {
			uc.logger.Error("Failed to save suite run", err, "run_id", run.ID())
		} else if uc.deps.Cache != nil {
			if err := uc.deps.Cache.DeletePattern(ctx, "kpi:runs:*"); err != nil {
				uc.logger.Warn("Failed to invalidate run cache", "error", err.Error())
			}
		}
	}

	for _, sink := range uc.deps.Sinks {
		if err := sink.Write(ctx, run); err != nil {
			uc.logger.Error("Report sink failed", err, "sink", sink.Name(), "run_id", run.ID())
		}
	}

	for _, kpi := range uc.deps.KPI {
		if err := kpi.PublishRun(ctx, run); err != nil {
			uc.logger.Error("Failed to publish KPI datapoints", err, "run_id", run.ID())
		}
	}

	if uc.deps.Notifier != nil {
		uc.deps.Notifier.BroadcastSuiteRun(runDTO)
		uc.logger.Debug("Suite broadcasted to clients", "client_count", uc.deps.Notifier.ClientCount())
	}

	if uc.deps.Events != nil {
		if err := uc.deps.Events.PublishEvent(ctx, port.SubjectSuiteCompleted, runDTO); err != nil {
			uc.logger.Warn("Failed to publish suite event", "run_id", run.ID(), "error", err.Error())
		}
		uc.sendAlerts(ctx, run)
	}
}

// sendAlerts публикует alert для каждого невыполненного KPI
func (uc *RunSuiteUseCase) sendAlerts(ctx context.Context, run *entity.SuiteRun) {
	for _, r := range run.Results() {
		alert := dto.NewAlertDTO(r)
		if alert == nil {
			continue
		}
		if err := uc.deps.Events.PublishEvent(ctx, port.SubjectKPIAlert, alert); err != nil {
			uc.logger.Warn("Failed to publish alert", "check", r.CheckName(), "error", err.Error())
		}
	}
}
