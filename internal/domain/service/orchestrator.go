package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/entity"
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/valueobject"
	"golang.org/x/sync/errgroup"
)

// CheckFunc выполняет одну проверку целиком
type CheckFunc func(ctx context.Context) (*entity.CheckResult, error)

// NamedCheck элемент упорядоченного списка проверок
type NamedCheck struct {
	Name          string
	ThresholdName string
	Run           CheckFunc
}

// ResultHook вызывается после завершения каждой проверки
type ResultHook func(index int, result *entity.CheckResult)

// Orchestrator выполняет набор проверок и формирует SuiteRun (Domain Service)
// Сбой одной проверки никогда не прерывает прогон
type Orchestrator struct {
	parallelism int
	now         func() time.Time
	hooks       []ResultHook
}

// OrchestratorOption настраивает Orchestrator
type OrchestratorOption func(*Orchestrator)

// WithParallelism включает параллельное выполнение независимых проверок (по умолчанию 1)
func WithParallelism(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.parallelism = n
		}
	}
}

// WithResultHook подписывается на результаты по мере их готовности
func WithResultHook(h ResultHook) OrchestratorOption {
	return func(o *Orchestrator) {
		if h != nil {
			o.hooks = append(o.hooks, h)
		}
	}
}

// NewOrchestrator создает новый Orchestrator
func NewOrchestrator(opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{parallelism: 1, now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run выполняет проверки и возвращает завершенный SuiteRun.
// Ошибка возвращается только для фатальных ошибок конфигурации.
func (o *Orchestrator) Run(ctx context.Context, mode valueobject.MonitoringMode, checks []NamedCheck) (*entity.SuiteRun, error) {
	if len(checks) == 0 {
		return nil, NewOrchestrationError(ErrNoChecks, "mode %s", mode)
	}
	for i, c := range checks {
		if c.Name == "" {
			return nil, NewOrchestrationError(ErrMissingParameter, "check #%d has no name", i+1)
		}
		if c.Run == nil {
			return nil, NewOrchestrationError(ErrMissingParameter, "check %s has no implementation", c.Name)
		}
	}

	run := entity.StartSuiteRun(mode, o.now())
	results := make([]*entity.CheckResult, len(checks))

	if o.parallelism <= 1 {
		for i, c := range checks {
			results[i] = o.invoke(ctx, c)
			o.notify(i, results[i], nil)
		}
	} else {
		var mu sync.Mutex
		g := new(errgroup.Group)
		g.SetLimit(o.parallelism)
		for i, c := range checks {
			g.Go(func() error {
				r := o.invoke(ctx, c)
				results[i] = r
				o.notify(i, r, &mu)
				return nil
			})
		}
		_ = g.Wait()
	}

	for _, r := range results {
		if err := run.Append(r); err != nil {
			return nil, fmt.Errorf("append check result: %w", err)
		}
	}
	run.Finalize(o.now())

	return run, nil
}

func (o *Orchestrator) invoke(ctx context.Context, c NamedCheck) (result *entity.CheckResult) {
	started := o.now()

	if err := ctx.Err(); err != nil {
		return entity.NewErroredCheckResult(c.Name, c.ThresholdName,
			fmt.Errorf("%w: suite cancelled before check started: %v", ErrCheckFailure, err), started, o.now())
	}

	defer func() {
		if r := recover(); r != nil {
			result = entity.NewErroredCheckResult(c.Name, c.ThresholdName,
				fmt.Errorf("%w: panic: %v", ErrCheckFailure, r), started, o.now())
		}
	}()

	res, err := c.Run(ctx)
	if err != nil {
		return entity.NewErroredCheckResult(c.Name, c.ThresholdName, fmt.Errorf("%w: %v", ErrCheckFailure, err), started, o.now())
	}
	if res == nil {
		return entity.NewErroredCheckResult(c.Name, c.ThresholdName,
			fmt.Errorf("%w: check returned no result", ErrCheckFailure), started, o.now())
	}

	return res
}

func (o *Orchestrator) notify(index int, r *entity.CheckResult, mu *sync.Mutex) {
	if len(o.hooks) == 0 {
		return
	}
	if mu != nil {
		mu.Lock()
		defer mu.Unlock()
	}
	for _, h := range o.hooks {
		h(index, r)
	}
}
