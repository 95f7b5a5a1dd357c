package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dreschagin/dlp-kpi-monitor/internal/application/usecase"
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/entity"
	"github.com/dreschagin/dlp-kpi-monitor/pkg/logger"
)

// SuiteExecutor runs one suite. Implemented by usecase.RunSuiteUseCase.
type SuiteExecutor interface {
	Execute(ctx context.Context, cmd usecase.RunSuiteCommand) (*entity.SuiteRun, error)
}

// Pruner removes history older than the retention window.
type Pruner interface {
	Execute(ctx context.Context) (int64, error)
}

type Config struct {
	Interval   time.Duration
	RunTimeout time.Duration
	// RunOnStart triggers a suite right after Start instead of waiting one interval.
	RunOnStart bool
}

// Runner executes the configured suite on a fixed interval and keeps the
// outcome of the last cycle for health and API endpoints.
type Runner struct {
	executor SuiteExecutor
	pruner   Pruner
	command  usecase.RunSuiteCommand
	config   Config
	log      *logger.Logger
	now      func() time.Time

	runMu sync.Mutex

	mu        sync.RWMutex
	startedAt time.Time
	lastRunAt time.Time
	lastError string
	lastRun   *entity.SuiteRun
	running   bool
}

func NewRunner(executor SuiteExecutor, command usecase.RunSuiteCommand, config Config, log *logger.Logger) *Runner {
	if config.Interval <= 0 {
		config.Interval = 15 * time.Minute
	}
	if config.RunTimeout <= 0 {
		config.RunTimeout = 10 * time.Minute
	}
	return &Runner{
		executor:  executor,
		command:   command,
		config:    config,
		log:       log,
		now:       time.Now,
		startedAt: time.Now(),
	}
}

// WithPruner attaches history retention to every cycle.
func (r *Runner) WithPruner(p Pruner) *Runner {
	r.pruner = p
	return r
}

func (r *Runner) Start(ctx context.Context) {
	r.log.Info("Scheduler started",
		"interval", r.config.Interval.String(),
		"mode", r.command.Mode,
	)

	if r.config.RunOnStart {
		_, _ = r.RunOnce(ctx)
	}

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// RunOnce stores the error state itself.
			_, _ = r.RunOnce(ctx)
		case <-ctx.Done():
			r.log.Info("Scheduler stopped")
			return
		}
	}
}

// RunOnce executes one suite. Concurrent calls are serialized.
func (r *Runner) RunOnce(ctx context.Context) (*entity.SuiteRun, error) {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	r.setRunning(true)
	defer r.setRunning(false)

	runCtx, cancel := context.WithTimeout(ctx, r.config.RunTimeout)
	defer cancel()

	run, err := r.executor.Execute(runCtx, r.command)
	runAt := r.now()

	if err != nil {
		wrappedErr := fmt.Errorf("scheduled suite failed: %w", err)
		r.updateFailure(runAt, wrappedErr)
		r.log.Error("Scheduled suite failed", wrappedErr, "mode", r.command.Mode)
		return nil, wrappedErr
	}

	r.updateSuccess(runAt, run)

	if r.pruner != nil {
		if removed, pruneErr := r.pruner.Execute(ctx); pruneErr != nil {
			r.log.Warn("History pruning failed", "error", pruneErr.Error())
		} else if removed > 0 {
			r.log.Info("History pruned", "removed", removed)
		}
	}

	return run, nil
}

// Wait blocks until no suite is in flight, so adapters can be closed safely.
func (r *Runner) Wait(ctx context.Context) error {
	idle := make(chan struct{})
	go func() {
		r.runMu.Lock()
		r.runMu.Unlock()
		close(idle)
	}()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("suite still running: %w", ctx.Err())
	}
}

func (r *Runner) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := Snapshot{
		StartedAt: r.startedAt,
		Interval:  r.config.Interval,
		Mode:      r.command.Mode,
		LastRunAt: r.lastRunAt,
		LastError: r.lastError,
		Running:   r.running,
	}

	if r.lastRun != nil {
		snapshot.LastRunID = r.lastRun.ID()
		snapshot.LastOverall = r.lastRun.OverallStatus().String()
		snapshot.LastMetPercent = r.lastRun.MetPercent()
	}

	return snapshot
}

// Ready reports whether the last cycle succeeded recently enough.
func (s Snapshot) Ready(now time.Time) error {
	switch {
	case s.LastRunAt.IsZero():
		return fmt.Errorf("no completed cycle yet")
	case now.Sub(s.LastRunAt) > s.Interval*3:
		return fmt.Errorf("stale cycle, last run at %s", s.LastRunAt.UTC().Format(time.RFC3339))
	case s.LastError != "":
		return fmt.Errorf("last cycle failed")
	default:
		return nil
	}
}

func (r *Runner) setRunning(v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running = v
}

func (r *Runner) updateFailure(runAt time.Time, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastRunAt = runAt
	r.lastError = err.Error()
}

func (r *Runner) updateSuccess(runAt time.Time, run *entity.SuiteRun) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastRunAt = runAt
	r.lastError = ""
	r.lastRun = run
}
