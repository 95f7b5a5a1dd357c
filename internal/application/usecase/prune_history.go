package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/repository"
	"github.com/dreschagin/dlp-kpi-monitor/pkg/logger"
)

// PruneHistoryUseCase удаляет прогоны старше срока хранения
type PruneHistoryUseCase struct {
	repository repository.SuiteRunRepository
	retention  time.Duration
	now        func() time.Time
	logger     *logger.Logger
}

func NewPruneHistoryUseCase(repository repository.SuiteRunRepository, retention time.Duration, logger *logger.Logger) *PruneHistoryUseCase {
	return &PruneHistoryUseCase{
		repository: repository,
		retention:  retention,
		now:        time.Now,
		logger:     logger,
	}
}

func (uc *PruneHistoryUseCase) Execute(ctx context.Context) (int64, error) {
	if uc.retention <= 0 {
		return 0, nil
	}

	before := uc.now().Add(-uc.retention)
	deleted, err := uc.repository.DeleteOlderThan(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune suite runs: %w", err)
	}
	if deleted > 0 {
		uc.logger.Info("Pruned old suite runs", "deleted", deleted, "before", before.Format(time.RFC3339))
	}
	return deleted, nil
}
