package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dreschagin/dlp-kpi-monitor/internal/application/dto"
	"github.com/dreschagin/dlp-kpi-monitor/internal/application/port"
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/entity"
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/repository"
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/service"
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/valueobject"
	"github.com/dreschagin/dlp-kpi-monitor/internal/infrastructure/cache/redis"
	"github.com/dreschagin/dlp-kpi-monitor/pkg/logger"
)

const latestRunCacheKey = "kpi:runs:latest"

// GetRunHistoryUseCase возвращает последние прогоны и историю с кешированием
type GetRunHistoryUseCase struct {
	repository repository.SuiteRunRepository
	aggregator *service.Aggregator
	cache      port.Cache
	host       string
	now        func() time.Time
	logger     *logger.Logger
}

// NewGetRunHistoryUseCase создает новый use case; cache может быть nil
func NewGetRunHistoryUseCase(
	repository repository.SuiteRunRepository,
	aggregator *service.Aggregator,
	cache port.Cache,
	host string,
	logger *logger.Logger,
) *GetRunHistoryUseCase {
	return &GetRunHistoryUseCase{
		repository: repository,
		aggregator: aggregator,
		cache:      cache,
		host:       host,
		now:        time.Now,
		logger:     logger,
	}
}

// Latest возвращает последний сохраненный прогон
func (uc *GetRunHistoryUseCase) Latest(ctx context.Context) (*dto.SuiteRunDTO, error) {
	if uc.cache != nil {
		var cached *dto.SuiteRunDTO
		if err := uc.cache.Get(ctx, latestRunCacheKey, &cached); err == nil && cached != nil {
			uc.logger.Debug("Cache hit for latest run", "run_id", cached.ID)
			return cached, nil
		}
	}

	run, err := uc.repository.FindLatest(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		uc.logger.Error("Failed to fetch latest run", err)
		return nil, fmt.Errorf("failed to fetch latest run: %w", err)
	}

	out := uc.toDTO(run)
	uc.store(latestRunCacheKey, out)
	return out, nil
}

// History возвращает прогоны за окно window (новые первыми) с агрегатами доли выполненных проверок
func (uc *GetRunHistoryUseCase) History(ctx context.Context, window time.Duration, limit int) (*dto.SuiteHistoryDTO, error) {
	timeRange, err := valueobject.LastWindow(uc.now(), window)
	if err != nil {
		return nil, fmt.Errorf("invalid window: %w", err)
	}

	// Ключ кеша округляется до минуты
	cacheKey := redis.GenerateCacheKey(fmt.Sprintf("history:%d", limit), window.String())
	if uc.cache != nil {
		var cached *dto.SuiteHistoryDTO
		if err := uc.cache.Get(ctx, cacheKey, &cached); err == nil && cached != nil {
			uc.logger.Debug("Cache hit for run history", "window", window.String())
			return cached, nil
		}
	}

	runs, err := uc.repository.FindByTimeRange(ctx, timeRange, limit)
	if err != nil {
		uc.logger.Error("Failed to fetch run history", err)
		return nil, fmt.Errorf("failed to fetch run history: %w", err)
	}

	history := uc.aggregate(runs)
	uc.store(cacheKey, history)
	return history, nil
}

func (uc *GetRunHistoryUseCase) aggregate(runs []*entity.SuiteRun) *dto.SuiteHistoryDTO {
	history := &dto.SuiteHistoryDTO{Runs: make([]*dto.SuiteRunDTO, 0, len(runs))}
	if len(runs) == 0 {
		return history
	}

	percents := make([]float64, 0, len(runs))
	for _, run := range runs {
		history.Runs = append(history.Runs, uc.toDTO(run))
		percents = append(percents, run.MetPercent())

		switch run.OverallStatus() {
		case valueobject.OverallCritical:
			history.CriticalCount++
		case valueobject.OverallWarning:
			history.WarningCount++
		}
	}

	history.AverageMetPercent, _ = uc.aggregator.CalculateAverage(percents)
	history.MinMetPercent, _ = uc.aggregator.CalculateMin(percents)
	history.MaxMetPercent, _ = uc.aggregator.CalculateMax(percents)
	return history
}

func (uc *GetRunHistoryUseCase) toDTO(run *entity.SuiteRun) *dto.SuiteRunDTO {
	out := dto.FromSuiteRun(run)
	out.Host = uc.host
	return out
}

// store сохраняет в кеш асинхронно, не блокируя ответ
func (uc *GetRunHistoryUseCase) store(key string, value interface{}) {
	if uc.cache == nil {
		return
	}
	go func() {
		if err := uc.cache.Set(context.Background(), key, value); err != nil {
			uc.logger.Warn("Failed to cache runs", "key", key, "error", err.Error())
		}
	}()
}
