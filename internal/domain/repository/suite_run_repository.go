package repository

import (
	"context"
	"errors"
	"time"

	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/entity"
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/valueobject"
)

// ErrNotFound прогон не найден
var ErrNotFound = errors.New("suite run not found")

// SuiteRunRepository определяет интерфейс хранилища прогонов (Port)
// Реализация будет в Infrastructure слое
type SuiteRunRepository interface {
	// Save сохраняет завершенный прогон вместе с результатами проверок одной транзакцией
	Save(ctx context.Context, run *entity.SuiteRun) error

	// FindByID находит прогон по идентификатору
	FindByID(ctx context.Context, id string) (*entity.SuiteRun, error)

	// FindLatest возвращает последний завершенный прогон
	FindLatest(ctx context.Context) (*entity.SuiteRun, error)

	// FindByTimeRange находит прогоны, начатые в указанном окне, новые первыми
	FindByTimeRange(ctx context.Context, timeRange valueobject.TimeRange, limit int) ([]*entity.SuiteRun, error)

	// DeleteOlderThan удаляет прогоны, завершенные раньше before
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}
