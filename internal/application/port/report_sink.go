package port

import (
	"context"

	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/entity"
)

// ReportSink получает завершенный прогон (CSV, консоль, хранилище, брокер)
type ReportSink interface {
	// Name имя приемника для логов
	Name() string

	// Write сериализует прогон. Ошибка приемника не меняет результат прогона.
	Write(ctx context.Context, run *entity.SuiteRun) error
}

// ReportEncoder сериализует прогон в артефакт отчета (CSV, JSON)
type ReportEncoder interface {
	ContentType() string
	Extension() string
	Encode(run *entity.SuiteRun) ([]byte, error)
}
