package usecase

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/dreschagin/dlp-kpi-monitor/internal/application/port"
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/entity"
	"github.com/dreschagin/dlp-kpi-monitor/pkg/logger"
)

var hostRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,64}$`)

const reportTimestampLayout = "20060102T150405Z"

type ArchiveReportConfig struct {
	Host      string
	KeyPrefix string
	TTLDays   int
}

// ArchiveReportUseCase выгружает артефакты прогона в хранилище и индексирует их.
// Реализует port.ReportSink.
type ArchiveReportUseCase struct {
	storage  port.ReportStorage
	index    port.ReportIndexRepository
	encoders []port.ReportEncoder
	config   ArchiveReportConfig
	logger   *logger.Logger
}

func NewArchiveReportUseCase(
	storage port.ReportStorage,
	index port.ReportIndexRepository,
	encoders []port.ReportEncoder,
	config ArchiveReportConfig,
	log *logger.Logger,
) *ArchiveReportUseCase {
	return &ArchiveReportUseCase{
		storage:  storage,
		index:    index,
		encoders: encoders,
		config:   config,
		logger:   log,
	}
}

func (uc *ArchiveReportUseCase) Name() string {
	return "archive"
}

func (uc *ArchiveReportUseCase) Write(ctx context.Context, run *entity.SuiteRun) error {
	_, err := uc.Execute(ctx, run)
	return err
}

// Execute кодирует прогон каждым энкодером, выгружает артефакты и записывает индекс
func (uc *ArchiveReportUseCase) Execute(ctx context.Context, run *entity.SuiteRun) ([]port.ReportMetadata, error) {
	if uc.storage == nil {
		return nil, fmt.Errorf("report storage is not configured")
	}
	if run == nil || !run.IsFinalized() {
		return nil, fmt.Errorf("suite run is not finalized")
	}

	host := strings.TrimSpace(uc.config.Host)
	if !hostRegex.MatchString(host) {
		return nil, fmt.Errorf("invalid host")
	}
	if len(uc.encoders) == 0 {
		return nil, fmt.Errorf("no report encoders configured")
	}

	createdAt := run.FinishedAt().UTC()
	records := make([]port.ReportMetadata, 0, len(uc.encoders))

	for _, enc := range uc.encoders {
		body, err := enc.Encode(run)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s report: %w", enc.Extension(), err)
		}

		key := uc.buildKey(host, createdAt, run.ID(), enc.Extension())
		url, err := uc.storage.PutObject(ctx, key, enc.ContentType(), body)
		if err != nil {
			uc.logger.Error("Failed to upload report", err,
				"run_id", run.ID(),
				"artifact_type", enc.Extension(),
			)
			return nil, fmt.Errorf("failed to upload %s: %w", enc.Extension(), err)
		}

		record := port.ReportMetadata{
			Host:          host,
			RunID:         run.ID(),
			ArtifactType:  enc.Extension(),
			S3Key:         key,
			URL:           url,
			ContentType:   enc.ContentType(),
			SizeBytes:     int64(len(body)),
			OverallStatus: run.OverallStatus().String(),
			MetPercent:    run.MetPercent(),
			CreatedAt:     createdAt,
		}
		if uc.config.TTLDays > 0 {
			record.ExpiresAt = createdAt.Add(time.Duration(uc.config.TTLDays) * 24 * time.Hour)
		}
		records = append(records, record)
	}

	if uc.index != nil {
		if err := uc.index.PutBatch(ctx, records); err != nil {
			// артефакты уже выгружены; список по-прежнему доступен через S3
			uc.logger.Warn("Failed to index archived reports", "run_id", run.ID(), "error", err.Error())
		}
	}

	uc.logger.Info("Reports archived", "run_id", run.ID(), "artifacts", len(records))
	return records, nil
}

func (uc *ArchiveReportUseCase) buildKey(host string, createdAt time.Time, runID, ext string) string {
	prefix := strings.Trim(uc.config.KeyPrefix, "/")
	if prefix == "" {
		prefix = "kpi-reports"
	}

	timestamp := createdAt.Format(reportTimestampLayout)
	datePrefix := createdAt.Format("2006/01/02")

	return fmt.Sprintf("%s/%s/%s/%s_%s.%s", prefix, host, datePrefix, timestamp, runID, ext)
}
