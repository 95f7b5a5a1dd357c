package usecase

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/dreschagin/dlp-kpi-monitor/internal/application/port"
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/valueobject"
	"github.com/dreschagin/dlp-kpi-monitor/pkg/logger"
)

// ErrInvalidReportQuery некорректные параметры запроса списка отчетов
var ErrInvalidReportQuery = errors.New("invalid report query")

type ListReportsCommand struct {
	Host         string
	Limit        int
	Cursor       string
	ArtifactType string
	RunID        string
	Status       string
	From         time.Time
	To           time.Time
}

type ReportListItem struct {
	Type          string    `json:"type"`
	RunID         string    `json:"run_id,omitempty"`
	S3Key         string    `json:"s3_key"`
	URL           string    `json:"url"`
	OverallStatus string    `json:"overall_status,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	LastModified  time.Time `json:"last_modified,omitempty"`
}

type ListReportsResult struct {
	Items      []ReportListItem `json:"items"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

type ListReportsConfig struct {
	KeyPrefix           string
	DefaultLimit        int
	MaxLimit            int
	FallbackToS3OnError bool
}

type ListReportsUseCase struct {
	storage port.ReportStorage
	index   port.ReportIndexRepository
	config  ListReportsConfig
	logger  *logger.Logger
}

func NewListReportsUseCase(
	storage port.ReportStorage,
	index port.ReportIndexRepository,
	config ListReportsConfig,
	log *logger.Logger,
) *ListReportsUseCase {
	if config.DefaultLimit <= 0 {
		config.DefaultLimit = 24
	}
	if config.MaxLimit <= 0 {
		config.MaxLimit = 100
	}
	return &ListReportsUseCase{
		storage: storage,
		index:   index,
		config:  config,
		logger:  log,
	}
}

func (uc *ListReportsUseCase) Execute(ctx context.Context, cmd ListReportsCommand) (*ListReportsResult, error) {
	host := strings.TrimSpace(cmd.Host)
	if !hostRegex.MatchString(host) {
		return nil, fmt.Errorf("%w: invalid host", ErrInvalidReportQuery)
	}

	limit := cmd.Limit
	if limit <= 0 {
		limit = uc.config.DefaultLimit
	}
	if limit > uc.config.MaxLimit {
		limit = uc.config.MaxLimit
	}

	if !cmd.From.IsZero() && !cmd.To.IsZero() && cmd.From.After(cmd.To) {
		return nil, fmt.Errorf("%w: from must be less than or equal to to", ErrInvalidReportQuery)
	}

	status := strings.TrimSpace(cmd.Status)
	if status != "" {
		if _, err := valueobject.ParseOverallStatus(status); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidReportQuery, err)
		}
	}

	query := port.ReportListQuery{
		Host:         host,
		Limit:        limit,
		Cursor:       strings.TrimSpace(cmd.Cursor),
		ArtifactType: strings.TrimSpace(cmd.ArtifactType),
		RunID:        strings.TrimSpace(cmd.RunID),
		Status:       status,
		From:         cmd.From.UTC(),
		To:           cmd.To.UTC(),
	}

	if uc.index != nil {
		page, err := uc.index.ListByHost(ctx, query)
		if err == nil {
			return uc.mapIndexPage(ctx, page), nil
		}

		if !uc.config.FallbackToS3OnError {
			return nil, fmt.Errorf("failed to list reports via index: %w", err)
		}

		uc.logger.Warn("Report index is unavailable, using S3 fallback",
			"host", host,
			"error", err.Error(),
		)
	}

	return uc.listFromS3(ctx, query)
}

func (uc *ListReportsUseCase) buildPrefix(host string) string {
	prefix := strings.Trim(uc.config.KeyPrefix, "/")
	if prefix == "" {
		prefix = "kpi-reports"
	}
	return fmt.Sprintf("%s/%s/", prefix, host)
}

func (uc *ListReportsUseCase) mapIndexPage(ctx context.Context, page port.ReportListPage) *ListReportsResult {
	items := make([]ReportListItem, 0, len(page.Items))
	for _, record := range page.Items {
		url := record.URL
		if uc.storage != nil {
			if signed, err := uc.storage.GetObjectURL(ctx, record.S3Key); err == nil {
				url = signed
			}
		}

		items = append(items, ReportListItem{
			Type:          record.ArtifactType,
			RunID:         record.RunID,
			S3Key:         record.S3Key,
			URL:           url,
			OverallStatus: record.OverallStatus,
			CreatedAt:     record.CreatedAt.UTC(),
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})

	return &ListReportsResult{Items: items, NextCursor: page.NextCursor}
}

func (uc *ListReportsUseCase) listFromS3(ctx context.Context, query port.ReportListQuery) (*ListReportsResult, error) {
	if uc.storage == nil {
		return nil, fmt.Errorf("report storage is not configured")
	}
	if query.Cursor != "" {
		return nil, fmt.Errorf("%w: cursor pagination requires report index", ErrInvalidReportQuery)
	}
	// итог прогона есть только в индексе, в имени объекта его нет
	if query.Status != "" {
		return nil, fmt.Errorf("%w: status filter requires report index", ErrInvalidReportQuery)
	}

	objects, err := uc.storage.ListObjects(ctx, uc.buildPrefix(query.Host), query.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}

	filtered := make([]ReportListItem, 0, len(objects))
	for _, object := range objects {
		createdAt, runID := parseReportKey(object.Key)
		item := ReportListItem{
			Type:         inferArtifactType(object.Key),
			RunID:        runID,
			S3Key:        object.Key,
			URL:          object.URL,
			CreatedAt:    createdAt,
			LastModified: object.LastModified.UTC(),
		}

		if query.ArtifactType != "" && item.Type != query.ArtifactType {
			continue
		}
		if query.RunID != "" && item.RunID != query.RunID {
			continue
		}
		if !query.From.IsZero() && item.CreatedAt.Before(query.From) {
			continue
		}
		if !query.To.IsZero() && item.CreatedAt.After(query.To) {
			continue
		}

		filtered = append(filtered, item)
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].LastModified.After(filtered[j].LastModified)
	})

	if len(filtered) > query.Limit {
		filtered = filtered[:query.Limit]
	}

	return &ListReportsResult{Items: filtered}, nil
}

func inferArtifactType(key string) string {
	ext := strings.TrimPrefix(path.Ext(strings.TrimSpace(key)), ".")
	if ext == "" {
		return "unknown"
	}
	return ext
}

// parseReportKey разбирает имя вида 20260208T090500Z_<run-id>.csv
func parseReportKey(key string) (time.Time, string) {
	filename := path.Base(strings.TrimSpace(key))
	if filename == "" || filename == "." {
		return time.Time{}, ""
	}

	withoutExt := strings.TrimSuffix(filename, path.Ext(filename))
	underscore := strings.IndexRune(withoutExt, '_')
	if underscore <= 0 {
		return time.Time{}, ""
	}

	createdAt, err := time.Parse(reportTimestampLayout, withoutExt[:underscore])
	if err != nil {
		return time.Time{}, ""
	}
	return createdAt.UTC(), withoutExt[underscore+1:]
}
