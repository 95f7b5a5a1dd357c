package port

import (
	"context"
	"time"
)

// ReportMetadata запись индекса архивированного отчета.
type ReportMetadata struct {
	Host          string
	RunID         string
	ArtifactType  string
	S3Key         string
	URL           string
	ContentType   string
	SizeBytes     int64
	OverallStatus string
	MetPercent    float64
	CreatedAt     time.Time
	ExpiresAt     time.Time
}

// ReportListQuery параметры выборки отчетов по хосту.
// RunID выбирает артефакты одного прогона, Status прогоны с данным итогом.
type ReportListQuery struct {
	Host         string
	Limit        int
	Cursor       string
	ArtifactType string
	RunID        string
	Status       string
	From         time.Time
	To           time.Time
}

// ReportListPage результат выборки и курсор следующей страницы.
type ReportListPage struct {
	Items      []ReportMetadata
	NextCursor string
}

// ReportIndexRepository хранит метаданные архивированных отчетов.
type ReportIndexRepository interface {
	PutBatch(ctx context.Context, records []ReportMetadata) error
	ListByHost(ctx context.Context, query ReportListQuery) (ReportListPage, error)
}
