package port

import (
	"context"
	"time"
)

// ReportObject объект архива отчетов
type ReportObject struct {
	Key          string
	URL          string
	LastModified time.Time
}

// ReportStorage определяет интерфейс для архива отчетов.
type ReportStorage interface {
	// PutObject загружает объект и возвращает URL для чтения.
	PutObject(ctx context.Context, key, contentType string, body []byte) (string, error)

	// ListObjects возвращает объекты с указанным префиксом, новые первыми.
	ListObjects(ctx context.Context, prefix string, limit int) ([]ReportObject, error)

	// GetObjectURL возвращает URL для чтения объекта.
	GetObjectURL(ctx context.Context, key string) (string, error)
}
