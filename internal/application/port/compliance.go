package port

import (
	"context"
	"errors"

	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/entity"
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/valueobject"
)

// ErrComplianceForbidden у учетной записи нет прав на чтение политик или журнала аудита
var ErrComplianceForbidden = errors.New("compliance API access denied")

// AuditQuery параметры поиска в журнале аудита
type AuditQuery struct {
	Operations []string
	Window     valueobject.TimeRange
	// ResultSize верхняя граница числа записей по всем страницам
	ResultSize int
}

// ComplianceAPI источник политик DLP и журнала аудита (Port)
type ComplianceAPI interface {
	ListPolicies(ctx context.Context) ([]entity.DLPPolicy, error)
	ListRules(ctx context.Context) ([]entity.DLPRule, error)
	// SearchAuditLog выполняет постраничный поиск, не превышая ResultSize
	SearchAuditLog(ctx context.Context, query AuditQuery) ([]entity.AuditRecord, error)
}
