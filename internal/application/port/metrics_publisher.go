package port

import (
	"context"

	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/entity"
)

// KPIPublisher exports check results as datapoints to an external metrics platform.
type KPIPublisher interface {
	// PublishRun publishes suite-level datapoints (met percentage, status counts).
	PublishRun(ctx context.Context, run *entity.SuiteRun) error

	// PublishResult publishes a single check result immediately.
	PublishResult(ctx context.Context, result *entity.CheckResult) error

	// Flush forces immediate publication of any buffered datapoints.
	Flush(ctx context.Context) error
}
