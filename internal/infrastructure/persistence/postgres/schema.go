package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS suite_runs (
	id             UUID PRIMARY KEY,
	host           TEXT NOT NULL,
	mode           TEXT NOT NULL,
	overall_status TEXT NOT NULL,
	met_percent    DOUBLE PRECISION NOT NULL,
	started_at     TIMESTAMPTZ NOT NULL,
	finished_at    TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_suite_runs_host_started ON suite_runs (host, started_at DESC);

CREATE TABLE IF NOT EXISTS check_results (
	id             UUID PRIMARY KEY,
	run_id         UUID NOT NULL REFERENCES suite_runs(id) ON DELETE CASCADE,
	position       INTEGER NOT NULL,
	check_name     TEXT NOT NULL,
	threshold_name TEXT NOT NULL,
	dimension      TEXT NOT NULL,
	unit           TEXT NOT NULL,
	limit_value    DOUBLE PRECISION NOT NULL,
	status         TEXT NOT NULL,
	observed       DOUBLE PRECISION,
	success_count  INTEGER NOT NULL,
	failure_count  INTEGER NOT NULL,
	stat_mean      DOUBLE PRECISION,
	stat_min       DOUBLE PRECISION,
	stat_max       DOUBLE PRECISION,
	stat_p95       DOUBLE PRECISION,
	error_message  TEXT,
	started_at     TIMESTAMPTZ NOT NULL,
	finished_at    TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_check_results_run ON check_results (run_id, position);
`

// EnsureSchema создает таблицы, если их нет
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
