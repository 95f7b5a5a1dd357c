package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/entity"
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/repository"
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/valueobject"
	"github.com/lib/pq"
)

const (
	runColumns    = `id, host, mode, overall_status, met_percent, started_at, finished_at`
	resultColumns = `id, run_id, position, check_name, threshold_name, dimension, unit, limit_value, status,
		observed, success_count, failure_count, stat_mean, stat_min, stat_max, stat_p95,
		error_message, started_at, finished_at`
)

// PostgresSuiteRunRepository реализует repository.SuiteRunRepository для PostgreSQL.
// Все выборки ограничены хостом, на котором запущен монитор.
type PostgresSuiteRunRepository struct {
	db   *sql.DB
	host string
}

// NewPostgresSuiteRunRepository создает новый PostgreSQL repository
func NewPostgresSuiteRunRepository(db *sql.DB, host string) *PostgresSuiteRunRepository {
	return &PostgresSuiteRunRepository{
		db:   db,
		host: host,
	}
}

// Open открывает соединение и проверяет его
func Open(ctx context.Context, dsn string, maxOpen, maxIdle int) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// Save сохраняет прогон и результаты одной транзакцией
func (r *PostgresSuiteRunRepository) Save(ctx context.Context, run *entity.SuiteRun) error {
	if !run.IsFinalized() {
		return fmt.Errorf("suite run %s is not finalized", run.ID())
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	m := ToRunDBModel(run, r.host)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO suite_runs (`+runColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, m.ID, m.Host, m.Mode, m.OverallStatus, m.MetPercent, m.StartedAt, m.FinishedAt)
	if err != nil {
		return fmt.Errorf("failed to insert suite run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO check_results (`+resultColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, result := range run.Results() {
		rm := ToResultDBModel(run.ID(), i, result)
		_, err = stmt.ExecContext(ctx,
			rm.ID, rm.RunID, rm.Position, rm.CheckName, rm.ThresholdName, rm.Dimension, rm.Unit,
			rm.LimitValue, rm.Status, rm.Observed, rm.SuccessCount, rm.FailureCount,
			rm.StatMean, rm.StatMin, rm.StatMax, rm.StatP95,
			rm.ErrorMessage, rm.StartedAt, rm.FinishedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert check result %s: %w", rm.CheckName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// FindByID находит прогон по идентификатору
func (r *PostgresSuiteRunRepository) FindByID(ctx context.Context, id string) (*entity.SuiteRun, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+runColumns+`
		FROM suite_runs
		WHERE id = $1 AND host = $2
	`, id, r.host)

	return r.loadOne(ctx, row)
}

// FindLatest находит последний прогон хоста
func (r *PostgresSuiteRunRepository) FindLatest(ctx context.Context) (*entity.SuiteRun, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+runColumns+`
		FROM suite_runs
		WHERE host = $1
		ORDER BY started_at DESC
		LIMIT 1
	`, r.host)

	return r.loadOne(ctx, row)
}

// FindByTimeRange находит прогоны, начатые в окне, новые первыми
func (r *PostgresSuiteRunRepository) FindByTimeRange(
	ctx context.Context,
	timeRange valueobject.TimeRange,
	limit int,
) ([]*entity.SuiteRun, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM suite_runs
		WHERE host = $1 AND started_at BETWEEN $2 AND $3
		ORDER BY started_at DESC
		LIMIT $4
	`, r.host, timeRange.Start(), timeRange.End(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query suite runs: %w", err)
	}

	var models []*SuiteRunDBModel
	for rows.Next() {
		m, err := ScanRunRow(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan suite run row: %w", err)
		}
		models = append(models, m)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	rows.Close()

	if len(models) == 0 {
		return []*entity.SuiteRun{}, nil
	}

	ids := make([]string, 0, len(models))
	for _, m := range models {
		ids = append(ids, m.ID)
	}

	results, err := r.loadResults(ctx, ids)
	if err != nil {
		return nil, err
	}

	runs := make([]*entity.SuiteRun, 0, len(models))
	for _, m := range models {
		run, err := ToRunEntity(m, results[m.ID])
		if err != nil {
			return nil, fmt.Errorf("failed to convert to entity: %w", err)
		}
		runs = append(runs, run)
	}

	return runs, nil
}

// DeleteOlderThan удаляет прогоны, завершенные раньше before. Результаты удаляются каскадно.
func (r *PostgresSuiteRunRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM suite_runs
		WHERE host = $1 AND finished_at < $2
	`, r.host, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old suite runs: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n, nil
}

func (r *PostgresSuiteRunRepository) loadOne(ctx context.Context, row *sql.Row) (*entity.SuiteRun, error) {
	m, err := ScanRunRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan suite run: %w", err)
	}

	results, err := r.loadResults(ctx, []string{m.ID})
	if err != nil {
		return nil, err
	}

	return ToRunEntity(m, results[m.ID])
}

// loadResults загружает результаты нескольких прогонов одним запросом
func (r *PostgresSuiteRunRepository) loadResults(ctx context.Context, runIDs []string) (map[string][]*entity.CheckResult, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+resultColumns+`
		FROM check_results
		WHERE run_id = ANY($1)
		ORDER BY run_id, position
	`, pq.Array(runIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query check results: %w", err)
	}
	defer rows.Close()

	byRun := make(map[string][]*entity.CheckResult, len(runIDs))
	for rows.Next() {
		m, err := ScanResultRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan check result row: %w", err)
		}
		result, err := ToResultEntity(m)
		if err != nil {
			return nil, fmt.Errorf("failed to convert check result: %w", err)
		}
		byRun[m.RunID] = append(byRun[m.RunID], result)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return byRun, nil
}
