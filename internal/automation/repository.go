package automation

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// timeFormat sorts lexically in time order.
const timeFormat = "2006-01-02T15:04:05.000000Z"

// Repository persists automation run records.
type Repository interface {
	CreateRun(ctx context.Context, run *Run) error
	ListRuns(ctx context.Context, automationID string, limit int) ([]Run, error)
}

// SQLiteRepository implements Repository using the automation_runs table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// CreateRun inserts a run record and sets its ID.
func (r *SQLiteRepository) CreateRun(ctx context.Context, run *Run) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO automation_runs (
			automation_id, trigger_entity, trigger_state, service, target, error, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.AutomationID,
		run.TriggerEntity,
		run.TriggerState,
		run.Service,
		run.Target,
		nullableString(run.Error),
		run.CreatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting automation run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading run id: %w", err)
	}
	run.ID = id
	return nil
}

// ListRuns returns the most recent runs of a rule, newest first.
// An empty automationID lists runs of every rule.
func (r *SQLiteRepository) ListRuns(ctx context.Context, automationID string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	query := `
		SELECT id, automation_id, trigger_entity, trigger_state, service, target, error, created_at
		FROM automation_runs`
	args := []any{}
	if automationID != "" {
		query += ` WHERE automation_id = ?`
		args = append(args, automationID)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying automation runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var runErr sql.NullString
		var createdAt string
		if err := rows.Scan(
			&run.ID,
			&run.AutomationID,
			&run.TriggerEntity,
			&run.TriggerState,
			&run.Service,
			&run.Target,
			&runErr,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scanning automation run: %w", err)
		}
		if runErr.Valid {
			run.Error = &runErr.String
		}
		run.CreatedAt, _ = time.Parse(timeFormat, createdAt)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating automation runs: %w", err)
	}
	return runs, nil
}

func nullableString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
