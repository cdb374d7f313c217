package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"bgtask/internal/models"
)

const taskColumns = `id, task_name, task_params, task_hash, verbose_name, priority, run_at,
	repeat, repeat_until, queue, attempts, failed_at, last_error, locked_by, locked_at,
	creator_type, creator_id`

// PostgresStore implements TaskStore on top of Postgres via sqlx. Lock and
// the transition methods rely on single-statement (or transactional) writes
// for the atomicity the contract requires.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore wraps an sqlx database handle.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the task schema and tables if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE SCHEMA IF NOT EXISTS task`,
		`CREATE TABLE IF NOT EXISTS task.pending (
			id           BIGSERIAL PRIMARY KEY,
			task_name    TEXT NOT NULL,
			task_params  TEXT NOT NULL,
			task_hash    CHAR(40) NOT NULL,
			verbose_name TEXT,
			priority     INTEGER NOT NULL DEFAULT 0,
			run_at       TIMESTAMPTZ NOT NULL,
			repeat       BIGINT NOT NULL DEFAULT 0,
			repeat_until TIMESTAMPTZ,
			queue        TEXT,
			attempts     INTEGER NOT NULL DEFAULT 0,
			failed_at    TIMESTAMPTZ,
			last_error   TEXT,
			locked_by    TEXT,
			locked_at    TIMESTAMPTZ,
			creator_type TEXT,
			creator_id   BIGINT
		)`,
		`CREATE TABLE IF NOT EXISTS task.completed (
			id           BIGSERIAL PRIMARY KEY,
			task_name    TEXT NOT NULL,
			task_params  TEXT NOT NULL,
			task_hash    CHAR(40) NOT NULL,
			verbose_name TEXT,
			priority     INTEGER NOT NULL DEFAULT 0,
			run_at       TIMESTAMPTZ NOT NULL,
			repeat       BIGINT NOT NULL DEFAULT 0,
			repeat_until TIMESTAMPTZ,
			queue        TEXT,
			attempts     INTEGER NOT NULL DEFAULT 0,
			failed_at    TIMESTAMPTZ,
			last_error   TEXT,
			locked_by    TEXT,
			locked_at    TIMESTAMPTZ,
			creator_type TEXT,
			creator_id   BIGINT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pending_hash ON task.pending (task_hash)`,
		`CREATE INDEX IF NOT EXISTS idx_pending_ready ON task.pending (priority DESC, run_at ASC)`,
		`CREATE INDEX IF NOT EXISTS idx_pending_lease ON task.pending (locked_by, locked_at)`,
		`CREATE INDEX IF NOT EXISTS idx_pending_queue ON task.pending (queue)`,
		`CREATE INDEX IF NOT EXISTS idx_completed_hash ON task.completed (task_hash)`,
		`CREATE INDEX IF NOT EXISTS idx_completed_run_at ON task.completed (run_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("could not ensure task schema: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, task *models.Task) error {
	query := `
		INSERT INTO task.pending
		(task_name, task_params, task_hash, verbose_name, priority, run_at, repeat,
		 repeat_until, queue, attempts, failed_at, last_error, locked_by, locked_at,
		 creator_type, creator_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id`

	return s.db.QueryRowContext(ctx, query,
		task.TaskName, task.TaskParams, task.TaskHash, task.VerboseName, task.Priority,
		task.RunAt, task.Repeat, task.RepeatUntil, task.Queue, task.Attempts,
		task.FailedAt, task.LastError, task.LockedBy, task.LockedAt,
		task.CreatorType, task.CreatorID,
	).Scan(&task.ID)
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (*models.Task, error) {
	var task models.Task
	query := fmt.Sprintf(`SELECT %s FROM task.pending WHERE id = $1`, taskColumns)
	if err := s.db.GetContext(ctx, &task, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &task, nil
}

func (s *PostgresStore) Unlocked(ctx context.Context, now time.Time, maxRunTime time.Duration) ([]models.Task, error) {
	var tasks []models.Task
	query := fmt.Sprintf(`
		SELECT %s FROM task.pending
		WHERE locked_by IS NULL OR locked_at < $1
		ORDER BY id`, taskColumns)

	if err := s.db.SelectContext(ctx, &tasks, query, now.Add(-maxRunTime)); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (s *PostgresStore) FindAvailable(ctx context.Context, now time.Time, maxRunTime time.Duration, queue string) ([]models.Task, error) {
	var tasks []models.Task

	query := fmt.Sprintf(`
		SELECT %s FROM task.pending
		WHERE (locked_by IS NULL OR locked_at < $1)
		  AND run_at <= $2
		  AND failed_at IS NULL
		  AND ($3 = '' OR queue = $3)
		ORDER BY priority DESC, run_at ASC`, taskColumns)

	if err := s.db.SelectContext(ctx, &tasks, query, now.Add(-maxRunTime), now, queue); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (s *PostgresStore) Lock(ctx context.Context, id int64, workerID string, now time.Time, maxRunTime time.Duration) (*models.Task, error) {
	var task models.Task

	// The unlocked condition is re-evaluated inside the UPDATE, so at most one
	// concurrent worker's write succeeds per lease period.
	query := fmt.Sprintf(`
		UPDATE task.pending
		SET locked_by = $2, locked_at = $3
		WHERE id = $1 AND (locked_by IS NULL OR locked_at < $4)
		RETURNING %s`, taskColumns)

	err := s.db.QueryRowxContext(ctx, query, id, workerID, now, now.Add(-maxRunTime)).StructScan(&task)
	if errors.Is(err, sql.ErrNoRows) {
		// Another worker holds a fresh lease, or the task is gone.
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (s *PostgresStore) FindByHash(ctx context.Context, hash string) ([]models.Task, error) {
	var tasks []models.Task
	query := fmt.Sprintf(`SELECT %s FROM task.pending WHERE task_hash = $1 ORDER BY id`, taskColumns)
	if err := s.db.SelectContext(ctx, &tasks, query, hash); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (s *PostgresStore) DeleteByHash(ctx context.Context, hash string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM task.pending WHERE task_hash = $1`, hash)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *PostgresStore) CreatedBy(ctx context.Context, ref models.CreatorRef) ([]models.Task, error) {
	var tasks []models.Task
	query := fmt.Sprintf(`
		SELECT %s FROM task.pending
		WHERE creator_type = $1 AND creator_id = $2
		ORDER BY id`, taskColumns)

	if err := s.db.SelectContext(ctx, &tasks, query, ref.Type, ref.ID); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (s *PostgresStore) Reschedule(ctx context.Context, task *models.Task) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE task.pending
		SET attempts = $2, last_error = $3, run_at = $4, failed_at = $5,
		    locked_by = $6, locked_at = $7
		WHERE id = $1`,
		task.ID, task.Attempts, task.LastError, task.RunAt, task.FailedAt,
		task.LockedBy, task.LockedAt,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Archive(ctx context.Context, task *models.Task, completed *models.CompletedTask) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO task.completed
		(task_name, task_params, task_hash, verbose_name, priority, run_at, repeat,
		 repeat_until, queue, attempts, failed_at, last_error, locked_by, locked_at,
		 creator_type, creator_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id`

	if err := tx.QueryRowContext(ctx, query,
		completed.TaskName, completed.TaskParams, completed.TaskHash, completed.VerboseName,
		completed.Priority, completed.RunAt, completed.Repeat, completed.RepeatUntil,
		completed.Queue, completed.Attempts, completed.FailedAt, completed.LastError,
		completed.LockedBy, completed.LockedAt, completed.CreatorType, completed.CreatorID,
	).Scan(&completed.ID); err != nil {
		_ = tx.Rollback()
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM task.pending WHERE id = $1`, task.ID); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

func (s *PostgresStore) ListCompleted(ctx context.Context, limit int) ([]models.CompletedTask, error) {
	var completed []models.CompletedTask
	query := fmt.Sprintf(`SELECT %s FROM task.completed ORDER BY id DESC`, taskColumns)
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	if err := s.db.SelectContext(ctx, &completed, query, args...); err != nil {
		return nil, err
	}
	return completed, nil
}

func (s *PostgresStore) PurgeCompleted(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM task.completed WHERE run_at < $1`, olderThan)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
