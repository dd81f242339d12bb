package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"travelbook/internal/models"
)

const syncTaskColumns = `id, task_type, table_name, row_id, payload, status, retry_count, last_error, created_at, processed_at, next_retry_at`

func (db *DB) CreateSyncTask(ctx context.Context, task *models.SyncTask) error {
	query := `INSERT INTO sync_queue (task_type, table_name, row_id, payload, status, retry_count, last_error, created_at, next_retry_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`
	if task.Status == "" {
		task.Status = models.TaskPending
	}
	now := time.Now().UTC()
	if task.NextRetryAt != nil {
		utc := task.NextRetryAt.UTC()
		task.NextRetryAt = &utc
	}
	err := db.QueryRowContext(ctx, db.rebind(query),
		task.TaskType,
		task.Table,
		task.RowID,
		task.Payload,
		task.Status,
		task.RetryCount,
		task.LastError,
		now,
		task.NextRetryAt,
	).Scan(&task.ID)
	if err != nil {
		return fmt.Errorf("failed to create sync task: %w", err)
	}
	task.CreatedAt = now
	return nil
}

func (db *DB) GetPendingSyncTasks(ctx context.Context, limit int) ([]models.SyncTask, error) {
	query := `SELECT ` + syncTaskColumns + `
              FROM sync_queue
              WHERE status IN ('pending', 'retry') AND (next_retry_at IS NULL OR next_retry_at <= ?)
              ORDER BY created_at ASC, id ASC LIMIT ?`
	return db.querySyncTasks(ctx, query, time.Now().UTC(), limit)
}

func (db *DB) GetFailedSyncTasks(ctx context.Context) ([]models.SyncTask, error) {
	query := `SELECT ` + syncTaskColumns + ` FROM sync_queue WHERE status = 'failed' ORDER BY created_at DESC`
	return db.querySyncTasks(ctx, query)
}

func (db *DB) querySyncTasks(ctx context.Context, query string, args ...interface{}) ([]models.SyncTask, error) {
	rows, err := db.QueryContext(ctx, db.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.SyncTask
	for rows.Next() {
		var (
			t           models.SyncTask
			lastError   sql.NullString
			processedAt sql.NullTime
			nextRetryAt sql.NullTime
		)
		err := rows.Scan(
			&t.ID, &t.TaskType, &t.Table, &t.RowID, &t.Payload, &t.Status, &t.RetryCount,
			&lastError, &t.CreatedAt, &processedAt, &nextRetryAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync task: %w", err)
		}
		if lastError.Valid {
			t.LastError = &lastError.String
		}
		if processedAt.Valid {
			t.ProcessedAt = &processedAt.Time
		}
		if nextRetryAt.Valid {
			t.NextRetryAt = &nextRetryAt.Time
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (db *DB) UpdateSyncTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	var query string
	var args []interface{}
	now := time.Now().UTC()
	if nextRetryAt != nil {
		utc := nextRetryAt.UTC()
		nextRetryAt = &utc
	}

	switch status {
	case models.TaskRetry:
		query = `UPDATE sync_queue SET status = ?, last_error = ?, next_retry_at = ?, retry_count = retry_count + 1 WHERE id = ?`
		args = []interface{}{status, errMsg, nextRetryAt, id}
	case models.TaskCompleted, models.TaskFailed:
		query = `UPDATE sync_queue SET status = ?, last_error = ?, next_retry_at = ?, processed_at = ? WHERE id = ?`
		args = []interface{}{status, errMsg, nextRetryAt, now, id}
	default:
		query = `UPDATE sync_queue SET status = ?, last_error = ?, next_retry_at = ? WHERE id = ?`
		args = []interface{}{status, errMsg, nextRetryAt, id}
	}

	if _, err := db.ExecContext(ctx, db.rebind(query), args...); err != nil {
		return fmt.Errorf("failed to update sync task status: %w", err)
	}
	return nil
}
