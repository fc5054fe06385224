package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fablebot/fable-api/internal/platform/logger"
	"github.com/fablebot/fable-api/internal/store"
	"github.com/fablebot/fable-api/internal/task"
)

// PostgresTaskStore implements the task.Store interface using PostgreSQL.
type PostgresTaskStore struct {
	db store.DBTX
}

// NewPostgresTaskStore creates a new PostgresTaskStore.
func NewPostgresTaskStore(db store.DBTX) *PostgresTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}
	return &PostgresTaskStore{db: db}
}

// Ensure PostgresTaskStore implements task.Store
var _ task.Store = (*PostgresTaskStore)(nil)

// SaveTask persists a task record to the database.
func (s *PostgresTaskStore) SaveTask(ctx context.Context, record *task.Record) error {
	log := logger.FromContext(ctx)

	payload, err := json.Marshal(record.Descriptor)
	if err != nil {
		return fmt.Errorf("failed to encode task payload: %w", err)
	}

	query := `
		INSERT INTO tasks (id, action, payload, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err = s.db.ExecContext(ctx, query,
		record.ID,
		record.Descriptor.Action,
		payload,
		record.Status,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to save task",
			"task_id", record.ID,
			"action", record.Descriptor.Action,
			"error", err)
		return fmt.Errorf("failed to save task to database: %w", err)
	}

	return nil
}

// UpdateTaskStatus updates the status of a task. A missing task is treated
// as a no-op.
func (s *PostgresTaskStore) UpdateTaskStatus(
	ctx context.Context,
	taskID uuid.UUID,
	status task.Status,
	errorMsg string,
) error {
	log := logger.FromContext(ctx)

	query := `
		UPDATE tasks
		SET status = $1, error_message = $2, updated_at = $3
		WHERE id = $4
	`

	result, err := s.db.ExecContext(ctx, query, status, errorMsg, time.Now().UTC(), taskID)
	if err != nil {
		log.Error("failed to update task status",
			"task_id", taskID,
			"status", status,
			"error", err)
		return fmt.Errorf("failed to update task status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		log.Warn("no task found with ID to update status", "task_id", taskID)
	}

	return nil
}

// GetPendingTasks retrieves all tasks awaiting delivery, oldest first.
func (s *PostgresTaskStore) GetPendingTasks(ctx context.Context) ([]*task.Record, error) {
	return s.getTasksByStatus(ctx, task.StatusPending, 0)
}

// GetDeliveringTasks retrieves tasks stuck in the delivering state for
// longer than olderThan, oldest first.
func (s *PostgresTaskStore) GetDeliveringTasks(ctx context.Context, olderThan time.Duration) ([]*task.Record, error) {
	return s.getTasksByStatus(ctx, task.StatusDelivering, olderThan)
}

// getTasksByStatus is a helper to get tasks by status with an optional age
// filter.
func (s *PostgresTaskStore) getTasksByStatus(
	ctx context.Context,
	status task.Status,
	olderThan time.Duration,
) ([]*task.Record, error) {
	log := logger.FromContext(ctx)

	var query string
	var args []interface{}

	if olderThan > 0 {
		query = `
			SELECT id, payload, status, error_message, created_at, updated_at
			FROM tasks
			WHERE status = $1 AND updated_at < $2
			ORDER BY created_at ASC
		`
		args = []interface{}{status, time.Now().UTC().Add(-olderThan)}
	} else {
		query = `
			SELECT id, payload, status, error_message, created_at, updated_at
			FROM tasks
			WHERE status = $1
			ORDER BY created_at ASC
		`
		args = []interface{}{status}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query tasks by status",
			"status", status,
			"error", err)
		return nil, fmt.Errorf("failed to query tasks by status: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*task.Record

	for rows.Next() {
		var (
			id           uuid.UUID
			payload      []byte
			taskStatus   task.Status
			errorMessage sql.NullString
			createdAt    time.Time
			updatedAt    time.Time
		)

		if err := rows.Scan(&id, &payload, &taskStatus, &errorMessage, &createdAt, &updatedAt); err != nil {
			log.Error("failed to scan task row",
				"status", status,
				"error", err)
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}

		var descriptor task.Descriptor
		if err := json.Unmarshal(payload, &descriptor); err != nil {
			log.Error("failed to decode task payload",
				"task_id", id,
				"error", err)
			return nil, fmt.Errorf("failed to decode task payload: %w", err)
		}

		records = append(records, &task.Record{
			ID:           id,
			Descriptor:   descriptor,
			Status:       taskStatus,
			ErrorMessage: errorMessage.String,
			CreatedAt:    createdAt,
			UpdatedAt:    updatedAt,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task rows: %w", err)
	}

	return records, nil
}
