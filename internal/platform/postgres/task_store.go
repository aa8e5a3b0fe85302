package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/ereuna/internal/platform/logger"
	"github.com/phrazzld/ereuna/internal/store"
	"github.com/phrazzld/ereuna/internal/task"
)

// PostgresTaskStore implements task.TaskStore. Stored rows are turned back
// into executable tasks by the Builder given at construction.
type PostgresTaskStore struct {
	db      store.DBTX
	builder task.Builder
	logger  *slog.Logger
}

var _ task.TaskStore = (*PostgresTaskStore)(nil)

// NewPostgresTaskStore creates a task store on db.
func NewPostgresTaskStore(db store.DBTX, builder task.Builder, logger *slog.Logger) *PostgresTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if builder == nil {
		panic("builder cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresTaskStore{
		db:      db,
		builder: builder,
		logger:  logger.With(slog.String("component", "task_store")),
	}
}

// WithTx returns a store that runs every query in tx.
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) task.TaskStore {
	return &PostgresTaskStore{db: tx, builder: s.builder, logger: s.logger}
}

// SaveTask inserts a task row.
func (s *PostgresTaskStore) SaveTask(ctx context.Context, t task.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, type, payload, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		t.ID(),
		t.Type(),
		string(t.Payload()),
		t.Status(),
		now,
		now,
	)
	if err != nil {
		log.Error("failed to save task",
			slog.String("task_id", t.ID().String()),
			slog.String("task_type", t.Type()),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to save task: %w", MapError(err))
	}
	return nil
}

// UpdateTaskStatus sets the status and error message of a task. Updating a
// task that no longer exists is logged and ignored.
func (s *PostgresTaskStore) UpdateTaskStatus(ctx context.Context, taskID uuid.UUID, status task.TaskStatus, errorMsg string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var msg sql.NullString
	if errorMsg != "" {
		msg = sql.NullString{String: errorMsg, Valid: true}
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET status = $1, error_message = $2, updated_at = $3
		WHERE id = $4`,
		status, msg, time.Now().UTC(), taskID,
	)
	if err != nil {
		log.Error("failed to update task status",
			slog.String("task_id", taskID.String()),
			slog.String("status", string(status)),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to update task status: %w", MapError(err))
	}

	if err := CheckRowsAffected(result, store.ErrTaskNotFound); err != nil {
		log.Warn("task status update matched no task",
			slog.String("task_id", taskID.String()),
			slog.String("status", string(status)))
	}
	return nil
}

// GetPendingTasks returns pending tasks, oldest first.
func (s *PostgresTaskStore) GetPendingTasks(ctx context.Context) ([]task.Task, error) {
	return s.tasksWithStatus(ctx, task.TaskStatusPending, 0)
}

// GetProcessingTasks returns processing tasks whose last update is older
// than olderThan, or all of them when olderThan is zero.
func (s *PostgresTaskStore) GetProcessingTasks(ctx context.Context, olderThan time.Duration) ([]task.Task, error) {
	return s.tasksWithStatus(ctx, task.TaskStatusProcessing, olderThan)
}

type taskRow struct {
	id       uuid.UUID
	taskType string
	payload  []byte
	status   task.TaskStatus
}

// tasksWithStatus loads and rebuilds tasks. Rows that cannot be rebuilt,
// such as tasks of a type this build no longer knows, are marked failed so
// they are not picked up again.
func (s *PostgresTaskStore) tasksWithStatus(ctx context.Context, status task.TaskStatus, olderThan time.Duration) ([]task.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, type, payload, status
		FROM tasks
		WHERE status = $1`
	args := []any{status}
	if olderThan > 0 {
		query += ` AND updated_at < $2`
		args = append(args, time.Now().UTC().Add(-olderThan))
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query tasks by status",
			slog.String("status", string(status)),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to query tasks by status: %w", MapError(err))
	}

	var found []taskRow
	for rows.Next() {
		var r taskRow
		var rowStatus string
		if err := rows.Scan(&r.id, &r.taskType, &r.payload, &rowStatus); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		r.status = task.TaskStatus(rowStatus)
		found = append(found, r)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("error iterating task rows: %w", err)
	}
	// Close before issuing updates; a transaction allows one open result set.
	_ = rows.Close()

	tasks := make([]task.Task, 0, len(found))
	for _, r := range found {
		t, err := s.builder.Build(r.id, r.taskType, r.payload, r.status)
		if err != nil {
			log.Error("failed to rebuild stored task",
				slog.String("task_id", r.id.String()),
				slog.String("task_type", r.taskType),
				slog.String("error", err.Error()))
			if updateErr := s.UpdateTaskStatus(ctx, r.id, task.TaskStatusFailed, "cannot rebuild task: "+err.Error()); updateErr != nil {
				log.Error("failed to mark unrebuildable task failed",
					slog.String("task_id", r.id.String()),
					slog.String("error", updateErr.Error()))
			}
			continue
		}
		tasks = append(tasks, t)
	}

	return tasks, nil
}
