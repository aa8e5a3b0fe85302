package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/phrazzld/ereuna/internal/platform/postgres"
	"github.com/phrazzld/ereuna/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockBuilder rebuilds rows into MockTasks and rejects types it does not know.
type mockBuilder struct {
	known string
}

func (b mockBuilder) Build(id uuid.UUID, taskType string, payload []byte, status task.TaskStatus) (task.Task, error) {
	if taskType != b.known {
		return nil, errors.New("unknown task type")
	}
	t := task.NewMockTask(id, taskType, payload)
	t.TaskStatus = status
	return t, nil
}

func newMockTaskStore(t *testing.T) (*postgres.PostgresTaskStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return postgres.NewPostgresTaskStore(db, mockBuilder{known: task.TaskTypeReportGeneration}, discardLogger()), mock
}

var taskCols = []string{"id", "type", "payload", "status"}

func TestPostgresTaskStore_SaveTask(t *testing.T) {
	t.Parallel()

	tasks, mock := newMockTaskStore(t)
	mt := task.NewMockTask(uuid.New(), task.TaskTypeReportGeneration, []byte(`{"report_id":"x"}`))

	mock.ExpectExec("INSERT INTO tasks").
		WithArgs(mt.ID(), task.TaskTypeReportGeneration, `{"report_id":"x"}`, "pending", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, tasks.SaveTask(context.Background(), mt))

	mock.ExpectExec("INSERT INTO tasks").WillReturnError(newPgError("23505"))
	err := tasks.SaveTask(context.Background(), mt)
	assert.True(t, postgres.IsUniqueViolation(err))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTaskStore_UpdateTaskStatus(t *testing.T) {
	t.Parallel()

	tasks, mock := newMockTaskStore(t)
	id := uuid.New()

	mock.ExpectExec("UPDATE tasks").
		WithArgs("failed", "provider down", sqlmock.AnyArg(), id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, tasks.UpdateTaskStatus(context.Background(), id, task.TaskStatusFailed, "provider down"))

	mock.ExpectExec("UPDATE tasks").
		WithArgs("completed", nil, sqlmock.AnyArg(), id).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.NoError(t, tasks.UpdateTaskStatus(context.Background(), id, task.TaskStatusCompleted, ""),
		"missing tasks are ignored")

	mock.ExpectExec("UPDATE tasks").WillReturnError(errors.New("conn reset"))
	assert.Error(t, tasks.UpdateTaskStatus(context.Background(), id, task.TaskStatusCompleted, ""))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTaskStore_GetPendingTasks(t *testing.T) {
	t.Parallel()

	tasks, mock := newMockTaskStore(t)
	good, stale := uuid.New(), uuid.New()

	mock.ExpectQuery("FROM tasks\\s+WHERE status = \\$1 ORDER BY created_at ASC").
		WithArgs("pending").
		WillReturnRows(sqlmock.NewRows(taskCols).
			AddRow(good.String(), task.TaskTypeReportGeneration, []byte(`{}`), "pending").
			AddRow(stale.String(), "memo_generation", []byte(`{}`), "pending"))
	mock.ExpectExec("UPDATE tasks").
		WithArgs("failed", sqlmock.AnyArg(), sqlmock.AnyArg(), stale).
		WillReturnResult(sqlmock.NewResult(0, 1))

	pending, err := tasks.GetPendingTasks(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, good, pending[0].ID())
	assert.Equal(t, task.TaskStatusPending, pending[0].Status())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTaskStore_GetProcessingTasks(t *testing.T) {
	t.Parallel()

	tasks, mock := newMockTaskStore(t)
	id := uuid.New()

	mock.ExpectQuery("WHERE status = \\$1 AND updated_at < \\$2").
		WithArgs("processing", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(taskCols).
			AddRow(id.String(), task.TaskTypeReportGeneration, []byte(`{}`), "processing"))

	stuck, err := tasks.GetProcessingTasks(context.Background(), 30*time.Minute)
	require.NoError(t, err)
	require.Len(t, stuck, 1)
	assert.Equal(t, task.TaskStatusProcessing, stuck[0].Status())

	mock.ExpectQuery("FROM tasks").WillReturnError(errors.New("timeout"))
	_, err = tasks.GetProcessingTasks(context.Background(), 0)
	assert.Error(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}
