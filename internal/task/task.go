package task

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the lifecycle state of a stored task. A task moves from
// pending to processing to completed or failed; Recover moves processing
// tasks back to pending after an unclean shutdown.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

const (
	// TaskTypeReportGeneration generates every section of a report.
	TaskTypeReportGeneration = "report_generation"

	// TaskTypeSectionRegeneration regenerates a single section of a report.
	TaskTypeSectionRegeneration = "section_regeneration"
)

// Task is a unit of background work. Type and Payload are persisted so a
// Builder can reconstruct the task after a restart.
type Task interface {
	ID() uuid.UUID
	Type() string

	// Payload is the JSON-encoded task input.
	Payload() []byte
	Status() TaskStatus

	// Execute does the work. It should return promptly once ctx is done.
	Execute(ctx context.Context) error
}

// Aborter is implemented by tasks that hold external state, such as a report
// marked in progress, which must be released when the runner gives up on the
// task without executing it.
type Aborter interface {
	Abort(ctx context.Context, cause error)
}

// Builder turns a stored task row back into an executable Task.
type Builder interface {
	Build(id uuid.UUID, taskType string, payload []byte, status TaskStatus) (Task, error)
}

// TaskStore persists tasks so work survives restarts.
type TaskStore interface {
	SaveTask(ctx context.Context, task Task) error

	// UpdateTaskStatus records status, with errorMsg describing a failure.
	UpdateTaskStatus(ctx context.Context, taskID uuid.UUID, status TaskStatus, errorMsg string) error

	// GetPendingTasks returns every pending task, oldest first.
	GetPendingTasks(ctx context.Context) ([]Task, error)

	// GetProcessingTasks retrieves tasks with "processing" status.
	// If olderThan is non-zero, only tasks that have been in this state
	// longer than olderThan are returned.
	GetProcessingTasks(ctx context.Context, olderThan time.Duration) ([]Task, error)

	// WithTx returns a TaskStore that runs every query in tx.
	WithTx(tx *sql.Tx) TaskStore
}
