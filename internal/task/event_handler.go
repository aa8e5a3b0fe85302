package task

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/ereuna/internal/events"
)

// Submitter accepts tasks for background execution. *TaskRunner is the
// production implementation.
type Submitter interface {
	Submit(ctx context.Context, task Task) error
}

// TaskFactoryEventHandler turns task request events into tasks and submits
// them to the runner.
type TaskFactoryEventHandler struct {
	builder Builder
	runner  Submitter
	logger  *slog.Logger
}

var _ events.EventHandler = (*TaskFactoryEventHandler)(nil)

// NewTaskFactoryEventHandler creates a handler that builds tasks with builder
// and submits them to runner.
func NewTaskFactoryEventHandler(builder Builder, runner Submitter, logger *slog.Logger) *TaskFactoryEventHandler {
	return &TaskFactoryEventHandler{
		builder: builder,
		runner:  runner,
		logger:  logger.With("component", "task_factory_event_handler"),
	}
}

// HandleEvent builds a task from the event type and payload and submits it.
// The event ID becomes the task ID.
func (h *TaskFactoryEventHandler) HandleEvent(ctx context.Context, event *events.TaskRequestEvent) error {
	log := h.logger.With("event_id", event.ID, "event_type", event.Type)

	task, err := h.builder.Build(event.ID, event.Type, event.Payload, TaskStatusPending)
	if err != nil {
		log.Error("failed to create task", "error", err)
		return fmt.Errorf("failed to create task: %w", err)
	}

	if err := h.runner.Submit(ctx, task); err != nil {
		log.Error("failed to submit task", "error", err, "task_id", task.ID())
		return fmt.Errorf("failed to submit task: %w", err)
	}

	log.Info("task created and submitted", "task_id", task.ID())
	return nil
}
