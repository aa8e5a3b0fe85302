package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/ereuna/internal/platform/logger"
	"github.com/phrazzld/ereuna/internal/redact"
)

// TaskRunnerConfig holds configuration for the task runner
type TaskRunnerConfig struct {
	// WorkerCount determines how many concurrent workers process tasks
	WorkerCount int

	// QueueSize determines the buffer size for the in-memory task queue
	QueueSize int

	// StuckTaskAge defines how long a task can be in processing state
	// before it's considered stuck and reset
	StuckTaskAge time.Duration

	// StuckTaskCheckInterval defines how often to check for stuck tasks
	// If zero, defaults to 5 minutes
	StuckTaskCheckInterval time.Duration
}

// DefaultTaskRunnerConfig returns a TaskRunnerConfig with reasonable defaults
func DefaultTaskRunnerConfig() TaskRunnerConfig {
	return TaskRunnerConfig{
		WorkerCount:            2,
		QueueSize:              100,
		StuckTaskAge:           30 * time.Minute,
		StuckTaskCheckInterval: 5 * time.Minute,
	}
}

// TaskRunner manages background task processing
type TaskRunner struct {
	store      TaskStore
	queue      *TaskQueue
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopOnce   sync.Once
	config     TaskRunnerConfig
	logger     *slog.Logger
	errHandler func(task Task, err error)

	// running holds the IDs of tasks a worker of this runner is executing.
	// The stuck-task monitor never resets them.
	runningMu sync.Mutex
	running   map[uuid.UUID]struct{}
}

// NewTaskRunner creates a new TaskRunner
func NewTaskRunner(store TaskStore, config TaskRunnerConfig, logger *slog.Logger) *TaskRunner {
	if config.StuckTaskCheckInterval == 0 {
		config.StuckTaskCheckInterval = 5 * time.Minute
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = 1
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	logger = logger.With("component", "task_runner")

	return &TaskRunner{
		store:      store,
		queue:      NewTaskQueue(config.QueueSize, logger),
		ctx:        ctx,
		cancelFunc: cancel,
		config:     config,
		logger:     logger,
		errHandler: func(task Task, err error) {},
		running:    make(map[uuid.UUID]struct{}),
	}
}

// SetErrorHandler sets a function called after a task fails. It is not
// called for tasks interrupted by Stop.
func (r *TaskRunner) SetErrorHandler(handler func(task Task, err error)) {
	r.errHandler = handler
}

// Submit persists task and queues it for execution. When the queue is full
// the stored task is marked failed and the error wraps ErrQueueFull.
func (r *TaskRunner) Submit(ctx context.Context, task Task) error {
	if err := r.store.SaveTask(ctx, task); err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}

	if err := r.queue.Enqueue(task); err != nil {
		if updateErr := r.store.UpdateTaskStatus(ctx, task.ID(), TaskStatusFailed, err.Error()); updateErr != nil {
			r.logger.Error("failed to mark unqueued task as failed",
				"task_id", task.ID(),
				"error", updateErr)
		}
		return fmt.Errorf("failed to queue task: %w", err)
	}

	r.logger.Debug("task queued",
		"task_id", task.ID(),
		"task_type", task.Type(),
		"queue_depth", r.queue.Len())
	return nil
}

// Start recovers unfinished tasks and starts the workers and the stuck-task
// monitor.
func (r *TaskRunner) Start() error {
	if err := r.Recover(); err != nil {
		return fmt.Errorf("failed to recover tasks: %w", err)
	}

	for i := 0; i < r.config.WorkerCount; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}

	r.wg.Add(1)
	go r.stuckTaskMonitor()

	return nil
}

// Stop cancels running tasks, waits for the workers to exit and closes the
// queue. Interrupted tasks stay in processing and are recovered on the next
// Start.
func (r *TaskRunner) Stop() {
	r.stopOnce.Do(func() {
		r.cancelFunc()
		r.wg.Wait()
		r.queue.Close()
	})
}

// Recover requeues pending tasks and resets processing tasks, which were
// interrupted by a previous shutdown, back to pending.
func (r *TaskRunner) Recover() error {
	ctx := r.ctx

	pendingTasks, err := r.store.GetPendingTasks(ctx)
	if err != nil {
		return fmt.Errorf("failed to get pending tasks: %w", err)
	}

	processingTasks, err := r.store.GetProcessingTasks(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to get processing tasks: %w", err)
	}

	r.logger.Info("recovering unfinished tasks",
		"pending_count", len(pendingTasks),
		"processing_count", len(processingTasks))

	for _, task := range pendingTasks {
		r.requeue(task, "pending")
	}

	for _, task := range processingTasks {
		if err := r.store.UpdateTaskStatus(ctx, task.ID(), TaskStatusPending, "reset after recovery"); err != nil {
			r.logger.Error("failed to reset processing task status",
				"task_id", task.ID(),
				"task_type", task.Type(),
				"error", err)
			continue
		}
		r.requeue(task, "processing")
	}

	return nil
}

func (r *TaskRunner) requeue(task Task, previous string) {
	if err := r.queue.Enqueue(task); err != nil {
		r.logger.Error("failed to requeue task",
			"task_id", task.ID(),
			"task_type", task.Type(),
			"previous_status", previous,
			"error", err)
		return
	}
	r.logger.Info("requeued task",
		"task_id", task.ID(),
		"task_type", task.Type(),
		"previous_status", previous)
}

// worker processes tasks from the queue
func (r *TaskRunner) worker(id int) {
	defer r.wg.Done()

	r.logger.Debug("starting worker", "worker_id", id)

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Debug("stopping worker", "worker_id", id)
			return

		case task, ok := <-r.queue.Tasks():
			if !ok {
				r.logger.Debug("task channel closed, stopping worker", "worker_id", id)
				return
			}
			r.processTask(task, id)
		}
	}
}

// processTask handles execution of a single task
func (r *TaskRunner) processTask(task Task, workerID int) {
	log := r.logger.With(
		"task_id", task.ID(),
		"task_type", task.Type(),
		"worker_id", workerID,
	)
	ctx := logger.WithLogger(r.ctx, log)

	if !r.claim(task.ID()) {
		log.Warn("task is already running, dropping duplicate")
		return
	}
	defer r.release(task.ID())

	if err := r.store.UpdateTaskStatus(ctx, task.ID(), TaskStatusProcessing, ""); err != nil {
		log.Error("failed to update task status to processing", "error", err)
		r.abandon(ctx, task, fmt.Errorf("failed to mark task processing: %w", err))
		return
	}

	log.Info("processing task")
	start := time.Now()

	err := task.Execute(ctx)

	// A task cut short by Stop keeps its processing status so that Recover
	// picks it up again.
	if r.ctx.Err() != nil && (err == nil || errors.Is(err, context.Canceled)) {
		log.Warn("task interrupted by shutdown", "duration", time.Since(start))
		return
	}

	// Status updates must outlive the runner context.
	updateCtx := context.WithoutCancel(ctx)

	if err != nil {
		msg := redact.Error(err)
		log.Error("task execution failed", "error", msg, "duration", time.Since(start))
		if updateErr := r.store.UpdateTaskStatus(updateCtx, task.ID(), TaskStatusFailed, msg); updateErr != nil {
			log.Error("failed to update task status to failed", "error", updateErr)
		}
		r.errHandler(task, err)
		return
	}

	log.Info("task completed successfully", "duration", time.Since(start))
	if updateErr := r.store.UpdateTaskStatus(updateCtx, task.ID(), TaskStatusCompleted, ""); updateErr != nil {
		log.Error("failed to update task status to completed", "error", updateErr)
	}
}

// abandon gives up on a task that could not be started. The task is marked
// failed and, when it implements Aborter, told to release what it holds.
// During shutdown the task is left alone for Recover.
func (r *TaskRunner) abandon(ctx context.Context, task Task, cause error) {
	if r.ctx.Err() != nil {
		return
	}

	log := logger.FromContextOrDefault(ctx, r.logger)
	updateCtx := context.WithoutCancel(ctx)

	if err := r.store.UpdateTaskStatus(updateCtx, task.ID(), TaskStatusFailed, redact.Error(cause)); err != nil {
		log.Error("failed to update task status to failed", "error", err)
	}
	if a, ok := task.(Aborter); ok {
		a.Abort(updateCtx, cause)
	}
	r.errHandler(task, cause)
}

func (r *TaskRunner) claim(id uuid.UUID) bool {
	r.runningMu.Lock()
	defer r.runningMu.Unlock()

	if _, ok := r.running[id]; ok {
		return false
	}
	r.running[id] = struct{}{}
	return true
}

func (r *TaskRunner) release(id uuid.UUID) {
	r.runningMu.Lock()
	delete(r.running, id)
	r.runningMu.Unlock()
}

func (r *TaskRunner) isRunning(id uuid.UUID) bool {
	r.runningMu.Lock()
	defer r.runningMu.Unlock()

	_, ok := r.running[id]
	return ok
}

// stuckTaskMonitor periodically resets tasks that have been processing for
// longer than StuckTaskAge and requeues them. Tasks still executing in this
// runner are skipped however long they take.
func (r *TaskRunner) stuckTaskMonitor() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.StuckTaskCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return

		case <-ticker.C:
			r.resetStuckTasks()
		}
	}
}

func (r *TaskRunner) resetStuckTasks() {
	stuckTasks, err := r.store.GetProcessingTasks(r.ctx, r.config.StuckTaskAge)
	if err != nil {
		if r.ctx.Err() == nil {
			r.logger.Error("failed to check for stuck tasks", "error", err)
		}
		return
	}
	if len(stuckTasks) == 0 {
		return
	}

	for _, task := range stuckTasks {
		if r.isRunning(task.ID()) {
			r.logger.Debug("task still running, not resetting", "task_id", task.ID())
			continue
		}

		r.logger.Info("resetting stuck task",
			"task_id", task.ID(),
			"task_type", task.Type(),
			"stuck_for_more_than", r.config.StuckTaskAge)
		if err := r.store.UpdateTaskStatus(r.ctx, task.ID(), TaskStatusPending,
			"reset after being stuck in processing state"); err != nil {
			r.logger.Error("failed to reset stuck task status",
				"task_id", task.ID(),
				"task_type", task.Type(),
				"error", err)
			continue
		}
		r.requeue(task, "stuck")
	}
}
