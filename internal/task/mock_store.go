package task

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type mockRecord struct {
	task      Task
	status    TaskStatus
	errorMsg  string
	createdAt time.Time
	updatedAt time.Time
}

// MockTaskStore is an in-memory TaskStore for tests. Statuses are tracked by
// the store, independently of the Task values it holds.
type MockTaskStore struct {
	mutex   sync.RWMutex
	records map[uuid.UUID]*mockRecord

	SaveFn         func(ctx context.Context, task Task) error
	UpdateStatusFn func(ctx context.Context, taskID uuid.UUID, status TaskStatus, errorMsg string) error
}

var _ TaskStore = (*MockTaskStore)(nil)

// NewMockTaskStore creates an empty MockTaskStore.
func NewMockTaskStore() *MockTaskStore {
	return &MockTaskStore{records: make(map[uuid.UUID]*mockRecord)}
}

// SaveTask records task with its current status.
func (s *MockTaskStore) SaveTask(ctx context.Context, task Task) error {
	if s.SaveFn != nil {
		return s.SaveFn(ctx, task)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := time.Now()
	s.records[task.ID()] = &mockRecord{
		task:      task,
		status:    task.Status(),
		createdAt: now,
		updatedAt: now,
	}
	return nil
}

// UpdateTaskStatus changes the recorded status. Unknown IDs are ignored.
func (s *MockTaskStore) UpdateTaskStatus(ctx context.Context, taskID uuid.UUID, status TaskStatus, errorMsg string) error {
	if s.UpdateStatusFn != nil {
		return s.UpdateStatusFn(ctx, taskID, status, errorMsg)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	rec, ok := s.records[taskID]
	if !ok {
		return nil
	}
	rec.status = status
	rec.errorMsg = errorMsg
	rec.updatedAt = time.Now()
	return nil
}

// GetPendingTasks returns pending tasks, oldest first.
func (s *MockTaskStore) GetPendingTasks(ctx context.Context) ([]Task, error) {
	return s.tasksWithStatus(TaskStatusPending, 0), nil
}

// GetProcessingTasks returns processing tasks last updated more than
// olderThan ago, or all of them when olderThan is zero.
func (s *MockTaskStore) GetProcessingTasks(ctx context.Context, olderThan time.Duration) ([]Task, error) {
	return s.tasksWithStatus(TaskStatusProcessing, olderThan), nil
}

// WithTx returns the same store.
func (s *MockTaskStore) WithTx(tx *sql.Tx) TaskStore {
	return s
}

// StatusOf returns the recorded status and error message of a task.
func (s *MockTaskStore) StatusOf(taskID uuid.UUID) (TaskStatus, string, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	rec, ok := s.records[taskID]
	if !ok {
		return "", "", false
	}
	return rec.status, rec.errorMsg, true
}

// Backdate moves a task's last status change into the past.
func (s *MockTaskStore) Backdate(taskID uuid.UUID, age time.Duration) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if rec, ok := s.records[taskID]; ok {
		rec.updatedAt = time.Now().Add(-age)
	}
}

func (s *MockTaskStore) tasksWithStatus(status TaskStatus, olderThan time.Duration) []Task {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	cutoff := time.Now().Add(-olderThan)
	var recs []*mockRecord
	for _, rec := range s.records {
		if rec.status != status {
			continue
		}
		if olderThan > 0 && !rec.updatedAt.Before(cutoff) {
			continue
		}
		recs = append(recs, rec)
	}

	sort.Slice(recs, func(i, j int) bool { return recs[i].createdAt.Before(recs[j].createdAt) })

	tasks := make([]Task, len(recs))
	for i, rec := range recs {
		tasks[i] = rec.task
	}
	return tasks
}
