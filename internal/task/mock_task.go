package task

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
)

// MockTask is a configurable Task for tests.
type MockTask struct {
	mu          sync.Mutex
	TaskID      uuid.UUID
	TaskType    string
	TaskPayload []byte
	TaskStatus  TaskStatus
	ExecuteFn   func(ctx context.Context) error
}

// NewMockTask creates a pending MockTask whose Execute succeeds.
func NewMockTask(id uuid.UUID, taskType string, payload []byte) *MockTask {
	return &MockTask{
		TaskID:      id,
		TaskType:    taskType,
		TaskPayload: payload,
		TaskStatus:  TaskStatusPending,
	}
}

func (t *MockTask) ID() uuid.UUID { return t.TaskID }
func (t *MockTask) Type() string { return t.TaskType }
func (t *MockTask) Payload() []byte { return t.TaskPayload }

func (t *MockTask) Status() TaskStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.TaskStatus
}

// SetExecute replaces the function run by Execute.
func (t *MockTask) SetExecute(fn func(ctx context.Context) error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ExecuteFn = fn
}

// Execute runs ExecuteFn, or succeeds when none is set.
func (t *MockTask) Execute(ctx context.Context) error {
	t.mu.Lock()
	fn := t.ExecuteFn
	t.mu.Unlock()

	if fn == nil {
		return nil
	}
	return fn(ctx)
}

// CreateMockTaskWithPayload creates a MockTask carrying a small JSON payload.
func CreateMockTaskWithPayload(message string) *MockTask {
	data, _ := json.Marshal(map[string]string{"message": message})
	return NewMockTask(uuid.New(), "mock_task", data)
}
