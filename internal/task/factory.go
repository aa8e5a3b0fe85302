package task

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrUnknownTaskType is returned when a task type has no registered builder.
var ErrUnknownTaskType = errors.New("unknown task type")

// Factory creates report tasks, both new ones and ones rehydrated from the
// task store.
type Factory struct {
	deps Dependencies
}

var _ Builder = (*Factory)(nil)

// NewFactory creates a Factory sharing deps across every task it builds.
func NewFactory(deps Dependencies) (*Factory, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	deps.Logger = deps.Logger.With("component", "task_factory")
	return &Factory{deps: deps}, nil
}

// NewReportGenerationTask creates a task that generates the whole report.
func (f *Factory) NewReportGenerationTask(reportID uuid.UUID) (Task, error) {
	return NewReportGenerationTask(reportID, f.deps)
}

// NewSectionRegenerationTask creates a task that regenerates one section.
func (f *Factory) NewSectionRegenerationTask(reportID uuid.UUID, position int, instructions string) (Task, error) {
	return NewSectionRegenerationTask(reportID, position, instructions, f.deps)
}

// Build decodes payload for taskType and returns a task with the given ID
// and status.
func (f *Factory) Build(id uuid.UUID, taskType string, payload []byte, status TaskStatus) (Task, error) {
	if id == uuid.Nil {
		id = uuid.New()
	}

	switch taskType {
	case TaskTypeReportGeneration:
		var p reportGenerationPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		t, err := newReportGenerationTask(id, p.ReportID, f.deps)
		if err != nil {
			return nil, err
		}
		t.status = status
		return t, nil

	case TaskTypeSectionRegeneration:
		var p sectionRegenerationPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		t, err := newSectionRegenerationTask(id, p.ReportID, p.Position, p.Instructions, f.deps)
		if err != nil {
			return nil, err
		}
		t.status = status
		return t, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTaskType, taskType)
	}
}
