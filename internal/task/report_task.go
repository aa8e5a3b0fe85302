package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/ereuna/internal/domain"
	"github.com/phrazzld/ereuna/internal/generation"
	"github.com/phrazzld/ereuna/internal/platform/logger"
)

// Common errors
var (
	ErrNilReportStore = errors.New("report store cannot be nil")
	ErrNilCaller      = errors.New("prompt caller cannot be nil")
	ErrNilLogger      = errors.New("logger cannot be nil")
	ErrEmptyReportID  = errors.New("report ID cannot be empty")
	ErrInvalidPayload = errors.New("invalid task payload")
)

// ReportStore is the part of store.ReportStore the generation tasks use.
type ReportStore interface {
	GetReport(ctx context.Context, id uuid.UUID) (*domain.Report, error)
	UpdateReportStatus(ctx context.Context, id uuid.UUID, status domain.ReportStatus) error
	SaveSection(ctx context.Context, section *domain.Section) error
}

// SourceGatherer turns source URLs into prompt-ready source material.
type SourceGatherer interface {
	Sources(ctx context.Context, urls []string) (string, error)
}

// Dependencies are shared by every report task.
type Dependencies struct {
	Reports ReportStore

	// Sources may be nil, in which case source URLs are ignored.
	Sources SourceGatherer

	Caller       generation.PromptCaller
	SystemPrompt string
	Logger       *slog.Logger
}

func (d Dependencies) validate() error {
	if d.Reports == nil {
		return ErrNilReportStore
	}
	if d.Caller == nil {
		return ErrNilCaller
	}
	if d.Logger == nil {
		return ErrNilLogger
	}
	return nil
}

type reportGenerationPayload struct {
	ReportID uuid.UUID `json:"report_id"`
}

type sectionRegenerationPayload struct {
	ReportID     uuid.UUID `json:"report_id"`
	Position     int       `json:"position"`
	Instructions string    `json:"instructions,omitempty"`
}

// baseTask carries the identity and status shared by the report tasks.
type baseTask struct {
	id       uuid.UUID
	reportID uuid.UUID
	deps     Dependencies
	status   TaskStatus
}

func (t *baseTask) ID() uuid.UUID      { return t.id }
func (t *baseTask) Status() TaskStatus { return t.status }

// ReportID returns the report the task works on.
func (t *baseTask) ReportID() uuid.UUID { return t.reportID }

// chainer builds a Chainer that writes every finished section to the store.
// The first persistence failure is reported through persistErr.
func (t *baseTask) chainer(report *domain.Report, persistErr *error) (*generation.Chainer, error) {
	observer := func(ctx context.Context, index int, s generation.Section) {
		// Sections cut short by cancellation are regenerated on recovery.
		if ctx.Err() != nil {
			return
		}
		if err := report.ApplySection(index, s); err != nil {
			if *persistErr == nil {
				*persistErr = err
			}
			return
		}
		if err := t.deps.Reports.SaveSection(ctx, &report.Sections[index]); err != nil {
			logger.FromContext(ctx).ErrorContext(ctx, "failed to save section",
				"report_id", report.ID,
				"position", index,
				"error", err)
			if *persistErr == nil {
				*persistErr = err
			}
		}
	}

	return generation.NewChainer(t.deps.Caller,
		generation.WithSystemPrompt(t.deps.SystemPrompt),
		generation.WithObserver(observer))
}

// prepare loads the report, marks it generating and gathers its sources.
func (t *baseTask) prepare(ctx context.Context) (*domain.Report, generation.Vars, error) {
	report, err := t.deps.Reports.GetReport(ctx, t.reportID)
	if err != nil {
		return nil, generation.Vars{}, fmt.Errorf("failed to load report: %w", err)
	}

	if err := t.deps.Reports.UpdateReportStatus(ctx, report.ID, domain.ReportStatusGenerating); err != nil {
		return nil, generation.Vars{}, fmt.Errorf("failed to mark report generating: %w", err)
	}
	report.Status = domain.ReportStatusGenerating

	vars := report.Vars()
	if len(report.SourceURLs) > 0 && t.deps.Sources != nil {
		material, err := t.deps.Sources.Sources(ctx, report.SourceURLs)
		if err != nil {
			return nil, generation.Vars{}, fmt.Errorf("failed to gather sources: %w", err)
		}
		vars.Sources = material
	}

	return report, vars, nil
}

// finish records the status derived from the report's sections. A context
// cancelled mid-run leaves the report generating so that a recovered task can
// redo it.
func (t *baseTask) finish(ctx context.Context, report *domain.Report, persistErr error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	status := report.FinalStatus()
	if persistErr != nil {
		status = domain.ReportStatusFailed
	}

	if err := t.deps.Reports.UpdateReportStatus(ctx, report.ID, status); err != nil {
		return fmt.Errorf("failed to record report status %s: %w", status, err)
	}

	if persistErr != nil {
		return fmt.Errorf("failed to persist generated sections: %w", persistErr)
	}
	return nil
}

// fail marks the report failed after an error that stopped generation
// before any section could run.
func (t *baseTask) fail(ctx context.Context, cause error) error {
	if ctx.Err() != nil {
		return cause
	}
	if err := t.deps.Reports.UpdateReportStatus(ctx, t.reportID, domain.ReportStatusFailed); err != nil {
		logger.FromContext(ctx).ErrorContext(ctx, "failed to mark report failed",
			"report_id", t.reportID,
			"error", err)
	}
	return cause
}

// Abort marks the report failed when the task is dropped before it runs.
func (t *baseTask) Abort(ctx context.Context, cause error) {
	t.status = TaskStatusFailed
	t.deps.Logger.WarnContext(ctx, "task abandoned before execution", "error", cause)
	_ = t.fail(ctx, cause)
}

// ReportGenerationTask generates every section of a report in order.
type ReportGenerationTask struct {
	baseTask
}

// NewReportGenerationTask creates a pending task for reportID.
func NewReportGenerationTask(reportID uuid.UUID, deps Dependencies) (*ReportGenerationTask, error) {
	return newReportGenerationTask(uuid.New(), reportID, deps)
}

func newReportGenerationTask(id, reportID uuid.UUID, deps Dependencies) (*ReportGenerationTask, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if reportID == uuid.Nil {
		return nil, ErrEmptyReportID
	}

	deps.Logger = deps.Logger.With("task_type", TaskTypeReportGeneration, "report_id", reportID)
	return &ReportGenerationTask{baseTask{id: id, reportID: reportID, deps: deps, status: TaskStatusPending}}, nil
}

// Type returns TaskTypeReportGeneration.
func (t *ReportGenerationTask) Type() string {
	return TaskTypeReportGeneration
}

// Payload returns the JSON payload {report_id}.
func (t *ReportGenerationTask) Payload() []byte {
	data, _ := json.Marshal(reportGenerationPayload{ReportID: t.reportID})
	return data
}

// Execute generates the report. Section failures are recorded on the
// sections and do not fail the task.
func (t *ReportGenerationTask) Execute(ctx context.Context) error {
	t.status = TaskStatusProcessing
	log := logger.FromContextOrDefault(ctx, t.deps.Logger)
	ctx = logger.WithLogger(ctx, log)

	if err := ctx.Err(); err != nil {
		return err
	}

	report, vars, err := t.prepare(ctx)
	if err != nil {
		t.status = TaskStatusFailed
		return t.fail(ctx, err)
	}

	log.InfoContext(ctx, "generating report",
		"sections", len(report.Sections),
		"sources", len(report.SourceURLs))

	var persistErr error
	chainer, err := t.chainer(report, &persistErr)
	if err != nil {
		t.status = TaskStatusFailed
		return t.fail(ctx, err)
	}

	gen := chainer.Generate(ctx, report.Outline(), vars)

	if err := t.finish(ctx, report, persistErr); err != nil {
		t.status = TaskStatusFailed
		return err
	}

	t.status = TaskStatusCompleted
	log.InfoContext(ctx, "report generation finished",
		"status", report.FinalStatus(),
		"failed_sections", len(gen.Failed()))
	return nil
}

// SectionRegenerationTask regenerates one section of an existing report,
// using the sections before it as context.
type SectionRegenerationTask struct {
	baseTask
	position     int
	instructions string
}

// NewSectionRegenerationTask creates a pending task for the section at
// position. instructions, when non-empty, are appended to the prompt.
func NewSectionRegenerationTask(reportID uuid.UUID, position int, instructions string, deps Dependencies) (*SectionRegenerationTask, error) {
	return newSectionRegenerationTask(uuid.New(), reportID, position, instructions, deps)
}

func newSectionRegenerationTask(id, reportID uuid.UUID, position int, instructions string, deps Dependencies) (*SectionRegenerationTask, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if reportID == uuid.Nil {
		return nil, ErrEmptyReportID
	}
	if position < 0 {
		return nil, fmt.Errorf("%w: negative section position %d", ErrInvalidPayload, position)
	}

	deps.Logger = deps.Logger.With(
		"task_type", TaskTypeSectionRegeneration,
		"report_id", reportID,
		"position", position)
	return &SectionRegenerationTask{
		baseTask:     baseTask{id: id, reportID: reportID, deps: deps, status: TaskStatusPending},
		position:     position,
		instructions: instructions,
	}, nil
}

// Type returns TaskTypeSectionRegeneration.
func (t *SectionRegenerationTask) Type() string {
	return TaskTypeSectionRegeneration
}

// Position returns the section position being regenerated.
func (t *SectionRegenerationTask) Position() int {
	return t.position
}

// Payload returns the JSON payload {report_id, position, instructions}.
func (t *SectionRegenerationTask) Payload() []byte {
	data, _ := json.Marshal(sectionRegenerationPayload{
		ReportID:     t.reportID,
		Position:     t.position,
		Instructions: t.instructions,
	})
	return data
}

// Abort restores the report status its sections imply, since the report was
// complete before the regeneration was requested.
func (t *SectionRegenerationTask) Abort(ctx context.Context, cause error) {
	t.status = TaskStatusFailed
	t.deps.Logger.WarnContext(ctx, "task abandoned before execution", "error", cause)

	report, err := t.deps.Reports.GetReport(ctx, t.reportID)
	if err != nil {
		_ = t.fail(ctx, cause)
		return
	}
	if err := t.deps.Reports.UpdateReportStatus(ctx, t.reportID, report.FinalStatus()); err != nil {
		t.deps.Logger.ErrorContext(ctx, "failed to restore report status", "error", err)
	}
}

// Execute regenerates the section and recomputes the report status.
func (t *SectionRegenerationTask) Execute(ctx context.Context) error {
	t.status = TaskStatusProcessing
	log := logger.FromContextOrDefault(ctx, t.deps.Logger)
	ctx = logger.WithLogger(ctx, log)

	if err := ctx.Err(); err != nil {
		return err
	}

	report, vars, err := t.prepare(ctx)
	if err != nil {
		t.status = TaskStatusFailed
		return t.fail(ctx, err)
	}
	vars.Instructions = t.instructions

	var persistErr error
	chainer, err := t.chainer(report, &persistErr)
	if err != nil {
		t.status = TaskStatusFailed
		return t.fail(ctx, err)
	}

	if _, err := chainer.Regenerate(ctx, report.ToGeneration(), t.position, vars); err != nil {
		// The section no longer exists; restore the status the other
		// sections imply.
		t.status = TaskStatusFailed
		if finishErr := t.finish(ctx, report, nil); finishErr != nil {
			log.ErrorContext(ctx, "failed to restore report status", "error", finishErr)
		}
		return fmt.Errorf("failed to regenerate section: %w", err)
	}

	if err := t.finish(ctx, report, persistErr); err != nil {
		t.status = TaskStatusFailed
		return err
	}

	t.status = TaskStatusCompleted
	log.InfoContext(ctx, "section regenerated",
		"section_status", report.Sections[t.position].Status,
		"report_status", report.FinalStatus())
	return nil
}
