package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/phrazzld/ereuna/internal/domain"
	"github.com/phrazzld/ereuna/internal/events"
	"github.com/phrazzld/ereuna/internal/export"
	"github.com/phrazzld/ereuna/internal/generation"
	"github.com/phrazzld/ereuna/internal/platform/logger"
	"github.com/phrazzld/ereuna/internal/redact"
	"github.com/phrazzld/ereuna/internal/store"
	"github.com/phrazzld/ereuna/internal/task"
)

// ReportService provides the report use cases. Every method takes the
// session ID of the caller and only operates on that session's reports.
type ReportService interface {
	// CreateReport validates in, stores a pending report and requests its
	// generation. Returns ErrGenerationInProgress while another report of
	// the session is pending or generating.
	CreateReport(ctx context.Context, sessionID uuid.UUID, in domain.ReportInput) (*domain.Report, error)

	// GetReport returns the report with its sections.
	GetReport(ctx context.Context, sessionID, reportID uuid.UUID) (*domain.Report, error)

	// ListReports returns the session's reports, newest first, without sections.
	ListReports(ctx context.Context, sessionID uuid.UUID) ([]*domain.Report, error)

	// RegenerateSection requests a new version of the section at position.
	// instructions, when non-empty, are added to the prompt.
	RegenerateSection(ctx context.Context, sessionID, reportID uuid.UUID, position int, instructions string) (*domain.Report, error)

	// ExportReport renders the report as markdown, html or pdf.
	ExportReport(ctx context.Context, sessionID, reportID uuid.UUID, format string) (*export.Document, error)

	// AskReport answers question from the report's generated sections.
	AskReport(ctx context.Context, sessionID, reportID uuid.UUID, question string) (string, error)

	// AnalyzeKeywords reports how the generated text uses the report's
	// keywords.
	AnalyzeKeywords(ctx context.Context, sessionID, reportID uuid.UUID) (*domain.KeywordAnalysis, error)
}

// MaxQuestionLength is the longest question AskReport accepts, in runes.
const MaxQuestionLength = 2000

type reportServiceImpl struct {
	reports      store.ReportStore
	eventEmitter events.EventEmitter
	caller       generation.PromptCaller
	systemPrompt string
	logger       *slog.Logger

	// sessionLocks serializes the in-flight check and the report write per
	// session. Entries live only while a request of the session holds or
	// waits for the lock.
	locksMu      sync.Mutex
	sessionLocks map[uuid.UUID]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// NewReportService creates a ReportService. caller answers questions about
// reports, with systemPrompt prefixed to every question prompt. It returns an
// error if a required dependency is nil.
func NewReportService(
	reports store.ReportStore,
	eventEmitter events.EventEmitter,
	caller generation.PromptCaller,
	systemPrompt string,
	logger *slog.Logger,
) (ReportService, error) {
	if reports == nil {
		return nil, &ServiceError{Operation: "create_service", Message: "reports cannot be nil"}
	}
	if eventEmitter == nil {
		return nil, &ServiceError{Operation: "create_service", Message: "eventEmitter cannot be nil"}
	}
	if caller == nil {
		return nil, &ServiceError{Operation: "create_service", Message: "caller cannot be nil"}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &reportServiceImpl{
		reports:      reports,
		eventEmitter: eventEmitter,
		caller:       caller,
		systemPrompt: systemPrompt,
		logger:       logger.With("component", "report_service"),
		sessionLocks: make(map[uuid.UUID]*sessionLock),
	}, nil
}

func (s *reportServiceImpl) lockSession(sessionID uuid.UUID) func() {
	s.locksMu.Lock()
	l, ok := s.sessionLocks[sessionID]
	if !ok {
		l = &sessionLock{}
		s.sessionLocks[sessionID] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		s.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.sessionLocks, sessionID)
		}
		s.locksMu.Unlock()
	}
}

// CreateReport stores a new report and emits its generation event.
func (s *reportServiceImpl) CreateReport(ctx context.Context, sessionID uuid.UUID, in domain.ReportInput) (*domain.Report, error) {
	log := logger.FromContextOrDefault(ctx, s.logger).With("session_id", sessionID)

	report, err := domain.NewReport(sessionID, in)
	if err != nil {
		log.Warn("invalid report request", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrInvalidReport, err)
	}

	unlock := s.lockSession(sessionID)
	defer unlock()

	active, err := s.reports.HasActiveGeneration(ctx, sessionID)
	if err != nil {
		return nil, NewServiceError("create_report", "failed to check active generation", err)
	}
	if active {
		log.Info("report rejected, generation already in progress")
		return nil, ErrGenerationInProgress
	}

	if err := s.reports.CreateReport(ctx, report); err != nil {
		log.Error("failed to save report", "error", err, "report_id", report.ID)
		return nil, NewServiceError("create_report", "failed to save report", err)
	}

	payload := map[string]uuid.UUID{"report_id": report.ID}
	if err := s.emit(ctx, task.TaskTypeReportGeneration, payload); err != nil {
		// Without a task the report would block the session forever.
		if updateErr := s.reports.UpdateReportStatus(ctx, report.ID, domain.ReportStatusFailed); updateErr != nil {
			log.Error("failed to mark unscheduled report failed", "error", updateErr, "report_id", report.ID)
		}
		return nil, NewServiceError("create_report", "failed to schedule generation", err)
	}

	log.Info("report created and generation requested",
		"report_id", report.ID,
		"sections", len(report.Sections))
	return report, nil
}

// GetReport returns the report if the session owns it.
func (s *reportServiceImpl) GetReport(ctx context.Context, sessionID, reportID uuid.UUID) (*domain.Report, error) {
	report, err := s.reports.GetReport(ctx, reportID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrReportNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to retrieve report",
			"error", err,
			"report_id", reportID)
		return nil, NewServiceError("get_report", "failed to retrieve report", err)
	}

	if report.SessionID != sessionID {
		logger.FromContextOrDefault(ctx, s.logger).Warn("report requested by another session",
			"report_id", reportID,
			"session_id", sessionID)
		return nil, ErrReportNotOwned
	}

	return report, nil
}

// ListReports returns the session's reports.
func (s *reportServiceImpl) ListReports(ctx context.Context, sessionID uuid.UUID) ([]*domain.Report, error) {
	reports, err := s.reports.ListReports(ctx, sessionID)
	if err != nil {
		return nil, NewServiceError("list_reports", "failed to list reports", err)
	}
	return reports, nil
}

// RegenerateSection marks the report generating and emits a regeneration
// event for one section.
func (s *reportServiceImpl) RegenerateSection(
	ctx context.Context,
	sessionID, reportID uuid.UUID,
	position int,
	instructions string,
) (*domain.Report, error) {
	log := logger.FromContextOrDefault(ctx, s.logger).With(
		"session_id", sessionID,
		"report_id", reportID,
		"position", position)

	unlock := s.lockSession(sessionID)
	defer unlock()

	report, err := s.GetReport(ctx, sessionID, reportID)
	if err != nil {
		return nil, err
	}

	if _, err := report.Section(position); err != nil {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSection, position)
	}

	active, err := s.reports.HasActiveGeneration(ctx, sessionID)
	if err != nil {
		return nil, NewServiceError("regenerate_section", "failed to check active generation", err)
	}
	if active {
		log.Info("regeneration rejected, generation already in progress")
		return nil, ErrGenerationInProgress
	}

	previous := report.Status
	if err := s.reports.UpdateReportStatus(ctx, reportID, domain.ReportStatusGenerating); err != nil {
		return nil, NewServiceError("regenerate_section", "failed to mark report generating", err)
	}
	report.Status = domain.ReportStatusGenerating

	payload := struct {
		ReportID     uuid.UUID `json:"report_id"`
		Position     int       `json:"position"`
		Instructions string    `json:"instructions,omitempty"`
	}{reportID, position, instructions}

	if err := s.emit(ctx, task.TaskTypeSectionRegeneration, payload); err != nil {
		if restoreErr := s.reports.UpdateReportStatus(ctx, reportID, previous); restoreErr != nil {
			log.Error("failed to restore report status", "error", restoreErr)
		}
		return nil, NewServiceError("regenerate_section", "failed to schedule regeneration", err)
	}

	log.Info("section regeneration requested")
	return report, nil
}

// ExportReport renders the session's report in format.
func (s *reportServiceImpl) ExportReport(ctx context.Context, sessionID, reportID uuid.UUID, format string) (*export.Document, error) {
	if !export.Supported(format) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	report, err := s.GetReport(ctx, sessionID, reportID)
	if err != nil {
		return nil, err
	}

	doc, err := export.Render(report, format)
	if err != nil {
		return nil, NewServiceError("export_report", "failed to render report", err)
	}
	return doc, nil
}

// AskReport sends the question and the report content to the language model
// through the retrying caller. Provider error text never reaches the caller of
// AskReport.
func (s *reportServiceImpl) AskReport(ctx context.Context, sessionID, reportID uuid.UUID, question string) (string, error) {
	log := logger.FromContextOrDefault(ctx, s.logger).With(
		"session_id", sessionID,
		"report_id", reportID)

	question = strings.TrimSpace(question)
	if question == "" {
		return "", fmt.Errorf("%w: question is empty", ErrInvalidQuestion)
	}
	if n := utf8.RuneCountInString(question); n > MaxQuestionLength {
		return "", fmt.Errorf("%w: %d characters, at most %d allowed", ErrInvalidQuestion, n, MaxQuestionLength)
	}

	report, err := s.GetReport(ctx, sessionID, reportID)
	if err != nil {
		return "", err
	}

	content := report.Content()
	if content == "" {
		return "", ErrReportNotReady
	}

	answer, err := s.caller.Call(ctx, generation.BuildQuestionPrompt(s.systemPrompt, content, question))
	if err != nil {
		log.Warn("question could not be answered",
			"error", redact.Error(err),
			"kind", generation.KindOf(err))
		return "", fmt.Errorf("%w: %s", ErrAnswerFailed, domain.FailureMessage(err))
	}

	log.Info("question answered", "answer_chars", utf8.RuneCountInString(answer))
	return strings.TrimSpace(answer), nil
}

// AnalyzeKeywords analyzes the generated sections against the report's
// keywords.
func (s *reportServiceImpl) AnalyzeKeywords(ctx context.Context, sessionID, reportID uuid.UUID) (*domain.KeywordAnalysis, error) {
	report, err := s.GetReport(ctx, sessionID, reportID)
	if err != nil {
		return nil, err
	}

	content := report.Content()
	if content == "" {
		return nil, ErrReportNotReady
	}

	analysis := domain.AnalyzeKeywords(content, report.Keywords, domain.DefaultTopWords)
	return &analysis, nil
}

func (s *reportServiceImpl) emit(ctx context.Context, eventType string, payload any) error {
	event, err := events.NewTaskRequestEvent(eventType, payload)
	if err != nil {
		return err
	}
	if err := s.eventEmitter.EmitEvent(ctx, event); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to emit event",
			"error", err,
			"event_id", event.ID,
			"event_type", eventType)
		return err
	}
	return nil
}
