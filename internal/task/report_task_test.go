package task

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/ereuna/internal/domain"
	"github.com/phrazzld/ereuna/internal/generation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeReportStore keeps reports in memory and records every status change.
type fakeReportStore struct {
	mu       sync.Mutex
	reports  map[uuid.UUID]*domain.Report
	statuses []domain.ReportStatus
	saveErr  error
	getErr   error
}

func newFakeReportStore(reports ...*domain.Report) *fakeReportStore {
	s := &fakeReportStore{reports: make(map[uuid.UUID]*domain.Report)}
	for _, r := range reports {
		s.reports[r.ID] = r
	}
	return s
}

func (s *fakeReportStore) GetReport(ctx context.Context, id uuid.UUID) (*domain.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.getErr != nil {
		return nil, s.getErr
	}
	r, ok := s.reports[id]
	if !ok {
		return nil, errors.New("report not found")
	}
	cp := *r
	cp.Sections = append([]domain.Section(nil), r.Sections...)
	return &cp, nil
}

func (s *fakeReportStore) UpdateReportStatus(ctx context.Context, id uuid.UUID, status domain.ReportStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.reports[id]; ok {
		r.Status = status
	}
	s.statuses = append(s.statuses, status)
	return nil
}

func (s *fakeReportStore) SaveSection(ctx context.Context, section *domain.Section) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.saveErr != nil {
		return s.saveErr
	}
	s.reports[section.ReportID].Sections[section.Position] = *section
	return nil
}

func (s *fakeReportStore) report(id uuid.UUID) domain.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.reports[id]
}

// scriptedCaller answers each prompt with fn and remembers the prompts.
type scriptedCaller struct {
	mu      sync.Mutex
	prompts []string
	fn      func(ctx context.Context, n int, prompt string) (string, error)
}

func (c *scriptedCaller) Call(ctx context.Context, prompt string) (string, error) {
	c.mu.Lock()
	n := len(c.prompts)
	c.prompts = append(c.prompts, prompt)
	c.mu.Unlock()
	return c.fn(ctx, n, prompt)
}

type staticSources struct {
	material string
	err      error
	urls     []string
}

func (s *staticSources) Sources(ctx context.Context, urls []string) (string, error) {
	s.urls = urls
	return s.material, s.err
}

func newTestReport(t *testing.T, urls ...string) *domain.Report {
	t.Helper()
	report, err := domain.NewReport(uuid.New(), domain.ReportInput{
		Topic:             "Urban heat islands",
		Keywords:          []string{"albedo", "tree cover"},
		ResearchQuestions: []string{"How much do green roofs cool a block?"},
		SourceURLs:        urls,
	})
	require.NoError(t, err)
	return report
}

func echoCaller() *scriptedCaller {
	return &scriptedCaller{fn: func(ctx context.Context, n int, prompt string) (string, error) {
		return "text " + string(rune('A'+n)), nil
	}}
}

func testDeps(store ReportStore, caller generation.PromptCaller) Dependencies {
	return Dependencies{
		Reports:      store,
		Caller:       caller,
		SystemPrompt: "You are a careful research assistant.",
		Logger:       setupTestLogger(),
	}
}

func TestNewReportGenerationTask_Validation(t *testing.T) {
	t.Parallel()

	store := newFakeReportStore()
	caller := echoCaller()

	tests := []struct {
		name     string
		reportID uuid.UUID
		deps     Dependencies
		wantErr  error
	}{
		{"nil store", uuid.New(), Dependencies{Caller: caller, Logger: setupTestLogger()}, ErrNilReportStore},
		{"nil caller", uuid.New(), Dependencies{Reports: store, Logger: setupTestLogger()}, ErrNilCaller},
		{"nil logger", uuid.New(), Dependencies{Reports: store, Caller: caller}, ErrNilLogger},
		{"nil report", uuid.Nil, testDeps(store, caller), ErrEmptyReportID},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewReportGenerationTask(tc.reportID, tc.deps)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestReportGenerationTask_Execute(t *testing.T) {
	t.Parallel()

	report := newTestReport(t)
	store := newFakeReportStore(report)
	caller := echoCaller()

	task, err := NewReportGenerationTask(report.ID, testDeps(store, caller))
	require.NoError(t, err)
	assert.Equal(t, TaskTypeReportGeneration, task.Type())
	assert.Equal(t, TaskStatusPending, task.Status())

	var payload map[string]string
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, report.ID.String(), payload["report_id"])

	require.NoError(t, task.Execute(context.Background()))
	assert.Equal(t, TaskStatusCompleted, task.Status())

	stored := store.report(report.ID)
	assert.Equal(t, domain.ReportStatusCompleted, stored.Status)
	assert.Equal(t, []domain.ReportStatus{domain.ReportStatusGenerating, domain.ReportStatusCompleted}, store.statuses)

	require.Len(t, caller.prompts, len(stored.Sections))
	for i, s := range stored.Sections {
		assert.Equal(t, domain.SectionStatusGenerated, s.Status)
		require.NotNil(t, s.GeneratedText)
		assert.Equal(t, "text "+string(rune('A'+i)), *s.GeneratedText)
		assert.Equal(t, caller.prompts[i], s.Prompt)
		assert.True(t, strings.HasPrefix(s.Prompt, "You are a careful research assistant."))
	}

	// Later prompts carry earlier sections.
	assert.NotContains(t, caller.prompts[0], "text A")
	assert.Contains(t, caller.prompts[2], "text A")
	assert.Contains(t, caller.prompts[2], "text B")
}

func TestReportGenerationTask_SectionFailuresDoNotFailTask(t *testing.T) {
	t.Parallel()

	report := newTestReport(t)
	store := newFakeReportStore(report)
	caller := &scriptedCaller{fn: func(ctx context.Context, n int, prompt string) (string, error) {
		if n == 1 {
			return "", &generation.CallError{Attempts: 3, Err: errors.New("503 from provider sk-secret")}
		}
		return "ok", nil
	}}

	task, err := NewReportGenerationTask(report.ID, testDeps(store, caller))
	require.NoError(t, err)
	require.NoError(t, task.Execute(context.Background()))

	stored := store.report(report.ID)
	assert.Equal(t, domain.ReportStatusCompletedWithErrors, stored.Status)

	failed := stored.Sections[1]
	assert.Equal(t, domain.SectionStatusFailed, failed.Status)
	assert.Nil(t, failed.GeneratedText)
	assert.NotContains(t, failed.ErrorMessage, "sk-secret")

	// Generation continued past the failed section.
	assert.Len(t, caller.prompts, len(stored.Sections))
}

func TestReportGenerationTask_AllSectionsFail(t *testing.T) {
	t.Parallel()

	report := newTestReport(t)
	store := newFakeReportStore(report)
	caller := &scriptedCaller{fn: func(ctx context.Context, n int, prompt string) (string, error) {
		return "", errors.New("unavailable")
	}}

	task, err := NewReportGenerationTask(report.ID, testDeps(store, caller))
	require.NoError(t, err)
	require.NoError(t, task.Execute(context.Background()))

	assert.Equal(t, domain.ReportStatusFailed, store.report(report.ID).Status)
}

func TestReportGenerationTask_Sources(t *testing.T) {
	t.Parallel()

	report := newTestReport(t, "https://example.com/heat")
	store := newFakeReportStore(report)
	caller := echoCaller()

	deps := testDeps(store, caller)
	sources := &staticSources{material: "Source: Heat (https://example.com/heat)\nRoofs are hot."}
	deps.Sources = sources

	task, err := NewReportGenerationTask(report.ID, deps)
	require.NoError(t, err)
	require.NoError(t, task.Execute(context.Background()))

	assert.Equal(t, []string{"https://example.com/heat"}, sources.urls)
	for _, prompt := range caller.prompts {
		assert.Contains(t, prompt, "Roofs are hot.")
	}
}

func TestReportGenerationTask_PrepareFailures(t *testing.T) {
	t.Parallel()

	t.Run("sources error marks report failed", func(t *testing.T) {
		t.Parallel()

		report := newTestReport(t, "https://example.com/heat")
		store := newFakeReportStore(report)
		caller := echoCaller()

		deps := testDeps(store, caller)
		deps.Sources = &staticSources{err: context.DeadlineExceeded}

		task, err := NewReportGenerationTask(report.ID, deps)
		require.NoError(t, err)

		err = task.Execute(context.Background())
		require.Error(t, err)
		assert.Equal(t, TaskStatusFailed, task.Status())
		assert.Equal(t, domain.ReportStatusFailed, store.report(report.ID).Status)
		assert.Empty(t, caller.prompts)
	})

	t.Run("missing report", func(t *testing.T) {
		t.Parallel()

		store := newFakeReportStore()
		store.getErr = errors.New("connection refused")

		task, err := NewReportGenerationTask(uuid.New(), testDeps(store, echoCaller()))
		require.NoError(t, err)

		err = task.Execute(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to load report")
	})
}

func TestReportGenerationTask_PersistFailure(t *testing.T) {
	t.Parallel()

	report := newTestReport(t)
	store := newFakeReportStore(report)
	store.saveErr = errors.New("disk full")

	task, err := NewReportGenerationTask(report.ID, testDeps(store, echoCaller()))
	require.NoError(t, err)

	err = task.Execute(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, domain.ReportStatusFailed, store.report(report.ID).Status)
}

func TestReportGenerationTask_Cancelled(t *testing.T) {
	t.Parallel()

	report := newTestReport(t)
	store := newFakeReportStore(report)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	caller := &scriptedCaller{fn: func(ctx context.Context, n int, prompt string) (string, error) {
		if n == 1 {
			cancel()
			return "", &generation.CallError{Aborted: true, Err: ctx.Err()}
		}
		return "ok", nil
	}}

	task, err := NewReportGenerationTask(report.ID, testDeps(store, caller))
	require.NoError(t, err)

	err = task.Execute(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	stored := store.report(report.ID)
	assert.Equal(t, domain.ReportStatusGenerating, stored.Status)
	assert.Equal(t, domain.SectionStatusGenerated, stored.Sections[0].Status)
	assert.Equal(t, domain.SectionStatusPending, stored.Sections[1].Status)
	assert.Len(t, caller.prompts, 2)
}

func generatedTestReport(t *testing.T, failAt int) *domain.Report {
	t.Helper()
	report := newTestReport(t)
	for i := range report.Sections {
		s := &report.Sections[i]
		if i == failAt {
			s.Status = domain.SectionStatusFailed
			s.ErrorMessage = "the section could not be generated"
			continue
		}
		text := "original " + s.Title
		s.GeneratedText = &text
		s.Status = domain.SectionStatusGenerated
	}
	report.Status = domain.ReportStatusCompletedWithErrors
	return report
}

func TestSectionRegenerationTask_Execute(t *testing.T) {
	t.Parallel()

	report := generatedTestReport(t, 2)
	store := newFakeReportStore(report)
	caller := &scriptedCaller{fn: func(ctx context.Context, n int, prompt string) (string, error) {
		return "regenerated", nil
	}}

	task, err := NewSectionRegenerationTask(report.ID, 2, "Cite two field studies.", testDeps(store, caller))
	require.NoError(t, err)
	assert.Equal(t, TaskTypeSectionRegeneration, task.Type())
	assert.Equal(t, 2, task.Position())

	var payload sectionRegenerationPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, report.ID, payload.ReportID)
	assert.Equal(t, 2, payload.Position)
	assert.Equal(t, "Cite two field studies.", payload.Instructions)

	require.NoError(t, task.Execute(context.Background()))

	require.Len(t, caller.prompts, 1)
	prompt := caller.prompts[0]
	assert.Contains(t, prompt, "original "+report.Sections[0].Title)
	assert.Contains(t, prompt, "original "+report.Sections[1].Title)
	assert.NotContains(t, prompt, "original "+report.Sections[3].Title)
	assert.Contains(t, prompt, "Cite two field studies.")

	stored := store.report(report.ID)
	assert.Equal(t, domain.ReportStatusCompleted, stored.Status)
	require.NotNil(t, stored.Sections[2].GeneratedText)
	assert.Equal(t, "regenerated", *stored.Sections[2].GeneratedText)
	assert.Equal(t, "original "+report.Sections[3].Title, *stored.Sections[3].GeneratedText)
}

func TestSectionRegenerationTask_FailureKeepsOtherSections(t *testing.T) {
	t.Parallel()

	report := generatedTestReport(t, -1)
	report.Status = domain.ReportStatusCompleted
	store := newFakeReportStore(report)
	caller := &scriptedCaller{fn: func(ctx context.Context, n int, prompt string) (string, error) {
		return "", &generation.CallError{Attempts: 4, Err: errors.New("timeout")}
	}}

	task, err := NewSectionRegenerationTask(report.ID, 0, "", testDeps(store, caller))
	require.NoError(t, err)
	require.NoError(t, task.Execute(context.Background()))

	stored := store.report(report.ID)
	assert.Equal(t, domain.ReportStatusCompletedWithErrors, stored.Status)
	assert.Equal(t, domain.SectionStatusFailed, stored.Sections[0].Status)
	assert.Equal(t, "the language model did not respond after 4 attempts", stored.Sections[0].ErrorMessage)
	assert.Equal(t, domain.SectionStatusGenerated, stored.Sections[1].Status)
}

func TestSectionRegenerationTask_OutOfRange(t *testing.T) {
	t.Parallel()

	report := generatedTestReport(t, -1)
	store := newFakeReportStore(report)
	caller := echoCaller()

	_, err := NewSectionRegenerationTask(report.ID, -1, "", testDeps(store, caller))
	assert.ErrorIs(t, err, ErrInvalidPayload)

	task, err := NewSectionRegenerationTask(report.ID, len(report.Sections), "", testDeps(store, caller))
	require.NoError(t, err)

	err = task.Execute(context.Background())
	assert.ErrorIs(t, err, generation.ErrSectionIndex)
	assert.Empty(t, caller.prompts)
	assert.Equal(t, domain.ReportStatusCompleted, store.report(report.ID).Status)
}

func TestReportTasks_Abort(t *testing.T) {
	t.Parallel()

	t.Run("generation marks report failed", func(t *testing.T) {
		t.Parallel()

		report := newTestReport(t)
		store := newFakeReportStore(report)
		task, err := NewReportGenerationTask(report.ID, testDeps(store, echoCaller()))
		require.NoError(t, err)

		var aborter Aborter = task
		aborter.Abort(context.Background(), errors.New("task store unavailable"))

		assert.Equal(t, TaskStatusFailed, task.Status())
		assert.Equal(t, domain.ReportStatusFailed, store.report(report.ID).Status)
	})

	t.Run("regeneration restores section status", func(t *testing.T) {
		t.Parallel()

		report := generatedTestReport(t, 1)
		report.Status = domain.ReportStatusGenerating
		store := newFakeReportStore(report)
		task, err := NewSectionRegenerationTask(report.ID, 1, "", testDeps(store, echoCaller()))
		require.NoError(t, err)

		task.Abort(context.Background(), errors.New("task store unavailable"))

		assert.Equal(t, TaskStatusFailed, task.Status())
		assert.Equal(t, domain.ReportStatusCompletedWithErrors, store.report(report.ID).Status)
	})

	t.Run("regeneration falls back to failed", func(t *testing.T) {
		t.Parallel()

		report := generatedTestReport(t, -1)
		report.Status = domain.ReportStatusGenerating
		store := newFakeReportStore(report)
		task, err := NewSectionRegenerationTask(report.ID, 0, "", testDeps(store, echoCaller()))
		require.NoError(t, err)

		store.mu.Lock()
		store.getErr = errors.New("connection reset")
		store.mu.Unlock()

		task.Abort(context.Background(), errors.New("task store unavailable"))
		assert.Equal(t, domain.ReportStatusFailed, store.report(report.ID).Status)
	})
}
