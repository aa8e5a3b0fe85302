package domain

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/ereuna/internal/generation"
)

// Input limits for a report request.
const (
	MaxTopicLength       = 500
	MaxKeywords          = 20
	MaxResearchQuestions = 20
	MaxSourceURLs        = 10
)

// ReportStatus represents the generation state of a report.
type ReportStatus string

// Possible report status values
const (
	ReportStatusPending             ReportStatus = "pending"
	ReportStatusGenerating          ReportStatus = "generating"
	ReportStatusCompleted           ReportStatus = "completed"
	ReportStatusCompletedWithErrors ReportStatus = "completed_with_errors"
	ReportStatusFailed              ReportStatus = "failed"
)

// IsTerminal reports whether no generation work remains for the status.
func (s ReportStatus) IsTerminal() bool {
	switch s {
	case ReportStatusCompleted, ReportStatusCompletedWithErrors, ReportStatusFailed:
		return true
	default:
		return false
	}
}

// SectionStatus represents the generation state of one section.
type SectionStatus string

// Possible section status values
const (
	SectionStatusPending   SectionStatus = "pending"
	SectionStatusGenerated SectionStatus = "generated"
	SectionStatusFailed    SectionStatus = "failed"
)

// Report is a research report on one topic, owned by the session that
// requested it. Sections are kept in document order; Position equals the
// index in Sections.
type Report struct {
	ID                uuid.UUID    `json:"id"`
	SessionID         uuid.UUID    `json:"session_id"`
	Topic             string       `json:"topic"`
	Keywords          []string     `json:"keywords"`
	ResearchQuestions []string     `json:"research_questions"`
	SourceURLs        []string     `json:"source_urls"`
	IncludeSummary    bool         `json:"include_summary"`
	Status            ReportStatus `json:"status"`
	Sections          []Section    `json:"sections"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// Section is one titled part of a report.
type Section struct {
	ID             uuid.UUID     `json:"id"`
	ReportID       uuid.UUID     `json:"report_id"`
	Position       int           `json:"position"`
	Title          string        `json:"title"`
	PromptTemplate string        `json:"prompt_template"`
	Prompt         string        `json:"prompt,omitempty"`
	GeneratedText  *string       `json:"generated_text,omitempty"`
	ErrorMessage   string        `json:"error_message,omitempty"`
	Status         SectionStatus `json:"status"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// ReportInput carries the user-supplied fields of a new report.
type ReportInput struct {
	Topic             string
	Keywords          []string
	ResearchQuestions []string
	SourceURLs        []string
	IncludeSummary    bool
}

// NewReport creates a pending report for sessionID with one pending section
// per entry of the default outline, followed by an executive summary when
// requested. Input strings are trimmed and empty list entries dropped.
func NewReport(sessionID uuid.UUID, in ReportInput) (*Report, error) {
	now := time.Now().UTC()

	report := &Report{
		ID:                uuid.New(),
		SessionID:         sessionID,
		Topic:             strings.TrimSpace(in.Topic),
		Keywords:          cleanList(in.Keywords),
		ResearchQuestions: cleanList(in.ResearchQuestions),
		SourceURLs:        cleanList(in.SourceURLs),
		IncludeSummary:    in.IncludeSummary,
		Status:            ReportStatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	outline := generation.DefaultOutline()
	if in.IncludeSummary {
		outline = append(outline, generation.ExecutiveSummarySpec())
	}

	report.Sections = make([]Section, len(outline))
	for i, spec := range outline {
		report.Sections[i] = Section{
			ID:             uuid.New(),
			ReportID:       report.ID,
			Position:       i,
			Title:          spec.Title,
			PromptTemplate: spec.PromptTemplate,
			Status:         SectionStatusPending,
			UpdatedAt:      now,
		}
	}

	if err := report.Validate(); err != nil {
		return nil, err
	}

	return report, nil
}

// Validate checks if the Report has valid data.
func (r *Report) Validate() error {
	if r.ID == uuid.Nil {
		return fmt.Errorf("%w: report ID cannot be empty", ErrInvalidID)
	}
	if r.SessionID == uuid.Nil {
		return fmt.Errorf("%w: session ID cannot be empty", ErrInvalidID)
	}
	if r.Topic == "" {
		return fmt.Errorf("%w: topic", ErrEmptyContent)
	}
	if len([]rune(r.Topic)) > MaxTopicLength {
		return fmt.Errorf("%w: topic exceeds %d characters", ErrValidation, MaxTopicLength)
	}
	if len(r.Keywords) > MaxKeywords {
		return fmt.Errorf("%w: at most %d keywords", ErrTooManyItems, MaxKeywords)
	}
	if len(r.ResearchQuestions) > MaxResearchQuestions {
		return fmt.Errorf("%w: at most %d research questions", ErrTooManyItems, MaxResearchQuestions)
	}
	if len(r.SourceURLs) > MaxSourceURLs {
		return fmt.Errorf("%w: at most %d source URLs", ErrTooManyItems, MaxSourceURLs)
	}
	for _, raw := range r.SourceURLs {
		if !isHTTPURL(raw) {
			return fmt.Errorf("%w: %q", ErrInvalidURL, raw)
		}
	}
	if !r.Status.Valid() {
		return ErrInvalidReportStatus
	}

	for i, s := range r.Sections {
		if s.Position != i {
			return fmt.Errorf("%w: section %d has position %d", ErrValidation, i, s.Position)
		}
		if strings.TrimSpace(s.Title) == "" {
			return fmt.Errorf("%w: section %d title", ErrEmptyContent, i)
		}
		if !isValidSectionStatus(s.Status) {
			return ErrInvalidSectionStatus
		}
	}

	return nil
}

// UpdateStatus updates the report's status and its UpdatedAt timestamp.
func (r *Report) UpdateStatus(status ReportStatus) error {
	if !status.Valid() {
		return ErrInvalidReportStatus
	}

	r.Status = status
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// Section returns a pointer to the section at position.
func (r *Report) Section(position int) (*Section, error) {
	if position < 0 || position >= len(r.Sections) {
		return nil, fmt.Errorf("%w: %d (report has %d sections)", ErrSectionOutOfRange, position, len(r.Sections))
	}
	return &r.Sections[position], nil
}

// Outline returns the section specs to generate, in order.
func (r *Report) Outline() []generation.SectionSpec {
	specs := make([]generation.SectionSpec, len(r.Sections))
	for i, s := range r.Sections {
		specs[i] = generation.SectionSpec{Title: s.Title, PromptTemplate: s.PromptTemplate}
	}
	return specs
}

// Vars returns the placeholder values for this report. Source material is
// gathered separately and filled in by the caller.
func (r *Report) Vars() generation.Vars {
	return generation.Vars{
		Topic:             r.Topic,
		Keywords:          r.Keywords,
		ResearchQuestions: r.ResearchQuestions,
	}
}

// errNotGenerated marks sections with no text when a stored report is turned
// back into chain input.
var errNotGenerated = errors.New("section has not been generated")

// ToGeneration converts the stored sections into chain output so a single
// section can be regenerated against its predecessors.
func (r *Report) ToGeneration() generation.Report {
	sections := make([]generation.Section, len(r.Sections))
	for i, s := range r.Sections {
		gs := generation.Section{
			Title:          s.Title,
			PromptTemplate: s.PromptTemplate,
			Prompt:         s.Prompt,
		}
		if s.Status == SectionStatusGenerated && s.GeneratedText != nil {
			gs.Text = *s.GeneratedText
		} else {
			gs.Err = errNotGenerated
		}
		sections[i] = gs
	}
	return generation.Report{Sections: sections}
}

// ApplySection records the outcome of generating the section at position.
func (r *Report) ApplySection(position int, gs generation.Section) error {
	s, err := r.Section(position)
	if err != nil {
		return err
	}
	if s.Title != gs.Title {
		return fmt.Errorf("%w: position %d is %q, got %q", ErrOutlineMismatch, position, s.Title, gs.Title)
	}

	s.Prompt = gs.Prompt
	s.UpdatedAt = time.Now().UTC()

	if gs.OK() {
		text := gs.Text
		s.GeneratedText = &text
		s.ErrorMessage = ""
		s.Status = SectionStatusGenerated
		return nil
	}

	s.GeneratedText = nil
	s.ErrorMessage = FailureMessage(gs.Err)
	s.Status = SectionStatusFailed
	return nil
}

// ApplyGenerated records every section of a chain run.
func (r *Report) ApplyGenerated(gen generation.Report) error {
	if len(gen.Sections) != len(r.Sections) {
		return fmt.Errorf("%w: expected %d sections, got %d", ErrOutlineMismatch, len(r.Sections), len(gen.Sections))
	}
	for i, gs := range gen.Sections {
		if err := r.ApplySection(i, gs); err != nil {
			return err
		}
	}
	return nil
}

// FinalStatus derives the report status from its sections: completed when
// every section was generated, failed when none was, and
// completed_with_errors otherwise. A report with pending sections is still
// generating.
func (r *Report) FinalStatus() ReportStatus {
	generated, failed := 0, 0
	for _, s := range r.Sections {
		switch s.Status {
		case SectionStatusGenerated:
			generated++
		case SectionStatusFailed:
			failed++
		default:
			return ReportStatusGenerating
		}
	}

	switch {
	case failed == 0:
		return ReportStatusCompleted
	case generated == 0:
		return ReportStatusFailed
	default:
		return ReportStatusCompletedWithErrors
	}
}

// FailureMessage turns a section generation error into a message that is
// safe to store and show to users. Provider error text is never included.
func FailureMessage(err error) string {
	var callErr *generation.CallError

	switch {
	case err == nil:
		return ""
	case errors.Is(err, generation.ErrContentBlocked):
		return "the language model declined to write this section"
	case errors.As(err, &callErr) && callErr.Aborted:
		return "generation was cancelled"
	case errors.Is(err, generation.ErrPermanent):
		switch generation.KindOf(err) {
		case generation.KindAuthentication:
			return "the language model rejected the service credentials"
		default:
			return "the language model rejected the request"
		}
	case errors.As(err, &callErr):
		return fmt.Sprintf("the language model did not respond after %d attempts", callErr.Attempts)
	default:
		return "the section could not be generated"
	}
}

// Valid reports whether s is one of the known report statuses.
func (s ReportStatus) Valid() bool {
	switch s {
	case ReportStatusPending, ReportStatusGenerating, ReportStatusCompleted,
		ReportStatusCompletedWithErrors, ReportStatusFailed:
		return true
	default:
		return false
	}
}

func isValidSectionStatus(status SectionStatus) bool {
	switch status {
	case SectionStatusPending, SectionStatusGenerated, SectionStatusFailed:
		return true
	default:
		return false
	}
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
