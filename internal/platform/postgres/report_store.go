package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/ereuna/internal/domain"
	"github.com/phrazzld/ereuna/internal/platform/logger"
	"github.com/phrazzld/ereuna/internal/store"
)

// PostgresReportStore implements store.ReportStore. Keywords, research
// questions and source URLs are stored as JSONB arrays.
type PostgresReportStore struct {
	db     store.DBTX
	logger *slog.Logger
}

var _ store.ReportStore = (*PostgresReportStore)(nil)

// NewPostgresReportStore creates a report store on db. A nil logger falls
// back to slog.Default.
func NewPostgresReportStore(db store.DBTX, logger *slog.Logger) *PostgresReportStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresReportStore{
		db:     db,
		logger: logger.With(slog.String("component", "report_store")),
	}
}

// WithTx returns a store that runs every query in tx.
func (s *PostgresReportStore) WithTx(tx *sql.Tx) store.ReportStore {
	return &PostgresReportStore{db: tx, logger: s.logger}
}

// CreateReport inserts report and its sections. When the store is not
// already bound to a transaction it opens one, so a report is never stored
// without its sections.
func (s *PostgresReportStore) CreateReport(ctx context.Context, report *domain.Report) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := report.Validate(); err != nil {
		log.Warn("report validation failed during create",
			slog.String("report_id", report.ID.String()),
			slog.String("error", err.Error()))
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	db, ok := s.db.(*sql.DB)
	if !ok {
		return s.insertReport(ctx, report)
	}

	return store.RunInTransaction(ctx, db, func(ctx context.Context, tx *sql.Tx) error {
		txStore := &PostgresReportStore{db: tx, logger: s.logger}
		return txStore.insertReport(ctx, report)
	})
}

func (s *PostgresReportStore) insertReport(ctx context.Context, report *domain.Report) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reports (id, session_id, topic, keywords, research_questions, source_urls,
			include_summary, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		report.ID,
		report.SessionID,
		report.Topic,
		encodeList(report.Keywords),
		encodeList(report.ResearchQuestions),
		encodeList(report.SourceURLs),
		report.IncludeSummary,
		report.Status,
		report.CreatedAt,
		report.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to insert report",
			slog.String("report_id", report.ID.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	for i := range report.Sections {
		sec := &report.Sections[i]
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO report_sections (id, report_id, position, title, prompt_template, prompt,
				generated_text, error_message, status, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			sec.ID,
			report.ID,
			sec.Position,
			sec.Title,
			sec.PromptTemplate,
			sec.Prompt,
			sec.GeneratedText,
			sec.ErrorMessage,
			sec.Status,
			sec.UpdatedAt,
		)
		if err != nil {
			log.Error("failed to insert report section",
				slog.String("report_id", report.ID.String()),
				slog.Int("position", sec.Position),
				slog.String("error", err.Error()))
			return MapError(err)
		}
	}

	log.Info("report created",
		slog.String("report_id", report.ID.String()),
		slog.Int("sections", len(report.Sections)))
	return nil
}

const reportColumns = `id, session_id, topic, keywords, research_questions, source_urls,
	include_summary, status, created_at, updated_at`

// GetReport returns the report with its sections in position order.
func (s *PostgresReportStore) GetReport(ctx context.Context, id uuid.UUID) (*domain.Report, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	row := s.db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = $1`, id)
	report, err := scanReport(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrReportNotFound
		}
		log.Error("failed to get report",
			slog.String("report_id", id.String()),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, report_id, position, title, prompt_template, prompt,
			generated_text, error_message, status, updated_at
		FROM report_sections
		WHERE report_id = $1
		ORDER BY position ASC`, id)
	if err != nil {
		log.Error("failed to query report sections",
			slog.String("report_id", id.String()),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var sec domain.Section
		var text sql.NullString
		var status string
		if err := rows.Scan(
			&sec.ID,
			&sec.ReportID,
			&sec.Position,
			&sec.Title,
			&sec.PromptTemplate,
			&sec.Prompt,
			&text,
			&sec.ErrorMessage,
			&status,
			&sec.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan report section: %w", err)
		}
		if text.Valid {
			sec.GeneratedText = &text.String
		}
		sec.Status = domain.SectionStatus(status)
		report.Sections = append(report.Sections, sec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating report sections: %w", err)
	}

	return report, nil
}

// ListReports returns the session's reports, newest first, without sections.
func (s *PostgresReportStore) ListReports(ctx context.Context, sessionID uuid.UUID) ([]*domain.Report, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+reportColumns+`
		FROM reports
		WHERE session_id = $1
		ORDER BY created_at DESC`, sessionID)
	if err != nil {
		log.Error("failed to list reports",
			slog.String("session_id", sessionID.String()),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	reports := make([]*domain.Report, 0)
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reports: %w", err)
	}

	return reports, nil
}

// UpdateReportStatus sets the report status and touches updated_at.
func (s *PostgresReportStore) UpdateReportStatus(ctx context.Context, id uuid.UUID, status domain.ReportStatus) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if !status.Valid() {
		return fmt.Errorf("%w: %w: %q", store.ErrInvalidEntity, domain.ErrInvalidReportStatus, status)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE reports SET status = $1, updated_at = $2 WHERE id = $3`,
		status, time.Now().UTC(), id)
	if err != nil {
		log.Error("failed to update report status",
			slog.String("report_id", id.String()),
			slog.String("status", string(status)),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	if err := CheckRowsAffected(result, store.ErrReportNotFound); err != nil {
		return err
	}

	log.Debug("report status updated",
		slog.String("report_id", id.String()),
		slog.String("status", string(status)))
	return nil
}

// SaveSection stores the generated state of the section matched by report
// ID and position.
func (s *PostgresReportStore) SaveSection(ctx context.Context, section *domain.Section) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	updatedAt := section.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE report_sections
		SET prompt = $1, generated_text = $2, error_message = $3, status = $4, updated_at = $5
		WHERE report_id = $6 AND position = $7`,
		section.Prompt,
		section.GeneratedText,
		section.ErrorMessage,
		section.Status,
		updatedAt,
		section.ReportID,
		section.Position,
	)
	if err != nil {
		log.Error("failed to save report section",
			slog.String("report_id", section.ReportID.String()),
			slog.Int("position", section.Position),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	return CheckRowsAffected(result, store.ErrSectionNotFound)
}

// HasActiveGeneration reports whether the session owns a report that is
// pending or generating.
func (s *PostgresReportStore) HasActiveGeneration(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	var active bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM reports
			WHERE session_id = $1 AND status IN ($2, $3)
		)`,
		sessionID, domain.ReportStatusPending, domain.ReportStatusGenerating,
	).Scan(&active)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to check active generation",
			slog.String("session_id", sessionID.String()),
			slog.String("error", err.Error()))
		return false, MapError(err)
	}
	return active, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*domain.Report, error) {
	var report domain.Report
	var keywords, questions, urls []byte
	var status string

	if err := row.Scan(
		&report.ID,
		&report.SessionID,
		&report.Topic,
		&keywords,
		&questions,
		&urls,
		&report.IncludeSummary,
		&status,
		&report.CreatedAt,
		&report.UpdatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if report.Keywords, err = decodeList(keywords); err != nil {
		return nil, fmt.Errorf("invalid keywords: %w", err)
	}
	if report.ResearchQuestions, err = decodeList(questions); err != nil {
		return nil, fmt.Errorf("invalid research questions: %w", err)
	}
	if report.SourceURLs, err = decodeList(urls); err != nil {
		return nil, fmt.Errorf("invalid source urls: %w", err)
	}
	report.Status = domain.ReportStatus(status)

	return &report, nil
}

func encodeList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func decodeList(data []byte) ([]string, error) {
	items := []string{}
	if len(data) == 0 {
		return items, nil
	}
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []string{}
	}
	return items, nil
}
