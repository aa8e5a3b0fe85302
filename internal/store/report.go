package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/ereuna/internal/domain"
)

// ReportStore persists reports and their sections.
type ReportStore interface {
	// CreateReport saves a new report together with all of its sections.
	// Returns ErrInvalidEntity if the report fails domain validation.
	CreateReport(ctx context.Context, report *domain.Report) error

	// GetReport returns the report with its sections ordered by position.
	// Returns ErrReportNotFound if the report does not exist.
	GetReport(ctx context.Context, id uuid.UUID) (*domain.Report, error)

	// ListReports returns the session's reports, newest first, without sections.
	ListReports(ctx context.Context, sessionID uuid.UUID) ([]*domain.Report, error)

	// UpdateReportStatus sets the status of a report.
	// Returns ErrReportNotFound if the report does not exist.
	UpdateReportStatus(ctx context.Context, id uuid.UUID, status domain.ReportStatus) error

	// SaveSection stores the generated state of one section, matched by
	// report ID and position.
	// Returns ErrSectionNotFound if no such section exists.
	SaveSection(ctx context.Context, section *domain.Section) error

	// HasActiveGeneration reports whether the session owns a report that is
	// pending or generating.
	HasActiveGeneration(ctx context.Context, sessionID uuid.UUID) (bool, error)

	// WithTx returns a ReportStore that runs every query in tx.
	WithTx(tx *sql.Tx) ReportStore
}
