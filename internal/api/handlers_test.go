package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/ereuna/internal/api/shared"
	"github.com/phrazzld/ereuna/internal/domain"
	"github.com/phrazzld/ereuna/internal/export"
	"github.com/phrazzld/ereuna/internal/service"
)

// mockReportService records its arguments and returns the configured values.
type mockReportService struct {
	report  *domain.Report
	reports []*domain.Report
	doc      *export.Document
	answer   string
	analysis *domain.KeywordAnalysis
	err      error

	sessionID    uuid.UUID
	reportID     uuid.UUID
	input        domain.ReportInput
	position     int
	instructions string
	format       string
	question     string
}

var _ service.ReportService = (*mockReportService)(nil)

func (m *mockReportService) CreateReport(ctx context.Context, sessionID uuid.UUID, in domain.ReportInput) (*domain.Report, error) {
	m.sessionID, m.input = sessionID, in
	return m.report, m.err
}

func (m *mockReportService) GetReport(ctx context.Context, sessionID, reportID uuid.UUID) (*domain.Report, error) {
	m.sessionID, m.reportID = sessionID, reportID
	return m.report, m.err
}

func (m *mockReportService) ListReports(ctx context.Context, sessionID uuid.UUID) ([]*domain.Report, error) {
	m.sessionID = sessionID
	return m.reports, m.err
}

func (m *mockReportService) RegenerateSection(
	ctx context.Context,
	sessionID, reportID uuid.UUID,
	position int,
	instructions string,
) (*domain.Report, error) {
	m.sessionID, m.reportID, m.position, m.instructions = sessionID, reportID, position, instructions
	return m.report, m.err
}

func (m *mockReportService) ExportReport(ctx context.Context, sessionID, reportID uuid.UUID, format string) (*export.Document, error) {
	m.sessionID, m.reportID, m.format = sessionID, reportID, format
	return m.doc, m.err
}

func (m *mockReportService) AskReport(ctx context.Context, sessionID, reportID uuid.UUID, question string) (string, error) {
	m.sessionID, m.reportID, m.question = sessionID, reportID, question
	return m.answer, m.err
}

func (m *mockReportService) AnalyzeKeywords(ctx context.Context, sessionID, reportID uuid.UUID) (*domain.KeywordAnalysis, error) {
	m.sessionID, m.reportID = sessionID, reportID
	return m.analysis, m.err
}

// withSession stands in for the auth middleware.
func withSession(sessionID uuid.UUID) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(shared.WithSessionID(r.Context(), sessionID)))
		})
	}
}

// newReportRouter mounts the report routes the way cmd/server does.
func newReportRouter(h *ReportHandler, sessionID uuid.UUID) http.Handler {
	r := chi.NewRouter()
	r.Route("/api/reports", func(r chi.Router) {
		if sessionID != uuid.Nil {
			r.Use(withSession(sessionID))
		}
		r.Post("/", h.CreateReport)
		r.Get("/", h.ListReports)
		r.Get("/{id}", h.GetReport)
		r.Post("/{id}/sections/{position}/regenerate", h.RegenerateSection)
		r.Get("/{id}/export", h.ExportReport)
		r.Post("/{id}/ask", h.AskReport)
		r.Get("/{id}/keywords", h.AnalyzeKeywords)
	})
	return r
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}
