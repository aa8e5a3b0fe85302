package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/phrazzld/ereuna/internal/api/shared"
	"github.com/phrazzld/ereuna/internal/export"
	"github.com/phrazzld/ereuna/internal/platform/logger"
	"github.com/phrazzld/ereuna/internal/service"
)

// ReportHandler handles the report endpoints. Every route requires the auth
// middleware.
type ReportHandler struct {
	reportService service.ReportService
	logger        *slog.Logger
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(reportService service.ReportService, logger *slog.Logger) *ReportHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportHandler{
		reportService: reportService,
		logger:        logger.With(slog.String("component", "report_handler")),
	}
}

// CreateReport handles POST /api/reports. Generation runs in the background;
// the response is the pending report.
func (h *ReportHandler) CreateReport(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	sessionID, ok := shared.SessionIDFromContext(r.Context())
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Session not found")
		return
	}

	var req CreateReportRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	report, err := h.reportService.CreateReport(r.Context(), sessionID, req.toInput())
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	log.Debug("report accepted", slog.String("report_id", report.ID.String()))
	shared.RespondWithJSON(w, r, http.StatusAccepted, reportToResponse(report))
}

// ListReports handles GET /api/reports.
func (h *ReportHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := shared.SessionIDFromContext(r.Context())
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Session not found")
		return
	}

	reports, err := h.reportService.ListReports(r.Context(), sessionID)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	resp := ReportListResponse{Reports: make([]ReportResponse, 0, len(reports))}
	for _, report := range reports {
		item := reportToResponse(report)
		item.Sections = nil
		resp.Reports = append(resp.Reports, item)
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// GetReport handles GET /api/reports/{id}.
func (h *ReportHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	sessionID, reportID, ok := handleSessionAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	report, err := h.reportService.GetReport(r.Context(), sessionID, reportID)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, reportToResponse(report))
}

// RegenerateSection handles POST /api/reports/{id}/sections/{position}/regenerate.
// The body is optional.
func (h *ReportHandler) RegenerateSection(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	sessionID, reportID, ok := handleSessionAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	position, err := getPathInt(r, "position")
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	var req RegenerateSectionRequest
	if err := shared.DecodeJSON(r, &req); err != nil && !errors.Is(err, shared.ErrEmptyBody) {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	report, err := h.reportService.RegenerateSection(r.Context(), sessionID, reportID, position, req.Instructions)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	log.Debug("section regeneration accepted",
		slog.String("report_id", reportID.String()),
		slog.Int("position", position))
	shared.RespondWithJSON(w, r, http.StatusAccepted, reportToResponse(report))
}

// ExportReport handles GET /api/reports/{id}/export?format=markdown|html|pdf.
// The format defaults to markdown.
func (h *ReportHandler) ExportReport(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	sessionID, reportID, ok := handleSessionAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = export.FormatMarkdown
	}

	doc, err := h.reportService.ExportReport(r.Context(), sessionID, reportID, format)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	shared.RespondWithDocument(w, r, doc.ContentType, doc.Filename, doc.Body)
}

// AskReport handles POST /api/reports/{id}/ask. The answer is produced
// synchronously from the report's generated sections.
func (h *ReportHandler) AskReport(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	sessionID, reportID, ok := handleSessionAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	var req AskReportRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	answer, err := h.reportService.AskReport(r.Context(), sessionID, reportID, req.Question)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, AskReportResponse{Question: req.Question, Answer: answer})
}

// AnalyzeKeywords handles GET /api/reports/{id}/keywords.
func (h *ReportHandler) AnalyzeKeywords(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	sessionID, reportID, ok := handleSessionAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	analysis, err := h.reportService.AnalyzeKeywords(r.Context(), sessionID, reportID)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, analysis)
}
