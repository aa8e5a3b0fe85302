package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/ereuna/internal/api"
	apiMiddleware "github.com/phrazzld/ereuna/internal/api/middleware"
	"github.com/phrazzld/ereuna/internal/domain"
	"github.com/phrazzld/ereuna/internal/export"
	"github.com/phrazzld/ereuna/internal/service/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubReportService struct {
	listedFor uuid.UUID
}

func (s *stubReportService) CreateReport(ctx context.Context, sessionID uuid.UUID, in domain.ReportInput) (*domain.Report, error) {
	return domain.NewReport(sessionID, in)
}

func (s *stubReportService) GetReport(ctx context.Context, sessionID, reportID uuid.UUID) (*domain.Report, error) {
	return nil, domain.ErrValidation
}

func (s *stubReportService) ListReports(ctx context.Context, sessionID uuid.UUID) ([]*domain.Report, error) {
	s.listedFor = sessionID
	return nil, nil
}

func (s *stubReportService) RegenerateSection(ctx context.Context, sessionID, reportID uuid.UUID, position int, instructions string) (*domain.Report, error) {
	return nil, domain.ErrValidation
}

func (s *stubReportService) ExportReport(ctx context.Context, sessionID, reportID uuid.UUID, format string) (*export.Document, error) {
	return nil, domain.ErrValidation
}

func (s *stubReportService) AskReport(ctx context.Context, sessionID, reportID uuid.UUID, question string) (string, error) {
	return "", domain.ErrValidation
}

func (s *stubReportService) AnalyzeKeywords(ctx context.Context, sessionID, reportID uuid.UUID) (*domain.KeywordAnalysis, error) {
	return nil, domain.ErrValidation
}

type stubAuthenticator struct{}

func (stubAuthenticator) Authenticate(ctx context.Context, username, password string) error {
	if username == "operator" && password == "correct horse" {
		return nil
	}
	return auth.ErrInvalidCredentials
}

func testRouter(t *testing.T) (http.Handler, *stubReportService, *auth.MockJWTService) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	jwtService := auth.NewMockJWTService()
	reports := &stubReportService{}

	return newRouter(routerDeps{
		authHandler:    api.NewAuthHandler(stubAuthenticator{}, jwtService, logger),
		reportHandler:  api.NewReportHandler(reports, logger),
		authMiddleware: apiMiddleware.NewAuthMiddleware(jwtService),
	}), reports, jwtService
}

func TestRouter_Health(t *testing.T) {
	t.Parallel()

	router, _, _ := testRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestRouter_ReportRoutesRequireAuth(t *testing.T) {
	t.Parallel()

	router, _, _ := testRouter(t)
	id := uuid.New().String()

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/reports"},
		{http.MethodGet, "/api/reports"},
		{http.MethodGet, "/api/reports/" + id},
		{http.MethodPost, "/api/reports/" + id + "/sections/0/regenerate"},
		{http.MethodGet, "/api/reports/" + id + "/export"},
		{http.MethodPost, "/api/reports/" + id + "/ask"},
		{http.MethodGet, "/api/reports/" + id + "/keywords"},
	}

	for _, route := range routes {
		route := route
		t.Run(route.method+" "+route.path, func(t *testing.T) {
			t.Parallel()

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(route.method, route.path, nil))
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestRouter_AuthenticatedRequestReachesHandler(t *testing.T) {
	t.Parallel()

	router, reports, jwtService := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/reports", nil)
	req.Header.Set("Authorization", "Bearer "+jwtService.Token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, jwtService.Claims.SessionID, reports.listedFor)
	assert.NotEmpty(t, rec.Header().Get(apiMiddleware.TraceIDHeader))
}

func TestRouter_Login(t *testing.T) {
	t.Parallel()

	router, _, jwtService := testRouter(t)

	body := strings.NewReader(`{"username":"operator","password":"correct horse"}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", body))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp api.AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, jwtService.Token, resp.AccessToken)
	assert.Equal(t, jwtService.RefreshToken, resp.RefreshToken)

	rec = httptest.NewRecorder()
	bad := strings.NewReader(`{"username":"operator","password":"wrong"}`)
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", bad))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
