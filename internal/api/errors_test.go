package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/phrazzld/ereuna/internal/api/shared"
	"github.com/phrazzld/ereuna/internal/domain"
	"github.com/phrazzld/ereuna/internal/service"
	"github.com/phrazzld/ereuna/internal/service/auth"
	"github.com/phrazzld/ereuna/internal/store"
	"github.com/stretchr/testify/assert"
)

func TestMapErrorToStatusCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid token", auth.ErrInvalidToken, http.StatusUnauthorized},
		{"wrong token type", auth.ErrWrongTokenType, http.StatusUnauthorized},
		{"invalid credentials", auth.ErrInvalidCredentials, http.StatusUnauthorized},
		{"not owned", service.ErrReportNotOwned, http.StatusForbidden},
		{"not found", service.ErrReportNotFound, http.StatusNotFound},
		{"store not found", fmt.Errorf("get: %w", store.ErrReportNotFound), http.StatusNotFound},
		{"invalid section", fmt.Errorf("%w: 9", service.ErrInvalidSection), http.StatusNotFound},
		{"in progress", service.ErrGenerationInProgress, http.StatusConflict},
		{"invalid report", fmt.Errorf("%w: %w", service.ErrInvalidReport, domain.ErrEmptyContent), http.StatusBadRequest},
		{"unsupported format", service.ErrUnsupportedFormat, http.StatusBadRequest},
		{"invalid question", fmt.Errorf("%w: empty", service.ErrInvalidQuestion), http.StatusBadRequest},
		{"not ready", service.ErrReportNotReady, http.StatusConflict},
		{"answer failed", fmt.Errorf("%w: timeout", service.ErrAnswerFailed), http.StatusBadGateway},
		{"bad path", fmt.Errorf("%w: id", errInvalidPath), http.StatusBadRequest},
		{"service error", service.NewServiceError("get_report", "db down", errors.New("timeout")), http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, MapErrorToStatusCode(tc.err))
		})
	}
}

func TestGetSafeErrorMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, "An unexpected error occurred"},
		{"credentials", auth.ErrInvalidCredentials, "Invalid credentials"},
		{"expired", auth.ErrExpiredToken, "Invalid token"},
		{"refresh", auth.ErrExpiredRefreshToken, "Invalid refresh token"},
		{"not owned", service.ErrReportNotOwned, "You do not own this report"},
		{"not found", service.ErrReportNotFound, "Report not found"},
		{"section", service.ErrInvalidSection, "Section not found"},
		{"in progress", service.ErrGenerationInProgress, "A report is already being generated for this session"},
		{"format", service.ErrUnsupportedFormat, "Unsupported export format; use markdown, html or pdf"},
		{"question", service.ErrInvalidQuestion, "Question must be between 1 and 2000 characters"},
		{"not ready", service.ErrReportNotReady, "The report has no generated sections yet"},
		{"answer", fmt.Errorf("%w: key=sk-secret", service.ErrAnswerFailed), "The language model could not answer the question; try again later"},
		{"empty topic", fmt.Errorf("%w: %w", service.ErrInvalidReport, domain.ErrEmptyContent), "Topic is required"},
		{"bad url", fmt.Errorf("%w: %w", service.ErrInvalidReport, domain.ErrInvalidURL), "Source URLs must be absolute http or https URLs"},
		{"other invalid", fmt.Errorf("%w: %w", service.ErrInvalidReport, domain.ErrValidation), "Invalid report request"},
		{"internal", errors.New("pq: password authentication failed for user app"), "An unexpected error occurred"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, GetSafeErrorMessage(tc.err))
		})
	}
}

func TestGetSafeErrorMessage_TooManyItems(t *testing.T) {
	t.Parallel()

	msg := GetSafeErrorMessage(fmt.Errorf("%w: %w", service.ErrInvalidReport, domain.ErrTooManyItems))
	assert.Contains(t, msg, "at most 20 keywords")
}

func TestSanitizeValidationError(t *testing.T) {
	t.Parallel()

	err := shared.ValidateRequest(&CreateReportRequest{})
	assert.Equal(t, "Invalid topic: required field", SanitizeValidationError(err))

	err = shared.ValidateRequest(&CreateReportRequest{Topic: "t", SourceURLs: []string{"not a url"}})
	assert.Equal(t, "Invalid source_urls[0]: invalid URL", SanitizeValidationError(err))

	err = shared.ValidateRequest(&RegenerateSectionRequest{Instructions: string(make([]byte, 2001))})
	assert.Equal(t, "Invalid instructions: at most 2000", SanitizeValidationError(err))

	assert.Equal(t, "Validation error", SanitizeValidationError(errors.New("other")))
}
