package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/ereuna/internal/api/shared"
	"github.com/phrazzld/ereuna/internal/domain"
	"github.com/phrazzld/ereuna/internal/service"
	"github.com/phrazzld/ereuna/internal/service/auth"
	"github.com/phrazzld/ereuna/internal/store"
)

// errInvalidPath is returned for malformed path parameters.
var errInvalidPath = errors.New("invalid path parameter")

// MapErrorToStatusCode maps internal errors to HTTP status codes.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrInvalidRefreshToken),
		errors.Is(err, auth.ErrExpiredRefreshToken),
		errors.Is(err, auth.ErrWrongTokenType),
		errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized

	case errors.Is(err, service.ErrReportNotOwned):
		return http.StatusForbidden

	case errors.Is(err, service.ErrReportNotFound),
		errors.Is(err, service.ErrInvalidSection),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, service.ErrGenerationInProgress),
		errors.Is(err, service.ErrReportNotReady):
		return http.StatusConflict

	case errors.Is(err, service.ErrAnswerFailed):
		return http.StatusBadGateway

	case errors.Is(err, service.ErrInvalidReport),
		errors.Is(err, service.ErrInvalidQuestion),
		errors.Is(err, service.ErrUnsupportedFormat),
		errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, errInvalidPath):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client-facing message for err.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return "Invalid credentials"

	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid):
		return "Invalid token"

	case errors.Is(err, auth.ErrInvalidRefreshToken),
		errors.Is(err, auth.ErrExpiredRefreshToken),
		errors.Is(err, auth.ErrWrongTokenType):
		return "Invalid refresh token"

	case errors.Is(err, service.ErrReportNotOwned):
		return "You do not own this report"

	case errors.Is(err, service.ErrReportNotFound),
		errors.Is(err, store.ErrReportNotFound):
		return "Report not found"

	case errors.Is(err, service.ErrInvalidSection):
		return "Section not found"

	case errors.Is(err, service.ErrGenerationInProgress):
		return "A report is already being generated for this session"

	case errors.Is(err, service.ErrUnsupportedFormat):
		return "Unsupported export format; use markdown, html or pdf"

	case errors.Is(err, service.ErrInvalidReport):
		return invalidReportMessage(err)

	case errors.Is(err, service.ErrInvalidQuestion):
		return fmt.Sprintf("Question must be between 1 and %d characters", service.MaxQuestionLength)

	case errors.Is(err, service.ErrReportNotReady):
		return "The report has no generated sections yet"

	case errors.Is(err, service.ErrAnswerFailed):
		return "The language model could not answer the question; try again later"

	case errors.Is(err, errInvalidPath):
		return "Invalid path parameter"

	default:
		return "An unexpected error occurred"
	}
}

// invalidReportMessage names the rule a report request broke. The domain
// error texts contain only field names and limits.
func invalidReportMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrEmptyContent):
		return "Topic is required"
	case errors.Is(err, domain.ErrTooManyItems):
		return fmt.Sprintf("Too many items: at most %d keywords, %d research questions and %d source URLs",
			domain.MaxKeywords, domain.MaxResearchQuestions, domain.MaxSourceURLs)
	case errors.Is(err, domain.ErrInvalidURL):
		return "Source URLs must be absolute http or https URLs"
	default:
		return "Invalid report request"
	}
}

// HandleAPIError writes the mapped status and safe message for err and logs
// the redacted error.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error) {
	shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
}

// SanitizeValidationError turns validator errors into a message naming the
// first failing field by its JSON name.
func SanitizeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Validation error"
	}

	fe := verrs[0]
	return fmt.Sprintf("Invalid %s: %s", fe.Field(), validationTagMessage(fe.Tag(), fe.Param()))
}

func validationTagMessage(tag, param string) string {
	switch tag {
	case "required":
		return "required field"
	case "min":
		return "too short"
	case "max":
		if param != "" {
			return "at most " + param
		}
		return "too long"
	case "url", "http_url":
		return "invalid URL"
	case "gte", "lte":
		return "out of range"
	default:
		return "validation failed"
	}
}
