package service

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the report service. The API layer maps each to
// an HTTP status.
var (
	// ErrReportNotFound indicates the report does not exist.
	ErrReportNotFound = errors.New("report not found")

	// ErrReportNotOwned indicates the report belongs to another session.
	ErrReportNotOwned = errors.New("report is owned by another session")

	// ErrInvalidSection indicates a section position outside the report.
	ErrInvalidSection = errors.New("invalid section position")

	// ErrGenerationInProgress indicates the session already has a report
	// being generated.
	ErrGenerationInProgress = errors.New("a report generation is already in progress")

	// ErrUnsupportedFormat indicates an unknown export format.
	ErrUnsupportedFormat = errors.New("unsupported export format")

	// ErrInvalidReport indicates the report request failed validation.
	ErrInvalidReport = errors.New("invalid report request")

	// ErrInvalidQuestion indicates an empty or oversized question.
	ErrInvalidQuestion = errors.New("invalid question")

	// ErrReportNotReady indicates the report has no generated sections yet.
	ErrReportNotReady = errors.New("report has no generated content")

	// ErrAnswerFailed indicates the language model could not answer.
	ErrAnswerFailed = errors.New("failed to answer question")
)

// ServiceError adds the failed operation to an unexpected error.
type ServiceError struct {
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("report service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("report service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError wraps err with the operation and message. Sentinel errors of
// this package pass through unwrapped.
func NewServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range []error{
		ErrReportNotFound,
		ErrReportNotOwned,
		ErrInvalidSection,
		ErrGenerationInProgress,
		ErrUnsupportedFormat,
		ErrInvalidQuestion,
		ErrReportNotReady,
		ErrAnswerFailed,
	} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	return &ServiceError{Operation: operation, Message: message, Err: err}
}
