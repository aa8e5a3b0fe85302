package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// It is wrapped with a more specific message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is missing or malformed.
	ErrInvalidID = errors.New("invalid ID")

	// ErrEmptyContent is returned when required content is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrInvalidURL is returned when a source URL is not an absolute http(s) URL.
	ErrInvalidURL = errors.New("invalid source URL")

	// ErrTooManyItems is returned when a list input exceeds its limit.
	ErrTooManyItems = errors.New("too many items")

	// ErrInvalidReportStatus is returned when a report status is not valid.
	ErrInvalidReportStatus = errors.New("invalid report status")

	// ErrInvalidSectionStatus is returned when a section status is not valid.
	ErrInvalidSectionStatus = errors.New("invalid section status")

	// ErrSectionOutOfRange is returned when a section position does not exist.
	ErrSectionOutOfRange = errors.New("section position out of range")

	// ErrOutlineMismatch is returned when generated output does not line up
	// with the report's sections.
	ErrOutlineMismatch = errors.New("generated sections do not match report outline")
)
