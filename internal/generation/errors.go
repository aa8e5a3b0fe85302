package generation

import (
	"errors"
	"fmt"
)

// Common errors returned by the generation package
var (
	// ErrInvalidConfig is returned when a retry policy or provider configuration is invalid
	ErrInvalidConfig = errors.New("invalid generator configuration")

	// ErrPermanent is matched by a CallError whose failure cannot resolve on retry
	ErrPermanent = errors.New("permanent provider failure")

	// ErrExhausted is matched by a CallError that consumed every attempt
	ErrExhausted = errors.New("retry attempts exhausted")

	// ErrEmptyResponse is returned by providers when the model produced no text
	ErrEmptyResponse = errors.New("empty response from language model")

	// ErrContentBlocked is returned when the model refuses the prompt on safety grounds
	ErrContentBlocked = errors.New("content blocked by language model safety filters")

	// ErrSectionIndex is returned when a section index is outside the report
	ErrSectionIndex = errors.New("section index out of range")
)

// ErrorKind classifies a provider failure for retry decisions.
type ErrorKind int

const (
	// KindTransient covers timeouts, dropped connections and 5xx responses.
	KindTransient ErrorKind = iota
	// KindRateLimited covers quota and throttling responses.
	KindRateLimited
	// KindAuthentication covers missing, invalid or unauthorized credentials.
	KindAuthentication
	// KindMalformedRequest covers requests the provider will never accept as sent.
	KindMalformedRequest
)

// String returns the lowercase name of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindRateLimited:
		return "rate_limited"
	case KindAuthentication:
		return "authentication"
	case KindMalformedRequest:
		return "malformed_request"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Retryable reports whether a failure of this kind may succeed on a later attempt.
func (k ErrorKind) Retryable() bool {
	return k == KindTransient || k == KindRateLimited
}

// ProviderError is the classified failure a Provider returns. Providers wrap
// their SDK errors in it so the Caller can decide between retry and failure
// without knowing anything about the SDK.
type ProviderError struct {
	Kind       ErrorKind
	Provider   string
	StatusCode int
	Err        error
}

// NewProviderError builds a ProviderError for the given provider.
func NewProviderError(provider string, kind ErrorKind, statusCode int, err error) *ProviderError {
	return &ProviderError{
		Kind:       kind,
		Provider:   provider,
		StatusCode: statusCode,
		Err:        err,
	}
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s provider error (%s, status %d): %v", e.Provider, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s provider error (%s): %v", e.Provider, e.Kind, e.Err)
}

// Unwrap returns the underlying SDK error.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// KindOf returns the classification of err. Errors that are not
// ProviderErrors count as transient, so an unknown failure is retried rather
// than abandoned.
func KindOf(err error) ErrorKind {
	var pErr *ProviderError
	if errors.As(err, &pErr) {
		return pErr.Kind
	}
	return KindTransient
}

// CallError is returned by Caller.Call when no text could be produced. It
// carries the last underlying error and how many attempts were made.
type CallError struct {
	Attempts  int
	Permanent bool
	// Aborted is set when the caller's context ended the loop early.
	Aborted bool
	Err     error
}

// Error implements the error interface.
func (e *CallError) Error() string {
	if e.Permanent {
		return fmt.Sprintf("provider call failed permanently after %d attempt(s): %v", e.Attempts, e.Err)
	}
	if e.Aborted {
		return fmt.Sprintf("provider call aborted after %d attempt(s): %v", e.Attempts, e.Err)
	}
	return fmt.Sprintf("provider call failed after %d attempt(s): %v", e.Attempts, e.Err)
}

// Unwrap returns the last underlying error.
func (e *CallError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match ErrPermanent or ErrExhausted against a CallError.
func (e *CallError) Is(target error) bool {
	switch target {
	case ErrPermanent:
		return e.Permanent
	case ErrExhausted:
		return !e.Permanent && !e.Aborted
	default:
		return false
	}
}

// KindForStatus classifies an HTTP status code returned by a provider API.
func KindForStatus(code int) ErrorKind {
	switch {
	case code == 429:
		return KindRateLimited
	case code == 401 || code == 403:
		return KindAuthentication
	case code == 408 || code >= 500:
		return KindTransient
	case code >= 400:
		return KindMalformedRequest
	default:
		return KindTransient
	}
}
