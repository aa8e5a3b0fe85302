package scrape

import "errors"

var (
	// ErrInvalidURL is returned when a source URL is not an absolute http(s) URL.
	ErrInvalidURL = errors.New("invalid source URL")

	// ErrForbiddenAddress is returned when a source resolves to a loopback,
	// private, link-local or otherwise internal address.
	ErrForbiddenAddress = errors.New("source address is not publicly routable")

	// ErrFetchFailed is returned when the request fails or the server answers
	// with a non-2xx status.
	ErrFetchFailed = errors.New("failed to fetch source")

	// ErrUnsupportedContent is returned for content types other than HTML, PDF
	// and plain text.
	ErrUnsupportedContent = errors.New("unsupported content type")

	// ErrExtractionFailed is returned when a document cannot be reduced to text.
	ErrExtractionFailed = errors.New("failed to extract text from source")
)
