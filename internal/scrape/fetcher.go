package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"path"
	"strings"
	"syscall"
	"time"

	"github.com/phrazzld/ereuna/internal/config"
	"github.com/phrazzld/ereuna/internal/platform/logger"
)

// Content types the fetcher understands.
const (
	contentTypeHTML  = "text/html"
	contentTypeXHTML = "application/xhtml+xml"
	contentTypePDF   = "application/pdf"
	contentTypeText  = "text/plain"
)

// Document is the text extracted from one source.
type Document struct {
	URL         string
	Title       string
	Text        string
	ContentType string
	Truncated   bool
}

// Fetcher downloads sources and extracts their text.
type Fetcher struct {
	client         *http.Client
	logger         *slog.Logger
	userAgent      string
	maxBytes       int64
	maxSourceChars int
	allowPrivate   bool
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the default HTTP client. The client's timeout is
// left untouched.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		f.client = client
	}
}

// WithPrivateNetworks lets the fetcher reach loopback and private addresses.
// Only tests and trusted single-host deployments should use it.
func WithPrivateNetworks() Option {
	return func(f *Fetcher) {
		f.allowPrivate = true
	}
}

// NewFetcher creates a Fetcher from scraper configuration. The default client
// refuses to connect to internal addresses, including after DNS resolution
// and redirects.
func NewFetcher(log *slog.Logger, cfg config.ScraperConfig, opts ...Option) (*Fetcher, error) {
	if log == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.MaxBytes <= 0 {
		return nil, fmt.Errorf("max bytes must be positive, got %d", cfg.MaxBytes)
	}
	if cfg.MaxSourceChars <= 0 {
		return nil, fmt.Errorf("max source chars must be positive, got %d", cfg.MaxSourceChars)
	}

	f := &Fetcher{
		client:         newGuardedClient(time.Duration(cfg.TimeoutSeconds) * time.Second),
		logger:         log.With("component", "scraper"),
		userAgent:      cfg.UserAgent,
		maxBytes:       cfg.MaxBytes,
		maxSourceChars: cfg.MaxSourceChars,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

func newGuardedClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
		Control:   guardDial,
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	// A proxy would be dialled instead of the source and defeat the guard.
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext

	return &http.Client{Timeout: timeout, Transport: transport}
}

// guardDial runs after name resolution, so it sees the address actually
// being connected to.
func guardDial(network, address string, _ syscall.RawConn) error {
	addrPort, err := netip.ParseAddrPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrForbiddenAddress, address)
	}
	if forbiddenAddr(addrPort.Addr()) {
		return fmt.Errorf("%w: %s", ErrForbiddenAddress, addrPort.Addr())
	}
	return nil
}

var forbiddenPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("192.0.0.0/24"),
	netip.MustParsePrefix("198.18.0.0/15"),
	netip.MustParsePrefix("64:ff9b::/96"),
}

func forbiddenAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	if addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() ||
		addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast() ||
		addr.IsInterfaceLocalMulticast() || addr.IsMulticast() {
		return true
	}
	for _, p := range forbiddenPrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// ValidateURL reports whether raw is an absolute http or https URL whose host
// is not an internal address. Host names other than localhost are checked
// when the connection is made.
func ValidateURL(raw string) error {
	if err := validateSyntax(raw); err != nil {
		return err
	}

	u, _ := url.Parse(strings.TrimSpace(raw))
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return fmt.Errorf("%w: %s", ErrForbiddenAddress, host)
	}
	if addr, err := netip.ParseAddr(host); err == nil && forbiddenAddr(addr) {
		return fmt.Errorf("%w: %s", ErrForbiddenAddress, addr)
	}
	return nil
}

func validateSyntax(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https", ErrInvalidURL)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return nil
}

// Fetch downloads rawURL and returns its text. At most maxBytes of the body
// are read; anything beyond is discarded and the document is marked truncated.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Document, error) {
	rawURL = strings.TrimSpace(rawURL)
	validate := ValidateURL
	if f.allowPrivate {
		validate = validateSyntax
	}
	if err := validate(rawURL); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, ErrForbiddenAddress) {
			return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", ErrFetchFailed, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrFetchFailed, err)
	}
	truncated := int64(len(body)) > f.maxBytes
	if truncated {
		body = body[:f.maxBytes]
	}

	contentType := detectContentType(resp.Header.Get("Content-Type"), rawURL, body)

	doc := &Document{
		URL:         rawURL,
		ContentType: contentType,
		Truncated:   truncated,
	}

	switch contentType {
	case contentTypeHTML, contentTypeXHTML:
		doc.Title, doc.Text, err = extractHTML(body)
	case contentTypePDF:
		doc.Text, err = extractPDF(body)
		doc.Title = path.Base(req.URL.Path)
	case contentTypeText:
		doc.Text = collapseWhitespace(string(body))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedContent, contentType)
	}
	if err != nil {
		return nil, err
	}

	if doc.Title == "" || doc.Title == "/" || doc.Title == "." {
		doc.Title = req.URL.Host
	}

	logger.FromContext(ctx).DebugContext(ctx, "source fetched",
		"url", rawURL,
		"content_type", contentType,
		"bytes", len(body),
		"truncated", truncated)

	return doc, nil
}

// detectContentType prefers the declared media type, then the URL suffix,
// then content sniffing.
func detectContentType(header, rawURL string, body []byte) string {
	if header != "" {
		if mediaType, _, err := mime.ParseMediaType(header); err == nil &&
			mediaType != "application/octet-stream" {
			return mediaType
		}
	}

	if u, err := url.Parse(rawURL); err == nil && strings.EqualFold(path.Ext(u.Path), ".pdf") {
		return contentTypePDF
	}

	mediaType, _, err := mime.ParseMediaType(http.DetectContentType(body))
	if err != nil {
		return "application/octet-stream"
	}
	return mediaType
}

// Sources fetches each URL in order and joins the extracted documents into
// one block of source material. Sources that fail are skipped with a warning.
// Each document is cut to maxSourceChars runes.
func (f *Fetcher) Sources(ctx context.Context, urls []string) (string, error) {
	log := logger.FromContext(ctx)

	var blocks []string
	for _, u := range urls {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		doc, err := f.Fetch(ctx, u)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			log.WarnContext(ctx, "skipping source", "url", u, "error", err)
			continue
		}

		text := truncateRunes(doc.Text, f.maxSourceChars)
		if strings.TrimSpace(text) == "" {
			log.WarnContext(ctx, "skipping empty source", "url", u)
			continue
		}

		blocks = append(blocks, fmt.Sprintf("Source: %s (%s)\n%s", doc.Title, doc.URL, text))
	}

	return strings.Join(blocks, "\n\n"), nil
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + " [truncated]"
}

func collapseWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if fields := strings.Fields(line); len(fields) > 0 {
			out = append(out, strings.Join(fields, " "))
		}
	}
	return strings.Join(out, "\n")
}
