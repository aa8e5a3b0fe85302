package scrape

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/phrazzld/ereuna/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `<!DOCTYPE html>
<html>
<head>
  <title>  Bees and   Pollination </title>
  <style>body { color: red; }</style>
  <script>var tracking = "should not appear";</script>
</head>
<body>
  <header>Site header</header>
  <nav><a href="/">Home</a></nav>
  <article>
    <h1>Why bees matter</h1>
    <p>Bees pollinate   roughly a third of crops.</p>
    <p>Colony collapse is a <b>serious</b> concern.</p>
  </article>
  <form><input name="q"></form>
  <footer>Copyright</footer>
</body>
</html>`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testScraperConfig() config.ScraperConfig {
	return config.ScraperConfig{
		TimeoutSeconds: 5,
		MaxBytes:       1 << 20,
		UserAgent:      "EreunaTest/1.0",
		MaxSourceChars: 1000,
	}
}

func newFetcher(t *testing.T, cfg config.ScraperConfig, srv *httptest.Server) *Fetcher {
	t.Helper()
	f, err := NewFetcher(testLogger(), cfg, WithHTTPClient(srv.Client()), WithPrivateNetworks())
	require.NoError(t, err)
	return f
}

func newSourceServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "EreunaTest/1.0", r.UserAgent())
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, samplePage)
	})
	mux.HandleFunc("/notes.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, "  line one  \n\n\n   line   two ")
	})
	mux.HandleFunc("/image", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte{0x89, 'P', 'N', 'G'})
	})
	mux.HandleFunc("/broken.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = io.WriteString(w, "this is not a pdf")
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/long", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, strings.Repeat("a", 5000))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestNewFetcher_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewFetcher(nil, testScraperConfig())
	assert.Error(t, err)

	cfg := testScraperConfig()
	cfg.MaxBytes = 0
	_, err = NewFetcher(testLogger(), cfg)
	assert.Error(t, err)

	cfg = testScraperConfig()
	cfg.MaxSourceChars = 0
	_, err = NewFetcher(testLogger(), cfg)
	assert.Error(t, err)
}

func TestFetch_HTML(t *testing.T) {
	t.Parallel()

	srv := newSourceServer(t)
	f := newFetcher(t, testScraperConfig(), srv)

	doc, err := f.Fetch(context.Background(), srv.URL+"/page")
	require.NoError(t, err)

	assert.Equal(t, "Bees and Pollination", doc.Title)
	assert.Equal(t, "text/html", doc.ContentType)
	assert.False(t, doc.Truncated)
	assert.Contains(t, doc.Text, "Why bees matter")
	assert.Contains(t, doc.Text, "Bees pollinate roughly a third of crops.")
	assert.Contains(t, doc.Text, "Colony collapse is a serious concern.")

	for _, unwanted := range []string{"tracking", "color: red", "Site header", "Home", "Copyright"} {
		assert.NotContains(t, doc.Text, unwanted)
	}
}

func TestFetch_PlainText(t *testing.T) {
	t.Parallel()

	srv := newSourceServer(t)
	f := newFetcher(t, testScraperConfig(), srv)

	doc, err := f.Fetch(context.Background(), srv.URL+"/notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two", doc.Text)
	assert.NotEmpty(t, doc.Title)
}

func TestFetch_Errors(t *testing.T) {
	t.Parallel()

	srv := newSourceServer(t)
	f := newFetcher(t, testScraperConfig(), srv)

	tests := []struct {
		name    string
		url     string
		wantErr error
	}{
		{"not found", srv.URL + "/missing", ErrFetchFailed},
		{"unsupported type", srv.URL + "/image", ErrUnsupportedContent},
		{"malformed pdf", srv.URL + "/broken.pdf", ErrExtractionFailed},
		{"ftp scheme", "ftp://example.com/file", ErrInvalidURL},
		{"relative", "/just/a/path", ErrInvalidURL},
		{"unreachable", "http://127.0.0.1:1/nothing", ErrFetchFailed},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := f.Fetch(context.Background(), tc.url)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestFetch_MaxBytes(t *testing.T) {
	t.Parallel()

	srv := newSourceServer(t)
	cfg := testScraperConfig()
	cfg.MaxBytes = 100
	f := newFetcher(t, cfg, srv)

	doc, err := f.Fetch(context.Background(), srv.URL+"/long")
	require.NoError(t, err)
	assert.True(t, doc.Truncated)
	assert.Len(t, doc.Text, 100)
}

func TestDetectContentType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		header string
		url    string
		body   string
		want   string
	}{
		{"declared html", "text/html; charset=utf-8", "https://x.test/", "", "text/html"},
		{"pdf suffix", "", "https://x.test/paper.PDF", "", "application/pdf"},
		{"octet stream pdf suffix", "application/octet-stream", "https://x.test/a.pdf", "", "application/pdf"},
		{"sniffed html", "", "https://x.test/", "<html><body>hi</body></html>", "text/html"},
		{"sniffed pdf", "", "https://x.test/download", "%PDF-1.4 rest", "application/pdf"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, detectContentType(tc.header, tc.url, []byte(tc.body)))
		})
	}
}

func TestSources(t *testing.T) {
	t.Parallel()

	srv := newSourceServer(t)
	cfg := testScraperConfig()
	cfg.MaxSourceChars = 20
	f := newFetcher(t, cfg, srv)

	material, err := f.Sources(context.Background(), []string{
		srv.URL + "/missing",
		srv.URL + "/notes.txt",
		srv.URL + "/image",
		srv.URL + "/long",
	})
	require.NoError(t, err)

	blocks := strings.Split(material, "\n\n")
	require.Len(t, blocks, 2, "failed sources are skipped")

	assert.True(t, strings.HasPrefix(blocks[0], "Source: "))
	assert.Contains(t, blocks[0], srv.URL+"/notes.txt")
	assert.Contains(t, blocks[0], "line one\nline two")

	assert.Contains(t, blocks[1], strings.Repeat("a", 20)+" [truncated]")
	assert.NotContains(t, blocks[1], strings.Repeat("a", 21))
}

func TestSources_Empty(t *testing.T) {
	t.Parallel()

	f, err := NewFetcher(testLogger(), testScraperConfig())
	require.NoError(t, err)

	material, err := f.Sources(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, material)
}

func TestSources_Cancelled(t *testing.T) {
	t.Parallel()

	srv := newSourceServer(t)
	f := newFetcher(t, testScraperConfig(), srv)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Sources(ctx, []string{srv.URL + "/page"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestValidateURL_InternalAddresses(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		url     string
		wantErr error
	}{
		{"public host", "https://example.com/article", nil},
		{"public ip", "http://93.184.216.34/", nil},
		{"metadata service", "http://169.254.169.254/latest/meta-data/", ErrForbiddenAddress},
		{"loopback", "http://127.0.0.1:8080/", ErrForbiddenAddress},
		{"ipv6 loopback", "http://[::1]/", ErrForbiddenAddress},
		{"mapped loopback", "http://[::ffff:127.0.0.1]/", ErrForbiddenAddress},
		{"private", "http://10.0.0.5/admin", ErrForbiddenAddress},
		{"carrier nat", "http://100.64.1.1/", ErrForbiddenAddress},
		{"unspecified", "http://0.0.0.0/", ErrForbiddenAddress},
		{"localhost", "http://LocalHost./", ErrForbiddenAddress},
		{"localhost subdomain", "http://api.localhost/", ErrForbiddenAddress},
		{"bad scheme", "file:///etc/passwd", ErrInvalidURL},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateURL(tc.url)
			if tc.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestGuardDial(t *testing.T) {
	t.Parallel()

	assert.NoError(t, guardDial("tcp", "93.184.216.34:443", nil))
	assert.NoError(t, guardDial("tcp6", "[2606:2800:220:1::248]:443", nil))
	assert.ErrorIs(t, guardDial("tcp", "169.254.169.254:80", nil), ErrForbiddenAddress)
	assert.ErrorIs(t, guardDial("tcp", "192.168.1.10:80", nil), ErrForbiddenAddress)
	assert.ErrorIs(t, guardDial("tcp6", "[fe80::1]:80", nil), ErrForbiddenAddress)
	assert.ErrorIs(t, guardDial("tcp", "not-an-address", nil), ErrForbiddenAddress)
}

func TestFetch_RefusesInternalAddresses(t *testing.T) {
	t.Parallel()

	srv := newSourceServer(t)
	f, err := NewFetcher(testLogger(), testScraperConfig())
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), srv.URL+"/page")
	assert.ErrorIs(t, err, ErrForbiddenAddress)
}

func TestFetch_GuardedClientRefusesInternalConnection(t *testing.T) {
	t.Parallel()

	// Only the dial guard stands between the fetcher and the server here.
	srv := newSourceServer(t)
	f, err := NewFetcher(testLogger(), testScraperConfig(), WithPrivateNetworks())
	require.NoError(t, err)
	f.client = newGuardedClient(5 * time.Second)

	_, err = f.Fetch(context.Background(), srv.URL+"/page")
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.ErrorIs(t, err, ErrForbiddenAddress)
}
