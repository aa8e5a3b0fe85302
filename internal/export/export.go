// Package export renders reports as Markdown, HTML and PDF documents.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/phrazzld/ereuna/internal/domain"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
)

// Format names accepted by Render.
const (
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
	FormatPDF      = "pdf"
)

// ErrUnsupportedFormat is returned by Render for unknown format names.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// Document is a rendered report.
type Document struct {
	ContentType string
	Extension   string
	// Filename is a download name derived from the report topic.
	Filename string
	Body     []byte
}

// Raw HTML in generated text is omitted from the output, since section text
// comes from the language model.
var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
)

// Supported reports whether format is accepted by Render.
func Supported(format string) bool {
	switch normalizeFormat(format) {
	case FormatMarkdown, "md", FormatHTML, FormatPDF:
		return true
	default:
		return false
	}
}

func normalizeFormat(format string) string {
	return strings.ToLower(strings.TrimSpace(format))
}

// Render renders report in the named format.
func Render(report *domain.Report, format string) (*Document, error) {
	switch normalizeFormat(format) {
	case FormatMarkdown, "md":
		return &Document{
			ContentType: "text/markdown; charset=utf-8",
			Extension:   "md",
			Filename:    Filename(report.Topic, "md"),
			Body:        []byte(Markdown(report)),
		}, nil
	case FormatHTML:
		body, err := HTML(report)
		if err != nil {
			return nil, err
		}
		return &Document{
			ContentType: "text/html; charset=utf-8",
			Extension:   "html",
			Filename:    Filename(report.Topic, "html"),
			Body:        body,
		}, nil
	case FormatPDF:
		body, err := PDF(report)
		if err != nil {
			return nil, err
		}
		return &Document{
			ContentType: "application/pdf",
			Extension:   "pdf",
			Filename:    Filename(report.Topic, "pdf"),
			Body:        body,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Filename derives a name like "coral-bleaching.md" from topic.
func Filename(topic, extension string) string {
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(topic), "-"), "-")
	if len(slug) > 60 {
		slug = strings.TrimRight(slug[:60], "-")
	}
	if slug == "" {
		slug = "report"
	}
	return slug + "." + extension
}

// Markdown renders the report title, its metadata and every section in
// position order. Sections without text get a placeholder note.
func Markdown(report *domain.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", report.Topic)

	if len(report.Keywords) > 0 {
		fmt.Fprintf(&b, "**Keywords:** %s\n\n", strings.Join(report.Keywords, ", "))
	}
	if len(report.ResearchQuestions) > 0 {
		b.WriteString("**Research questions:**\n\n")
		for _, q := range report.ResearchQuestions {
			fmt.Fprintf(&b, "- %s\n", q)
		}
		b.WriteString("\n")
	}

	for _, s := range report.Sections {
		fmt.Fprintf(&b, "## %s\n\n", s.Title)

		switch {
		case s.Status == domain.SectionStatusGenerated && s.GeneratedText != nil:
			b.WriteString(strings.TrimSpace(*s.GeneratedText))
		case s.Status == domain.SectionStatusFailed:
			msg := strings.TrimSuffix(s.ErrorMessage, ".")
			if msg == "" {
				msg = "unknown error"
			}
			fmt.Fprintf(&b, "> _This section could not be generated: %s._", msg)
		default:
			b.WriteString("> _This section has not been generated yet._")
		}
		b.WriteString("\n\n")
	}

	if len(report.SourceURLs) > 0 {
		b.WriteString("## Sources\n\n")
		for _, u := range report.SourceURLs {
			fmt.Fprintf(&b, "- <%s>\n", u)
		}
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

// HTML renders the Markdown document to a standalone HTML page.
func HTML(report *domain.Report) ([]byte, error) {
	var body bytes.Buffer
	if err := markdown.Convert([]byte(Markdown(report)), &body); err != nil {
		return nil, fmt.Errorf("converting report to HTML: %w", err)
	}

	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&page, "<title>%s</title>\n", html.EscapeString(report.Topic))
	page.WriteString("</head>\n<body>\n<article>\n")
	page.Write(body.Bytes())
	page.WriteString("</article>\n</body>\n</html>\n")

	return page.Bytes(), nil
}
