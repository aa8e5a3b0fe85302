package export

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/ereuna/internal/domain"
	"github.com/phrazzld/ereuna/internal/generation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport(t *testing.T) *domain.Report {
	t.Helper()

	report, err := domain.NewReport(uuid.New(), domain.ReportInput{
		Topic:             "Bees & <Pollination>",
		Keywords:          []string{"bees", "crops"},
		ResearchQuestions: []string{"Why do bees matter?"},
		SourceURLs:        []string{"https://example.com/bees"},
	})
	require.NoError(t, err)

	gen := report.ToGeneration()
	for i := range gen.Sections {
		gen.Sections[i].Err = nil
		gen.Sections[i].Text = "Text for **" + gen.Sections[i].Title + "**."
	}
	gen.Sections[2].Text = ""
	gen.Sections[2].Err = &generation.CallError{Attempts: 3, Err: assert.AnError}
	require.NoError(t, report.ApplyGenerated(gen))

	return report
}

func TestMarkdown(t *testing.T) {
	t.Parallel()

	report := sampleReport(t)
	md := Markdown(report)

	assert.True(t, strings.HasPrefix(md, "# Bees & <Pollination>\n\n"))
	assert.Contains(t, md, "**Keywords:** bees, crops")
	assert.Contains(t, md, "- Why do bees matter?")
	assert.Contains(t, md, "> _This section could not be generated: the language model did not respond after 3 attempts._")
	assert.Contains(t, md, "- <https://example.com/bees>")
	assert.NotContains(t, md, assert.AnError.Error())

	last := -1
	for _, s := range report.Sections {
		idx := strings.Index(md, "## "+s.Title+"\n")
		require.GreaterOrEqual(t, idx, 0, s.Title)
		assert.Greater(t, idx, last, "sections appear in position order")
		last = idx
	}
}

func TestMarkdown_PendingSection(t *testing.T) {
	t.Parallel()

	report, err := domain.NewReport(uuid.New(), domain.ReportInput{Topic: "Pending"})
	require.NoError(t, err)

	md := Markdown(report)
	assert.Contains(t, md, "> _This section has not been generated yet._")
	assert.NotContains(t, md, "**Keywords:**")
	assert.NotContains(t, md, "## Sources")
}

func TestHTML(t *testing.T) {
	t.Parallel()

	out, err := HTML(sampleReport(t))
	require.NoError(t, err)
	page := string(out)

	assert.True(t, strings.HasPrefix(page, "<!DOCTYPE html>"))
	assert.Contains(t, page, "<title>Bees &amp; &lt;Pollination&gt;</title>")
	assert.Contains(t, page, `<h2 id="introduction">Introduction</h2>`)
	assert.Contains(t, page, "<strong>Introduction</strong>")
	assert.Contains(t, page, "<blockquote>")
}

func TestRender(t *testing.T) {
	t.Parallel()

	report := sampleReport(t)

	tests := []struct {
		format      string
		contentType string
		extension   string
	}{
		{"markdown", "text/markdown; charset=utf-8", "md"},
		{"MD", "text/markdown; charset=utf-8", "md"},
		{"html", "text/html; charset=utf-8", "html"},
		{"pdf", "application/pdf", "pdf"},
	}
	for _, tc := range tests {
		doc, err := Render(report, tc.format)
		require.NoError(t, err, tc.format)
		assert.Equal(t, tc.contentType, doc.ContentType)
		assert.Equal(t, tc.extension, doc.Extension)
		assert.NotEmpty(t, doc.Body)
	}

	_, err := Render(report, "docx")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestHTML_OmitsRawHTML(t *testing.T) {
	t.Parallel()

	report := sampleReport(t)
	injected := "Fine text.\n\n<script>alert(1)</script>"
	report.Sections[0].GeneratedText = &injected

	out, err := HTML(report)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "<script>")
	assert.Contains(t, string(out), "Fine text.")
}

func TestSupported(t *testing.T) {
	t.Parallel()

	assert.True(t, Supported("markdown"))
	assert.True(t, Supported(" HTML "))
	assert.True(t, Supported("md"))
	assert.True(t, Supported("PDF"))
	assert.False(t, Supported("docx"))
	assert.False(t, Supported(""))
}

func TestFilename(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "coral-bleaching-in-2025.md", Filename("  Coral bleaching in 2025! ", "md"))
	assert.Equal(t, "report.html", Filename("???", "html"))
	assert.LessOrEqual(t, len(Filename(strings.Repeat("long topic ", 20), "md")), 63)
}
